package services

import (
	"context"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sirupsen/logrus"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/logging"
)

const (
	minSuggestionInput = 2
	maxSuggestions     = 20
)

// SuggestionService feeds typeahead for group and filter names. Every suggestion is
// memoized, so picking one resolves without a further listing.
type SuggestionService struct {
	sessions *SessionManager
	log      *logrus.Entry
}

func NewSuggestionService(sessions *SessionManager, log *logrus.Entry) *SuggestionService {
	if log == nil {
		log = logging.Discard()
	}
	return &SuggestionService{sessions: sessions, log: log}
}

func (s *SuggestionService) session() (*Session, error) {
	sess, err := s.sessions.Current()
	if err != nil {
		return nil, err
	}
	if !sess.SignedIn() {
		return nil, ErrNotSignedIn
	}
	return sess, nil
}

// SuggestGroups returns groups whose name starts with prefix.
func (s *SuggestionService) SuggestGroups(ctx context.Context, prefix string) ([]domain.NamedObject, error) {
	prefix = strings.TrimSpace(prefix)
	if len([]rune(prefix)) < minSuggestionInput {
		return nil, nil
	}
	sess, err := s.session()
	if err != nil {
		return nil, err
	}
	items, err := sess.Directory.SearchGroupsByPrefix(ctx, prefix, maxSuggestions)
	if err != nil {
		return nil, &ResolutionError{Kind: KindGroup, Input: prefix, Reason: ReasonLookupFailed, Status: domain.StatusOf(err), Cause: err}
	}
	for _, it := range items {
		sess.Groups.Upsert(it.ID, it.DisplayName)
	}
	return rank(prefix, items), nil
}

// SuggestFilters searches the session's filter listing for names containing text.
func (s *SuggestionService) SuggestFilters(ctx context.Context, text string) ([]domain.NamedObject, error) {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < minSuggestionInput {
		return nil, nil
	}
	sess, err := s.session()
	if err != nil {
		return nil, err
	}
	all, err := sess.FilterListing.All(ctx)
	if err != nil {
		return nil, &ResolutionError{Kind: KindFilter, Input: text, Reason: ReasonLookupFailed, Status: domain.StatusOf(err), Cause: err}
	}

	want := foldName(text)
	var hits []domain.NamedObject
	for _, it := range all {
		if strings.Contains(foldName(it.DisplayName), want) {
			hits = append(hits, it)
		}
	}
	hits = rank(text, hits)
	if len(hits) > maxSuggestions {
		hits = hits[:maxSuggestions]
	}
	for _, it := range hits {
		sess.Filters.Upsert(it.ID, it.DisplayName)
	}
	return hits, nil
}

// rank orders items by fuzzy distance to input. Items the matcher rejects keep their
// listing order after the ranked ones.
func rank(input string, items []domain.NamedObject) []domain.NamedObject {
	if len(items) < 2 {
		return items
	}
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.DisplayName
	}
	ranks := fuzzy.RankFindNormalizedFold(input, names)
	sort.Stable(ranks)

	out := make([]domain.NamedObject, 0, len(items))
	used := make([]bool, len(items))
	for _, r := range ranks {
		if used[r.OriginalIndex] {
			continue
		}
		used[r.OriginalIndex] = true
		out = append(out, items[r.OriginalIndex])
	}
	for i, it := range items {
		if !used[i] {
			out = append(out, it)
		}
	}
	return out
}
