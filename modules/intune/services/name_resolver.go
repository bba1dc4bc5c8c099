package services

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/logging"
)

const (
	KindGroup  = "group"
	KindFilter = "filter"
)

// ListingStrategy is one way of listing candidates. Strategies run in order; only a
// not-found error or an empty result moves on to the next one.
type ListingStrategy struct {
	Name string
	List func(ctx context.Context) ([]domain.NamedObject, error)
}

// runStrategies returns the first non-empty listing, or an empty one when every strategy came up empty.
func runStrategies(ctx context.Context, strategies []ListingStrategy, log *logrus.Entry) ([]domain.NamedObject, error) {
	for _, s := range strategies {
		items, err := s.List(ctx)
		if err != nil {
			if domain.IsNotFound(err) {
				log.WithField("strategy", s.Name).Debug("listing endpoint not found, trying next")
				continue
			}
			return nil, errors.Wrapf(err, "listing strategy %s", s.Name)
		}
		if len(items) > 0 {
			return items, nil
		}
		log.WithField("strategy", s.Name).Debug("listing empty, trying next")
	}
	return nil, nil
}

// ListingSource produces the full candidate listing for an input.
type ListingSource interface {
	Listing(ctx context.Context, input string) ([]domain.NamedObject, error)
}

// GroupListing queries the directory per input: exact name first, then token search.
type GroupListing struct {
	Directory domain.DirectoryClient
	Log       *logrus.Entry
}

func (g GroupListing) Listing(ctx context.Context, input string) ([]domain.NamedObject, error) {
	log := g.Log
	if log == nil {
		log = logging.Discard()
	}
	return runStrategies(ctx, []ListingStrategy{
		{Name: "exact-name", List: func(ctx context.Context) ([]domain.NamedObject, error) {
			return g.Directory.FindGroupsByName(ctx, input)
		}},
		{Name: "search", List: func(ctx context.Context) ([]domain.NamedObject, error) {
			return g.Directory.SearchGroups(ctx, input)
		}},
	}, log)
}

// FilterListing lists every assignment filter once per session: beta first, then v1.0.
// Concurrent loads collapse into one remote listing.
type FilterListing struct {
	strategies []ListingStrategy
	log        *logrus.Entry
	sf         singleflight.Group

	mu     sync.RWMutex
	loaded bool
	items  []domain.NamedObject
}

func NewFilterListing(dir domain.DirectoryClient, log *logrus.Entry) *FilterListing {
	if log == nil {
		log = logging.Discard()
	}
	return &FilterListing{
		log: log,
		strategies: []ListingStrategy{
			{Name: string(domain.APIBeta), List: func(ctx context.Context) ([]domain.NamedObject, error) {
				return dir.ListAssignmentFilters(ctx, domain.APIBeta)
			}},
			{Name: string(domain.APIV1), List: func(ctx context.Context) ([]domain.NamedObject, error) {
				return dir.ListAssignmentFilters(ctx, domain.APIV1)
			}},
		},
	}
}

func (f *FilterListing) Listing(ctx context.Context, _ string) ([]domain.NamedObject, error) {
	return f.All(ctx)
}

// All returns the cached listing, loading it on first use. Failed and empty loads are not cached.
func (f *FilterListing) All(ctx context.Context) ([]domain.NamedObject, error) {
	f.mu.RLock()
	if f.loaded {
		items := f.items
		f.mu.RUnlock()
		return items, nil
	}
	f.mu.RUnlock()

	v, err, _ := f.sf.Do("filters", func() (any, error) {
		items, err := runStrategies(ctx, f.strategies, f.log)
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			f.mu.Lock()
			f.items, f.loaded = items, true
			f.mu.Unlock()
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.NamedObject), nil
}

func (f *FilterListing) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items, f.loaded = nil, false
}

// NameResolver turns a typed display name into an id, trying cheap local lookups before
// a remote listing.
type NameResolver struct {
	kind      string
	cache     *NameCache
	source    ListingSource
	acceptIDs bool
	log       *logrus.Entry
}

func NewGroupResolver(cache *NameCache, source ListingSource, log *logrus.Entry) *NameResolver {
	return newNameResolver(KindGroup, cache, source, false, log)
}

// NewFilterResolver also accepts a pasted filter id in place of a name.
func NewFilterResolver(cache *NameCache, source ListingSource, log *logrus.Entry) *NameResolver {
	return newNameResolver(KindFilter, cache, source, true, log)
}

func newNameResolver(kind string, cache *NameCache, source ListingSource, acceptIDs bool, log *logrus.Entry) *NameResolver {
	if log == nil {
		log = logging.Discard()
	}
	return &NameResolver{kind: kind, cache: cache, source: source, acceptIDs: acceptIDs, log: log.WithField("kind", kind)}
}

// looksLikeID accepts only the canonical 36-character form.
func looksLikeID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func (r *NameResolver) resolved(step, id, name string) domain.NamedObject {
	if name != id {
		r.cache.Upsert(id, name)
	}
	recordResolution(r.kind, step)
	r.log.WithFields(logrus.Fields{"step": step, "id": id}).Debug("name resolved")
	return domain.NamedObject{ID: id, DisplayName: name}
}

func (r *NameResolver) Resolve(ctx context.Context, input string) (domain.NamedObject, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return domain.NamedObject{}, invalidRequest("%s name is required", r.kind)
	}

	if r.acceptIDs && looksLikeID(input) {
		name := r.cache.NameOf(input)
		if name == "" {
			name = input
		}
		return r.resolved("id", input, name), nil
	}

	if id, ok := r.cache.Lookup(input); ok {
		name := r.cache.NameOf(id)
		if name == "" {
			name = input
		}
		return r.resolved("cache", id, name), nil
	}

	if hit, ok := r.cache.ScanByName(input); ok {
		return r.resolved("reverse-scan", hit.ID, hit.DisplayName), nil
	}

	listing, err := r.source.Listing(ctx, input)
	if err != nil {
		recordResolution(r.kind, "failed")
		return domain.NamedObject{}, &ResolutionError{
			Kind:   r.kind,
			Input:  input,
			Reason: ReasonLookupFailed,
			Status: domain.StatusOf(err),
			Cause:  err,
		}
	}
	for _, it := range listing {
		r.cache.RememberName(it.ID, it.DisplayName)
	}

	want := foldName(input)
	var exact, partial []domain.NamedObject
	for _, it := range listing {
		folded := foldName(it.DisplayName)
		switch {
		case folded == want:
			exact = append(exact, it)
		case strings.Contains(folded, want):
			partial = append(partial, it)
		}
	}

	switch {
	case len(exact) == 1:
		return r.resolved("listing-exact", exact[0].ID, exact[0].DisplayName), nil
	case len(exact) > 1:
		return domain.NamedObject{}, r.ambiguous(input, exact)
	case len(partial) == 1:
		hit := r.resolved("listing-substring", partial[0].ID, partial[0].DisplayName)
		r.cache.Alias(input, hit.ID)
		return hit, nil
	case len(partial) > 1:
		return domain.NamedObject{}, r.ambiguous(input, partial)
	}

	recordResolution(r.kind, "not-found")
	return domain.NamedObject{}, &ResolutionError{Kind: r.kind, Input: input, Reason: ReasonNotFound}
}

func (r *NameResolver) ambiguous(input string, matches []domain.NamedObject) error {
	recordResolution(r.kind, "ambiguous")
	n := min(len(matches), maxCandidateReports)
	names := make([]string, 0, n)
	for _, m := range matches[:n] {
		names = append(names, m.DisplayName)
	}
	return &ResolutionError{Kind: r.kind, Input: input, Reason: ReasonAmbiguous, Candidates: names}
}
