package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/assignment"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/eventbus"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/logging"
)

const refreshConcurrency = 4

// AssignmentFetcher is the part of the directory the cache needs to refresh itself.
type AssignmentFetcher interface {
	ListAssignments(ctx context.Context, appID string) ([]assignment.Assignment, error)
}

// ReconciliationCache holds per-app assignments: the last authoritative fetch with
// optimistic inserts and removals layered on top until the next refresh replaces them.
type ReconciliationCache struct {
	fetcher AssignmentFetcher
	bus     eventbus.EventBus
	tenant  string
	log     *logrus.Entry
	seq     atomic.Uint64

	mu      sync.RWMutex
	entries map[string][]assignment.Assignment
	// pending marks apps holding optimistic state not yet confirmed by a refresh.
	pending map[string]struct{}
}

func NewReconciliationCache(fetcher AssignmentFetcher, bus eventbus.EventBus, tenant string, log *logrus.Entry) *ReconciliationCache {
	if log == nil {
		log = logging.Discard()
	}
	return &ReconciliationCache{
		fetcher: fetcher,
		bus:     bus,
		tenant:  tenant,
		log:     log,
		entries: make(map[string][]assignment.Assignment),
		pending: make(map[string]struct{}),
	}
}

func clone(in []assignment.Assignment) []assignment.Assignment {
	if in == nil {
		return nil
	}
	out := make([]assignment.Assignment, len(in))
	copy(out, in)
	return out
}

// Get returns a copy of the cached assignments of appID.
func (c *ReconciliationCache) Get(appID string) []assignment.Assignment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clone(c.entries[appID])
}

// Has reports whether an authoritative fetch for appID has been stored.
func (c *ReconciliationCache) Has(appID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[appID]
	return ok
}

func (c *ReconciliationCache) AuthoritativeReplace(appID string, list []assignment.Assignment) {
	c.mu.Lock()
	c.entries[appID] = clone(list)
	if c.entries[appID] == nil {
		c.entries[appID] = []assignment.Assignment{}
	}
	delete(c.pending, appID)
	snapshot := clone(c.entries[appID])
	c.mu.Unlock()

	c.publish(appID, snapshot, true)
}

// OptimisticInsert appends an assignment with a synthesized id and returns it.
func (c *ReconciliationCache) OptimisticInsert(appID string, intent assignment.Intent, target assignment.Target) assignment.Assignment {
	a := assignment.Assignment{
		ID:     assignment.SynthesizeID(c.seq.Add(1)),
		Intent: intent,
		Target: target,
	}
	c.mu.Lock()
	c.entries[appID] = append(c.entries[appID], a)
	c.pending[appID] = struct{}{}
	snapshot := clone(c.entries[appID])
	c.mu.Unlock()

	c.publish(appID, snapshot, false)
	return a
}

// RemoveMatching drops every cached assignment of appID for which match returns true.
func (c *ReconciliationCache) RemoveMatching(appID string, match func(assignment.Assignment) bool) int {
	c.mu.Lock()
	current := c.entries[appID]
	kept := make([]assignment.Assignment, 0, len(current))
	for _, a := range current {
		if !match(a) {
			kept = append(kept, a)
		}
	}
	removed := len(current) - len(kept)
	if removed > 0 {
		c.entries[appID] = kept
		c.pending[appID] = struct{}{}
	}
	snapshot := clone(kept)
	c.mu.Unlock()

	if removed > 0 {
		c.publish(appID, snapshot, false)
	}
	return removed
}

func MatchByID(id string) func(assignment.Assignment) bool {
	return func(a assignment.Assignment) bool { return a.ID == id }
}

func MatchByIntentAndKey(intent assignment.Intent, key assignment.Key) func(assignment.Assignment) bool {
	return func(a assignment.Assignment) bool { return a.Matches(intent, key) }
}

// Pending returns the subset of appIDs whose entries still carry unconfirmed optimistic state.
func (c *ReconciliationCache) Pending(appIDs []string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for _, id := range appIDs {
		if _, ok := c.pending[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Refresh replaces the entries of appIDs with a fresh fetch. An app whose fetch fails keeps
// its current entry and stays pending; the failures are returned joined.
func (c *ReconciliationCache) Refresh(ctx context.Context, appIDs []string) error {
	ids := unique(appIDs)
	if len(ids) == 0 {
		return nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			list, err := c.fetcher.ListAssignments(gctx, id)
			recordRefresh(err == nil)
			if err != nil {
				c.log.WithError(err).WithField("app_id", id).Warn("assignment refresh failed, keeping cached entry")
				mu.Lock()
				errs = append(errs, fmt.Errorf("refresh app %s: %w", id, err))
				mu.Unlock()
				return nil
			}
			c.AuthoritativeReplace(id, list)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Clear drops everything. Used when the session ends.
func (c *ReconciliationCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]assignment.Assignment)
	c.pending = make(map[string]struct{})
}

func (c *ReconciliationCache) publish(appID string, list []assignment.Assignment, authoritative bool) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(&AssignmentsChangedEvent{
		Tenant:        c.tenant,
		AppID:         appID,
		Assignments:   list,
		Authoritative: authoritative,
	})
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
