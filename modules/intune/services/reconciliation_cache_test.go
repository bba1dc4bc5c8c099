package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/assignment"
)

func TestReconciliationCache_OptimisticAndAuthoritative(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory()
	cache := NewReconciliationCache(dir, nil, "t", nil)
	target := assignment.AllUsers(assignment.NoFilter)

	assert.False(t, cache.Has("A"))
	a1 := cache.OptimisticInsert("A", assignment.IntentRequired, target)
	a2 := cache.OptimisticInsert("A", assignment.IntentRequired, target)
	assert.NotEqual(t, a1.ID, a2.ID)
	assert.True(t, a1.IsSynthesized())
	assert.Equal(t, []string{"A"}, cache.Pending([]string{"A", "B"}))

	removed := cache.RemoveMatching("A", MatchByID(a1.ID))
	assert.Equal(t, 1, removed)
	assert.Len(t, cache.Get("A"), 1)

	cache.AuthoritativeReplace("A", nil)
	assert.True(t, cache.Has("A"))
	assert.Empty(t, cache.Get("A"))
	assert.Empty(t, cache.Pending([]string{"A"}))
}

func TestReconciliationCache_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	cache := NewReconciliationCache(newFakeDirectory(), nil, "t", nil)
	cache.OptimisticInsert("A", assignment.IntentRequired, assignment.AllDevices(assignment.NoFilter))

	list := cache.Get("A")
	list[0].ID = "mutated"
	assert.NotEqual(t, "mutated", cache.Get("A")[0].ID)
}

func TestReconciliationCache_RemoveMatchingByIntentAndKey(t *testing.T) {
	t.Parallel()

	cache := NewReconciliationCache(newFakeDirectory(), nil, "t", nil)
	target := assignment.AllDevices(assignment.NoFilter)
	cache.AuthoritativeReplace("A", []assignment.Assignment{
		{ID: "1", Intent: assignment.IntentRequired, Target: target},
		{ID: "2", Intent: assignment.IntentAvailable, Target: target},
	})

	n := cache.RemoveMatching("A", MatchByIntentAndKey(assignment.IntentAvailable, target.Key()))
	assert.Equal(t, 1, n)
	require.Len(t, cache.Get("A"), 1)
	assert.Equal(t, "1", cache.Get("A")[0].ID)
	assert.Zero(t, cache.RemoveMatching("B", MatchByID("1")))
}

func TestReconciliationCache_RefreshPartialFailure(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory()
	dir.seed("A", assignment.IntentRequired, assignment.AllDevices(assignment.NoFilter))
	dir.failList["B"] = remoteErr("list assignments", http.StatusBadGateway)
	cache := NewReconciliationCache(dir, nil, "t", nil)
	cache.OptimisticInsert("B", assignment.IntentRequired, assignment.AllDevices(assignment.NoFilter))

	err := cache.Refresh(context.Background(), []string{"A", "B", "A", ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh app B")
	assert.Len(t, cache.Get("A"), 1)
	assert.Len(t, cache.Get("B"), 1)
	assert.Equal(t, []string{"B"}, cache.Pending([]string{"A", "B"}))
	assert.Equal(t, 2, dir.Calls("ListAssignments"))
}

func TestReconciliationCache_Clear(t *testing.T) {
	t.Parallel()

	cache := NewReconciliationCache(newFakeDirectory(), nil, "t", nil)
	cache.OptimisticInsert("A", assignment.IntentRequired, assignment.AllDevices(assignment.NoFilter))
	cache.Clear()
	assert.False(t, cache.Has("A"))
	assert.Empty(t, cache.Pending([]string{"A"}))
}
