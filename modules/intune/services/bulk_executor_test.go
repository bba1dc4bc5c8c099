package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/assignment"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/eventbus"
)

func TestApply_NeverSendsSynthesizedIDs(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory(testApps()...)
	cache := NewReconciliationCache(dir, nil, "t", nil)
	target := assignment.AllDevices(assignment.NoFilter)
	local := cache.OptimisticInsert("A", assignment.IntentRequired, target)

	out := NewBulkExecutor(dir, cache, nil, nil, nil).
		Apply(context.Background(), OperationRemove, assignment.IntentRequired, target, []string{"A"})

	assert.Zero(t, dir.Calls("DeleteAssignment"))
	assert.Equal(t, 1, out.ErrorCount)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, local.ID, out.Failures[0].AssignmentID)
	assert.Empty(t, cache.Get("A"), "the post-batch refresh replaces the optimistic entry")
}

func TestApply_RefreshFailureKeepsAppPending(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory(testApps()...)
	dir.failList["A"] = remoteErr("list assignments", http.StatusServiceUnavailable)
	cache := NewReconciliationCache(dir, nil, "t", nil)
	target := assignment.AllUsers(assignment.NoFilter)

	out := NewBulkExecutor(dir, cache, nil, nil, nil).
		Apply(context.Background(), OperationAssign, assignment.IntentAvailable, target, []string{"A", "B"})

	assert.Equal(t, 2, out.SuccessCount)
	assert.NotEmpty(t, out.RefreshError)
	assert.Equal(t, []string{"A"}, cache.Pending([]string{"A", "B"}))
	list := cache.Get("A")
	require.Len(t, list, 1)
	assert.True(t, list[0].IsSynthesized())
}

func TestApply_CancelledContextStillRefreshes(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory(testApps()...)
	cache := NewReconciliationCache(dir, nil, "t", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewBulkExecutor(dir, cache, nil, nil, nil).
		Apply(ctx, OperationAssign, assignment.IntentRequired, assignment.AllDevices(assignment.NoFilter), []string{"A"})

	assert.Equal(t, 1, dir.Calls("ListAssignments"))
	assert.Empty(t, cache.Pending([]string{"A"}))
}

func TestApply_PublishesEvents(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory(testApps()...)
	bus := eventbus.NewEventPublisher(nil)
	var changes []*AssignmentsChangedEvent
	var batches []*BatchCompletedEvent
	bus.Subscribe(func(e *AssignmentsChangedEvent) { changes = append(changes, e) })
	bus.Subscribe(func(e *BatchCompletedEvent) { batches = append(batches, e) })

	cache := NewReconciliationCache(dir, bus, "contoso", nil)
	out := NewBulkExecutor(dir, cache, bus, nil, nil).
		Apply(context.Background(), OperationAssign, assignment.IntentRequired, assignment.AllDevices(assignment.NoFilter), []string{"A"})

	require.Len(t, changes, 2)
	assert.False(t, changes[0].Authoritative)
	assert.True(t, changes[1].Authoritative)
	require.Len(t, batches, 1)
	assert.Equal(t, "contoso", batches[0].Tenant)
	assert.Equal(t, out, batches[0].Outcome)
}

func TestApply_DeleteFailureKeepsCachedEntry(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory(testApps()...)
	target := assignment.AllDevices(assignment.NoFilter)
	dir.seed("A", assignment.IntentRequired, target)
	dir.failDelete["A"] = errors.New("connection reset")
	cache := NewReconciliationCache(dir, nil, "t", nil)
	require.NoError(t, cache.Refresh(context.Background(), []string{"A"}))

	out := NewBulkExecutor(dir, cache, nil, nil, nil).
		Apply(context.Background(), OperationRemove, assignment.IntentRequired, target, []string{"A"})

	assert.Equal(t, 1, out.ErrorCount)
	assert.Zero(t, out.Failures[0].Status)
	assert.Len(t, cache.Get("A"), 1)
}

func TestApply_AssignmentWithoutIDCountsAsFailure(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory(testApps()...)
	cache := NewReconciliationCache(dir, nil, "t", nil)
	target := assignment.AllDevices(assignment.NoFilter)
	cache.AuthoritativeReplace("A", []assignment.Assignment{{Intent: assignment.IntentRequired, Target: target}})

	out := NewBulkExecutor(dir, cache, nil, nil, nil).
		Apply(context.Background(), OperationRemove, assignment.IntentRequired, target, []string{"A", "B"})

	assert.Zero(t, dir.Calls("DeleteAssignment"))
	assert.Zero(t, out.SuccessCount)
	assert.Equal(t, 1, out.ErrorCount)
	assert.Equal(t, 1, out.NoMatchCount)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "A", out.Failures[0].AppID)
	assert.Equal(t, "assignment has no id", out.Failures[0].Message)
}
