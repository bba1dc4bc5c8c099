package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/assignment"
)

func TestConflictResolver_Partition(t *testing.T) {
	t.Parallel()

	cache := NewReconciliationCache(newFakeDirectory(), nil, "t", nil)
	k := groupTarget(t, "g1", assignment.GroupInclude, assignment.NoFilter)
	other := groupTarget(t, "g2", assignment.GroupInclude, assignment.NoFilter)
	cache.AuthoritativeReplace("A", []assignment.Assignment{{ID: "1", Intent: assignment.IntentRequired, Target: k}})
	cache.AuthoritativeReplace("B", []assignment.Assignment{{ID: "2", Intent: assignment.IntentAvailable, Target: other}})

	r := NewConflictResolver(cache)

	p := r.Partition([]string{"A", "B", "C"}, assignment.IntentAvailable, k.Key())
	assert.Equal(t, []string{"A"}, p.Conflicting)
	assert.Equal(t, []string{"B", "C"}, p.Assignable)

	p = r.Partition([]string{"A"}, assignment.IntentRequired, k.Key())
	assert.Empty(t, p.Conflicting)
	assert.Equal(t, []string{"A"}, p.Assignable)
}

func TestSummarizeNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a, b", SummarizeNames([]string{"a", "b"}))
	assert.Equal(t, "a, b, c, d, e", SummarizeNames([]string{"a", "b", "c", "d", "e"}))
	assert.Equal(t, "a, b, c, d, e and 2 more…", SummarizeNames([]string{"a", "b", "c", "d", "e", "f", "g"}))
}
