package services

import (
	"fmt"
	"strings"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/assignment"
)

const conflictExamples = 5

type Partition struct {
	Assignable  []string
	Conflicting []string
}

// ConflictResolver splits apps by whether they already hold the desired target with another intent.
type ConflictResolver struct {
	cache *ReconciliationCache
}

func NewConflictResolver(cache *ReconciliationCache) *ConflictResolver {
	return &ConflictResolver{cache: cache}
}

// Partition keeps input order. An existing assignment with the same key and the same intent
// does not conflict; the redundant create is left to the directory.
func (r *ConflictResolver) Partition(appIDs []string, intent assignment.Intent, key assignment.Key) Partition {
	var p Partition
	for _, appID := range appIDs {
		conflict := false
		for _, a := range r.cache.Get(appID) {
			if a.Target.Key() == key && a.Intent != intent {
				conflict = true
				break
			}
		}
		if conflict {
			p.Conflicting = append(p.Conflicting, appID)
		} else {
			p.Assignable = append(p.Assignable, appID)
		}
	}
	return p
}

// SummarizeNames lists the first five names and counts the rest.
func SummarizeNames(names []string) string {
	if len(names) <= conflictExamples {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more…", strings.Join(names[:conflictExamples], ", "), len(names)-conflictExamples)
}
