package services

import (
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/assignment"
)

// AssignmentsChangedEvent is published whenever the cached assignments of an app change,
// so views can re-render without waiting for the end of a batch.
type AssignmentsChangedEvent struct {
	Tenant      string
	AppID       string
	Assignments []assignment.Assignment
	// Authoritative is false for optimistic updates made during a batch.
	Authoritative bool
}

type BatchCompletedEvent struct {
	Tenant  string
	Outcome Outcome
}

type SessionEvent struct {
	Tenant string
	Kind   string
}

const (
	SessionSelected  = "selected"
	SessionSignedIn  = "signed_in"
	SessionSignedOut = "signed_out"
)
