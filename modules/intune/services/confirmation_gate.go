package services

import (
	"fmt"
	"sync"
)

type OperationKind string

const (
	OperationAssign OperationKind = "assign"
	OperationRemove OperationKind = "remove"
)

// TargetDescriptor is the target as the operator typed it, before any name resolution.
type TargetDescriptor struct {
	Type       string `json:"type"`
	GroupName  string `json:"groupName,omitempty"`
	GroupMode  string `json:"groupMode,omitempty"`
	FilterMode string `json:"filterMode,omitempty"`
	FilterName string `json:"filterName,omitempty"`
}

// PendingConfirmation is the fingerprint compared by the gate. It carries the number of
// selected apps, not their identities.
type PendingConfirmation struct {
	Operation OperationKind    `json:"operation"`
	Intent    string           `json:"intent"`
	Target    TargetDescriptor `json:"target"`
	Count     int              `json:"count"`
}

func (p PendingConfirmation) String() string {
	return fmt.Sprintf("%s %s -> %s/%s for %d apps", p.Operation, p.Intent, p.Target.Type, p.Target.GroupName, p.Count)
}

// ConfirmationGate is a two-state machine: Idle or Armed with a fingerprint.
// An identical second request confirms; any other request re-arms.
type ConfirmationGate struct {
	mu    sync.Mutex
	armed *PendingConfirmation
}

// Request reports whether fp confirms the armed fingerprint. Otherwise fp becomes the
// armed fingerprint. A confirmed gate stays armed until Fire, so an attempt that aborts
// before executing can be repeated without re-confirming.
func (g *ConfirmationGate) Request(fp PendingConfirmation) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.armed != nil && *g.armed == fp {
		return true
	}
	g.armed = &fp
	return false
}

// Fire moves the gate to Idle once the confirmed action executes.
func (g *ConfirmationGate) Fire() {
	g.Clear()
}

func (g *ConfirmationGate) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = nil
}

func (g *ConfirmationGate) Pending() (PendingConfirmation, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.armed == nil {
		return PendingConfirmation{}, false
	}
	return *g.armed, true
}
