package services

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/assignment"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/entities/app"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/entities/tenant"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/eventbus"
)

// Credentials is the identity collaborator of a session.
type Credentials interface {
	Token(ctx context.Context) (string, error)
	SignedIn() bool
	Forget()
}

// Session is the tenant-scoped store: every cache, gate and resolver lives here and is
// dropped together on tenant switch or sign-out.
type Session struct {
	Tenant      tenant.Descriptor
	Directory   domain.DirectoryClient
	Credentials Credentials

	Assignments    *ReconciliationCache
	Groups         *NameCache
	Filters        *NameCache
	FilterListing  *FilterListing
	GroupResolver  *NameResolver
	FilterResolver *NameResolver

	gates map[OperationKind]*ConfirmationGate
	log   *logrus.Entry

	mu       sync.RWMutex
	apps     []app.App
	appIndex map[string]app.App
	signedIn bool
}

var _ assignment.NameLookup = (*Session)(nil)

func newSession(desc tenant.Descriptor, dir domain.DirectoryClient, creds Credentials, bus eventbus.EventBus, log *logrus.Entry) *Session {
	log = log.WithField("tenant", desc.Tenant)
	groups, filters := NewNameCache(), NewNameCache()
	listing := NewFilterListing(dir, log)
	return &Session{
		Tenant:         desc,
		Directory:      dir,
		Credentials:    creds,
		Assignments:    NewReconciliationCache(dir, bus, desc.Tenant, log),
		Groups:         groups,
		Filters:        filters,
		FilterListing:  listing,
		GroupResolver:  NewGroupResolver(groups, GroupListing{Directory: dir, Log: log}, log),
		FilterResolver: NewFilterResolver(filters, listing, log),
		gates: map[OperationKind]*ConfirmationGate{
			OperationAssign: {},
			OperationRemove: {},
		},
		log:      log,
		appIndex: map[string]app.App{},
	}
}

// Gate returns the confirmation gate of an operation kind.
func (s *Session) Gate(op OperationKind) *ConfirmationGate {
	return s.gates[op]
}

func (s *Session) SignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signedIn
}

func (s *Session) setApps(apps []app.App) {
	index := make(map[string]app.App, len(apps))
	for _, a := range apps {
		index[a.ID] = a
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps = apps
	s.appIndex = index
	s.signedIn = true
}

// Apps returns the loaded app list in directory order.
func (s *Session) Apps() []app.App {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]app.App, len(s.apps))
	copy(out, s.apps)
	return out
}

func (s *Session) App(id string) (app.App, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appIndex[id]
	return a, ok
}

func (s *Session) AppName(id string) string {
	if a, ok := s.App(id); ok {
		return a.Name()
	}
	return id
}

func (s *Session) GroupName(id string) string {
	return s.Groups.NameOf(id)
}

func (s *Session) FilterName(id string) string {
	return s.Filters.NameOf(id)
}

// close forgets credentials and drops every cache.
func (s *Session) close() {
	if s.Credentials != nil {
		s.Credentials.Forget()
	}
	for _, g := range s.gates {
		g.Clear()
	}
	s.Assignments.Clear()
	s.Groups.Clear()
	s.Filters.Clear()
	s.FilterListing.Invalidate()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps = nil
	s.appIndex = map[string]app.App{}
	s.signedIn = false
}
