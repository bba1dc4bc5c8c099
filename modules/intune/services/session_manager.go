package services

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/assignment"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/entities/tenant"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/eventbus"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/logging"
)

// DirectoryFactory builds the directory client and credentials bound to a tenant.
type DirectoryFactory func(desc tenant.Descriptor) (domain.DirectoryClient, Credentials, error)

type SessionManager struct {
	factory DirectoryFactory
	bus     eventbus.EventBus
	busy    *BusyFlag
	log     *logrus.Entry

	mu      sync.RWMutex
	current *Session
}

func NewSessionManager(factory DirectoryFactory, bus eventbus.EventBus, busy *BusyFlag, log *logrus.Entry) *SessionManager {
	if log == nil {
		log = logging.Discard()
	}
	if busy == nil {
		busy = &BusyFlag{}
	}
	return &SessionManager{factory: factory, bus: bus, busy: busy, log: log}
}

func (m *SessionManager) Busy() *BusyFlag {
	return m.busy
}

// SelectTenant destroys the current session and starts an empty one for desc.
func (m *SessionManager) SelectTenant(desc tenant.Descriptor) (*Session, error) {
	release, err := m.busy.TryAcquire()
	if err != nil {
		return nil, err
	}
	defer release()

	dir, creds, err := m.factory(desc)
	if err != nil {
		return nil, errors.Wrapf(err, "connect tenant %s", desc.DisplayName())
	}
	sess := newSession(desc, dir, creds, m.bus, m.log)

	m.mu.Lock()
	prev := m.current
	m.current = sess
	m.mu.Unlock()
	if prev != nil {
		prev.close()
	}

	m.log.WithField("tenant", desc.Tenant).Info("tenant selected")
	m.publish(desc.Tenant, SessionSelected)
	return sess, nil
}

// Current returns the active session or ErrNoTenant.
func (m *SessionManager) Current() (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, ErrNoTenant
	}
	return m.current, nil
}

// SignIn acquires a token and loads the app list. With loadAssignments set, the assignments
// of every app are fetched too; otherwise callers hydrate what they need with LoadSelection.
func (m *SessionManager) SignIn(ctx context.Context, loadAssignments bool) (*Session, error) {
	sess, err := m.Current()
	if err != nil {
		return nil, err
	}
	release, err := m.busy.TryAcquire()
	if err != nil {
		return nil, err
	}
	defer release()

	log := sess.log
	if _, err := sess.Credentials.Token(ctx); err != nil {
		return nil, errors.Wrap(err, "sign in")
	}

	// Filter names are cosmetic here; a missing permission must not block sign-in.
	primeFilterNames(ctx, sess)

	apps, err := sess.Directory.ListApps(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load apps")
	}
	sess.setApps(apps)
	log.WithField("apps", len(apps)).Info("apps loaded")

	if loadAssignments {
		ids := make([]string, 0, len(apps))
		for _, a := range apps {
			ids = append(ids, a.ID)
		}
		if err := m.hydrate(ctx, sess, ids); err != nil {
			log.WithError(err).Warn("some assignments could not be loaded")
		}
	}

	m.publish(sess.Tenant.Tenant, SessionSignedIn)
	return sess, nil
}

// LoadSelection fetches assignments for the given apps unless they are already cached.
func (m *SessionManager) LoadSelection(ctx context.Context, appIDs []string) error {
	sess, err := m.Current()
	if err != nil {
		return err
	}
	if !sess.SignedIn() {
		return ErrNotSignedIn
	}
	var missing []string
	for _, id := range unique(appIDs) {
		if !sess.Assignments.Has(id) {
			missing = append(missing, id)
		}
	}
	return m.hydrate(ctx, sess, missing)
}

// Refresh re-fetches assignments of the given apps, or of every loaded app when none are given.
func (m *SessionManager) Refresh(ctx context.Context, appIDs []string) error {
	sess, err := m.Current()
	if err != nil {
		return err
	}
	if !sess.SignedIn() {
		return ErrNotSignedIn
	}
	release, err := m.busy.TryAcquire()
	if err != nil {
		return err
	}
	defer release()

	if len(appIDs) == 0 {
		sess.FilterListing.Invalidate()
		primeFilterNames(ctx, sess)
		for _, a := range sess.Apps() {
			appIDs = append(appIDs, a.ID)
		}
	}
	return m.hydrate(ctx, sess, appIDs)
}

func primeFilterNames(ctx context.Context, sess *Session) {
	items, err := sess.FilterListing.All(ctx)
	if err != nil {
		sess.log.WithError(err).Warn("assignment filters unavailable, filter names will show as ids")
		return
	}
	for _, it := range items {
		sess.Filters.RememberName(it.ID, it.DisplayName)
	}
}

func (m *SessionManager) hydrate(ctx context.Context, sess *Session, appIDs []string) error {
	if len(appIDs) == 0 {
		return nil
	}
	refreshErr := sess.Assignments.Refresh(ctx, appIDs)
	m.resolveGroupNames(ctx, sess, appIDs)
	return refreshErr
}

// resolveGroupNames looks up display names for group ids the session has not seen yet.
func (m *SessionManager) resolveGroupNames(ctx context.Context, sess *Session, appIDs []string) {
	var ids []string
	for _, appID := range appIDs {
		for _, a := range sess.Assignments.Get(appID) {
			if a.Target.Kind() != assignment.KindGroup {
				continue
			}
			if sess.Groups.NameOf(a.Target.GroupID()) == "" {
				ids = append(ids, a.Target.GroupID())
			}
		}
	}
	ids = unique(ids)
	if len(ids) == 0 {
		return
	}
	names, err := sess.Directory.ResolveGroupNames(ctx, ids)
	if err != nil {
		sess.log.WithError(err).Warn("group names unavailable, groups will show as ids")
		return
	}
	for id, name := range names {
		sess.Groups.Upsert(id, name)
	}
}

// SignOut forgets the credentials and drops every cache of the current session.
func (m *SessionManager) SignOut(_ context.Context) error {
	sess, err := m.Current()
	if err != nil {
		return err
	}
	release, err := m.busy.TryAcquire()
	if err != nil {
		return err
	}
	defer release()

	sess.close()
	m.log.WithField("tenant", sess.Tenant.Tenant).Info("signed out")
	m.publish(sess.Tenant.Tenant, SessionSignedOut)
	return nil
}

func (m *SessionManager) publish(tenantID, kind string) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(&SessionEvent{Tenant: tenantID, Kind: kind})
}
