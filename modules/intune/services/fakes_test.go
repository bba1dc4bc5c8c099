package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/assignment"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/entities/app"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/entities/tenant"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/eventbus"
)

// fakeDirectory is an in-memory directory with per-app failure injection and call counters.
type fakeDirectory struct {
	mu          sync.Mutex
	apps        []app.App
	assignments map[string][]assignment.Assignment
	groups      []domain.NamedObject
	filters     map[domain.APIVersion][]domain.NamedObject
	filterErr   map[domain.APIVersion]error
	failCreate  map[string]error
	failDelete  map[string]error
	failList    map[string]error
	calls       map[string]int
	deleted     []string
	seq         int
}

func newFakeDirectory(apps ...app.App) *fakeDirectory {
	return &fakeDirectory{
		apps:        apps,
		assignments: map[string][]assignment.Assignment{},
		filters:     map[domain.APIVersion][]domain.NamedObject{},
		filterErr:   map[domain.APIVersion]error{},
		failCreate:  map[string]error{},
		failDelete:  map[string]error{},
		failList:    map[string]error{},
		calls:       map[string]int{},
	}
}

var _ domain.DirectoryClient = (*fakeDirectory)(nil)

func remoteErr(op string, status int) error {
	return &domain.RemoteError{Operation: op, Status: status, Body: fmt.Sprintf(`{"error":{"code":"%d"}}`, status)}
}

func (f *fakeDirectory) count(op string) {
	f.calls[op]++
}

func (f *fakeDirectory) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Total counts every call made so far.
func (f *fakeDirectory) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeDirectory) Mutations() int {
	return f.Calls("CreateAssignment") + f.Calls("DeleteAssignment")
}

func (f *fakeDirectory) seed(appID string, intent assignment.Intent, target assignment.Target) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("srv-%d", f.seq)
	f.assignments[appID] = append(f.assignments[appID], assignment.Assignment{ID: id, Intent: intent, Target: target})
	return id
}

func (f *fakeDirectory) set(fn func(f *fakeDirectory)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeDirectory) ListApps(context.Context) ([]app.App, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ListApps")
	return append([]app.App(nil), f.apps...), nil
}

func (f *fakeDirectory) ListAssignments(_ context.Context, appID string) ([]assignment.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ListAssignments")
	if err := f.failList[appID]; err != nil {
		return nil, err
	}
	return append([]assignment.Assignment(nil), f.assignments[appID]...), nil
}

func (f *fakeDirectory) CreateAssignment(_ context.Context, appID string, intent assignment.Intent, target assignment.Target) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("CreateAssignment")
	if err := f.failCreate[appID]; err != nil {
		return err
	}
	f.seq++
	f.assignments[appID] = append(f.assignments[appID], assignment.Assignment{
		ID:     fmt.Sprintf("srv-%d", f.seq),
		Intent: intent,
		Target: target,
	})
	return nil
}

func (f *fakeDirectory) DeleteAssignment(_ context.Context, appID, assignmentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("DeleteAssignment")
	f.deleted = append(f.deleted, assignmentID)
	if err := f.failDelete[appID]; err != nil {
		return err
	}
	list := f.assignments[appID]
	for i, a := range list {
		if a.ID == assignmentID {
			f.assignments[appID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return remoteErr("delete assignment", http.StatusNotFound)
}

func (f *fakeDirectory) SearchGroupsByPrefix(_ context.Context, prefix string, limit int) ([]domain.NamedObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("SearchGroupsByPrefix")
	var out []domain.NamedObject
	for _, g := range f.groups {
		if strings.HasPrefix(strings.ToLower(g.DisplayName), strings.ToLower(prefix)) && len(out) < limit {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeDirectory) FindGroupsByName(_ context.Context, name string) ([]domain.NamedObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("FindGroupsByName")
	var out []domain.NamedObject
	for _, g := range f.groups {
		if strings.EqualFold(g.DisplayName, name) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeDirectory) SearchGroups(_ context.Context, text string) ([]domain.NamedObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("SearchGroups")
	var out []domain.NamedObject
	for _, g := range f.groups {
		if strings.Contains(strings.ToLower(g.DisplayName), strings.ToLower(text)) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeDirectory) ResolveGroupNames(_ context.Context, ids []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ResolveGroupNames")
	out := map[string]string{}
	for _, id := range ids {
		for _, g := range f.groups {
			if g.ID == id {
				out[id] = g.DisplayName
			}
		}
	}
	return out, nil
}

func (f *fakeDirectory) ListAssignmentFilters(_ context.Context, version domain.APIVersion) ([]domain.NamedObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ListAssignmentFilters/" + string(version))
	if err := f.filterErr[version]; err != nil {
		return nil, err
	}
	return append([]domain.NamedObject(nil), f.filters[version]...), nil
}

type fakeCredentials struct {
	mu       sync.Mutex
	signedIn bool
	err      error
}

func (c *fakeCredentials) Token(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	c.signedIn = true
	return "token", nil
}

func (c *fakeCredentials) SignedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signedIn
}

func (c *fakeCredentials) Forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signedIn = false
}

var testTenant = tenant.Descriptor{Name: "Contoso", Tenant: "contoso.onmicrosoft.com", ClientID: "5d9f2a3c-1b7e-4c8d-9a0f-3e2b1c4d5e6f"}

func testApps() []app.App {
	return []app.App{
		{ID: "A", DisplayName: "Alpha", Publisher: "Contoso", TypeTag: "#microsoft.graph.win32LobApp"},
		{ID: "B", DisplayName: "Bravo", Publisher: "Fabrikam", TypeTag: "#microsoft.graph.iosStoreApp"},
		{ID: "C", DisplayName: "Charlie", Publisher: "Contoso", TypeTag: "#microsoft.graph.androidManagedStoreApp"},
	}
}

type harness struct {
	dir      *fakeDirectory
	creds    *fakeCredentials
	bus      eventbus.EventBus
	sessions *SessionManager
	bulk     *BulkService
}

// newHarness selects the test tenant. With signIn set it also loads apps and assignments.
func newHarness(t *testing.T, dir *fakeDirectory, signIn bool) *harness {
	t.Helper()
	h := &harness{dir: dir, creds: &fakeCredentials{}, bus: eventbus.NewEventPublisher(nil)}
	h.sessions = NewSessionManager(func(tenant.Descriptor) (domain.DirectoryClient, Credentials, error) {
		return dir, h.creds, nil
	}, h.bus, &BusyFlag{}, nil)
	h.bulk = NewBulkService(h.sessions, h.bus, nil)

	_, err := h.sessions.SelectTenant(testTenant)
	require.NoError(t, err)
	if signIn {
		_, err = h.sessions.SignIn(context.Background(), true)
		require.NoError(t, err)
	}
	return h
}

func (h *harness) session(t *testing.T) *Session {
	t.Helper()
	sess, err := h.sessions.Current()
	require.NoError(t, err)
	return sess
}

func groupTarget(t *testing.T, id string, mode assignment.GroupMode, filter assignment.Filter) assignment.Target {
	t.Helper()
	target, err := assignment.Group(id, mode, filter)
	require.NoError(t, err)
	return target
}
