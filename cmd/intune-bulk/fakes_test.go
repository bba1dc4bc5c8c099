package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/assignment"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/entities/app"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/entities/tenant"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/services"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/configuration"
)

type stubDirectory struct {
	mu          sync.Mutex
	apps        []app.App
	assignments map[string][]assignment.Assignment
	groups      []domain.NamedObject
	filters     []domain.NamedObject
	failCreate  map[string]error
	creates     int
	deletes     int
	seq         int
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		apps: []app.App{
			{ID: "A", DisplayName: "Alpha", Publisher: "Contoso", TypeTag: "#microsoft.graph.win32LobApp"},
			{ID: "B", DisplayName: "Bravo", Publisher: "Fabrikam", TypeTag: "#microsoft.graph.iosStoreApp"},
			{ID: "C", DisplayName: "Charlie", Publisher: "Contoso", TypeTag: "#microsoft.graph.win32LobApp"},
		},
		assignments: map[string][]assignment.Assignment{},
		groups:      []domain.NamedObject{{ID: "g-1", DisplayName: "Pilot Devices"}, {ID: "g-2", DisplayName: "Pilot Users"}},
		filters:     []domain.NamedObject{{ID: "f-1", DisplayName: "Corporate Windows"}},
		failCreate:  map[string]error{},
	}
}

func (d *stubDirectory) ListApps(context.Context) ([]app.App, error) {
	return d.apps, nil
}

func (d *stubDirectory) ListAssignments(_ context.Context, appID string) ([]assignment.Assignment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]assignment.Assignment(nil), d.assignments[appID]...), nil
}

func (d *stubDirectory) CreateAssignment(_ context.Context, appID string, intent assignment.Intent, target assignment.Target) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.creates++
	if err := d.failCreate[appID]; err != nil {
		return err
	}
	d.seq++
	d.assignments[appID] = append(d.assignments[appID], assignment.Assignment{ID: fmt.Sprintf("srv-%d", d.seq), Intent: intent, Target: target})
	return nil
}

func (d *stubDirectory) DeleteAssignment(_ context.Context, appID, assignmentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deletes++
	list := d.assignments[appID]
	for i, a := range list {
		if a.ID == assignmentID {
			d.assignments[appID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return &domain.RemoteError{Operation: "delete assignment", Status: 404}
}

func (d *stubDirectory) SearchGroupsByPrefix(_ context.Context, prefix string, limit int) ([]domain.NamedObject, error) {
	var out []domain.NamedObject
	for _, g := range d.groups {
		if strings.HasPrefix(strings.ToLower(g.DisplayName), strings.ToLower(prefix)) && len(out) < limit {
			out = append(out, g)
		}
	}
	return out, nil
}

func (d *stubDirectory) FindGroupsByName(_ context.Context, name string) ([]domain.NamedObject, error) {
	var out []domain.NamedObject
	for _, g := range d.groups {
		if strings.EqualFold(g.DisplayName, name) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (d *stubDirectory) SearchGroups(ctx context.Context, text string) ([]domain.NamedObject, error) {
	return d.FindGroupsByName(ctx, text)
}

func (d *stubDirectory) ResolveGroupNames(_ context.Context, ids []string) (map[string]string, error) {
	out := map[string]string{}
	for _, g := range d.groups {
		for _, id := range ids {
			if g.ID == id {
				out[id] = g.DisplayName
			}
		}
	}
	return out, nil
}

func (d *stubDirectory) ListAssignmentFilters(context.Context, domain.APIVersion) ([]domain.NamedObject, error) {
	return d.filters, nil
}

type stubCredentials struct{ signedIn bool }

func (c *stubCredentials) Token(context.Context) (string, error) {
	c.signedIn = true
	return "token", nil
}
func (c *stubCredentials) SignedIn() bool { return c.signedIn }
func (c *stubCredentials) Forget()        { c.signedIn = false }

type cliRun struct {
	out    *bytes.Buffer
	errOut *bytes.Buffer
	err    error
}

// run executes one CLI invocation against dir, with stdin as the terminal input.
func run(t *testing.T, dir *stubDirectory, stdin string, args ...string) cliRun {
	t.Helper()
	catalog, err := tenant.NewCatalog([]tenant.Descriptor{
		{Name: "Contoso", Tenant: "contoso.onmicrosoft.com", ClientID: "5d9f2a3c-1b7e-4c8d-9a0f-3e2b1c4d5e6f"},
	})
	require.NoError(t, err)

	res := cliRun{out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	rt := &runtime{
		in:      strings.NewReader(stdin),
		out:     res.out,
		errOut:  res.errOut,
		conf:    &configuration.Configuration{},
		catalog: catalog,
		factory: func(tenant.Descriptor) (domain.DirectoryClient, services.Credentials, error) {
			return dir, &stubCredentials{}, nil
		},
	}
	cmd := newRootCmd(rt)
	cmd.SetArgs(args)
	res.err = cmd.ExecuteContext(context.Background())
	return res
}
