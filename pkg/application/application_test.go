package application

import (
	"errors"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct{ name string }

type stubController struct{ key string }

func (c stubController) Register(*mux.Router) {}
func (c stubController) Key() string          { return c.key }

type stubModule struct {
	name string
	err  error
}

func (m stubModule) Name() string { return m.name }
func (m stubModule) Register(app Application) error {
	if m.err != nil {
		return m.err
	}
	app.RegisterServices(&stubService{name: m.name})
	return nil
}

func TestServiceRegistry(t *testing.T) {
	t.Parallel()

	app := New(&ApplicationOptions{})
	svc := &stubService{name: "a"}
	app.RegisterServices(svc)

	got := app.Service(stubService{}).(*stubService)
	assert.Same(t, svc, got)
	assert.Panics(t, func() { app.Service(struct{ x int }{}) })
}

func TestControllersKeepRegistrationOrder(t *testing.T) {
	t.Parallel()

	app := New(&ApplicationOptions{})
	app.RegisterControllers(stubController{"b"}, stubController{"a"}, stubController{"b"})

	keys := []string{}
	for _, c := range app.Controllers() {
		keys = append(keys, c.Key())
	}
	assert.Equal(t, []string{"b", "a"}, keys)
}

func TestLoadModules(t *testing.T) {
	t.Parallel()

	app := New(&ApplicationOptions{})
	require.NoError(t, LoadModules(app, stubModule{name: "one"}))
	assert.Len(t, app.Services(), 1)

	err := LoadModules(app, stubModule{name: "broken", err: errors.New("boom")})
	require.ErrorContains(t, err, "broken")
}
