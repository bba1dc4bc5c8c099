package intune_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/entities/tenant"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/infrastructure/graph"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/services"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/application"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/configuration"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/logging"
)

var contoso = tenant.Descriptor{Name: "Contoso", Tenant: "contoso.onmicrosoft.com", ClientID: "5d9f2a3c-1b7e-4c8d-9a0f-3e2b1c4d5e6f"}

func testConfig() *configuration.Configuration {
	cfg := &configuration.Configuration{}
	cfg.Graph.BaseURL = "https://graph.microsoft.com"
	cfg.Graph.AppsPageSize = 50
	cfg.Graph.AppsLimit = 500
	cfg.Auth.Scopes = []string{"https://graph.microsoft.com/.default"}
	cfg.Prometheus.Enabled = true
	cfg.Prometheus.Path = "/debug/prometheus"
	return cfg
}

func newApp() application.Application {
	return application.New(&application.ApplicationOptions{
		Logger: logging.ConsoleLogger(logrus.ErrorLevel, logging.FormatText),
	})
}

func TestModule_RegistersServicesAndControllers(t *testing.T) {
	catalog, err := tenant.NewCatalog([]tenant.Descriptor{contoso})
	require.NoError(t, err)

	app := newApp()
	err = application.LoadModules(app, intune.NewModule(&intune.ModuleOptions{
		Config:          testConfig(),
		Catalog:         catalog,
		WithControllers: true,
	}))
	require.NoError(t, err)

	for _, svc := range []interface{}{
		services.TenantService{},
		services.SessionManager{},
		services.BulkService{},
		services.SuggestionService{},
		services.ExportService{},
	} {
		assert.NotPanics(t, func() { app.Service(svc) })
	}

	keys := make([]string, 0, len(app.Controllers()))
	for _, c := range app.Controllers() {
		keys = append(keys, c.Key())
	}
	assert.Equal(t, []string{"/api/intune", "/debug/prometheus"}, keys)
}

func TestModule_WithoutControllers(t *testing.T) {
	catalog, err := tenant.NewCatalog([]tenant.Descriptor{contoso})
	require.NoError(t, err)

	app := newApp()
	require.NoError(t, application.LoadModules(app, intune.NewModule(&intune.ModuleOptions{
		Config:  testConfig(),
		Catalog: catalog,
	})))
	assert.Empty(t, app.Controllers())
}

func TestModule_MissingTenantsFile(t *testing.T) {
	cfg := testConfig()
	cfg.TenantsFile = t.TempDir() + "/missing.yaml"

	err := application.LoadModules(newApp(), intune.NewModule(&intune.ModuleOptions{Config: cfg}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load tenant catalog")
}

func TestDirectoryFactory_AppOnlyFlow(t *testing.T) {
	var tokenCalls int
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		assert.Equal(t, "/contoso.onmicrosoft.com/oauth2/v2.0/token", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"app-token","token_type":"Bearer","expires_in":3600}`))
	}))
	defer idp.Close()

	cfg := testConfig()
	cfg.Auth.AuthorityHost = idp.URL
	cfg.Auth.ClientSecret = "s3cret"

	factory := intune.NewDirectoryFactory(cfg, nil, idp.Client(), logging.Discard())
	dir, creds, err := factory(contoso)
	require.NoError(t, err)
	assert.IsType(t, &graph.Client{}, dir)
	assert.False(t, creds.SignedIn())

	token, err := creds.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "app-token", token)
	assert.True(t, creds.SignedIn())
	assert.Equal(t, 1, tokenCalls)

	creds.Forget()
	assert.False(t, creds.SignedIn())
}

func TestDirectoryFactory_DelegatedNeedsPrompt(t *testing.T) {
	factory := intune.NewDirectoryFactory(testConfig(), nil, nil, logging.Discard())
	_, creds, err := factory(contoso)
	require.NoError(t, err)

	_, err = creds.Token(context.Background())
	require.Error(t, err)
}
