package intune

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/entities/tenant"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/infrastructure/graph"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/presentation/controllers"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/services"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/application"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/auth"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/configuration"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/metrics"
)

type ModuleOptions struct {
	Config *configuration.Configuration
	// Catalog overrides the tenants file named by the configuration.
	Catalog *tenant.Catalog
	// Prompter shows device-code instructions. Without one, delegated sign-in only
	// succeeds from a cached session.
	Prompter auth.Prompter
	// Factory replaces the Graph-backed directory, e.g. in tests.
	Factory    services.DirectoryFactory
	HTTPClient *http.Client
	// WithControllers registers the HTTP API.
	WithControllers bool
}

func NewModule(opts *ModuleOptions) application.Module {
	return &Module{options: opts}
}

type Module struct {
	options *ModuleOptions
}

func (m *Module) Register(app application.Application) error {
	cfg := m.options.Config
	if cfg == nil {
		return errors.New("intune module requires a configuration")
	}
	log := app.Logger().WithField("module", m.Name())

	catalog := m.options.Catalog
	if catalog == nil {
		c, err := tenant.LoadCatalog(cfg.TenantsFile)
		if err != nil {
			return errors.Wrap(err, "load tenant catalog")
		}
		catalog = c
	}

	factory := m.options.Factory
	if factory == nil {
		factory = NewDirectoryFactory(cfg, m.options.Prompter, m.options.HTTPClient, log)
	}

	bus := app.EventPublisher()
	sessions := services.NewSessionManager(factory, bus, &services.BusyFlag{}, log.WithField("component", "session"))
	app.RegisterServices(
		services.NewTenantService(catalog),
		sessions,
		services.NewBulkService(sessions, bus, log.WithField("component", "bulk")),
		services.NewSuggestionService(sessions, log.WithField("component", "suggest")),
		services.NewExportService(sessions, log.WithField("component", "export")),
	)

	if !m.options.WithControllers {
		return nil
	}
	app.RegisterControllers(controllers.NewIntuneAPIController(app))
	if cfg.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(cfg.Prometheus.Path))
	}
	return nil
}

func (m *Module) Name() string {
	return "intune"
}

// NewDirectoryFactory binds a Graph client to the credentials of each selected tenant.
// A configured client secret switches sign-in to the app-only flow.
func NewDirectoryFactory(cfg *configuration.Configuration, prompt auth.Prompter, httpClient *http.Client, log *logrus.Entry) services.DirectoryFactory {
	return func(desc tenant.Descriptor) (domain.DirectoryClient, services.Credentials, error) {
		authCfg := auth.Config{
			AuthorityHost: cfg.Auth.AuthorityHost,
			Tenant:        desc.Tenant,
			ClientID:      desc.ClientID,
			ClientSecret:  cfg.Auth.ClientSecret,
			Scopes:        cfg.Auth.Scopes,
			Resource:      cfg.Graph.BaseURL,
		}
		authOpts := []auth.Option{auth.WithLogger(log.WithField("tenant", desc.Tenant))}
		if httpClient != nil {
			authOpts = append(authOpts, auth.WithHTTPClient(httpClient))
		}

		var (
			provider *auth.Provider
			err      error
		)
		if cfg.Auth.ClientSecret != "" {
			provider, err = auth.NewAppOnly(authCfg, authOpts...)
		} else {
			provider, err = auth.NewDelegated(authCfg, prompt, authOpts...)
		}
		if err != nil {
			return nil, nil, errors.Wrap(err, "configure sign-in")
		}

		client, err := graph.NewClient(graph.Options{
			BaseURL:         cfg.Graph.BaseURL,
			HTTPClient:      httpClient,
			Tokens:          provider,
			RequestIDHeader: cfg.Graph.RequestIDHeader,
			RequestTimeout:  cfg.Graph.RequestTimeout,
			AppsPageSize:    cfg.Graph.AppsPageSize,
			AppsLimit:       cfg.Graph.AppsLimit,
			Logger:          log.WithField("tenant", desc.Tenant),
		})
		if err != nil {
			return nil, nil, err
		}
		return client, provider, nil
	}
}

// LogPrompter writes device-code instructions to the log, for hosts without a terminal.
func LogPrompter(log *logrus.Entry) auth.Prompter {
	return func(_ context.Context, userCode, verificationURI string) error {
		log.WithFields(logrus.Fields{"code": userCode, "url": verificationURI}).Warn("sign-in required: open the url and enter the code")
		return nil
	}
}
