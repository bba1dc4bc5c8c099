// Package auth acquires bearer tokens for the directory: silently from the cached
// session when possible, interactively otherwise.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/logging"
)

const DefaultAuthorityHost = "https://login.microsoftonline.com"

var (
	ErrNoCachedSession     = errors.New("no cached session")
	ErrInteractionRequired = errors.New("interactive sign-in is not available")
)

type Config struct {
	AuthorityHost string
	Tenant        string
	ClientID      string
	ClientSecret  string
	Scopes        []string
	// Resource is the audience used to build the app-only ".default" scope.
	Resource string
}

func (c Config) endpoint() oauth2.Endpoint {
	host := strings.TrimRight(c.AuthorityHost, "/")
	if host == "" {
		host = DefaultAuthorityHost
	}
	base := host + "/" + url.PathEscape(c.Tenant) + "/oauth2/v2.0"
	return oauth2.Endpoint{
		AuthURL:       base + "/authorize",
		TokenURL:      base + "/token",
		DeviceAuthURL: base + "/devicecode",
		AuthStyle:     oauth2.AuthStyleInParams,
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Tenant) == "" {
		return errors.New("tenant is required")
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return errors.New("client id is required")
	}
	return nil
}

// Prompter shows the device-code instructions to the operator.
type Prompter func(ctx context.Context, userCode, verificationURI string) error

type acquireFunc func(ctx context.Context, cached *oauth2.Token) (*oauth2.Token, error)

// Provider serializes token acquisition: one silent attempt, then one interactive attempt.
type Provider struct {
	silent      acquireFunc
	interactive acquireFunc
	httpClient  *http.Client
	log         *logrus.Entry

	mu    sync.Mutex
	token *oauth2.Token
}

type Option func(*Provider)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

func WithLogger(l *logrus.Entry) Option {
	return func(p *Provider) { p.log = l }
}

// WithInteractive replaces the interactive flow, e.g. for non-terminal hosts.
func WithInteractive(fn func(ctx context.Context) (*oauth2.Token, error)) Option {
	return func(p *Provider) {
		p.interactive = func(ctx context.Context, _ *oauth2.Token) (*oauth2.Token, error) { return fn(ctx) }
	}
}

func newProvider(silent, interactive acquireFunc, opts []Option) *Provider {
	p := &Provider{silent: silent, interactive: interactive, log: logging.Discard()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewDelegated signs in as a user: refresh-token renewal silently, device-code flow interactively.
func NewDelegated(cfg Config, prompt Prompter, opts ...Option) (*Provider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	oc := &oauth2.Config{ClientID: cfg.ClientID, Endpoint: cfg.endpoint(), Scopes: cfg.Scopes}

	silent := func(ctx context.Context, cached *oauth2.Token) (*oauth2.Token, error) {
		if cached == nil {
			return nil, ErrNoCachedSession
		}
		if cached.Valid() {
			return cached, nil
		}
		if cached.RefreshToken == "" {
			return nil, ErrNoCachedSession
		}
		return oc.TokenSource(ctx, cached).Token()
	}
	interactive := func(ctx context.Context, _ *oauth2.Token) (*oauth2.Token, error) {
		if prompt == nil {
			return nil, ErrInteractionRequired
		}
		da, err := oc.DeviceAuth(ctx)
		if err != nil {
			return nil, fmt.Errorf("device authorization: %w", err)
		}
		uri := da.VerificationURIComplete
		if uri == "" {
			uri = da.VerificationURI
		}
		if err := prompt(ctx, da.UserCode, uri); err != nil {
			return nil, err
		}
		return oc.DeviceAccessToken(ctx, da)
	}
	return newProvider(silent, interactive, opts), nil
}

// NewAppOnly uses the client-credentials grant. Both paths request a fresh token.
func NewAppOnly(cfg Config, opts ...Option) (*Provider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("client secret is required for app-only sign-in")
	}
	resource := strings.TrimRight(cfg.Resource, "/")
	if resource == "" {
		resource = "https://graph.microsoft.com"
	}
	ep := cfg.endpoint()
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     ep.TokenURL,
		Scopes:       []string{resource + "/.default"},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	silent := func(ctx context.Context, cached *oauth2.Token) (*oauth2.Token, error) {
		if cached != nil && cached.Valid() {
			return cached, nil
		}
		return cc.Token(ctx)
	}
	return newProvider(silent, silent, opts), nil
}

func (p *Provider) withClient(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// Token returns a valid access token, trying silent acquisition before the interactive flow.
func (p *Provider) Token(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", errors.New("context cannot be nil")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx = p.withClient(ctx)
	tok, err := p.silent(ctx, p.token)
	if err == nil {
		p.token = tok
		return tok.AccessToken, nil
	}
	p.log.WithError(err).Debug("silent token acquisition failed, falling back to interactive")

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	tok, err = p.interactive(ctx, p.token)
	if err != nil {
		return "", fmt.Errorf("interactive token acquisition: %w", err)
	}
	p.token = tok
	return tok.AccessToken, nil
}

// SignedIn reports whether a token is cached.
func (p *Provider) SignedIn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token != nil
}

// Forget drops the cached token; the next Token call goes interactive.
func (p *Provider) Forget() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = nil
}
