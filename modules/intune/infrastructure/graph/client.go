package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/logging"
)

const (
	DefaultBaseURL         = "https://graph.microsoft.com"
	defaultAppsPageSize    = 50
	defaultAppsLimit       = 500
	defaultRequestIDHeader = "client-request-id"
)

// TokenSource yields a bearer token for the directory. The identity layer decides
// whether it comes from a silent refresh or an interactive sign-in.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Options struct {
	BaseURL         string
	HTTPClient      *http.Client
	Tokens          TokenSource
	RequestIDHeader string
	// RequestTimeout bounds every single remote call. Zero disables the bound.
	RequestTimeout time.Duration
	AppsPageSize   int
	AppsLimit      int
	Logger         *logrus.Entry
}

// Client talks to the Microsoft Graph REST API.
type Client struct {
	baseURL         *url.URL
	httpClient      *http.Client
	tokens          TokenSource
	requestIDHeader string
	requestTimeout  time.Duration
	appsPageSize    int
	appsLimit       int
	log             *logrus.Entry
	tracer          trace.Tracer
}

var _ domain.DirectoryClient = (*Client)(nil)

func NewClient(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid graph base url: %q", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	c := &Client{
		baseURL:         u,
		httpClient:      opts.HTTPClient,
		tokens:          opts.Tokens,
		requestIDHeader: opts.RequestIDHeader,
		requestTimeout:  opts.RequestTimeout,
		appsPageSize:    opts.AppsPageSize,
		appsLimit:       opts.AppsLimit,
		log:             opts.Logger,
		tracer:          otel.Tracer("github.com/rafallz10100/IntuneAppBulkAssignment/graph"),
	}
	if c.httpClient == nil {
		c.httpClient = newHTTPClient()
	}
	if c.requestIDHeader == "" {
		c.requestIDHeader = defaultRequestIDHeader
	}
	if c.appsPageSize <= 0 {
		c.appsPageSize = defaultAppsPageSize
	}
	if c.appsLimit <= 0 {
		c.appsLimit = defaultAppsLimit
	}
	if c.log == nil {
		c.log = logging.Discard()
	}
	return c, nil
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 50,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

type request struct {
	op      string
	method  string
	version domain.APIVersion
	path    string
	query   url.Values
	body    any
	header  http.Header
	// next is set when following a continuation link and replaces version/path/query.
	next *url.URL
}

func (c *Client) endpoint(r request) *url.URL {
	if r.next != nil {
		return r.next
	}
	u := *c.baseURL
	u.Path = u.Path + "/" + string(r.version) + r.path
	if len(r.query) > 0 {
		u.RawQuery = encodeQuery(r.query)
	}
	return &u
}

// encodeQuery escapes spaces as %20; Graph rejects '+' inside OData expressions on some endpoints.
func encodeQuery(q url.Values) string {
	return strings.ReplaceAll(q.Encode(), "+", "%20")
}

// doJSON performs one call and decodes a 2xx body into out. Non-2xx statuses come back as
// *domain.RemoteError with the body verbatim.
func (c *Client) doJSON(ctx context.Context, r request, out any) error {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	ctx, span := c.tracer.Start(ctx, "graph "+r.op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	status, err := c.send(ctx, r, out)
	span.SetAttributes(
		attribute.String("http.method", r.method),
		attribute.Int("http.status_code", status),
	)
	recordRequest(r.op, status, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) send(ctx context.Context, r request, out any) (int, error) {
	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return 0, errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(b)
	}

	target := c.endpoint(r)
	req, err := http.NewRequestWithContext(ctx, r.method, target.String(), body)
	if err != nil {
		return 0, errors.Wrap(err, "build request")
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set(c.requestIDHeader, requestID)
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return 0, errors.Wrap(err, "acquire token")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	log := c.log.WithFields(logrus.Fields{"op": r.op, "request_id": requestID})
	log.WithField("url", target.Redacted()).Debug("graph request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "%s %s", r.method, r.op)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.WithField("status", resp.StatusCode).Warn("graph request failed")
		return resp.StatusCode, &domain.RemoteError{
			Operation: r.op,
			Status:    resp.StatusCode,
			Body:      strings.TrimSpace(string(respBody)),
		}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return resp.StatusCode, errors.Wrapf(err, "decode %s response", r.op)
	}
	return resp.StatusCode, nil
}

type page[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// listAll follows continuation links until exhausted, or until stop reports true for
// the number of items collected so far.
func listAll[T any](ctx context.Context, c *Client, r request, stop func(n int) bool) ([]T, error) {
	var out []T
	for {
		var p page[T]
		if err := c.doJSON(ctx, r, &p); err != nil {
			return nil, err
		}
		out = append(out, p.Value...)
		if p.NextLink == "" || (stop != nil && stop(len(out))) {
			return out, nil
		}
		next, err := c.followLink(p.NextLink)
		if err != nil {
			return nil, err
		}
		r = request{op: r.op, method: http.MethodGet, header: r.header, next: next}
	}
}

// followLink refuses continuation links that leave the configured host so the bearer token stays there.
func (c *Client) followLink(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse next link")
	}
	if !u.IsAbs() {
		return c.baseURL.ResolveReference(u), nil
	}
	if !strings.EqualFold(u.Scheme, c.baseURL.Scheme) || !strings.EqualFold(u.Host, c.baseURL.Host) {
		return nil, errors.Errorf("next link points to foreign host %q", u.Host)
	}
	return u, nil
}

// odataLiteral quotes s as an OData string literal.
func odataLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
