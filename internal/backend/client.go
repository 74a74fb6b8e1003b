// Package backend is the agent every console call to the shop REST API goes
// through. It attaches the bearer token, performs one attempt per call and
// converts every failure into a single notification plus a structured
// *APIError returned to the caller.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"milkadmin/internal/platform/tracer"
	"milkadmin/pkg/platform/circuit"
	"milkadmin/pkg/requestcontext"
)

const (
	headerRequestID = "X-Request-ID"
	maxResponseSize = 4 << 20
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource supplies the bearer token for outgoing requests. An empty token
// with a nil error sends the request without Authorization.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) AccessToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// UnauthorizedHandler is implemented by a TokenSource that wants to hear when
// the backend rejects one of its tokens with 401. A 403 is a permission
// failure and is not reported. It runs after the failure has been reported
// and before Do returns.
type UnauthorizedHandler interface {
	Unauthorized(ctx context.Context, token string)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client performs calls against the shop backend.
type Client struct {
	baseURL  *url.URL
	http     HTTPDoer
	tokens   TokenSource
	notifier Notifier
	breaker  *circuit.Breaker
	metrics  *Metrics
	tracer   tracer.Tracer
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		c.http = doer
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithNotifier sets the sink receiving one notification per failed call.
func WithNotifier(n Notifier) Option {
	return func(c *Client) {
		c.notifier = n
	}
}

// WithBreaker enables fail-fast behavior after repeated transport failures.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a backend client rooted at cfg.BaseURL.
func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend base url %q must be absolute", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		baseURL:  base,
		http:     &http.Client{Timeout: cfg.Timeout},
		notifier: NopNotifier{},
		tracer:   tracer.NewNoop(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root every path is resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Breaker returns the client's circuit breaker, or nil when none is configured.
func (c *Client) Breaker() *circuit.Breaker {
	return c.breaker
}

type callOptions struct {
	query  url.Values
	bearer *string
	check  func(body []byte) error
}

// CallOption adjusts a single call.
type CallOption func(*callOptions)

// WithQuery appends query parameters to the request URL.
func WithQuery(q url.Values) CallOption {
	return func(o *callOptions) {
		if o.query == nil {
			o.query = url.Values{}
		}
		for k, vs := range q {
			for _, v := range vs {
				o.query.Add(k, v)
			}
		}
	}
}

// WithBearer sends token instead of the one from the client's TokenSource.
func WithBearer(token string) CallOption {
	return func(o *callOptions) {
		o.bearer = &token
	}
}

// WithResponseCheck validates a 2xx body before it is decoded. A failing
// check turns the call into a KindUnknown error wrapping ErrSchema.
func WithResponseCheck(check func(body []byte) error) CallOption {
	return func(o *callOptions) {
		o.check = check
	}
}

func (c *Client) Get(ctx context.Context, path string, out any, opts ...CallOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...CallOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...CallOption) error {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, out any, opts ...CallOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out, opts...)
}

// Do sends one request and decodes a 2xx JSON body into out (when non-nil).
// Every returned error is an *APIError; the notifier has already seen it.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...CallOption) (err error) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := c.tracer.Start(ctx, tracer.SpanBackendCall,
		tracer.String(tracer.AttrHTTPMethod, method),
		tracer.String(tracer.AttrHTTPPath, path),
	)
	start := c.now()
	status := 0
	defer func() {
		kind := KindOf(err)
		c.metrics.observe(method, path, kind, c.now().Sub(start))
		if kind != "" {
			span.SetAttributes(tracer.String(tracer.AttrErrorKind, string(kind)))
		}
		if status > 0 {
			span.SetAttributes(tracer.Int(tracer.AttrHTTPStatus, status))
		}
		span.End(err)
	}()

	apiErr := func(kind Kind, title string, cause error) *APIError {
		return &APIError{Kind: kind, Status: status, Method: method, Path: path, Title: title, Err: cause}
	}

	if c.breaker != nil && !c.breaker.Allow() {
		span.SetAttributes(tracer.Bool(tracer.AttrCircuitState, true))
		return c.fail(ctx, apiErr(KindUnavailable, "", ErrCircuitOpen))
	}

	req, sourced, buildErr := c.newRequest(ctx, method, path, body, o)
	if buildErr != nil {
		if errors.Is(buildErr, errNoToken) {
			return c.fail(ctx, apiErr(KindAuth, "Your session has expired. Please log in again.", buildErr))
		}
		return c.fail(ctx, apiErr(KindUnknown, "", buildErr))
	}

	resp, doErr := c.http.Do(req)
	if doErr != nil {
		if ctx.Err() != nil {
			// The console request went away; nobody is left to notify.
			return apiErr(KindUnavailable, "", ctx.Err())
		}
		c.recordTransport(ctx, false)
		return c.fail(ctx, apiErr(KindUnavailable, "", doErr))
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if readErr != nil {
		c.recordTransport(ctx, false)
		return c.fail(ctx, apiErr(KindUnavailable, "", readErr))
	}
	c.recordTransport(ctx, true)

	if status < 200 || status > 299 {
		failed := c.fail(ctx, newStatusError(method, path, status, respBody))
		if status == http.StatusUnauthorized && sourced != "" {
			c.rejected(ctx, sourced)
		}
		return failed
	}

	if o.check != nil {
		if checkErr := o.check(respBody); checkErr != nil {
			return c.fail(ctx, apiErr(KindUnknown, "", fmt.Errorf("%w: %w", ErrSchema, checkErr)))
		}
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if decodeErr := json.Unmarshal(respBody, out); decodeErr != nil {
		return c.fail(ctx, apiErr(KindUnknown, "", fmt.Errorf("decode response: %w", decodeErr)))
	}
	return nil
}

var errNoToken = errors.New("no access token")

// newRequest builds the outgoing request. sourced is the bearer token when it
// came from the client's TokenSource rather than a WithBearer override.
func (c *Client) newRequest(ctx context.Context, method, path string, body any, o callOptions) (req *http.Request, sourced string, err error) {
	target := c.resolve(path, o.query)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err = http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		req.Header.Set(headerRequestID, requestID)
	}

	token, err := c.bearer(ctx, o)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", errNoToken, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if o.bearer == nil {
		sourced = token
	}
	return req, sourced, nil
}

// rejected tells the token source that the backend refused token.
func (c *Client) rejected(ctx context.Context, token string) {
	h, ok := c.tokens.(UnauthorizedHandler)
	if !ok {
		return
	}
	c.logger.DebugContext(ctx, "backend rejected access token")
	h.Unauthorized(ctx, token)
}

func (c *Client) bearer(ctx context.Context, o callOptions) (string, error) {
	if o.bearer != nil {
		return *o.bearer, nil
	}
	if c.tokens == nil {
		return "", nil
	}
	return c.tokens.AccessToken(ctx)
}

func (c *Client) resolve(path string, query url.Values) string {
	ref := &url.URL{Path: strings.TrimPrefix(path, "/")}
	if i := strings.IndexByte(ref.Path, '?'); i >= 0 {
		ref.RawQuery = ref.Path[i+1:]
		ref.Path = ref.Path[:i]
	}
	u := c.baseURL.ResolveReference(ref)
	if len(query) > 0 {
		merged := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				merged.Add(k, v)
			}
		}
		u.RawQuery = merged.Encode()
	}
	return u.String()
}

func (c *Client) recordTransport(ctx context.Context, ok bool) {
	if c.breaker == nil {
		return
	}
	if ok {
		if change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.InfoContext(ctx, "backend circuit closed", "breaker", c.breaker.Name())
			c.metrics.setCircuitOpen(false)
		}
		return
	}
	if change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "backend circuit opened", "breaker", c.breaker.Name())
		c.metrics.setCircuitOpen(true)
	}
}

// fail is the single place a failed call is reported.
func (c *Client) fail(ctx context.Context, err *APIError) error {
	c.notifier.Notify(ctx, err)
	return err
}
