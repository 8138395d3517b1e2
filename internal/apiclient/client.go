// Package apiclient is the HTTP adapter to the CRM REST API. Every request
// carries the caller's bearer credential and every failure comes back as a
// *model.Error with an explicit kind.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pitabwire/crmconsole/internal/config"
	"github.com/pitabwire/crmconsole/internal/observability"
	"github.com/pitabwire/crmconsole/model"
)

// TokenSource yields the bearer credential for outgoing requests. An empty
// token sends the request without an Authorization header.
type TokenSource interface {
	Get(ctx context.Context) (string, error)
}

// ForwardedToken reads the credential from the request context. The BFF uses
// it to pass the browser's token through unchanged.
type ForwardedToken struct{}

// Get implements TokenSource.
func (ForwardedToken) Get(ctx context.Context) (string, error) {
	if rctx := model.RequestContextFrom(ctx); rctx != nil {
		return rctx.Token, nil
	}
	return "", nil
}

// Client issues JSON requests against the CRM API.
type Client struct {
	http    *resty.Client
	baseURL string
	tokens  TokenSource
	timeout time.Duration
	retry   config.RetryConfig
	breaker *CircuitBreaker
	metrics *observability.Metrics
	logger  *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithMetrics records request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the client's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = resty.NewWithClient(hc) }
}

// New creates a client for cfg.BaseURL. A nil tokens source sends
// unauthenticated requests.
func New(cfg config.APIConfig, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		http:    resty.New(),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		tokens:  tokens,
		timeout: cfg.Timeout,
		retry:   cfg.Retry,
		breaker: NewCircuitBreaker(
			cfg.CircuitBreaker.FailureThreshold,
			cfg.CircuitBreaker.SuccessThreshold,
			cfg.CircuitBreaker.Timeout,
		),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	if c.retry.MaxAttempts < 1 {
		c.retry.MaxAttempts = 1
	}

	c.http.
		SetBaseURL(c.baseURL).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "crmconsole/"+observability.Version)

	c.http.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return c.decorate(req)
	})

	c.breaker.OnStateChange(func(s BreakerState) {
		c.metrics.SetBackendCircuitBreakerState(float64(s))
		if s == BreakerOpen {
			c.logger.Warn("crm api circuit breaker opened")
		}
	})

	return c
}

// BaseURL returns the normalized API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Breaker exposes the client's circuit breaker for diagnostics.
func (c *Client) Breaker() *CircuitBreaker {
	return c.breaker
}

// decorate attaches credential, correlation and trace headers.
func (c *Client) decorate(req *resty.Request) error {
	ctx := req.Context()

	if c.tokens != nil {
		token, err := c.tokens.Get(ctx)
		if err != nil {
			return fmt.Errorf("apiclient: reading credential: %w", err)
		}
		if token != "" {
			req.SetHeader("Authorization", "Bearer "+sanitizeHeader(token))
		}
	}

	correlationID := ""
	if rctx := model.RequestContextFrom(ctx); rctx != nil {
		correlationID = rctx.CorrelationID
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	req.SetHeader("X-Correlation-Id", sanitizeHeader(correlationID))

	observability.InjectTraceHeaders(ctx, req.Header)
	return nil
}

// Get issues a GET and decodes the JSON response into out (may be nil).
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, params, nil, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, nil, body, out)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPatch, path, nil, body, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPut, path, nil, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil, out)
}

// HealthCheck reports whether the CRM API answers at all. Any non-5xx
// response, including 401, counts as healthy.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.executeOnce(ctx, http.MethodGet, "/auth/me", nil)
	var e *model.Error
	if err == nil || (errors.As(err, &e) && e.Status > 0 && e.Status < 500) {
		return nil
	}
	return err
}

func (c *Client) doJSON(ctx context.Context, method, path string, params url.Values, body, out any) error {
	resp, err := c.execute(ctx, method, path, func(r *resty.Request) {
		if len(params) > 0 {
			r.SetQueryParamsFromValues(params)
		}
		if body != nil {
			r.SetHeader("Content-Type", "application/json")
			r.SetBody(body)
			c.logBody(method, path, body)
		}
	})
	if err != nil {
		return err
	}
	return decodeInto(resp.Body(), out)
}

func decodeInto(raw []byte, out any) error {
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return model.NewInternalError(fmt.Errorf("apiclient: decoding response: %w", err))
	}
	return nil
}

// execute runs a request through the breaker, with bounded retries for
// reads and none for mutations.
func (c *Client) execute(ctx context.Context, method, path string, build func(*resty.Request)) (*resty.Response, error) {
	attempts := 1
	if isIdempotentRead(method) {
		attempts = c.retry.MaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.metrics.RecordBackendRetry()
			if err := sleepCtx(ctx, calculateBackoff(c.retry, attempt)); err != nil {
				return nil, classifyTransport(err)
			}
			c.logger.Debug("retrying crm api read",
				zap.String("path", path),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr),
			)
		}

		resp, err := c.executeOnce(ctx, method, path, build)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) executeOnce(ctx context.Context, method, path string, build func(*resty.Request)) (*resty.Response, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, model.NewUnavailableError()
	}

	resource := resourceOf(path)
	ctx, span := observability.StartSpan(ctx, "crm.api "+method,
		observability.AttrResource.String(resource),
		observability.AttrOperation.String(strings.ToLower(method)),
	)

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := c.http.R().SetContext(attemptCtx)
	if build != nil {
		build(req)
	}

	start := time.Now()
	resp, err := req.Execute(method, normalizePath(path))
	if err != nil {
		c.breaker.RecordFailure()
		c.metrics.RecordBackendRequest(method, resource, 0, time.Since(start))
		cerr := classifyTransport(err)
		c.logger.Debug("crm api request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("kind", string(cerr.Kind)),
			zap.Error(err),
		)
		observability.EndSpanWithError(span, cerr)
		return nil, cerr
	}

	status := resp.StatusCode()
	c.metrics.RecordBackendRequest(method, resource, status, time.Since(start))
	if status >= 500 {
		c.breaker.RecordFailure()
	} else {
		c.breaker.RecordSuccess()
	}

	if !resp.IsSuccess() {
		herr := errorFromResponse(status, resp.Body())
		if status >= 500 {
			c.logger.Error("crm api server error", zap.String("path", path), zap.Int("status", status))
		} else {
			c.logger.Warn("crm api rejected request",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("status", status),
				zap.String("message", herr.Message),
			)
		}
		observability.EndSpanWithError(span, herr)
		return nil, herr
	}

	observability.EndSpanWithError(span, nil)
	return resp, nil
}

func (c *Client) logBody(method, path string, body any) {
	if !c.logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return
	}
	var fields map[string]any
	if json.Unmarshal(raw, &fields) != nil {
		return
	}
	c.logger.Debug("crm api request body",
		zap.String("method", method),
		zap.String("path", path),
		zap.Any("body", observability.RedactBody(fields, nil)),
	)
}

// errorFromResponse builds the error for a non-2xx response. The message is
// the body's "message" field when present, else DefaultErrorMessage.
func errorFromResponse(status int, body []byte) *model.Error {
	var parsed struct {
		Message string `json:"message"`
	}
	msg := ""
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		msg = strings.TrimSpace(parsed.Message)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return model.NewAuthError(status, msg)
	case status == http.StatusNotFound:
		return model.NewNotFoundError(msg)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e := model.NewServerError(status, msg)
		e.Kind = model.KindValidation
		return e
	default:
		return model.NewServerError(status, msg)
	}
}

// normalizePath ensures exactly one leading slash so it joins cleanly with
// the base URL, whose trailing slash is already trimmed.
func normalizePath(path string) string {
	return "/" + strings.TrimLeft(path, "/")
}

// resourceOf returns the first path segment, used as a metric label.
func resourceOf(path string) string {
	p := strings.TrimLeft(path, "/")
	if i := strings.IndexAny(p, "/?"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "root"
	}
	return p
}

// sanitizeHeader strips newlines and carriage returns to prevent header injection.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", "")
}
