package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CallOption customizes a single API call.
type CallOption func(*callOptions)

type callOptions struct {
	headers http.Header
	baseURL string
}

// WithHeader sets a header on a single call, replacing any default.
func WithHeader(key, value string) CallOption {
	return func(co *callOptions) {
		if co.headers == nil {
			co.headers = http.Header{}
		}
		co.headers.Add(key, value)
	}
}

// WithForwardedHeaders copies the named headers from an inbound request.
func WithForwardedHeaders(r *http.Request, names ...string) CallOption {
	return func(co *callOptions) {
		for _, name := range names {
			for _, v := range r.Header.Values(name) {
				if co.headers == nil {
					co.headers = http.Header{}
				}
				co.headers.Add(name, v)
			}
		}
	}
}

func withBaseURL(u string) CallOption {
	return func(co *callOptions) { co.baseURL = u }
}

type unauthorizedKey struct{}

// WithUnauthorizedHandler returns a context whose API calls run fn once when
// the backend answers 401. The console uses it to invalidate the browser
// session before the handler sees ErrUnauthorized.
func WithUnauthorizedHandler(ctx context.Context, fn func()) context.Context {
	var once sync.Once
	return context.WithValue(ctx, unauthorizedKey{}, func() { once.Do(fn) })
}

func runUnauthorized(ctx context.Context) {
	if fn, ok := ctx.Value(unauthorizedKey{}).(func()); ok {
		fn()
	}
}

// Do sends a JSON request and decodes a JSON response into out. It never
// retries; the caller decides how to interpret the returned error.
func (c *Client) Do(ctx context.Context, method, path string, in, out any, opts ...CallOption) error {
	co := callOptions{}
	for _, opt := range opts {
		opt(&co)
	}

	base := c.baseURL
	if co.baseURL != "" {
		base = co.baseURL
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, vs := range co.headers {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(ctx, method, path, start, err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return c.transportError(ctx, method, path, start, err)
	}

	c.metrics.observe(path, statusClass(res.StatusCode), time.Since(start))
	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"status", res.StatusCode,
		"duration", time.Since(start),
	)

	switch {
	case res.StatusCode == http.StatusUnauthorized:
		c.logger.Info("authentication failed", "path", path)
		runUnauthorized(ctx)
		return ErrUnauthorized
	case res.StatusCode/100 != 2:
		return parseAPIError(res.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// transportError classifies a failed round trip. Context cancellation and
// deadlines pass through unchanged so callers can tell a client-side
// timeout from a connectivity problem.
func (c *Client) transportError(ctx context.Context, method, path string, start time.Time, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		c.metrics.observe(path, "canceled", time.Since(start))
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		c.metrics.observe(path, "timeout", time.Since(start))
		return err
	}
	c.metrics.observe(path, "network", time.Since(start))
	c.logger.Warn("api request failed", "method", method, "path", path, "error", err)
	return &NetworkError{Path: path, Err: err}
}

func statusClass(code int) string {
	switch code / 100 {
	case 2:
		return "2xx"
	case 3:
		return "3xx"
	case 4:
		return "4xx"
	default:
		return "5xx"
	}
}
