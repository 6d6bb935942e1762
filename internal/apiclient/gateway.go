// Package apiclient is the authenticated request gateway to the equipment API.
// Every call carries the caller's bearer token and, when known, its tenant.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/otcheredev/equipment-console/internal/metrics"
	"github.com/otcheredev/equipment-console/internal/models"
	"github.com/rs/zerolog/log"
)

// TenantHeader carries the tenant id on outbound requests
const TenantHeader = "x-tenant-id"

const genericFailure = "API Request Failed"

// ErrUnauthorized is returned before any I/O when the caller has no valid session
var ErrUnauthorized = errors.New("Unauthorized")

// APIError is a non-success response from the API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Temporary reports whether the failure may succeed on retry
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// SessionProvider supplies the session of the current caller, or nil
type SessionProvider interface {
	Session(ctx context.Context) (*models.Session, error)
}

// TenantSource supplies the tenant of the current caller, if any
type TenantSource interface {
	TenantID(ctx context.Context) (string, bool)
}

// Gateway issues authenticated requests against the API base URL
type Gateway struct {
	client   *http.Client
	baseURL  string
	sessions SessionProvider
	tenants  TenantSource
}

// Option configures a Gateway
type Option func(*Gateway)

// WithHTTPClient replaces the HTTP client, e.g. to inject a transport in tests
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.client.Timeout = d }
}

// NewGateway creates a new request gateway
func NewGateway(baseURL string, sessions SessionProvider, tenants TenantSource, opts ...Option) *Gateway {
	g := &Gateway{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  baseURL,
		sessions: sessions,
		tenants:  tenants,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RequestOption adjusts a single request
type RequestOption func(h http.Header)

// WithHeader sets a header, overriding the gateway defaults
func WithHeader(key, value string) RequestOption {
	return func(h http.Header) { h.Set(key, value) }
}

// Do sends body as JSON to endpoint and decodes a JSON response into out.
// body and out may be nil.
func (g *Gateway) Do(ctx context.Context, method, endpoint string, body, out any, opts ...RequestOption) error {
	sess, err := g.sessions.Session(ctx)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if !sess.Valid() {
		return ErrUnauthorized
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	sess.Token().SetAuthHeader(req)
	if g.tenants != nil {
		if tenantID, ok := g.tenants.TenantID(ctx); ok {
			req.Header.Set(TenantHeader, tenantID)
		}
	}
	for _, opt := range opts {
		opt(req.Header)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	metrics.APIRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APIRequests.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	metrics.APIRequests.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	log.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("API request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Call is Do with the response typed by the caller
func Call[T any](ctx context.Context, g *Gateway, method, endpoint string, body any, opts ...RequestOption) (T, error) {
	var out T
	err := g.Do(ctx, method, endpoint, body, &out, opts...)
	return out, err
}

// errorMessage extracts a human readable message from an error body.
// FastAPI style {"detail": "..."} and validation lists {"detail": [{"msg": "..."}]}
// are understood, as are "message" and "error" fields.
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return genericFailure
	}

	var body map[string]json.RawMessage
	if json.Unmarshal(data, &body) != nil {
		return genericFailure
	}

	for _, field := range []string{"detail", "message", "error"} {
		raw, ok := body[field]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(raw, &items) == nil && len(items) > 0 && items[0].Msg != "" {
			return items[0].Msg
		}
	}
	return genericFailure
}
