// Package remote implements the remote procedure client the gateway uses to
// reach the upstream backoffice API. Transport, serialization and error
// classification live here; callers only see opaque payloads in and raw
// JSON out.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "tendera-gateway/1.0"

	// maxResponseSize limits how much of a response body is read (10 MB).
	maxResponseSize = 10 * 1024 * 1024
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// Client is the remote procedure contract the coordinator depends on.
// Implementations must classify every failure as a *remote.Error.
type Client interface {
	// Call invokes operation on the named resource and returns the raw JSON
	// data of a successful response.
	Call(ctx context.Context, resource, operation string, payload map[string]any) (json.RawMessage, error)
}

type idempotencyKeyContextKey struct{}

// WithIdempotencyKey returns a context that carries the idempotency key for
// the next call. The HTTP client sends it as the Idempotency-Key header.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyContextKey{}, key)
}

// IdempotencyKeyFromContext returns the idempotency key stored in ctx, if any.
func IdempotencyKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyKeyContextKey{}).(string)
	return key, ok && key != ""
}

// HTTPClient calls the upstream API over HTTP. Endpoints follow the
// POST {base}/rpc/{resource}/{operation} convention with a JSON body.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// HTTPClientOption configures the HTTP client.
type HTTPClientOption func(*HTTPClient)

// WithTimeout sets the per-request timeout. Zero uses the default.
func WithTimeout(timeout time.Duration) HTTPClientOption {
	return func(c *HTTPClient) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// WithHTTPDoer replaces the underlying http.Client, primarily for tests.
func WithHTTPDoer(client *http.Client) HTTPClientOption {
	return func(c *HTTPClient) {
		if client != nil {
			c.client = client
		}
	}
}

// NewHTTPClient creates a client for the upstream API at baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPClientOption) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Call implements Client. Failures are always returned as *remote.Error so
// callers can route them by kind without inspecting transport details.
func (c *HTTPClient) Call(
	ctx context.Context,
	resource, operation string,
	payload map[string]any,
) (json.RawMessage, error) {
	if resource == "" || operation == "" {
		return nil, &Error{
			Kind:      KindValidation,
			Resource:  resource,
			Operation: operation,
			Message:   "resource and operation are required",
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{
			Kind:      KindValidation,
			Resource:  resource,
			Operation: operation,
			Message:   fmt.Sprintf("payload is not serializable: %v", err),
		}
	}

	endpoint := fmt.Sprintf("%s/rpc/%s/%s", c.baseURL, url.PathEscape(resource), url.PathEscape(operation))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{
			Kind:      KindTransient,
			Resource:  resource,
			Operation: operation,
			Message:   fmt.Sprintf("failed to create request: %v", err),
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if key, ok := IdempotencyKeyFromContext(ctx); ok {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{
			Kind:      KindTransient,
			Resource:  resource,
			Operation: operation,
			Message:   fmt.Sprintf("request failed: %v", err),
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &Error{
			Kind:       KindTransient,
			Resource:   resource,
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to read response: %v", err),
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &Error{
			Kind:       classifyStatus(resp.StatusCode),
			Resource:   resource,
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Message:    extractMessage(data),
		}
	}

	return unwrapEnvelope(resource, operation, resp.StatusCode, data)
}

// unwrapEnvelope handles the {ok, data}/{ok, message} envelope. Responses
// without an ok field are passed through unchanged.
func unwrapEnvelope(resource, operation string, status int, data []byte) (json.RawMessage, error) {
	ok := gjson.GetBytes(data, "ok")
	if !ok.Exists() {
		return json.RawMessage(data), nil
	}

	if !ok.Bool() {
		return nil, &Error{
			Kind:       classifyEnvelopeKind(gjson.GetBytes(data, "kind").String()),
			Resource:   resource,
			Operation:  operation,
			StatusCode: status,
			Message:    extractMessage(data),
		}
	}

	inner := gjson.GetBytes(data, "data")
	if !inner.Exists() {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(inner.Raw), nil
}

// extractMessage pulls a human-readable message out of an arbitrary error
// body. Falls back to a trimmed plain-text body, then to the empty string
// (callers substitute FallbackMessage for display).
func extractMessage(data []byte) string {
	for _, path := range []string{"message", "error", "detail"} {
		if v := gjson.GetBytes(data, path); v.Exists() && v.String() != "" {
			return v.String()
		}
	}

	text := strings.TrimSpace(string(data))
	if text != "" && !strings.HasPrefix(text, "{") && len(text) <= 200 {
		return text
	}
	return ""
}
