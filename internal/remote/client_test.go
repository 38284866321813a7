package remote_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendera/backoffice-gateway/internal/remote"
)

// newTestServer creates a new test server with keep-alives disabled.
// This prevents flaky tests when running in parallel, as closing a server
// with keep-alives enabled can affect other tests sharing the HTTP transport.
func newTestServer(handler http.Handler) *httptest.Server {
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	return server
}

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "valid URL", baseURL: "http://localhost:9000"},
		{name: "trailing slash trimmed", baseURL: "http://localhost:9000/"},
		{name: "empty URL", baseURL: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := remote.NewHTTPClient(tt.baseURL)

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, client)
		})
	}
}

func TestHTTPClient_Call_Success(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		responseBody string
		expectedData string
	}{
		{
			name:         "enveloped response unwraps data",
			responseBody: `{"ok": true, "data": {"id": 5, "status": "approved"}}`,
			expectedData: `{"id": 5, "status": "approved"}`,
		},
		{
			name:         "enveloped response without data yields null",
			responseBody: `{"ok": true}`,
			expectedData: `null`,
		},
		{
			name:         "bare response passes through",
			responseBody: `{"id": 5}`,
			expectedData: `{"id": 5}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotPath, gotRequestID, gotIdemKey string
			var gotBody map[string]any

			server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotRequestID = r.Header.Get("X-Request-ID")
				gotIdemKey = r.Header.Get("Idempotency-Key")
				require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer server.Close()

			client, err := remote.NewHTTPClient(server.URL)
			require.NoError(t, err)

			ctx := remote.WithIdempotencyKey(context.Background(), "idem-123")
			data, err := client.Call(ctx, "expenses", "approve", map[string]any{"id": float64(5)})

			require.NoError(t, err)
			assert.JSONEq(t, tt.expectedData, string(data))
			assert.Equal(t, "/rpc/expenses/approve", gotPath)
			assert.NotEmpty(t, gotRequestID, "X-Request-ID header should be set")
			assert.Equal(t, "idem-123", gotIdemKey)
			assert.Equal(t, map[string]any{"id": float64(5)}, gotBody)
		})
	}
}

func TestHTTPClient_Call_HTTPErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		statusCode      int
		responseBody    string
		expectedKind    remote.Kind
		expectedMessage string
	}{
		{
			name:            "400 is validation",
			statusCode:      http.StatusBadRequest,
			responseBody:    `{"ok": false, "message": "amount is required"}`,
			expectedKind:    remote.KindValidation,
			expectedMessage: "amount is required",
		},
		{
			name:            "422 is validation",
			statusCode:      http.StatusUnprocessableEntity,
			responseBody:    `{"message": "invalid category"}`,
			expectedKind:    remote.KindValidation,
			expectedMessage: "invalid category",
		},
		{
			name:            "409 is conflict",
			statusCode:      http.StatusConflict,
			responseBody:    `{"error": "budget exceeded"}`,
			expectedKind:    remote.KindConflict,
			expectedMessage: "budget exceeded",
		},
		{
			name:            "500 is transient",
			statusCode:      http.StatusInternalServerError,
			responseBody:    "Internal Server Error",
			expectedKind:    remote.KindTransient,
			expectedMessage: "Internal Server Error",
		},
		{
			name:         "502 with empty body has no message",
			statusCode:   http.StatusBadGateway,
			responseBody: "",
			expectedKind: remote.KindTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer server.Close()

			client, err := remote.NewHTTPClient(server.URL)
			require.NoError(t, err)

			_, err = client.Call(context.Background(), "expenses", "create", map[string]any{})

			require.Error(t, err)
			assert.Equal(t, tt.expectedKind, remote.KindOf(err))

			var re *remote.Error
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.statusCode, re.StatusCode)
			assert.Equal(t, tt.expectedMessage, re.Message)
			if tt.expectedMessage == "" {
				assert.Equal(t, remote.FallbackMessage, re.UserMessage())
			} else {
				assert.Equal(t, tt.expectedMessage, re.UserMessage())
			}
		})
	}
}

func TestHTTPClient_Call_EnvelopeRejection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		responseBody string
		expectedKind remote.Kind
	}{
		{
			name:         "ok false defaults to validation",
			responseBody: `{"ok": false, "message": "supplier name taken"}`,
			expectedKind: remote.KindValidation,
		},
		{
			name:         "ok false with conflict kind",
			responseBody: `{"ok": false, "kind": "conflict", "message": "budget exceeded"}`,
			expectedKind: remote.KindConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer server.Close()

			client, err := remote.NewHTTPClient(server.URL)
			require.NoError(t, err)

			_, err = client.Call(context.Background(), "suppliers", "create", map[string]any{"name": "Acme"})

			require.Error(t, err)
			assert.Equal(t, tt.expectedKind, remote.KindOf(err))
		})
	}
}

func TestHTTPClient_Call_NetworkErrors(t *testing.T) {
	t.Parallel()

	t.Run("unreachable host is transient", func(t *testing.T) {
		t.Parallel()

		client, err := remote.NewHTTPClient("http://127.0.0.1:1", remote.WithTimeout(time.Second))
		require.NoError(t, err)

		_, err = client.Call(context.Background(), "expenses", "create", map[string]any{})

		require.Error(t, err)
		assert.True(t, remote.IsTransient(err))
	})

	t.Run("cancelled context is transient", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Drain the body so the server notices the client abort and
			// cancels the request context instead of parking forever.
			_, _ = io.Copy(io.Discard, r.Body)
			<-r.Context().Done()
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client, err := remote.NewHTTPClient(server.URL)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err = client.Call(ctx, "expenses", "create", map[string]any{})

		require.Error(t, err)
		assert.True(t, remote.IsTransient(err))
	})

	t.Run("missing resource is validation", func(t *testing.T) {
		t.Parallel()

		client, err := remote.NewHTTPClient("http://localhost:9000")
		require.NoError(t, err)

		_, err = client.Call(context.Background(), "", "create", map[string]any{})

		require.Error(t, err)
		assert.True(t, remote.IsValidation(err))
	})
}

func TestKindOf_UnclassifiedError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, remote.KindTransient, remote.KindOf(assert.AnError))
	assert.Equal(t, remote.FallbackMessage, remote.UserMessageOf(assert.AnError))
}
