package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tendera/backoffice-gateway/internal/api"
	v0 "github.com/tendera/backoffice-gateway/internal/api/v0"
	"github.com/tendera/backoffice-gateway/internal/cache"
	"github.com/tendera/backoffice-gateway/internal/coordinator"
	"github.com/tendera/backoffice-gateway/internal/notify"
	"github.com/tendera/backoffice-gateway/internal/query"
	"github.com/tendera/backoffice-gateway/internal/remote/mocks"
	"github.com/tendera/backoffice-gateway/internal/resource"
	"github.com/tendera/backoffice-gateway/internal/selection"
)

func newTestDeps(t *testing.T, readiness v0.ReadinessChecker) v0.Deps {
	t.Helper()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	store := cache.NewStore()
	graph := resource.Default()

	return v0.Deps{
		Queries:     query.NewRunner(store, client),
		Coordinator: coordinator.New(client, graph, store),
		Selections:  selection.NewRegistry(),
		Notices:     notify.NewHub(10),
		Graph:       graph,
		Readiness:   readiness,
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	server := api.NewServer(newTestDeps(t, nil))

	req, err := http.NewRequest("GET", "/health", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response map[string]string
	err = json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "healthy", response["status"])
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		readiness      v0.ReadinessChecker
		expectedStatus int
	}{
		{
			name:           "upstream ready",
			readiness:      func(context.Context) error { return nil },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "upstream not ready",
			readiness:      func(context.Context) error { return fmt.Errorf("connection refused") },
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:           "no checker configured",
			readiness:      nil,
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := api.NewServer(newTestDeps(t, tt.readiness))

			req, err := http.NewRequest("GET", "/readiness", nil)
			require.NoError(t, err)

			rr := httptest.NewRecorder()
			server.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		})
	}
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()

	server := api.NewServer(newTestDeps(t, nil))

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest("GET", "/version", nil))

	assert.Equal(t, http.StatusOK, rr.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.NotEmpty(t, response["version"])
	assert.NotEmpty(t, response["go_version"])
}

func TestWithMiddlewares(t *testing.T) {
	t.Parallel()

	applied := false
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			applied = true
			next.ServeHTTP(w, r)
		})
	}

	server := api.NewServer(newTestDeps(t, nil), api.WithMiddlewares(mw))

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, applied)
}
