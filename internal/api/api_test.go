package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/lobbysync/internal/api"
	"github.com/mcoot/lobbysync/internal/api/handler"
	"github.com/mcoot/lobbysync/internal/api/response"
	"github.com/mcoot/lobbysync/internal/dependencies/mocks"
	"github.com/mcoot/lobbysync/internal/testutil"
)

type fixedCount int

func (c fixedCount) Count(context.Context) int { return int(c) }

// testServer wires the router with fixed registries
type testServer struct {
	handler http.Handler
}

func newTestServer(t *testing.T, cfg api.RouterConfig) *testServer {
	t.Helper()

	if cfg.Logger == nil {
		cfg.Logger = testutil.NopLogger()
	}
	if cfg.Clock == nil {
		cfg.Clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	}
	if cfg.Users == nil {
		cfg.Users = fixedCount(0)
	}
	if cfg.Rooms == nil {
		cfg.Rooms = fixedCount(0)
	}

	return &testServer{handler: api.NewRouter(cfg)}
}

func (ts *testServer) request(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t, api.RouterConfig{Users: fixedCount(3), Rooms: fixedCount(1)})

	for _, path := range []string{"/", "/health"} {
		t.Run(path, func(t *testing.T) {
			rr := ts.request(http.MethodGet, path)
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var resp response.Health
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, response.Health{
				Status:      "ok",
				Message:     handler.HealthMessage,
				Time:        "2024-01-01T12:00:00Z",
				ActiveUsers: 3,
				ActiveRooms: 1,
			}, resp)
		})
	}
}

func TestOptionalRoutesAbsent(t *testing.T) {
	ts := newTestServer(t, api.RouterConfig{})

	assert.Equal(t, http.StatusNotFound, ts.request(http.MethodGet, "/ws").Code)
	assert.Equal(t, http.StatusNotFound, ts.request(http.MethodGet, "/metrics").Code)
	rr := ts.request(http.MethodGet, "/dashboard")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	var resp response.Error
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestMountedHandlers(t *testing.T) {
	gateway := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("lobbysync_connections 0\n"))
	})
	ts := newTestServer(t, api.RouterConfig{Gateway: gateway, Metrics: metrics})

	assert.Equal(t, http.StatusTeapot, ts.request(http.MethodGet, "/ws").Code)
	rr := ts.request(http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "lobbysync_connections")
}

func TestPanicReturnsJSONError(t *testing.T) {
	gateway := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	ts := newTestServer(t, api.RouterConfig{Gateway: gateway})

	rr := ts.request(http.MethodGet, "/ws")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var resp response.Error
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
}
