package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/config"
	"github.com/ekaya-inc/ekaya-askdb/pkg/metrics"
)

func testConfig() *config.Config {
	cfg := &config.Config{Version: "test-version", Env: "test"}
	cfg.Datasource.Type = "sqlite"
	return cfg
}

func TestHealthHandler_Health(t *testing.T) {
	handler := NewHealthHandler(testConfig(), &mockPinger{err: errors.New("down")}, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String(), "liveness does not depend on the store")
}

func TestHealthHandler_Ping(t *testing.T) {
	tests := []struct {
		name           string
		store          Pinger
		wantCode       int
		wantStatus     string
		wantDatasource string
	}{
		{"store reachable", &mockPinger{}, http.StatusOK, "ok", "ok"},
		{"store unreachable", &mockPinger{err: errors.New("dial tcp: password=hunter2 refused")}, http.StatusServiceUnavailable, "degraded", "unreachable"},
		{"no store", nil, http.StatusOK, "ok", "unchecked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(testConfig(), tt.store, zap.NewNop())

			rec := httptest.NewRecorder()
			handler.Ping(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

			require.Equal(t, tt.wantCode, rec.Code)
			assert.NotContains(t, rec.Body.String(), "hunter2")

			var resp PingResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantDatasource, resp.Datasource)
			assert.Equal(t, "askdb", resp.Service)
			assert.Equal(t, "test-version", resp.Version)
			assert.Equal(t, "test", resp.Environment)
			assert.Equal(t, "sqlite", resp.Dialect)
		})
	}
}

func TestHealthHandler_RoutesAreGetOnly(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthHandler(testConfig(), nil, zap.NewNop()).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveAsk("success")

	mux := http.NewServeMux()
	NewMetricsHandler(reg).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `askdb_asks_total{status="success"} 1`)
}
