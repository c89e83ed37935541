package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthOK(_ context.Context) error { return nil }

func healthErr(msg string) func(context.Context) error {
	return func(_ context.Context) error { return errors.New(msg) }
}

func TestHandleReadiness(t *testing.T) {
	srv := newTestServer(t)
	withHealthChecks(srv.Server,
		HealthCheck{Name: "postgres", Check: healthOK},
		HealthCheck{Name: "redis", Check: healthOK},
	)

	rec := serve(srv.Server, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestHandleReadiness_RedisDown(t *testing.T) {
	srv := newTestServer(t)
	withHealthChecks(srv.Server,
		HealthCheck{Name: "postgres", Check: healthOK},
		HealthCheck{Name: "redis", Check: healthErr("connection refused")},
	)

	rec := serve(srv.Server, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"redis":"connection refused"}}`, rec.Body.String())
}

func TestHandleReadiness_ReportsEveryFailure(t *testing.T) {
	srv := newTestServer(t)
	withHealthChecks(srv.Server,
		HealthCheck{Name: "postgres", Check: healthErr("timeout")},
		HealthCheck{Name: "redis", Check: healthErr("connection refused")},
	)

	rec := serve(srv.Server, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"postgres":"timeout","redis":"connection refused"}}`, rec.Body.String())
}

func TestHandleStartup_NoChecks(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv.Server, httptest.NewRequest(http.MethodGet, "/health/startup", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleLiveness(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv.Server, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body livenessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.GreaterOrEqual(t, body.Uptime, 0.0)
	assert.Zero(t, body.Connections)
}

func TestHandleVersion(t *testing.T) {
	srv := newTestServer(t)

	rec := serve(srv.Server, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"dev"`)
	assert.Contains(t, rec.Body.String(), `"go_version"`)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	serve(srv.Server, httptest.NewRequest(http.MethodGet, "/version", nil))

	rec := serve(srv.Server, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `charades_http_requests_total{method="GET",route="/version",status_code="200"} 1`)
}
