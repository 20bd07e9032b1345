package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpointHealthy(t *testing.T) {
	ts := newTestServer(t)

	rec := doJSON(t, ts.handler, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	health := decodeJSON[HealthResponse](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.NotEmpty(t, health.Version)

	assert.Equal(t, "healthy", health.Checks["transparency_log"].Status)
	assert.Equal(t, "healthy", health.Checks["worker_pool"].Status)
	_, probed := health.Checks["datasource"]
	assert.False(t, probed, "no datasource is wired, so none should be probed")

	assert.Equal(t, 6, health.Configuration.Agents)
	assert.Positive(t, health.Configuration.Intents)

	require.NotNil(t, health.WorkerPool)
	assert.True(t, health.WorkerPool.IsHealthy)
	assert.Equal(t, 1, health.WorkerPool.TotalWorkers)
}

func TestHealthEndpointDegradedAfterPoolStop(t *testing.T) {
	ts := newTestServer(t)
	ts.pool.Stop()

	rec := doJSON(t, ts.handler, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code, "degraded is not an outage")

	health := decodeJSON[HealthResponse](t, rec)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "degraded", health.Checks["worker_pool"].Status)
	assert.Equal(t, "worker pool is not running", health.Checks["worker_pool"].Message)
	assert.Equal(t, "healthy", health.Checks["transparency_log"].Status)
}
