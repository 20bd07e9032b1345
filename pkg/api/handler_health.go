package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/polis-ai/polis/pkg/database"
	"github.com/polis-ai/polis/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /health.
// Only the engine's own components are checked. The LLM service is excluded
// so an orchestrator does not restart the engine over an external outage;
// every LLM path has a deterministic fallback anyway.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	resp := &HealthResponse{
		Version: version.GitCommit,
	}

	if s.db != nil {
		dbHealth, err := database.Health(reqCtx, s.db.Pool())
		resp.Datasource = dbHealth
		if err != nil {
			status = healthStatusUnhealthy
			checks["datasource"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
		} else {
			checks["datasource"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	if err := s.translog.Ready(reqCtx); err != nil {
		if status == healthStatusHealthy {
			status = healthStatusDegraded
		}
		checks["transparency_log"] = HealthCheck{Status: healthStatusDegraded, Message: err.Error()}
	} else {
		checks["transparency_log"] = HealthCheck{Status: healthStatusHealthy}
	}

	poolHealth := s.pool.Health()
	resp.WorkerPool = poolHealth
	if !poolHealth.IsHealthy {
		if status == healthStatusHealthy {
			status = healthStatusDegraded
		}
		checks["worker_pool"] = HealthCheck{Status: healthStatusDegraded, Message: "worker pool is not running"}
	} else {
		checks["worker_pool"] = HealthCheck{Status: healthStatusHealthy}
	}

	stats := s.cfg.Stats()
	resp.Configuration = ConfigurationStats{
		Agents:  stats.Profiles,
		Intents: stats.Intents,
		Plans:   stats.Plans,
	}

	resp.Status = status
	resp.Checks = checks

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, resp)
}
