// Package api exposes the engine over HTTP: agent request submission (sync
// and queued), coordination over posted decision batches, the plan
// checkpoint, transparency search and reports, human escalations, the
// inter-agent message bus, health and metrics.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/polis-ai/polis/pkg/bus"
	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/coordination"
	"github.com/polis-ai/polis/pkg/database"
	"github.com/polis-ai/polis/pkg/dispatch"
	"github.com/polis-ai/polis/pkg/human"
	"github.com/polis-ai/polis/pkg/queue"
	"github.com/polis-ai/polis/pkg/translog"
)

// Deps carries everything the server fronts. Pending and DB are optional:
// without Pending the escalation endpoints answer 503, without DB the health
// check skips the datasource probe.
type Deps struct {
	Config      *config.Config
	Dispatcher  *dispatch.Dispatcher
	Queue       *queue.Pool
	Coordinator *coordination.Coordinator
	TransLog    *translog.Log
	Bus         *bus.Bus
	Pending     *human.PendingSource
	DB          *database.Client
}

// Server holds the handler dependencies.
type Server struct {
	cfg         *config.Config
	dispatcher  *dispatch.Dispatcher
	pool        *queue.Pool
	coordinator *coordination.Coordinator
	translog    *translog.Log
	bus         *bus.Bus
	pending     *human.PendingSource
	db          *database.Client
	logger      *slog.Logger
}

// NewServer validates the dependencies and builds the server.
func NewServer(deps Deps) (*Server, error) {
	switch {
	case deps.Config == nil:
		return nil, fmt.Errorf("config is required")
	case deps.Dispatcher == nil:
		return nil, fmt.Errorf("dispatcher is required")
	case deps.Queue == nil:
		return nil, fmt.Errorf("queue is required")
	case deps.Coordinator == nil:
		return nil, fmt.Errorf("coordinator is required")
	case deps.TransLog == nil:
		return nil, fmt.Errorf("transparency log is required")
	case deps.Bus == nil:
		return nil, fmt.Errorf("message bus is required")
	}
	return &Server{
		cfg:         deps.Config,
		dispatcher:  deps.Dispatcher,
		pool:        deps.Queue,
		coordinator: deps.Coordinator,
		translog:    deps.TransLog,
		bus:         deps.Bus,
		pending:     deps.Pending,
		db:          deps.DB,
		logger:      slog.Default().With("component", "api"),
	}, nil
}

// Handler builds the routed gin engine.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), securityHeaders(), requestMetrics())

	r.GET("/health", s.healthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/agents", s.listAgentsHandler)
		v1.POST("/agents/:type/requests", s.submitRequestHandler)

		v1.GET("/requests/:id", s.getRequestHandler)
		v1.POST("/requests/:id/cancel", s.cancelRequestHandler)

		v1.POST("/coordination", s.coordinateHandler)
		v1.POST("/coordination/check", s.checkPlanHandler)
		v1.DELETE("/coordination/plans/:agent", s.releasePlanHandler)

		v1.GET("/decisions/search", s.searchDecisionsHandler)
		v1.GET("/decisions/report", s.decisionReportHandler)

		v1.GET("/escalations", s.listEscalationsHandler)
		v1.POST("/escalations/:id/resolve", s.resolveEscalationHandler)

		v1.GET("/messages", s.listReceiversHandler)
		v1.GET("/messages/:agent", s.peekMessagesHandler)
		v1.POST("/messages", s.publishMessageHandler)
		v1.POST("/messages/:id/ack", s.ackMessageHandler)
	}

	return r
}
