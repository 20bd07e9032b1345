package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/polis-ai/polis/pkg/models"
)

// listAgentsHandler handles GET /api/v1/agents.
func (s *Server) listAgentsHandler(c *gin.Context) {
	types := s.cfg.ProfileRegistry.Types()
	sort.Strings(types)

	c.JSON(http.StatusOK, &AgentsResponse{
		AgentTypes: types,
		Active:     s.dispatcher.Cached(),
	})
}

// submitRequestHandler handles POST /api/v1/agents/:type/requests.
// The default is synchronous: the pipeline runs within the request and the
// full result comes back. With ?mode=async the request is queued and a
// ticket for GET /api/v1/requests/:id is returned instead.
func (s *Server) submitRequestHandler(c *gin.Context) {
	agentType := c.Param("type")
	if !s.cfg.ProfileRegistry.Has(agentType) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown agent type: " + agentType})
		return
	}

	var req models.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "api submission"
	}

	switch c.Query("mode") {
	case "", "sync":
		result := s.dispatcher.QueryAgent(c.Request.Context(), agentType, &req, reason)
		c.JSON(http.StatusOK, result)
	case "async":
		ticket, err := s.pool.Submit(agentType, &req, reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, ticket)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mode: must be sync or async"})
	}
}

// getRequestHandler handles GET /api/v1/requests/:id.
func (s *Server) getRequestHandler(c *gin.Context) {
	record, err := s.pool.Lookup(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// cancelRequestHandler handles POST /api/v1/requests/:id/cancel.
func (s *Server) cancelRequestHandler(c *gin.Context) {
	requestID := c.Param("id")

	if _, err := s.pool.Lookup(requestID); err != nil {
		respondError(c, err)
		return
	}
	if !s.pool.Cancel(requestID) {
		c.JSON(http.StatusConflict, gin.H{"error": "request is not in a cancellable state"})
		return
	}

	c.JSON(http.StatusOK, &CancelResponse{
		RequestID: requestID,
		Message:   "Request cancellation requested",
	})
}
