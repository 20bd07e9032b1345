package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/polis-ai/polis/pkg/models"
)

// listEscalationsHandler handles GET /api/v1/escalations. It lists the
// escalations parked for a REST approver, oldest first.
func (s *Server) listEscalationsHandler(c *gin.Context) {
	if s.pending == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "human approval over the API is not enabled"})
		return
	}

	pending := s.pending.Pending()
	c.JSON(http.StatusOK, &EscalationsResponse{Escalations: pending, Count: len(pending)})
}

// resolveEscalationHandler handles POST /api/v1/escalations/:id/resolve.
// The decision is handed to the coordination run still blocked on it.
func (s *Server) resolveEscalationHandler(c *gin.Context) {
	if s.pending == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "human approval over the API is not enabled"})
		return
	}

	var req ResolveEscalationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: must be approved, modified, rejected or deferred"})
		return
	}

	approver := req.Approver
	if approver == "" {
		approver = extractApprover(c)
	}

	escalationID := c.Param("id")
	decision := models.HumanDecision{
		Status:     req.Status,
		Approver:   approver,
		Decision:   req.Decision,
		Notes:      req.Notes,
		ApprovedAt: time.Now().UTC(),
	}
	if err := s.pending.Resolve(escalationID, decision); err != nil {
		respondError(c, err)
		return
	}

	s.logger.Info("Escalation resolved over the API",
		"escalation_id", escalationID,
		"status", req.Status,
		"approver", approver)

	c.JSON(http.StatusOK, &ResolveResponse{
		EscalationID: escalationID,
		Status:       req.Status,
		Approver:     approver,
	})
}
