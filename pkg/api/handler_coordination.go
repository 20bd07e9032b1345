package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polis-ai/polis/pkg/models"
)

// coordinateHandler handles POST /api/v1/coordination. It runs the full
// workflow over the posted decision batch and returns the outcome.
func (s *Server) coordinateHandler(c *gin.Context) {
	var req CoordinateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Decisions) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one decision is required"})
		return
	}
	for i := range req.Decisions {
		if req.Decisions[i].ID() == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "every decision needs an agent_id or agent_type"})
			return
		}
	}

	result := s.coordinator.Coordinate(c.Request.Context(), req.Decisions)
	c.JSON(http.StatusOK, result)
}

// checkPlanHandler handles POST /api/v1/coordination/check, the mid-pipeline
// checkpoint. The posted plan is registered as the agent's current intention
// until it is replaced or released.
func (s *Server) checkPlanHandler(c *gin.Context) {
	var query models.PlanQuery
	if err := c.ShouldBindJSON(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if query.AgentID == "" && query.AgentType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agent_id or agent_type is required"})
		return
	}

	check, err := s.coordinator.CheckPlanConflicts(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}

// releasePlanHandler handles DELETE /api/v1/coordination/plans/:agent. Agents
// call it once the checked plan has finished or been abandoned.
func (s *Server) releasePlanHandler(c *gin.Context) {
	s.coordinator.ReleasePlan(c.Param("agent"))
	c.Status(http.StatusNoContent)
}
