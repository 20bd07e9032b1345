package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/polis-ai/polis/pkg/translog"
)

// searchDecisionsHandler handles GET /api/v1/decisions/search. Without a
// query text the most recent decisions come back in order.
func (s *Server) searchDecisionsHandler(c *gin.Context) {
	q := translog.SearchQuery{
		Query:       c.Query("q"),
		FilterAgent: c.Query("agent"),
		FilterNode:  c.Query("node"),
	}

	if v := c.Query("n_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid n_results: must be a positive integer"})
			return
		}
		q.NResults = n
	}
	if v := c.Query("min_confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_confidence: must be between 0 and 1"})
			return
		}
		q.MinConfidence = f
	}
	if v := c.Query("max_cost"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max_cost: must be a non-negative number"})
			return
		}
		q.MaxCost = f
	}

	results, err := s.translog.SearchDecisions(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, &SearchResponse{Results: results, Count: len(results)})
}

// decisionReportHandler handles GET /api/v1/decisions/report. The period is
// a Go duration ("168h", "30m"); it defaults to the trailing week.
func (s *Server) decisionReportHandler(c *gin.Context) {
	q := translog.ReportQuery{Agent: c.Query("agent")}

	if v := c.Query("period"); v != "" {
		period, err := time.ParseDuration(v)
		if err != nil || period <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid period: must be a positive duration such as 168h"})
			return
		}
		q.Period = period
	}

	report, err := s.translog.GenerateReport(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
