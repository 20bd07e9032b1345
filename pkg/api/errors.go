package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polis-ai/polis/pkg/bus"
	"github.com/polis-ai/polis/pkg/human"
	"github.com/polis-ai/polis/pkg/queue"
)

// respondError maps component errors to HTTP error responses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, queue.ErrNotFound),
		errors.Is(err, bus.ErrMessageNotFound),
		errors.Is(err, human.ErrEscalationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, bus.ErrInvalidMessage),
		errors.Is(err, human.ErrInvalidDecision):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, queue.ErrQueueFull):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, queue.ErrStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		// Unexpected error
		slog.Error("Unexpected handler error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
