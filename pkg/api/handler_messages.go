package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polis-ai/polis/pkg/models"
)

// listReceiversHandler handles GET /api/v1/messages: every agent with a
// queue and its pending backlog.
func (s *Server) listReceiversHandler(c *gin.Context) {
	receivers := make([]ReceiverStatus, 0)
	for _, agent := range s.bus.Receivers() {
		receivers = append(receivers, ReceiverStatus{
			Agent:   agent,
			Pending: s.bus.PendingCount(agent),
		})
	}
	c.JSON(http.StatusOK, gin.H{"receivers": receivers})
}

// peekMessagesHandler handles GET /api/v1/messages/:agent. Reading does not
// consume; messages stay queued until acknowledged.
func (s *Server) peekMessagesHandler(c *gin.Context) {
	status := models.MessageStatus(c.Query("status"))
	if status != "" && !status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: must be pending or acknowledged"})
		return
	}

	messages := s.bus.MessagesFor(c.Param("agent"), status)
	c.JSON(http.StatusOK, &MessagesResponse{Messages: messages, Count: len(messages)})
}

// publishMessageHandler handles POST /api/v1/messages.
func (s *Server) publishMessageHandler(c *gin.Context) {
	var msg models.InterAgentMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := s.bus.Publish(msg)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message_id": id})
}

// ackMessageHandler handles POST /api/v1/messages/:id/ack. The body is
// optional; without one the message is acknowledged with no response text.
func (s *Server) ackMessageHandler(c *gin.Context) {
	var req AckMessageRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	msg, err := s.bus.Acknowledge(c.Param("id"), req.Response)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}
