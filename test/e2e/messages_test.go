package e2e

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInterAgentMessaging exercises the bus over HTTP: publish, the receiver
// roster, non-consuming reads, and acknowledgement with a response.
func TestInterAgentMessaging(t *testing.T) {
	app := NewTestApp(t)

	before := app.GetReceivers(t)
	assert.Empty(t, before["receivers"])

	messageID := app.PublishMessage(t, map[string]interface{}{
		"from_agent":   "water_dept",
		"to_agent":     "engineering_dept",
		"message_type": "request_assistance",
		"priority":     "high",
		"content":      "need a trench crew at the ward_3 main break",
		"context":      map[string]interface{}{"location": "ward_3"},
	})
	require.NotEmpty(t, messageID)

	receivers, ok := app.GetReceivers(t)["receivers"].([]interface{})
	require.True(t, ok)
	require.Len(t, receivers, 1)
	entry, ok := receivers[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "engineering_dept", entry["agent"])
	assert.EqualValues(t, 1, entry["pending"])

	// Peeking twice proves reads do not consume.
	for i := 0; i < 2; i++ {
		peeked := app.PeekMessages(t, "engineering_dept", "")
		assert.EqualValues(t, 1, peeked["count"])
		messages, ok := peeked["messages"].([]interface{})
		require.True(t, ok)
		require.Len(t, messages, 1)
		msg, ok := messages[0].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, messageID, msg["id"])
		assert.Equal(t, "pending", msg["status"])
		assert.Equal(t, "water_dept", msg["from_agent"])
		assert.Equal(t, "request_assistance", msg["message_type"])
	}

	acked := app.AckMessage(t, messageID, "crew 12 dispatched, eta 40 minutes")
	assert.Equal(t, "acknowledged", acked["status"])
	assert.Equal(t, "crew 12 dispatched, eta 40 minutes", acked["response"])

	pending := app.PeekMessages(t, "engineering_dept", "pending")
	assert.EqualValues(t, 0, pending["count"])
	done := app.PeekMessages(t, "engineering_dept", "acknowledged")
	assert.EqualValues(t, 1, done["count"])
}

func TestMessageEndpointValidation(t *testing.T) {
	app := NewTestApp(t)

	t.Run("unknown message type", func(t *testing.T) {
		body := app.postJSON(t, "/api/v1/messages", map[string]interface{}{
			"from_agent":   "water_dept",
			"to_agent":     "engineering_dept",
			"message_type": "broadcast",
		}, http.StatusBadRequest)
		assert.Contains(t, body["error"], `unknown message type "broadcast"`)
	})

	t.Run("missing addressing", func(t *testing.T) {
		body := app.postJSON(t, "/api/v1/messages", map[string]interface{}{
			"message_type": "status_update",
			"content":      "orphaned note",
		}, http.StatusBadRequest)
		assert.Contains(t, body["error"], "from_agent and to_agent are required")
	})

	t.Run("ack unknown message", func(t *testing.T) {
		body := app.postJSON(t, "/api/v1/messages/msg-x/ack", nil, http.StatusNotFound)
		assert.Contains(t, body["error"], "msg-x")
	})

	t.Run("invalid peek status", func(t *testing.T) {
		body := app.getJSON(t, "/api/v1/messages/engineering_dept?status=read", http.StatusBadRequest)
		assert.Equal(t, "invalid status: must be pending or acknowledged", body["error"])
	})
}
