package bus

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polis-ai/polis/pkg/models"
)

func testMessage(from, to string) models.InterAgentMessage {
	return models.InterAgentMessage{
		FromAgent: from,
		ToAgent:   to,
		Type:      models.MessageStatusUpdate,
		Priority:  models.SeverityLow,
		Content:   "pipe repair under way at ward_3",
	}
}

func TestPublishFillsDefaults(t *testing.T) {
	b := New()
	fixed := time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC)
	b.clock = func() time.Time { return fixed }

	id, err := b.Publish(models.InterAgentMessage{
		FromAgent: "water_dept",
		ToAgent:   "engineering_dept",
		Content:   "need trench access",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := b.MessagesFor("engineering_dept", "")
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, models.MessageStatusUpdate, msgs[0].Type)
	assert.Equal(t, models.SeverityLow, msgs[0].Priority)
	assert.Equal(t, models.MessagePending, msgs[0].Status)
	assert.Equal(t, fixed, msgs[0].Timestamp)
}

func TestPublishKeepsCallerIDAndTimestamp(t *testing.T) {
	b := New()
	stamped := testMessage("water_dept", "fire_dept")
	stamped.ID = "msg-001"
	stamped.Timestamp = time.Date(2026, time.January, 5, 12, 0, 0, 0, time.UTC)

	id, err := b.Publish(stamped)
	require.NoError(t, err)
	assert.Equal(t, "msg-001", id)

	msgs := b.MessagesFor("fire_dept", models.MessagePending)
	require.Len(t, msgs, 1)
	assert.Equal(t, stamped.Timestamp, msgs[0].Timestamp)
}

func TestPublishRejectsInvalidMessages(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.InterAgentMessage)
	}{
		{"missing sender", func(m *models.InterAgentMessage) { m.FromAgent = "" }},
		{"missing receiver", func(m *models.InterAgentMessage) { m.ToAgent = "" }},
		{"unknown type", func(m *models.InterAgentMessage) { m.Type = "carrier_pigeon" }},
		{"unknown priority", func(m *models.InterAgentMessage) { m.Priority = "extreme" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New()
			msg := testMessage("water_dept", "fire_dept")
			tt.mutate(&msg)

			_, err := b.Publish(msg)
			assert.ErrorIs(t, err, ErrInvalidMessage)
			assert.Empty(t, b.MessagesFor("fire_dept", ""))
		})
	}

	t.Run("duplicate id", func(t *testing.T) {
		b := New()
		msg := testMessage("water_dept", "fire_dept")
		msg.ID = "msg-dup"

		_, err := b.Publish(msg)
		require.NoError(t, err)
		_, err = b.Publish(msg)
		assert.ErrorIs(t, err, ErrInvalidMessage)
	})
}

func TestMessagesForIsFIFOPerReceiver(t *testing.T) {
	b := New()

	first, err := b.Publish(testMessage("water_dept", "engineering_dept"))
	require.NoError(t, err)
	other, err := b.Publish(testMessage("fire_dept", "health_dept"))
	require.NoError(t, err)
	second, err := b.Publish(testMessage("sanitation_dept", "engineering_dept"))
	require.NoError(t, err)
	third, err := b.Publish(testMessage("water_dept", "engineering_dept"))
	require.NoError(t, err)

	msgs := b.MessagesFor("engineering_dept", "")
	require.Len(t, msgs, 3)
	assert.Equal(t, first, msgs[0].ID)
	assert.Equal(t, second, msgs[1].ID)
	assert.Equal(t, third, msgs[2].ID)

	health := b.MessagesFor("health_dept", "")
	require.Len(t, health, 1)
	assert.Equal(t, other, health[0].ID)

	assert.Empty(t, b.MessagesFor("finance_dept", ""))
}

func TestMessagesForDoesNotConsume(t *testing.T) {
	b := New()
	_, err := b.Publish(testMessage("water_dept", "engineering_dept"))
	require.NoError(t, err)

	assert.Len(t, b.MessagesFor("engineering_dept", ""), 1)
	assert.Len(t, b.MessagesFor("engineering_dept", ""), 1)
}

func TestMessagesForReturnsCopies(t *testing.T) {
	b := New()
	_, err := b.Publish(testMessage("water_dept", "engineering_dept"))
	require.NoError(t, err)

	msgs := b.MessagesFor("engineering_dept", "")
	require.Len(t, msgs, 1)
	msgs[0].Content = "mutated"

	again := b.MessagesFor("engineering_dept", "")
	assert.Equal(t, "pipe repair under way at ward_3", again[0].Content)
}

func TestAcknowledge(t *testing.T) {
	b := New()
	id, err := b.Publish(testMessage("water_dept", "engineering_dept"))
	require.NoError(t, err)

	acked, err := b.Acknowledge(id, "trench access granted for tomorrow")
	require.NoError(t, err)
	assert.Equal(t, models.MessageAcknowledged, acked.Status)
	assert.Equal(t, "trench access granted for tomorrow", acked.Response)

	assert.Empty(t, b.MessagesFor("engineering_dept", models.MessagePending))

	done := b.MessagesFor("engineering_dept", models.MessageAcknowledged)
	require.Len(t, done, 1)
	assert.Equal(t, id, done[0].ID)
	assert.Equal(t, "trench access granted for tomorrow", done[0].Response)
}

func TestAcknowledgeUnknownID(t *testing.T) {
	b := New()
	_, err := b.Acknowledge("missing", "whatever")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestPendingCountAndReceivers(t *testing.T) {
	b := New()
	assert.Zero(t, b.PendingCount("water_dept"))
	assert.Empty(t, b.Receivers())

	id, err := b.Publish(testMessage("fire_dept", "water_dept"))
	require.NoError(t, err)
	_, err = b.Publish(testMessage("fire_dept", "water_dept"))
	require.NoError(t, err)
	_, err = b.Publish(testMessage("fire_dept", "health_dept"))
	require.NoError(t, err)

	assert.Equal(t, 2, b.PendingCount("water_dept"))
	assert.Equal(t, 1, b.PendingCount("health_dept"))
	assert.ElementsMatch(t, []string{"water_dept", "health_dept"}, b.Receivers())

	_, err = b.Acknowledge(id, "ok")
	require.NoError(t, err)
	assert.Equal(t, 1, b.PendingCount("water_dept"))
}

func TestSweepAcknowledged(t *testing.T) {
	b := New()
	start := time.Date(2026, time.March, 3, 8, 0, 0, 0, time.UTC)
	b.clock = func() time.Time { return start }

	oldAcked, err := b.Publish(testMessage("water_dept", "ops"))
	require.NoError(t, err)
	_, err = b.Acknowledge(oldAcked, "done")
	require.NoError(t, err)

	oldPending, err := b.Publish(testMessage("fire_dept", "ops"))
	require.NoError(t, err)

	b.clock = func() time.Time { return start.Add(2 * time.Hour) }
	freshAcked, err := b.Publish(testMessage("water_dept", "ops"))
	require.NoError(t, err)
	_, err = b.Acknowledge(freshAcked, "done")
	require.NoError(t, err)

	swept := b.SweepAcknowledged(start.Add(time.Hour))
	assert.Equal(t, 1, swept)

	// Pending messages survive regardless of age.
	pending := b.MessagesFor("ops", models.MessagePending)
	require.Len(t, pending, 1)
	assert.Equal(t, oldPending, pending[0].ID)

	acked := b.MessagesFor("ops", models.MessageAcknowledged)
	require.Len(t, acked, 1)
	assert.Equal(t, freshAcked, acked[0].ID)

	_, err = b.Acknowledge(oldAcked, "again")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestSweepAcknowledgedForgetsEmptyReceivers(t *testing.T) {
	b := New()
	id, err := b.Publish(testMessage("water_dept", "ops"))
	require.NoError(t, err)
	_, err = b.Acknowledge(id, "done")
	require.NoError(t, err)

	swept := b.SweepAcknowledged(time.Now().Add(time.Hour))
	assert.Equal(t, 1, swept)
	assert.Empty(t, b.Receivers())
}

func TestEvictionPrefersAcknowledged(t *testing.T) {
	b := New()

	ids := make([]string, 0, retentionCap)
	for i := 0; i < retentionCap; i++ {
		msg := testMessage("water_dept", "ops")
		msg.ID = fmt.Sprintf("msg-%04d", i)
		id, err := b.Publish(msg)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err := b.Acknowledge(ids[0], "done")
	require.NoError(t, err)

	// One over the cap evicts the single acknowledged message, not a
	// pending one.
	overflow := testMessage("water_dept", "ops")
	overflow.ID = "msg-overflow"
	_, err = b.Publish(overflow)
	require.NoError(t, err)

	assert.Empty(t, b.MessagesFor("ops", models.MessageAcknowledged))
	assert.Equal(t, retentionCap, b.PendingCount("ops"))

	_, err = b.Acknowledge(ids[0], "again")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	pending := b.MessagesFor("ops", models.MessagePending)
	require.Len(t, pending, retentionCap)
	assert.Equal(t, "msg-0001", pending[0].ID)
	assert.Equal(t, "msg-overflow", pending[len(pending)-1].ID)
}

func TestEvictionDropsOldestPendingWhenQueueNeverRead(t *testing.T) {
	b := New()

	for i := 0; i < retentionCap+2; i++ {
		msg := testMessage("water_dept", "ops")
		msg.ID = fmt.Sprintf("msg-%04d", i)
		_, err := b.Publish(msg)
		require.NoError(t, err)
	}

	pending := b.MessagesFor("ops", models.MessagePending)
	require.Len(t, pending, retentionCap)
	assert.Equal(t, "msg-0002", pending[0].ID)

	_, err := b.Acknowledge("msg-0000", "late")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestConcurrentPublishAndAcknowledge(t *testing.T) {
	b := New()
	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				msg := testMessage(fmt.Sprintf("agent_%d", w), "coordinator")
				id, err := b.Publish(msg)
				assert.NoError(t, err)
				if i%2 == 0 {
					_, err = b.Acknowledge(id, "seen")
					assert.NoError(t, err)
				}
			}
		}(w)
	}
	wg.Wait()

	pending := b.MessagesFor("coordinator", models.MessagePending)
	acked := b.MessagesFor("coordinator", models.MessageAcknowledged)
	assert.Len(t, pending, writers*(perWriter/2))
	assert.Len(t, acked, writers*((perWriter+1)/2))
}
