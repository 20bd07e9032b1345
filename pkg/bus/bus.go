// Package bus provides the in-process message bus agents use for ad-hoc
// communication outside the coordination workflow: assistance requests,
// status updates and acknowledgements. Delivery is per-receiver FIFO and
// non-durable; messages live only as long as the process.
package bus

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/polis-ai/polis/pkg/metrics"
	"github.com/polis-ai/polis/pkg/models"
)

var (
	// ErrMessageNotFound is returned when acknowledging an unknown message id.
	ErrMessageNotFound = errors.New("message not found")

	// ErrInvalidMessage is returned when a published message is missing
	// required fields or carries an unknown type.
	ErrInvalidMessage = errors.New("invalid message")
)

// retentionCap bounds how many messages the bus keeps per receiver. When the
// cap is hit, the oldest acknowledged messages are evicted first; pending
// messages are only dropped (with a warning) when a receiver never reads its
// queue.
const retentionCap = 500

// Bus is a process-wide mailbox keyed by receiving agent. Publish appends,
// MessagesFor reads without consuming, Acknowledge closes a message out.
// All methods are safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	queues map[string][]*models.InterAgentMessage
	byID   map[string]*models.InterAgentMessage

	logger *slog.Logger
	clock  func() time.Time
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{
		queues: make(map[string][]*models.InterAgentMessage),
		byID:   make(map[string]*models.InterAgentMessage),
		logger: slog.Default().With("component", "bus"),
		clock:  time.Now,
	}
}

// Publish enqueues a message for its receiver and returns the message id.
// A missing id or timestamp is filled in and the status always starts as
// pending; sender, receiver and a valid message type are required.
func (b *Bus) Publish(msg models.InterAgentMessage) (string, error) {
	if msg.FromAgent == "" || msg.ToAgent == "" {
		return "", fmt.Errorf("%w: from_agent and to_agent are required", ErrInvalidMessage)
	}
	if msg.Type == "" {
		msg.Type = models.MessageStatusUpdate
	}
	if !msg.Type.IsValid() {
		return "", fmt.Errorf("%w: unknown message type %q", ErrInvalidMessage, msg.Type)
	}
	if msg.Priority == "" {
		msg.Priority = models.SeverityLow
	}
	if !msg.Priority.IsValid() {
		return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidMessage, msg.Priority)
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = b.clock().UTC()
	}
	msg.Status = models.MessagePending
	msg.Response = ""

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.byID[msg.ID]; exists {
		return "", fmt.Errorf("%w: duplicate message id %s", ErrInvalidMessage, msg.ID)
	}

	stored := msg
	b.queues[msg.ToAgent] = append(b.queues[msg.ToAgent], &stored)
	b.byID[msg.ID] = &stored
	b.evictLocked(msg.ToAgent)

	metrics.BusMessages.WithLabelValues(string(msg.Type)).Inc()
	b.logger.Debug("Message published",
		"message_id", msg.ID,
		"from", msg.FromAgent,
		"to", msg.ToAgent,
		"message_type", string(msg.Type))
	return msg.ID, nil
}

// MessagesFor returns the receiver's messages with the given status in
// publish order. An empty status defaults to pending. Reading does not
// consume: messages stay queued until acknowledged and evicted.
func (b *Bus) MessagesFor(agent string, status models.MessageStatus) []models.InterAgentMessage {
	if status == "" {
		status = models.MessagePending
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []models.InterAgentMessage
	for _, msg := range b.queues[agent] {
		if msg.Status != status {
			continue
		}
		out = append(out, *msg)
	}
	return out
}

// Acknowledge marks a message acknowledged and records the receiver's
// response. It returns the updated message.
func (b *Bus) Acknowledge(id, response string) (models.InterAgentMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg, ok := b.byID[id]
	if !ok {
		return models.InterAgentMessage{}, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	msg.Status = models.MessageAcknowledged
	msg.Response = response
	return *msg, nil
}

// PendingCount reports how many unacknowledged messages a receiver has.
func (b *Bus) PendingCount(agent string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, msg := range b.queues[agent] {
		if msg.Status == models.MessagePending {
			n++
		}
	}
	return n
}

// Receivers lists every agent that currently holds messages, for the
// operator surface.
func (b *Bus) Receivers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.queues))
	for agent, q := range b.queues {
		if len(q) > 0 {
			out = append(out, agent)
		}
	}
	return out
}

// SweepAcknowledged drops acknowledged messages published before the cutoff
// and returns how many were removed. Pending messages are never swept; they
// stay until acknowledged or evicted under the per-receiver cap.
func (b *Bus) SweepAcknowledged(cutoff time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	swept := 0
	for agent, q := range b.queues {
		kept := q[:0]
		for _, msg := range q {
			if msg.Status == models.MessageAcknowledged && msg.Timestamp.Before(cutoff) {
				delete(b.byID, msg.ID)
				swept++
				continue
			}
			kept = append(kept, msg)
		}
		if len(kept) == 0 {
			delete(b.queues, agent)
			continue
		}
		b.queues[agent] = kept
	}
	return swept
}

// evictLocked trims a receiver's queue back under retentionCap. Callers hold
// b.mu. Acknowledged messages go first, oldest first; a pending message is
// dropped only when the whole queue is pending, which means the receiver has
// stopped reading.
func (b *Bus) evictLocked(agent string) {
	q := b.queues[agent]
	if len(q) <= retentionCap {
		return
	}

	kept := q[:0]
	excess := len(q) - retentionCap
	for _, msg := range q {
		if excess > 0 && msg.Status == models.MessageAcknowledged {
			delete(b.byID, msg.ID)
			excess--
			continue
		}
		kept = append(kept, msg)
	}
	for excess > 0 {
		dropped := kept[0]
		kept = kept[1:]
		delete(b.byID, dropped.ID)
		excess--
		b.logger.Warn("Dropping unread message, receiver queue full",
			"message_id", dropped.ID,
			"to", agent,
			"from", dropped.FromAgent)
	}
	b.queues[agent] = kept
}
