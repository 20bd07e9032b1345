package models

import "time"

// InterAgentMessage is an ad-hoc message exchanged over the bus, outside the
// coordination workflow (status updates, assistance requests, acks).
type InterAgentMessage struct {
	ID        string         `json:"id"`
	FromAgent string         `json:"from_agent"`
	ToAgent   string         `json:"to_agent"`
	Type      MessageType    `json:"message_type"`
	Priority  Severity       `json:"priority"`
	Content   string         `json:"content"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Status    MessageStatus  `json:"status"`
	Response  string         `json:"response,omitempty"`
}
