package api

import (
	"github.com/polis-ai/polis/pkg/models"
)

// CoordinateRequest is the body for POST /api/v1/coordination.
type CoordinateRequest struct {
	Decisions []models.AgentDecision `json:"decisions"`
}

// ResolveEscalationRequest is the body for POST /api/v1/escalations/:id/resolve.
// Approver is optional; when empty the proxy headers decide.
type ResolveEscalationRequest struct {
	Status   models.EscalationStatus `json:"status"`
	Approver string                  `json:"approver,omitempty"`
	Notes    string                  `json:"notes,omitempty"`
	Decision *models.ExecutionPlan   `json:"decision,omitempty"`
}

// AckMessageRequest is the body for POST /api/v1/messages/:id/ack.
type AckMessageRequest struct {
	Response string `json:"response,omitempty"`
}
