package models

import "time"

// DecisionOption is one choice offered to the human approver.
type DecisionOption struct {
	ID          string         `json:"id"`
	Label       string         `json:"label"`
	Description string         `json:"description,omitempty"`
	Plan        *ExecutionPlan `json:"plan,omitempty"`
}

// HumanEscalation is a request for human ratification of a resolution.
type HumanEscalation struct {
	EscalationID  string           `json:"escalation_id"`
	ConflictID    string           `json:"conflict_id,omitempty"`
	Reason        string           `json:"reason"`
	Urgency       Severity         `json:"urgency"`
	Options       []DecisionOption `json:"options"`
	LLMAnalysis   string           `json:"llm_analysis,omitempty"`
	Status        EscalationStatus `json:"status"`
	Approver      string           `json:"approver,omitempty"`
	ApprovalNotes string           `json:"approval_notes,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	ResolvedAt    *time.Time       `json:"resolved_at,omitempty"`
}

// HumanDecision is the approver's answer to an escalation.
type HumanDecision struct {
	Status     EscalationStatus `json:"status"`
	Approver   string           `json:"approver"`
	Decision   *ExecutionPlan   `json:"decision,omitempty"`
	Notes      string           `json:"notes,omitempty"`
	ApprovedAt time.Time        `json:"approved_at"`
}
