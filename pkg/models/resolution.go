package models

import "time"

// SequenceStep orders one agent inside a sequenced execution plan.
type SequenceStep struct {
	Agent string `json:"agent"`
	Order int    `json:"order"`
}

// ExecutionPlan encodes the concrete outcome of a resolution: who proceeds,
// who waits, who is postponed, and in what order.
type ExecutionPlan struct {
	Approved   []string       `json:"approved,omitempty"`
	Queued     []string       `json:"queued,omitempty"`
	Deferred   []string       `json:"deferred,omitempty"`
	Rejected   []string       `json:"rejected,omitempty"`
	Sequence   []SequenceStep `json:"sequence,omitempty"`
	Action     string         `json:"action"`
	DeferUntil string         `json:"defer_until,omitempty"`
}

// ApproveAllPlan builds the execution plan used when nothing conflicts.
func ApproveAllPlan(agentIDs []string) *ExecutionPlan {
	return &ExecutionPlan{
		Approved: agentIDs,
		Action:   "execute_all",
	}
}

// Resolution is the coordinator's verdict for one conflict.
type Resolution struct {
	ResolutionID  string             `json:"resolution_id"`
	ConflictID    string             `json:"conflict_id"`
	Method        ResolutionMethod   `json:"method"`
	Decision      ResolutionDecision `json:"decision"`
	Rationale     string             `json:"rationale"`
	Confidence    float64            `json:"confidence"`
	RequiresHuman bool               `json:"requires_human"`
	ExecutionPlan *ExecutionPlan     `json:"execution_plan,omitempty"`
	ResolvedAt    time.Time          `json:"resolved_at"`
}
