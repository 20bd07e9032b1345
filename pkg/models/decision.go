package models

import "time"

// AgentDecision is the record a domain agent emits for coordination. It is
// the coordinator's unit of input: conflict detection, rule resolution and
// negotiation all operate on lists of these.
type AgentDecision struct {
	AgentID         string    `json:"agent_id"`
	AgentType       string    `json:"agent_type"`
	Decision        Decision  `json:"decision"`
	Request         *Request  `json:"request,omitempty"`
	Confidence      float64   `json:"confidence"`
	Constraints     []string  `json:"constraints,omitempty"`
	ResourcesNeeded []string  `json:"resources_needed,omitempty"`
	Location        string    `json:"location,omitempty"`
	EstimatedCost   float64   `json:"estimated_cost"`
	Timeline        string    `json:"timeline,omitempty"`
	Priority        Priority  `json:"priority"`
	Timestamp       time.Time `json:"timestamp"`
}

// ID returns the agent identifier, falling back to the agent type when the
// caller did not assign one.
func (d *AgentDecision) ID() string {
	if d.AgentID != "" {
		return d.AgentID
	}
	return d.AgentType
}

// AgentIDs lists the identifier of every decision, in input order.
func AgentIDs(decisions []AgentDecision) []string {
	ids := make([]string, 0, len(decisions))
	for i := range decisions {
		ids = append(ids, decisions[i].ID())
	}
	return ids
}
