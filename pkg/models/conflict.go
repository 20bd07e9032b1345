package models

import "time"

// Conflict is one detected collision between two or more agent decisions.
type Conflict struct {
	ConflictID      string       `json:"conflict_id"`
	Type            ConflictType `json:"conflict_type"`
	AgentsInvolved  []string     `json:"agents_involved"`
	Description     string       `json:"description"`
	Severity        Severity     `json:"severity"`
	ComplexityScore float64      `json:"complexity_score"`
	DetectedAt      time.Time    `json:"detected_at"`
}

// Involves reports whether the agent participates in the conflict.
func (c *Conflict) Involves(agentID string) bool {
	for _, id := range c.AgentsInvolved {
		if id == agentID {
			return true
		}
	}
	return false
}

// ConflictTypes returns the distinct conflict type labels, in input order.
func ConflictTypes(conflicts []Conflict) []string {
	seen := make(map[ConflictType]bool, len(conflicts))
	var types []string
	for i := range conflicts {
		if t := conflicts[i].Type; !seen[t] {
			seen[t] = true
			types = append(types, string(t))
		}
	}
	return types
}
