package models

import "time"

// TransparencyEntry is one append-only decision record. Entries are written
// once and never updated; SearchableText feeds the similarity index.
type TransparencyEntry struct {
	LogID            string         `json:"log_id"`
	Timestamp        time.Time      `json:"timestamp"`
	AgentType        string         `json:"agent_type"`
	NodeName         string         `json:"node_name"`
	Decision         string         `json:"decision"`
	Context          map[string]any `json:"context,omitempty"`
	Rationale        string         `json:"rationale"`
	Confidence       float64        `json:"confidence"`
	CostImpact       float64        `json:"cost_impact"`
	AffectedCitizens int            `json:"affected_citizens"`
	PolicyReferences []string       `json:"policy_references,omitempty"`
	SearchableText   string         `json:"searchable_text"`
}
