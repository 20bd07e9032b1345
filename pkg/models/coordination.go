package models

// PlanQuery is the payload an agent sends to the coordinator from its
// mid-pipeline checkpoint, before committing to plan execution.
type PlanQuery struct {
	AgentID         string   `json:"agent_id"`
	AgentType       string   `json:"agent_type"`
	Plan            *Plan    `json:"plan,omitempty"`
	Location        string   `json:"location,omitempty"`
	ResourcesNeeded []string `json:"resources_needed,omitempty"`
	EstimatedCost   float64  `json:"estimated_cost"`
	Priority        Priority `json:"priority"`
}

// CoordinationCheck is the coordinator's checkpoint verdict.
type CoordinationCheck struct {
	HasConflicts           bool     `json:"has_conflicts"`
	ShouldProceed          bool     `json:"should_proceed"`
	RequiresHuman          bool     `json:"requires_human"`
	ConflictTypes          []string `json:"conflict_types,omitempty"`
	Recommendations        []string `json:"recommendations,omitempty"`
	AlternativeSuggestions []string `json:"alternative_suggestions,omitempty"`
}

// CoordinationResult is the caller-facing outcome of one coordination run.
type CoordinationResult struct {
	CoordinationID    string           `json:"coordination_id"`
	Decision          string           `json:"decision"`
	Rationale         string           `json:"rationale"`
	ExecutionPlan     *ExecutionPlan   `json:"execution_plan,omitempty"`
	ConflictsDetected int              `json:"conflicts_detected"`
	ResolutionMethod  ResolutionMethod `json:"resolution_method"`
	RequiresHuman     bool             `json:"requires_human"`
	ProcessingTime    float64          `json:"processing_time"`
	WorkflowLog       []string         `json:"workflow_log,omitempty"`
}
