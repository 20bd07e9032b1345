package models

// AgentResponse is the final structured answer of one pipeline execution.
type AgentResponse struct {
	Decision            Decision        `json:"decision"`
	Reason              string          `json:"reason"`
	RequiresHumanReview bool            `json:"requires_human_review"`
	Confidence          float64         `json:"confidence"`
	Recommendation      *Recommendation `json:"recommendation,omitempty"`
	Data                map[string]any  `json:"data,omitempty"`
	Details             *ResponseDetails `json:"details,omitempty"`
	ExecutionTimeMS     int64           `json:"execution_time_ms"`
}

// Recommendation carries the actionable part of a recommend/approve response.
type Recommendation struct {
	Action      string   `json:"action"`
	Plan        *Plan    `json:"plan,omitempty"`
	Constraints string   `json:"constraints,omitempty"`
	Conditions  []string `json:"conditions,omitempty"`
	Confidence  float64  `json:"confidence"`
}

// ResponseDetails exposes the evaluated pipeline state for auditing.
type ResponseDetails struct {
	Feasible        bool                  `json:"feasible"`
	PolicyCompliant bool                  `json:"policy_compliant"`
	RiskLevel       RiskLevel             `json:"risk_level,omitempty"`
	Plan            *Plan                 `json:"plan,omitempty"`
	ToolResults     map[string]ToolResult `json:"tool_results,omitempty"`
	Observations    map[string]any        `json:"observations,omitempty"`
}

// ErrorResponse builds the synchronous response for requests rejected before
// the pipeline runs.
func ErrorResponse(reason string) *AgentResponse {
	return &AgentResponse{
		Decision: DecisionError,
		Reason:   reason,
	}
}
