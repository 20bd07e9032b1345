package models

// PlanStep is a single tool invocation inside a plan. The planner fills Tool
// from the agent's registry; the executor derives Params from pipeline state
// just before the call.
type PlanStep struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params,omitempty"`
}

// Plan is a structured proposal for satisfying a request.
type Plan struct {
	Name              string    `json:"name,omitempty"`
	Steps             []PlanStep `json:"steps"`
	EstimatedCost     float64   `json:"estimated_cost"`
	EstimatedDuration string    `json:"estimated_duration,omitempty"`
	ResourcesNeeded   []string  `json:"resources_needed,omitempty"`
	RiskLevel         RiskLevel `json:"risk_level,omitempty"`
}

// ToolNames returns the tool name of every step, in order.
func (p *Plan) ToolNames() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		names = append(names, s.Tool)
	}
	return names
}

// ToolResult is the structured outcome of one tool call. Failed calls carry
// an "error" key and nothing else.
type ToolResult map[string]any

// ErrorResult wraps a failure into the {error} convention.
func ErrorResult(err error) ToolResult {
	return ToolResult{"error": err.Error()}
}

// Err returns the error message when the result is a failure, else "".
func (r ToolResult) Err() string {
	if r == nil {
		return ""
	}
	msg, _ := r["error"].(string)
	return msg
}

// Failed reports whether the result carries an error.
func (r ToolResult) Failed() bool {
	return r.Err() != ""
}

// Bool returns a boolean field of the result, or def when absent.
func (r ToolResult) Bool(key string, def bool) bool {
	if v, ok := r[key].(bool); ok {
		return v
	}
	return def
}

// Float returns a numeric field of the result, or def when absent.
func (r ToolResult) Float(key string, def float64) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// String returns a string field of the result, or def when absent.
func (r ToolResult) String(key, def string) string {
	if v, ok := r[key].(string); ok && v != "" {
		return v
	}
	return def
}
