package agent

import (
	"time"

	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/datasource"
	"github.com/polis-ai/polis/pkg/models"
)

// Query types set by the intent analyser. Informational queries short-circuit
// to the direct-response path; actionable ones run the full pipeline.
const (
	QueryActionable    = "actionable"
	QueryInformational = "informational"
)

// State is the single mutable record threaded through one pipeline
// execution. Each run owns its state exclusively; nodes mutate it in place.
// Escalation is monotonic: once set it is never cleared inside the pipeline,
// and the first reason wins so the root cause survives later containment.
type State struct {
	// InputEvent is the original request. Nodes read it, never mutate it.
	InputEvent *models.Request

	AgentType config.AgentType

	// Context holds the fact-sets loaded by the context loader, keyed by
	// fact-set name. Failed loads leave an empty list, never a missing key.
	Context map[string][]datasource.Record

	// Classification.
	Intent         string
	QueryType      string
	RiskLevel      models.RiskLevel
	SafetyConcerns []string
	Goal           string

	// Planning.
	Plan             *models.Plan
	AlternativePlans []*models.Plan

	// Execution.
	ToolResults  map[string]models.ToolResult
	Observations map[string]any

	// Evaluation.
	Feasible           bool
	FeasibilityReason  string
	FeasibilityDetails map[string]any
	PolicyOK           bool
	PolicyViolations   []string
	Confidence         float64
	ConfidenceFactors  map[string]float64

	// Escalation.
	Escalate         bool
	EscalationReason string

	// Coordination checkpoint outputs.
	CoordinationCheck           *models.CoordinationCheck
	CoordinationApproved        bool
	CoordinationRecommendations []string

	// Retry bookkeeping. Attempts never exceeds MaxAttempts.
	Attempts    int
	MaxAttempts int
	RetryNeeded bool

	// Direct-response path outputs.
	DirectData    map[string]any
	DirectSummary string

	// Final outcome.
	Response *models.AgentResponse

	// Timing and provenance.
	StartedAt       time.Time
	CompletedAt     time.Time
	ExecutionTimeMS int64
	AgentVersion    string

	// Trace lists executed node names in order, filled in after the run.
	Trace []string
}

// newState seeds a fresh state for one request.
func newState(req *models.Request, agentType config.AgentType, maxAttempts int, startedAt time.Time) *State {
	return &State{
		InputEvent:   req,
		AgentType:    agentType,
		Context:      make(map[string][]datasource.Record),
		QueryType:    QueryActionable,
		RiskLevel:    models.RiskLow,
		ToolResults:  make(map[string]models.ToolResult),
		Observations: make(map[string]any),
		MaxAttempts:  maxAttempts,
		StartedAt:    startedAt,
		AgentVersion: agentVersion,
	}
}

// MarkEscalated flags the run for escalation. The first reason is kept.
func (s *State) MarkEscalated(reason string) {
	s.Escalate = true
	if s.EscalationReason == "" {
		s.EscalationReason = reason
	}
}

// Escalated reports whether the run is already marked for escalation.
func (s *State) Escalated() bool {
	return s.Escalate
}

// AttemptsExhausted reports whether the retry budget is spent.
func (s *State) AttemptsExhausted() bool {
	return s.Attempts >= s.MaxAttempts
}

// EmergencyIntent reports whether the classified intent is flagged emergency
// in the profile. Emergency intents bypass most feasibility rules and the
// seasonal policy restrictions.
func (s *State) EmergencyIntent(profile *config.AgentProfile) bool {
	if profile == nil || s.Intent == "" {
		return false
	}
	ic := profile.Intent(s.Intent)
	return ic != nil && ic.Emergency
}

// successfulTools counts tool results without an error, alongside the total.
func (s *State) successfulTools() (succeeded, total int) {
	for _, result := range s.ToolResults {
		total++
		if !result.Failed() {
			succeeded++
		}
	}
	return succeeded, total
}

// observationBool reads a boolean observation, def when absent.
func (s *State) observationBool(key string, def bool) bool {
	if v, ok := s.Observations[key].(bool); ok {
		return v
	}
	return def
}

// observationFloat reads a numeric observation, def when absent.
func (s *State) observationFloat(key string, def float64) float64 {
	switch v := s.Observations[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// observationString reads a string observation, def when absent.
func (s *State) observationString(key, def string) string {
	if v, ok := s.Observations[key].(string); ok && v != "" {
		return v
	}
	return def
}
