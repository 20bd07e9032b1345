package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/polis-ai/polis/pkg/datasource"
	"github.com/polis-ai/polis/pkg/llm"
	"github.com/polis-ai/polis/pkg/models"
)

// directResponseConfidence is reported for informational answers, which skip
// planning and carry no execution risk.
const directResponseConfidence = 0.95

// directRespond answers informational queries straight from the loaded
// context, bypassing planning, tools and feasibility.
func (a *Agent) directRespond(ctx context.Context, s *State) error {
	facts := a.profile.FactSets
	if ic := a.profile.Intent(s.Intent); ic != nil && len(ic.DataFacts) > 0 {
		facts = ic.DataFacts
	}

	data := make(map[string]any, len(facts))
	for _, name := range facts {
		records, ok := s.Context[name]
		if !ok {
			continue
		}
		data[name] = records
	}

	s.DirectData = data
	s.DirectSummary = a.summarise(ctx, s, data)
	s.Feasible = true
	s.PolicyOK = true
	s.Confidence = directResponseConfidence

	a.logger.Debug("Direct response prepared", "intent", s.Intent, "fact_sets", len(data))
	return nil
}

// summarise produces the prose summary of an informational answer, falling
// back to a deterministic record listing when no LLM is wired in.
func (a *Agent) summarise(ctx context.Context, s *State, data map[string]any) string {
	if a.llm != nil {
		system, user := directResponsePrompt(a.profile, s.InputEvent, data)
		reply, err := a.llm.Complete(ctx, llm.Request{System: system, User: user, MaxTokens: 200})
		if err == nil && strings.TrimSpace(reply) != "" {
			return strings.TrimSpace(reply)
		}
		a.logger.Warn("Summary generation unavailable, using record listing", "error", err)
	}

	parts := make([]string, 0, len(data))
	for _, name := range sortedKeys(data) {
		records, _ := data[name].([]datasource.Record)
		parts = append(parts, fmt.Sprintf("%s: %d records", name, len(records)))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("No records on file for %s at %s.", s.Intent, s.InputEvent.Location)
	}
	return fmt.Sprintf("Current %s data for %s. %s.", a.agentType, s.InputEvent.Location, strings.Join(parts, "; "))
}

// decideOutcome maps the final pipeline state onto a decision and its
// user-facing reason. Escalation always wins; informational queries inform;
// a plan that passed feasibility and policy is recommended, or approved for
// emergency intents; everything else is denied.
func (a *Agent) decideOutcome(s *State) (models.Decision, string) {
	switch {
	case s.Escalate:
		reason := s.EscalationReason
		if reason == "" {
			reason = "escalated without a recorded reason"
		}
		return models.DecisionEscalate, reason
	case s.QueryType == QueryInformational:
		return models.DecisionInform, s.DirectSummary
	case s.Feasible && s.PolicyOK:
		name := "the proposed plan"
		if s.Plan != nil {
			name = fmt.Sprintf("plan %q", s.Plan.Name)
		}
		if s.EmergencyIntent(a.profile) {
			return models.DecisionApprove, fmt.Sprintf("emergency response approved: %s passed all checks", name)
		}
		return models.DecisionRecommend, fmt.Sprintf("%s passed feasibility and policy checks", name)
	default:
		reason := s.FeasibilityReason
		if reason == "" {
			reason = "request cannot proceed"
		}
		return models.DecisionDeny, reason
	}
}

// generateOutput assembles the final AgentResponse from the pipeline state.
// It is the graph's output node, so it also runs for escalated states that
// jumped over intermediate nodes.
func (a *Agent) generateOutput(ctx context.Context, s *State) error {
	decision, reason := a.decideOutcome(s)

	resp := &models.AgentResponse{
		Decision:            decision,
		Reason:              reason,
		RequiresHumanReview: decision == models.DecisionEscalate,
		Confidence:          s.Confidence,
		Details: &models.ResponseDetails{
			Feasible:        s.Feasible,
			PolicyCompliant: s.PolicyOK,
			RiskLevel:       s.RiskLevel,
			Plan:            s.Plan,
			ToolResults:     s.ToolResults,
			Observations:    s.Observations,
		},
	}

	switch decision {
	case models.DecisionRecommend, models.DecisionApprove:
		resp.Recommendation = &models.Recommendation{
			Action:     s.Goal,
			Plan:       s.Plan,
			Conditions: s.CoordinationRecommendations,
			Confidence: s.Confidence,
		}
	case models.DecisionInform:
		resp.Data = s.DirectData
	}

	s.CompletedAt = a.clock()
	s.ExecutionTimeMS = s.CompletedAt.Sub(s.StartedAt).Milliseconds()
	if s.ExecutionTimeMS < 0 {
		s.ExecutionTimeMS = 0
	}
	resp.ExecutionTimeMS = s.ExecutionTimeMS
	s.Response = resp

	a.logger.Info("Request decided",
		"decision", decision,
		"intent", s.Intent,
		"confidence", s.Confidence,
		"escalate", s.Escalate,
		"attempts", s.Attempts,
		"execution_time_ms", s.ExecutionTimeMS)
	return nil
}
