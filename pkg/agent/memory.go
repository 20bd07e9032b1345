package agent

import (
	"context"

	"github.com/google/uuid"

	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/models"
)

// DecisionRecorder persists transparency entries for citizen auditability.
// The translog package implements it; a nil recorder disables logging.
type DecisionRecorder interface {
	Append(ctx context.Context, entry models.TransparencyEntry) error
}

// logDecision appends one transparency entry describing how the request was
// decided. Recording is best-effort: a failing audit store must never block
// the response.
func (a *Agent) logDecision(ctx context.Context, s *State) error {
	if a.recorder == nil {
		return nil
	}

	decision, reason := a.decideOutcome(s)
	nodeName := "decision_router"
	if s.QueryType == QueryInformational {
		nodeName = "direct_response"
	}

	entry := models.TransparencyEntry{
		LogID:            uuid.NewString(),
		Timestamp:        a.clock(),
		AgentType:        string(a.agentType),
		NodeName:         nodeName,
		Decision:         string(decision),
		Rationale:        reason,
		Confidence:       s.Confidence,
		CostImpact:       planCost(s),
		AffectedCitizens: s.InputEvent.Int("affected_citizens", 0),
		PolicyReferences: policyReferences(a.profile),
		Context: map[string]any{
			"location":  s.InputEvent.Location,
			"type":      s.InputEvent.Type,
			"intent":    s.Intent,
			"goal":      s.Goal,
			"attempts":  s.Attempts,
			"feasible":  s.Feasible,
			"policy_ok": s.PolicyOK,
		},
	}

	if err := a.recorder.Append(ctx, entry); err != nil {
		a.logger.Warn("Failed to append transparency entry", "log_id", entry.LogID, "error", err)
	}
	return nil
}

func policyReferences(p *config.AgentProfile) []string {
	if p.Policy == nil || len(p.Policy.References) == 0 {
		return nil
	}
	return append([]string(nil), p.Policy.References...)
}
