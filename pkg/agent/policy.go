package agent

import (
	"context"
	"fmt"

	"github.com/polis-ai/polis/pkg/config"
)

// validatePolicy applies the deterministic policy rules. The boolean verdict
// is authoritative and a failed policy always escalates; violations carry
// the rule id so auditors can trace the decision.
func (a *Agent) validatePolicy(ctx context.Context, s *State) error {
	pol := a.profile.Policy
	if pol == nil {
		pol = config.DefaultPolicyConfig()
	}

	var violations []string

	if cost := planCost(s); pol.MaxCostWithoutReview > 0 && cost > pol.MaxCostWithoutReview {
		violations = append(violations, fmt.Sprintf(
			"max_cost_without_review: estimated cost %.0f exceeds the %.0f review limit",
			cost, pol.MaxCostWithoutReview))
	}

	// Seasonal restrictions defer configured intents during monsoon months.
	// Emergencies are exempt.
	if !s.EmergencyIntent(a.profile) && containsFold(pol.SeasonRestrictedIntents, s.Intent) {
		if month := int(a.clock().Month()); containsInt(a.monsoonMonths(), month) {
			violations = append(violations, fmt.Sprintf(
				"seasonal_restriction: %s is restricted during monsoon month %d", s.Intent, month))
		}
	}

	s.PolicyViolations = violations
	s.PolicyOK = len(violations) == 0
	if !s.PolicyOK {
		if s.Observations == nil {
			s.Observations = make(map[string]any, 1)
		}
		s.Observations["policy_violations"] = violations
		s.MarkEscalated("policy violation: " + violations[0])
		a.logger.Info("Policy validation failed",
			"intent", s.Intent,
			"violations", violations)
	}
	return nil
}

func (a *Agent) monsoonMonths() []int {
	if a.cfg != nil && a.cfg.Coordination != nil && len(a.cfg.Coordination.MonsoonMonths) > 0 {
		return a.cfg.Coordination.MonsoonMonths
	}
	return config.DefaultCoordinationConfig().MonsoonMonths
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
