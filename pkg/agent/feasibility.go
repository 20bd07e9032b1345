package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/polis-ai/polis/pkg/config"
)

// ruleOutcome classifies a feasibility failure by what can still change it.
type ruleOutcome int

const (
	rulePassed ruleOutcome = iota

	// ruleRetry failures may disappear under an alternative plan with a
	// different tool set or reduced scope.
	ruleRetry

	// ruleDeny failures are structural blockers no plan variant removes.
	ruleDeny

	// ruleEscalate failures need an authority the agent does not have.
	ruleEscalate
)

type ruleResult struct {
	rule    string
	outcome ruleOutcome
	reason  string
}

// evaluateFeasibility applies the deterministic rule set over the extracted
// observations and the selected plan.
//
// Outcomes:
//   - all rules pass           -> feasible, continue to policy
//   - retryable failure        -> promote the next alternative plan and loop
//     back to the tool executor; escalate once alternatives or the attempt
//     budget run out
//   - structural blocker       -> infeasible, continue (the output generator
//     turns a non-escalated infeasible run into a deny)
//   - authority-bound failure  -> escalate immediately
//
// Emergency intents bypass every rule except worker availability.
func (a *Agent) evaluateFeasibility(ctx context.Context, s *State) error {
	emergency := s.EmergencyIntent(a.profile)
	results := a.feasibilityRules(s, emergency)

	details := make(map[string]any, len(results)+1)
	var failures []ruleResult
	for _, r := range results {
		if r.outcome == rulePassed {
			details[r.rule] = "ok"
			continue
		}
		details[r.rule] = r.reason
		failures = append(failures, r)
	}
	if emergency {
		details["emergency_bypass"] = true
	}
	s.FeasibilityDetails = details

	if len(failures) == 0 {
		s.Feasible = true
		s.FeasibilityReason = "all feasibility checks passed"
		s.RetryNeeded = false
		return nil
	}

	// The worst failure drives the route; ties keep rule order.
	primary := failures[0]
	for _, f := range failures[1:] {
		if f.outcome > primary.outcome {
			primary = f
		}
	}
	s.Feasible = false
	s.FeasibilityReason = primary.reason

	switch primary.outcome {
	case ruleEscalate:
		s.RetryNeeded = false
		s.MarkEscalated(primary.reason)

	case ruleDeny:
		s.RetryNeeded = false

	default:
		if s.AttemptsExhausted() || len(s.AlternativePlans) == 0 {
			s.RetryNeeded = false
			s.MarkEscalated(primary.reason)
			return nil
		}
		s.Plan = s.AlternativePlans[0]
		s.AlternativePlans = s.AlternativePlans[1:]
		s.Attempts++
		s.RetryNeeded = true
		a.logger.Info("Plan infeasible, retrying with an alternative",
			"reason", primary.reason,
			"plan", s.Plan.Name,
			"attempt", s.Attempts)
	}
	return nil
}

// feasibilityRules evaluates every configured rule whose backing observation
// exists. A rule whose tool never ran in this plan is skipped, not failed;
// tools that ran and failed surface through the data-completeness rule.
func (a *Agent) feasibilityRules(s *State, emergency bool) []ruleResult {
	feas := a.profile.Feasibility
	if feas == nil {
		feas = config.DefaultFeasibilityConfig()
	}

	var results []ruleResult
	add := func(rule string, outcome ruleOutcome, reason string) {
		results = append(results, ruleResult{rule: rule, outcome: outcome, reason: reason})
	}

	// Worker availability applies to everything, emergencies included.
	if _, ran := s.Observations["workers_sufficient"]; ran {
		if s.observationBool("workers_sufficient", false) {
			add("workers", rulePassed, "")
		} else {
			add("workers", ruleRetry, fmt.Sprintf("Insufficient available workers: %.0f of %.0f required at %s",
				s.observationFloat("workers_available", 0),
				s.observationFloat("workers_required", 0),
				s.InputEvent.Location))
		}
	}

	if emergency {
		return results
	}

	if failed, ok := s.Observations["failed_tools"].([]string); ok && len(failed) > 0 {
		add("data_complete", ruleRetry, "Incomplete data: tool failures: "+strings.Join(failed, ", "))
	}

	if _, ran := s.Observations["has_schedule_conflicts"]; ran {
		if s.observationBool("has_schedule_conflicts", false) {
			add("schedule", ruleRetry, fmt.Sprintf("Schedule conflict: %.0f overlapping tasks at %s",
				s.observationFloat("schedule_conflicts", 0), s.InputEvent.Location))
		} else {
			add("schedule", rulePassed, "")
		}
	}

	if _, ran := s.Observations["sufficient_funds"]; ran {
		if s.observationBool("sufficient_funds", false) {
			add("budget", rulePassed, "")
		} else {
			add("budget", ruleEscalate, fmt.Sprintf("Insufficient budget: remaining %.0f, estimated cost %.0f",
				s.observationFloat("budget_remaining", 0), planCost(s)))
		}
	}
	if _, ran := s.Observations["budget_utilization_percent"]; ran && feas.BudgetUtilisationCap > 0 {
		capPercent := feas.BudgetUtilisationCap * 100
		if utilization := s.observationFloat("budget_utilization_percent", 0); utilization > capPercent {
			add("budget_utilisation", ruleEscalate, fmt.Sprintf("Budget utilisation %.0f%% exceeds the %.0f%% cap",
				utilization, capPercent))
		} else {
			add("budget_utilisation", rulePassed, "")
		}
	}

	if condition := s.observationString("infrastructure_condition", ""); condition != "" {
		if containsFold(feas.BlockedConditions, condition) {
			add("infrastructure", ruleDeny, fmt.Sprintf("Infrastructure condition %s blocks work at %s",
				condition, s.InputEvent.Location))
		} else {
			add("infrastructure", rulePassed, "")
		}
	}

	if zoneRisk := s.observationString("zone_risk_level", ""); zoneRisk != "" {
		if containsFold(feas.BlockedZoneRisks, zoneRisk) {
			add("zone_risk", ruleDeny, fmt.Sprintf("Zone risk level %s blocks work at %s",
				zoneRisk, s.InputEvent.Location))
		} else {
			add("zone_risk", rulePassed, "")
		}
	}

	if _, ran := s.Observations["active_projects"]; ran && feas.MaxActiveProjects > 0 {
		if active := s.observationFloat("active_projects", 0); int(active) >= feas.MaxActiveProjects {
			add("active_projects", ruleDeny, fmt.Sprintf("Active project cap reached: %.0f of %d at %s",
				active, feas.MaxActiveProjects, s.InputEvent.Location))
		} else {
			add("active_projects", rulePassed, "")
		}
	}

	return results
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
