package agent

import (
	"context"
	"fmt"

	"github.com/polis-ai/polis/pkg/llm"
	"github.com/polis-ai/polis/pkg/models"
)

// plannerReply is the strict JSON contract of the LLM planning path.
type plannerReply struct {
	Plans []plannedPlan `json:"plans"`
}

type plannedPlan struct {
	Name              string   `json:"name"`
	Steps             []string `json:"steps"`
	EstimatedDuration string   `json:"estimated_duration"`
	EstimatedCost     float64  `json:"estimated_cost"`
	ResourcesNeeded   []string `json:"resources_needed"`
	RiskLevel         string   `json:"risk_level"`
}

// plan produces the primary plan and the ordered alternatives. First entry
// prefers the LLM and falls back to the intent's plan templates. Re-entry
// after a coordination retry consumes the next alternative head-first
// instead of regenerating; when none remain the run escalates.
func (a *Agent) plan(ctx context.Context, s *State) error {
	if s.Plan != nil {
		if len(s.AlternativePlans) == 0 {
			s.MarkEscalated(fmt.Sprintf("out of alternative plans for %s after %d attempts", s.Intent, s.Attempts))
			return nil
		}
		s.Plan = s.AlternativePlans[0]
		s.AlternativePlans = s.AlternativePlans[1:]
		a.logger.Info("Promoted alternative plan after coordination retry",
			"plan", s.Plan.Name,
			"attempt", s.Attempts,
			"remaining_alternatives", len(s.AlternativePlans))
		return nil
	}

	plans := a.llmPlans(ctx, s)
	if len(plans) == 0 {
		plans = a.templatePlans(s)
	}
	if len(plans) == 0 {
		s.MarkEscalated(fmt.Sprintf("no plan available for intent %s", s.Intent))
		return nil
	}

	s.Plan = plans[0]
	s.AlternativePlans = plans[1:]
	a.logger.Info("Plan selected",
		"plan", s.Plan.Name,
		"steps", len(s.Plan.Steps),
		"alternatives", len(s.AlternativePlans))
	return nil
}

// llmPlans asks the LLM for ranked plans. Steps naming tools outside the
// agent's registry are dropped; a plan without surviving steps is discarded.
// Any failure returns nil so the template fallback takes over.
func (a *Agent) llmPlans(ctx context.Context, s *State) []*models.Plan {
	if a.llm == nil {
		return nil
	}

	var reply plannerReply
	system, user := plannerPrompt(a.profile, a.registry, s)
	if err := llm.CompleteJSON(ctx, a.llm, llm.Request{System: system, User: user, JSONOnly: true}, &reply); err != nil {
		a.logger.Warn("LLM planning unavailable, using plan templates", "error", err)
		return nil
	}

	plans := make([]*models.Plan, 0, len(reply.Plans))
	for _, p := range reply.Plans {
		steps := make([]models.PlanStep, 0, len(p.Steps))
		for _, toolName := range p.Steps {
			if !a.registry.Has(toolName) {
				a.logger.Warn("Dropping unknown tool from generated plan",
					"plan", p.Name,
					"tool", toolName)
				continue
			}
			steps = append(steps, models.PlanStep{Tool: toolName})
		}
		if len(steps) == 0 {
			a.logger.Warn("Discarding generated plan with no usable steps", "plan", p.Name)
			continue
		}

		cost := p.EstimatedCost
		if cost <= 0 {
			cost = s.InputEvent.EstimatedCost
		}
		risk := models.RiskLevel(p.RiskLevel)
		if !risk.IsValid() {
			risk = s.RiskLevel
		}
		plans = append(plans, &models.Plan{
			Name:              p.Name,
			Steps:             steps,
			EstimatedCost:     cost,
			EstimatedDuration: p.EstimatedDuration,
			ResourcesNeeded:   p.ResourcesNeeded,
			RiskLevel:         risk,
		})
	}
	return plans
}

// templatePlans materialises the intent's deterministic plan templates in
// declared order: head is the primary, the tail feeds alternative_plans.
func (a *Agent) templatePlans(s *State) []*models.Plan {
	ic := a.profile.Intent(s.Intent)
	if ic == nil {
		return nil
	}

	cost := s.InputEvent.EstimatedCost
	plans := make([]*models.Plan, 0, len(ic.Plans))
	for _, tmpl := range ic.Plans {
		steps := make([]models.PlanStep, 0, len(tmpl.Steps))
		for _, toolName := range tmpl.Steps {
			steps = append(steps, models.PlanStep{Tool: toolName})
		}
		risk := tmpl.RiskLevel
		if !risk.IsValid() {
			risk = s.RiskLevel
		}
		plans = append(plans, &models.Plan{
			Name:              tmpl.Name,
			Steps:             steps,
			EstimatedCost:     cost,
			EstimatedDuration: tmpl.EstimatedDuration,
			ResourcesNeeded:   append([]string(nil), tmpl.ResourcesNeeded...),
			RiskLevel:         risk,
		})
	}
	return plans
}
