package agent

import (
	"context"
	"sort"
	"strings"

	"github.com/polis-ai/polis/pkg/llm"
	"github.com/polis-ai/polis/pkg/models"
)

// observe normalises tool_results into the flat extracted-facts mapping the
// feasibility evaluator reads. The switch over known tool names is the
// authoritative extraction; LLM commentary, when available, is attached as a
// log-friendly summary and nothing more.
func (a *Agent) observe(ctx context.Context, s *State) error {
	obs := make(map[string]any, 2*len(s.ToolResults))

	var failed []string
	for name, result := range s.ToolResults {
		if result.Failed() {
			failed = append(failed, name)
			continue
		}
		extractFacts(name, result, obs)
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		obs["failed_tools"] = failed
	}
	if len(s.SafetyConcerns) > 0 {
		obs["safety_concerns"] = s.SafetyConcerns
	}
	s.Observations = obs

	if a.llm != nil {
		system, user := observerPrompt(s)
		summary, err := a.llm.Complete(ctx, llm.Request{System: system, User: user, MaxTokens: 160})
		if err != nil {
			a.logger.Debug("Observer commentary unavailable", "error", err)
		} else if summary = strings.TrimSpace(summary); summary != "" {
			obs["summary"] = summary
		}
	}
	return nil
}

// extractFacts maps one successful tool result onto flat observation keys.
func extractFacts(tool string, result models.ToolResult, obs map[string]any) {
	switch tool {
	case "check_worker_availability":
		obs["workers_available"] = result.Float("available_workers", 0)
		obs["workers_required"] = result.Float("required_workers", 0)
		obs["workers_sufficient"] = result.Bool("sufficient", false)
	case "check_schedule_conflicts":
		obs["schedule_conflicts"] = result.Float("conflict_count", 0)
		obs["has_schedule_conflicts"] = result.Bool("has_conflicts", false)
	case "check_budget":
		obs["budget_remaining"] = result.Float("remaining", 0)
		obs["budget_utilization_percent"] = result.Float("utilization_percent", 0)
		if _, ok := result["sufficient_funds"]; ok {
			obs["sufficient_funds"] = result.Bool("sufficient_funds", false)
		}
	case "check_infrastructure_condition":
		obs["infrastructure_condition"] = result.String("worst_condition", "unknown")
		obs["infrastructure_degraded"] = result.Bool("degraded", false)
	case "count_active_projects":
		obs["active_projects"] = result.Float("active_projects", 0)
	case "check_equipment_status":
		obs["equipment_operational"] = result.Float("operational", 0)
		obs["equipment_total"] = result.Float("total_units", 0)
		obs["all_equipment_operational"] = result.Bool("all_operational", false)
	case "check_zone_risk":
		obs["zone_risk_level"] = result.String("risk_level", "low")
		obs["open_incidents"] = result.Float("open_incidents", 0)
	case "check_bin_capacity":
		obs["avg_fill_percent"] = result.Float("avg_fill_percent", 0)
		obs["max_fill_percent"] = result.Float("max_fill_percent", 0)
		obs["bins_over_90"] = result.Float("bins_over_90", 0)
	case "get_active_routes":
		obs["active_routes"] = result.Float("active_routes", 0)
	case "get_supplies":
		obs["supply_items"] = result.Float("items", 0)
		obs["supply_quantity"] = result.Float("total_quantity", 0)
	case "get_campaigns":
		obs["active_campaigns"] = result.Float("active_campaigns", 0)
	case "get_facilities":
		obs["facilities"] = result.Float("facilities", 0)
		obs["avg_facility_utilization"] = result.Float("avg_utilization_percent", 0)
	}
}
