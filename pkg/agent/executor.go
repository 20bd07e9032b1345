package agent

import (
	"context"
	"errors"

	"github.com/polis-ai/polis/pkg/models"
	"github.com/polis-ai/polis/pkg/tools"
)

// executeTools runs every step of the selected plan against the agent's tool
// registry. Parameters derive deterministically from the request and plan; a
// failing tool records {error} under its step name and execution continues.
// Each pass rebuilds tool_results so a retried plan never mixes results with
// the plan it replaced.
func (a *Agent) executeTools(ctx context.Context, s *State) error {
	if s.Plan == nil {
		return errors.New("no plan to execute")
	}

	params := a.toolParams(s)
	s.ToolResults = make(map[string]models.ToolResult, len(s.Plan.Steps))

	for _, step := range s.Plan.Steps {
		result := a.registry.Execute(ctx, a.source, step.Tool, params)
		s.ToolResults[step.Tool] = result
		if result.Failed() {
			a.logger.Warn("Tool call failed", "tool", step.Tool, "error", result.Err())
		}
	}

	a.logger.Debug("Plan executed", "plan", s.Plan.Name, "tools", len(s.ToolResults))
	return nil
}

// toolParams derives the shared parameter pack every tool call receives.
func (a *Agent) toolParams(s *State) tools.Params {
	req := s.InputEvent
	return tools.Params{
		AgentType:       string(a.agentType),
		Location:        req.Location,
		StartDate:       req.String("start_date", req.String("date", "")),
		EndDate:         req.String("end_date", ""),
		DurationDays:    req.Int("duration_days", req.Int("requested_shift_days", 0)),
		EstimatedCost:   planCost(s),
		RequiredWorkers: req.Int("required_workers", 0),
		Skill:           req.String("skill", ""),
	}
}
