package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/polis-ai/polis/pkg/models"
)

// PlanChecker is the slice of the coordinator the mid-pipeline checkpoint
// needs. Implemented by the coordination package; defined here so agents do
// not import it. A nil checker disables checkpointing.
type PlanChecker interface {
	CheckPlanConflicts(ctx context.Context, query models.PlanQuery) (*models.CoordinationCheck, error)
}

// coordinationCheckpoint asks the coordinator whether the selected plan
// collides with other in-flight plans before committing to execution.
//
// Routing contract:
//   - requires_human        -> escalate
//   - conflicts, no proceed -> consume one attempt and retry the planner,
//     escalating instead once the budget is spent
//   - otherwise             -> proceed to tool execution
//
// A coordinator failure never blocks the pipeline: the checkpoint degrades
// to proceed-with-caution and says so in the recommendations.
func (a *Agent) coordinationCheckpoint(ctx context.Context, s *State) error {
	if a.checker == nil {
		s.CoordinationApproved = true
		return nil
	}

	query := models.PlanQuery{
		AgentID:         a.id,
		AgentType:       string(a.agentType),
		Plan:            s.Plan,
		Location:        s.InputEvent.Location,
		ResourcesNeeded: planResources(s),
		EstimatedCost:   planCost(s),
		Priority:        a.requestPriority(s),
	}

	check, err := a.checker.CheckPlanConflicts(ctx, query)
	if err != nil {
		a.logger.Warn("Coordinator unavailable at checkpoint, proceeding with caution", "error", err)
		s.CoordinationCheck = &models.CoordinationCheck{
			ShouldProceed:   true,
			Recommendations: []string{"coordinator unavailable, proceeding with caution"},
		}
		s.CoordinationRecommendations = s.CoordinationCheck.Recommendations
		s.CoordinationApproved = true
		return nil
	}

	s.CoordinationCheck = check
	s.CoordinationRecommendations = check.Recommendations

	switch {
	case check.RequiresHuman:
		s.CoordinationApproved = false
		s.MarkEscalated("coordination requires human review: " + strings.Join(check.ConflictTypes, ", "))

	case check.HasConflicts && !check.ShouldProceed:
		s.CoordinationApproved = false
		s.Attempts++
		if s.AttemptsExhausted() {
			s.MarkEscalated(fmt.Sprintf("coordination conflicts unresolved after %d attempts: %s",
				s.Attempts, strings.Join(check.ConflictTypes, ", ")))
			return nil
		}
		s.RetryNeeded = true
		a.logger.Info("Coordination conflict, retrying with an alternative plan",
			"attempt", s.Attempts,
			"conflict_types", check.ConflictTypes)

	default:
		s.RetryNeeded = false
		s.CoordinationApproved = true
	}
	return nil
}

// requestPriority reads the request priority, falling back to emergency for
// emergency intents and routine otherwise.
func (a *Agent) requestPriority(s *State) models.Priority {
	if s.InputEvent.Priority.IsValid() {
		return s.InputEvent.Priority
	}
	if s.EmergencyIntent(a.profile) {
		return models.PriorityEmergency
	}
	return models.PriorityRoutine
}

// planCost prefers the plan's own estimate and falls back to the request's.
func planCost(s *State) float64 {
	if s.Plan != nil && s.Plan.EstimatedCost > 0 {
		return s.Plan.EstimatedCost
	}
	return s.InputEvent.EstimatedCost
}

func planResources(s *State) []string {
	if s.Plan == nil {
		return nil
	}
	return s.Plan.ResourcesNeeded
}
