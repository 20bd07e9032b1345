package human

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/polis-ai/polis/pkg/models"
)

// EscalationInput carries everything the coordinator knows when it asks for
// a human decision.
type EscalationInput struct {
	Conflict   *models.Conflict
	Decisions  []models.AgentDecision
	Resolution *models.Resolution
	Reason     string
	Levels     models.PriorityLevels
}

// BuildEscalation assembles a pending escalation with graded urgency and the
// standard decision options for the involved agents.
func BuildEscalation(in EscalationInput, now time.Time) *models.HumanEscalation {
	escalation := &models.HumanEscalation{
		EscalationID: uuid.NewString(),
		Reason:       in.Reason,
		Urgency:      EscalationUrgency(in.Conflict, in.Decisions),
		Options:      DecisionOptions(in.Decisions, in.Levels),
		Status:       models.EscalationPending,
		CreatedAt:    now.UTC(),
	}
	if in.Conflict != nil {
		escalation.ConflictID = in.Conflict.ConflictID
		if escalation.Reason == "" {
			escalation.Reason = in.Conflict.Description
		}
	}
	if in.Resolution != nil && in.Resolution.Method == models.ResolutionMethodLLM {
		escalation.LLMAnalysis = in.Resolution.Rationale
	}
	if escalation.Reason == "" {
		escalation.Reason = "coordination outcome requires human review"
	}
	return escalation
}

// EscalationUrgency grades how quickly an operator has to respond. Emergency
// work is always critical; safety or health work and severe conflicts are
// high; a medium conflict is medium; everything else is low.
func EscalationUrgency(conflict *models.Conflict, decisions []models.AgentDecision) models.Severity {
	for i := range decisions {
		if decisions[i].Priority == models.PriorityEmergency {
			return models.SeverityCritical
		}
	}
	for i := range decisions {
		switch decisions[i].Priority {
		case models.PrioritySafetyCritical, models.PriorityPublicHealth:
			return models.SeverityHigh
		}
	}
	severity := models.SeverityLow
	if conflict != nil {
		severity = conflict.Severity
	}
	switch {
	case severity.AtLeast(models.SeverityHigh):
		return models.SeverityHigh
	case severity == models.SeverityMedium:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// DecisionOptions builds the choices offered to the operator: approve all,
// approve only the highest priority request, defer everything, or reject
// everything. Each option carries the execution plan it stands for.
func DecisionOptions(decisions []models.AgentDecision, levels models.PriorityLevels) []models.DecisionOption {
	if levels == nil {
		levels = models.DefaultPriorityLevels()
	}
	ids := models.AgentIDs(decisions)

	options := []models.DecisionOption{
		{
			ID:          "approve_all",
			Label:       "Approve all requests",
			Description: fmt.Sprintf("All %d requests proceed as submitted", len(ids)),
			Plan:        models.ApproveAllPlan(ids),
		},
	}

	if highest := highestPriorityAgent(decisions, levels); highest != "" {
		var queued []string
		for _, id := range ids {
			if id != highest {
				queued = append(queued, id)
			}
		}
		options = append(options, models.DecisionOption{
			ID:          "approve_partial",
			Label:       fmt.Sprintf("Approve highest priority (%s)", highest),
			Description: "Remaining requests are queued behind it",
			Plan: &models.ExecutionPlan{
				Approved: []string{highest},
				Queued:   queued,
				Action:   "approve_highest_priority",
			},
		})
	}

	options = append(options,
		models.DecisionOption{
			ID:          "defer",
			Label:       "Defer all requests",
			Description: "Nothing proceeds until resubmitted",
			Plan:        &models.ExecutionPlan{Deferred: ids, Action: "defer_all"},
		},
		models.DecisionOption{
			ID:          "reject",
			Label:       "Reject all requests",
			Description: "All requests are declined",
			Plan:        &models.ExecutionPlan{Rejected: ids, Action: "reject_all"},
		},
	)
	return options
}

// highestPriorityAgent picks the agent with the highest priority level,
// breaking ties by earliest submission.
func highestPriorityAgent(decisions []models.AgentDecision, levels models.PriorityLevels) string {
	best := ""
	bestLevel := -1
	var bestTime time.Time
	for i := range decisions {
		d := &decisions[i]
		level := levels.Of(d.Priority)
		if level > bestLevel || (level == bestLevel && d.Timestamp.Before(bestTime)) {
			best, bestLevel, bestTime = d.ID(), level, d.Timestamp
		}
	}
	return best
}
