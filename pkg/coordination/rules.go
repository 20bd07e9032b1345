package coordination

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/models"
)

// RuleEngine resolves conflicts deterministically: priority precedence for
// resources and budget, seasonal deferral for policy, sequencing for timing
// and location. Same conflict, same decisions, same resolution.
type RuleEngine struct {
	cfg    *config.CoordinationConfig
	levels models.PriorityLevels
	logger *slog.Logger
	clock  func() time.Time
}

// NewRuleEngine builds the engine over the coordination thresholds.
func NewRuleEngine(cfg *config.CoordinationConfig) *RuleEngine {
	return &RuleEngine{
		cfg:    cfg,
		levels: cfg.Levels(),
		logger: slog.Default().With("component", "rule-engine"),
		clock:  time.Now,
	}
}

// CanResolve reports whether the conflict qualifies for rule resolution.
// Complexity at or above the threshold always goes to the negotiator.
// Resource, policy and timing rules handle any party count; budget and
// location rules only trust themselves with exactly two.
func (e *RuleEngine) CanResolve(conflict *models.Conflict) bool {
	if conflict.ComplexityScore >= e.cfg.ComplexityThreshold {
		return false
	}
	switch conflict.Type {
	case models.ConflictResource, models.ConflictPolicy, models.ConflictTiming:
		return true
	case models.ConflictBudget, models.ConflictLocation:
		return len(conflict.AgentsInvolved) == 2
	default:
		return false
	}
}

// Resolve applies the rule for the conflict's type. Every path yields a
// resolution; conflicts no rule covers come back as escalations.
func (e *RuleEngine) Resolve(conflict *models.Conflict, decisions []models.AgentDecision) *models.Resolution {
	involved := involvedDecisions(conflict, decisions)
	if len(involved) == 0 {
		return e.escalation(conflict, "conflict references no known decisions")
	}

	var res *models.Resolution
	switch conflict.Type {
	case models.ConflictResource:
		res = e.resolveResource(conflict, involved)
	case models.ConflictLocation:
		res = e.resolveLocation(conflict, involved)
	case models.ConflictTiming:
		res = e.resolveTiming(conflict, involved)
	case models.ConflictPolicy:
		res = e.resolvePolicy(conflict, involved)
	case models.ConflictBudget:
		res = e.resolveBudget(conflict, involved)
	default:
		res = e.escalation(conflict, fmt.Sprintf("no rule for conflict type %q", conflict.Type))
	}

	e.logger.Debug("Rule resolution",
		"conflict_id", conflict.ConflictID,
		"decision", string(res.Decision),
		"confidence", res.Confidence)
	return res
}

// resolveResource grants the resource to the emergency if there is one,
// otherwise to the highest priority; everyone else queues behind the winner.
func (e *RuleEngine) resolveResource(conflict *models.Conflict, involved []models.AgentDecision) *models.Resolution {
	if em := earliestEmergency(involved); em != nil {
		ordered := moveToFront(e.byPriorityThenTime(involved), em.ID())
		return e.resolution(conflict, models.ResolutionApprovePartial, 0.95,
			fmt.Sprintf("%s has an emergency and takes the resource first", em.ID()),
			queuePlan(ordered, "emergency_override"), false)
	}

	ordered := e.byPriorityThenTime(involved)
	winner := ordered[0].ID()
	return e.resolution(conflict, models.ResolutionApprovePartial, 0.90,
		fmt.Sprintf("%s holds the highest priority; remaining requests queue for the resource", winner),
		queuePlan(ordered, "priority_precedence"), false)
}

// resolveLocation lets an emergency take the site, lets exactly two crews
// share it under supervision, and otherwise sequences arrivals first come
// first served.
func (e *RuleEngine) resolveLocation(conflict *models.Conflict, involved []models.AgentDecision) *models.Resolution {
	if em := earliestEmergency(involved); em != nil {
		ordered := moveToFront(e.byPriorityThenTime(involved), em.ID())
		return e.resolution(conflict, models.ResolutionApprovePartial, 0.95,
			fmt.Sprintf("%s has an emergency at the site and goes first", em.ID()),
			queuePlan(ordered, "emergency_override"), false)
	}

	if len(involved) == 2 {
		ids := models.AgentIDs(involved)
		plan := &models.ExecutionPlan{
			Approved: ids,
			Action:   "simultaneous_coordination",
		}
		return e.resolution(conflict, models.ResolutionApproveAll, 0.70,
			fmt.Sprintf("%s and %s can work the site simultaneously under coordinated supervision", ids[0], ids[1]),
			plan, true)
	}

	ordered := byTimestamp(involved)
	return e.resolution(conflict, models.ResolutionApproveAll, 0.85,
		"site access sequenced in request order",
		sequencePlan(ordered, "fifo_execution"), false)
}

// resolveTiming sequences the work. Construction precedes dependent work at
// the same site; otherwise order of submission holds.
func (e *RuleEngine) resolveTiming(conflict *models.Conflict, involved []models.AgentDecision) *models.Resolution {
	ordered, dependency := timingOrder(involved)
	if dependency {
		return e.resolution(conflict, models.ResolutionApproveAll, 0.90,
			fmt.Sprintf("construction work runs first, dependent work follows: %s",
				strings.Join(models.AgentIDs(ordered), " then ")),
			sequencePlan(ordered, "dependency_order"), false)
	}
	return e.resolution(conflict, models.ResolutionApproveAll, 0.85,
		"no dependency between the plans; execution sequenced in request order",
		sequencePlan(ordered, "fifo_execution"), false)
}

// resolvePolicy defers every restricted plan until the season ends. Policy
// is absolute: full confidence, no exceptions.
func (e *RuleEngine) resolvePolicy(conflict *models.Conflict, involved []models.AgentDecision) *models.Resolution {
	until := e.seasonEnd(e.clock().UTC())
	plan := &models.ExecutionPlan{
		Deferred:   models.AgentIDs(involved),
		Action:     "seasonal_deferral",
		DeferUntil: until,
	}
	return e.resolution(conflict, models.ResolutionDefer, 1.0,
		fmt.Sprintf("seasonal policy defers restricted work until %s", until),
		plan, false)
}

// resolveBudget allocates the budget to the highest priority and defers the
// rest. A combined cost past the auto-approval limit is no longer a rules
// question and escalates.
func (e *RuleEngine) resolveBudget(conflict *models.Conflict, involved []models.AgentDecision) *models.Resolution {
	total := totalCost(involved)
	if total > e.cfg.AutoApprovalCostLimit {
		return e.resolution(conflict, models.ResolutionEscalate, 0.80,
			fmt.Sprintf("combined cost %.0f exceeds the auto-approval limit %.0f",
				total, e.cfg.AutoApprovalCostLimit),
			&models.ExecutionPlan{Action: "escalate"}, true)
	}

	ordered := e.byPriorityThenTime(involved)
	winner := ordered[0].ID()
	deferred := make([]string, 0, len(ordered)-1)
	for i := 1; i < len(ordered); i++ {
		deferred = append(deferred, ordered[i].ID())
	}
	plan := &models.ExecutionPlan{
		Approved: []string{winner},
		Deferred: deferred,
		Action:   "budget_allocation",
	}
	// Deferring someone's spending is a call a human should see.
	return e.resolution(conflict, models.ResolutionApprovePartial, 0.80,
		fmt.Sprintf("budget allocated to %s; %s deferred to the next period",
			winner, strings.Join(deferred, ", ")),
		plan, len(deferred) > 0)
}

// escalation is the rule engine's admission that it has no answer.
func (e *RuleEngine) escalation(conflict *models.Conflict, reason string) *models.Resolution {
	return e.resolution(conflict, models.ResolutionEscalate, 0,
		reason, &models.ExecutionPlan{Action: "escalate"}, true)
}

func (e *RuleEngine) resolution(conflict *models.Conflict, decision models.ResolutionDecision,
	confidence float64, rationale string, plan *models.ExecutionPlan, requiresHuman bool) *models.Resolution {
	return &models.Resolution{
		ResolutionID:  uuid.NewString(),
		ConflictID:    conflict.ConflictID,
		Method:        models.ResolutionMethodRule,
		Decision:      decision,
		Rationale:     rationale,
		Confidence:    confidence,
		RequiresHuman: requiresHuman,
		ExecutionPlan: plan,
		ResolvedAt:    e.clock().UTC(),
	}
}

// seasonEnd returns the first month after the configured season, as YYYY-MM.
func (e *RuleEngine) seasonEnd(now time.Time) string {
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		month = month.AddDate(0, 1, 0)
		if !monthIn(e.cfg.MonsoonMonths, int(month.Month())) {
			break
		}
	}
	return month.Format("2006-01")
}

// byPriorityThenTime orders decisions by priority level descending, breaking
// ties by submission time and finally by id. Input is not mutated.
func (e *RuleEngine) byPriorityThenTime(involved []models.AgentDecision) []models.AgentDecision {
	ordered := append([]models.AgentDecision(nil), involved...)
	sort.SliceStable(ordered, func(i, j int) bool {
		li, lj := e.levels.Of(ordered[i].Priority), e.levels.Of(ordered[j].Priority)
		if li != lj {
			return li > lj
		}
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].ID() < ordered[j].ID()
	})
	return ordered
}

// byTimestamp orders decisions by submission time. Input is not mutated.
func byTimestamp(involved []models.AgentDecision) []models.AgentDecision {
	ordered := append([]models.AgentDecision(nil), involved...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].ID() < ordered[j].ID()
	})
	return ordered
}

// timingOrder sequences decisions for a timing conflict and reports whether a
// dependency (construction before dependent work at the same site) dictated
// the order.
func timingOrder(involved []models.AgentDecision) ([]models.AgentDecision, bool) {
	dependency := false
	for i := range involved {
		if !isConstructionWork(&involved[i]) {
			continue
		}
		for j := range involved {
			if i == j || isConstructionWork(&involved[j]) {
				continue
			}
			if sameSite(&involved[i], &involved[j]) {
				dependency = true
				break
			}
		}
		if dependency {
			break
		}
	}

	if !dependency {
		return byTimestamp(involved), false
	}

	ordered := append([]models.AgentDecision(nil), involved...)
	sort.SliceStable(ordered, func(i, j int) bool {
		ci, cj := isConstructionWork(&ordered[i]), isConstructionWork(&ordered[j])
		if ci != cj {
			return ci
		}
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})
	return ordered, true
}

func isConstructionWork(dec *models.AgentDecision) bool {
	if strings.Contains(strings.ToLower(dec.AgentType), "engineering") {
		return true
	}
	if dec.Request != nil && strings.Contains(strings.ToLower(dec.Request.Type), "construction") {
		return true
	}
	return false
}

func sameSite(a, b *models.AgentDecision) bool {
	la := strings.ToLower(strings.TrimSpace(a.Location))
	lb := strings.ToLower(strings.TrimSpace(b.Location))
	return la != "" && la == lb
}

// earliestEmergency returns the first-submitted emergency decision, or nil.
func earliestEmergency(involved []models.AgentDecision) *models.AgentDecision {
	var found *models.AgentDecision
	for i := range involved {
		if involved[i].Priority != models.PriorityEmergency {
			continue
		}
		if found == nil || involved[i].Timestamp.Before(found.Timestamp) {
			found = &involved[i]
		}
	}
	return found
}

// moveToFront reorders a decision list so id leads. Input is not mutated.
func moveToFront(ordered []models.AgentDecision, id string) []models.AgentDecision {
	out := make([]models.AgentDecision, 0, len(ordered))
	for i := range ordered {
		if ordered[i].ID() == id {
			out = append(out, ordered[i])
		}
	}
	for i := range ordered {
		if ordered[i].ID() != id {
			out = append(out, ordered[i])
		}
	}
	return out
}

// queuePlan approves the first decision and queues the rest in order.
func queuePlan(ordered []models.AgentDecision, action string) *models.ExecutionPlan {
	plan := &models.ExecutionPlan{
		Approved: []string{ordered[0].ID()},
		Action:   action,
	}
	for i := 1; i < len(ordered); i++ {
		plan.Queued = append(plan.Queued, ordered[i].ID())
	}
	return plan
}

// sequencePlan approves everyone and pins the execution order.
func sequencePlan(ordered []models.AgentDecision, action string) *models.ExecutionPlan {
	plan := &models.ExecutionPlan{
		Approved: models.AgentIDs(ordered),
		Action:   action,
	}
	for i := range ordered {
		plan.Sequence = append(plan.Sequence, models.SequenceStep{
			Agent: ordered[i].ID(),
			Order: i + 1,
		})
	}
	return plan
}
