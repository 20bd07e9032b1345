package coordination

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/datasource"
	"github.com/polis-ai/polis/pkg/models"
)

// Detector finds collisions across a set of agent decisions. The checks run
// in a fixed order (resource, location, timing, policy, budget) and iterate
// decisions in input order, so the same decisions always produce the same
// conflict list.
type Detector struct {
	cfg    *config.CoordinationConfig
	levels models.PriorityLevels
	logger *slog.Logger
	clock  func() time.Time
}

// NewDetector builds a detector over the coordination thresholds.
func NewDetector(cfg *config.CoordinationConfig) *Detector {
	return &Detector{
		cfg:    cfg,
		levels: cfg.Levels(),
		logger: slog.Default().With("component", "conflict-detector"),
		clock:  time.Now,
	}
}

// Detect runs every conflict check over the decisions. Fewer than two
// decisions can never conflict.
func (d *Detector) Detect(decisions []models.AgentDecision) []models.Conflict {
	if len(decisions) < 2 {
		return nil
	}

	var conflicts []models.Conflict
	conflicts = append(conflicts, d.resourceConflicts(decisions)...)
	conflicts = append(conflicts, d.locationConflicts(decisions)...)
	conflicts = append(conflicts, d.timingConflicts(decisions)...)
	conflicts = append(conflicts, d.policyConflicts(decisions)...)
	conflicts = append(conflicts, d.budgetConflicts(decisions)...)

	d.logger.Debug("Conflict detection finished",
		"decisions", len(decisions), "conflicts", len(conflicts))
	return conflicts
}

// resourceConflicts fires once per resource requested by two or more agents.
func (d *Detector) resourceConflicts(decisions []models.AgentDecision) []models.Conflict {
	claims := newClaimIndex()
	for i := range decisions {
		dec := &decisions[i]
		for _, resource := range dec.ResourcesNeeded {
			key := strings.ToLower(strings.TrimSpace(resource))
			if key == "" {
				continue
			}
			claims.add(key, dec.ID())
		}
	}

	var conflicts []models.Conflict
	for _, resource := range claims.keys {
		ids := claims.members[resource]
		if len(ids) < 2 {
			continue
		}
		involved := decisionsByID(decisions, ids)
		conflicts = append(conflicts, models.Conflict{
			ConflictID:     "resource-" + resource,
			Type:           models.ConflictResource,
			AgentsInvolved: ids,
			Description: fmt.Sprintf("%d agents need resource %q: %s",
				len(ids), resource, strings.Join(ids, ", ")),
			Severity:        d.severityOf(involved),
			ComplexityScore: d.complexityScore(involved),
			DetectedAt:      d.clock().UTC(),
		})
	}
	return conflicts
}

// locationConflicts fires once per site targeted by two or more agents.
// Sentinel locations ("citywide" and friends) name no particular site and
// never collide.
func (d *Detector) locationConflicts(decisions []models.AgentDecision) []models.Conflict {
	claims := newClaimIndex()
	for i := range decisions {
		dec := &decisions[i]
		key := datasource.NormalizeLocation(dec.Location)
		if key == "" {
			continue
		}
		claims.add(key, dec.ID())
	}

	var conflicts []models.Conflict
	for _, location := range claims.keys {
		ids := claims.members[location]
		if len(ids) < 2 {
			continue
		}
		involved := decisionsByID(decisions, ids)
		conflicts = append(conflicts, models.Conflict{
			ConflictID:     "location-" + location,
			Type:           models.ConflictLocation,
			AgentsInvolved: ids,
			Description: fmt.Sprintf("%d agents plan work at %q: %s",
				len(ids), location, strings.Join(ids, ", ")),
			Severity:        d.severityOf(involved),
			ComplexityScore: d.complexityScore(involved),
			DetectedAt:      d.clock().UTC(),
		})
	}
	return conflicts
}

// timingConflicts fires when two or more decisions declare explicit
// timelines. Overlap is assumed; the resolution sequences the work. Timing
// clashes are always medium severity: they reorder work, they never block it.
func (d *Detector) timingConflicts(decisions []models.AgentDecision) []models.Conflict {
	var ids []string
	for i := range decisions {
		if strings.TrimSpace(decisions[i].Timeline) != "" {
			ids = append(ids, decisions[i].ID())
		}
	}
	if len(ids) < 2 {
		return nil
	}

	involved := decisionsByID(decisions, ids)
	return []models.Conflict{{
		ConflictID:     "timing-overlap",
		Type:           models.ConflictTiming,
		AgentsInvolved: ids,
		Description: fmt.Sprintf("%d agents declared overlapping timelines: %s",
			len(ids), strings.Join(ids, ", ")),
		Severity:        models.SeverityMedium,
		ComplexityScore: d.complexityScore(involved),
		DetectedAt:      d.clock().UTC(),
	}}
}

// policyConflicts fires during the monsoon season for decisions whose project
// type is seasonally restricted. Policy violations are always high severity:
// the city has decided this work does not happen now, whoever asks.
func (d *Detector) policyConflicts(decisions []models.AgentDecision) []models.Conflict {
	now := d.clock().UTC()
	if !monthIn(d.cfg.MonsoonMonths, int(now.Month())) {
		return nil
	}

	var ids []string
	var types []string
	seen := map[string]bool{}
	for i := range decisions {
		restricted, ok := d.restrictedType(&decisions[i])
		if !ok {
			continue
		}
		ids = append(ids, decisions[i].ID())
		if !seen[restricted] {
			seen[restricted] = true
			types = append(types, restricted)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	involved := decisionsByID(decisions, ids)
	return []models.Conflict{{
		ConflictID:     "policy-monsoon",
		Type:           models.ConflictPolicy,
		AgentsInvolved: ids,
		Description: fmt.Sprintf("seasonal policy restricts %s during %s: %s",
			strings.Join(types, ", "), now.Month(), strings.Join(ids, ", ")),
		Severity:        models.SeverityHigh,
		ComplexityScore: d.complexityScore(involved),
		DetectedAt:      now,
	}}
}

// restrictedType matches the decision's project type against the seasonal
// restriction list. The request's project_type field wins over its type.
func (d *Detector) restrictedType(dec *models.AgentDecision) (string, bool) {
	var candidate string
	if dec.Request != nil {
		candidate = dec.Request.String("project_type", dec.Request.Type)
	}
	candidate = strings.ToLower(strings.TrimSpace(candidate))
	if candidate == "" {
		return "", false
	}
	for _, restricted := range d.cfg.SeasonRestrictedTypes {
		if candidate == restricted || strings.Contains(candidate, restricted) {
			return restricted, true
		}
	}
	return "", false
}

// budgetConflicts fires when the combined cost crosses the total threshold
// while at least two decisions individually exceed the secondary one. One
// expensive plan alone is a department matter, not a coordination conflict.
func (d *Detector) budgetConflicts(decisions []models.AgentDecision) []models.Conflict {
	total := 0.0
	var ids []string
	for i := range decisions {
		total += decisions[i].EstimatedCost
		if decisions[i].EstimatedCost > d.cfg.BudgetIndividualThreshold {
			ids = append(ids, decisions[i].ID())
		}
	}
	if total <= d.cfg.BudgetTotalThreshold || len(ids) < 2 {
		return nil
	}

	involved := decisionsByID(decisions, ids)
	return []models.Conflict{{
		ConflictID:     "budget-combined",
		Type:           models.ConflictBudget,
		AgentsInvolved: ids,
		Description: fmt.Sprintf("combined cost %.0f exceeds the %.0f budget threshold: %s",
			total, d.cfg.BudgetTotalThreshold, strings.Join(ids, ", ")),
		Severity:        d.severityOf(involved),
		ComplexityScore: d.complexityScore(involved),
		DetectedAt:      d.clock().UTC(),
	}}
}

// severityOf grades a conflict by the highest priority level among the
// involved decisions. Important work colliding is worse than routine work
// colliding.
func (d *Detector) severityOf(involved []models.AgentDecision) models.Severity {
	maxLevel := 0
	for i := range involved {
		if level := d.levels.Of(involved[i].Priority); level > maxLevel {
			maxLevel = level
		}
	}
	switch {
	case maxLevel >= 9:
		return models.SeverityCritical
	case maxLevel >= 7:
		return models.SeverityHigh
	case maxLevel >= 4:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// complexityScore estimates how hard a conflict is to resolve, on [0, 1].
// Agent count, the largest cost at stake and priority diversity each add to
// the score. An emergency caps it at 0.3: precedence is obvious, the rules
// handle it.
func (d *Detector) complexityScore(involved []models.AgentDecision) float64 {
	score := 0.0

	switch n := len(involved); {
	case n == 2:
		score += 0.10
	case n > 2:
		score += math.Min(0.15*float64(n), 0.5)
	}

	maxCost := 0.0
	for i := range involved {
		if cost := involved[i].EstimatedCost; cost > maxCost {
			maxCost = cost
		}
	}
	switch {
	case maxCost > d.cfg.CostBandHigh:
		score += 0.30
	case maxCost > d.cfg.CostBandMedium:
		score += 0.15
	case maxCost > d.cfg.CostBandLow:
		score += 0.10
	}

	for i := range involved {
		if involved[i].Priority == models.PriorityEmergency {
			return math.Min(score, 0.3)
		}
	}

	distinct := make(map[models.Priority]bool, len(involved))
	for i := range involved {
		distinct[involved[i].Priority] = true
	}
	score += 0.10 * float64(len(distinct))

	return math.Min(score, 1.0)
}

// claimIndex groups agent ids under string keys, preserving first-seen key
// order so detection output is deterministic. Duplicate ids under one key
// are dropped.
type claimIndex struct {
	keys    []string
	members map[string][]string
	seen    map[string]map[string]bool
}

func newClaimIndex() *claimIndex {
	return &claimIndex{
		members: make(map[string][]string),
		seen:    make(map[string]map[string]bool),
	}
}

func (c *claimIndex) add(key, id string) {
	if c.seen[key] == nil {
		c.keys = append(c.keys, key)
		c.seen[key] = make(map[string]bool)
	}
	if c.seen[key][id] {
		return
	}
	c.seen[key][id] = true
	c.members[key] = append(c.members[key], id)
}

// decisionsByID filters decisions down to the given ids, preserving input
// order.
func decisionsByID(decisions []models.AgentDecision, ids []string) []models.AgentDecision {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]models.AgentDecision, 0, len(ids))
	for i := range decisions {
		if want[decisions[i].ID()] {
			out = append(out, decisions[i])
		}
	}
	return out
}

// involvedDecisions filters decisions down to the conflict's participants.
func involvedDecisions(conflict *models.Conflict, decisions []models.AgentDecision) []models.AgentDecision {
	return decisionsByID(decisions, conflict.AgentsInvolved)
}

// totalCost sums the estimated cost over the decisions.
func totalCost(decisions []models.AgentDecision) float64 {
	total := 0.0
	for i := range decisions {
		total += decisions[i].EstimatedCost
	}
	return total
}

// monthIn reports whether month (1-12) appears in the configured list.
func monthIn(months []int, month int) bool {
	for _, m := range months {
		if m == month {
			return true
		}
	}
	return false
}
