package coordination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/models"
)

func fixedRules(cfg *config.CoordinationConfig, now time.Time) *RuleEngine {
	e := NewRuleEngine(cfg)
	e.clock = func() time.Time { return now }
	return e
}

func conflictOf(ct models.ConflictType, score float64, ids ...string) *models.Conflict {
	return &models.Conflict{
		ConflictID:      string(ct) + "-test",
		Type:            ct,
		AgentsInvolved:  ids,
		Severity:        models.SeverityMedium,
		ComplexityScore: score,
		DetectedAt:      testNow,
	}
}

func TestCanResolve(t *testing.T) {
	e := NewRuleEngine(config.DefaultCoordinationConfig())

	tests := []struct {
		name     string
		conflict *models.Conflict
		want     bool
	}{
		{"resource below threshold", conflictOf(models.ConflictResource, 0.3, "a", "b", "c"), true},
		{"resource at threshold", conflictOf(models.ConflictResource, 0.6, "a", "b"), false},
		{"policy any party count", conflictOf(models.ConflictPolicy, 0.5, "a", "b", "c", "d"), true},
		{"timing any party count", conflictOf(models.ConflictTiming, 0.2, "a", "b", "c"), true},
		{"budget with two agents", conflictOf(models.ConflictBudget, 0.3, "a", "b"), true},
		{"budget with three agents", conflictOf(models.ConflictBudget, 0.3, "a", "b", "c"), false},
		{"location with two agents", conflictOf(models.ConflictLocation, 0.3, "a", "b"), true},
		{"location with three agents", conflictOf(models.ConflictLocation, 0.3, "a", "b", "c"), false},
		{"unknown type", conflictOf(models.ConflictType("custody"), 0.1, "a", "b"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.CanResolve(tt.conflict))
		})
	}
}

func TestResolveResourcePriorityPrecedence(t *testing.T) {
	e := fixedRules(config.DefaultCoordinationConfig(), testNow)

	water := dec("water_dept", models.PriorityExpansion)
	eng := dec("engineering_dept", models.PriorityMaintenance)
	conflict := conflictOf(models.ConflictResource, 0.3, "water_dept", "engineering_dept")

	res := e.Resolve(conflict, []models.AgentDecision{water, eng})

	assert.Equal(t, models.ResolutionMethodRule, res.Method)
	assert.Equal(t, models.ResolutionApprovePartial, res.Decision)
	assert.Equal(t, 0.90, res.Confidence)
	assert.False(t, res.RequiresHuman)
	require.NotNil(t, res.ExecutionPlan)
	assert.Equal(t, []string{"water_dept"}, res.ExecutionPlan.Approved)
	assert.Equal(t, []string{"engineering_dept"}, res.ExecutionPlan.Queued)
	assert.Equal(t, "priority_precedence", res.ExecutionPlan.Action)
	assert.Equal(t, conflict.ConflictID, res.ConflictID)
	assert.NotEmpty(t, res.ResolutionID)
}

func TestResolveResourceEmergencyWins(t *testing.T) {
	e := fixedRules(config.DefaultCoordinationConfig(), testNow)

	// The emergency arrives last and still goes first.
	water := dec("water_dept", models.PriorityPublicHealth)
	fire := dec("fire_dept", models.PriorityEmergency)
	fire.Timestamp = testNow.Add(time.Hour)
	conflict := conflictOf(models.ConflictResource, 0.3, "water_dept", "fire_dept")

	res := e.Resolve(conflict, []models.AgentDecision{water, fire})

	assert.Equal(t, 0.95, res.Confidence)
	assert.Equal(t, []string{"fire_dept"}, res.ExecutionPlan.Approved)
	assert.Equal(t, []string{"water_dept"}, res.ExecutionPlan.Queued)
	assert.Equal(t, "emergency_override", res.ExecutionPlan.Action)
}

func TestResolveResourceTieBreaksByTimestamp(t *testing.T) {
	e := fixedRules(config.DefaultCoordinationConfig(), testNow)

	late := dec("sanitation_dept", models.PriorityMaintenance)
	late.Timestamp = testNow.Add(time.Minute)
	early := dec("water_dept", models.PriorityMaintenance)
	conflict := conflictOf(models.ConflictResource, 0.2, "sanitation_dept", "water_dept")

	res := e.Resolve(conflict, []models.AgentDecision{late, early})
	assert.Equal(t, []string{"water_dept"}, res.ExecutionPlan.Approved,
		"equal priority falls back to first come, first served")
}

func TestResolvePolicyDefersUntilSeasonEnd(t *testing.T) {
	june := time.Date(2026, 6, 20, 12, 0, 0, 0, time.UTC)
	e := fixedRules(config.DefaultCoordinationConfig(), june)

	road := dec("engineering_dept", models.PriorityExpansion)
	san := dec("sanitation_dept", models.PriorityRoutine)
	conflict := conflictOf(models.ConflictPolicy, 0.3, "engineering_dept", "sanitation_dept")

	res := e.Resolve(conflict, []models.AgentDecision{road, san})

	assert.Equal(t, models.ResolutionDefer, res.Decision)
	assert.Equal(t, 1.0, res.Confidence)
	assert.False(t, res.RequiresHuman)
	require.NotNil(t, res.ExecutionPlan)
	assert.Equal(t, []string{"engineering_dept", "sanitation_dept"}, res.ExecutionPlan.Deferred)
	assert.Equal(t, "seasonal_deferral", res.ExecutionPlan.Action)
	assert.Equal(t, "2026-10", res.ExecutionPlan.DeferUntil,
		"October is the first month after the June-September season")
	assert.Contains(t, res.Rationale, "2026-10")
}

func TestResolveTimingDependencyOrder(t *testing.T) {
	e := fixedRules(config.DefaultCoordinationConfig(), testNow)

	// Water maintenance asked first, but construction at the same site must
	// precede it.
	water := dec("water_dept", models.PriorityMaintenance)
	water.Location = "Zone-A"
	eng := dec("engineering_dept", models.PriorityExpansion)
	eng.Location = "Zone-A"
	eng.Timestamp = testNow.Add(time.Hour)
	conflict := conflictOf(models.ConflictTiming, 0.3, "water_dept", "engineering_dept")

	res := e.Resolve(conflict, []models.AgentDecision{water, eng})

	assert.Equal(t, models.ResolutionApproveAll, res.Decision)
	assert.Equal(t, 0.90, res.Confidence)
	require.NotNil(t, res.ExecutionPlan)
	assert.Equal(t, "dependency_order", res.ExecutionPlan.Action)
	require.Len(t, res.ExecutionPlan.Sequence, 2)
	assert.Equal(t, models.SequenceStep{Agent: "engineering_dept", Order: 1}, res.ExecutionPlan.Sequence[0])
	assert.Equal(t, models.SequenceStep{Agent: "water_dept", Order: 2}, res.ExecutionPlan.Sequence[1])
}

func TestResolveTimingFIFOWithoutDependency(t *testing.T) {
	e := fixedRules(config.DefaultCoordinationConfig(), testNow)

	san := dec("sanitation_dept", models.PriorityRoutine)
	san.Location = "Zone-B"
	health := dec("health_dept", models.PriorityRoutine)
	health.Location = "Downtown"
	health.Timestamp = testNow.Add(-time.Hour)
	conflict := conflictOf(models.ConflictTiming, 0.2, "sanitation_dept", "health_dept")

	res := e.Resolve(conflict, []models.AgentDecision{san, health})

	assert.Equal(t, 0.85, res.Confidence)
	assert.Equal(t, "fifo_execution", res.ExecutionPlan.Action)
	require.Len(t, res.ExecutionPlan.Sequence, 2)
	assert.Equal(t, "health_dept", res.ExecutionPlan.Sequence[0].Agent,
		"earlier submission runs first")
}

func TestResolveBudgetEscalatesOverAutoApprovalLimit(t *testing.T) {
	e := fixedRules(config.DefaultCoordinationConfig(), testNow)

	a := dec("water_dept", models.PrioritySafetyCritical)
	a.EstimatedCost = 90_000_000
	b := dec("engineering_dept", models.PriorityExpansion)
	b.EstimatedCost = 90_000_000
	conflict := conflictOf(models.ConflictBudget, 0.6, "water_dept", "engineering_dept")

	res := e.Resolve(conflict, []models.AgentDecision{a, b})

	assert.Equal(t, models.ResolutionEscalate, res.Decision)
	assert.Equal(t, 0.80, res.Confidence)
	assert.True(t, res.RequiresHuman)
	assert.Contains(t, res.Rationale, "auto-approval limit")
}

func TestResolveBudgetAllocatesToHighestPriority(t *testing.T) {
	e := fixedRules(config.DefaultCoordinationConfig(), testNow)

	a := dec("water_dept", models.PrioritySafetyCritical)
	a.EstimatedCost = 2_000_000
	b := dec("engineering_dept", models.PriorityExpansion)
	b.EstimatedCost = 1_500_000
	conflict := conflictOf(models.ConflictBudget, 0.4, "water_dept", "engineering_dept")

	res := e.Resolve(conflict, []models.AgentDecision{a, b})

	assert.Equal(t, models.ResolutionApprovePartial, res.Decision)
	assert.Equal(t, []string{"water_dept"}, res.ExecutionPlan.Approved)
	assert.Equal(t, []string{"engineering_dept"}, res.ExecutionPlan.Deferred)
	assert.Equal(t, "budget_allocation", res.ExecutionPlan.Action)
	assert.True(t, res.RequiresHuman, "deferring someone's spending needs a human look")
}

func TestResolveLocationSimultaneousPair(t *testing.T) {
	e := fixedRules(config.DefaultCoordinationConfig(), testNow)

	water := dec("water_dept", models.PriorityExpansion)
	eng := dec("engineering_dept", models.PriorityMaintenance)
	conflict := conflictOf(models.ConflictLocation, 0.3, "water_dept", "engineering_dept")

	res := e.Resolve(conflict, []models.AgentDecision{water, eng})

	assert.Equal(t, models.ResolutionApproveAll, res.Decision)
	assert.Equal(t, 0.70, res.Confidence)
	assert.True(t, res.RequiresHuman)
	assert.Equal(t, []string{"water_dept", "engineering_dept"}, res.ExecutionPlan.Approved)
	assert.Equal(t, "simultaneous_coordination", res.ExecutionPlan.Action)
}

func TestResolveLocationEmergencyOverride(t *testing.T) {
	e := fixedRules(config.DefaultCoordinationConfig(), testNow)

	fire := dec("fire_dept", models.PriorityEmergency)
	water := dec("water_dept", models.PriorityMaintenance)
	conflict := conflictOf(models.ConflictLocation, 0.2, "fire_dept", "water_dept")

	res := e.Resolve(conflict, []models.AgentDecision{fire, water})

	assert.Equal(t, 0.95, res.Confidence)
	assert.Equal(t, []string{"fire_dept"}, res.ExecutionPlan.Approved)
	assert.Equal(t, "emergency_override", res.ExecutionPlan.Action)
	assert.False(t, res.RequiresHuman)
}

func TestResolveLocationFIFOForThreeOrMore(t *testing.T) {
	e := fixedRules(config.DefaultCoordinationConfig(), testNow)

	first := dec("water_dept", models.PriorityRoutine)
	second := dec("engineering_dept", models.PriorityRoutine)
	second.Timestamp = testNow.Add(time.Minute)
	third := dec("sanitation_dept", models.PriorityRoutine)
	third.Timestamp = testNow.Add(2 * time.Minute)
	conflict := conflictOf(models.ConflictLocation, 0.4,
		"water_dept", "engineering_dept", "sanitation_dept")

	res := e.Resolve(conflict, []models.AgentDecision{third, first, second})

	assert.Equal(t, 0.85, res.Confidence)
	assert.Equal(t, "fifo_execution", res.ExecutionPlan.Action)
	require.Len(t, res.ExecutionPlan.Sequence, 3)
	assert.Equal(t, "water_dept", res.ExecutionPlan.Sequence[0].Agent)
	assert.Equal(t, "engineering_dept", res.ExecutionPlan.Sequence[1].Agent)
	assert.Equal(t, "sanitation_dept", res.ExecutionPlan.Sequence[2].Agent)
}

func TestResolveUnknownAgentsEscalates(t *testing.T) {
	e := fixedRules(config.DefaultCoordinationConfig(), testNow)

	conflict := conflictOf(models.ConflictResource, 0.3, "ghost_dept")
	res := e.Resolve(conflict, []models.AgentDecision{dec("water_dept", models.PriorityRoutine)})

	assert.Equal(t, models.ResolutionEscalate, res.Decision)
	assert.True(t, res.RequiresHuman)
	assert.Zero(t, res.Confidence)
}

func TestSeasonEndSkipsWholeSeason(t *testing.T) {
	cfg := config.DefaultCoordinationConfig()
	e := NewRuleEngine(cfg)

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"start of season", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), "2026-10"},
		{"middle of season", time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), "2026-10"},
		{"last month of season", time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC), "2026-10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.seasonEnd(tt.now))
		})
	}
}
