package coordination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/models"
)

// testNow is outside the default monsoon season so policy conflicts stay
// quiet unless a test pins a seasonal clock.
var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func fixedDetector(cfg *config.CoordinationConfig, now time.Time) *Detector {
	d := NewDetector(cfg)
	d.clock = func() time.Time { return now }
	return d
}

func dec(id string, priority models.Priority) models.AgentDecision {
	return models.AgentDecision{
		AgentID:   id,
		AgentType: id,
		Decision:  models.DecisionRecommend,
		Priority:  priority,
		Timestamp: testNow,
	}
}

func TestDetectNeedsTwoDecisions(t *testing.T) {
	d := fixedDetector(config.DefaultCoordinationConfig(), testNow)

	assert.Empty(t, d.Detect(nil))

	single := dec("water_dept", models.PriorityEmergency)
	single.ResourcesNeeded = []string{"excavator"}
	assert.Empty(t, d.Detect([]models.AgentDecision{single}))
}

func TestDetectResourceConflict(t *testing.T) {
	d := fixedDetector(config.DefaultCoordinationConfig(), testNow)

	water := dec("water_dept", models.PriorityExpansion)
	water.ResourcesNeeded = []string{"workers_zone_a"}
	eng := dec("engineering_dept", models.PriorityMaintenance)
	eng.ResourcesNeeded = []string{"workers_zone_a", "crane"}

	conflicts := d.Detect([]models.AgentDecision{water, eng})
	require.Len(t, conflicts, 1)

	c := conflicts[0]
	assert.Equal(t, "resource-workers_zone_a", c.ConflictID)
	assert.Equal(t, models.ConflictResource, c.Type)
	assert.Equal(t, []string{"water_dept", "engineering_dept"}, c.AgentsInvolved)
	assert.Equal(t, models.SeverityMedium, c.Severity, "expansion is level 5")
	assert.Contains(t, c.Description, "workers_zone_a")
	assert.Equal(t, testNow, c.DetectedAt)
}

func TestDetectResourceNamesAreNormalised(t *testing.T) {
	d := fixedDetector(config.DefaultCoordinationConfig(), testNow)

	a := dec("water_dept", models.PriorityRoutine)
	a.ResourcesNeeded = []string{" Excavator "}
	b := dec("sanitation_dept", models.PriorityRoutine)
	b.ResourcesNeeded = []string{"excavator"}

	conflicts := d.Detect([]models.AgentDecision{a, b})
	require.Len(t, conflicts, 1)
	assert.Equal(t, "resource-excavator", conflicts[0].ConflictID)
}

func TestDetectLocationConflict(t *testing.T) {
	d := fixedDetector(config.DefaultCoordinationConfig(), testNow)

	a := dec("water_dept", models.PriorityExpansion)
	a.Location = "Zone-A"
	b := dec("engineering_dept", models.PriorityMaintenance)
	b.Location = "zone-a"

	conflicts := d.Detect([]models.AgentDecision{a, b})
	require.Len(t, conflicts, 1)
	assert.Equal(t, "location-zone-a", conflicts[0].ConflictID)
	assert.Equal(t, models.ConflictLocation, conflicts[0].Type)
}

func TestDetectSentinelLocationsNeverCollide(t *testing.T) {
	d := fixedDetector(config.DefaultCoordinationConfig(), testNow)

	a := dec("water_dept", models.PriorityRoutine)
	a.Location = "citywide"
	b := dec("health_dept", models.PriorityRoutine)
	b.Location = "Citywide"

	assert.Empty(t, d.Detect([]models.AgentDecision{a, b}))
}

func TestDetectTimingConflictIsAlwaysMedium(t *testing.T) {
	d := fixedDetector(config.DefaultCoordinationConfig(), testNow)

	a := dec("water_dept", models.PriorityEmergency)
	a.Timeline = "3 days"
	b := dec("engineering_dept", models.PriorityRoutine)
	b.Timeline = "1 week"

	conflicts := d.Detect([]models.AgentDecision{a, b})
	require.Len(t, conflicts, 1)
	assert.Equal(t, "timing-overlap", conflicts[0].ConflictID)
	assert.Equal(t, models.ConflictTiming, conflicts[0].Type)
	assert.Equal(t, models.SeverityMedium, conflicts[0].Severity,
		"timing clashes reorder work, they never block it")
}

func TestDetectPolicyConflictDuringMonsoon(t *testing.T) {
	june := time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)
	d := fixedDetector(config.DefaultCoordinationConfig(), june)

	road := dec("engineering_dept", models.PriorityExpansion)
	road.Request = &models.Request{Type: "road_work_request", Location: "Zone-A"}
	health := dec("health_dept", models.PriorityRoutine)
	health.Request = &models.Request{Type: "status_query", Location: "Downtown"}

	conflicts := d.Detect([]models.AgentDecision{road, health})
	require.Len(t, conflicts, 1)

	c := conflicts[0]
	assert.Equal(t, "policy-monsoon", c.ConflictID)
	assert.Equal(t, models.ConflictPolicy, c.Type)
	assert.Equal(t, []string{"engineering_dept"}, c.AgentsInvolved)
	assert.Equal(t, models.SeverityHigh, c.Severity)
	assert.Contains(t, c.Description, "road_work")
}

func TestDetectPolicyQuietOutOfSeason(t *testing.T) {
	d := fixedDetector(config.DefaultCoordinationConfig(), testNow)

	road := dec("engineering_dept", models.PriorityExpansion)
	road.Request = &models.Request{Type: "road_work_request", Location: "Zone-A"}
	other := dec("water_dept", models.PriorityRoutine)
	other.Request = &models.Request{Type: "construction_request", Location: "Zone-B"}

	assert.Empty(t, d.Detect([]models.AgentDecision{road, other}),
		"March is outside the monsoon season")
}

func TestDetectPolicyMatchesProjectTypeField(t *testing.T) {
	june := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	d := fixedDetector(config.DefaultCoordinationConfig(), june)

	dig := dec("water_dept", models.PriorityExpansion)
	dig.Request = &models.Request{
		Type:     "expansion_request",
		Location: "Zone-B",
		Fields:   map[string]any{"project_type": "construction"},
	}
	other := dec("health_dept", models.PriorityRoutine)

	conflicts := d.Detect([]models.AgentDecision{dig, other})
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictPolicy, conflicts[0].Type)
}

func TestDetectBudgetConflict(t *testing.T) {
	cfg := config.DefaultCoordinationConfig()
	d := fixedDetector(cfg, testNow)

	tests := []struct {
		name   string
		costA  float64
		costB  float64
		expect bool
	}{
		{"both large, total over threshold", 6_000_000, 5_000_000, true},
		{"total exactly at threshold", 5_000_000, 5_000_000, false},
		{"only one exceeds individual threshold", 10_500_000, 900_000, false},
		{"both small", 400_000, 300_000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := dec("water_dept", models.PrioritySafetyCritical)
			a.EstimatedCost = tt.costA
			b := dec("engineering_dept", models.PriorityExpansion)
			b.EstimatedCost = tt.costB

			conflicts := d.Detect([]models.AgentDecision{a, b})
			if !tt.expect {
				assert.Empty(t, conflicts)
				return
			}
			require.Len(t, conflicts, 1)
			assert.Equal(t, "budget-combined", conflicts[0].ConflictID)
			assert.Equal(t, models.ConflictBudget, conflicts[0].Type)
			assert.Equal(t, models.SeverityHigh, conflicts[0].Severity,
				"safety_critical is level 7")
		})
	}
}

func TestSeverityFollowsHighestPriority(t *testing.T) {
	d := fixedDetector(config.DefaultCoordinationConfig(), testNow)

	tests := []struct {
		priority models.Priority
		want     models.Severity
	}{
		{models.PriorityRoutine, models.SeverityLow},
		{models.PriorityMaintenance, models.SeverityLow},
		{models.PriorityExpansion, models.SeverityMedium},
		{models.PrioritySafetyCritical, models.SeverityHigh},
		{models.PriorityPublicHealth, models.SeverityHigh},
		{models.PriorityEmergency, models.SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			involved := []models.AgentDecision{
				dec("a", models.PriorityRoutine),
				dec("b", tt.priority),
			}
			assert.Equal(t, tt.want, d.severityOf(involved))
		})
	}
}

func TestComplexityScore(t *testing.T) {
	d := fixedDetector(config.DefaultCoordinationConfig(), testNow)

	costly := func(id string, p models.Priority, cost float64) models.AgentDecision {
		dd := dec(id, p)
		dd.EstimatedCost = cost
		return dd
	}

	tests := []struct {
		name     string
		involved []models.AgentDecision
		want     float64
	}{
		{
			"two agents, same priority, no cost",
			[]models.AgentDecision{dec("a", models.PriorityRoutine), dec("b", models.PriorityRoutine)},
			0.2,
		},
		{
			"two agents, distinct priorities",
			[]models.AgentDecision{dec("a", models.PriorityExpansion), dec("b", models.PriorityMaintenance)},
			0.3,
		},
		{
			"three agents, three priorities",
			[]models.AgentDecision{
				dec("a", models.PriorityRoutine),
				dec("b", models.PriorityMaintenance),
				dec("c", models.PriorityExpansion),
			},
			0.75,
		},
		{
			"agent-count term saturates at five agents",
			[]models.AgentDecision{
				dec("a", models.PriorityRoutine), dec("b", models.PriorityRoutine),
				dec("c", models.PriorityRoutine), dec("d", models.PriorityRoutine),
				dec("e", models.PriorityRoutine),
			},
			0.6,
		},
		{
			"cost above the low band",
			[]models.AgentDecision{
				costly("a", models.PriorityRoutine, 600_000),
				dec("b", models.PriorityRoutine),
			},
			0.3,
		},
		{
			"cost exactly at the low band adds nothing",
			[]models.AgentDecision{
				costly("a", models.PriorityRoutine, 500_000),
				dec("b", models.PriorityRoutine),
			},
			0.2,
		},
		{
			"cost above the medium band",
			[]models.AgentDecision{
				costly("a", models.PriorityRoutine, 2_000_000),
				dec("b", models.PriorityRoutine),
			},
			0.35,
		},
		{
			"cost above the high band",
			[]models.AgentDecision{
				costly("a", models.PriorityRoutine, 6_000_000),
				dec("b", models.PriorityRoutine),
			},
			0.5,
		},
		{
			"emergency caps the score and skips the priority term",
			[]models.AgentDecision{
				costly("a", models.PriorityEmergency, 6_000_000),
				dec("b", models.PriorityRoutine),
			},
			0.3,
		},
		{
			"clamped to one",
			[]models.AgentDecision{
				costly("a", models.PriorityRoutine, 6_000_000),
				dec("b", models.PriorityMaintenance),
				dec("c", models.PriorityExpansion),
				dec("d", models.PrioritySafetyCritical),
				dec("e", models.PriorityPublicHealth),
			},
			1.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, d.complexityScore(tt.involved), 1e-9)
		})
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	d := fixedDetector(config.DefaultCoordinationConfig(), testNow)

	water := dec("water_dept", models.PriorityExpansion)
	water.ResourcesNeeded = []string{"workers_zone_a", "excavator"}
	water.Location = "Zone-A"
	water.EstimatedCost = 2_000_000
	eng := dec("engineering_dept", models.PriorityMaintenance)
	eng.ResourcesNeeded = []string{"excavator", "workers_zone_a"}
	eng.Location = "Zone-A"
	eng.EstimatedCost = 9_000_000
	eng.Timeline = "2 weeks"
	san := dec("sanitation_dept", models.PriorityRoutine)
	san.Location = "Zone-A"
	san.Timeline = "3 days"

	decisions := []models.AgentDecision{water, eng, san}
	first := d.Detect(decisions)
	second := d.Detect(decisions)

	require.NotEmpty(t, first)
	assert.Equal(t, first, second, "identical input must yield identical conflicts")
}
