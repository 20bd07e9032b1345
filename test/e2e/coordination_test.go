package e2e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCoordinationApprovesIndependentWork submits two decisions that share
// nothing and expects both approved without any resolution machinery.
func TestCoordinationApprovesIndependentWork(t *testing.T) {
	app := NewTestApp(t)

	result := app.Coordinate(t, []map[string]interface{}{
		{
			"agent_id":         "water_dept",
			"agent_type":       "water",
			"decision":         "recommend",
			"resources_needed": []string{"pumps"},
			"location":         "Zone-A",
			"estimated_cost":   40000,
			"priority":         "routine",
			"confidence":       0.9,
		},
		{
			"agent_id":         "health_dept",
			"agent_type":       "health",
			"decision":         "recommend",
			"resources_needed": []string{"ambulances"},
			"location":         "Downtown",
			"estimated_cost":   25000,
			"priority":         "routine",
			"confidence":       0.9,
		},
	})

	assert.Equal(t, "approved", result["decision"])
	assert.Equal(t, "no conflicts detected", result["rationale"])
	assert.Equal(t, "none", result["resolution_method"])
	assert.EqualValues(t, 0, result["conflicts_detected"])
	assert.Equal(t, false, result["requires_human"])
	assert.NotEmpty(t, result["coordination_id"])

	plan, ok := result["execution_plan"].(map[string]interface{})
	require.True(t, ok, "every coordination run returns an execution plan")
	assert.Equal(t, "execute_all", plan["action"])
	approved, ok := plan["approved"].([]interface{})
	require.True(t, ok)
	assert.ElementsMatch(t, []interface{}{"water_dept", "health_dept"}, approved)
}

// TestCoordinationResolvesResourceClashByRule has two departments claim the
// same crew at the same site. Priority precedence settles it without a human.
func TestCoordinationResolvesResourceClashByRule(t *testing.T) {
	app := NewTestApp(t)

	result := app.Coordinate(t, []map[string]interface{}{
		{
			"agent_id":         "water_dept",
			"agent_type":       "water",
			"decision":         "recommend",
			"resources_needed": []string{"workers_zone_a"},
			"location":         "Zone-A",
			"estimated_cost":   400000,
			"priority":         "expansion",
			"confidence":       0.9,
		},
		{
			"agent_id":         "engineering_dept",
			"agent_type":       "engineering",
			"decision":         "recommend",
			"resources_needed": []string{"workers_zone_a"},
			"location":         "Zone-A",
			"estimated_cost":   300000,
			"priority":         "maintenance",
			"confidence":       0.9,
		},
	})

	assert.EqualValues(t, 2, result["conflicts_detected"], "resource and location clash")
	assert.Equal(t, "rule", result["resolution_method"])
	assert.Equal(t, "approved", result["decision"])
	assert.Equal(t, false, result["requires_human"])

	plan, ok := result["execution_plan"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"water_dept"}, plan["approved"], "expansion outranks maintenance")
	assert.Equal(t, []interface{}{"engineering_dept"}, plan["queued"])

	log, ok := result["workflow_log"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, log)
}

// TestPlanCheckpointTracksIntentions walks the mid-pipeline checkpoint:
// register, collide, release, re-check, and the emergency override.
func TestPlanCheckpointTracksIntentions(t *testing.T) {
	app := NewTestApp(t)

	// First agent on an empty board always proceeds.
	check := app.CheckPlan(t, map[string]interface{}{
		"agent_id":         "water_dept",
		"agent_type":       "water",
		"location":         "Zone-A",
		"resources_needed": []string{"crew_7"},
		"estimated_cost":   200000,
		"priority":         "maintenance",
	})
	assert.Equal(t, true, check["should_proceed"])
	assert.Equal(t, false, check["has_conflicts"])

	// Second agent wants the same crew at the same site.
	check = app.CheckPlan(t, map[string]interface{}{
		"agent_id":         "engineering_dept",
		"agent_type":       "engineering",
		"location":         "Zone-A",
		"resources_needed": []string{"crew_7"},
		"estimated_cost":   150000,
		"priority":         "maintenance",
	})
	assert.Equal(t, true, check["has_conflicts"])
	assert.Equal(t, false, check["should_proceed"])
	assert.NotEmpty(t, check["conflict_types"])
	assert.NotEmpty(t, check["recommendations"])

	// Once the water department releases its intention the crew is free.
	app.ReleasePlan(t, "water_dept")

	check = app.CheckPlan(t, map[string]interface{}{
		"agent_id":         "engineering_dept",
		"agent_type":       "engineering",
		"location":         "Zone-A",
		"resources_needed": []string{"crew_7"},
		"estimated_cost":   150000,
		"priority":         "maintenance",
	})
	assert.Equal(t, true, check["should_proceed"])

	// Emergencies are told to proceed even through a live conflict.
	check = app.CheckPlan(t, map[string]interface{}{
		"agent_id":         "fire_dept",
		"agent_type":       "fire",
		"location":         "Zone-A",
		"resources_needed": []string{"crew_7"},
		"priority":         "emergency",
	})
	assert.Equal(t, true, check["has_conflicts"])
	assert.Equal(t, true, check["should_proceed"])
	assert.Equal(t, false, check["requires_human"])
}
