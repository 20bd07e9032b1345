package e2e

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// coordinationOutcome carries a blocked coordination run's answer back to the
// test goroutine.
type coordinationOutcome struct {
	result map[string]interface{}
	err    error
}

// lowConfidenceClash is a resource clash with no shared location, so the rule
// resolver settles it at a confidence under the tightened threshold.
func lowConfidenceClash() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"agent_id":         "water_dept",
			"agent_type":       "water",
			"decision":         "recommend",
			"resources_needed": []string{"workers_zone_a"},
			"estimated_cost":   400000,
			"priority":         "expansion",
			"confidence":       0.9,
		},
		{
			"agent_id":         "engineering_dept",
			"agent_type":       "engineering",
			"decision":         "recommend",
			"resources_needed": []string{"workers_zone_a"},
			"estimated_cost":   300000,
			"priority":         "maintenance",
			"confidence":       0.9,
		},
	}
}

// startCoordination posts the decisions from a goroutine, since the run will
// block on the approval desk until the escalation is resolved.
func startCoordination(app *TestApp, decisions []map[string]interface{}) <-chan coordinationOutcome {
	outcome := make(chan coordinationOutcome, 1)
	go func() {
		result, err := app.tryPostJSON("/api/v1/coordination", map[string]interface{}{"decisions": decisions})
		outcome <- coordinationOutcome{result: result, err: err}
	}()
	return outcome
}

// TestEscalationResolvedOverAPI tightens the confidence gate so a rule
// resolution escalates, then approves it through the REST desk and checks the
// ratified outcome.
func TestEscalationResolvedOverAPI(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.Coordination.ConfidenceThreshold = 0.95
	app := NewTestApp(t, WithConfig(cfg))

	outcome := startCoordination(app, lowConfidenceClash())

	esc := app.WaitForEscalation(t)
	assert.Equal(t, "pending", esc["status"])
	assert.Contains(t, esc["reason"], "below")
	assert.NotEmpty(t, esc["options"])

	escalationID, ok := esc["escalation_id"].(string)
	require.True(t, ok, "parked escalation carries its id: %v", esc)

	resolved := app.ResolveEscalation(t, escalationID, "approved", "ops.lead")
	assert.Equal(t, "approved", resolved["status"])
	assert.Equal(t, "ops.lead", resolved["approver"])

	select {
	case out := <-outcome:
		require.NoError(t, out.err)
		result := out.result
		assert.Equal(t, "approved", result["decision"])
		assert.Equal(t, true, result["requires_human"])
		assert.Equal(t, "rule", result["resolution_method"], "an approval ratifies the machine resolution")
		assert.Contains(t, result["rationale"], "approved by ops.lead")
	case <-time.After(30 * time.Second):
		t.Fatal("coordination run did not finish after the escalation was resolved")
	}

	after := app.GetEscalations(t)
	assert.EqualValues(t, 0, after["count"], "resolved escalations leave the pending list")
}

// TestEscalationRejectionOverridesResolution rejects the escalation and
// expects the human verdict to replace the rule outcome.
func TestEscalationRejectionOverridesResolution(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.Coordination.ConfidenceThreshold = 0.95
	app := NewTestApp(t, WithConfig(cfg))

	outcome := startCoordination(app, lowConfidenceClash())

	esc := app.WaitForEscalation(t)
	escalationID, ok := esc["escalation_id"].(string)
	require.True(t, ok)

	app.postJSON(t, "/api/v1/escalations/"+escalationID+"/resolve", map[string]interface{}{
		"status":   "rejected",
		"approver": "ops.lead",
		"notes":    "hold both crews for the council session",
	}, http.StatusOK)

	select {
	case out := <-outcome:
		require.NoError(t, out.err)
		result := out.result
		assert.Equal(t, "rejected", result["decision"])
		assert.Equal(t, "human", result["resolution_method"])
		assert.Contains(t, result["rationale"], "rejected by ops.lead: hold both crews for the council session")
	case <-time.After(30 * time.Second):
		t.Fatal("coordination run did not finish after the escalation was rejected")
	}
}

func TestEscalationEndpointValidation(t *testing.T) {
	app := NewTestApp(t)

	t.Run("empty pending list", func(t *testing.T) {
		body := app.GetEscalations(t)
		assert.EqualValues(t, 0, body["count"])
	})

	t.Run("unknown status", func(t *testing.T) {
		body := app.postJSON(t, "/api/v1/escalations/esc-x/resolve",
			map[string]interface{}{"status": "maybe", "approver": "ops.lead"}, http.StatusBadRequest)
		assert.Equal(t, "invalid status: must be approved, modified, rejected or deferred", body["error"])
	})

	t.Run("non-terminal status", func(t *testing.T) {
		body := app.postJSON(t, "/api/v1/escalations/esc-x/resolve",
			map[string]interface{}{"status": "pending", "approver": "ops.lead"}, http.StatusBadRequest)
		assert.Contains(t, body["error"], "does not resolve")
	})

	t.Run("unknown escalation", func(t *testing.T) {
		body := app.postJSON(t, "/api/v1/escalations/esc-x/resolve",
			map[string]interface{}{"status": "approved", "approver": "ops.lead"}, http.StatusNotFound)
		assert.Contains(t, body["error"], "esc-x")
	})
}
