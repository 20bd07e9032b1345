package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/datasource"
	"github.com/polis-ai/polis/pkg/llm"
	"github.com/polis-ai/polis/pkg/models"
)

func newIntentState(req *models.Request) *State {
	return newState(req, config.AgentTypeWater, 3, fixedNow)
}

func TestClassifyByKeywords(t *testing.T) {
	agent := newTestAgent(t, config.AgentTypeWater, Deps{Source: datasource.NewEmptyMemoryStore()})

	tests := []struct {
		name string
		req  *models.Request
		want string
	}{
		{
			name: "exact type match wins",
			req:  &models.Request{Type: "expansion_request", Location: "ward_3"},
			want: "expansion_request",
		},
		{
			name: "most keyword hits decide",
			req:  &models.Request{Type: "request", Location: "ward_3", Reason: "please postpone and reschedule the crew"},
			want: "schedule_shift_request",
		},
		{
			name: "ties break alphabetically",
			req:  &models.Request{Type: "request", Location: "ward_3", Reason: "shift the leak work"},
			want: "maintenance_request",
		},
		{
			name: "no hits fall back to the profile default",
			req:  &models.Request{Type: "request", Location: "ward_3", Reason: "unclassifiable"},
			want: "maintenance_request",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, agent.classifyByKeywords(tt.req))
		})
	}
}

func TestClassifyWithLLM(t *testing.T) {
	store := datasource.NewEmptyMemoryStore()

	t.Run("closed-set label and risk override are used", func(t *testing.T) {
		script := llm.NewScriptedClient(llm.ScriptEntry{
			Content: `{"intent":"quality_incident","risk_level":"critical","safety_concerns":["possible contamination"]}`,
		})
		agent := newTestAgent(t, config.AgentTypeWater, Deps{Source: store, LLM: script})

		s := newIntentState(&models.Request{Type: "complaint", Location: "old_town", Reason: "water smells odd"})
		require.NoError(t, agent.analyseIntent(context.Background(), s))

		assert.Equal(t, "quality_incident", s.Intent)
		assert.Equal(t, models.RiskCritical, s.RiskLevel)
		assert.Equal(t, []string{"possible contamination"}, s.SafetyConcerns)
		assert.True(t, s.Escalated())
		assert.Contains(t, s.EscalationReason, "critical risk level")
		assert.Equal(t, 1, script.CallCount())
	})

	t.Run("label outside the closed set falls back to keywords", func(t *testing.T) {
		script := llm.NewScriptedClient(llm.ScriptEntry{
			Content: `{"intent":"dance_party","risk_level":"low"}`,
		})
		agent := newTestAgent(t, config.AgentTypeWater, Deps{Source: store, LLM: script})

		s := newIntentState(&models.Request{Type: "maintenance_request", Location: "ward_3", Reason: "pipe leak"})
		require.NoError(t, agent.analyseIntent(context.Background(), s))

		assert.Equal(t, "maintenance_request", s.Intent)
		assert.Equal(t, models.RiskMedium, s.RiskLevel)
		assert.False(t, s.Escalated())
	})

	t.Run("invalid risk falls back to the intent baseline", func(t *testing.T) {
		script := llm.NewScriptedClient(llm.ScriptEntry{
			Content: `{"intent":"maintenance_request","risk_level":"galactic"}`,
		})
		agent := newTestAgent(t, config.AgentTypeWater, Deps{Source: store, LLM: script})

		s := newIntentState(&models.Request{Type: "complaint", Location: "ward_3"})
		require.NoError(t, agent.analyseIntent(context.Background(), s))

		assert.Equal(t, "maintenance_request", s.Intent)
		assert.Equal(t, models.RiskMedium, s.RiskLevel)
	})

	t.Run("transport failure falls back to keywords", func(t *testing.T) {
		script := llm.NewScriptedClient()
		script.FailAll = errors.New("connection refused")
		agent := newTestAgent(t, config.AgentTypeWater, Deps{Source: store, LLM: script})

		s := newIntentState(&models.Request{Type: "schedule_shift_request", Location: "ward_3"})
		require.NoError(t, agent.analyseIntent(context.Background(), s))

		assert.Equal(t, "schedule_shift_request", s.Intent)
		assert.Equal(t, models.RiskLow, s.RiskLevel)
	})
}

func TestAnalyseIntentMarksInformationalQueries(t *testing.T) {
	agent := newTestAgent(t, config.AgentTypeWater, Deps{Source: datasource.NewEmptyMemoryStore()})

	s := newIntentState(&models.Request{Type: "status_query", Location: "ward_3"})
	require.NoError(t, agent.analyseIntent(context.Background(), s))

	assert.Equal(t, "status_query", s.Intent)
	assert.Equal(t, QueryInformational, s.QueryType)
}

func TestApplyRiskRulesRaiseOnly(t *testing.T) {
	agent := newTestAgent(t, config.AgentTypeSanitation, Deps{Source: datasource.NewEmptyMemoryStore()})

	bins := func(fills ...int) []datasource.Record {
		out := make([]datasource.Record, len(fills))
		for i, f := range fills {
			out[i] = datasource.Record{"zone": "zone_a", "fill_percent": f}
		}
		return out
	}

	tests := []struct {
		name  string
		fills []int
		base  models.RiskLevel
		want  models.RiskLevel
	}{
		{"below min count keeps base", []int{96, 97, 98}, models.RiskLow, models.RiskLow},
		{"six bins at 95 raise to critical", []int{95, 95, 96, 97, 98, 99}, models.RiskLow, models.RiskCritical},
		{"ten bins at 90 raise to high", []int{90, 90, 91, 91, 92, 92, 93, 93, 94, 94}, models.RiskLow, models.RiskHigh},
		{"rules never lower risk", []int{40, 50}, models.RiskCritical, models.RiskCritical},
		{"invalid base resets to low", []int{40}, models.RiskLevel("bogus"), models.RiskLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newState(&models.Request{Type: "bin_overflow_report", Location: "zone_a"},
				config.AgentTypeSanitation, 3, fixedNow)
			s.Context["bins"] = bins(tt.fills...)
			assert.Equal(t, tt.want, agent.applyRiskRules(s, tt.base))
		})
	}
}

func TestSetGoalRendersTemplates(t *testing.T) {
	agent := newTestAgent(t, config.AgentTypeWater, Deps{Source: datasource.NewEmptyMemoryStore()})

	t.Run("request fields fill placeholders", func(t *testing.T) {
		s := newIntentState(&models.Request{
			Type:     "schedule_shift_request",
			Location: "ward_12",
			Fields:   map[string]any{"requested_shift_days": 3},
		})
		s.Intent = "schedule_shift_request"
		require.NoError(t, agent.setGoal(context.Background(), s))
		assert.Equal(t, "Shift the water maintenance schedule at ward_12 by 3 days", s.Goal)
	})

	t.Run("unknown intent gets the generic goal", func(t *testing.T) {
		s := newIntentState(&models.Request{Type: "x", Location: "ward_3"})
		s.Intent = "nonexistent"
		require.NoError(t, agent.setGoal(context.Background(), s))
		assert.Equal(t, "Handle nonexistent at ward_3", s.Goal)
	})

	t.Run("unfilled placeholders stay visible", func(t *testing.T) {
		s := newIntentState(&models.Request{Type: "schedule_shift_request", Location: "ward_3"})
		s.Intent = "schedule_shift_request"
		require.NoError(t, agent.setGoal(context.Background(), s))
		assert.Contains(t, s.Goal, "{requested_shift_days}")
	})
}

func TestFieldString(t *testing.T) {
	assert.Equal(t, "2", fieldString(2))
	assert.Equal(t, "2", fieldString(2.0))
	assert.Equal(t, "2.5", fieldString(2.5))
	assert.Equal(t, "true", fieldString(true))
	assert.Equal(t, "crew", fieldString("crew"))
}
