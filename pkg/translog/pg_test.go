package translog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polis-ai/polis/pkg/models"
	"github.com/polis-ai/polis/pkg/translog"
	"github.com/polis-ai/polis/test/util"
)

// newPGStore provisions a migrated schema on the shared test PostgreSQL and
// returns a store over it.
func newPGStore(t *testing.T) *translog.PGStore {
	t.Helper()
	return translog.NewPGStore(util.Pool(t))
}

func pgEntry(id string, ts time.Time, agent, node, decision string) models.TransparencyEntry {
	return models.TransparencyEntry{
		LogID:            id,
		Timestamp:        ts,
		AgentType:        agent,
		NodeName:         node,
		Decision:         decision,
		Rationale:        "integration fixture",
		Confidence:       0.9,
		CostImpact:       1000,
		AffectedCitizens: 10,
		PolicyReferences: []string{"WTR-OPS-7"},
		Context:          map[string]any{"location": "ward_3"},
		SearchableText:   "integration fixture text",
	}
}

func TestPGStoreRoundTrip(t *testing.T) {
	store := newPGStore(t)
	ctx := context.Background()

	base := time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC)
	entry := pgEntry("5f1c2f9e-0000-4000-8000-000000000001", base, "water_dept", "decision_router", "recommend")
	require.NoError(t, store.Insert(ctx, entry))

	entries, err := store.Recent(ctx, 10, "water_dept", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, entry.LogID, got.LogID)
	assert.True(t, got.Timestamp.Equal(base), "timestamp %s", got.Timestamp)
	assert.Equal(t, "water_dept", got.AgentType)
	assert.Equal(t, "decision_router", got.NodeName)
	assert.Equal(t, "recommend", got.Decision)
	assert.Equal(t, "integration fixture", got.Rationale)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.InDelta(t, 1000, got.CostImpact, 1e-9)
	assert.Equal(t, 10, got.AffectedCitizens)
	assert.Equal(t, []string{"WTR-OPS-7"}, got.PolicyReferences)
	assert.Equal(t, "ward_3", got.Context["location"])
	assert.Equal(t, "integration fixture text", got.SearchableText)
}

func TestPGStoreRecentOrderAndFilters(t *testing.T) {
	store := newPGStore(t)
	ctx := context.Background()

	base := time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC)
	entries := []models.TransparencyEntry{
		pgEntry("5f1c2f9e-0000-4000-8000-000000000011", base, "water_dept", "decision_router", "recommend"),
		pgEntry("5f1c2f9e-0000-4000-8000-000000000012", base.Add(time.Minute), "finance_dept", "decision_router", "escalate"),
		pgEntry("5f1c2f9e-0000-4000-8000-000000000013", base.Add(2*time.Minute), "water_dept", "direct_response", "inform"),
	}
	for _, e := range entries {
		require.NoError(t, store.Insert(ctx, e))
	}

	all, err := store.Recent(ctx, 10, "", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, entries[2].LogID, all[0].LogID, "append order, newest first")
	assert.Equal(t, entries[0].LogID, all[2].LogID)

	water, err := store.Recent(ctx, 10, "water_dept", "")
	require.NoError(t, err)
	assert.Len(t, water, 2)

	routed, err := store.Recent(ctx, 10, "water_dept", "decision_router")
	require.NoError(t, err)
	require.Len(t, routed, 1)
	assert.Equal(t, entries[0].LogID, routed[0].LogID)

	limited, err := store.Recent(ctx, 1, "", "")
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestPGStoreSinceCutoff(t *testing.T) {
	store := newPGStore(t)
	ctx := context.Background()

	base := time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC)
	old := pgEntry("5f1c2f9e-0000-4000-8000-000000000021", base.Add(-48*time.Hour), "water_dept", "decision_router", "deny")
	fresh := pgEntry("5f1c2f9e-0000-4000-8000-000000000022", base, "water_dept", "decision_router", "recommend")
	require.NoError(t, store.Insert(ctx, old))
	require.NoError(t, store.Insert(ctx, fresh))

	entries, err := store.Since(ctx, base.Add(-24*time.Hour), "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, fresh.LogID, entries[0].LogID)

	none, err := store.Since(ctx, base.Add(-24*time.Hour), "finance_dept")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPGStoreNilContextAndRefs(t *testing.T) {
	store := newPGStore(t)
	ctx := context.Background()

	entry := models.TransparencyEntry{
		LogID:          "5f1c2f9e-0000-4000-8000-000000000031",
		Timestamp:      time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC),
		AgentType:      "health_dept",
		NodeName:       "direct_response",
		Decision:       "inform",
		SearchableText: "supplies summary",
	}
	require.NoError(t, store.Insert(ctx, entry))

	entries, err := store.Recent(ctx, 10, "health_dept", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].PolicyReferences)
	assert.Empty(t, entries[0].Context)
}

func TestPGStorePruneBefore(t *testing.T) {
	store := newPGStore(t)
	ctx := context.Background()

	base := time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC)
	stale := pgEntry("5f1c2f9e-0000-4000-8000-000000000041", base.Add(-72*time.Hour), "water_dept", "respond", "deny")
	older := pgEntry("5f1c2f9e-0000-4000-8000-000000000042", base.Add(-48*time.Hour), "fire_dept", "respond", "recommend")
	fresh := pgEntry("5f1c2f9e-0000-4000-8000-000000000043", base, "water_dept", "respond", "direct_action")
	for _, e := range []models.TransparencyEntry{stale, older, fresh} {
		require.NoError(t, store.Insert(ctx, e))
	}

	pruned, err := store.PruneBefore(ctx, base.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{stale.LogID, older.LogID}, pruned)

	remaining, err := store.Recent(ctx, 10, "", "")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, fresh.LogID, remaining[0].LogID)

	// Nothing left past the cutoff.
	again, err := store.PruneBefore(ctx, base.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestPGStorePing(t *testing.T) {
	store := newPGStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
