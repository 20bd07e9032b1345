package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/models"
	"github.com/polis-ai/polis/pkg/translog"
)

type stubPruner struct {
	mu        sync.Mutex
	calls     int
	retention time.Duration
	pruned    int
	err       error
}

func (p *stubPruner) Prune(_ context.Context, retention time.Duration) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.retention = retention
	return p.pruned, p.err
}

func (p *stubPruner) snapshot() (int, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls, p.retention
}

type stubSweeper struct {
	mu     sync.Mutex
	calls  int
	cutoff time.Time
}

func (s *stubSweeper) SweepAcknowledged(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.cutoff = cutoff
	return 2
}

func (s *stubSweeper) snapshot() (int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, s.cutoff
}

func testRetentionConfig() *config.RetentionConfig {
	return &config.RetentionConfig{
		LogRetentionDays: 30,
		MessageTTL:       1 * time.Hour,
		SweepInterval:    12 * time.Hour,
	}
}

func TestSweepPrunesLogAndBus(t *testing.T) {
	pruner := &stubPruner{pruned: 3}
	sweeper := &stubSweeper{}
	svc := NewService(testRetentionConfig(), pruner, sweeper)

	fixed := time.Date(2026, time.April, 1, 6, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return fixed }

	svc.sweep(context.Background())

	calls, retention := pruner.snapshot()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 30*24*time.Hour, retention)

	sweeps, cutoff := sweeper.snapshot()
	assert.Equal(t, 1, sweeps)
	assert.Equal(t, fixed.Add(-1*time.Hour), cutoff)
}

func TestSweepSkipsPruneWhenRetentionDisabled(t *testing.T) {
	cfg := testRetentionConfig()
	cfg.LogRetentionDays = 0

	pruner := &stubPruner{}
	sweeper := &stubSweeper{}
	svc := NewService(cfg, pruner, sweeper)

	svc.sweep(context.Background())

	calls, _ := pruner.snapshot()
	assert.Zero(t, calls)
	sweeps, _ := sweeper.snapshot()
	assert.Equal(t, 1, sweeps)
}

func TestSweepContinuesPastPruneError(t *testing.T) {
	pruner := &stubPruner{err: errors.New("connection refused")}
	sweeper := &stubSweeper{}
	svc := NewService(testRetentionConfig(), pruner, sweeper)

	svc.sweep(context.Background())

	sweeps, _ := sweeper.snapshot()
	assert.Equal(t, 1, sweeps)
}

func TestSweepToleratesNilTargets(t *testing.T) {
	svc := NewService(testRetentionConfig(), nil, nil)
	svc.sweep(context.Background())
}

func TestSweepPrunesMemoryLog(t *testing.T) {
	store := translog.NewMemoryStore()
	log, err := translog.New(store, translog.Options{})
	require.NoError(t, err)
	ctx := context.Background()

	old := models.TransparencyEntry{
		AgentType: "water_dept",
		NodeName:  "respond",
		Decision:  "direct_action",
		Timestamp: time.Now().UTC().Add(-400 * 24 * time.Hour),
	}
	require.NoError(t, log.Append(ctx, old))
	require.NoError(t, log.Append(ctx, models.TransparencyEntry{
		AgentType: "water_dept",
		NodeName:  "respond",
		Decision:  "direct_action",
	}))

	cfg := testRetentionConfig()
	cfg.LogRetentionDays = 365
	svc := NewService(cfg, log, nil)
	svc.sweep(ctx)

	assert.Equal(t, 1, store.Len())
}

func TestStartStopLifecycle(t *testing.T) {
	cfg := testRetentionConfig()
	cfg.SweepInterval = 10 * time.Millisecond

	pruner := &stubPruner{}
	svc := NewService(cfg, pruner, nil)

	// Stop before Start is a no-op.
	svc.Stop()

	svc.Start(context.Background())
	svc.Start(context.Background())

	require.Eventually(t, func() bool {
		calls, _ := pruner.snapshot()
		return calls >= 2
	}, 2*time.Second, 5*time.Millisecond)

	svc.Stop()
	calls, _ := pruner.snapshot()

	time.Sleep(30 * time.Millisecond)
	after, _ := pruner.snapshot()
	assert.Equal(t, calls, after)
}
