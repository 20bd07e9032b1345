package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/dispatch"
	"github.com/polis-ai/polis/pkg/models"
)

// stubExecutor stands in for the dispatcher. The optional fn hook lets a
// test block until cancellation or shape the result per call.
type stubExecutor struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, agentType string, req *models.Request, reason string) *dispatch.Result
}

func (s *stubExecutor) QueryAgent(ctx context.Context, agentType string, req *models.Request, reason string) *dispatch.Result {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(ctx, agentType, req, reason)
	}
	return &dispatch.Result{Success: true, AgentType: agentType}
}

func (s *stubExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		WorkerCount:             1,
		QueueSize:               8,
		RequestTimeout:          2 * time.Second,
		GracefulShutdownTimeout: time.Second,
		ResultTTL:               time.Minute,
	}
}

func newTestPool(t *testing.T, cfg config.QueueConfig, exec Executor) *Pool {
	t.Helper()
	p := NewPool(cfg, exec)
	t.Cleanup(p.Stop)
	return p
}

func waitStatus(t *testing.T, p *Pool, requestID string, want RequestStatus) *Record {
	t.Helper()
	var rec *Record
	require.Eventually(t, func() bool {
		r, err := p.Lookup(requestID)
		if err != nil {
			return false
		}
		rec = r
		return r.Status == want
	}, 2*time.Second, 10*time.Millisecond, "request %s never reached %s", requestID, want)
	return rec
}

func leakRequest() *models.Request {
	return &models.Request{Type: "leak_report", Location: "Zone-A"}
}

func TestSubmitReturnsTicketAndCompletes(t *testing.T) {
	exec := &stubExecutor{}
	pool := newTestPool(t, testQueueConfig(), exec)
	pool.Start(context.Background())

	ticket, err := pool.Submit("water", leakRequest(), "burst main on 5th")
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.NotEmpty(t, ticket.RequestID)
	assert.Equal(t, StatusQueued, ticket.Status)
	assert.False(t, ticket.SubmittedAt.IsZero())

	rec := waitStatus(t, pool, ticket.RequestID, StatusCompleted)
	assert.Equal(t, "water", rec.AgentType)
	assert.Empty(t, rec.Error)
	require.NotNil(t, rec.Result)
	assert.True(t, rec.Result.Success)
	require.NotNil(t, rec.StartedAt)
	require.NotNil(t, rec.CompletedAt)
	assert.Equal(t, 1, exec.callCount())
}

func TestSubmitValidatesInput(t *testing.T) {
	pool := newTestPool(t, testQueueConfig(), &stubExecutor{})

	_, err := pool.Submit("water", nil, "no payload")
	assert.ErrorContains(t, err, "request is required")

	_, err = pool.Submit("", leakRequest(), "no agent")
	assert.ErrorContains(t, err, "agent type is required")
}

func TestSubmitRejectsWhenFull(t *testing.T) {
	cfg := testQueueConfig()
	cfg.QueueSize = 1
	pool := newTestPool(t, cfg, &stubExecutor{})
	// Not started, so nothing drains the buffer.

	_, err := pool.Submit("water", leakRequest(), "first")
	require.NoError(t, err)

	_, err = pool.Submit("water", leakRequest(), "second")
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestSubmitAfterStopIsRefused(t *testing.T) {
	pool := NewPool(testQueueConfig(), &stubExecutor{})
	pool.Start(context.Background())
	pool.Stop()

	_, err := pool.Submit("water", leakRequest(), "too late")
	assert.ErrorIs(t, err, ErrStopped)
}

func TestLookupUnknownRequest(t *testing.T) {
	pool := newTestPool(t, testQueueConfig(), &stubExecutor{})

	_, err := pool.Lookup("no-such-request")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelQueuedRequestIsSkippedByWorkers(t *testing.T) {
	exec := &stubExecutor{}
	pool := newTestPool(t, testQueueConfig(), exec)
	// Submit before Start so the job is still buffered when we cancel.

	ticket, err := pool.Submit("water", leakRequest(), "cancel me")
	require.NoError(t, err)

	require.True(t, pool.Cancel(ticket.RequestID))
	rec, err := pool.Lookup(ticket.RequestID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, rec.Status)
	assert.Contains(t, rec.Error, "cancelled")

	pool.Start(context.Background())
	require.Eventually(t, func() bool {
		return pool.Health().QueueDepth == 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, exec.callCount())
	after, err := pool.Lookup(ticket.RequestID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, after.Status)
}

func TestCancelProcessingRequestCancelsContext(t *testing.T) {
	exec := &stubExecutor{
		fn: func(ctx context.Context, _ string, _ *models.Request, _ string) *dispatch.Result {
			<-ctx.Done()
			return nil
		},
	}
	pool := newTestPool(t, testQueueConfig(), exec)
	pool.Start(context.Background())

	ticket, err := pool.Submit("water", leakRequest(), "long haul")
	require.NoError(t, err)

	waitStatus(t, pool, ticket.RequestID, StatusProcessing)
	require.True(t, pool.Cancel(ticket.RequestID))

	rec := waitStatus(t, pool, ticket.RequestID, StatusCancelled)
	assert.Contains(t, rec.Error, "cancelled")
}

func TestCancelUnknownOrFinishedRequest(t *testing.T) {
	pool := newTestPool(t, testQueueConfig(), &stubExecutor{})
	pool.Start(context.Background())

	assert.False(t, pool.Cancel("no-such-request"))

	ticket, err := pool.Submit("water", leakRequest(), "quick")
	require.NoError(t, err)
	waitStatus(t, pool, ticket.RequestID, StatusCompleted)

	assert.False(t, pool.Cancel(ticket.RequestID))
}

func TestRequestTimeoutMarksTimedOut(t *testing.T) {
	cfg := testQueueConfig()
	cfg.RequestTimeout = 50 * time.Millisecond
	exec := &stubExecutor{
		fn: func(ctx context.Context, agentType string, _ *models.Request, _ string) *dispatch.Result {
			<-ctx.Done()
			return &dispatch.Result{Success: false, AgentType: agentType, Error: "context deadline exceeded"}
		},
	}
	pool := newTestPool(t, cfg, exec)
	pool.Start(context.Background())

	ticket, err := pool.Submit("water", leakRequest(), "slow agent")
	require.NoError(t, err)

	rec := waitStatus(t, pool, ticket.RequestID, StatusTimedOut)
	assert.Contains(t, rec.Error, "timed out")
}

func TestFailedResultMarksFailed(t *testing.T) {
	exec := &stubExecutor{
		fn: func(_ context.Context, agentType string, _ *models.Request, _ string) *dispatch.Result {
			return &dispatch.Result{Success: false, AgentType: agentType, Error: "unknown agent profile: water"}
		},
	}
	pool := newTestPool(t, testQueueConfig(), exec)
	pool.Start(context.Background())

	ticket, err := pool.Submit("water", leakRequest(), "bad profile")
	require.NoError(t, err)

	rec := waitStatus(t, pool, ticket.RequestID, StatusFailed)
	assert.Contains(t, rec.Error, "unknown agent profile")
}

func TestNilResultMarksFailed(t *testing.T) {
	exec := &stubExecutor{
		fn: func(context.Context, string, *models.Request, string) *dispatch.Result {
			return nil
		},
	}
	pool := newTestPool(t, testQueueConfig(), exec)
	pool.Start(context.Background())

	ticket, err := pool.Submit("water", leakRequest(), "vanished")
	require.NoError(t, err)

	rec := waitStatus(t, pool, ticket.RequestID, StatusFailed)
	assert.Contains(t, rec.Error, "no result")
}

func TestHealthReportsWorkersAndDepth(t *testing.T) {
	cfg := testQueueConfig()
	cfg.WorkerCount = 2
	release := make(chan struct{})
	exec := &stubExecutor{
		fn: func(ctx context.Context, agentType string, _ *models.Request, _ string) *dispatch.Result {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return &dispatch.Result{Success: true, AgentType: agentType}
		},
	}
	pool := newTestPool(t, cfg, exec)

	before := pool.Health()
	assert.False(t, before.IsHealthy)
	assert.Equal(t, 0, before.TotalWorkers)
	assert.Equal(t, 8, before.QueueCapacity)

	pool.Start(context.Background())
	ticket, err := pool.Submit("water", leakRequest(), "hold the line")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return pool.Health().ActiveWorkers == 1
	}, 2*time.Second, 10*time.Millisecond)

	health := pool.Health()
	assert.True(t, health.IsHealthy)
	assert.Equal(t, 2, health.TotalWorkers)
	assert.Equal(t, 1, health.Retained)
	require.Len(t, health.WorkerStats, 2)

	var busy int
	for _, ws := range health.WorkerStats {
		if ws.Status == WorkerStatusWorking {
			busy++
			assert.Equal(t, ticket.RequestID, ws.CurrentRequestID)
		}
	}
	assert.Equal(t, 1, busy)

	close(release)
	waitStatus(t, pool, ticket.RequestID, StatusCompleted)

	pool.Stop()
	assert.False(t, pool.Health().IsHealthy)
}

func TestStopCancelsLeftoverQueuedRequests(t *testing.T) {
	pool := NewPool(testQueueConfig(), &stubExecutor{})
	// Never started: both jobs are still buffered at Stop.

	first, err := pool.Submit("water", leakRequest(), "one")
	require.NoError(t, err)
	second, err := pool.Submit("water", leakRequest(), "two")
	require.NoError(t, err)

	pool.Stop()

	for _, id := range []string{first.RequestID, second.RequestID} {
		rec, err := pool.Lookup(id)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, rec.Status)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	pool := NewPool(testQueueConfig(), &stubExecutor{})
	pool.Start(context.Background())
	pool.Stop()
	pool.Stop()
}

func TestStartIsIdempotent(t *testing.T) {
	exec := &stubExecutor{}
	pool := newTestPool(t, testQueueConfig(), exec)
	pool.Start(context.Background())
	pool.Start(context.Background())

	health := pool.Health()
	assert.Equal(t, 1, health.TotalWorkers)
}
