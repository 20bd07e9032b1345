package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/metrics"
	"github.com/polis-ai/polis/pkg/models"
)

// evictionInterval is how often retained results are checked against the TTL.
const evictionInterval = time.Minute

// Pool owns the job channel, the workers draining it, and the result store.
type Pool struct {
	cfg      config.QueueConfig
	executor Executor
	jobs     chan Job
	store    *resultStore
	workers  []*Worker

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
	active  map[string]context.CancelFunc

	logger *slog.Logger
	clock  func() time.Time
}

// NewPool creates a worker pool. Zero config fields fall back to the
// built-in defaults. Workers do not run until Start is called.
func NewPool(cfg config.QueueConfig, executor Executor) *Pool {
	defaults := config.DefaultQueueConfig()
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = defaults.WorkerCount
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.GracefulShutdownTimeout <= 0 {
		cfg.GracefulShutdownTimeout = defaults.GracefulShutdownTimeout
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = defaults.ResultTTL
	}

	return &Pool{
		cfg:      cfg,
		executor: executor,
		jobs:     make(chan Job, cfg.QueueSize),
		store:    newResultStore(cfg.ResultTTL),
		stopCh:   make(chan struct{}),
		active:   make(map[string]context.CancelFunc),
		logger:   slog.Default().With("component", "queue"),
		clock:    time.Now,
	}
}

// Start launches the workers and the result eviction loop. Calling Start
// twice is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		p.logger.Warn("Worker pool already started")
		return
	}
	p.started = true

	for i := 0; i < p.cfg.WorkerCount; i++ {
		w := newWorker(fmt.Sprintf("worker-%d", i+1), p.cfg, p.executor, p.jobs, p.store, p, p.stopCh)
		p.workers = append(p.workers, w)
		p.wg.Add(1)
		go w.run(ctx, &p.wg)
	}

	p.wg.Add(1)
	go p.evictLoop(ctx)

	p.logger.Info("Queue worker pool started",
		"worker_count", p.cfg.WorkerCount,
		"queue_size", p.cfg.QueueSize,
		"request_timeout", p.cfg.RequestTimeout)
}

// Stop refuses new submissions, waits for active requests up to the graceful
// shutdown timeout, and marks anything still queued as cancelled so pollers
// see a terminal state.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		active := len(p.active)
		p.mu.Unlock()

		p.logger.Info("Stopping queue worker pool", "active_requests", active)
		close(p.stopCh)

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(p.cfg.GracefulShutdownTimeout):
			p.logger.Warn("Worker pool shutdown timed out", "timeout", p.cfg.GracefulShutdownTimeout)
		}

		for {
			select {
			case job := <-p.jobs:
				if p.store.cancelQueued(job.RequestID) {
					metrics.QueueDepth.Dec()
				}
			default:
				p.logger.Info("Queue worker pool stopped")
				return
			}
		}
	})
}

// Submit enqueues a request for asynchronous processing and returns a ticket
// the caller can poll with Lookup. The enqueue never blocks: a full queue
// returns ErrQueueFull immediately.
func (p *Pool) Submit(agentType string, req *models.Request, reason string) (*Ticket, error) {
	if req == nil {
		metrics.QueueSubmissions.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("request is required")
	}
	if agentType == "" {
		metrics.QueueSubmissions.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("agent type is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		metrics.QueueSubmissions.WithLabelValues("rejected").Inc()
		return nil, ErrStopped
	}

	job := Job{
		RequestID:   uuid.NewString(),
		AgentType:   agentType,
		Request:     req,
		Reason:      reason,
		SubmittedAt: p.clock().UTC(),
	}
	p.store.put(job)

	select {
	case p.jobs <- job:
	default:
		p.store.remove(job.RequestID)
		metrics.QueueSubmissions.WithLabelValues("rejected").Inc()
		return nil, ErrQueueFull
	}

	metrics.QueueDepth.Inc()
	metrics.QueueSubmissions.WithLabelValues("accepted").Inc()
	p.logger.Info("Request queued",
		"request_id", job.RequestID,
		"agent_type", agentType,
		"queue_depth", len(p.jobs))

	return &Ticket{RequestID: job.RequestID, Status: StatusQueued, SubmittedAt: job.SubmittedAt}, nil
}

// Lookup returns the current state of a submitted request.
func (p *Pool) Lookup(requestID string) (*Record, error) {
	return p.store.get(requestID)
}

// Cancel stops a request. A processing request has its context cancelled; a
// queued one is marked cancelled and skipped at dequeue. Returns false when
// the request is unknown or already terminal.
func (p *Pool) Cancel(requestID string) bool {
	p.mu.Lock()
	cancel, running := p.active[requestID]
	p.mu.Unlock()

	if running {
		cancel()
		p.logger.Info("Cancelled processing request", "request_id", requestID)
		return true
	}
	if p.store.cancelQueued(requestID) {
		p.logger.Info("Cancelled queued request", "request_id", requestID)
		return true
	}
	return false
}

// Health reports pool and per-worker status for the health endpoint.
func (p *Pool) Health() *PoolHealth {
	p.mu.Lock()
	started := p.started
	stopped := p.stopped
	workers := make([]*Worker, len(p.workers))
	copy(workers, p.workers)
	p.mu.Unlock()

	health := &PoolHealth{
		IsHealthy:     started && !stopped,
		QueueDepth:    len(p.jobs),
		QueueCapacity: cap(p.jobs),
		TotalWorkers:  len(workers),
		Retained:      p.store.len(),
	}
	for _, w := range workers {
		wh := w.health()
		if wh.Status == WorkerStatusWorking {
			health.ActiveWorkers++
		}
		health.WorkerStats = append(health.WorkerStats, wh)
	}
	return health
}

func (p *Pool) registerRequest(requestID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[requestID] = cancel
}

func (p *Pool) unregisterRequest(requestID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, requestID)
}

func (p *Pool) evictLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(evictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := p.store.evictExpired(); n > 0 {
				p.logger.Debug("Evicted expired results", "count", n)
			}
		}
	}
}
