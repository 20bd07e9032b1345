package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/metrics"
)

// WorkerStatus describes what a worker is currently doing.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// requestRegistry tracks cancel functions for in-flight requests so Cancel
// can reach a request that already left the queue.
type requestRegistry interface {
	registerRequest(requestID string, cancel context.CancelFunc)
	unregisterRequest(requestID string)
}

// Worker drains jobs from the shared channel one at a time.
type Worker struct {
	id       string
	cfg      config.QueueConfig
	executor Executor
	jobs     <-chan Job
	store    *resultStore
	registry requestRegistry
	stopCh   <-chan struct{}

	mu        sync.Mutex
	status    WorkerStatus
	current   string
	processed int
	lastSeen  time.Time

	logger *slog.Logger
	clock  func() time.Time
}

func newWorker(id string, cfg config.QueueConfig, executor Executor, jobs <-chan Job, store *resultStore, registry requestRegistry, stopCh <-chan struct{}) *Worker {
	return &Worker{
		id:       id,
		cfg:      cfg,
		executor: executor,
		jobs:     jobs,
		store:    store,
		registry: registry,
		stopCh:   stopCh,
		status:   WorkerStatusIdle,
		lastSeen: time.Now().UTC(),
		logger:   slog.Default().With("component", "queue", "worker_id", id),
		clock:    time.Now,
	}
}

func (w *Worker) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	w.logger.Debug("Worker started")
	defer w.logger.Debug("Worker stopped")

	for {
		// Stop takes priority over available work.
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	metrics.QueueDepth.Dec()

	if !w.store.beginProcessing(job.RequestID) {
		w.logger.Info("Skipping cancelled request", "request_id", job.RequestID)
		return
	}
	w.setStatus(WorkerStatusWorking, job.RequestID)
	defer w.setStatus(WorkerStatusIdle, "")

	start := w.clock()
	reqCtx, cancel := context.WithTimeout(ctx, w.cfg.RequestTimeout)
	w.registry.registerRequest(job.RequestID, cancel)

	result := w.executor.QueryAgent(reqCtx, job.AgentType, job.Request, job.Reason)

	w.registry.unregisterRequest(job.RequestID)
	ctxErr := reqCtx.Err()
	cancel()

	var status RequestStatus
	var errMsg string
	switch {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		status = StatusTimedOut
		errMsg = fmt.Sprintf("request timed out after %s", w.cfg.RequestTimeout)
	case ctxErr != nil:
		status = StatusCancelled
		errMsg = "request cancelled"
	case result == nil:
		status = StatusFailed
		errMsg = "agent produced no result"
	case !result.Success:
		status = StatusFailed
		errMsg = result.Error
	default:
		status = StatusCompleted
	}

	w.store.finish(job.RequestID, status, result, errMsg)
	w.markProcessed()

	w.logger.Info("Queued request processed",
		"request_id", job.RequestID,
		"agent_type", job.AgentType,
		"status", status,
		"duration", w.clock().Sub(start))
}

func (w *Worker) setStatus(status WorkerStatus, requestID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.current = requestID
	w.lastSeen = w.clock().UTC()
}

func (w *Worker) markProcessed() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.processed++
}

func (w *Worker) health() WorkerHealth {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WorkerHealth{
		ID:                w.id,
		Status:            w.status,
		CurrentRequestID:  w.current,
		RequestsProcessed: w.processed,
		LastActivity:      w.lastSeen,
	}
}
