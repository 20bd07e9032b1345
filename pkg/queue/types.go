// Package queue provides asynchronous processing of agent requests: a
// bounded in-memory queue drained by a worker pool, with finished results
// retained in a TTL'd store for polling.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/polis-ai/polis/pkg/dispatch"
	"github.com/polis-ai/polis/pkg/models"
)

// Sentinel errors for queue operations.
var (
	// ErrQueueFull indicates the pending buffer is at capacity.
	ErrQueueFull = errors.New("queue is full")

	// ErrStopped indicates the pool no longer accepts submissions.
	ErrStopped = errors.New("queue is stopped")

	// ErrNotFound indicates no record exists for the request id.
	ErrNotFound = errors.New("request not found")
)

// RequestStatus tracks one queued request through its lifecycle.
type RequestStatus string

// Request status constants.
const (
	StatusQueued     RequestStatus = "queued"
	StatusProcessing RequestStatus = "processing"
	StatusCompleted  RequestStatus = "completed"
	StatusFailed     RequestStatus = "failed"
	StatusTimedOut   RequestStatus = "timed_out"
	StatusCancelled  RequestStatus = "cancelled"
)

// IsValid checks whether the status is a known value.
func (s RequestStatus) IsValid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed,
		StatusTimedOut, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the status is final.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut, StatusCancelled:
		return true
	}
	return false
}

// Executor runs one queued request to completion. The dispatcher implements
// it; the queue never touches agent internals.
type Executor interface {
	QueryAgent(ctx context.Context, agentType string, req *models.Request, reason string) *dispatch.Result
}

// Job is one queued agent request.
type Job struct {
	RequestID   string
	AgentType   string
	Request     *models.Request
	Reason      string
	SubmittedAt time.Time
}

// Ticket is the synchronous answer to Submit: enough for the caller to poll.
type Ticket struct {
	RequestID   string        `json:"request_id"`
	Status      RequestStatus `json:"status"`
	SubmittedAt time.Time     `json:"submitted_at"`
}

// Record is the pollable state of one submitted request. Result is set once
// the status is terminal.
type Record struct {
	RequestID   string           `json:"request_id"`
	AgentType   string           `json:"agent_type"`
	Status      RequestStatus    `json:"status"`
	Result      *dispatch.Result `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
	SubmittedAt time.Time        `json:"submitted_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// PoolHealth contains health information for the whole worker pool.
type PoolHealth struct {
	IsHealthy     bool           `json:"is_healthy"`
	QueueDepth    int            `json:"queue_depth"`
	QueueCapacity int            `json:"queue_capacity"`
	ActiveWorkers int            `json:"active_workers"`
	TotalWorkers  int            `json:"total_workers"`
	Retained      int            `json:"retained_results"`
	WorkerStats   []WorkerHealth `json:"worker_stats"`
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID                string        `json:"id"`
	Status            WorkerStatus  `json:"status"`
	CurrentRequestID  string        `json:"current_request_id,omitempty"`
	RequestsProcessed int           `json:"requests_processed"`
	LastActivity      time.Time     `json:"last_activity"`
}
