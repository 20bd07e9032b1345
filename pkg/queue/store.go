package queue

import (
	"sync"
	"time"

	"github.com/polis-ai/polis/pkg/dispatch"
)

// resultStore retains one Record per submitted request. Terminal records are
// evicted once their TTL passes; in-flight records are never evicted.
type resultStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	ttl     time.Duration
	clock   func() time.Time
}

func newResultStore(ttl time.Duration) *resultStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &resultStore{
		records: make(map[string]*Record),
		ttl:     ttl,
		clock:   time.Now,
	}
}

// put registers a freshly submitted request.
func (s *resultStore) put(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[job.RequestID] = &Record{
		RequestID:   job.RequestID,
		AgentType:   job.AgentType,
		Status:      StatusQueued,
		SubmittedAt: job.SubmittedAt,
	}
}

// get returns a snapshot of the record, or ErrNotFound.
func (s *resultStore) get(requestID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	snapshot := *record
	return &snapshot, nil
}

// remove drops the record outright, for submissions that never enqueued.
func (s *resultStore) remove(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, requestID)
}

// beginProcessing moves a queued record to processing. It returns false when
// the record is gone or already terminal, in which case the job is skipped.
func (s *resultStore) beginProcessing(requestID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[requestID]
	if !ok || record.Status != StatusQueued {
		return false
	}
	now := s.clock().UTC()
	record.Status = StatusProcessing
	record.StartedAt = &now
	return true
}

// finish writes the terminal state of a processed request.
func (s *resultStore) finish(requestID string, status RequestStatus, result *dispatch.Result, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[requestID]
	if !ok {
		return
	}
	now := s.clock().UTC()
	record.Status = status
	record.Result = result
	record.Error = errMsg
	record.CompletedAt = &now
}

// cancelQueued marks a still-queued record cancelled so the worker skips it
// at dequeue. Returns false when the request is unknown or already running.
func (s *resultStore) cancelQueued(requestID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[requestID]
	if !ok || record.Status != StatusQueued {
		return false
	}
	now := s.clock().UTC()
	record.Status = StatusCancelled
	record.Error = "cancelled before processing"
	record.CompletedAt = &now
	return true
}

// len reports how many records are retained.
func (s *resultStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// evictExpired removes terminal records older than the TTL and reports how
// many were dropped.
func (s *resultStore) evictExpired() int {
	cutoff := s.clock().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, record := range s.records {
		if record.Status.IsTerminal() && record.CompletedAt != nil && record.CompletedAt.Before(cutoff) {
			delete(s.records, id)
			evicted++
		}
	}
	return evicted
}
