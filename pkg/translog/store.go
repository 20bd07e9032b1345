package translog

import (
	"context"
	"sync"
	"time"

	"github.com/polis-ai/polis/pkg/models"
)

// Store persists transparency entries. The log is append-only: rows are never
// updated, reads return entries newest-first by append order, and PruneBefore
// removes whole rows past the retention window.
type Store interface {
	Insert(ctx context.Context, entry models.TransparencyEntry) error
	Recent(ctx context.Context, limit int, agentType, nodeName string) ([]models.TransparencyEntry, error)
	Since(ctx context.Context, cutoff time.Time, agentType string) ([]models.TransparencyEntry, error)
	PruneBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	Ping(ctx context.Context) error
}

// MemoryStore keeps entries in process memory. It backs unit tests and
// LLM-less demos; production uses PGStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []models.TransparencyEntry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(ctx context.Context, entry models.TransparencyEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemoryStore) Recent(ctx context.Context, limit int, agentType, nodeName string) ([]models.TransparencyEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.TransparencyEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if agentType != "" && e.AgentType != agentType {
			continue
		}
		if nodeName != "" && e.NodeName != nodeName {
			continue
		}
		out = append(out, copyEntry(e))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Since(ctx context.Context, cutoff time.Time, agentType string) ([]models.TransparencyEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.TransparencyEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.Timestamp.Before(cutoff) {
			continue
		}
		if agentType != "" && e.AgentType != agentType {
			continue
		}
		out = append(out, copyEntry(e))
	}
	return out, nil
}

func (s *MemoryStore) PruneBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned []string
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.Timestamp.Before(cutoff) {
			pruned = append(pruned, e.LogID)
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return pruned, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len reports how many entries have been appended (test helper).
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// copyEntry detaches the maps and slices so callers cannot mutate stored
// entries.
func copyEntry(e models.TransparencyEntry) models.TransparencyEntry {
	out := e
	if e.Context != nil {
		out.Context = make(map[string]any, len(e.Context))
		for k, v := range e.Context {
			out.Context[k] = v
		}
	}
	if e.PolicyReferences != nil {
		out.PolicyReferences = append([]string(nil), e.PolicyReferences...)
	}
	return out
}
