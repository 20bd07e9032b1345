package coordination

import (
	"sort"
	"sync"
	"time"

	"github.com/polis-ai/polis/pkg/models"
)

// PlanBoard tracks the plans agents have registered at their coordination
// checkpoints, so later checkpoints see what is already in flight. Entries
// expire after the configured retention; a crashed pipeline never wedges the
// board. One entry per agent id: re-registering replaces the previous plan.
type PlanBoard struct {
	mu        sync.RWMutex
	entries   map[string]boardEntry
	retention time.Duration
	clock     func() time.Time
}

type boardEntry struct {
	decision  models.AgentDecision
	expiresAt time.Time
}

// NewPlanBoard builds an empty board with the given retention.
func NewPlanBoard(retention time.Duration) *PlanBoard {
	if retention <= 0 {
		retention = 10 * time.Minute
	}
	return &PlanBoard{
		entries:   make(map[string]boardEntry),
		retention: retention,
		clock:     time.Now,
	}
}

// Register records the agent's current in-flight plan, replacing any
// previous registration for the same agent.
func (b *PlanBoard) Register(decision models.AgentDecision) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[decision.ID()] = boardEntry{
		decision:  decision,
		expiresAt: b.clock().Add(b.retention),
	}
}

// Remove drops the agent's registration, if any.
func (b *PlanBoard) Remove(agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, agentID)
}

// Snapshot returns the live registrations, excluding the given agent and
// anything expired. Results are ordered by agent id so conflict detection
// over the snapshot is deterministic.
func (b *PlanBoard) Snapshot(excludeAgentID string) []models.AgentDecision {
	now := b.clock()

	b.mu.Lock()
	for id, entry := range b.entries {
		if !entry.expiresAt.After(now) {
			delete(b.entries, id)
		}
	}
	out := make([]models.AgentDecision, 0, len(b.entries))
	for id, entry := range b.entries {
		if id == excludeAgentID {
			continue
		}
		out = append(out, entry.decision)
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len reports how many live registrations the board holds.
func (b *PlanBoard) Len() int {
	now := b.clock()
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, entry := range b.entries {
		if entry.expiresAt.After(now) {
			n++
		}
	}
	return n
}
