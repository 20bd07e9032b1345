package datasource

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Source loaded with deterministic fixtures.
// It backs unit tests and LLM-less demos; production uses PGSource.
type MemoryStore struct {
	mu   sync.RWMutex
	sets map[string][]Record
}

// NewMemoryStore returns a store populated with the builtin city fixtures.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sets: fixtures()}
}

// NewEmptyMemoryStore returns a store with no records (tests add their own).
func NewEmptyMemoryStore() *MemoryStore {
	sets := make(map[string][]Record, len(FactSets()))
	for _, name := range FactSets() {
		sets[name] = nil
	}
	return &MemoryStore{sets: sets}
}

// Add appends records to a fact set. Unknown names return ErrUnknownFactSet.
func (s *MemoryStore) Add(factSet string, records ...Record) error {
	if !IsFactSet(factSet) {
		return ErrUnknownFactSet
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[factSet] = append(s.sets[factSet], records...)
	return nil
}

// Replace swaps the full contents of a fact set (test setup).
func (s *MemoryStore) Replace(factSet string, records []Record) error {
	if !IsFactSet(factSet) {
		return ErrUnknownFactSet
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[factSet] = records
	return nil
}

func (s *MemoryStore) Workers(ctx context.Context, f Filter) ([]Record, error) {
	return s.query(ctx, FactWorkers, f)
}

func (s *MemoryStore) Schedules(ctx context.Context, f Filter) ([]Record, error) {
	return s.query(ctx, FactSchedules, f)
}

func (s *MemoryStore) Budgets(ctx context.Context, f Filter) ([]Record, error) {
	return s.query(ctx, FactBudgets, f)
}

func (s *MemoryStore) Infrastructure(ctx context.Context, f Filter) ([]Record, error) {
	return s.query(ctx, FactInfrastructure, f)
}

func (s *MemoryStore) Projects(ctx context.Context, f Filter) ([]Record, error) {
	return s.query(ctx, FactProjects, f)
}

func (s *MemoryStore) Equipment(ctx context.Context, f Filter) ([]Record, error) {
	return s.query(ctx, FactEquipment, f)
}

func (s *MemoryStore) Incidents(ctx context.Context, f Filter) ([]Record, error) {
	return s.query(ctx, FactIncidents, f)
}

func (s *MemoryStore) Bins(ctx context.Context, f Filter) ([]Record, error) {
	return s.query(ctx, FactBins, f)
}

func (s *MemoryStore) Routes(ctx context.Context, f Filter) ([]Record, error) {
	return s.query(ctx, FactRoutes, f)
}

func (s *MemoryStore) Supplies(ctx context.Context, f Filter) ([]Record, error) {
	return s.query(ctx, FactSupplies, f)
}

func (s *MemoryStore) Campaigns(ctx context.Context, f Filter) ([]Record, error) {
	return s.query(ctx, FactCampaigns, f)
}

func (s *MemoryStore) Facilities(ctx context.Context, f Filter) ([]Record, error) {
	return s.query(ctx, FactFacilities, f)
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// departmentScoped lists the fact sets whose records carry a department
// field. The department filter only applies to these, mirroring the PG
// queries; the remaining sets hold city-wide facts.
var departmentScoped = map[string]bool{
	FactWorkers:   true,
	FactSchedules: true,
	FactBudgets:   true,
	FactProjects:  true,
	FactEquipment: true,
}

// query returns shallow copies of the matching records so callers cannot
// mutate shared fixtures.
func (s *MemoryStore) query(ctx context.Context, factSet string, f Filter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	location := NormalizeLocation(f.Location)
	department := strings.ToLower(strings.TrimSpace(f.Department))
	if !departmentScoped[factSet] {
		department = ""
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, rec := range s.sets[factSet] {
		if location != "" && !matchesLocation(rec, location) {
			continue
		}
		if department != "" && !matchesField(rec, "department", department) {
			continue
		}
		copied := make(Record, len(rec))
		for k, v := range rec {
			copied[k] = v
		}
		out = append(out, copied)
	}
	return out, nil
}

// matchesLocation accepts either a location or zone field; bins and routes
// are keyed by zone.
func matchesLocation(rec Record, want string) bool {
	return matchesField(rec, "location", want) || matchesField(rec, "zone", want)
}

func matchesField(rec Record, field, want string) bool {
	v, ok := rec[field].(string)
	return ok && strings.EqualFold(v, want)
}
