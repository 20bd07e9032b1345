// Package datasource is the read-only facade over persisted municipal facts
// (workers, budgets, schedules, incidents, ...). Agents never write here;
// the same interface is served by PostgreSQL in production and an in-memory
// fixture store in tests and demos.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFactSet indicates a fact-set name outside the closed catalogue.
var ErrUnknownFactSet = errors.New("unknown fact set")

// Record is one domain fact row. Both stores emit identical field names
// (the column names of the fact tables); tools depend on them.
type Record map[string]any

// Filter narrows a fact-set query. Zero values mean "no filter". Location
// sentinels ("general", "all", "any", "city", "citywide") also mean
// "no filter"; stores normalise them away.
type Filter struct {
	Location   string
	Department string
}

// Fact-set names, matching the fact tables one to one.
const (
	FactWorkers        = "workers"
	FactSchedules      = "schedules"
	FactBudgets        = "budgets"
	FactInfrastructure = "infrastructure"
	FactProjects       = "projects"
	FactEquipment      = "equipment"
	FactIncidents      = "incidents"
	FactBins           = "bins"
	FactRoutes         = "routes"
	FactSupplies       = "supplies"
	FactCampaigns      = "campaigns"
	FactFacilities     = "facilities"
)

// FactSets returns the closed catalogue of fact-set names.
func FactSets() []string {
	return []string{
		FactWorkers, FactSchedules, FactBudgets, FactInfrastructure,
		FactProjects, FactEquipment, FactIncidents, FactBins,
		FactRoutes, FactSupplies, FactCampaigns, FactFacilities,
	}
}

// IsFactSet reports whether name is in the catalogue.
func IsFactSet(name string) bool {
	switch name {
	case FactWorkers, FactSchedules, FactBudgets, FactInfrastructure,
		FactProjects, FactEquipment, FactIncidents, FactBins,
		FactRoutes, FactSupplies, FactCampaigns, FactFacilities:
		return true
	default:
		return false
	}
}

// Source is the read contract agents and tools consume.
type Source interface {
	Workers(ctx context.Context, f Filter) ([]Record, error)
	Schedules(ctx context.Context, f Filter) ([]Record, error)
	Budgets(ctx context.Context, f Filter) ([]Record, error)
	Infrastructure(ctx context.Context, f Filter) ([]Record, error)
	Projects(ctx context.Context, f Filter) ([]Record, error)
	Equipment(ctx context.Context, f Filter) ([]Record, error)
	Incidents(ctx context.Context, f Filter) ([]Record, error)
	Bins(ctx context.Context, f Filter) ([]Record, error)
	Routes(ctx context.Context, f Filter) ([]Record, error)
	Supplies(ctx context.Context, f Filter) ([]Record, error)
	Campaigns(ctx context.Context, f Filter) ([]Record, error)
	Facilities(ctx context.Context, f Filter) ([]Record, error)

	// Ping verifies the backing store is reachable (startup validation).
	Ping(ctx context.Context) error
}

// FetchFactSet dispatches a fact-set name to the matching Source method.
func FetchFactSet(ctx context.Context, src Source, name string, f Filter) ([]Record, error) {
	switch name {
	case FactWorkers:
		return src.Workers(ctx, f)
	case FactSchedules:
		return src.Schedules(ctx, f)
	case FactBudgets:
		return src.Budgets(ctx, f)
	case FactInfrastructure:
		return src.Infrastructure(ctx, f)
	case FactProjects:
		return src.Projects(ctx, f)
	case FactEquipment:
		return src.Equipment(ctx, f)
	case FactIncidents:
		return src.Incidents(ctx, f)
	case FactBins:
		return src.Bins(ctx, f)
	case FactRoutes:
		return src.Routes(ctx, f)
	case FactSupplies:
		return src.Supplies(ctx, f)
	case FactCampaigns:
		return src.Campaigns(ctx, f)
	case FactFacilities:
		return src.Facilities(ctx, f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFactSet, name)
	}
}

// sentinelLocations are request locations that mean "the whole city", i.e.
// no location filter at all.
var sentinelLocations = map[string]struct{}{
	"general": {}, "all": {}, "any": {}, "city": {}, "citywide": {},
}

// NormalizeLocation lowercases and trims a location, mapping sentinel values
// to the empty string (no filter).
func NormalizeLocation(location string) string {
	loc := strings.ToLower(strings.TrimSpace(location))
	if _, ok := sentinelLocations[loc]; ok {
		return ""
	}
	return loc
}
