package agent

import (
	"context"

	"github.com/polis-ai/polis/pkg/datasource"
)

// loadContext queries the domain data source for every fact-set the profile
// declares and stores the results on the state. It never fails the pipeline:
// a failing query logs a warning and leaves an empty list, so downstream
// evaluators see reduced data completeness instead of a crash.
func (a *Agent) loadContext(ctx context.Context, s *State) error {
	filter := datasource.Filter{
		Location:   datasource.NormalizeLocation(s.InputEvent.Location),
		Department: string(a.agentType),
	}

	for _, name := range a.profile.FactSets {
		records, err := datasource.FetchFactSet(ctx, a.source, name, filter)
		if err != nil {
			a.logger.Warn("Fact-set load failed, continuing with empty list",
				"fact_set", name,
				"location", s.InputEvent.Location,
				"error", err)
			s.Context[name] = []datasource.Record{}
			continue
		}
		s.Context[name] = records
	}

	a.logger.Debug("Context loaded",
		"fact_sets", len(s.Context),
		"location", s.InputEvent.Location)
	return nil
}
