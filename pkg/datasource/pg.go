package datasource

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGSource serves fact sets from the PostgreSQL fact tables.
type PGSource struct {
	pool *pgxpool.Pool
}

// NewPGSource wraps a connection pool. The schema is owned by the database
// package's migrations.
func NewPGSource(pool *pgxpool.Pool) *PGSource {
	return &PGSource{pool: pool}
}

func (s *PGSource) Workers(ctx context.Context, f Filter) ([]Record, error) {
	return s.selectRecords(ctx,
		`SELECT * FROM workers
		 WHERE ($1 = '' OR location = $1) AND ($2 = '' OR department = $2)
		 ORDER BY id`,
		NormalizeLocation(f.Location), normalizeDepartment(f.Department))
}

func (s *PGSource) Schedules(ctx context.Context, f Filter) ([]Record, error) {
	return s.selectRecords(ctx,
		`SELECT * FROM schedules
		 WHERE ($1 = '' OR location = $1) AND ($2 = '' OR department = $2)
		 ORDER BY starts_on, id`,
		NormalizeLocation(f.Location), normalizeDepartment(f.Department))
}

func (s *PGSource) Budgets(ctx context.Context, f Filter) ([]Record, error) {
	// Budgets are department-scoped; location does not apply.
	return s.selectRecords(ctx,
		`SELECT * FROM budgets WHERE ($1 = '' OR department = $1) ORDER BY id`,
		normalizeDepartment(f.Department))
}

func (s *PGSource) Infrastructure(ctx context.Context, f Filter) ([]Record, error) {
	return s.selectRecords(ctx,
		`SELECT * FROM infrastructure WHERE ($1 = '' OR location = $1) ORDER BY id`,
		NormalizeLocation(f.Location))
}

func (s *PGSource) Projects(ctx context.Context, f Filter) ([]Record, error) {
	return s.selectRecords(ctx,
		`SELECT * FROM projects
		 WHERE ($1 = '' OR location = $1) AND ($2 = '' OR department = $2)
		 ORDER BY id`,
		NormalizeLocation(f.Location), normalizeDepartment(f.Department))
}

func (s *PGSource) Equipment(ctx context.Context, f Filter) ([]Record, error) {
	return s.selectRecords(ctx,
		`SELECT * FROM equipment
		 WHERE ($1 = '' OR location = $1) AND ($2 = '' OR department = $2)
		 ORDER BY id`,
		NormalizeLocation(f.Location), normalizeDepartment(f.Department))
}

func (s *PGSource) Incidents(ctx context.Context, f Filter) ([]Record, error) {
	return s.selectRecords(ctx,
		`SELECT * FROM incidents WHERE ($1 = '' OR location = $1)
		 ORDER BY severity_score DESC, reported_at DESC`,
		NormalizeLocation(f.Location))
}

func (s *PGSource) Bins(ctx context.Context, f Filter) ([]Record, error) {
	// Bins are keyed by collection zone; the location filter addresses it.
	return s.selectRecords(ctx,
		`SELECT * FROM bins WHERE ($1 = '' OR zone = $1) ORDER BY fill_percent DESC, id`,
		NormalizeLocation(f.Location))
}

func (s *PGSource) Routes(ctx context.Context, f Filter) ([]Record, error) {
	return s.selectRecords(ctx,
		`SELECT * FROM routes WHERE ($1 = '' OR zone = $1) ORDER BY id`,
		NormalizeLocation(f.Location))
}

func (s *PGSource) Supplies(ctx context.Context, f Filter) ([]Record, error) {
	return s.selectRecords(ctx,
		`SELECT * FROM supplies WHERE ($1 = '' OR location = $1) ORDER BY item, id`,
		NormalizeLocation(f.Location))
}

func (s *PGSource) Campaigns(ctx context.Context, f Filter) ([]Record, error) {
	return s.selectRecords(ctx,
		`SELECT * FROM campaigns WHERE ($1 = '' OR location = $1) ORDER BY starts_on, id`,
		NormalizeLocation(f.Location))
}

func (s *PGSource) Facilities(ctx context.Context, f Filter) ([]Record, error) {
	return s.selectRecords(ctx,
		`SELECT * FROM facilities WHERE ($1 = '' OR location = $1) ORDER BY id`,
		NormalizeLocation(f.Location))
}

func (s *PGSource) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// selectRecords maps result rows onto Records keyed by column name, so the
// PG store and the memory store expose identical field names.
func (s *PGSource) selectRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fact query failed: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("fact row scan failed: %w", err)
		}
		rec := make(Record, len(fields))
		for i, fd := range fields {
			rec[fd.Name] = values[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func normalizeDepartment(department string) string {
	return strings.ToLower(strings.TrimSpace(department))
}
