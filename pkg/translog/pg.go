package translog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polis-ai/polis/pkg/models"
)

// PGStore persists entries in the transparency_log table. The schema is owned
// by the database package's migrations.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps a connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Insert(ctx context.Context, entry models.TransparencyEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transparency_log
		  (log_id, created_at, agent_type, node_name, decision, context,
		   rationale, confidence, cost_impact, affected_citizens,
		   policy_references, searchable_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.LogID, entry.Timestamp, entry.AgentType, entry.NodeName,
		entry.Decision, contextJSON(entry.Context), entry.Rationale,
		entry.Confidence, entry.CostImpact, entry.AffectedCitizens,
		policyRefs(entry.PolicyReferences), entry.SearchableText)
	if err != nil {
		return fmt.Errorf("failed to insert transparency entry: %w", err)
	}
	return nil
}

func (s *PGStore) Recent(ctx context.Context, limit int, agentType, nodeName string) ([]models.TransparencyEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT log_id::text, created_at, agent_type, node_name, decision,
		       context, rationale, confidence, cost_impact, affected_citizens,
		       policy_references, searchable_text
		FROM transparency_log
		WHERE ($1 = '' OR agent_type = $1) AND ($2 = '' OR node_name = $2)
		ORDER BY seq DESC
		LIMIT $3`,
		agentType, nodeName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent entries: %w", err)
	}
	return scanEntries(rows)
}

func (s *PGStore) Since(ctx context.Context, cutoff time.Time, agentType string) ([]models.TransparencyEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT log_id::text, created_at, agent_type, node_name, decision,
		       context, rationale, confidence, cost_impact, affected_citizens,
		       policy_references, searchable_text
		FROM transparency_log
		WHERE created_at >= $1 AND ($2 = '' OR agent_type = $2)
		ORDER BY seq DESC`,
		cutoff, agentType)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries since %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return scanEntries(rows)
}

func (s *PGStore) PruneBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		DELETE FROM transparency_log
		WHERE created_at < $1
		RETURNING log_id::text`,
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to prune entries before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var pruned []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pruned log id: %w", err)
		}
		pruned = append(pruned, id)
	}
	return pruned, rows.Err()
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanEntries(rows pgx.Rows) ([]models.TransparencyEntry, error) {
	defer rows.Close()

	var out []models.TransparencyEntry
	for rows.Next() {
		var e models.TransparencyEntry
		if err := rows.Scan(
			&e.LogID, &e.Timestamp, &e.AgentType, &e.NodeName, &e.Decision,
			&e.Context, &e.Rationale, &e.Confidence, &e.CostImpact,
			&e.AffectedCitizens, &e.PolicyReferences, &e.SearchableText,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transparency entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// policyRefs substitutes an empty slice for nil so the TEXT[] column never
// receives NULL.
func policyRefs(refs []string) []string {
	if refs == nil {
		return []string{}
	}
	return refs
}

// contextJSON substitutes an empty map for nil so the NOT NULL JSONB column
// never receives NULL.
func contextJSON(context map[string]any) map[string]any {
	if context == nil {
		return map[string]any{}
	}
	return context
}
