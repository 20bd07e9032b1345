// Package translog implements the append-only transparency log: every routed
// decision is persisted with its rationale so citizens and auditors can ask
// why the system did what it did. Reads are similarity-ranked when an
// embedding function is configured and recency-ordered otherwise.
package translog

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/polis-ai/polis/pkg/models"
)

// EmbeddingFunc turns a searchable text into a vector. It matches chromem's
// signature so its bundled adapters (OpenAI-compatible, Ollama) plug in
// directly.
type EmbeddingFunc = chromem.EmbeddingFunc

const (
	// collectionName is the chromem collection holding decision vectors.
	collectionName = "decisions"

	// reindexLimit bounds how many persisted entries Reindex loads back into
	// the similarity index after a restart.
	reindexLimit = 1000

	// defaultSearchLimit is used when neither the query nor the options set
	// a result count.
	defaultSearchLimit = 5

	// defaultReportPeriod is the trailing window for GenerateReport.
	defaultReportPeriod = 7 * 24 * time.Hour

	// reportEntryLimit caps the top/recent entry lists in a report.
	reportEntryLimit = 5

	// excerptLimit caps the serialized context excerpt inside searchable text.
	excerptLimit = 240
)

// Options configures the log service.
type Options struct {
	// Embedding enables the vector similarity index. Nil keeps searches on
	// the recency-ordered fallback.
	Embedding EmbeddingFunc

	// SearchLimit is the default result count for SearchDecisions.
	SearchLimit int
}

// Log is the transparency log service: validated appends, similarity search
// and periodic reporting over a Store.
type Log struct {
	store      Store
	collection *chromem.Collection
	limit      int
	logger     *slog.Logger
	clock      func() time.Time
}

// New builds the service. The similarity index lives in process memory; call
// Reindex after a restart to warm it from the store.
func New(store Store, opts Options) (*Log, error) {
	l := &Log{
		store:  store,
		limit:  opts.SearchLimit,
		logger: slog.Default().With("component", "translog"),
		clock:  time.Now,
	}
	if l.limit <= 0 {
		l.limit = defaultSearchLimit
	}
	if opts.Embedding != nil {
		collection, err := chromem.NewDB().GetOrCreateCollection(collectionName, nil, opts.Embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to create similarity index: %w", err)
		}
		l.collection = collection
	}
	return l, nil
}

// Append persists one entry, filling in the log id, timestamp and searchable
// text when missing. Indexing is best-effort: a failed vector write keeps the
// persisted row and logs a warning.
func (l *Log) Append(ctx context.Context, entry models.TransparencyEntry) error {
	if entry.LogID == "" {
		entry.LogID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.clock().UTC()
	}
	if entry.SearchableText == "" {
		entry.SearchableText = BuildSearchableText(entry)
	}

	if err := l.store.Insert(ctx, entry); err != nil {
		return fmt.Errorf("failed to append transparency entry: %w", err)
	}
	l.index(ctx, entry)
	return nil
}

// SearchQuery narrows a decision search. Zero values mean no filter:
// NResults falls back to the configured default, MinConfidence 0 and
// MaxCost 0 disable the numeric bounds.
type SearchQuery struct {
	Query         string  `json:"query"`
	NResults      int     `json:"n_results,omitempty"`
	FilterAgent   string  `json:"filter_agent,omitempty"`
	FilterNode    string  `json:"filter_node,omitempty"`
	MinConfidence float64 `json:"min_confidence,omitempty"`
	MaxCost       float64 `json:"max_cost,omitempty"`
}

// SearchResult is one ranked decision. Distance is 1 minus cosine similarity
// on the index path and 0 on the recency fallback.
type SearchResult struct {
	LogID    string         `json:"log_id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Distance float64        `json:"distance"`
}

// SearchDecisions returns past decisions ranked by similarity to the query
// text. Without an embedding function, with an empty query, or when the index
// errors, it falls back to recency order over the store.
func (l *Log) SearchDecisions(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	n := q.NResults
	if n <= 0 {
		n = l.limit
	}

	// An empty index (fresh start before Reindex) must not hide persisted
	// entries, so it falls through to the store.
	if l.collection != nil && q.Query != "" && l.collection.Count() > 0 {
		results, err := l.searchIndex(ctx, q, n)
		if err == nil {
			return results, nil
		}
		l.logger.Warn("Similarity search failed, falling back to recency order", "error", err)
	}
	return l.searchRecent(ctx, q, n)
}

// searchIndex ranks by vector similarity. Filters are applied after ranking,
// so it over-fetches candidates to keep filtered result sets full.
func (l *Log) searchIndex(ctx context.Context, q SearchQuery, n int) ([]SearchResult, error) {
	fetch := n * 4
	if count := l.collection.Count(); fetch > count {
		fetch = count
	}
	if fetch == 0 {
		return nil, nil
	}

	hits, err := l.collection.Query(ctx, q.Query, fetch, nil, nil)
	if err != nil {
		return nil, err
	}

	var out []SearchResult
	for _, hit := range hits {
		if q.FilterAgent != "" && hit.Metadata["agent_type"] != q.FilterAgent {
			continue
		}
		if q.FilterNode != "" && hit.Metadata["node_name"] != q.FilterNode {
			continue
		}
		confidence, _ := strconv.ParseFloat(hit.Metadata["confidence"], 64)
		cost, _ := strconv.ParseFloat(hit.Metadata["cost_impact"], 64)
		if q.MinConfidence > 0 && confidence < q.MinConfidence {
			continue
		}
		if q.MaxCost > 0 && cost > q.MaxCost {
			continue
		}
		out = append(out, SearchResult{
			LogID:    hit.ID,
			Text:     hit.Content,
			Metadata: hitMetadata(hit.Metadata),
			Distance: round4(1 - float64(hit.Similarity)),
		})
		if len(out) == n {
			break
		}
	}
	return out, nil
}

// searchRecent is the similarity fallback: newest entries first, same filter
// semantics, distance 0.
func (l *Log) searchRecent(ctx context.Context, q SearchQuery, n int) ([]SearchResult, error) {
	fetch := n
	if q.MinConfidence > 0 || q.MaxCost > 0 {
		fetch = n * 4
	}
	entries, err := l.store.Recent(ctx, fetch, q.FilterAgent, q.FilterNode)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent decisions: %w", err)
	}

	var out []SearchResult
	for _, e := range entries {
		if q.MinConfidence > 0 && e.Confidence < q.MinConfidence {
			continue
		}
		if q.MaxCost > 0 && e.CostImpact > q.MaxCost {
			continue
		}
		out = append(out, SearchResult{
			LogID:    e.LogID,
			Text:     e.SearchableText,
			Metadata: entryMetadata(e),
		})
		if len(out) == n {
			break
		}
	}
	return out, nil
}

// ReportQuery bounds a transparency report. Period covers entries written in
// the trailing window (default seven days); Agent narrows to one department.
type ReportQuery struct {
	Period time.Duration `json:"period,omitempty"`
	Agent  string        `json:"agent,omitempty"`
}

// ReportStatistics aggregates the reporting window.
type ReportStatistics struct {
	TotalEntries      int            `json:"total_entries"`
	AverageConfidence float64        `json:"average_confidence"`
	TotalCostImpact   float64        `json:"total_cost_impact"`
	AffectedCitizens  int            `json:"affected_citizens"`
	Escalations       int            `json:"escalations"`
	DecisionCounts    map[string]int `json:"decision_counts"`
}

// EntrySummary is the compact form used in report listings.
type EntrySummary struct {
	LogID      string    `json:"log_id"`
	Timestamp  time.Time `json:"timestamp"`
	AgentType  string    `json:"agent_type"`
	Decision   string    `json:"decision"`
	Rationale  string    `json:"rationale"`
	Confidence float64   `json:"confidence"`
	CostImpact float64   `json:"cost_impact"`
}

// Report is the public accountability summary for a period.
type Report struct {
	GeneratedAt      time.Time        `json:"generated_at"`
	Period           string           `json:"period"`
	Agent            string           `json:"agent,omitempty"`
	Statistics       ReportStatistics `json:"statistics"`
	DecisionsByAgent map[string]int   `json:"decisions_by_agent"`
	TopDecisions     []EntrySummary   `json:"top_decisions"`
	RecentDecisions  []EntrySummary   `json:"recent_decisions"`
}

// GenerateReport aggregates the window's entries: per-agent counts, decision
// distribution, the costliest decisions and the latest ones.
func (l *Log) GenerateReport(ctx context.Context, q ReportQuery) (*Report, error) {
	period := q.Period
	if period <= 0 {
		period = defaultReportPeriod
	}
	now := l.clock().UTC()

	entries, err := l.store.Since(ctx, now.Add(-period), q.Agent)
	if err != nil {
		return nil, fmt.Errorf("failed to load report entries: %w", err)
	}

	report := &Report{
		GeneratedAt:      now,
		Period:           period.String(),
		Agent:            q.Agent,
		Statistics:       ReportStatistics{DecisionCounts: make(map[string]int)},
		DecisionsByAgent: make(map[string]int),
	}

	var confidenceSum float64
	for _, e := range entries {
		report.Statistics.TotalEntries++
		report.Statistics.TotalCostImpact += e.CostImpact
		report.Statistics.AffectedCitizens += e.AffectedCitizens
		report.Statistics.DecisionCounts[e.Decision]++
		if e.Decision == string(models.DecisionEscalate) {
			report.Statistics.Escalations++
		}
		report.DecisionsByAgent[e.AgentType]++
		confidenceSum += e.Confidence
	}
	if n := report.Statistics.TotalEntries; n > 0 {
		report.Statistics.AverageConfidence = math.Round(confidenceSum/float64(n)*100) / 100
	}

	for i, e := range entries {
		if i == reportEntryLimit {
			break
		}
		report.RecentDecisions = append(report.RecentDecisions, summarize(e))
	}

	byCost := append([]models.TransparencyEntry(nil), entries...)
	sort.SliceStable(byCost, func(i, j int) bool { return byCost[i].CostImpact > byCost[j].CostImpact })
	for i, e := range byCost {
		if i == reportEntryLimit {
			break
		}
		report.TopDecisions = append(report.TopDecisions, summarize(e))
	}

	return report, nil
}

// Prune deletes entries older than the retention window and evicts them from
// the similarity index. It returns how many entries were removed.
func (l *Log) Prune(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := l.clock().UTC().Add(-retention)
	pruned, err := l.store.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune transparency entries: %w", err)
	}
	if l.collection != nil && len(pruned) > 0 {
		if err := l.collection.Delete(ctx, nil, nil, pruned...); err != nil {
			l.logger.Warn("Failed to evict pruned entries from similarity index", "error", err)
		}
	}
	return len(pruned), nil
}

// Reindex warms the similarity index from the store after a restart and
// returns how many entries were indexed. A nil index is a no-op.
func (l *Log) Reindex(ctx context.Context) (int, error) {
	if l.collection == nil {
		return 0, nil
	}
	entries, err := l.store.Recent(ctx, reindexLimit, "", "")
	if err != nil {
		return 0, fmt.Errorf("failed to load entries for reindex: %w", err)
	}

	indexed := 0
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.SearchableText == "" {
			e.SearchableText = BuildSearchableText(e)
		}
		if err := l.collection.AddDocument(ctx, indexDocument(e)); err != nil {
			l.logger.Warn("Failed to reindex transparency entry", "log_id", e.LogID, "error", err)
			continue
		}
		indexed++
	}
	return indexed, nil
}

// Ready reports whether the backing store is reachable (startup validation).
func (l *Log) Ready(ctx context.Context) error {
	return l.store.Ping(ctx)
}

// index adds one entry to the similarity index, best-effort.
func (l *Log) index(ctx context.Context, entry models.TransparencyEntry) {
	if l.collection == nil {
		return
	}
	if err := l.collection.AddDocument(ctx, indexDocument(entry)); err != nil {
		l.logger.Warn("Failed to index transparency entry", "log_id", entry.LogID, "error", err)
	}
}

func indexDocument(e models.TransparencyEntry) chromem.Document {
	return chromem.Document{
		ID:      e.LogID,
		Content: e.SearchableText,
		Metadata: map[string]string{
			"agent_type":  e.AgentType,
			"node_name":   e.NodeName,
			"decision":    e.Decision,
			"confidence":  strconv.FormatFloat(e.Confidence, 'f', -1, 64),
			"cost_impact": strconv.FormatFloat(e.CostImpact, 'f', -1, 64),
			"timestamp":   e.Timestamp.UTC().Format(time.RFC3339),
		},
	}
}

// hitMetadata converts chromem's string metadata back to typed values.
func hitMetadata(meta map[string]string) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if k == "confidence" || k == "cost_impact" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				out[k] = f
				continue
			}
		}
		out[k] = v
	}
	return out
}

func entryMetadata(e models.TransparencyEntry) map[string]any {
	return map[string]any{
		"agent_type":  e.AgentType,
		"node_name":   e.NodeName,
		"decision":    e.Decision,
		"confidence":  e.Confidence,
		"cost_impact": e.CostImpact,
		"timestamp":   e.Timestamp.UTC().Format(time.RFC3339),
	}
}

func summarize(e models.TransparencyEntry) EntrySummary {
	return EntrySummary{
		LogID:      e.LogID,
		Timestamp:  e.Timestamp,
		AgentType:  e.AgentType,
		Decision:   e.Decision,
		Rationale:  e.Rationale,
		Confidence: e.Confidence,
		CostImpact: e.CostImpact,
	}
}

// BuildSearchableText composes the compact text the similarity index ranks:
// agent, node, decision, rationale, a bounded context excerpt and policy
// references.
func BuildSearchableText(e models.TransparencyEntry) string {
	parts := make([]string, 0, 6)
	for _, p := range []string{e.AgentType, e.NodeName, e.Decision, e.Rationale} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if excerpt := contextExcerpt(e.Context); excerpt != "" {
		parts = append(parts, excerpt)
	}
	if len(e.PolicyReferences) > 0 {
		parts = append(parts, strings.Join(e.PolicyReferences, " "))
	}
	return strings.Join(parts, " | ")
}

// contextExcerpt serializes the context map deterministically (sorted keys)
// and truncates it to excerptLimit bytes.
func contextExcerpt(context map[string]any) string {
	if len(context) == 0 {
		return ""
	}
	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, context[k]))
	}
	excerpt := strings.Join(pairs, " ")
	if len(excerpt) > excerptLimit {
		excerpt = excerpt[:excerptLimit]
	}
	return excerpt
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
