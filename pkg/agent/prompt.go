package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/datasource"
	"github.com/polis-ai/polis/pkg/models"
	"github.com/polis-ai/polis/pkg/tools"
)

// Prompt builders for the LLM-assisted nodes. Every prompt demands a single
// JSON object (or terse prose for summaries) so the deterministic fallback
// can take over on any malformed reply. Inputs are rendered in sorted order
// to keep repeated runs byte-identical.

const promptRecordLimit = 8

func intentPrompt(profile *config.AgentProfile, req *models.Request, loaded map[string][]datasource.Record) (system, user string) {
	labels := profile.IntentNames()
	sort.Strings(labels)

	system = fmt.Sprintf(`You classify municipal service requests for the %s department (%s).
Reply with exactly one JSON object:
{"intent": "<label>", "risk_level": "low|medium|high|critical", "safety_concerns": ["..."], "reasoning": "..."}
"intent" must be one of: %s. Never invent a label.`,
		profile.Type, profile.Description, strings.Join(labels, ", "))

	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n", req.Summary())
	b.WriteString("Loaded context: ")
	b.WriteString(renderContextCounts(loaded))
	return system, b.String()
}

func plannerPrompt(profile *config.AgentProfile, registry *tools.Registry, s *State) (system, user string) {
	system = fmt.Sprintf(`You plan municipal operations for the %s department.
Reply with exactly one JSON object:
{"plans": [{"name": "...", "steps": ["<tool>"], "estimated_duration": "...", "estimated_cost": 0, "resources_needed": ["..."], "risk_level": "low|medium|high|critical"}]}
Order plans best-first; later plans are fallbacks with reduced scope.
Every step must be one of the available tools listed below. Never invent a tool.`,
		profile.Type)

	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", s.Goal)
	fmt.Fprintf(&b, "Intent: %s (risk %s)\n", s.Intent, s.RiskLevel)
	fmt.Fprintf(&b, "Request: %s\n", s.InputEvent.Summary())
	b.WriteString("Available tools:\n")
	for _, name := range registry.Names() {
		tool, _ := registry.Get(name)
		fmt.Fprintf(&b, "- %s: %s\n", name, tool.Description)
	}
	return system, b.String()
}

func observerPrompt(s *State) (system, user string) {
	system = `You write one-line operations log entries.
Summarise the tool findings below in one or two dry, factual sentences.
No recommendations, no markdown.`

	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", s.Goal)
	b.WriteString("Tool results:\n")
	for _, name := range sortedKeys(s.ToolResults) {
		fmt.Fprintf(&b, "- %s: %s\n", name, renderResult(s.ToolResults[name]))
	}
	return system, b.String()
}

func directResponsePrompt(profile *config.AgentProfile, req *models.Request, data map[string]any) (system, user string) {
	// The anti-table constraint matters: downstream channels are plain-text
	// notification sinks.
	system = fmt.Sprintf(`You are the %s department operations desk.
Answer the query in at most three short sentences of plain prose.
State counts and names from the data only. Never use tables, lists, markdown or headings.
If the data is empty, say so plainly.`, profile.Type)

	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", req.Summary())
	b.WriteString("Data:\n")
	for _, name := range sortedKeys(data) {
		fmt.Fprintf(&b, "- %s: %s\n", name, renderFact(data[name]))
	}
	return system, b.String()
}

func renderContextCounts(loaded map[string][]datasource.Record) string {
	if len(loaded) == 0 {
		return "none"
	}
	names := make([]string, 0, len(loaded))
	for name := range loaded {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, len(loaded[name])))
	}
	return strings.Join(parts, ", ")
}

// renderResult flattens one tool result for a prompt, dropping the bulky
// record samples and keeping the scalar findings.
func renderResult(result models.ToolResult) string {
	compact := make(map[string]any, len(result))
	for key, value := range result {
		switch value.(type) {
		case bool, int, float64, string:
			compact[key] = value
		}
	}
	raw, err := json.Marshal(compact)
	if err != nil {
		return fmt.Sprintf("%v", compact)
	}
	return string(raw)
}

// renderFact bounds a context fact-set to a prompt-sized excerpt.
func renderFact(value any) string {
	records, ok := value.([]datasource.Record)
	if !ok {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(raw)
	}
	bounded := records
	if len(bounded) > promptRecordLimit {
		bounded = bounded[:promptRecordLimit]
	}
	raw, err := json.Marshal(bounded)
	if err != nil {
		return fmt.Sprintf("%d records", len(records))
	}
	if len(records) > promptRecordLimit {
		return fmt.Sprintf("%s (+%d more)", raw, len(records)-promptRecordLimit)
	}
	return string(raw)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
