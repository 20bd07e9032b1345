package agent

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/llm"
	"github.com/polis-ai/polis/pkg/models"
)

// intentReply is the strict JSON contract of the LLM classification path.
type intentReply struct {
	Intent         string   `json:"intent"`
	RiskLevel      string   `json:"risk_level"`
	SafetyConcerns []string `json:"safety_concerns"`
	Reasoning      string   `json:"reasoning"`
}

// analyseIntent classifies the request into the profile's closed intent set
// and derives the risk level. The LLM path is preferred; the keyword
// dictionary is the deterministic fallback. Context risk rules may raise the
// baseline risk afterwards, and a critical level escalates immediately.
func (a *Agent) analyseIntent(ctx context.Context, s *State) error {
	intent, risk, concerns := a.classify(ctx, s)

	s.Intent = intent
	s.SafetyConcerns = concerns
	s.RiskLevel = a.applyRiskRules(s, risk)

	if ic := a.profile.Intent(intent); ic != nil && ic.Informational {
		s.QueryType = QueryInformational
	}

	if s.RiskLevel == models.RiskCritical {
		s.MarkEscalated(fmt.Sprintf("critical risk level for %s at %s", intent, s.InputEvent.Location))
	}

	a.logger.Info("Intent classified",
		"intent", s.Intent,
		"risk_level", s.RiskLevel,
		"query_type", s.QueryType)
	return nil
}

// classify returns the intent label, its baseline risk and any safety
// concerns reported by the classifier.
func (a *Agent) classify(ctx context.Context, s *State) (string, models.RiskLevel, []string) {
	if a.llm != nil {
		var reply intentReply
		system, user := intentPrompt(a.profile, s.InputEvent, s.Context)
		err := llm.CompleteJSON(ctx, a.llm, llm.Request{System: system, User: user, JSONOnly: true}, &reply)
		switch {
		case err != nil:
			a.logger.Warn("LLM classification unavailable, using keyword fallback", "error", err)
		case a.profile.Intent(reply.Intent) == nil:
			a.logger.Warn("Classifier returned a label outside the closed set, using keyword fallback",
				"intent", reply.Intent)
		default:
			risk := models.RiskLevel(reply.RiskLevel)
			if !risk.IsValid() {
				risk = baselineRisk(a.profile.Intent(reply.Intent))
			}
			return reply.Intent, risk, reply.SafetyConcerns
		}
	}

	intent := a.classifyByKeywords(s.InputEvent)
	return intent, baselineRisk(a.profile.Intent(intent)), nil
}

// classifyByKeywords is the deterministic classifier: an exact type match
// wins, then the intent with the most keyword hits over type+reason text,
// then the profile default. Ties break alphabetically by intent label.
func (a *Agent) classifyByKeywords(req *models.Request) string {
	if a.profile.Intent(req.Type) != nil {
		return req.Type
	}

	haystack := strings.ToLower(req.Type + " " + req.Reason)
	names := a.profile.IntentNames()
	sort.Strings(names)

	best, bestScore := "", 0
	for _, name := range names {
		score := 0
		for _, keyword := range a.profile.Intent(name).Keywords {
			if strings.Contains(haystack, strings.ToLower(keyword)) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	if best != "" {
		return best
	}
	if a.profile.DefaultIntent != "" {
		return a.profile.DefaultIntent
	}
	if len(names) > 0 {
		return names[0]
	}
	return ""
}

// applyRiskRules raises the risk level when a numeric field crosses the
// configured threshold on enough context records. Rules never lower risk.
func (a *Agent) applyRiskRules(s *State, base models.RiskLevel) models.RiskLevel {
	risk := base
	if !risk.IsValid() {
		risk = models.RiskLow
	}

	for _, rule := range a.profile.RiskRules {
		count := 0
		for _, record := range s.Context[rule.FactSet] {
			if v, ok := factFloat(record[rule.Field]); ok && v >= rule.Threshold {
				count++
			}
		}
		minCount := rule.MinCount
		if minCount <= 0 {
			minCount = 1
		}
		if count < minCount {
			continue
		}
		raised := models.MaxRiskLevel(risk, rule.Risk)
		if raised != risk {
			a.logger.Info("Risk raised by context rule",
				"fact_set", rule.FactSet,
				"field", rule.Field,
				"threshold", rule.Threshold,
				"matches", count,
				"risk_level", raised)
			risk = raised
		}
	}
	return risk
}

// setGoal renders the intent's goal template with request fields. Pure.
func (a *Agent) setGoal(ctx context.Context, s *State) error {
	ic := a.profile.Intent(s.Intent)
	if ic == nil || ic.Goal == "" {
		s.Goal = fmt.Sprintf("Handle %s at %s", s.Intent, s.InputEvent.Location)
		return nil
	}
	s.Goal = renderTemplate(ic.Goal, s.InputEvent)
	return nil
}

// renderTemplate substitutes {location}, {type} and any {field} placeholder
// with request values. Unknown placeholders stay as-is so a misconfigured
// template is visible instead of silently blank.
func renderTemplate(tmpl string, req *models.Request) string {
	out := strings.ReplaceAll(tmpl, "{location}", req.Location)
	out = strings.ReplaceAll(out, "{type}", req.Type)
	for _, key := range req.FieldKeys() {
		placeholder := "{" + key + "}"
		if !strings.Contains(out, placeholder) {
			continue
		}
		out = strings.ReplaceAll(out, placeholder, fieldString(req.Fields[key]))
	}
	return out
}

func baselineRisk(ic *config.IntentConfig) models.RiskLevel {
	if ic == nil || !ic.RiskLevel.IsValid() {
		return models.RiskLow
	}
	return ic.RiskLevel
}

// fieldString renders a request field for templates without the float
// artifacts of %v on JSON-decoded numbers.
func fieldString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// factFloat coerces the numeric shapes datasource records carry.
func factFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
