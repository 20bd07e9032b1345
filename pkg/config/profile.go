package config

import (
	"fmt"
	"sync"

	"github.com/polis-ai/polis/pkg/models"
)

// AgentProfile is the complete per-department configuration: the closed
// intent set, fact-sets for context loading, tool selection, feasibility and
// policy thresholds. Built-in profiles cover the six departments; user YAML
// can override individual fields per profile.
type AgentProfile struct {
	// Type determines dispatcher routing; profile map key and Type must agree.
	Type AgentType `yaml:"type,omitempty"`

	// Human-readable description
	Description string `yaml:"description,omitempty"`

	// FactSets are the named data-source queries the context loader performs.
	FactSets []string `yaml:"fact_sets,omitempty"`

	// Intents is the closed classification set for this agent.
	Intents map[string]*IntentConfig `yaml:"intents,omitempty"`

	// DefaultIntent is the classifier fallback when nothing matches.
	DefaultIntent string `yaml:"default_intent,omitempty"`

	// Tools whitelists registry tool names this agent may plan with.
	Tools []string `yaml:"tools,omitempty"`

	// RiskRules derive risk from loaded context (e.g. 6 bins at >=95% fill).
	RiskRules []RiskRule `yaml:"risk_rules,omitempty"`

	// Feasibility parameterises the deterministic feasibility rules.
	Feasibility *FeasibilityConfig `yaml:"feasibility,omitempty"`

	// Policy parameterises the deterministic policy rules.
	Policy *PolicyConfig `yaml:"policy,omitempty"`

	// Per-profile overrides of the agent section; nil means inherit.
	MaxPlanningAttempts *int     `yaml:"max_planning_attempts,omitempty"`
	ConfidenceThreshold *float64 `yaml:"confidence_threshold,omitempty"`
}

// IntentConfig describes one intent label of a profile.
type IntentConfig struct {
	// Goal is a template rendered with request fields ({location}, ...).
	Goal string `yaml:"goal,omitempty"`

	// RiskLevel is the baseline risk assigned by the fallback classifier.
	RiskLevel models.RiskLevel `yaml:"risk_level,omitempty"`

	// Informational intents short-circuit to the direct-response path.
	Informational bool `yaml:"informational,omitempty"`

	// Emergency intents bypass all feasibility rules except worker
	// availability and skip seasonal policy restrictions.
	Emergency bool `yaml:"emergency,omitempty"`

	// Keywords drive the deterministic fallback classifier.
	Keywords []string `yaml:"keywords,omitempty"`

	// DataFacts names the context fact-sets included in informational
	// responses; empty means all loaded facts.
	DataFacts []string `yaml:"data_facts,omitempty"`

	// Plans are the fallback plan templates, in preference order. The head
	// is the primary plan; the tail feeds alternative_plans.
	Plans []PlanTemplate `yaml:"plans,omitempty"`
}

// PlanTemplate is a deterministic plan used when the LLM planner is
// unavailable or returns garbage.
type PlanTemplate struct {
	Name              string           `yaml:"name"`
	Steps             []string         `yaml:"steps"`
	EstimatedDuration string           `yaml:"estimated_duration,omitempty"`
	ResourcesNeeded   []string         `yaml:"resources_needed,omitempty"`
	RiskLevel         models.RiskLevel `yaml:"risk_level,omitempty"`
}

// RiskRule raises the request risk when a numeric field crosses a threshold
// on enough records of one fact-set.
type RiskRule struct {
	FactSet   string           `yaml:"fact_set"`
	Field     string           `yaml:"field"`
	Threshold float64          `yaml:"threshold"`
	MinCount  int              `yaml:"min_count,omitempty"`
	Risk      models.RiskLevel `yaml:"risk"`
}

// FeasibilityConfig parameterises the deterministic feasibility evaluation.
// All thresholds are configuration, never code constants.
type FeasibilityConfig struct {
	// BudgetUtilisationCap rejects plans that would push department budget
	// utilisation above this fraction.
	BudgetUtilisationCap float64 `yaml:"budget_utilisation_cap,omitempty"`

	// MaxActiveProjects caps concurrent projects per location.
	MaxActiveProjects int `yaml:"max_active_projects,omitempty"`

	// BlockedConditions are infrastructure conditions that block work.
	BlockedConditions []string `yaml:"blocked_conditions,omitempty"`

	// BlockedZoneRisks are zone risk levels that block work.
	BlockedZoneRisks []string `yaml:"blocked_zone_risks,omitempty"`
}

// DefaultFeasibilityConfig returns the built-in feasibility thresholds.
func DefaultFeasibilityConfig() *FeasibilityConfig {
	return &FeasibilityConfig{
		BudgetUtilisationCap: 0.90,
		MaxActiveProjects:    5,
		BlockedConditions:    []string{"poor", "critical"},
		BlockedZoneRisks:     []string{"high", "critical"},
	}
}

// PolicyConfig parameterises the deterministic policy validation.
type PolicyConfig struct {
	// MaxCostWithoutReview flags plans whose cost exceeds it.
	MaxCostWithoutReview float64 `yaml:"max_cost_without_review,omitempty"`

	// SeasonRestrictedIntents are deferred during the monsoon months.
	SeasonRestrictedIntents []string `yaml:"season_restricted_intents,omitempty"`

	// References are the policy document ids recorded in transparency
	// entries for decisions this profile makes.
	References []string `yaml:"references,omitempty"`
}

// DefaultPolicyConfig returns the built-in policy thresholds.
func DefaultPolicyConfig() *PolicyConfig {
	return &PolicyConfig{
		MaxCostWithoutReview: 2_000_000,
	}
}

// deepCopy clones the profile including nested maps and slices so merge
// operations never mutate the built-in singleton.
func (p *AgentProfile) deepCopy() *AgentProfile {
	cp := *p
	cp.FactSets = append([]string(nil), p.FactSets...)
	cp.Tools = append([]string(nil), p.Tools...)
	cp.RiskRules = append([]RiskRule(nil), p.RiskRules...)

	if p.Intents != nil {
		cp.Intents = make(map[string]*IntentConfig, len(p.Intents))
		for name, intent := range p.Intents {
			if intent == nil {
				continue
			}
			ic := *intent
			ic.Keywords = append([]string(nil), intent.Keywords...)
			ic.DataFacts = append([]string(nil), intent.DataFacts...)
			if intent.Plans != nil {
				ic.Plans = make([]PlanTemplate, len(intent.Plans))
				for i, plan := range intent.Plans {
					pt := plan
					pt.Steps = append([]string(nil), plan.Steps...)
					pt.ResourcesNeeded = append([]string(nil), plan.ResourcesNeeded...)
					ic.Plans[i] = pt
				}
			}
			cp.Intents[name] = &ic
		}
	}

	if p.Feasibility != nil {
		f := *p.Feasibility
		f.BlockedConditions = append([]string(nil), p.Feasibility.BlockedConditions...)
		f.BlockedZoneRisks = append([]string(nil), p.Feasibility.BlockedZoneRisks...)
		cp.Feasibility = &f
	}
	if p.Policy != nil {
		pol := *p.Policy
		pol.SeasonRestrictedIntents = append([]string(nil), p.Policy.SeasonRestrictedIntents...)
		pol.References = append([]string(nil), p.Policy.References...)
		cp.Policy = &pol
	}
	if p.MaxPlanningAttempts != nil {
		v := *p.MaxPlanningAttempts
		cp.MaxPlanningAttempts = &v
	}
	if p.ConfidenceThreshold != nil {
		v := *p.ConfidenceThreshold
		cp.ConfidenceThreshold = &v
	}
	return &cp
}

// IntentNames returns the profile's intent labels in undefined order.
func (p *AgentProfile) IntentNames() []string {
	names := make([]string, 0, len(p.Intents))
	for name := range p.Intents {
		names = append(names, name)
	}
	return names
}

// Intent returns the intent config, or nil when the label is unknown.
func (p *AgentProfile) Intent(name string) *IntentConfig {
	return p.Intents[name]
}

// HasTool reports whether the profile whitelists the tool.
func (p *AgentProfile) HasTool(name string) bool {
	for _, t := range p.Tools {
		if t == name {
			return true
		}
	}
	return false
}

// ProfileRegistry stores agent profiles in memory with thread-safe access
type ProfileRegistry struct {
	profiles map[string]*AgentProfile
	mu       sync.RWMutex
}

// NewProfileRegistry creates a new profile registry
func NewProfileRegistry(profiles map[string]*AgentProfile) *ProfileRegistry {
	// The registry owns its map; callers keep theirs.
	copied := make(map[string]*AgentProfile, len(profiles))
	for k, v := range profiles {
		copied[k] = v
	}
	return &ProfileRegistry{
		profiles: copied,
	}
}

// Get retrieves an agent profile by agent type name (thread-safe)
func (r *ProfileRegistry) Get(name string) (*AgentProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, exists := r.profiles[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return profile, nil
}

// GetAll returns all agent profiles (thread-safe, returns copy)
func (r *ProfileRegistry) GetAll() map[string]*AgentProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*AgentProfile, len(r.profiles))
	for k, v := range r.profiles {
		result[k] = v
	}
	return result
}

// Has checks if a profile exists in the registry (thread-safe)
func (r *ProfileRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.profiles[name]
	return exists
}

// Len returns the number of profiles in the registry (thread-safe)
func (r *ProfileRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

// Types returns the registered agent type names in undefined order.
func (r *ProfileRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		types = append(types, name)
	}
	return types
}
