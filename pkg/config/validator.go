package config

import (
	"fmt"
)

// ConfigValidator validates configuration comprehensively with clear error messages
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error).
// Configuration errors are fatal at startup, never surfaced at request time.
func (v *ConfigValidator) ValidateAll() error {
	if err := v.validateDB(); err != nil {
		return fmt.Errorf("db validation failed: %w", err)
	}
	if err := v.validateLLM(); err != nil {
		return fmt.Errorf("llm validation failed: %w", err)
	}
	if err := v.validateAgentTuning(); err != nil {
		return fmt.Errorf("agent validation failed: %w", err)
	}
	if err := v.validateCoordination(); err != nil {
		return fmt.Errorf("coordination validation failed: %w", err)
	}
	if err := v.validateHTTP(); err != nil {
		return fmt.Errorf("http validation failed: %w", err)
	}
	if err := v.validateQueue(); err != nil {
		return fmt.Errorf("queue validation failed: %w", err)
	}
	if err := v.validateHuman(); err != nil {
		return fmt.Errorf("human validation failed: %w", err)
	}
	if err := v.validateNotifications(); err != nil {
		return fmt.Errorf("notifications validation failed: %w", err)
	}
	if err := v.validateTranslog(); err != nil {
		return fmt.Errorf("translog validation failed: %w", err)
	}
	if err := v.validateRetention(); err != nil {
		return fmt.Errorf("retention validation failed: %w", err)
	}
	if err := v.validateProfiles(); err != nil {
		return fmt.Errorf("profile validation failed: %w", err)
	}
	return nil
}

func (v *ConfigValidator) validateDB() error {
	db := v.cfg.DB
	if db.URL != "" {
		return nil // URL wins; discrete fields ignored
	}
	if db.Host == "" {
		return NewValidationError("db", "db", "host", ErrMissingRequiredField)
	}
	if db.Port < 1 || db.Port > 65535 {
		return NewValidationError("db", "db", "port", fmt.Errorf("%w: %d", ErrInvalidValue, db.Port))
	}
	if db.Database == "" {
		return NewValidationError("db", "db", "database", ErrMissingRequiredField)
	}
	if db.MaxOpenConns < 1 {
		return NewValidationError("db", "db", "max_open_conns", fmt.Errorf("must be at least 1"))
	}
	if db.MaxIdleConns < 0 {
		return NewValidationError("db", "db", "max_idle_conns", fmt.Errorf("must not be negative"))
	}
	return nil
}

func (v *ConfigValidator) validateLLM() error {
	llm := v.cfg.LLM
	if !llm.Provider.IsValid() {
		return NewValidationError("llm", string(llm.Provider), "provider", fmt.Errorf("%w: %s", ErrInvalidValue, llm.Provider))
	}
	if llm.BaseURL == "" {
		return NewValidationError("llm", string(llm.Provider), "base_url", ErrMissingRequiredField)
	}
	if llm.Model == "" {
		return NewValidationError("llm", string(llm.Provider), "model", ErrMissingRequiredField)
	}
	if llm.Temperature < 0 || llm.Temperature > 2 {
		return NewValidationError("llm", string(llm.Provider), "temperature", fmt.Errorf("%w: must be in [0, 2]", ErrInvalidValue))
	}
	if llm.MaxTokens < 1 {
		return NewValidationError("llm", string(llm.Provider), "max_tokens", fmt.Errorf("must be at least 1"))
	}
	if llm.Timeout <= 0 {
		return NewValidationError("llm", string(llm.Provider), "timeout", fmt.Errorf("must be positive"))
	}
	return nil
}

func (v *ConfigValidator) validateAgentTuning() error {
	agent := v.cfg.Agent
	if agent.MaxPlanningAttempts < 1 {
		return NewValidationError("agent", "agent", "max_planning_attempts", fmt.Errorf("must be at least 1"))
	}
	if agent.ConfidenceThreshold < 0 || agent.ConfidenceThreshold > 1 {
		return NewValidationError("agent", "agent", "confidence_threshold", fmt.Errorf("%w: must be in [0, 1]", ErrInvalidValue))
	}
	if agent.PipelineTimeout <= 0 {
		return NewValidationError("agent", "agent", "pipeline_timeout", fmt.Errorf("must be positive"))
	}
	return nil
}

func (v *ConfigValidator) validateCoordination() error {
	c := v.cfg.Coordination
	if c.ComplexityThreshold < 0 || c.ComplexityThreshold > 1 {
		return NewValidationError("coordination", "coordination", "complexity_threshold", fmt.Errorf("%w: must be in [0, 1]", ErrInvalidValue))
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return NewValidationError("coordination", "coordination", "confidence_threshold", fmt.Errorf("%w: must be in [0, 1]", ErrInvalidValue))
	}
	if c.AutoApprovalCostLimit < 0 {
		return NewValidationError("coordination", "coordination", "auto_approval_cost_limit", fmt.Errorf("must not be negative"))
	}
	if c.HumanResponseTimeout <= 0 {
		return NewValidationError("coordination", "coordination", "human_response_timeout", fmt.Errorf("must be positive"))
	}
	for _, month := range c.MonsoonMonths {
		if month < 1 || month > 12 {
			return NewValidationError("coordination", "coordination", "monsoon_months", fmt.Errorf("%w: month %d", ErrInvalidValue, month))
		}
	}
	for name, level := range c.PriorityLevels {
		if level < 1 {
			return NewValidationError("coordination", "coordination", "priority_levels", fmt.Errorf("%w: %s must be at least 1", ErrInvalidValue, name))
		}
	}
	if c.BudgetTotalThreshold < 0 || c.BudgetIndividualThreshold < 0 {
		return NewValidationError("coordination", "coordination", "budget_thresholds", fmt.Errorf("must not be negative"))
	}
	if c.CostBandLow > c.CostBandMedium || c.CostBandMedium > c.CostBandHigh {
		return NewValidationError("coordination", "coordination", "cost_bands", fmt.Errorf("%w: bands must be ordered low <= medium <= high", ErrInvalidValue))
	}
	if c.PlanRetention <= 0 {
		return NewValidationError("coordination", "coordination", "plan_retention", fmt.Errorf("must be positive"))
	}
	return nil
}

func (v *ConfigValidator) validateHTTP() error {
	h := v.cfg.HTTP
	if h.Port < 1 || h.Port > 65535 {
		return NewValidationError("http", "http", "port", fmt.Errorf("%w: %d", ErrInvalidValue, h.Port))
	}
	if h.ReadTimeout <= 0 || h.WriteTimeout <= 0 || h.ShutdownTimeout <= 0 {
		return NewValidationError("http", "http", "timeouts", fmt.Errorf("must be positive"))
	}
	return nil
}

func (v *ConfigValidator) validateQueue() error {
	q := v.cfg.Queue
	if q.WorkerCount < 1 {
		return NewValidationError("queue", "queue", "worker_count", fmt.Errorf("must be at least 1"))
	}
	if q.QueueSize < 1 {
		return NewValidationError("queue", "queue", "queue_size", fmt.Errorf("must be at least 1"))
	}
	if q.RequestTimeout <= 0 {
		return NewValidationError("queue", "queue", "request_timeout", fmt.Errorf("must be positive"))
	}
	if q.ResultTTL <= 0 {
		return NewValidationError("queue", "queue", "result_ttl", fmt.Errorf("must be positive"))
	}
	return nil
}

func (v *ConfigValidator) validateHuman() error {
	h := v.cfg.Human
	if !h.Mode.IsValid() {
		return NewValidationError("human", "human", "mode", fmt.Errorf("%w: %s", ErrInvalidValue, h.Mode))
	}
	return nil
}

func (v *ConfigValidator) validateNotifications() error {
	slack := v.cfg.Notifications.Slack
	if slack == nil || !slack.Enabled {
		return nil
	}
	if slack.Channel == "" {
		return NewValidationError("notifications", "slack", "channel", ErrMissingRequiredField)
	}
	return nil
}

func (v *ConfigValidator) validateTranslog() error {
	if v.cfg.Translog.SearchLimit < 1 {
		return NewValidationError("translog", "translog", "search_limit", fmt.Errorf("must be at least 1"))
	}
	return nil
}

func (v *ConfigValidator) validateRetention() error {
	r := v.cfg.Retention
	if r.MessageTTL <= 0 {
		return NewValidationError("retention", "retention", "message_ttl", fmt.Errorf("must be positive"))
	}
	if r.SweepInterval <= 0 {
		return NewValidationError("retention", "retention", "sweep_interval", fmt.Errorf("must be positive"))
	}
	return nil
}

func (v *ConfigValidator) validateProfiles() error {
	profiles := v.cfg.ProfileRegistry.GetAll()
	if len(profiles) == 0 {
		return fmt.Errorf("at least one agent profile required")
	}

	for name, profile := range profiles {
		if !AgentType(name).IsValid() {
			return NewValidationError("profile", name, "", fmt.Errorf("%w: unknown agent type", ErrInvalidValue))
		}
		if profile.Type != AgentType(name) {
			return NewValidationError("profile", name, "type", fmt.Errorf("%w: type %q must match profile key", ErrInvalidValue, profile.Type))
		}
		if len(profile.Intents) == 0 {
			return NewValidationError("profile", name, "intents", fmt.Errorf("at least one intent required"))
		}
		if profile.DefaultIntent == "" {
			return NewValidationError("profile", name, "default_intent", ErrMissingRequiredField)
		}
		if _, ok := profile.Intents[profile.DefaultIntent]; !ok {
			return NewValidationError("profile", name, "default_intent",
				fmt.Errorf("%w: intent %q not defined", ErrInvalidReference, profile.DefaultIntent))
		}

		for intentName, intent := range profile.Intents {
			if err := v.validateIntent(name, intentName, intent, profile); err != nil {
				return err
			}
		}

		for i, rule := range profile.RiskRules {
			if err := v.validateRiskRule(name, i, rule, profile); err != nil {
				return err
			}
		}

		if f := profile.Feasibility; f != nil {
			if f.BudgetUtilisationCap <= 0 || f.BudgetUtilisationCap > 1 {
				return NewValidationError("profile", name, "feasibility.budget_utilisation_cap", fmt.Errorf("%w: must be in (0, 1]", ErrInvalidValue))
			}
			if f.MaxActiveProjects < 1 {
				return NewValidationError("profile", name, "feasibility.max_active_projects", fmt.Errorf("must be at least 1"))
			}
		}
		if p := profile.Policy; p != nil && p.MaxCostWithoutReview < 0 {
			return NewValidationError("profile", name, "policy.max_cost_without_review", fmt.Errorf("must not be negative"))
		}

		if profile.MaxPlanningAttempts != nil && *profile.MaxPlanningAttempts < 1 {
			return NewValidationError("profile", name, "max_planning_attempts", fmt.Errorf("must be at least 1"))
		}
		if profile.ConfidenceThreshold != nil && (*profile.ConfidenceThreshold < 0 || *profile.ConfidenceThreshold > 1) {
			return NewValidationError("profile", name, "confidence_threshold", fmt.Errorf("%w: must be in [0, 1]", ErrInvalidValue))
		}
	}

	return nil
}

func (v *ConfigValidator) validateIntent(profileName, intentName string, intent *IntentConfig, profile *AgentProfile) error {
	intentRef := fmt.Sprintf("%s.%s", profileName, intentName)

	if intent == nil {
		return NewValidationError("intent", intentRef, "", fmt.Errorf("intent config required"))
	}
	if intent.RiskLevel != "" && !intent.RiskLevel.IsValid() {
		return NewValidationError("intent", intentRef, "risk_level", fmt.Errorf("%w: %s", ErrInvalidValue, intent.RiskLevel))
	}

	for i, plan := range intent.Plans {
		planRef := fmt.Sprintf("%s plan %d", intentRef, i)
		if plan.Name == "" {
			return fmt.Errorf("%s: plan name required", planRef)
		}
		if len(plan.Steps) == 0 {
			return fmt.Errorf("%s: at least one step required", planRef)
		}
		if plan.RiskLevel != "" && !plan.RiskLevel.IsValid() {
			return fmt.Errorf("%s: invalid risk level: %s", planRef, plan.RiskLevel)
		}
		// Plan steps are tool names and must stay within the whitelist.
		for _, step := range plan.Steps {
			if !profile.HasTool(step) {
				return fmt.Errorf("%s: step %q not in profile tools", planRef, step)
			}
		}
	}

	return nil
}

func (v *ConfigValidator) validateRiskRule(profileName string, index int, rule RiskRule, profile *AgentProfile) error {
	ruleRef := fmt.Sprintf("%s risk_rule %d", profileName, index)

	if rule.FactSet == "" {
		return fmt.Errorf("%s: fact_set required", ruleRef)
	}
	found := false
	for _, fs := range profile.FactSets {
		if fs == rule.FactSet {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%s: fact_set %q not loaded by profile", ruleRef, rule.FactSet)
	}
	if rule.Field == "" {
		return fmt.Errorf("%s: field required", ruleRef)
	}
	if !rule.Risk.IsValid() {
		return fmt.Errorf("%s: invalid risk level: %s", ruleRef, rule.Risk)
	}
	if rule.MinCount < 0 {
		return fmt.Errorf("%s: min_count must not be negative", ruleRef)
	}
	return nil
}
