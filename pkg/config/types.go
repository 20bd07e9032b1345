package config

import (
	"fmt"
	"time"

	"github.com/polis-ai/polis/pkg/models"
)

// Shared section structs used across the polis.yaml file.

// DBConfig holds PostgreSQL connection settings. URL, when set, wins over the
// discrete fields.
type DBConfig struct {
	URL      string `yaml:"url,omitempty"`
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
	SSLMode  string `yaml:"ssl_mode,omitempty"`

	MaxOpenConns    int           `yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int           `yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime,omitempty"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time,omitempty"`
}

// DefaultDBConfig returns the built-in database defaults.
func DefaultDBConfig() *DBConfig {
	return &DBConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "polis",
		Database:        "polis",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// DSN returns the connection string. URL wins over the discrete fields.
func (c *DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// LLMConfig holds chat-completion endpoint settings. APIKey is normally
// injected via {{ .POLIS_LLM_API_KEY }} template expansion in polis.yaml.
type LLMConfig struct {
	Provider    LLMProviderType `yaml:"provider,omitempty"`
	APIKey      string          `yaml:"api_key,omitempty"`
	BaseURL     string          `yaml:"base_url,omitempty"`
	Model       string          `yaml:"model,omitempty"`
	Temperature float64         `yaml:"temperature,omitempty"`
	MaxTokens   int             `yaml:"max_tokens,omitempty"`
	Timeout     time.Duration   `yaml:"timeout,omitempty"`
}

// DefaultLLMConfig returns the built-in LLM defaults.
func DefaultLLMConfig() *LLMConfig {
	return &LLMConfig{
		Provider:    LLMProviderOpenAICompatible,
		BaseURL:     "http://localhost:11434/v1",
		Model:       "llama3.1",
		Temperature: 0,
		MaxTokens:   2048,
		Timeout:     60 * time.Second,
	}
}

// AgentTuning holds pipeline-level knobs shared by every domain agent.
// Per-profile overrides win over these values.
type AgentTuning struct {
	// MaxPlanningAttempts bounds planner/tool retry loops before escalation.
	MaxPlanningAttempts int `yaml:"max_planning_attempts,omitempty"`

	// ConfidenceThreshold is the minimum confidence to avoid escalation.
	ConfidenceThreshold float64 `yaml:"confidence_threshold,omitempty"`

	// PipelineTimeout is the overall deadline for one pipeline execution.
	PipelineTimeout time.Duration `yaml:"pipeline_timeout,omitempty"`
}

// DefaultAgentTuning returns the built-in agent defaults.
func DefaultAgentTuning() *AgentTuning {
	return &AgentTuning{
		MaxPlanningAttempts: 3,
		ConfidenceThreshold: 0.7,
		PipelineTimeout:     2 * time.Minute,
	}
}

// CoordinationConfig holds conflict-resolution thresholds and rule tables.
type CoordinationConfig struct {
	// ComplexityThreshold routes conflicts at or above it to the LLM negotiator.
	ComplexityThreshold float64 `yaml:"complexity_threshold,omitempty"`

	// ConfidenceThreshold below which a resolution needs human approval.
	ConfidenceThreshold float64 `yaml:"confidence_threshold,omitempty"`

	// AutoApprovalCostLimit is the combined cost above which resolutions
	// always go to a human. Costs exactly at the limit do not escalate.
	AutoApprovalCostLimit float64 `yaml:"auto_approval_cost_limit,omitempty"`

	// HumanResponseTimeout bounds the blocking approval acquisition.
	HumanResponseTimeout time.Duration `yaml:"human_response_timeout,omitempty"`

	// MonsoonMonths lists calendar months (1-12) in which seasonal policy
	// conflicts fire for restricted project types.
	MonsoonMonths []int `yaml:"monsoon_months,omitempty"`

	// SeasonRestrictedTypes are the project types the monsoon rule applies to.
	SeasonRestrictedTypes []string `yaml:"season_restricted_types,omitempty"`

	// PriorityLevels maps priority names onto numeric levels.
	PriorityLevels map[string]int `yaml:"priority_levels,omitempty"`

	// AutoApprove answers every escalation with approval by the configured
	// auto approver instead of waiting for a human.
	AutoApprove bool `yaml:"auto_approve,omitempty"`

	// BudgetTotalThreshold and BudgetIndividualThreshold parameterise budget
	// conflict detection: the combined cost must cross the total threshold
	// while at least two decisions individually exceed the secondary one.
	BudgetTotalThreshold      float64 `yaml:"budget_total_threshold,omitempty"`
	BudgetIndividualThreshold float64 `yaml:"budget_individual_threshold,omitempty"`

	// CostBandHigh, CostBandMedium and CostBandLow are the maximum-cost
	// levels that add 0.30, 0.15 and 0.10 to a conflict's complexity score.
	CostBandHigh   float64 `yaml:"cost_band_high,omitempty"`
	CostBandMedium float64 `yaml:"cost_band_medium,omitempty"`
	CostBandLow    float64 `yaml:"cost_band_low,omitempty"`

	// PlanRetention is how long a checkpoint-registered plan stays visible
	// to conflict checks before expiring from the plan board.
	PlanRetention time.Duration `yaml:"plan_retention,omitempty"`
}

// Levels converts the configured priority mapping into the models form,
// falling back to the built-in ordering when none is configured.
func (c *CoordinationConfig) Levels() models.PriorityLevels {
	if len(c.PriorityLevels) == 0 {
		return models.DefaultPriorityLevels()
	}
	levels := make(models.PriorityLevels, len(c.PriorityLevels))
	for name, level := range c.PriorityLevels {
		levels[models.Priority(name)] = level
	}
	return levels
}

// DefaultCoordinationConfig returns the built-in coordination defaults.
func DefaultCoordinationConfig() *CoordinationConfig {
	return &CoordinationConfig{
		ComplexityThreshold:       0.6,
		ConfidenceThreshold:       0.7,
		AutoApprovalCostLimit:     5_000_000,
		HumanResponseTimeout:      5 * time.Minute,
		MonsoonMonths:             []int{6, 7, 8, 9},
		SeasonRestrictedTypes:     []string{"construction", "road_work", "outdoor_maintenance"},
		BudgetTotalThreshold:      10_000_000,
		BudgetIndividualThreshold: 1_000_000,
		CostBandHigh:              5_000_000,
		CostBandMedium:            1_000_000,
		CostBandLow:               500_000,
		PlanRetention:             10 * time.Minute,
	}
}

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	Host            string        `yaml:"host,omitempty"`
	Port            int           `yaml:"port,omitempty"`
	ReadTimeout     time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout    time.Duration `yaml:"write_timeout,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// DefaultHTTPConfig returns the built-in HTTP defaults.
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}

// SlackConfig holds Slack notification settings.
type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	TokenEnv string `yaml:"token_env,omitempty"`
	Channel  string `yaml:"channel,omitempty"`
}

// NotificationsConfig selects escalation notification sinks. The log sink is
// always active; Slack is additive when enabled.
type NotificationsConfig struct {
	Slack *SlackConfig `yaml:"slack,omitempty"`
}

// DefaultNotificationsConfig returns the built-in notification defaults.
func DefaultNotificationsConfig() *NotificationsConfig {
	return &NotificationsConfig{
		Slack: &SlackConfig{
			Enabled:  false,
			TokenEnv: "SLACK_BOT_TOKEN",
		},
	}
}

// TranslogConfig holds transparency-log search settings.
type TranslogConfig struct {
	// EmbeddingModel enables semantic decision search over the vector index
	// when set. Empty keeps the recency-ordered fallback.
	EmbeddingModel string `yaml:"embedding_model,omitempty"`

	// SearchLimit is the default result count for decision searches.
	SearchLimit int `yaml:"search_limit,omitempty"`
}

// DefaultTranslogConfig returns the built-in transparency-log defaults.
func DefaultTranslogConfig() *TranslogConfig {
	return &TranslogConfig{
		SearchLimit: 5,
	}
}

// RetentionConfig controls how long operational data is kept before the
// sweeper removes it.
type RetentionConfig struct {
	// LogRetentionDays is how many days transparency entries stay queryable
	// before they are pruned. Zero or negative disables log pruning.
	LogRetentionDays int `yaml:"log_retention_days,omitempty"`

	// MessageTTL is the maximum age of acknowledged inter-agent messages
	// before they are swept from the bus.
	MessageTTL time.Duration `yaml:"message_ttl,omitempty"`

	// SweepInterval is how often the sweep loop runs.
	SweepInterval time.Duration `yaml:"sweep_interval,omitempty"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		LogRetentionDays: 365,
		MessageTTL:       1 * time.Hour,
		SweepInterval:    12 * time.Hour,
	}
}

// HumanConfig holds approval acquisition settings.
type HumanConfig struct {
	// Mode selects the approval source; auto_approve in the coordination
	// section forces ApprovalModeAuto regardless.
	Mode ApprovalMode `yaml:"mode,omitempty"`

	// Approver is the identity recorded for auto approvals.
	Approver string `yaml:"approver,omitempty"`
}

// DefaultHumanConfig returns the built-in human interface defaults.
func DefaultHumanConfig() *HumanConfig {
	return &HumanConfig{
		Mode:     ApprovalModeInteractive,
		Approver: "system_auto_approve",
	}
}
