package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// PolisYAMLConfig represents the complete polis.yaml file structure
type PolisYAMLConfig struct {
	DB            *DBConfig                `yaml:"db"`
	LLM           *LLMConfig               `yaml:"llm"`
	Agent         *AgentTuning             `yaml:"agent"`
	Coordination  *CoordinationConfig      `yaml:"coordination"`
	HTTP          *HTTPConfig              `yaml:"http"`
	Queue         *QueueConfig             `yaml:"queue"`
	Notifications *NotificationsConfig     `yaml:"notifications"`
	Human         *HumanConfig             `yaml:"human"`
	Translog      *TranslogConfig          `yaml:"translog"`
	Retention     *RetentionConfig         `yaml:"retention"`
	Agents        map[string]*AgentProfile `yaml:"agents"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load polis.yaml from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in profiles + user overrides (per-field, user wins)
//  5. Resolve section defaults
//  6. Validate all configuration
//  7. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	// 1. Load configuration files
	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Validate all configuration
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"profiles", stats.Profiles,
		"intents", stats.Intents,
		"plan_templates", stats.Plans,
		"llm_model", cfg.LLM.Model)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{
		configDir: configDir,
	}

	// 1. Load polis.yaml (sections + per-profile overrides)
	polisConfig, err := loader.loadPolisYAML()
	if err != nil {
		return nil, NewLoadError("polis.yaml", err)
	}

	// 2. Merge built-in profiles with user overrides (user wins per field)
	builtin := GetBuiltinConfig()
	profiles, err := mergeProfiles(builtin.Profiles, polisConfig.Agents)
	if err != nil {
		return nil, fmt.Errorf("failed to merge agent profiles: %w", err)
	}

	// 3. Apply profile defaults (before validation)
	for name, profile := range profiles {
		if profile.Type == "" {
			profile.Type = AgentType(name)
		}
		if profile.Feasibility == nil {
			profile.Feasibility = DefaultFeasibilityConfig()
		}
		if profile.Policy == nil {
			profile.Policy = DefaultPolicyConfig()
		}
	}

	// 4. Resolve sections (user YAML merges onto built-in defaults so
	// unset values keep their defaults)
	db := DefaultDBConfig()
	llm := DefaultLLMConfig()
	agent := DefaultAgentTuning()
	coordination := DefaultCoordinationConfig()
	httpCfg := DefaultHTTPConfig()
	queue := DefaultQueueConfig()
	notifications := DefaultNotificationsConfig()
	human := DefaultHumanConfig()
	translog := DefaultTranslogConfig()
	retention := DefaultRetentionConfig()

	sections := []struct {
		name string
		dst  any
		src  any
	}{
		{"db", db, polisConfig.DB},
		{"llm", llm, polisConfig.LLM},
		{"agent", agent, polisConfig.Agent},
		{"coordination", coordination, polisConfig.Coordination},
		{"http", httpCfg, polisConfig.HTTP},
		{"queue", queue, polisConfig.Queue},
		{"notifications", notifications, polisConfig.Notifications},
		{"human", human, polisConfig.Human},
		{"translog", translog, polisConfig.Translog},
		{"retention", retention, polisConfig.Retention},
	}
	for _, s := range sections {
		if err := mergeSection(s.name, s.dst, s.src); err != nil {
			return nil, err
		}
	}

	if notifications.Slack != nil && notifications.Slack.TokenEnv == "" {
		notifications.Slack.TokenEnv = "SLACK_BOT_TOKEN"
	}

	// coordination.auto_approve forces the auto approval source
	if coordination.AutoApprove {
		human.Mode = ApprovalModeAuto
	}

	return &Config{
		configDir:       configDir,
		DB:              db,
		LLM:             llm,
		HTTP:            httpCfg,
		Queue:           queue,
		Translog:        translog,
		Retention:       retention,
		Agent:           agent,
		Coordination:    coordination,
		Human:           human,
		Notifications:   notifications,
		ProfileRegistry: NewProfileRegistry(profiles),
	}, nil
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

// mergeSection merges a user-provided section onto its defaults. Non-zero
// user fields win; a nil src leaves dst untouched.
func mergeSection(name string, dst, src any) error {
	if src == nil {
		return nil
	}
	// src arrives as a typed pointer boxed in any; unwrap the nil case.
	if v := reflect.ValueOf(src); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil
	}
	if err := mergo.Merge(dst, src, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to merge %s config: %w", name, err)
	}
	return nil
}

// mergeProfiles merges built-in and user-defined agent profiles. Built-in
// profiles are deep-copied so repeated loads never mutate the singleton;
// user fields merge on top per field (non-zero values override).
func mergeProfiles(builtinProfiles map[string]AgentProfile, userProfiles map[string]*AgentProfile) (map[string]*AgentProfile, error) {
	result := make(map[string]*AgentProfile, len(builtinProfiles))

	for name, profile := range builtinProfiles {
		result[name] = profile.deepCopy()
	}

	for name, userProfile := range userProfiles {
		if userProfile == nil {
			continue
		}
		base, exists := result[name]
		if !exists {
			result[name] = userProfile.deepCopy()
			continue
		}
		if err := mergo.Merge(base, *userProfile, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
	}

	return result, nil
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax
	// Note: ExpandEnv passes through original data on parse/execution errors,
	// allowing YAML parser to handle the content (or fail with clearer error message)
	data = ExpandEnv(data)

	// Parse YAML
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadPolisYAML() (*PolisYAMLConfig, error) {
	var config PolisYAMLConfig

	// Initialize map to avoid nil map
	config.Agents = make(map[string]*AgentProfile)

	if err := l.loadYAML("polis.yaml", &config); err != nil {
		return nil, err
	}

	return &config, nil
}
