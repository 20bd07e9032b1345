package config

// Config is the umbrella configuration object that encapsulates all sections
// and the agent profile registry. This is the primary object returned by
// Initialize() and used throughout the application.
type Config struct {
	configDir string // Configuration directory path (for reference)

	// Infrastructure sections
	DB        *DBConfig
	LLM       *LLMConfig
	HTTP      *HTTPConfig
	Queue     *QueueConfig
	Translog  *TranslogConfig
	Retention *RetentionConfig

	// Behaviour sections
	Agent         *AgentTuning
	Coordination  *CoordinationConfig
	Human         *HumanConfig
	Notifications *NotificationsConfig

	// Per-department agent profiles
	ProfileRegistry *ProfileRegistry
}

// Initialize is defined in loader.go

// Stats contains statistics about loaded configuration
type Stats struct {
	Profiles int
	Intents  int
	Plans    int
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() Stats {
	s := Stats{}
	if c.ProfileRegistry == nil {
		return s
	}
	for _, profile := range c.ProfileRegistry.GetAll() {
		s.Profiles++
		for _, intent := range profile.Intents {
			s.Intents++
			s.Plans += len(intent.Plans)
		}
	}
	return s
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetProfile retrieves an agent profile by agent type name.
// This is a convenience method that wraps ProfileRegistry.Get().
func (c *Config) GetProfile(name string) (*AgentProfile, error) {
	return c.ProfileRegistry.Get(name)
}

// MaxPlanningAttemptsFor resolves the planning attempt budget for a profile:
// the per-profile override when set, the shared agent default otherwise.
func (c *Config) MaxPlanningAttemptsFor(p *AgentProfile) int {
	if p != nil && p.MaxPlanningAttempts != nil {
		return *p.MaxPlanningAttempts
	}
	return c.Agent.MaxPlanningAttempts
}

// ConfidenceThresholdFor resolves the minimum confidence for a profile: the
// per-profile override when set, the shared agent default otherwise.
func (c *Config) ConfidenceThresholdFor(p *AgentProfile) float64 {
	if p != nil && p.ConfidenceThreshold != nil {
		return *p.ConfidenceThreshold
	}
	return c.Agent.ConfidenceThreshold
}
