package agent

import (
	"github.com/polis-ai/polis/pkg/config"
)

// Factory builds department agents from one shared dependency set. It does
// not cache; the dispatcher owns agent lifecycle and reuse.
type Factory struct {
	deps Deps
}

// NewFactory creates a factory over the shared dependencies.
func NewFactory(deps Deps) *Factory {
	return &Factory{deps: deps}
}

// Create builds the agent for agentType, validating its profile, tool
// whitelist and graph wiring.
func (f *Factory) Create(agentType config.AgentType) (*Agent, error) {
	return New(agentType, f.deps)
}

// Types lists the agent types the configuration defines, sorted.
func (f *Factory) Types() []string {
	if f.deps.Config == nil || f.deps.Config.ProfileRegistry == nil {
		return nil
	}
	return f.deps.Config.ProfileRegistry.Types()
}
