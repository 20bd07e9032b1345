package config

// AgentType identifies a municipal department agent.
type AgentType string

const (
	// AgentTypeWater handles water supply, distribution and maintenance requests
	AgentTypeWater AgentType = "water_dept"
	// AgentTypeEngineering handles construction, roads and structural work
	AgentTypeEngineering AgentType = "engineering_dept"
	// AgentTypeFire handles emergency response and fire safety
	AgentTypeFire AgentType = "fire_dept"
	// AgentTypeSanitation handles waste collection routes and bin capacity
	AgentTypeSanitation AgentType = "sanitation_dept"
	// AgentTypeHealth handles medical supplies, campaigns and facilities
	AgentTypeHealth AgentType = "health_dept"
	// AgentTypeFinance handles budget reviews and allocations
	AgentTypeFinance AgentType = "finance_dept"
)

// IsValid checks if the agent type is valid
func (t AgentType) IsValid() bool {
	switch t {
	case AgentTypeWater,
		AgentTypeEngineering,
		AgentTypeFire,
		AgentTypeSanitation,
		AgentTypeHealth,
		AgentTypeFinance:
		return true
	default:
		return false
	}
}

// AllAgentTypes returns every known agent type in stable order.
func AllAgentTypes() []AgentType {
	return []AgentType{
		AgentTypeWater,
		AgentTypeEngineering,
		AgentTypeFire,
		AgentTypeSanitation,
		AgentTypeHealth,
		AgentTypeFinance,
	}
}

// LLMProviderType defines supported LLM providers
type LLMProviderType string

const (
	// LLMProviderOpenAICompatible is any endpoint speaking the OpenAI
	// chat-completions wire format (OpenAI, vLLM, Ollama, LiteLLM, ...)
	LLMProviderOpenAICompatible LLMProviderType = "openai-compatible"
)

// IsValid checks if the LLM provider type is valid
func (t LLMProviderType) IsValid() bool {
	return t == LLMProviderOpenAICompatible
}

// ApprovalMode selects how human approvals are acquired.
type ApprovalMode string

const (
	// ApprovalModeInteractive prompts on the terminal (default)
	ApprovalModeInteractive ApprovalMode = "interactive"
	// ApprovalModeAuto approves every escalation without waiting
	ApprovalModeAuto ApprovalMode = "auto"
	// ApprovalModeAPI parks escalations for resolution over the REST API
	ApprovalModeAPI ApprovalMode = "api"
)

// IsValid checks if the approval mode is valid
func (m ApprovalMode) IsValid() bool {
	switch m {
	case ApprovalModeInteractive, ApprovalModeAuto, ApprovalModeAPI:
		return true
	default:
		return false
	}
}
