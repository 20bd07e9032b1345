package api

import (
	"github.com/polis-ai/polis/pkg/database"
	"github.com/polis-ai/polis/pkg/models"
	"github.com/polis-ai/polis/pkg/queue"
	"github.com/polis-ai/polis/pkg/translog"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string                 `json:"status"`
	Version       string                 `json:"version"`
	Checks        map[string]HealthCheck `json:"checks"`
	Configuration ConfigurationStats     `json:"configuration"`
	Datasource    *database.HealthStatus `json:"datasource,omitempty"`
	WorkerPool    *queue.PoolHealth      `json:"worker_pool,omitempty"`
}

// HealthCheck is one component's verdict inside HealthResponse.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ConfigurationStats contains counts of loaded configuration items.
type ConfigurationStats struct {
	Agents  int `json:"agents"`
	Intents int `json:"intents"`
	Plans   int `json:"plans"`
}

// AgentsResponse is returned by GET /api/v1/agents.
type AgentsResponse struct {
	AgentTypes []string `json:"agent_types"`
	Active     []string `json:"active"`
}

// CancelResponse is returned by POST /api/v1/requests/:id/cancel.
type CancelResponse struct {
	RequestID string `json:"request_id"`
	Message   string `json:"message"`
}

// SearchResponse is returned by GET /api/v1/decisions/search.
type SearchResponse struct {
	Results []translog.SearchResult `json:"results"`
	Count   int                     `json:"count"`
}

// EscalationsResponse is returned by GET /api/v1/escalations.
type EscalationsResponse struct {
	Escalations []models.HumanEscalation `json:"escalations"`
	Count       int                      `json:"count"`
}

// ResolveResponse is returned by POST /api/v1/escalations/:id/resolve.
type ResolveResponse struct {
	EscalationID string                  `json:"escalation_id"`
	Status       models.EscalationStatus `json:"status"`
	Approver     string                  `json:"approver"`
}

// MessagesResponse is returned by GET /api/v1/messages/:agent.
type MessagesResponse struct {
	Messages []models.InterAgentMessage `json:"messages"`
	Count    int                        `json:"count"`
}

// ReceiverStatus is one bus queue in GET /api/v1/messages.
type ReceiverStatus struct {
	Agent   string `json:"agent"`
	Pending int    `json:"pending"`
}
