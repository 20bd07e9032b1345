package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// ────────────────────────────────────────────────────────────
// HTTP Client Helpers
// ────────────────────────────────────────────────────────────

func (app *TestApp) postJSON(t *testing.T, path string, body interface{}, expectedStatus int) map[string]interface{} {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, app.BaseURL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, expectedStatus, resp.StatusCode, "POST %s: unexpected status", path)
	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func (app *TestApp) getJSON(t *testing.T, path string, expectedStatus int) map[string]interface{} {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, app.BaseURL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, expectedStatus, resp.StatusCode, "GET %s: unexpected status", path)
	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func (app *TestApp) deleteNoContent(t *testing.T, path string) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, app.BaseURL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusNoContent, resp.StatusCode, "DELETE %s: unexpected status", path)
}

// getRaw fetches a path and returns status code and body. Used for endpoints
// that do not answer JSON, such as /metrics.
func (app *TestApp) getRaw(t *testing.T, path string) (int, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, app.BaseURL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf.String()
}

// ────────────────────────────────────────────────────────────
// Request API Helpers
// ────────────────────────────────────────────────────────────

// SubmitRequest posts a request for synchronous processing and returns the
// parsed dispatch result.
func (app *TestApp) SubmitRequest(t *testing.T, agentType string, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	return app.postJSON(t, "/api/v1/agents/"+agentType+"/requests", body, http.StatusOK)
}

// SubmitRequestAsync posts a request in async mode and returns the queue
// ticket.
func (app *TestApp) SubmitRequestAsync(t *testing.T, agentType string, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	return app.postJSON(t, "/api/v1/agents/"+agentType+"/requests?mode=async", body, http.StatusAccepted)
}

// GetRequest retrieves a queued request record by ID.
func (app *TestApp) GetRequest(t *testing.T, requestID string) map[string]interface{} {
	t.Helper()
	return app.getJSON(t, "/api/v1/requests/"+requestID, http.StatusOK)
}

// GetAgents calls GET /api/v1/agents.
func (app *TestApp) GetAgents(t *testing.T) map[string]interface{} {
	t.Helper()
	return app.getJSON(t, "/api/v1/agents", http.StatusOK)
}

// GetHealth calls GET /health.
func (app *TestApp) GetHealth(t *testing.T) map[string]interface{} {
	t.Helper()
	return app.getJSON(t, "/health", http.StatusOK)
}

// ────────────────────────────────────────────────────────────
// Coordination API Helpers
// ────────────────────────────────────────────────────────────

// Coordinate posts a batch of agent decisions and returns the coordination
// result. Blocks until the workflow finishes, including any human gate.
func (app *TestApp) Coordinate(t *testing.T, decisions []map[string]interface{}) map[string]interface{} {
	t.Helper()
	return app.postJSON(t, "/api/v1/coordination", map[string]interface{}{"decisions": decisions}, http.StatusOK)
}

// CheckPlan posts a mid-pipeline plan query and returns the checkpoint
// verdict.
func (app *TestApp) CheckPlan(t *testing.T, query map[string]interface{}) map[string]interface{} {
	t.Helper()
	return app.postJSON(t, "/api/v1/coordination/check", query, http.StatusOK)
}

// ReleasePlan drops an agent's registered intention from the plan board.
func (app *TestApp) ReleasePlan(t *testing.T, agentID string) {
	t.Helper()
	app.deleteNoContent(t, "/api/v1/coordination/plans/"+agentID)
}

// GetEscalations lists the escalations awaiting a REST approver.
func (app *TestApp) GetEscalations(t *testing.T) map[string]interface{} {
	t.Helper()
	return app.getJSON(t, "/api/v1/escalations", http.StatusOK)
}

// ResolveEscalation answers a parked escalation.
func (app *TestApp) ResolveEscalation(t *testing.T, escalationID, status, approver string) map[string]interface{} {
	t.Helper()
	body := map[string]interface{}{"status": status, "approver": approver}
	return app.postJSON(t, "/api/v1/escalations/"+escalationID+"/resolve", body, http.StatusOK)
}

// ────────────────────────────────────────────────────────────
// Message Bus API Helpers
// ────────────────────────────────────────────────────────────

// PublishMessage posts an inter-agent message and returns its assigned ID.
func (app *TestApp) PublishMessage(t *testing.T, msg map[string]interface{}) string {
	t.Helper()
	result := app.postJSON(t, "/api/v1/messages", msg, http.StatusCreated)
	id, ok := result["message_id"].(string)
	require.True(t, ok, "publish response missing message_id: %v", result)
	return id
}

// GetReceivers calls GET /api/v1/messages.
func (app *TestApp) GetReceivers(t *testing.T) map[string]interface{} {
	t.Helper()
	return app.getJSON(t, "/api/v1/messages", http.StatusOK)
}

// PeekMessages reads an agent's queue without consuming. Status filters to
// pending or acknowledged when non-empty.
func (app *TestApp) PeekMessages(t *testing.T, agent, status string) map[string]interface{} {
	t.Helper()
	path := "/api/v1/messages/" + agent
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	return app.getJSON(t, path, http.StatusOK)
}

// AckMessage acknowledges a message, optionally attaching a response.
func (app *TestApp) AckMessage(t *testing.T, messageID, response string) map[string]interface{} {
	t.Helper()
	var body interface{}
	if response != "" {
		body = map[string]interface{}{"response": response}
	}
	return app.postJSON(t, "/api/v1/messages/"+messageID+"/ack", body, http.StatusOK)
}

// ────────────────────────────────────────────────────────────
// Transparency API Helpers
// ────────────────────────────────────────────────────────────

// SearchDecisions queries the decision log over the API.
func (app *TestApp) SearchDecisions(t *testing.T, query string, nResults int) map[string]interface{} {
	t.Helper()
	path := "/api/v1/decisions/search"
	params := url.Values{}
	if query != "" {
		params.Set("q", query)
	}
	if nResults > 0 {
		params.Set("n_results", fmt.Sprintf("%d", nResults))
	}
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}
	return app.getJSON(t, path, http.StatusOK)
}

// GetDecisionReport fetches aggregate decision statistics for a period.
func (app *TestApp) GetDecisionReport(t *testing.T, agent, period string) map[string]interface{} {
	t.Helper()
	path := "/api/v1/decisions/report"
	params := url.Values{}
	if agent != "" {
		params.Set("agent", agent)
	}
	if period != "" {
		params.Set("period", period)
	}
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}
	return app.getJSON(t, path, http.StatusOK)
}

// ────────────────────────────────────────────────────────────
// Polling Helpers
// ────────────────────────────────────────────────────────────

// tryGetJSON fetches a path without failing the test. Polling callers treat
// any error as "not yet" and retry.
func (app *TestApp) tryGetJSON(path string) (map[string]interface{}, error) {
	resp, err := http.Get(app.BaseURL + path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return result, nil
}

// tryPostJSON posts without failing the test. Callers running off the test
// goroutine (such as a coordination run blocked on the human gate) check the
// error themselves once back on it.
func (app *TestApp) tryPostJSON(path string, body interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(app.BaseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("POST %s: status %d", path, resp.StatusCode)
	}
	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return result, nil
}

// WaitForRequestStatus polls the queue API until the request reaches one of
// the expected statuses. Returns the status it landed on.
func (app *TestApp) WaitForRequestStatus(t *testing.T, requestID string, expected ...string) string {
	t.Helper()
	var actual string
	require.Eventually(t, func() bool {
		record, err := app.tryGetJSON("/api/v1/requests/" + requestID)
		if err != nil {
			return false
		}
		actual, _ = record["status"].(string)
		for _, exp := range expected {
			if actual == exp {
				return true
			}
		}
		return false
	}, 30*time.Second, 100*time.Millisecond,
		"request %s did not reach status %v (last: %s)", requestID, expected, actual)
	return actual
}

// WaitForEscalation polls the escalation list until one is parked, then
// returns it.
func (app *TestApp) WaitForEscalation(t *testing.T) map[string]interface{} {
	t.Helper()
	var escalation map[string]interface{}
	require.Eventually(t, func() bool {
		list, err := app.tryGetJSON("/api/v1/escalations")
		if err != nil {
			return false
		}
		escalations, _ := list["escalations"].([]interface{})
		if len(escalations) == 0 {
			return false
		}
		escalation, _ = escalations[0].(map[string]interface{})
		return escalation != nil
	}, 30*time.Second, 100*time.Millisecond,
		"no escalation reached the approval desk")
	return escalation
}
