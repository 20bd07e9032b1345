package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/metrics"
)

var (
	// ErrEmptyResponse indicates the endpoint returned no choices
	ErrEmptyResponse = errors.New("no response choices returned")

	// ErrNoJSON indicates no JSON object could be extracted from the reply
	ErrNoJSON = errors.New("no JSON object in response")
)

// Completer is the minimal surface pipeline nodes need from a
// chat-completion client. Callers treat every error as "LLM unavailable"
// and fall back to their deterministic path.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is one chat-completion call. System and User become the two
// conversation messages; MaxTokens of zero uses the configured default.
type Request struct {
	System    string
	User      string
	MaxTokens int

	// JSONOnly asks the endpoint for a JSON-object response. Endpoints
	// that ignore the hint still work; ExtractJSON handles fenced output.
	JSONOnly bool
}

// Client talks to any endpoint speaking the OpenAI chat-completions wire
// format (OpenAI, vLLM, Ollama, LiteLLM, ...).
type Client struct {
	cfg    *config.LLMConfig
	http   *http.Client
	logger *slog.Logger
}

// chatRequest is the chat-completions request payload.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the chat-completions response payload.
type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// NewClient creates a chat-completion client from configuration.
func NewClient(cfg *config.LLMConfig) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: slog.Default().With("component", "llm-client"),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Complete performs one chat completion and returns the assistant content.
func (c *Client) Complete(ctx context.Context, req Request) (content string, err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.LLMRequests.WithLabelValues(outcome).Inc()
	}()

	payload := chatRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	if req.MaxTokens > 0 {
		payload.MaxTokens = req.MaxTokens
	}
	if req.System != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: req.System})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: req.User})
	if req.JSONOnly {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("completion API error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion API returned status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("Completion finished",
		"model", c.cfg.Model,
		"prompt_tokens", parsed.Usage.PromptTokens,
		"completion_tokens", parsed.Usage.CompletionTokens,
		"finish_reason", parsed.Choices[0].FinishReason)

	return parsed.Choices[0].Message.Content, nil
}

// ExtractJSON pulls the first JSON object out of a completion reply,
// tolerating markdown fences and prose around it.
func ExtractJSON(content string) (string, error) {
	trimmed := strings.TrimSpace(content)

	// Strip markdown code fences (```json ... ``` or ``` ... ```)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return trimmed[start : end+1], nil
}

// CompleteJSON performs a completion and unmarshals the JSON object in the
// reply into target. Any failure means the caller should use its fallback.
func CompleteJSON(ctx context.Context, c Completer, req Request, target any) error {
	req.JSONOnly = true
	content, err := c.Complete(ctx, req)
	if err != nil {
		return err
	}

	raw, err := ExtractJSON(content)
	if err != nil {
		return fmt.Errorf("%w: %.120s", err, content)
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}
