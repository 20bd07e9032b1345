package human

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	goslack "github.com/slack-go/slack"

	"github.com/polis-ai/polis/pkg/models"
)

const (
	maxBlockTextLength = 2900
	slackPostTimeout   = 10 * time.Second
)

var urgencyEmoji = map[models.Severity]string{
	models.SeverityLow:      ":large_blue_circle:",
	models.SeverityMedium:   ":warning:",
	models.SeverityHigh:     ":red_circle:",
	models.SeverityCritical: ":rotating_light:",
}

// SlackClient is a thin wrapper around the slack-go SDK.
type SlackClient struct {
	api       *goslack.Client
	channelID string
}

// NewSlackClient creates a Slack API client for the given channel.
func NewSlackClient(token, channelID string) *SlackClient {
	return &SlackClient{
		api:       goslack.New(token),
		channelID: channelID,
	}
}

// NewSlackClientWithAPIURL creates a Slack API client that targets a custom
// API URL. Useful for testing with a mock server.
func NewSlackClientWithAPIURL(token, channelID, apiURL string) *SlackClient {
	return &SlackClient{
		api:       goslack.New(token, goslack.OptionAPIURL(apiURL)),
		channelID: channelID,
	}
}

// PostMessage sends Block Kit blocks to the configured channel.
func (c *SlackClient) PostMessage(ctx context.Context, blocks []goslack.Block, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, _, err := c.api.PostMessageContext(ctx, c.channelID, goslack.MsgOptionBlocks(blocks...))
	if err != nil {
		return fmt.Errorf("chat.postMessage failed: %w", err)
	}
	return nil
}

// SlackSink posts escalations to a Slack channel. Fail-open: posting errors
// are logged, never returned, so an unreachable workspace cannot block an
// approval. A nil sink is a no-op, which keeps the wiring simple when Slack
// is not configured.
type SlackSink struct {
	client *SlackClient
	logger *slog.Logger
}

// NewSlackSink creates the sink. Returns nil if token or channel is empty.
func NewSlackSink(token, channel string) *SlackSink {
	if token == "" || channel == "" {
		return nil
	}
	return NewSlackSinkWithClient(NewSlackClient(token, channel))
}

// NewSlackSinkWithClient creates the sink around an existing client.
func NewSlackSinkWithClient(client *SlackClient) *SlackSink {
	return &SlackSink{
		client: client,
		logger: slog.Default().With("component", "slack-sink"),
	}
}

// Notify posts the escalation to the channel.
func (s *SlackSink) Notify(ctx context.Context, escalation *models.HumanEscalation) error {
	if s == nil {
		return nil
	}
	blocks := BuildEscalationMessage(escalation)
	if err := s.client.PostMessage(ctx, blocks, slackPostTimeout); err != nil {
		s.logger.Error("Failed to post escalation to Slack",
			"escalation_id", escalation.EscalationID, "error", err)
		return nil
	}
	s.logger.Info("Posted escalation to Slack", "escalation_id", escalation.EscalationID)
	return nil
}

// BuildEscalationMessage creates Block Kit blocks for an escalation
// notification.
func BuildEscalationMessage(escalation *models.HumanEscalation) []goslack.Block {
	emoji := urgencyEmoji[escalation.Urgency]
	if emoji == "" {
		emoji = ":question:"
	}

	header := fmt.Sprintf("%s *Human approval required* (urgency: %s)", emoji, escalation.Urgency)
	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, header, false, false),
			nil, nil,
		),
	}

	body := fmt.Sprintf("*Reason:*\n%s", escalation.Reason)
	if escalation.LLMAnalysis != "" {
		body += fmt.Sprintf("\n\n*Analysis:*\n%s", escalation.LLMAnalysis)
	}
	blocks = append(blocks, goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType, truncateForSlack(body), false, false),
		nil, nil,
	))

	if len(escalation.Options) > 0 {
		var lines []string
		for i, opt := range escalation.Options {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, opt.Label))
		}
		optionsText := "*Options:*\n" + strings.Join(lines, "\n")
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, truncateForSlack(optionsText), false, false),
			nil, nil,
		))
	}

	footer := fmt.Sprintf("Escalation %s | raised %s",
		escalation.EscalationID,
		escalation.CreatedAt.UTC().Format(time.RFC3339))
	blocks = append(blocks, goslack.NewContextBlock("",
		goslack.NewTextBlockObject(goslack.MarkdownType, footer, false, false),
	))
	return blocks
}

func truncateForSlack(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	cut := maxBlockTextLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "\n\n_... (truncated)_"
}
