package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"
)

const DEFAULT_SLACK_TIMEOUT = 10 * time.Second

// NewSlackMessage renders ev as the webhook payload.
func NewSlackMessage(ev Event) *slack.WebhookMessage {
	return &slack.WebhookMessage{
		Text: fmt.Sprintf("[%s] chain %d, transaction %s: %s", ev.Level, ev.ChainID, ev.TransactionID, ev.Message),
	}
}

// SlackSink posts events at or above minLevel to an incoming webhook.
type SlackSink struct {
	webhookURL string
	client     *http.Client
	minLevel   Level
}

func NewSlackSink(webhookURL string, minLevel Level) *SlackSink {
	return &SlackSink{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: DEFAULT_SLACK_TIMEOUT},
		minLevel:   minLevel,
	}
}

func (s *SlackSink) Send(ctx context.Context, ev Event) error {
	if ev.Level < s.minLevel {
		return nil
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.client, NewSlackMessage(ev)); err != nil {
		return fmt.Errorf("failed to post slack notification: %w", err)
	}
	return nil
}
