// Package notifier defines the webhook delivery port (interface).
package notifier

import (
	"context"
	"errors"

	"github.com/slack-go/slack"
)

// ErrNotConfigured is returned when no webhook URL is configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Notifier is the port interface for delivering a message to a webhook.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "slack").
	Name() string

	// Send performs exactly one delivery attempt.
	Send(ctx context.Context, webhookURL string, msg slack.WebhookMessage) error
}
