// Package slack implements a notifier.Notifier for Slack-compatible incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/slack-go/slack"

	"github.com/Strob0t/ticketslack/internal/domain/notify"
	"github.com/Strob0t/ticketslack/internal/port/notifier"
	"github.com/Strob0t/ticketslack/internal/resilience"
)

const (
	providerName = "slack"

	// errorBodyLimit caps how much of a failed response is quoted in errors.
	errorBodyLimit = 1 << 10
)

// Notifier posts webhook messages. It never retries.
type Notifier struct {
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) { n.httpClient = c }
}

// WithBreaker guards deliveries with a circuit breaker. While the breaker is
// open deliveries fail immediately without touching the network.
func WithBreaker(b *resilience.Breaker) Option {
	return func(n *Notifier) { n.breaker = b }
}

// NewNotifier creates a Slack webhook notifier.
func NewNotifier(opts ...Option) *Notifier {
	n := &Notifier{httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Notifier) Name() string { return providerName }

// Send serializes msg and performs a single POST to webhookURL. Any
// outcome other than HTTP 200 is reported as *notify.DeliveryError.
func (n *Notifier) Send(ctx context.Context, webhookURL string, msg slack.WebhookMessage) error {
	if webhookURL == "" {
		return notifier.ErrNotConfigured
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack marshal: %w", err)
	}

	if n.breaker == nil {
		return n.post(ctx, webhookURL, body)
	}
	err = n.breaker.Execute(func() error { return n.post(ctx, webhookURL, body) })
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return &notify.DeliveryError{URL: webhookURL, Err: err}
	}
	return err
}

func (n *Notifier) post(ctx context.Context, webhookURL string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return &notify.DeliveryError{URL: webhookURL, Err: fmt.Errorf("slack request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = int64(len(body))

	resp, err := n.httpClient.Do(req) //nolint:gosec // webhook URL from trusted config
	if err != nil {
		return &notify.DeliveryError{URL: webhookURL, Err: fmt.Errorf("slack send: %w", err)}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return &notify.DeliveryError{
			URL:        webhookURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("slack API %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
		}
	}

	return nil
}
