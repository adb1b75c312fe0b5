// Package marketing pushes contact snapshots to an outbound marketing
// webhook. The sync is best effort: callers log and drop its errors.
package marketing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/legacy-quest/progression-engine/pkg/circuitbreaker"
	"github.com/legacy-quest/progression-engine/pkg/logger"
	"github.com/legacy-quest/progression-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig configures the webhook client.
type ClientConfig struct {
	// WebhookURL receives one POST per contact. Empty disables the client.
	WebhookURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// IncludeEmail adds the raw email to the payload. Off by default so only
	// the identity fingerprint leaves the service.
	IncludeEmail bool

	Timeout time.Duration

	Retrier *retry.Retrier
	Breaker *circuitbreaker.CircuitBreaker
	Logger  *logger.Logger
}

// DefaultClientConfig returns sensible defaults for webhookURL.
func DefaultClientConfig(webhookURL string) ClientConfig {
	return ClientConfig{
		WebhookURL: webhookURL,
		Timeout:    5 * time.Second,
	}
}

// ErrDisabled is returned when no webhook URL is configured.
var ErrDisabled = errors.New("marketing webhook is not configured")

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Contact is the snapshot pushed on signup.
type Contact struct {
	ContactID   string    `json:"contact_id"`
	Email       string    `json:"email,omitempty"`
	Source      string    `json:"source"`
	Streak      int       `json:"current_streak"`
	TotalXP     int64     `json:"total_xp"`
	Level       int64     `json:"player_level"`
	Existing    bool      `json:"existing"`
	SubscribeAt time.Time `json:"subscribed_at"`
}

// Client posts contacts to the webhook.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	log        *logger.Logger
}

// NewClient creates a new webhook client.
func NewClient(config ClientConfig) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Retrier == nil {
		config.Retrier = retry.WebhookRetrier()
	}
	if config.Breaker == nil {
		config.Breaker = circuitbreaker.WebhookBreaker(nil)
	}
	if config.Logger == nil {
		config.Logger = logger.Discard()
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		retrier:    config.Retrier,
		breaker:    config.Breaker,
		log:        config.Logger.With(logger.Component("marketing")),
	}
}

// Enabled reports whether a webhook URL is configured.
func (c *Client) Enabled() bool {
	return c.config.WebhookURL != ""
}

// UpsertContact sends the contact through the circuit breaker, retrying
// transient failures.
func (c *Client) UpsertContact(ctx context.Context, contact Contact) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	if !c.config.IncludeEmail {
		contact.Email = ""
	}
	body, err := json.Marshal(contact)
	if err != nil {
		return fmt.Errorf("marshal contact: %w", err)
	}

	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.post(ctx, body)
		})
	})
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Retryable(fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("webhook responded %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		c.log.Debug("webhook transient failure", logger.Int("status", resp.StatusCode))
		return retry.Retryable(err)
	default:
		return retry.Permanent(err)
	}
}
