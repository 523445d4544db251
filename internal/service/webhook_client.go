package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookPayload body posted to the event's webhook after a committed check-in
type WebhookPayload struct {
	Actor        string    `json:"actor"`
	EventID      string    `json:"event_id"`
	EventName    string    `json:"event_name"`
	Organization string    `json:"organization"`
	BatchID      string    `json:"batch_id"`
	TeamNumbers  []string  `json:"team_numbers"` // checked-in team numbers of the organization
	SentAt       time.Time `json:"sent_at"`
}

// WebhookClient posts check-in summaries to event-configured URLs
type WebhookClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewWebhookClient 创建 webhook 客户端
func NewWebhookClient(timeout time.Duration, logger *zap.Logger) *WebhookClient {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "checkin-desk")

	return &WebhookClient{httpClient: client, logger: logger}
}

// Send posts payload to url; non-2xx responses are errors
func (c *WebhookClient) Send(ctx context.Context, url string, payload WebhookPayload) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post(url)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}

	c.logger.Debug("webhook delivered",
		zap.String("event_id", payload.EventID),
		zap.String("batch_id", payload.BatchID),
		zap.Int("status_code", resp.StatusCode()),
	)
	return nil
}
