package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lalith-99/teamchat/internal/repository"
)

// InternalWebhookURL marks a subscription as inbound-only. Hooks
// registered with this URL can post into the channel but never receive
// outbound deliveries.
const InternalWebhookURL = "internal"

const secretHeader = "X-Webhook-Secret"

// outboundEvent is the JSON body POSTed to subscriber endpoints.
type outboundEvent struct {
	Event string      `json:"event"`
	Data  MessageView `json:"data"`
}

// Dispatcher delivers new messages to a channel's webhook
// subscriptions. Delivery is best-effort: a failing endpoint is logged
// and skipped, never retried, and never affects the other endpoints.
type Dispatcher struct {
	webhooks repository.WebhookRepository
	client   *http.Client
	logger   *zap.Logger
}

func NewDispatcher(webhooks repository.WebhookRepository, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		webhooks: webhooks,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// Dispatch POSTs the message to every outbound subscription of the
// channel. Each request carries the subscription's own secret so the
// receiver can authenticate the origin.
func (d *Dispatcher) Dispatch(ctx context.Context, channelID int64, view MessageView) {
	hooks, err := d.webhooks.ListByChannel(ctx, channelID)
	if err != nil {
		d.logger.Warn("list webhooks for dispatch",
			zap.Int64("channel_id", channelID),
			zap.Error(err),
		)
		return
	}

	body, err := json.Marshal(outboundEvent{Event: "message.new", Data: view})
	if err != nil {
		d.logger.Error("marshal outbound event", zap.Error(err))
		return
	}

	for _, hook := range hooks {
		if hook.URL == InternalWebhookURL {
			continue
		}
		if err := d.deliver(ctx, hook.URL, hook.SecretToken, body); err != nil {
			d.logger.Warn("webhook delivery failed",
				zap.Int64("channel_id", channelID),
				zap.Int64("webhook_id", hook.ID),
				zap.Error(err),
			)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, url, secret string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(secretHeader, secret)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %s", resp.Status)
	}
	return nil
}
