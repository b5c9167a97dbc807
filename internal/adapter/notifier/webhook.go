package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"
)

const defaultWebhookTimeout = 5 * time.Second

type webhookPayload struct {
	Event string      `json:"event"`
	Alert model.Alert `json:"alert"`
	Text  string      `json:"text"`
}

// WebhookNotifier POSTs triggered alerts as JSON to a fixed URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

var _ port.Notifier = (*WebhookNotifier)(nil)

func NewWebhookNotifier(url string, timeout time.Duration, logger *slog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, alert model.Alert) error {
	body, err := json.Marshal(webhookPayload{
		Event: "price_alert",
		Alert: alert,
		Text:  fmt.Sprintf("%s is %s %s", alert.Symbol, alert.Direction, alert.TargetPrice),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	n.logger.Debug("alert delivered to webhook", "alert_id", alert.ID, "status", resp.StatusCode)
	return nil
}
