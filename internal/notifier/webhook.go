package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

const (
	colorInfo   = 0x3498db
	colorProfit = 0x2ecc71
	colorLoss   = 0xe74c3c
)

// WebhookNotifier posts Discord-style embed payloads to a webhook URL.
// An empty URL disables it.
type WebhookNotifier struct {
	url    string
	client *http.Client
	clock  func() time.Time
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		clock:  time.Now,
	}
}

type webhookEmbed struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Color       int               `json:"color"`
	Footer      map[string]string `json:"footer"`
	Timestamp   string            `json:"timestamp"`
}

type webhookPayload struct {
	Embeds []webhookEmbed `json:"embeds"`
}

func (w *WebhookNotifier) SendMessage(ctx context.Context, tenantID string, text string) error {
	return w.post(ctx, "Worker notice", text, colorInfo, tenantID)
}

func (w *WebhookNotifier) SendTradeAlert(ctx context.Context, alert types.TradeAlert) error {
	color := colorInfo
	if alert.PnL.IsSome() {
		color = colorProfit
		if alert.PnL.Unwrap().IsNegative() {
			color = colorLoss
		}
	}

	return w.post(ctx, "Trade "+string(alert.Action), FormatTradeAlert(alert), color, alert.TenantID)
}

func (w *WebhookNotifier) post(ctx context.Context, title, description string, color int, tenantID string) error {
	if w.url == "" {
		return nil
	}

	data, err := json.Marshal(webhookPayload{
		Embeds: []webhookEmbed{{
			Title:       title,
			Description: description,
			Color:       color,
			Footer:      map[string]string{"text": "tenant " + tenantID},
			Timestamp:   w.clock().UTC().Format(time.RFC3339),
		}},
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeCallbackFailed, "failed to encode webhook payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(errors.ErrCodeCallbackFailed, "failed to build webhook request", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCallbackFailed, "webhook request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.Newf(errors.ErrCodeCallbackFailed, "webhook returned status: %d", resp.StatusCode)
	}

	return nil
}
