package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mr1hm/go-alert-notify/internal/models"
)

// webhookEnvelope is the wire format POSTed to subscriber URLs.
type webhookEnvelope struct {
	Alert      *models.Alert `json:"alert"`
	Timestamp  float64       `json:"timestamp"`
	Subscriber string        `json:"subscriber"`
}

// WebhookHandler POSTs a JSON envelope to the subscription's URL. Success is
// HTTP 200 exactly; anything else is a delivery failure. Always enabled.
type WebhookHandler struct {
	httpClient *http.Client
	now        func() time.Time
}

func NewWebhookHandler(timeout time.Duration) *WebhookHandler {
	return &WebhookHandler{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

func (h *WebhookHandler) Name() string { return "webhook" }

func (h *WebhookHandler) Enabled() bool { return true }

func (h *WebhookHandler) Send(ctx context.Context, destination string, msg Message) error {
	payload, err := json.Marshal(webhookEnvelope{
		Alert:      msg.Alert,
		Timestamp:  float64(h.now().UnixNano()) / 1e9,
		Subscriber: msg.SubscriberID,
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
