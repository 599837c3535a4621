package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// WhatsAppHandler schedules messages through a browser-automation bridge.
// WhatsApp has no sanctioned send API here, so delivery goes through an
// external bridge process driving WhatsApp Web; sends are scheduled one
// minute in the future and are best-effort. Send reports success once the
// message is scheduled, not once it is delivered. This is a known
// latency/reliability caveat of the channel, not a bug.
type WhatsAppHandler struct {
	bridgeURL  string
	delay      time.Duration
	clock      clockwork.Clock
	httpClient *http.Client

	mu      sync.Mutex
	closed  chan struct{}
	pending sync.WaitGroup
}

func NewWhatsAppHandler(bridgeURL string, delay time.Duration, timeout time.Duration, clock clockwork.Clock) *WhatsAppHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &WhatsAppHandler{
		bridgeURL: bridgeURL,
		delay:     delay,
		clock:     clock,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		closed: make(chan struct{}),
	}
}

func (h *WhatsAppHandler) Name() string { return "whatsapp" }

func (h *WhatsAppHandler) Enabled() bool { return h.bridgeURL != "" }

func (h *WhatsAppHandler) Send(ctx context.Context, destination string, msg Message) error {
	if !h.Enabled() {
		return ErrDisabled
	}

	phone, err := NormalizeE164(destination)
	if err != nil {
		return err
	}

	h.mu.Lock()
	select {
	case <-h.closed:
		h.mu.Unlock()
		return fmt.Errorf("whatsapp handler closed")
	default:
	}
	h.pending.Add(1)
	h.mu.Unlock()

	go h.deliverLater(phone, msg)
	return nil
}

func (h *WhatsAppHandler) deliverLater(phone string, msg Message) {
	defer h.pending.Done()

	select {
	case <-h.closed:
		return
	case <-h.clock.After(h.delay):
	}

	payload, err := json.Marshal(map[string]string{
		"phone":   phone,
		"message": msg.Subject + "\n\n" + msg.Body,
	})
	if err != nil {
		slog.Error("whatsapp payload marshal failed", "phone", phone, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.bridgeURL, bytes.NewReader(payload))
	if err != nil {
		slog.Error("whatsapp bridge request creation failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		slog.Warn("whatsapp bridge send failed", "phone", phone, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("whatsapp bridge rejected message", "phone", phone, "status", resp.StatusCode)
		return
	}

	slog.Debug("whatsapp message handed to bridge", "phone", phone)
}

// Close cancels scheduled sends and waits for in-flight goroutines.
func (h *WhatsAppHandler) Close() {
	h.mu.Lock()
	select {
	case <-h.closed:
	default:
		close(h.closed)
	}
	h.mu.Unlock()
	h.pending.Wait()
}

// NormalizeE164 formats a phone number for WhatsApp: separators stripped and
// a leading + added when missing.
func NormalizeE164(phone string) (string, error) {
	cleaned := strings.NewReplacer("-", "", " ", "", "(", "", ")", "").Replace(phone)
	if cleaned == "" {
		return "", fmt.Errorf("empty phone number")
	}
	if !strings.HasPrefix(cleaned, "+") {
		cleaned = "+" + cleaned
	}
	for _, r := range cleaned[1:] {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("invalid phone number %q", phone)
		}
	}
	return cleaned, nil
}
