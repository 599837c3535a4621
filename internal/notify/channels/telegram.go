package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TelegramHandler delivers messages to a chat id via the Telegram bot API.
// The body is sent with Markdown parse mode, matching the bot API's
// lightweight markup. Disabled when no bot token is configured.
type TelegramHandler struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

func NewTelegramHandler(token, baseURL string, timeout time.Duration) *TelegramHandler {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &TelegramHandler{
		token:   token,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (h *TelegramHandler) Name() string { return "telegram" }

func (h *TelegramHandler) Enabled() bool { return h.token != "" }

func (h *TelegramHandler) Send(ctx context.Context, destination string, msg Message) error {
	if !h.Enabled() {
		return ErrDisabled
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id":    destination,
		"text":       msg.Body,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", h.baseURL, h.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram error: status %d: %s", resp.StatusCode, detail)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("telegram rejected message: %s", result.Description)
	}

	return nil
}
