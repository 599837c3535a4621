package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const smsMaxLen = 160

// SMSHandler sends text messages through the Twilio REST API. The channel is
// disabled when account credentials are missing.
type SMSHandler struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
}

func NewSMSHandler(accountSID, authToken, fromNumber, baseURL string, timeout time.Duration) *SMSHandler {
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	return &SMSHandler{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (h *SMSHandler) Name() string { return "sms" }

func (h *SMSHandler) Enabled() bool {
	return h.accountSID != "" && h.authToken != "" && h.fromNumber != ""
}

func (h *SMSHandler) Send(ctx context.Context, destination string, msg Message) error {
	if !h.Enabled() {
		return ErrDisabled
	}

	body := truncateSMS(msg.Body)

	form := url.Values{
		"To":   {destination},
		"From": {h.fromNumber},
		"Body": {body},
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", h.baseURL, h.accountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(h.accountSID, h.authToken)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		var twilioErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(detail, &twilioErr) == nil && twilioErr.Message != "" {
			return fmt.Errorf("twilio error: status %d: %s", resp.StatusCode, twilioErr.Message)
		}
		return fmt.Errorf("twilio error: status %d", resp.StatusCode)
	}

	return nil
}

// truncateSMS caps the body at smsMaxLen characters. The limit counts
// runes, not bytes, so multi-byte text is never cut mid-character.
func truncateSMS(body string) string {
	if utf8.RuneCountInString(body) <= smsMaxLen {
		return body
	}
	end, n := 0, 0
	for end < len(body) && n < smsMaxLen {
		_, size := utf8.DecodeRuneInString(body[end:])
		end += size
		n++
	}
	return body[:end] + "..."
}
