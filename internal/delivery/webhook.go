package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"omnichannel-support/internal/event"
)

const defaultTimeout = 15 * time.Second

// WebhookDispatcher posts replies to an outbound provider gateway as JSON.
// The gateway answers {"status": "...", "channel_message_id": "..."}.
type WebhookDispatcher struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
}

// NewWebhookDispatcher returns a dispatcher for the gateway at url.
func NewWebhookDispatcher(url, apiKey string) *WebhookDispatcher {
	return &WebhookDispatcher{
		URL:        url,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

type webhookRequest struct {
	Channel   event.Channel `json:"channel"`
	Recipient string        `json:"recipient"`
	Text      string        `json:"text"`
}

type webhookResponse struct {
	Status           Status `json:"status"`
	ChannelMessageID string `json:"channel_message_id"`
	Error            string `json:"error"`
}

// Send posts the reply. Transport errors, non-2xx answers and unknown statuses are failures.
func (w *WebhookDispatcher) Send(ctx context.Context, channel event.Channel, recipient, text string) Result {
	if w.URL == "" {
		return Failed(fmt.Errorf("delivery: webhook URL not configured"))
	}
	raw, err := json.Marshal(webhookRequest{Channel: channel, Recipient: recipient, Text: text})
	if err != nil {
		return Failed(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(raw))
	if err != nil {
		return Failed(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.APIKey)
	}
	resp, err := w.HTTPClient.Do(req)
	if err != nil {
		return Failed(fmt.Errorf("delivery: %w", err))
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Failed(fmt.Errorf("delivery: request failed status=%d body=%s", resp.StatusCode, string(body)))
	}
	var out webhookResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return Failed(fmt.Errorf("delivery: decode response: %w", err))
		}
	}
	if out.Status == "" {
		out.Status = StatusSent
	}
	if !out.Status.Valid() {
		return Failed(fmt.Errorf("delivery: unknown status %q", out.Status))
	}
	if out.Status == StatusFailed {
		msg := out.Error
		if msg == "" {
			msg = "provider reported failure"
		}
		return Result{Status: StatusFailed, ChannelMessageID: out.ChannelMessageID, Err: fmt.Errorf("delivery: %s", msg)}
	}
	return Result{Status: out.Status, ChannelMessageID: out.ChannelMessageID}
}
