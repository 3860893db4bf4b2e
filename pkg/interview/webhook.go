package interview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Webhook notifies the feedback service by POSTing
// {"session_id": "..."} to a URL.
type Webhook struct {
	url    string
	apiKey string
	client *http.Client
}

// NewWebhook returns a Webhook posting to url. apiKey, when set, is sent as
// a bearer token.
func NewWebhook(url, apiKey string, client *http.Client) *Webhook {
	if client == nil {
		client = http.DefaultClient
	}
	return &Webhook{url: url, apiKey: apiKey, client: client}
}

// NotifyCompleted implements Notifier.
func (w *Webhook) NotifyCompleted(ctx context.Context, sessionID string) error {
	body, err := json.Marshal(map[string]string{"session_id": sessionID})
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("interview: feedback webhook: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

var _ Notifier = (*Webhook)(nil)
