// Package notify posts run outcomes to a configured HTTP endpoint.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultTimeout = 10 * time.Second

// Event is the body posted to the webhook.
type Event struct {
	Status   string      `json:"status"`
	Project  string      `json:"project,omitempty"`
	Error    string      `json:"error,omitempty"`
	Report   interface{} `json:"report,omitempty"`
	SentAt   time.Time   `json:"sent_at"`
	Provider string      `json:"provider,omitempty"`
}

type Webhook struct {
	url        string
	headers    map[string]string
	httpClient *http.Client
}

// NewWebhook returns nil when url is empty; a nil *Webhook sends nothing.
func NewWebhook(url string, timeout time.Duration, headers map[string]string) *Webhook {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Webhook{
		url:        url,
		headers:    headers,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send posts ev as JSON. Callers treat the error as a warning only.
func (w *Webhook) Send(ctx context.Context, ev Event) error {
	if w == nil {
		return nil
	}
	if ev.SentAt.IsZero() {
		ev.SentAt = time.Now().UTC()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notification failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notification rejected with status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
