package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/huanews/newsingest/internal/ingest"
)

// Webhook posts a JSON payload of new articles to a configured endpoint.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook constructs a webhook notifier for the given endpoint URL.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type webhookPayload struct {
	Articles []ingest.NewArticle `json:"articles"`
}

// Notify implements ingest.Notifier.
func (w *Webhook) Notify(ctx context.Context, articles []ingest.NewArticle) error {
	if w.url == "" {
		return fmt.Errorf("webhook notifier misconfigured: empty url")
	}
	if len(articles) == 0 {
		return nil
	}
	body, err := json.Marshal(webhookPayload{Articles: articles})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook error: %s", resp.Status)
	}
	return nil
}
