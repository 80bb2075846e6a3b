package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"essence-engine/utils"
)

// WebhookDispatcher posts notifications to the client-facing push service.
type WebhookDispatcher struct {
	URL          string
	ServiceToken string
	Client       *http.Client
}

func NewWebhookDispatcher(url, serviceToken string) *WebhookDispatcher {
	return &WebhookDispatcher{URL: url, ServiceToken: serviceToken, Client: utils.HTTPClient}
}

func (d *WebhookDispatcher) Send(ctx context.Context, userID string, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", d.URL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", d.ServiceToken)
	req.Header.Set("X-User-ID", userID)

	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("notification webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notification webhook returned %d: %s", resp.StatusCode, msg)
	}
	return nil
}
