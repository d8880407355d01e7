package hunt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CompletionNotifier reports that a participant found all the logos.
// Best effort: the machine fires it once, never retries, and only logs
// a failure.
type CompletionNotifier interface {
	NotifyCompletion(ctx context.Context, deviceID, email string) error
}

// WebhookNotifier posts the completion event to a fixed external URL.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	now        func() time.Time
}

var _ CompletionNotifier = (*WebhookNotifier)(nil)

func NewWebhookNotifier(url string) (*WebhookNotifier, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("webhook url is required")
	}
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (n *WebhookNotifier) NotifyCompletion(ctx context.Context, deviceID, email string) error {
	payload := map[string]any{
		"device_id":             deviceID,
		"email":                 email,
		"competition_completed": true,
		"timestamp":             n.now().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("completion webhook: status %d", resp.StatusCode)
	}
	return nil
}
