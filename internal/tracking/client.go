package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrLookupFailed wraps any transport or upstream failure from the
// order-tracking webhook. Callers surface it as a user-visible retry
// message rather than retrying automatically.
var ErrLookupFailed = errors.New("order lookup failed")

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Client queries the external order-tracking webhook by lead id.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("tracking base url is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Lookup fetches the raw status for a lead/order id. An order the
// upstream does not know yet comes back as an empty status, which maps
// to the first stage.
func (c *Client) Lookup(ctx context.Context, leadID string) (string, error) {
	u := c.baseURL + "?lead_id=" + url.QueryEscape(strings.TrimSpace(leadID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	return payload.Status, nil
}
