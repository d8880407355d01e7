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

	"github.com/recklessbear/rbsite/internal/models"
	"github.com/recklessbear/rbsite/internal/services"
)

// CheckResult mirrors the check-user response.
type CheckResult struct {
	Exists     bool               `json:"exists"`
	RecordID   string             `json:"recordId"`
	Status     models.EntryStatus `json:"status"`
	LogosFound int                `json:"logosFound"`
}

// Registration is the form payload sent to register-user.
type Registration struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	DeviceID string `json:"deviceId"`
}

// Progress is the authoritative state returned by update-progress.
type Progress struct {
	LogosFound int                `json:"logosFound"`
	Status     models.EntryStatus `json:"status"`
}

// Service is the record-store surface the state machine consumes: the
// three operations from the registration/progress API.
type Service interface {
	CheckUser(ctx context.Context, email string) (*CheckResult, error)
	RegisterUser(ctx context.Context, reg Registration) (recordID string, err error)
	// UpdateProgress credits one find. expected is the client's
	// optimistic count; the server ignores it apart from log
	// correlation and returns the authoritative value.
	UpdateProgress(ctx context.Context, recordID string, expected int) (*Progress, error)
}

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPService talks to the record-store API over HTTP JSON.
type HTTPService struct {
	baseURL    string
	httpClient *http.Client
}

var _ Service = (*HTTPService)(nil)

func NewHTTPService(cfg ClientConfig) (*HTTPService, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("service base url is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPService) post(ctx context.Context, path string, in, out any) (int, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, services.NewBadGatewayError(fmt.Sprintf("%s: %v", path, err))
	}
	defer resp.Body.Close()
	if out != nil && (resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusConflict) {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, services.NewBadGatewayError(fmt.Sprintf("%s: %v", path, err))
		}
	}
	return resp.StatusCode, nil
}

func (c *HTTPService) CheckUser(ctx context.Context, email string) (*CheckResult, error) {
	var res CheckResult
	status, err := c.post(ctx, "/api/check-user", map[string]string{"email": email}, &res)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, services.NewBadGatewayError(fmt.Sprintf("check-user: status %d", status))
	}
	return &res, nil
}

func (c *HTTPService) RegisterUser(ctx context.Context, reg Registration) (string, error) {
	var res struct {
		Success  bool   `json:"success"`
		RecordID string `json:"recordId"`
	}
	status, err := c.post(ctx, "/api/register-user", reg, &res)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || !res.Success {
		return "", services.NewBadGatewayError(fmt.Sprintf("register-user: status %d", status))
	}
	return res.RecordID, nil
}

func (c *HTTPService) UpdateProgress(ctx context.Context, recordID string, expected int) (*Progress, error) {
	var res Progress
	status, err := c.post(ctx, "/api/update-progress",
		map[string]any{"recordId": recordID, "logosFound": expected}, &res)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return &res, nil
	case http.StatusConflict:
		// Entry already complete; the payload still carries the
		// authoritative values.
		return &res, services.NewAlreadyCompleteError("all logos already found")
	default:
		return nil, services.NewBadGatewayError(fmt.Sprintf("update-progress: status %d", status))
	}
}
