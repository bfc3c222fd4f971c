package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/workpulse/internal/domain/stats"
	"github.com/okian/workpulse/internal/domain/types"
)

// HTTPClient talks to the coordinator API. It implements observer.Sender.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient creates a client for baseURL with a per-request timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// SendClick posts one clickDetected. Suppressions are answers, not errors.
func (c *HTTPClient) SendClick(ctx context.Context, req types.ClickDetected) (types.ClickResult, error) {
	var res types.ClickResult
	status, err := c.do(ctx, http.MethodPost, "/v1/clicks", req, &res)
	if err != nil {
		return types.ClickResult{}, err
	}
	switch status {
	case StatusAccepted, StatusOK, StatusTooManyRequests, StatusBadRequest:
		return res, nil
	default:
		return types.ClickResult{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}
}

// TrackingStatus gets the coordinator's tracking state.
func (c *HTTPClient) TrackingStatus(ctx context.Context) (types.TrackingStatus, error) {
	var st types.TrackingStatus
	if err := c.expectOK(ctx, http.MethodGet, "/v1/status", &st); err != nil {
		return types.TrackingStatus{}, err
	}
	return st, nil
}

// ForceStart turns tracking on regardless of the schedule.
func (c *HTTPClient) ForceStart(ctx context.Context) (types.TrackingStatus, error) {
	var st types.TrackingStatus
	if err := c.expectOK(ctx, http.MethodPost, "/v1/tracking/force-start", &st); err != nil {
		return types.TrackingStatus{}, err
	}
	return st, nil
}

// Summary gets today's derived figures.
func (c *HTTPClient) Summary(ctx context.Context) (stats.Summary, error) {
	var sum stats.Summary
	if err := c.expectOK(ctx, http.MethodGet, "/v1/stats/summary", &sum); err != nil {
		return stats.Summary{}, err
	}
	return sum, nil
}

// Health checks that the coordinator answers its metrics endpoint.
func (c *HTTPClient) Health(ctx context.Context) error {
	return c.expectOK(ctx, http.MethodGet, "/healthz", nil)
}

func (c *HTTPClient) expectOK(ctx context.Context, method, path string, out any) error {
	status, err := c.do(ctx, method, path, nil, out)
	if err != nil {
		return err
	}
	if status != StatusOK {
		return fmt.Errorf("%w: %s %s: %d", ErrUnexpectedStatus, method, path, status)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	if out != nil && len(data) > 0 && resp.StatusCode < 500 {
		if err := json.Unmarshal(data, out); err != nil && resp.StatusCode == StatusOK {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
