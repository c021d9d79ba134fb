// Package sla implements the optional external SLA enforcement client
// (spec.md §6), satisfying registry.SLAClient. Grounded in the teacher's
// pkg/runbook/github.go: a thin net/http.Client wrapper with a fixed
// timeout, request building, and status-code checking.
package sla

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Client calls PUT {endpoint}/enforcements/{id}/start against the external
// SLA API.
type Client struct {
	httpClient *http.Client
	endpoint   string
	username   string
	password   string
	logger     *slog.Logger
}

// New constructs a Client. endpoint has no trailing slash.
func New(endpoint, username, password string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   endpoint,
		username:   username,
		password:   password,
		logger:     slog.With("component", "sla"),
	}
}

// StartEnforcement requests enforcement for agreementID. Failures are
// non-fatal to the caller (spec.md §4.B: "failure is logged, non-fatal") —
// the error is still returned so the registry can log it with its own
// context, but callers must never treat it as fatal to heat processing.
func (c *Client) StartEnforcement(ctx context.Context, agreementID string) error {
	url := fmt.Sprintf("%s/enforcements/%s/start", c.endpoint, agreementID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, nil)
	if err != nil {
		return fmt.Errorf("sla: building request: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sla: calling %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("sla: %s returned HTTP %d", url, resp.StatusCode)
	}
	return nil
}
