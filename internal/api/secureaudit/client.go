// Package secureaudit is an HTTP client for the external append-only audit
// log service. The service hashes submitted records into a tamper-evident
// structure; this client only submits and verifies acknowledgments.
package secureaudit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/trailsec/ragtrail/internal/audit"
)

const defaultDomain = "https://audit.ragtrail.dev"

// ClientOption configures the client.
type ClientOption func(*Client)

// WithDomain sets the service base URL. An empty domain is ignored so
// callers can pass configuration values through without guarding.
func WithDomain(domain string) ClientOption {
	return func(c *Client) {
		if domain != "" {
			c.domain = strings.TrimSuffix(domain, "/")
		}
	}
}

// WithConfigID sets the log configuration id sent with every submission.
func WithConfigID(configID string) ClientOption {
	return func(c *Client) {
		c.configID = configID
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client talks to the audit log service.
type Client struct {
	token      string
	domain     string
	configID   string
	httpClient *http.Client
}

// NewClient creates a client authenticated with token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:      token,
		domain:     defaultDomain,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit appends records to the log. It returns an error unless the service
// acknowledges every record; partial acceptance is reported as failure.
func (c *Client) Submit(ctx context.Context, records []audit.Record) error {
	if len(records) == 0 {
		return nil
	}
	_, err := c.Log(ctx, &LogRequest{ConfigID: c.configID, Events: records})
	return err
}

// Log performs the raw POST /v1/log call and returns the acknowledgment.
func (c *Client) Log(ctx context.Context, req *LogRequest) (*LogResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.domain+"/v1/log", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result LogResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
		}
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || result.Status != StatusSuccess {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			RequestID:  result.RequestID,
			Status:     result.Status,
			Summary:    result.Summary,
		}
	}

	return &result, nil
}

var _ audit.Sink = (*Client)(nil)
