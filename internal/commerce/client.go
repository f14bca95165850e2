// Package commerce provides a client for the Boulevard GraphQL API.
//
// Boulevard exposes two endpoints with different authentication: a client
// endpoint authenticated with a bare API key, and an admin endpoint
// authenticated with an HMAC-signed timestamped token. Each booking operation
// is wrapped as a typed method so callers never see GraphQL documents.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Client calls the Boulevard GraphQL API.
type Client struct {
	opts Opts
	http *http.Client
	// now is overridable in tests so admin token payloads are deterministic.
	now func() time.Time
}

// NewClient creates a Boulevard client from the provided options. The client
// URL and API key are required; the admin URL, business ID and API secret are
// only validated when an admin-scoped call is made.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ClientURL == "" {
		return nil, fmt.Errorf("commerce client URL not set")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("commerce API key not set")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	slog.Debug("Commerce client created", "clientURL", cfg.ClientURL, "adminURL_set", cfg.AdminURL != "", "timeout", cfg.Timeout)
	return &Client{opts: cfg, http: httpClient, now: time.Now}, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// do posts a GraphQL document to the given endpoint and decodes the data
// envelope into out. GraphQL-level errors are returned as a single error.
func (c *Client) do(ctx context.Context, endpoint, authHeader, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode GraphQL request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build GraphQL request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+authHeader)

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("Commerce GraphQL request failed", "error", err, "endpoint", endpoint)
		return fmt.Errorf("GraphQL request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		slog.Error("Commerce GraphQL response decode failed", "error", err, "status", resp.StatusCode)
		return fmt.Errorf("failed to decode GraphQL response (status %d): %w", resp.StatusCode, err)
	}
	if len(envelope.Errors) > 0 {
		slog.Error("Commerce GraphQL returned errors", "count", len(envelope.Errors), "first", envelope.Errors[0].Message)
		return fmt.Errorf("GraphQL error: %s", envelope.Errors[0].Message)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GraphQL endpoint returned status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode GraphQL data: %w", err)
		}
	}
	return nil
}

// doClient runs a guest-authenticated call against the client endpoint.
func (c *Client) doClient(ctx context.Context, query string, variables map[string]any, out any) error {
	return c.do(ctx, c.opts.ClientURL, guestAuthHeader(c.opts.APIKey), query, variables, out)
}

// doAdmin runs an admin-authenticated call against the admin endpoint.
func (c *Client) doAdmin(ctx context.Context, query string, variables map[string]any, out any) error {
	if c.opts.AdminURL == "" {
		return fmt.Errorf("commerce admin URL not set")
	}
	if c.opts.BusinessID == "" {
		return fmt.Errorf("commerce business ID not set")
	}
	if c.opts.APISecret == "" {
		return fmt.Errorf("commerce API secret not set")
	}
	header, err := adminAuthHeader(c.opts.APIKey, c.opts.BusinessID, c.opts.APISecret, c.now())
	if err != nil {
		return err
	}
	return c.do(ctx, c.opts.AdminURL, header, query, variables, out)
}
