package commerce

import (
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds each GraphQL call when no timeout is configured.
const DefaultRequestTimeout = 8 * time.Second

// Opts holds configuration options for the Boulevard client.
type Opts struct {
	ClientURL  string
	AdminURL   string
	APIKey     string
	BusinessID string
	APISecret  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Option defines a configuration option for the Boulevard client.
type Option func(*Opts)

// WithClientURL sets the client (guest) GraphQL endpoint.
func WithClientURL(url string) Option {
	return func(o *Opts) {
		o.ClientURL = url
	}
}

// WithAdminURL sets the admin GraphQL endpoint.
func WithAdminURL(url string) Option {
	return func(o *Opts) {
		o.AdminURL = url
	}
}

// WithAPIKey sets the Boulevard API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithBusinessID sets the Boulevard business ID used for admin auth.
func WithBusinessID(id string) Option {
	return func(o *Opts) {
		o.BusinessID = id
	}
}

// WithAPISecret sets the base64-encoded Boulevard API secret used for admin auth.
func WithAPISecret(secret string) Option {
	return func(o *Opts) {
		o.APISecret = secret
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.Timeout = d
	}
}

// WithHTTPClient overrides the HTTP client used for GraphQL calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = c
	}
}
