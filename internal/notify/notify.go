// Package notify sends booking receipts over SMS via the Twilio API.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// ReceiptSender delivers a receipt to a phone number.
type ReceiptSender interface {
	SendReceipt(ctx context.Context, phoneNumber string, body string) error
}

// Opts holds configuration options for the Twilio SMS client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Option defines a configuration option for the Twilio SMS client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sending phone number in E.164 format.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// Client wraps the Twilio REST API for outbound SMS.
type Client struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewClient creates a Twilio SMS client. Options fall back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER environment
// variables when unset.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		},
	)

	return &Client{
		client:     client,
		fromNumber: cfg.FromNumber,
	}, nil
}

// SendReceipt sends the receipt body as an SMS. Phone numbers collected by
// the booking flow are bare digits; a leading + is added when missing.
func (c *Client) SendReceipt(ctx context.Context, phoneNumber string, body string) error {
	to := phoneNumber
	if len(to) > 0 && to[0] != '+' {
		to = "+" + to
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.fromNumber)
	params.SetBody(body)

	_, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendReceipt failed", "to", to, "error", err)
		return fmt.Errorf("failed to send receipt to %s: %w", to, err)
	}

	slog.Debug("Twilio receipt sent", "to", to)
	return nil
}

// MockClient records receipts for tests.
type MockClient struct {
	SentReceipts []SentReceipt
}

// SentReceipt is one recorded SendReceipt call.
type SentReceipt struct {
	To   string
	Body string
}

// NewMockClient creates an empty mock.
func NewMockClient() *MockClient {
	return &MockClient{SentReceipts: []SentReceipt{}}
}

// SendReceipt records the receipt instead of sending it.
func (m *MockClient) SendReceipt(ctx context.Context, phoneNumber string, body string) error {
	m.SentReceipts = append(m.SentReceipts, SentReceipt{To: phoneNumber, Body: body})
	return nil
}
