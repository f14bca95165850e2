// Package models defines request and result types for the BookingPipe HTTP surfaces.
package models

import "strings"

// TurnRequest is one user chat turn addressed to a conversation.
type TurnRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Input          string `json:"input"`
}

// Validate checks the turn request for required fields.
func (r *TurnRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(r.ConversationID) == "" {
		return ErrEmptyConversationID
	}
	return nil
}

// Key returns the correlation key addressed by the request.
func (r *TurnRequest) Key() CorrelationKey {
	return CorrelationKey{UserID: r.UserID, ConversationID: r.ConversationID}
}

// TurnResult is the orchestrator's answer to one chat turn.
type TurnResult struct {
	Messages   []string    `json:"messages"`
	Prompt     *PromptSpec `json:"prompt,omitempty"`
	PaymentURL string      `json:"payment_url,omitempty"`
	Done       bool        `json:"done,omitempty"`
}

// TokenWebhookRequest is the payload of the inbound payment-token webhook.
type TokenWebhookRequest struct {
	Token          string `json:"token"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}

// Validate checks the webhook payload for required fields.
func (r *TokenWebhookRequest) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return ErrEmptyCardToken
	}
	if strings.TrimSpace(r.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(r.ConversationID) == "" {
		return ErrEmptyConversationID
	}
	return nil
}

// Key returns the correlation key addressed by the webhook.
func (r *TokenWebhookRequest) Key() CorrelationKey {
	return CorrelationKey{UserID: r.UserID, ConversationID: r.ConversationID}
}

// CompletionStatus distinguishes the webhook acknowledgment outcomes: the
// token being stored is acknowledged separately from the checkout pipeline
// succeeding, because the card token is single-use and the caller must not
// blindly retry the whole checkout.
type CompletionStatus string

const (
	// CompletionTokenStored means the token was stored but the checkout
	// pipeline did not run to completion.
	CompletionTokenStored CompletionStatus = "token_stored"
	// CompletionCheckoutComplete means the full completion pipeline succeeded.
	CompletionCheckoutComplete CompletionStatus = "checkout_complete"
	// CompletionRejected means the token was consumed but the booking was not
	// ready for checkout (no cart or incomplete client info).
	CompletionRejected CompletionStatus = "rejected"
)

// CompletionResult reports the outcome of a token deposit and the pipeline it
// triggered.
type CompletionResult struct {
	Status        CompletionStatus `json:"status"`
	Messages      []string         `json:"messages,omitempty"`
	PipelineError string           `json:"pipeline_error,omitempty"`
}
