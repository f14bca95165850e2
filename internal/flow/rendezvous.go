package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ostlive/bookingpipe/internal/models"
)

// TokenRendezvous holds payment tokens deposited by the payment webhook
// until the completion pipeline consumes them. At most one token is held
// per conversation; a second deposit before consumption overwrites the
// first. Consume is one-shot: a token read once is gone.
type TokenRendezvous struct {
	mu     sync.Mutex
	tokens map[models.CorrelationKey]string
}

// NewTokenRendezvous creates an empty rendezvous.
func NewTokenRendezvous() *TokenRendezvous {
	return &TokenRendezvous{tokens: make(map[models.CorrelationKey]string)}
}

// Deposit stores a token for the key, replacing any token already held.
func (r *TokenRendezvous) Deposit(key models.CorrelationKey, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tokens[key]; exists {
		slog.Warn("TokenRendezvous overwriting unconsumed token", "key", key.String())
	}
	r.tokens[key] = token
}

// Consume removes and returns the token for the key. The second of two
// concurrent consumers sees ok=false.
func (r *TokenRendezvous) Consume(key models.CorrelationKey) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[key]
	if ok {
		delete(r.tokens, key)
	}
	return token, ok
}

// CompleteWithToken is the payment webhook's entry into the engine. The
// token is deposited, consumed, and used to drive the checkout pipeline
// synchronously: attach client, attach payment method, check out. It runs
// under the same per-conversation lock as HandleTurn, so a concurrent user
// turn can never observe a half-completed checkout.
//
// The token is consumed no matter what: a rejected or failed completion
// still burns it, and the payment page must issue a fresh token to retry.
func (e *Engine) CompleteWithToken(ctx context.Context, req models.TokenWebhookRequest) (*models.CompletionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := req.Key()
	unlock := e.locks.lock(key)
	defer unlock()

	e.rendezvous.Deposit(key, req.Token)
	token, ok := e.rendezvous.Consume(key)
	if !ok {
		// Unreachable while the key lock is held, kept as a guard.
		return &models.CompletionResult{
			Status:        models.CompletionRejected,
			PipelineError: "payment token already consumed",
		}, nil
	}

	progress, err := e.store.GetProgress(key.UserID, key.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking progress: %w", err)
	}
	if progress == nil {
		slog.Warn("Engine CompleteWithToken with no booking progress", "key", key.String())
		return &models.CompletionResult{
			Status:        models.CompletionRejected,
			PipelineError: "no booking in progress for this conversation",
		}, nil
	}
	if progress.Data.CheckoutComplete {
		slog.Warn("Engine CompleteWithToken after checkout already completed", "key", key.String())
		return &models.CompletionResult{
			Status:        models.CompletionRejected,
			PipelineError: "checkout already completed for this booking",
		}, nil
	}
	if progress.Data.CartID == "" || !progress.Data.ClientInfo.Complete() {
		slog.Warn("Engine CompleteWithToken before booking ready", "key", key.String(),
			"cartSet", progress.Data.CartID != "", "clientInfoComplete", progress.Data.ClientInfo.Complete())
		return &models.CompletionResult{
			Status:        models.CompletionRejected,
			PipelineError: "booking is not ready for payment",
		}, nil
	}

	progress.Data.CardToken = token
	result := &models.CompletionResult{}

	for _, step := range []models.StepID{models.StepSetClientOnCart, models.StepAddCardPayment, models.StepCheckoutCart} {
		outcome := e.execute(ctx, key, step, progress, &turnContext{})
		result.Messages = append(result.Messages, outcome.messages...)
		if !progress.HasStep(step) {
			result.Status = models.CompletionTokenStored
			result.PipelineError = pipelineFailureReason(step)
			if saveErr := e.store.SaveProgress(key.UserID, key.ConversationID, progress); saveErr != nil {
				return nil, fmt.Errorf("failed to save booking progress: %w", saveErr)
			}
			slog.Error("Engine CompleteWithToken pipeline halted", "key", key.String(), "step", step)
			return result, nil
		}
	}

	if err := e.store.SaveProgress(key.UserID, key.ConversationID, progress); err != nil {
		return nil, fmt.Errorf("failed to save booking progress: %w", err)
	}

	receipt := RenderReceipt(progress)
	result.Status = models.CompletionCheckoutComplete
	result.Messages = append(result.Messages, receipt)
	slog.Info("Engine CompleteWithToken checkout complete", "key", key.String(), "cartID", progress.Data.CartID)

	if e.notifier != nil && progress.Data.ClientInfo.PhoneNumber != "" {
		if err := e.notifier.SendReceipt(ctx, progress.Data.ClientInfo.PhoneNumber, receipt); err != nil {
			slog.Error("Engine receipt notification failed", "key", key.String(), "error", err)
		}
	}
	return result, nil
}

func pipelineFailureReason(step models.StepID) string {
	switch step {
	case models.StepSetClientOnCart:
		return "failed to attach client details to the cart"
	case models.StepAddCardPayment:
		return "failed to attach the payment method"
	case models.StepCheckoutCart:
		return "checkout failed"
	default:
		return "checkout pipeline failed"
	}
}
