// Package flow implements the membership-booking conversation engine.
//
// A booking advances through a fixed chain of steps. Every turn reloads the
// persisted progress record, routes to the step that should run next,
// executes it, and persists the result. Suspension is nothing more than a
// returned prompt: the next turn re-enters the same step with the user's
// reply, so a conversation survives process restarts.
//
// The engine has a second entry point, CompleteWithToken, driven by the
// payment webhook instead of a user turn. Both entry points run the same
// step executors under the same per-conversation lock.
package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ostlive/bookingpipe/internal/commerce"
	"github.com/ostlive/bookingpipe/internal/extract"
	"github.com/ostlive/bookingpipe/internal/models"
	"github.com/ostlive/bookingpipe/internal/store"
)

// DefaultPaymentPageURL is where the hosted payment page lives unless
// configured otherwise.
const DefaultPaymentPageURL = "http://localhost:4200"

// maxStepsPerTurn bounds the router loop so a routing bug can never spin.
const maxStepsPerTurn = 16

// CommerceClient is the surface of the commerce API the engine consumes.
// *commerce.Client satisfies it; tests substitute a mock.
type CommerceClient interface {
	ListLocations(ctx context.Context) ([]models.Location, error)
	ListMembershipPlans(ctx context.Context) ([]models.Plan, error)
	CreateCart(ctx context.Context, locationID string) (*commerce.Cart, error)
	AddItemToCart(ctx context.Context, cartID, itemID string) error
	ApplyPromotionCode(ctx context.Context, cartID, code string) (*models.PromoResult, error)
	SetClientOnCart(ctx context.Context, cartID string, info models.ClientInfo) error
	AddCardPaymentMethod(ctx context.Context, cartID, token string) error
	CheckoutCart(ctx context.Context, cartID string) (json.RawMessage, error)
	CartSummary(ctx context.Context, cartID string) (*commerce.CartSummaryInfo, error)
}

// Notifier delivers a receipt out of band after checkout completes.
// Delivery failures are logged, never surfaced to the booking pipeline.
type Notifier interface {
	SendReceipt(ctx context.Context, phoneNumber, message string) error
}

// Opts holds configuration options for the engine.
type Opts struct {
	Store          store.Store
	Commerce       CommerceClient
	Extractor      extract.FieldExtractor
	Notifier       Notifier
	PaymentPageURL string
}

// Option defines a configuration option for the engine.
type Option func(*Opts)

// WithStore sets the progress store.
func WithStore(s store.Store) Option {
	return func(o *Opts) {
		o.Store = s
	}
}

// WithCommerceClient sets the commerce API client.
func WithCommerceClient(c CommerceClient) Option {
	return func(o *Opts) {
		o.Commerce = c
	}
}

// WithExtractor sets the contact-field extractor.
func WithExtractor(e extract.FieldExtractor) Option {
	return func(o *Opts) {
		o.Extractor = e
	}
}

// WithNotifier sets the optional receipt notifier.
func WithNotifier(n Notifier) Option {
	return func(o *Opts) {
		o.Notifier = n
	}
}

// WithPaymentPageURL sets the base URL of the hosted payment page.
func WithPaymentPageURL(url string) Option {
	return func(o *Opts) {
		o.PaymentPageURL = url
	}
}

// Engine orchestrates booking conversations.
type Engine struct {
	store          store.Store
	commerce       CommerceClient
	extractor      extract.FieldExtractor
	notifier       Notifier
	rendezvous     *TokenRendezvous
	paymentPageURL string
	locks          keyedMutex
}

// NewEngine creates a booking engine from the provided options. A store and
// a commerce client are required; the extractor defaults to the regex one.
func NewEngine(opts ...Option) (*Engine, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("engine store not set")
	}
	if cfg.Commerce == nil {
		return nil, fmt.Errorf("engine commerce client not set")
	}
	if cfg.Extractor == nil {
		cfg.Extractor = extract.NewRegexExtractor()
	}
	if cfg.PaymentPageURL == "" {
		cfg.PaymentPageURL = DefaultPaymentPageURL
	}
	slog.Debug("Engine created", "paymentPageURL", cfg.PaymentPageURL, "notifierSet", cfg.Notifier != nil)
	return &Engine{
		store:          cfg.Store,
		commerce:       cfg.Commerce,
		extractor:      cfg.Extractor,
		notifier:       cfg.Notifier,
		rendezvous:     NewTokenRendezvous(),
		paymentPageURL: cfg.PaymentPageURL,
	}, nil
}

// Rendezvous exposes the payment-token rendezvous for diagnostics.
func (e *Engine) Rendezvous() *TokenRendezvous {
	return e.rendezvous
}

// turnContext carries the user's input through one turn. Input is consumed
// by the first executor that reads it so a later step never reprocesses it.
type turnContext struct {
	input string
}

func (t *turnContext) take() string {
	s := t.input
	t.input = ""
	return s
}

func (t *turnContext) peek() string {
	return t.input
}

// stepOutcome is what one executor invocation produced. A non-nil prompt
// suspends the turn; halt ends it without a prompt.
type stepOutcome struct {
	messages   []string
	prompt     *models.PromptSpec
	paymentURL string
	halt       bool
	done       bool
	clear      bool
}

// HandleTurn processes one user turn: load progress, run the router loop
// until a step suspends or halts, and report the accumulated output.
func (e *Engine) HandleTurn(ctx context.Context, req models.TurnRequest) (*models.TurnResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := req.Key()
	unlock := e.locks.lock(key)
	defer unlock()

	progress, err := e.store.GetProgress(key.UserID, key.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking progress: %w", err)
	}
	if progress == nil {
		progress = models.NewBookingProgress()
		slog.Debug("Engine HandleTurn starting fresh booking", "key", key.String())
	}

	tc := &turnContext{input: req.Input}
	result := &models.TurnResult{}

	for i := 0; i < maxStepsPerTurn; i++ {
		step := Route(progress, tc.peek())
		slog.Debug("Engine HandleTurn routed", "key", key.String(), "step", step, "iteration", i)

		outcome := e.execute(ctx, key, step, progress, tc)
		result.Messages = append(result.Messages, outcome.messages...)
		if outcome.prompt != nil {
			result.Prompt = outcome.prompt
		}
		if outcome.paymentURL != "" {
			result.PaymentURL = outcome.paymentURL
		}
		if outcome.done {
			result.Done = true
		}

		if outcome.clear {
			if err := e.store.DeleteProgress(key.UserID, key.ConversationID); err != nil {
				return nil, fmt.Errorf("failed to clear finished booking: %w", err)
			}
		} else if err := e.store.SaveProgress(key.UserID, key.ConversationID, progress); err != nil {
			return nil, fmt.Errorf("failed to save booking progress: %w", err)
		}
		if outcome.prompt != nil || outcome.halt {
			break
		}
	}
	return result, nil
}

// Restart deletes the progress record for the key so the next turn starts a
// fresh booking.
func (e *Engine) Restart(ctx context.Context, key models.CorrelationKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	unlock := e.locks.lock(key)
	defer unlock()

	if err := e.store.DeleteProgress(key.UserID, key.ConversationID); err != nil {
		return fmt.Errorf("failed to delete booking progress: %w", err)
	}
	slog.Info("Engine Restart cleared booking", "key", key.String())
	return nil
}

// Progress returns the persisted record for the key, nil when absent.
func (e *Engine) Progress(key models.CorrelationKey) (*models.BookingProgress, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return e.store.GetProgress(key.UserID, key.ConversationID)
}

// ProgressReport pairs the persisted record with a live cart view for the
// inspection surface. Cart is nil when no cart exists yet, when checkout
// already consumed it, or when the summary lookup fails.
type ProgressReport struct {
	Progress *models.BookingProgress   `json:"progress"`
	Cart     *commerce.CartSummaryInfo `json:"cart,omitempty"`
}

// ProgressReport returns the persisted record for the key enriched with the
// current cart summary. Returns nil when no booking is in progress.
func (e *Engine) ProgressReport(ctx context.Context, key models.CorrelationKey) (*ProgressReport, error) {
	progress, err := e.Progress(key)
	if err != nil || progress == nil {
		return nil, err
	}
	report := &ProgressReport{Progress: progress}
	if progress.Data.CartID != "" && !progress.Data.CheckoutComplete {
		summary, err := e.commerce.CartSummary(ctx, progress.Data.CartID)
		if err != nil {
			slog.Warn("Engine ProgressReport cart summary lookup failed", "key", key.String(), "cartID", progress.Data.CartID, "error", err)
		} else {
			report.Cart = summary
		}
	}
	return report, nil
}

// execute dispatches one step. Executors convert their own external-call
// failures into user-facing messages; nothing escapes as a Go error here.
func (e *Engine) execute(ctx context.Context, key models.CorrelationKey, step models.StepID, p *models.BookingProgress, tc *turnContext) stepOutcome {
	switch step {
	case models.StepGetLocations:
		return e.execGetLocations(ctx, p)
	case models.StepSelectLocation:
		return e.execSelectLocation(p, tc)
	case models.StepCreateCart:
		return e.execCreateCart(ctx, p)
	case models.StepGetMembershipPlans:
		return e.execGetMembershipPlans(ctx, p)
	case models.StepSelectPlan:
		return e.execSelectPlan(p, tc)
	case models.StepAddMembershipToCart:
		return e.execAddMembershipToCart(ctx, p)
	case models.StepApplyPromotionCode:
		return e.execApplyPromotionCode(ctx, p, tc)
	case models.StepCollectClientInfo:
		return e.execCollectClientInfo(key, p, tc)
	case models.StepSetClientOnCart:
		return e.execSetClientOnCart(ctx, p)
	case models.StepAddCardPayment:
		return e.execAddCardPayment(ctx, p)
	case models.StepCheckoutCart:
		return e.execCheckoutCart(ctx, p)
	case models.StepBookingComplete:
		return e.execBookingComplete(p)
	case models.StepEnd:
		return e.execAwaitPayment(p)
	default:
		slog.Error("Engine execute received unknown step", "step", step)
		return stepOutcome{halt: true}
	}
}
