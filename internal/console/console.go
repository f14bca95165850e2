// Package console is an interactive terminal chat surface for the booking
// engine, useful for local development without the HTTP API.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/mdp/qrterminal/v3"

	"github.com/ostlive/bookingpipe/internal/flow"
	"github.com/ostlive/bookingpipe/internal/models"
)

// Opts holds configuration options for the console.
type Opts struct {
	Engine *flow.Engine
	UserID string
	In     io.Reader
	Out    io.Writer
	ShowQR bool
}

// Option defines a configuration option for the console.
type Option func(*Opts)

// WithEngine sets the booking engine.
func WithEngine(e *flow.Engine) Option {
	return func(o *Opts) { o.Engine = e }
}

// WithUserID sets the user identity for the session.
func WithUserID(id string) Option {
	return func(o *Opts) { o.UserID = id }
}

// WithIO overrides the input and output streams, mainly for tests.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(o *Opts) {
		o.In = in
		o.Out = out
	}
}

// WithQR enables rendering payment links as terminal QR codes.
func WithQR() Option {
	return func(o *Opts) { o.ShowQR = true }
}

// Console drives one booking conversation over a terminal.
type Console struct {
	engine *flow.Engine
	key    models.CorrelationKey
	in     io.Reader
	out    io.Writer
	showQR bool
}

// New creates a console session. The conversation ID is freshly generated so
// every session is an independent booking.
func New(opts ...Option) (*Console, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("console requires a booking engine")
	}
	if cfg.UserID == "" {
		cfg.UserID = "console-" + uuid.NewString()
	}
	return &Console{
		engine: cfg.Engine,
		key: models.CorrelationKey{
			UserID:         cfg.UserID,
			ConversationID: uuid.NewString(),
		},
		in:     cfg.In,
		out:    cfg.Out,
		showQR: cfg.ShowQR,
	}, nil
}

// Key returns the session's correlation key, so a payment webhook can be
// addressed to it while testing locally.
func (c *Console) Key() models.CorrelationKey {
	return c.key
}

// Run reads lines from the input and feeds them to the engine until EOF,
// "/quit", or the booking finishes. "/restart" clears the conversation.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintf(c.out, "BookingPipe console (conversation %s)\n", c.key.ConversationID)
	fmt.Fprintln(c.out, "Type /restart to start over, /quit to exit.")

	// Kick off the conversation with an empty turn.
	if done, err := c.turn(ctx, ""); err != nil || done {
		return err
	}

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "/quit", "/exit":
			return nil
		case "/restart":
			if err := c.engine.Restart(ctx, c.key); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "Conversation restarted.")
			if done, err := c.turn(ctx, ""); err != nil || done {
				return err
			}
			continue
		}
		done, err := c.turn(ctx, line)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return scanner.Err()
}

func (c *Console) turn(ctx context.Context, input string) (bool, error) {
	result, err := c.engine.HandleTurn(ctx, models.TurnRequest{
		UserID:         c.key.UserID,
		ConversationID: c.key.ConversationID,
		Input:          input,
	})
	if err != nil {
		return false, fmt.Errorf("turn failed: %w", err)
	}
	for _, msg := range result.Messages {
		fmt.Fprintln(c.out, msg)
		fmt.Fprintln(c.out)
	}
	if result.PaymentURL != "" && c.showQR {
		fmt.Fprintln(c.out, "Scan to pay:")
		qrterminal.GenerateHalfBlock(result.PaymentURL, qrterminal.L, c.out)
	}
	if result.Prompt != nil {
		slog.Debug("Console awaiting input", "action", result.Prompt.Action)
	}
	if result.Done {
		fmt.Fprintln(c.out, "Booking finished. Bye!")
		return true, nil
	}
	return false, nil
}
