// Package api exposes the booking engine over HTTP.
//
// It serves the chat turn endpoint, the payment-webhook token endpoint, and
// small operational endpoints for restarting and inspecting a conversation.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ostlive/bookingpipe/internal/flow"
	"github.com/ostlive/bookingpipe/internal/models"
)

// Default server configuration.
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
)

// BookingService is the part of the flow engine the HTTP layer calls.
type BookingService interface {
	HandleTurn(ctx context.Context, req models.TurnRequest) (*models.TurnResult, error)
	CompleteWithToken(ctx context.Context, req models.TokenWebhookRequest) (*models.CompletionResult, error)
	Restart(ctx context.Context, key models.CorrelationKey) error
	ProgressReport(ctx context.Context, key models.CorrelationKey) (*flow.ProgressReport, error)
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr            string
	Engine          BookingService
	ShutdownTimeout time.Duration
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithEngine sets the booking engine the server fronts.
func WithEngine(e BookingService) Option {
	return func(o *Opts) { o.Engine = e }
}

// WithShutdownTimeout sets how long graceful shutdown may take.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Opts) { o.ShutdownTimeout = d }
}

// Server is the BookingPipe HTTP server.
type Server struct {
	addr            string
	engine          BookingService
	shutdownTimeout time.Duration
}

// NewServer creates an API server from the provided options.
func NewServer(opts ...Option) (*Server, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Engine == nil {
		return nil, errNoEngine
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{
		addr:            cfg.Addr,
		engine:          cfg.Engine,
		shutdownTimeout: cfg.ShutdownTimeout,
	}, nil
}

// Handler builds the route table. Exposed so tests can drive the server
// through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/turn", s.turnHandler)
	mux.HandleFunc("/receive-token", s.receiveTokenHandler)
	mux.HandleFunc("/restart", s.restartHandler)
	mux.HandleFunc("/progress", s.progressHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Server shutting down", "timeout", s.shutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
