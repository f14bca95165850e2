// Package store provides storage backends for BookingPipe.
//
// This file implements a PostgreSQL-backed progress store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
	"github.com/ostlive/bookingpipe/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	slog.Debug("Opening Postgres database connection")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	slog.Debug("Postgres database opened")

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	slog.Debug("Postgres ping successful")
	// Run migrations to ensure the booking_progress table exists
	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// GetProgress retrieves booking progress for a conversation. Returns
// (nil, nil) when the key has no stored progress.
func (s *PostgresStore) GetProgress(userID, conversationID string) (*models.BookingProgress, error) {
	query := `SELECT progress FROM booking_progress WHERE user_id = $1 AND conversation_id = $2`

	var progressJSON string
	err := s.db.QueryRow(query, userID, conversationID).Scan(&progressJSON)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetProgress not found", "userID", userID, "conversationID", conversationID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetProgress failed", "error", err, "userID", userID, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query booking progress: %w", err)
	}

	var progress models.BookingProgress
	if err := json.Unmarshal([]byte(progressJSON), &progress); err != nil {
		slog.Error("PostgresStore GetProgress JSON unmarshal failed", "error", err, "userID", userID, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to decode booking progress: %w", err)
	}
	slog.Debug("PostgresStore GetProgress found", "userID", userID, "conversationID", conversationID, "completedSteps", len(progress.CompletedSteps))
	return &progress, nil
}

// SaveProgress stores or replaces booking progress for a conversation.
func (s *PostgresStore) SaveProgress(userID, conversationID string, progress *models.BookingProgress) error {
	progress.LastUpdated = time.Now()
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		slog.Error("PostgresStore SaveProgress JSON marshal failed", "error", err, "userID", userID, "conversationID", conversationID)
		return fmt.Errorf("failed to encode booking progress: %w", err)
	}

	query := `
		INSERT INTO booking_progress (user_id, conversation_id, progress, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, conversation_id)
		DO UPDATE SET progress = EXCLUDED.progress, updated_at = EXCLUDED.updated_at`
	_, err = s.db.Exec(query, userID, conversationID, string(progressJSON), progress.LastUpdated)
	if err != nil {
		slog.Error("PostgresStore SaveProgress failed", "error", err, "userID", userID, "conversationID", conversationID)
		return fmt.Errorf("failed to save booking progress: %w", err)
	}
	slog.Debug("PostgresStore SaveProgress succeeded", "userID", userID, "conversationID", conversationID, "completedSteps", len(progress.CompletedSteps))
	return nil
}

// DeleteProgress removes booking progress for a conversation.
func (s *PostgresStore) DeleteProgress(userID, conversationID string) error {
	query := `DELETE FROM booking_progress WHERE user_id = $1 AND conversation_id = $2`

	_, err := s.db.Exec(query, userID, conversationID)
	if err != nil {
		slog.Error("PostgresStore DeleteProgress failed", "error", err, "userID", userID, "conversationID", conversationID)
		return fmt.Errorf("failed to delete booking progress: %w", err)
	}
	slog.Debug("PostgresStore DeleteProgress succeeded", "userID", userID, "conversationID", conversationID)
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	} else {
		slog.Debug("Postgres database connection closed successfully")
	}
	return err
}
