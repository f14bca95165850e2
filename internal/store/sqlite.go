// Package store provides storage backends for BookingPipe.
//
// This file implements an SQLite-backed progress store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
	"github.com/ostlive/bookingpipe/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	slog.Debug("SQLite database directory verified/created", "dir", dir)

	slog.Debug("Opening SQLite database connection")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	slog.Debug("SQLite database opened")

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	slog.Debug("SQLite ping successful")

	// Run migrations to ensure tables exist
	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// GetProgress retrieves booking progress for a conversation. Returns
// (nil, nil) when the key has no stored progress.
func (s *SQLiteStore) GetProgress(userID, conversationID string) (*models.BookingProgress, error) {
	query := `SELECT progress FROM booking_progress WHERE user_id = ? AND conversation_id = ?`

	var progressJSON string
	err := s.db.QueryRow(query, userID, conversationID).Scan(&progressJSON)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetProgress not found", "userID", userID, "conversationID", conversationID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetProgress failed", "error", err, "userID", userID, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query booking progress: %w", err)
	}

	var progress models.BookingProgress
	if err := json.Unmarshal([]byte(progressJSON), &progress); err != nil {
		slog.Error("SQLiteStore GetProgress JSON unmarshal failed", "error", err, "userID", userID, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to decode booking progress: %w", err)
	}
	slog.Debug("SQLiteStore GetProgress found", "userID", userID, "conversationID", conversationID, "completedSteps", len(progress.CompletedSteps))
	return &progress, nil
}

// SaveProgress stores or replaces booking progress for a conversation.
func (s *SQLiteStore) SaveProgress(userID, conversationID string, progress *models.BookingProgress) error {
	progress.LastUpdated = time.Now()
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		slog.Error("SQLiteStore SaveProgress JSON marshal failed", "error", err, "userID", userID, "conversationID", conversationID)
		return fmt.Errorf("failed to encode booking progress: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO booking_progress (user_id, conversation_id, progress, updated_at)
		VALUES (?, ?, ?, ?)`
	_, err = s.db.Exec(query, userID, conversationID, string(progressJSON), progress.LastUpdated)
	if err != nil {
		slog.Error("SQLiteStore SaveProgress failed", "error", err, "userID", userID, "conversationID", conversationID)
		return fmt.Errorf("failed to save booking progress: %w", err)
	}
	slog.Debug("SQLiteStore SaveProgress succeeded", "userID", userID, "conversationID", conversationID, "completedSteps", len(progress.CompletedSteps))
	return nil
}

// DeleteProgress removes booking progress for a conversation.
func (s *SQLiteStore) DeleteProgress(userID, conversationID string) error {
	query := `DELETE FROM booking_progress WHERE user_id = ? AND conversation_id = ?`

	_, err := s.db.Exec(query, userID, conversationID)
	if err != nil {
		slog.Error("SQLiteStore DeleteProgress failed", "error", err, "userID", userID, "conversationID", conversationID)
		return fmt.Errorf("failed to delete booking progress: %w", err)
	}
	slog.Debug("SQLiteStore DeleteProgress succeeded", "userID", userID, "conversationID", conversationID)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	} else {
		slog.Debug("SQLite database connection closed successfully")
	}
	return err
}
