// Package store provides storage backends for BookingPipe.
//
// Booking progress is keyed by (user ID, conversation ID) and persisted as
// JSON so a conversation can resume after a process restart. SQLite and
// PostgreSQL backends are provided, plus an in-memory store for tests.
package store

import (
	"sync"
	"time"

	"github.com/ostlive/bookingpipe/internal/models"
)

// Store defines the persistence operations for booking progress.
// GetProgress returns (nil, nil) when no progress exists for the key.
type Store interface {
	GetProgress(userID, conversationID string) (*models.BookingProgress, error)
	SaveProgress(userID, conversationID string, progress *models.BookingProgress) error
	DeleteProgress(userID, conversationID string) error
	Close() error
}

// InMemoryStore keeps booking progress in a map. Used in tests and as a
// fallback when no database DSN is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	progress map[models.CorrelationKey]*models.BookingProgress
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{progress: make(map[models.CorrelationKey]*models.BookingProgress)}
}

func (s *InMemoryStore) GetProgress(userID, conversationID string) (*models.BookingProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.progress[models.CorrelationKey{UserID: userID, ConversationID: conversationID}]
	if !ok {
		return nil, nil
	}
	cp := p.Clone()
	return cp, nil
}

func (s *InMemoryStore) SaveProgress(userID, conversationID string, progress *models.BookingProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := progress.Clone()
	cp.LastUpdated = time.Now()
	s.progress[models.CorrelationKey{UserID: userID, ConversationID: conversationID}] = cp
	return nil
}

func (s *InMemoryStore) DeleteProgress(userID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.progress, models.CorrelationKey{UserID: userID, ConversationID: conversationID})
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
