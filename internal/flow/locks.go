package flow

import (
	"sync"

	"github.com/ostlive/bookingpipe/internal/models"
)

// keyedMutex serializes all work on a single conversation. A user turn and
// a payment webhook for the same key never interleave; different keys run
// concurrently. Entries are never evicted; the map grows with the number of
// distinct conversations, which is bounded in practice.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[models.CorrelationKey]*sync.Mutex
}

// lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) lock(key models.CorrelationKey) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[models.CorrelationKey]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
