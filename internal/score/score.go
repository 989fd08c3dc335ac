// internal/score/score.go
//
// Best-time persistence for the tile-matching engine.
// Defines the Store interface plus an in-memory implementation used in
// tests and in no-database runs. The durable SQLite implementation lives
// in sqlite.go.
//
// Characteristics:
//   - A best time only ever decreases, and only via Offer with a strictly
//     smaller finish.
//   - Absence of a stored value is not an error; Load reports it via the
//     ok return.

package score

import (
	"context"
	"sync"
	"time"
)

// Store persists the fastest completed-round duration.
// Implementations may be backed by memory (this file), SQLite, etc.
type Store interface {
	// Load retrieves the stored best time. ok is false when none has been
	// recorded yet.
	Load(ctx context.Context) (best time.Duration, ok bool, err error)

	// Offer records candidate if it beats the stored best (or if nothing is
	// stored) and returns the resulting best either way.
	Offer(ctx context.Context, candidate time.Duration) (time.Duration, error)
}

// Memory is an in-memory Store. State is lost on process exit.
type Memory struct {
	mu   sync.RWMutex
	best time.Duration
	has  bool
}

// NewMemory constructs an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{}
}

// Load returns the held best time, if any.
func (m *Memory) Load(ctx context.Context) (time.Duration, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.best, m.has, nil
}

// Offer keeps the smaller of candidate and the held best.
func (m *Memory) Offer(ctx context.Context, candidate time.Duration) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.has || candidate < m.best {
		m.best = candidate
		m.has = true
	}
	return m.best, nil
}
