// internal/game/timer.go
//
// Round timer for the tile-matching engine.
// Responsibilities:
//   - Record the round's start instant; Start is idempotent while running.
//   - Emit a periodic display tick at a fixed cadence while running.
//   - Report elapsed time computed from the start instant on demand.
//
// The periodic tick exists only so a presentation layer can refresh its
// clock display. Scoring always reads Elapsed at the moment of freezing;
// it is never accumulated from tick counts, so tick jitter cannot skew a
// recorded time.

package game

import (
	"sync"
	"time"
)

// Timer tracks elapsed time for a single round.
type Timer struct {
	mu      sync.Mutex
	now     func() time.Time     // Clock source; time.Now unless injected.
	cadence time.Duration        // Tick interval; <= 0 disables ticking.
	onTick  func(time.Duration)  // Display callback; may be nil.
	startAt time.Time            // Reference instant of the running round.
	running bool
	stop    chan struct{} // Closed to end the tick goroutine.
}

// NewTimer constructs a stopped timer. A nil now defaults to time.Now.
func NewTimer(cadence time.Duration, onTick func(time.Duration), now func() time.Time) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now, cadence: cadence, onTick: onTick}
}

// Start records the reference instant and begins ticking. Calling Start on
// a running timer is a no-op: the original reference instant is kept.
func (t *Timer) Start() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.startAt = t.now()
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	if t.cadence > 0 && t.onTick != nil {
		go t.tickLoop(stop)
	}
}

// Stop halts ticking. Elapsed readings after Stop are zero; a caller that
// needs the final reading takes it before stopping.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	close(t.stop)
	t.stop = nil
}

// Running reports whether the timer is between Start and Stop.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Elapsed returns now minus the reference instant, or zero when stopped.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return 0
	}
	return t.now().Sub(t.startAt)
}

// tickLoop delivers display ticks until the stop channel closes.
func (t *Timer) tickLoop(stop chan struct{}) {
	ticker := time.NewTicker(t.cadence)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.onTick(t.Elapsed())
		}
	}
}
