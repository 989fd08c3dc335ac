// internal/game/engine.go
//
// Turn resolver for the tile-matching game.
// Responsibilities:
//   - Accept tile-tap and restart intents; everything else is derived.
//   - Drive the round phases (idle/playing/resolving/won) through an FSM.
//   - Schedule the delayed match/mismatch resolutions and guard them with
//     an epoch counter so a restart makes any in-flight resolution inert.
//   - Freeze the authoritative elapsed time at the instant of the win and
//     hand it to the best-score store.
//
// Concurrency: one mutex serializes intents, timer ticks, and resolution
// callbacks; the engine behaves as a single logical actor. Snapshot
// listeners are always invoked outside the lock.

package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"

	"tilepairs/internal/score"
)

// ScheduleFunc defers fn by d. The default is time.AfterFunc; tests inject
// a manual scheduler to fire resolutions deterministically.
type ScheduleFunc func(d time.Duration, fn func())

// Option customizes an Engine at construction.
type Option func(*Engine)

// WithNow overrides the clock source (engine and round timer).
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithScheduler overrides the resolution-delay scheduler.
func WithScheduler(s ScheduleFunc) Option {
	return func(e *Engine) { e.schedule = s }
}

// WithGenerator overrides deck generation, e.g. to fix a layout in tests.
func WithGenerator(gen func(pairCount int) (Deck, error)) Option {
	return func(e *Engine) { e.generate = gen }
}

// WithListener registers the snapshot sink, invoked after every accepted
// intent, resolution, tick, and best-time refresh.
func WithListener(fn func(Snapshot)) Option {
	return func(e *Engine) { e.notify = fn }
}

// WithLogger attaches a component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// Engine is the finite-state machine for one board. All exported methods
// are safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	cfg  Config
	best score.Store
	log  zerolog.Logger

	now      func() time.Time
	schedule ScheduleFunc
	generate func(int) (Deck, error)
	notify   func(Snapshot)

	phase     *fsm.FSM
	deck      Deck
	selection []int // Indices of face-up unresolved tokens, at most two.
	moves     int
	matched   int

	// epoch invalidates scheduled resolutions across restarts. A callback
	// captures the epoch at scheduling time and no-ops on mismatch, so a
	// late firing from a previous round can never touch the new one.
	epoch uint64

	timer    *Timer
	frozen   time.Duration  // Elapsed time at the instant of the win.
	bestTime *time.Duration // Cached store value for snapshots.
}

// New constructs an engine with a freshly generated deck and the best time
// (if any) loaded from the store. A pair count the deck generator cannot
// satisfy fails here, never mid-round. A nil store defaults to in-memory.
func New(cfg Config, best score.Store, opts ...Option) (*Engine, error) {
	if best == nil {
		best = score.NewMemory()
	}
	e := &Engine{
		cfg:      cfg.withDefaults(),
		best:     best,
		log:      zerolog.Nop(),
		now:      time.Now,
		generate: Generate,
		phase:    newPhaseFSM(),
	}
	e.schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	for _, opt := range opts {
		opt(e)
	}

	deck, err := e.generate(e.cfg.PairCount)
	if err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}
	e.deck = deck
	e.timer = NewTimer(e.cfg.TickEvery, e.handleTick, e.now)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if b, ok, err := e.best.Load(ctx); err != nil {
		e.log.Warn().Err(err).Msg("load best time")
	} else if ok {
		e.bestTime = &b
	}
	return e, nil
}

// newPhaseFSM builds the round-phase machine.
func newPhaseFSM() *fsm.FSM {
	return fsm.NewFSM(
		PhaseIdle,
		fsm.Events{
			{Name: eventFlip, Src: []string{PhaseIdle}, Dst: PhasePlaying},
			{Name: eventPair, Src: []string{PhasePlaying}, Dst: PhaseResolving},
			{Name: eventSettle, Src: []string{PhaseResolving}, Dst: PhasePlaying},
			{Name: eventWin, Src: []string{PhaseResolving}, Dst: PhaseWon},
			{Name: eventReset, Src: []string{PhaseIdle, PhasePlaying, PhaseResolving, PhaseWon}, Dst: PhaseIdle},
		},
		fsm.Callbacks{},
	)
}

// Phase reports the current round phase.
func (e *Engine) Phase() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase.Current()
}

// Elapsed returns the authoritative round duration: zero while idle, the
// frozen reading once won, and now minus the start instant in between.
func (e *Engine) Elapsed() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.elapsedLocked()
}

func (e *Engine) elapsedLocked() time.Duration {
	switch e.phase.Current() {
	case PhaseWon:
		return e.frozen
	case PhaseIdle:
		return 0
	default:
		return e.timer.Elapsed()
	}
}

// OnTileTapped applies a tile-tap intent. Inert (no state change) when the
// round is won, a resolution is pending, the index is out of range, or the
// target token is already face-up or retired. The first accepted tap of a
// round starts the timer.
func (e *Engine) OnTileTapped(index int) {
	e.mu.Lock()
	if !e.tapAcceptedLocked(index) {
		e.mu.Unlock()
		return
	}

	if e.phase.Current() == PhaseIdle {
		_ = e.phase.Event(context.Background(), eventFlip)
		e.timer.Start()
	}

	e.deck[index].Revealed = true
	e.selection = append(e.selection, index)

	if len(e.selection) == 2 {
		e.moves++
		_ = e.phase.Event(context.Background(), eventPair)
		a, b := e.selection[0], e.selection[1]
		epoch := e.epoch
		if e.deck[a].Symbol == e.deck[b].Symbol {
			e.schedule(e.cfg.MatchDelay, func() { e.resolveMatch(epoch, a, b) })
		} else {
			e.schedule(e.cfg.MismatchDelay, func() { e.resolveMismatch(epoch, a, b) })
		}
	}

	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.publish(snap)
}

// tapAcceptedLocked applies the inertness rules for invalid intents: the
// engine defends independently of whatever the presentation layer filters.
func (e *Engine) tapAcceptedLocked(index int) bool {
	if e.phase.Current() == PhaseWon {
		return false
	}
	if len(e.selection) == 2 {
		// Resolution pending; taps stay inert until it fires.
		return false
	}
	if index < 0 || index >= len(e.deck) {
		e.log.Debug().Int("index", index).Msg("tap out of range")
		return false
	}
	tok := e.deck[index]
	return !tok.Revealed && !tok.Retired
}

// resolveMatch retires a matched pair. Fires after the match delay; a
// stale epoch means the round was restarted and the callback must not run.
func (e *Engine) resolveMatch(epoch uint64, a, b int) {
	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return
	}

	e.deck[a].Retired = true
	e.deck[b].Retired = true
	e.selection = e.selection[:0]
	e.matched++

	won := e.matched == e.cfg.PairCount
	if won {
		// Freeze from the start instant before stopping the timer; the
		// periodic tick is display-only and plays no part in scoring.
		e.frozen = e.timer.Elapsed()
		e.timer.Stop()
		_ = e.phase.Event(context.Background(), eventWin)
		e.log.Info().
			Dur("elapsed", e.frozen).
			Int("moves", e.moves).
			Msg("round won")
	} else {
		_ = e.phase.Event(context.Background(), eventSettle)
	}

	frozen := e.frozen
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.publish(snap)

	if won {
		go e.offerBest(frozen)
	}
}

// resolveMismatch flips a mismatched pair back face-down. Fires after the
// mismatch delay, subject to the same epoch guard.
func (e *Engine) resolveMismatch(epoch uint64, a, b int) {
	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return
	}

	e.deck[a].Revealed = false
	e.deck[b].Revealed = false
	e.selection = e.selection[:0]
	_ = e.phase.Event(context.Background(), eventSettle)

	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.publish(snap)
}

// offerBest hands the frozen time to the store. Fire-and-forget: a slow or
// failing write never stalls gameplay, it is only logged.
func (e *Engine) offerBest(frozen time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	best, err := e.best.Offer(ctx, frozen)
	if err != nil {
		e.log.Warn().Err(err).Msg("persist best time")
		return
	}
	e.mu.Lock()
	e.bestTime = &best
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.publish(snap)
}

// Restart cancels any pending resolution (by bumping the epoch), stops the
// timer, and deals a fresh deck. The stored best time is untouched.
func (e *Engine) Restart() {
	e.mu.Lock()
	e.epoch++
	e.timer.Stop()

	deck, err := e.generate(e.cfg.PairCount)
	if err != nil {
		// Cannot happen: the pair count was validated at construction.
		e.mu.Unlock()
		e.log.Error().Err(err).Msg("regenerate deck")
		return
	}
	e.deck = deck
	e.selection = e.selection[:0]
	e.moves = 0
	e.matched = 0
	e.frozen = 0
	_ = e.phase.Event(context.Background(), eventReset)

	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.publish(snap)
}

// handleTick republishes the snapshot on each display tick while a round
// is live.
func (e *Engine) handleTick(time.Duration) {
	e.mu.Lock()
	cur := e.phase.Current()
	if cur != PhasePlaying && cur != PhaseResolving {
		e.mu.Unlock()
		return
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.publish(snap)
}

// publish hands a snapshot to the listener, if any.
func (e *Engine) publish(s Snapshot) {
	if e.notify != nil {
		e.notify(s)
	}
}
