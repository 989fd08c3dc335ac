// internal/game/types.go
//
// Core type definitions for the tile-matching engine.
// Defines:
//   - Token: one face-down/face-up tile bound to a symbol identity.
//   - Deck: the ordered tokens of a single round.
//   - Phase names and the FSM events that move between them.
//   - Config: pair count, resolution delays, and tick cadence.

package game

import "time"

// Token is a single tile in the deck. Exactly two tokens in any deck share
// a Symbol. A retired token is always revealed.
type Token struct {
	ID       int    // Stable ordinal within this deck instance.
	Symbol   string // Identity shared by exactly two tokens.
	Revealed bool   // Face-up and visible to the player.
	Retired  bool   // Matched and out of play.
}

// Deck is the ordered token sequence of one round. It is owned by the
// engine and replaced wholesale on restart, never mutated across rounds.
type Deck []Token

// Round phases. The engine reports these verbatim in snapshots.
const (
	PhaseIdle      = "idle"      // No tile flipped yet; timer stopped.
	PhasePlaying   = "playing"   // Timer running, 0 or 1 tiles selected.
	PhaseResolving = "resolving" // Two tiles selected, resolution pending.
	PhaseWon       = "won"       // Terminal; all pairs matched.
)

// FSM event names.
const (
	eventFlip   = "flip"   // idle -> playing (first tile of a round)
	eventPair   = "pair"   // playing -> resolving (second tile selected)
	eventSettle = "settle" // resolving -> playing (resolution fired, no win)
	eventWin    = "win"    // resolving -> won (last pair retired)
	eventReset  = "reset"  // any -> idle (restart intent)
)

// Default tuning. Matches resolve faster than mismatches so the player
// gets quicker positive feedback.
const (
	DefaultPairCount     = 8
	DefaultMatchDelay    = 350 * time.Millisecond
	DefaultMismatchDelay = 900 * time.Millisecond
	DefaultTickEvery     = 100 * time.Millisecond
)

// Config holds the engine tuning for one round. Zero values fall back to
// the defaults above.
type Config struct {
	PairCount     int           // Number of symbol pairs (deck is twice this).
	MatchDelay    time.Duration // Delay before a matched pair retires.
	MismatchDelay time.Duration // Delay before a mismatched pair flips back.
	TickEvery     time.Duration // Display tick cadence while the timer runs.
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.PairCount == 0 {
		c.PairCount = DefaultPairCount
	}
	if c.MatchDelay == 0 {
		c.MatchDelay = DefaultMatchDelay
	}
	if c.MismatchDelay == 0 {
		c.MismatchDelay = DefaultMismatchDelay
	}
	if c.TickEvery == 0 {
		c.TickEvery = DefaultTickEvery
	}
	return c
}
