// internal/game/snapshot.go
//
// Read-only state snapshots handed to the presentation layer.
// Symbols of face-down tokens are withheld: nothing about hidden state
// leaks through a snapshot.

package game

// TokenView is the presentation-facing view of one token.
type TokenView struct {
	Symbol   string `json:"symbol,omitempty"` // Empty while face-down.
	Revealed bool   `json:"revealed"`
	Retired  bool   `json:"retired"`
}

// Snapshot is the full read-only round state. It is recomputed after every
// accepted intent, every resolution, and every timer tick.
type Snapshot struct {
	Tokens       []TokenView `json:"tokens"`
	Moves        int         `json:"moves"`
	MatchedPairs int         `json:"matchedPairs"`
	PairCount    int         `json:"pairCount"`
	Phase        string      `json:"phase"`
	ElapsedMs    int64       `json:"elapsedMs"`
	BestMs       *int64      `json:"bestMs,omitempty"` // Absent until a round has been won.
}

// Snapshot returns the current round state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// snapshotLocked builds a Snapshot; callers hold e.mu.
func (e *Engine) snapshotLocked() Snapshot {
	tokens := make([]TokenView, len(e.deck))
	for i, tok := range e.deck {
		v := TokenView{Revealed: tok.Revealed, Retired: tok.Retired}
		if tok.Revealed || tok.Retired {
			v.Symbol = tok.Symbol
		}
		tokens[i] = v
	}
	s := Snapshot{
		Tokens:       tokens,
		Moves:        e.moves,
		MatchedPairs: e.matched,
		PairCount:    e.cfg.PairCount,
		Phase:        e.phase.Current(),
		ElapsedMs:    e.elapsedLocked().Milliseconds(),
	}
	if e.bestTime != nil {
		ms := e.bestTime.Milliseconds()
		s.BestMs = &ms
	}
	return s
}
