// internal/game/deck.go
//
// Deck generation for the tile-matching engine.
// Responsibilities:
//   - Build a deck of 2×pairCount tokens, two per symbol identity.
//   - Shuffle with an explicit unbiased Fisher–Yates pass.
//
// Symbol identities come from a fixed in-package table; the deck generator
// never produces more pairs than the table can name.

package game

import (
	"fmt"
	"math/rand/v2"
)

// symbolNames is the pool of symbol identities. The reference configuration
// uses the first eight.
var symbolNames = []string{
	"anchor", "bell", "comet", "dragon",
	"ember", "falcon", "glacier", "harbor",
	"iris", "juniper", "koi", "lantern",
}

// Generate builds a shuffled deck of 2×pairCount tokens, two per symbol.
// Token IDs are assigned before shuffling, so they are stable handles into
// the symbol pairing regardless of board position.
//
// pairCount outside [1, len(symbolNames)] is a construction-time contract
// violation and returns an error; there are no runtime error conditions.
func Generate(pairCount int) (Deck, error) {
	if pairCount < 1 || pairCount > len(symbolNames) {
		return nil, fmt.Errorf("pair count must be in [1, %d], got %d", len(symbolNames), pairCount)
	}
	deck := make(Deck, 0, 2*pairCount)
	for i := 0; i < pairCount; i++ {
		deck = append(deck,
			Token{ID: 2 * i, Symbol: symbolNames[i]},
			Token{ID: 2*i + 1, Symbol: symbolNames[i]},
		)
	}
	shuffle(deck)
	return deck, nil
}

// shuffle applies an in-place Fisher–Yates pass: walk from the last index
// down to 1, swapping with a uniformly chosen index in [0, i]. Uniform over
// all permutations, no bias toward any fixed order.
func shuffle(d Deck) {
	for i := len(d) - 1; i >= 1; i-- {
		j := rand.IntN(i + 1)
		d[i], d[j] = d[j], d[i]
	}
}
