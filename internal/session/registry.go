// internal/session/registry.go
//
// Bookkeeping for live rounds hosted by the server.
// Characteristics:
//   - Rounds are keyed by random UUIDs in a map guarded by an RWMutex
//     (concurrent reads allowed, writes exclusive).
//   - Each round carries its snapshot subscribers; publishing never blocks
//     on a slow subscriber.
//   - State is lost when the process restarts; only best times are durable.

package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"tilepairs/internal/game"
)

// ErrNotFound is returned by Get for unknown round IDs.
var ErrNotFound = errors.New("round not found")

// subscriberBuffer bounds how far a snapshot consumer may lag before
// updates are dropped for it.
const subscriberBuffer = 16

// Round couples one engine with its snapshot subscribers.
type Round struct {
	ID     string
	Engine *game.Engine

	mu   sync.Mutex
	subs map[chan game.Snapshot]struct{}
}

// NewRound allocates a round with a fresh ID. The caller attaches the
// engine after constructing it with Broadcast as its listener.
func NewRound() *Round {
	return &Round{
		ID:   uuid.NewString(),
		subs: make(map[chan game.Snapshot]struct{}),
	}
}

// Subscribe registers a snapshot consumer.
func (r *Round) Subscribe() chan game.Snapshot {
	ch := make(chan game.Snapshot, subscriberBuffer)
	r.mu.Lock()
	r.subs[ch] = struct{}{}
	r.mu.Unlock()
	return ch
}

// Unsubscribe removes a consumer. Its channel is not closed; the consumer
// simply stops receiving.
func (r *Round) Unsubscribe(ch chan game.Snapshot) {
	r.mu.Lock()
	delete(r.subs, ch)
	r.mu.Unlock()
}

// Broadcast fans a snapshot out to all subscribers. Sends are non-blocking:
// a consumer with a full buffer misses this update rather than stalling the
// engine.
func (r *Round) Broadcast(s game.Snapshot) {
	r.mu.Lock()
	for ch := range r.subs {
		select {
		case ch <- s:
		default:
		}
	}
	r.mu.Unlock()
}

// Registry holds the live rounds.
type Registry struct {
	mu     sync.RWMutex
	rounds map[string]*Round
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{rounds: make(map[string]*Round)}
}

// Put adds or replaces a round.
func (g *Registry) Put(r *Round) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rounds[r.ID] = r
}

// Get looks up a round by ID.
func (g *Registry) Get(id string) (*Round, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if r, ok := g.rounds[id]; ok {
		return r, nil
	}
	return nil, ErrNotFound
}

// Remove drops a round from the registry.
func (g *Registry) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rounds, id)
}

// Len reports the number of live rounds.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rounds)
}
