package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock is an injectable clock that only moves when told to.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// manualScheduler records scheduled resolutions so tests fire them
// deterministically instead of sleeping through real delays.
type manualScheduler struct {
	mu   sync.Mutex
	jobs []scheduledJob
}

type scheduledJob struct {
	delay time.Duration
	fn    func()
}

func (m *manualScheduler) schedule(d time.Duration, fn func()) {
	m.mu.Lock()
	m.jobs = append(m.jobs, scheduledJob{delay: d, fn: fn})
	m.mu.Unlock()
}

func (m *manualScheduler) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

func (m *manualScheduler) lastDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[len(m.jobs)-1].delay
}

// fire runs and clears all recorded jobs, oldest first.
func (m *manualScheduler) fire() {
	m.mu.Lock()
	jobs := m.jobs
	m.jobs = nil
	m.mu.Unlock()
	for _, j := range jobs {
		j.fn()
	}
}

// spyStore records every offer it receives.
type spyStore struct {
	mu     sync.Mutex
	offers []time.Duration
	best   time.Duration
	has    bool
}

func (s *spyStore) Load(context.Context) (time.Duration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.best, s.has, nil
}

func (s *spyStore) Offer(_ context.Context, candidate time.Duration) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers = append(s.offers, candidate)
	if !s.has || candidate < s.best {
		s.best = candidate
		s.has = true
	}
	return s.best, nil
}

func (s *spyStore) offerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.offers)
}

// orderedDeck deals pairs adjacently (0,1 match; 2,3 match; ...) so tests
// can pick matches and mismatches by index.
func orderedDeck(pairCount int) (Deck, error) {
	deck := make(Deck, 0, 2*pairCount)
	for i := 0; i < pairCount; i++ {
		deck = append(deck,
			Token{ID: 2 * i, Symbol: symbolNames[i]},
			Token{ID: 2*i + 1, Symbol: symbolNames[i]},
		)
	}
	return deck, nil
}

func newTestEngine(t *testing.T, pairCount int) (*Engine, *fakeClock, *manualScheduler, *spyStore) {
	t.Helper()
	clk := newFakeClock()
	sched := &manualScheduler{}
	store := &spyStore{}
	eng, err := New(
		Config{PairCount: pairCount, TickEvery: time.Hour},
		store,
		WithNow(clk.now),
		WithScheduler(sched.schedule),
		WithGenerator(orderedDeck),
	)
	require.NoError(t, err)
	return eng, clk, sched, store
}

func requireInvariants(t *testing.T, snap Snapshot) {
	t.Helper()
	retired := 0
	revealed := 0
	for _, tok := range snap.Tokens {
		if tok.Retired {
			require.True(t, tok.Revealed, "retired token must be revealed")
			retired++
		}
		if tok.Revealed {
			revealed++
		}
	}
	require.Equal(t, snap.MatchedPairs, retired/2)
	require.LessOrEqual(t, revealed-retired, 2, "at most two unresolved face-up tokens")
}

func TestNewRejectsBadPairCount(t *testing.T) {
	_, err := New(Config{PairCount: -3}, nil)
	require.Error(t, err)
}

func TestFirstTapStartsRound(t *testing.T) {
	eng, clk, _, _ := newTestEngine(t, 4)
	require.Equal(t, PhaseIdle, eng.Phase())
	require.Zero(t, eng.Elapsed())

	eng.OnTileTapped(0)
	require.Equal(t, PhasePlaying, eng.Phase())

	clk.advance(3 * time.Second)
	require.Equal(t, 3*time.Second, eng.Elapsed())

	snap := eng.Snapshot()
	require.True(t, snap.Tokens[0].Revealed)
	require.Zero(t, snap.Moves, "a single flip is not a move")
	requireInvariants(t, snap)
}

func TestMatchFlow(t *testing.T) {
	eng, _, sched, _ := newTestEngine(t, 4)

	eng.OnTileTapped(0)
	eng.OnTileTapped(1) // same symbol
	require.Equal(t, PhaseResolving, eng.Phase())
	require.Equal(t, 1, eng.Snapshot().Moves)
	require.Equal(t, 1, sched.pending())
	require.Equal(t, DefaultMatchDelay, sched.lastDelay())

	// Taps are inert while the resolution is pending.
	eng.OnTileTapped(2)
	require.False(t, eng.Snapshot().Tokens[2].Revealed)

	sched.fire()
	snap := eng.Snapshot()
	require.Equal(t, PhasePlaying, snap.Phase)
	require.True(t, snap.Tokens[0].Retired)
	require.True(t, snap.Tokens[1].Retired)
	require.Equal(t, 1, snap.MatchedPairs)
	requireInvariants(t, snap)
}

func TestMismatchFlow(t *testing.T) {
	eng, _, sched, _ := newTestEngine(t, 4)

	eng.OnTileTapped(0)
	eng.OnTileTapped(2) // different symbol
	require.Equal(t, 1, eng.Snapshot().Moves)
	require.Equal(t, DefaultMismatchDelay, sched.lastDelay())

	sched.fire()
	snap := eng.Snapshot()
	require.Equal(t, PhasePlaying, snap.Phase)
	require.False(t, snap.Tokens[0].Revealed)
	require.False(t, snap.Tokens[2].Revealed)
	require.Zero(t, snap.MatchedPairs)
	requireInvariants(t, snap)
}

func TestTapInertCases(t *testing.T) {
	eng, _, sched, _ := newTestEngine(t, 4)

	// Out of range: no state change, round not started.
	eng.OnTileTapped(-1)
	eng.OnTileTapped(99)
	require.Equal(t, PhaseIdle, eng.Phase())

	// Re-tapping a face-up token is not a second selection.
	eng.OnTileTapped(0)
	eng.OnTileTapped(0)
	snap := eng.Snapshot()
	require.Zero(t, snap.Moves)
	require.Zero(t, sched.pending())

	// Retired tokens stay inert.
	eng.OnTileTapped(1)
	sched.fire()
	eng.OnTileTapped(0)
	require.Zero(t, sched.pending())
	require.Equal(t, 1, eng.Snapshot().MatchedPairs)
}

func TestWinFreezesElapsedAndOffersOnce(t *testing.T) {
	eng, clk, sched, store := newTestEngine(t, 2)

	eng.OnTileTapped(0)
	eng.OnTileTapped(1)
	sched.fire()

	clk.advance(30 * time.Second)
	eng.OnTileTapped(2)
	eng.OnTileTapped(3)
	clk.advance(5 * time.Second)
	sched.fire()

	require.Equal(t, PhaseWon, eng.Phase())
	require.Equal(t, 35*time.Second, eng.Elapsed())

	// Frozen: the clock moving on must not change the reading.
	clk.advance(time.Minute)
	require.Equal(t, 35*time.Second, eng.Elapsed())

	require.Eventually(t, func() bool { return store.offerCount() == 1 },
		time.Second, 5*time.Millisecond)
	require.Equal(t, []time.Duration{35 * time.Second}, store.offers)

	require.Eventually(t, func() bool {
		best := eng.Snapshot().BestMs
		return best != nil && *best == (35*time.Second).Milliseconds()
	}, time.Second, 5*time.Millisecond)

	// Terminal: further taps are inert.
	eng.OnTileTapped(0)
	require.Equal(t, PhaseWon, eng.Phase())
	require.Zero(t, sched.pending())
}

func TestRestartInvalidatesPendingMatch(t *testing.T) {
	eng, _, sched, _ := newTestEngine(t, 4)

	eng.OnTileTapped(0)
	eng.OnTileTapped(1)
	require.Equal(t, 1, sched.pending())

	eng.Restart()
	require.Equal(t, PhaseIdle, eng.Phase())

	// The stale resolution fires after the restart and must not leak into
	// the new round.
	sched.fire()
	snap := eng.Snapshot()
	require.Equal(t, PhaseIdle, snap.Phase)
	require.Zero(t, snap.MatchedPairs)
	for i, tok := range snap.Tokens {
		require.False(t, tok.Revealed, "token %d leaked from previous round", i)
		require.False(t, tok.Retired, "token %d leaked from previous round", i)
	}
}

func TestRestartInvalidatesPendingMismatch(t *testing.T) {
	eng, _, sched, _ := newTestEngine(t, 4)

	eng.OnTileTapped(0)
	eng.OnTileTapped(2)
	eng.Restart()

	// New round in progress when the stale mismatch fires.
	eng.OnTileTapped(0)
	sched.fire()
	snap := eng.Snapshot()
	require.True(t, snap.Tokens[0].Revealed, "stale mismatch must not flip the new selection back")
	require.Equal(t, PhasePlaying, snap.Phase)
}

func TestRestartIsIdempotent(t *testing.T) {
	eng, clk, sched, _ := newTestEngine(t, 4)

	eng.OnTileTapped(0)
	eng.OnTileTapped(1)
	sched.fire()
	clk.advance(10 * time.Second)

	for i := 0; i < 2; i++ {
		eng.Restart()
		snap := eng.Snapshot()
		require.Equal(t, PhaseIdle, snap.Phase)
		require.Zero(t, snap.Moves)
		require.Zero(t, snap.MatchedPairs)
		require.Zero(t, snap.ElapsedMs)
		require.Len(t, snap.Tokens, 8)
	}
}

func TestSnapshotWithholdsHiddenSymbols(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, 4)

	eng.OnTileTapped(0)
	snap := eng.Snapshot()
	require.NotEmpty(t, snap.Tokens[0].Symbol)
	for i := 1; i < len(snap.Tokens); i++ {
		require.Empty(t, snap.Tokens[i].Symbol, "face-down token %d leaked its symbol", i)
	}
}

func TestBestTimeLoadedAtConstruction(t *testing.T) {
	store := &spyStore{best: 5 * time.Second, has: true}
	eng, err := New(Config{PairCount: 4, TickEvery: time.Hour}, store, WithGenerator(orderedDeck))
	require.NoError(t, err)

	best := eng.Snapshot().BestMs
	require.NotNil(t, best)
	require.Equal(t, (5 * time.Second).Milliseconds(), *best)
}

func TestListenerSeesAcceptedIntents(t *testing.T) {
	var mu sync.Mutex
	var phases []string
	listener := func(s Snapshot) {
		mu.Lock()
		phases = append(phases, s.Phase)
		mu.Unlock()
	}

	clk := newFakeClock()
	sched := &manualScheduler{}
	eng, err := New(
		Config{PairCount: 2, TickEvery: time.Hour},
		&spyStore{},
		WithNow(clk.now),
		WithScheduler(sched.schedule),
		WithGenerator(orderedDeck),
		WithListener(listener),
	)
	require.NoError(t, err)

	eng.OnTileTapped(0)
	eng.OnTileTapped(99) // inert, must not publish
	eng.OnTileTapped(1)
	sched.fire()
	eng.Restart()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{PhasePlaying, PhaseResolving, PhasePlaying, PhaseIdle}, phases)
}
