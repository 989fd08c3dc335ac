// internal/httpserver/server.go
//
// HTTP presentation adapter for the tilepairs engine.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - Round endpoints: POST /game/new, GET /game/{id},
//     POST /game/{id}/tap, POST /game/{id}/restart.
//   - Snapshot push: GET /game/{id}/events (SSE).
//   - Anonymous player cookie keying the durable best-time row.
//
// Notes:
//   - The adapter adds no game logic: it forwards intents and renders
//     whatever snapshot the engine exposes. In-range taps the engine
//     chooses to ignore still return 200 with the unchanged snapshot.
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - The SSE route is mounted outside the request-timeout middleware.

package httpserver

import (
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"tilepairs/internal/config"
	"tilepairs/internal/game"
	"tilepairs/internal/score"
	"tilepairs/internal/session"
)

// Server bundles router, round registry, and the best-time DB handle.
type Server struct {
	r   *chi.Mux
	reg *session.Registry
	db  *sql.DB // nil means best times are kept in memory only
	cfg config.Config
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg config.Config, reg *session.Registry, db *sql.DB) *Server {
	s := &Server{r: chi.NewRouter(), reg: reg, db: db, cfg: cfg}

	// --- middleware ---
	s.r.Use(chimw.RequestID)  // add X-Request-ID
	s.r.Use(chimw.RealIP)     // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)  // recover from panics
	s.r.Use(jsonContentType)  // default JSON responses
	s.r.Use(s.corsFromConfig) // credentials-friendly CORS

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"tilepairs","endpoints":["/health","POST /game/new","GET /game/{id}","POST /game/{id}/tap","POST /game/{id}/restart","GET /game/{id}/events"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})

		r.Post("/game/new", s.handleNewRound)
		r.Get("/game/{id}", s.handleState)
		r.Post("/game/{id}/tap", s.handleTap)
		r.Post("/game/{id}/restart", s.handleRestart)
	})

	// SSE stream lives outside the timeout middleware; it is long-lived.
	s.r.Get("/game/{id}/events", s.handleEvents)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFromConfig enables credentialed CORS for the configured client origin.
func (s *Server) corsFromConfig(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.ClientOrigin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ ROUNDS -------------------------------------

// newRoundRes is the payload for POST /game/new.
type newRoundRes struct {
	GameID string        `json:"gameId"`
	State  game.Snapshot `json:"state"`
}

// handleNewRound creates a round bound to the caller's anonymous player ID,
// so their durable best time follows them across rounds.
func (s *Server) handleNewRound(w http.ResponseWriter, r *http.Request) {
	player := s.ensurePlayerID(w, r)

	round := session.NewRound()
	eng, err := game.New(
		game.Config{
			PairCount:     s.cfg.PairCount,
			MatchDelay:    s.cfg.MatchDelay,
			MismatchDelay: s.cfg.MismatchDelay,
			TickEvery:     s.cfg.TickEvery,
		},
		s.scoreStore(player),
		game.WithListener(round.Broadcast),
		game.WithLogger(log.With().Str("round", round.ID).Logger()),
	)
	if err != nil {
		log.Error().Err(err).Msg("create engine")
		http.Error(w, `{"error":"create_failed"}`, http.StatusInternalServerError)
		return
	}
	round.Engine = eng
	s.reg.Put(round)

	log.Info().Str("round", round.ID).Str("player", player).Msg("round created")
	_ = json.NewEncoder(w).Encode(newRoundRes{GameID: round.ID, State: eng.Snapshot()})
}

// handleState returns the current snapshot.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	round, ok := s.lookup(w, r)
	if !ok {
		return
	}
	_ = json.NewEncoder(w).Encode(round.Engine.Snapshot())
}

// tapReq is the payload for POST /game/{id}/tap.
type tapReq struct {
	Index int `json:"index"`
}

// handleTap forwards a tile-tap intent. The engine defines every invalid
// tap as inert, so the response is always the (possibly unchanged)
// snapshot, never an error.
func (s *Server) handleTap(w http.ResponseWriter, r *http.Request) {
	round, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req tapReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	round.Engine.OnTileTapped(req.Index)
	_ = json.NewEncoder(w).Encode(round.Engine.Snapshot())
}

// handleRestart forwards a restart intent and returns the fresh round.
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	round, ok := s.lookup(w, r)
	if !ok {
		return
	}
	round.Engine.Restart()
	_ = json.NewEncoder(w).Encode(round.Engine.Snapshot())
}

// handleEvents streams snapshots over SSE until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	round, ok := s.lookup(w, r)
	if !ok {
		return
	}
	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		http.Error(w, `{"error":"streaming_unsupported"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := round.Subscribe()
	defer round.Unsubscribe(ch)

	writeEvent := func(snap game.Snapshot) bool {
		data, err := json.Marshal(snap)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	// Current state first, then live updates.
	if !writeEvent(round.Engine.Snapshot()) {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case snap := <-ch:
			if !writeEvent(snap) {
				return
			}
		}
	}
}

// lookup resolves the {id} route param; writes a JSON 404 on miss.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Round, bool) {
	round, err := s.reg.Get(chi.URLParam(r, "id"))
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			log.Warn().Err(err).Msg("round lookup")
		}
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return nil, false
	}
	return round, true
}

// scoreStore picks the best-time backend for a player.
func (s *Server) scoreStore(playerID string) score.Store {
	if s.db == nil {
		return score.NewMemory()
	}
	return score.NewSQLite(s.db, playerID)
}

// --------------------------- player identity -------------------------------

const playerCookieName = "tilepairs_player"

// ensurePlayerID returns an existing player cookie or sets a new one.
// It associates an installation with a stable identifier so the durable
// best time survives across rounds and restarts of the process.
func (s *Server) ensurePlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := genID()
	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   os.Getenv("NODE_ENV") == "production",
		SameSite: func() http.SameSite {
			if os.Getenv("NODE_ENV") == "production" {
				return http.SameSiteNoneMode
			}
			return http.SameSiteLaxMode
		}(),
		Expires: time.Now().Add(180 * 24 * time.Hour),
	})
	return id
}

// genID creates a 22-char URL-safe, crypto-random identifier (no padding).
func genID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	s := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(b[:])
	if len(s) > 22 {
		return s[:22]
	}
	return s
}
