// internal/score/sqlite.go
//
// SQLite-backed best-time store.
// Responsibilities:
//   - Opening the database with safe defaults (WAL, busy timeout, FKs).
//   - Applying the idempotent schema.
//   - Compare-and-update of one best-time row per player.
//
// The stored value is a textual millisecond count. A row that fails to
// parse (or is negative) is treated as "no best recorded" rather than an
// error, and the next successful Offer simply overwrites it.

package score

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS best_times (
    player_id  TEXT PRIMARY KEY,
    best_ms    TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

// Open opens (and creates if missing) the SQLite database file and applies
// the schema.
func Open(dsn string) (*sql.DB, error) {
	// Ensure directory exists for ./data/app.db, etc.
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

// SQLite persists one best time per player ID.
type SQLite struct {
	db       *sql.DB
	playerID string
}

// NewSQLite binds a store to a player's row. The row is created lazily on
// the first Offer.
func NewSQLite(db *sql.DB, playerID string) *SQLite {
	return &SQLite{db: db, playerID: playerID}
}

// Load reads the stored best. Missing or unparseable rows report ok=false.
func (s *SQLite) Load(ctx context.Context) (time.Duration, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT best_ms FROM best_times WHERE player_id=?`, s.playerID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load best time: %w", err)
	}
	return parseBest(raw)
}

// Offer persists candidate if it beats the stored best and returns the
// resulting best. The read-compare-write runs in one transaction.
func (s *SQLite) Offer(ctx context.Context, candidate time.Duration) (time.Duration, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("offer best time: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT best_ms FROM best_times WHERE player_id=?`, s.playerID,
	).Scan(&raw)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("offer best time: %w", err)
	}
	if err == nil {
		if stored, ok, _ := parseBest(raw); ok && stored <= candidate {
			return stored, nil
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO best_times (player_id, best_ms, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT(player_id) DO UPDATE SET
            best_ms = excluded.best_ms,
            updated_at = excluded.updated_at`,
		s.playerID, strconv.FormatInt(candidate.Milliseconds(), 10), now,
	); err != nil {
		return 0, fmt.Errorf("offer best time: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("offer best time: %w", err)
	}
	return candidate, nil
}

// parseBest decodes a stored millisecond count. Corrupt values degrade to
// "nothing stored", never to an error.
func parseBest(raw string) (time.Duration, bool, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || ms < 0 {
		return 0, false, nil
	}
	return time.Duration(ms) * time.Millisecond, true, nil
}
