// internal/config/config.go
//
// Environment configuration for the tilepairs server.
// Loads .env in development (if present), then parses tagged env vars with
// defaults. Validation failures are fatal at startup, never mid-round.

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full server configuration.
type Config struct {
	Port         string `env:"PORT" envDefault:"5180"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	ClientOrigin string `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`

	// DBPath is the SQLite file holding best times. Empty disables
	// durability; best times then live in memory for the process lifetime.
	DBPath string `env:"DB_PATH" envDefault:"./data/tilepairs.db"`

	PairCount     int           `env:"PAIR_COUNT" envDefault:"8"`
	MatchDelay    time.Duration `env:"MATCH_DELAY" envDefault:"350ms"`
	MismatchDelay time.Duration `env:"MISMATCH_DELAY" envDefault:"900ms"`
	TickEvery     time.Duration `env:"TICK_EVERY" envDefault:"100ms"`
}

// Load reads .env (best effort) and the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.PairCount < 1 {
		return Config{}, fmt.Errorf("PAIR_COUNT must be >= 1, got %d", cfg.PairCount)
	}
	if cfg.MatchDelay <= 0 || cfg.MismatchDelay <= 0 || cfg.TickEvery <= 0 {
		return Config{}, fmt.Errorf("delays and tick cadence must be positive")
	}
	return cfg, nil
}
