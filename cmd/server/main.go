package main

import (
	"database/sql"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tilepairs/internal/config"
	"tilepairs/internal/httpserver"
	"tilepairs/internal/score"
	"tilepairs/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	var db *sql.DB
	if cfg.DBPath != "" {
		db, err = score.Open(cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Msg("open best-time store")
		}
		defer db.Close()
	} else {
		log.Warn().Msg("DB_PATH empty; best times will not survive restarts")
	}

	reg := session.NewRegistry()
	srv := httpserver.New(cfg, reg, db)
	log.Info().Str("port", cfg.Port).Msg("starting tilepairs server")
	if err := srv.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
