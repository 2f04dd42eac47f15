package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Digital-Creators-Team/prize-wheel-module/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// Connect opens a PostgreSQL connection pool and verifies it
func Connect(cfg config.PostgresConfig, logger zerolog.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(1 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.Info().
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("Connected to PostgreSQL")
	return db, nil
}

// Close closes the connection pool
func Close(db *sqlx.DB, logger zerolog.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logger.Error().Err(err).Msg("Error closing PostgreSQL connection")
		return
	}
	logger.Info().Msg("PostgreSQL connection closed")
}
