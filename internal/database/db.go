package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// Config holds database configuration
type Config struct {
	DSN      string
	MaxConns int32
}

// NewDB creates a new database connection
func NewDB(cfg Config, logger zerolog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	// Configure connection pool
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	} else {
		poolConfig.MaxConns = 10
	}
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log := logger.With().Str("component", "database").Logger()
	log.Info().Msg("connected to PostgreSQL")

	return &DB{Pool: pool, log: log}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.log.Info().Msg("database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.log.Info().Msg("running database migrations")

	migrations := []string{
		// Historical pattern corpus: append-only (snapshot, action, outcome)
		// triples with their embeddings.
		`CREATE TABLE IF NOT EXISTS historical_patterns (
			id VARCHAR(64) PRIMARY KEY,
			ticker VARCHAR(20) NOT NULL,
			horizon VARCHAR(20) NOT NULL,
			observed_at TIMESTAMPTZ NOT NULL,
			snapshot JSONB NOT NULL,
			embedding DOUBLE PRECISION[] NOT NULL,
			action VARCHAR(20) NOT NULL,
			actual_return DECIMAL(10, 4) NOT NULL DEFAULT 0,
			days_to_target INT NOT NULL DEFAULT 0,
			successful BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_historical_patterns_ticker ON historical_patterns(ticker)`,
		`CREATE INDEX IF NOT EXISTS idx_historical_patterns_horizon ON historical_patterns(horizon)`,
		`CREATE INDEX IF NOT EXISTS idx_historical_patterns_observed_at ON historical_patterns(observed_at DESC)`,

		// Generated signals. The full signal document lives in payload;
		// scalar columns exist for filtering and dashboards.
		`CREATE TABLE IF NOT EXISTS trading_signals (
			id VARCHAR(64) PRIMARY KEY,
			ticker VARCHAR(20) NOT NULL,
			generated_at TIMESTAMPTZ NOT NULL,
			horizon VARCHAR(20) NOT NULL,
			action VARCHAR(20) NOT NULL,
			strength VARCHAR(20) NOT NULL,
			confidence DECIMAL(5, 4) NOT NULL,
			score DECIMAL(5, 4) NOT NULL,
			risk_level VARCHAR(10),
			payload JSONB NOT NULL,
			valid_until TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trading_signals_ticker ON trading_signals(ticker)`,
		`CREATE INDEX IF NOT EXISTS idx_trading_signals_generated_at ON trading_signals(generated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_trading_signals_action ON trading_signals(action)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.log.Info().Msg("database migrations completed")
	return nil
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
