package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect builds a pgx pool from cfg and verifies connectivity. The
// pool is returned to the caller instead of being held in a package
// global so the store gateway can be injected explicitly.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.User == "" || cfg.Host == "" || cfg.Port == "" || cfg.Name == "" {
		return nil, errors.New("db config incomplete: DB_USER/DB_HOST/DB_PORT/DB_NAME must be set")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Migrate creates the two tables the tracker persists into.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id            TEXT PRIMARY KEY,
			url           TEXT NOT NULL UNIQUE,
			title         TEXT NOT NULL,
			current_price DOUBLE PRECISION NOT NULL,
			image_url     TEXT,
			last_checked  TIMESTAMPTZ NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL,
			highest_price DOUBLE PRECISION,
			lowest_price  DOUBLE PRECISION
		)`,
		`CREATE TABLE IF NOT EXISTS price_history (
			id         TEXT PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products (id),
			price      DOUBLE PRECISION NOT NULL,
			timestamp  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_product_ts
			ON price_history (product_id, timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
