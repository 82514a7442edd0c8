// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/50mmer/statusai/internal/common/config"

	_ "github.com/lib/pq"
)

type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// Schema creates the tables used by the result store and the entitlement
// checker.
const Schema = `
CREATE TABLE IF NOT EXISTS score_results (
	id          UUID PRIMARY KEY,
	run_id      TEXT NOT NULL,
	user_id     TEXT NOT NULL DEFAULT '',
	result      JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS score_results_user_created_idx ON score_results (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS calculation_states (
	user_id     TEXT PRIMARY KEY,
	state       JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_subscriptions (
	user_id     TEXT PRIMARY KEY,
	tier        TEXT NOT NULL,
	has_paid    BOOLEAN NOT NULL DEFAULT false,
	expires_at  TIMESTAMPTZ
);`

// Migrate applies Schema.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("postgres migrate failed: %w", err)
	}
	return nil
}
