package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS expenses (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		amount TEXT NOT NULL,
		tx_date TIMESTAMPTZ NULL,
		tx_time TEXT NULL,
		merchant_name TEXT NOT NULL DEFAULT '',
		counterparty_handle TEXT NOT NULL DEFAULT '',
		transaction_ref TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		raw_text TEXT NOT NULL DEFAULT '',
		confidence DOUBLE PRECISION NOT NULL,
		strategy TEXT NOT NULL,
		duplicate_of UUID NULL,
		origin_name TEXT NOT NULL DEFAULT '',
		occurred_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS expenses_user_occurred ON expenses (user_id, occurred_at)`,
	`CREATE TABLE IF NOT EXISTS usage_stats (
		user_id UUID PRIMARY KEY,
		processed BIGINT NOT NULL DEFAULT 0,
		accepted BIGINT NOT NULL DEFAULT 0,
		rejected BIGINT NOT NULL DEFAULT 0
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		tx_date TIMESTAMP NULL,
		tx_time TEXT NULL,
		merchant_name TEXT NOT NULL DEFAULT '',
		counterparty_handle TEXT NOT NULL DEFAULT '',
		transaction_ref TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		raw_text TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL,
		strategy TEXT NOT NULL,
		duplicate_of TEXT NULL,
		origin_name TEXT NOT NULL DEFAULT '',
		occurred_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS expenses_user_occurred ON expenses (user_id, occurred_at)`,
	`CREATE TABLE IF NOT EXISTS usage_stats (
		user_id TEXT PRIMARY KEY,
		processed INTEGER NOT NULL DEFAULT 0,
		accepted INTEGER NOT NULL DEFAULT 0,
		rejected INTEGER NOT NULL DEFAULT 0
	)`,
}

// Migrate creates the tables the pipeline's collaborators need. It is idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if d.Dialect == dialect.Postgres {
		stmts = postgresSchema
	}
	for _, s := range stmts {
		if _, err := d.SQL.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
