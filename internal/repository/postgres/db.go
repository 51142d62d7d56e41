package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// Schema creates the ledger tables. Each table carries a seq column so the
// ledger keeps insertion order and can evict its oldest rows.
const Schema = `
CREATE TABLE IF NOT EXISTS trips (
	seq                BIGSERIAL PRIMARY KEY,
	id                 TEXT UNIQUE NOT NULL,
	status             TEXT NOT NULL,
	started_at         TIMESTAMPTZ NOT NULL,
	ended_at           TIMESTAMPTZ,
	distance_km        DOUBLE PRECISION NOT NULL DEFAULT 0,
	fare               DOUBLE PRECISION NOT NULL DEFAULT 0,
	commission         DOUBLE PRECISION NOT NULL DEFAULT 0,
	fuel_cost_estimate DOUBLE PRECISION NOT NULL DEFAULT 0,
	pickup             TEXT NOT NULL,
	dropoff            TEXT NOT NULL,
	payment_method     TEXT NOT NULL,
	customer_id        TEXT,
	notes              TEXT,
	path               JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS expenses (
	seq      BIGSERIAL PRIMARY KEY,
	id       TEXT UNIQUE NOT NULL,
	date     TIMESTAMPTZ NOT NULL,
	category TEXT NOT NULL,
	amount   DOUBLE PRECISION NOT NULL,
	notes    TEXT
);

CREATE TABLE IF NOT EXISTS customers (
	seq         BIGSERIAL PRIMARY KEY,
	id          TEXT UNIQUE NOT NULL,
	name        TEXT NOT NULL,
	phone       TEXT,
	notes       TEXT,
	total_spent DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_trips INTEGER NOT NULL DEFAULT 0
);
`

// withTx runs fn inside a transaction, committing on success.
func withTx(ctx context.Context, db *sql.DB, fn func(q Querier) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// evictOldest keeps only the newest max rows of table.
func evictOldest(ctx context.Context, q Querier, table string, max int) error {
	query := fmt.Sprintf(
		`DELETE FROM %s WHERE seq NOT IN (SELECT seq FROM %s ORDER BY seq DESC LIMIT $1)`,
		table, table,
	)
	_, err := q.ExecContext(ctx, query, max)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
