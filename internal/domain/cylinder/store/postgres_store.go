// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const defaultPostgresDSN = "postgres://localhost/cylinderd?sslmode=disable"

// PostgresRepository implements Repository on PostgreSQL through pgx.
type PostgresRepository struct {
	sqlRepository
	DB *sql.DB
}

// NewPostgresRepository connects to dsn and applies the schema.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p := &PostgresRepository{
		sqlRepository: sqlRepository{db: db, dollar: true, isDuplicate: isPgUniqueViolation},
		DB:            db,
	}
	if err := p.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (p *PostgresRepository) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cylinders (
			serial TEXT PRIMARY KEY,
			gas_type TEXT NOT NULL DEFAULT '',
			capacity TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			holder_id TEXT NOT NULL DEFAULT '',
			charging_expiry_ns BIGINT NOT NULL DEFAULT 0,
			last_inspection_ns BIGINT NOT NULL DEFAULT 0,
			deleted BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at_ns BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			serial TEXT NOT NULL,
			type TEXT NOT NULL,
			counterparty_id TEXT NOT NULL DEFAULT '',
			worker_id TEXT NOT NULL DEFAULT '',
			memo TEXT NOT NULL DEFAULT '',
			occurred_at_ns BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_serial_time ON transactions(serial, occurred_at_ns)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_type_time ON transactions(type, occurred_at_ns)`,
	}
	for _, stmt := range stmts {
		if _, err := p.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure postgres schema: %w", err)
		}
	}
	return nil
}
