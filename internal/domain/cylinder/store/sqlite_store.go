// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/ManuGH/cylinderd/internal/persistence/sqlite"
)

const sqliteSchemaVersion = 2

// SqliteRepository implements Repository on a WAL-mode SQLite file.
type SqliteRepository struct {
	sqlRepository
	DB *sql.DB
}

// NewSqliteRepository opens (and migrates) the database at dbPath.
func NewSqliteRepository(dbPath string) (*SqliteRepository, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	s := &SqliteRepository{
		sqlRepository: sqlRepository{db: db, isDuplicate: isSqliteConstraint},
		DB:            db,
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cylinder store: migration failed: %w", err)
	}
	return s, nil
}

func isSqliteConstraint(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}

func (s *SqliteRepository) migrate() error {
	var currentVersion int
	if err := s.DB.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion >= sqliteSchemaVersion {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS cylinders (
		serial TEXT PRIMARY KEY,
		gas_type TEXT NOT NULL DEFAULT '',
		capacity TEXT NOT NULL DEFAULT '',
		owner_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		holder_id TEXT NOT NULL DEFAULT '',
		charging_expiry_ns INTEGER NOT NULL DEFAULT 0,
		last_inspection_ns INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		updated_at_ns INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		serial TEXT NOT NULL,
		type TEXT NOT NULL,
		counterparty_id TEXT NOT NULL DEFAULT '',
		worker_id TEXT NOT NULL DEFAULT '',
		memo TEXT NOT NULL DEFAULT '',
		occurred_at_ns INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_serial_time ON transactions(serial, occurred_at_ns);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}

	// v1 kept the log without a type index; the lost sweep scans by type.
	if currentVersion < 2 {
		if _, err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_transactions_type_time ON transactions(type, occurred_at_ns)"); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", sqliteSchemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}
