// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package sqlite opens SQLite pools with the operational pragmas every
// cylinderd database relies on.
package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite" // pure Go driver
)

// Config holds pool and locking parameters.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
	// Synchronous is the synchronous pragma value; NORMAL is safe under WAL.
	Synchronous string
}

// DefaultConfig returns the configuration used by the cylinder store.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 8,
		Synchronous:  "NORMAL",
	}
}

// DSN builds a modernc DSN that applies the pragmas to every pooled connection.
func DSN(dbPath string, cfg Config) string {
	sync := cfg.Synchronous
	if sync == "" {
		sync = "NORMAL"
	}
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	q.Add("_pragma", fmt.Sprintf("synchronous(%s)", sync))
	q.Add("_pragma", "foreign_keys(ON)")
	return "file:" + dbPath + "?" + q.Encode()
}

// Open initializes a pool in WAL mode and verifies connectivity.
func Open(dbPath string, cfg Config) (*sql.DB, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = DefaultConfig().MaxOpenConns
	}

	db, err := sql.Open("sqlite", DSN(dbPath, cfg))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return db, nil
}
