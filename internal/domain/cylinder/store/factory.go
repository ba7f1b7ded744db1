// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/ManuGH/cylinderd/internal/log"
)

// Backend names accepted by OpenRepository.
const (
	BackendMemory   = "memory"
	BackendSqlite   = "sqlite"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// Config selects and locates a repository backend.
type Config struct {
	Backend string
	// Path is the sqlite file or badger directory.
	Path string
	// DSN is the postgres connection string.
	DSN string
}

// OpenRepository opens the configured backend wrapped with metrics.
// An empty backend means sqlite.
func OpenRepository(ctx context.Context, cfg Config) (Repository, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendSqlite
	}

	var (
		repo Repository
		err  error
	)
	switch backend {
	case BackendMemory:
		repo = NewMemoryRepository()
	case BackendSqlite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite backend requires a path")
		}
		repo, err = NewSqliteRepository(cfg.Path)
	case BackendBadger:
		repo, err = OpenBadgerRepository(cfg.Path)
	case BackendPostgres:
		repo, err = NewPostgresRepository(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger := log.WithComponent("store")
	logger.Info().
		Str(log.FieldBackend, backend).
		Str(log.FieldPath, cfg.Path).
		Msg("cylinder repository opened")
	return NewInstrumentedRepository(repo, backend), nil
}
