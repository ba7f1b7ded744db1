// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/ManuGH/cylinderd/internal/log"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config selects a directory backend.
type Config struct {
	Backend string
	// Path is the customers YAML file (file backend).
	Path  string
	Redis RedisConfig
}

// Open returns the configured directory. The file backend starts watching
// its file; the watcher stops with ctx or Close.
func Open(ctx context.Context, cfg Config) (Directory, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendMemory:
		return NewMemoryDirectory(), nil
	case BackendFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file directory requires a path")
		}
		d, err := OpenFileDirectory(cfg.Path)
		if err != nil {
			return nil, err
		}
		if err := d.Watch(ctx); err != nil {
			return nil, err
		}
		return d, nil
	case BackendRedis:
		return NewRedisDirectory(ctx, cfg.Redis, log.WithComponent("directory"))
	default:
		return nil, fmt.Errorf("unknown directory backend: %s", cfg.Backend)
	}
}
