// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"
)

// Validate reports every problem in cfg, joined.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		add("logLevel %q", cfg.LogLevel)
	}

	switch strings.ToLower(cfg.Store.Backend) {
	case "memory":
	case "sqlite", "badger":
		if cfg.Store.Path == "" {
			add("store.path required for backend %q", cfg.Store.Backend)
		}
	case "postgres":
		if cfg.Store.DSN == "" {
			add("store.dsn required for backend postgres")
		}
	default:
		add("store.backend %q unknown", cfg.Store.Backend)
	}

	if cfg.Engine.LockTimeout <= 0 {
		add("engine.lockTimeout must be positive")
	}
	if cfg.Engine.PersistTimeout <= 0 {
		add("engine.persistTimeout must be positive")
	}
	if cfg.Engine.NearExpiryWindow < 0 {
		add("engine.nearExpiryWindow must not be negative")
	}

	if cfg.Sweeper.Interval < 0 {
		add("sweeper.interval must not be negative")
	}
	if cfg.Sweeper.LostAfterMonths <= 0 {
		add("sweeper.lostAfterMonths must be positive")
	}
	if cfg.Sweeper.RatePerSecond < 0 {
		add("sweeper.ratePerSecond must not be negative")
	}

	if cfg.Anomaly.LongTailFactor <= 1 {
		add("anomaly.longTailFactor must be greater than 1")
	}

	switch strings.ToLower(cfg.Directory.Backend) {
	case "", "memory":
	case "file":
		if cfg.Directory.Path == "" {
			add("directory.path required for backend file")
		}
	case "redis":
		if cfg.Directory.Redis.Addr == "" {
			add("directory.redis.addr required for backend redis")
		}
	default:
		add("directory.backend %q unknown", cfg.Directory.Backend)
	}

	if _, _, err := net.SplitHostPort(cfg.API.ListenAddr); err != nil {
		add("api.listenAddr %q: %v", cfg.API.ListenAddr, err)
	}
	if cfg.API.RateLimit < 0 {
		add("api.rateLimit must not be negative")
	}
	if cfg.API.RateLimit > 0 && cfg.API.RateWindow <= 0 {
		add("api.rateWindow must be positive when rateLimit is set")
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "grpc", "http":
		default:
			add("telemetry.exporter %q unknown", cfg.Telemetry.Exporter)
		}
		if cfg.Telemetry.Endpoint == "" {
			add("telemetry.endpoint required when telemetry is enabled")
		}
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		add("telemetry.samplingRate %v outside [0,1]", cfg.Telemetry.SamplingRate)
	}

	return errors.Join(errs...)
}
