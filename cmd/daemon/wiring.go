// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ManuGH/cylinderd/internal/config"
	"github.com/ManuGH/cylinderd/internal/directory"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/anomaly"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/manager"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/store"
	"github.com/ManuGH/cylinderd/internal/health"
	"github.com/ManuGH/cylinderd/internal/telemetry"
	"github.com/ManuGH/cylinderd/internal/version"
)

// app is the wired runtime shared by the server and the subcommands.
type app struct {
	cfg     config.AppConfig
	repo    store.Repository
	dir     directory.Directory
	engine  *manager.Engine
	sweeper *manager.Sweeper
}

func storeConfig(cfg config.AppConfig) store.Config {
	return store.Config{
		Backend: cfg.Store.Backend,
		Path:    cfg.ResolvePath(cfg.Store.Path),
		DSN:     cfg.Store.DSN,
	}
}

func engineConfig(cfg config.AppConfig) manager.Config {
	return manager.Config{
		LockTimeout:      cfg.Engine.LockTimeout,
		PersistTimeout:   cfg.Engine.PersistTimeout,
		NearExpiryWindow: cfg.Engine.NearExpiryWindow,
		Anomaly: anomaly.Options{
			LongTailFactor: cfg.Anomaly.LongTailFactor,
			LongTailMinAge: cfg.Anomaly.LongTailMinAge,
		},
	}
}

func sweeperConfig(cfg config.AppConfig) manager.SweeperConfig {
	return manager.SweeperConfig{
		Interval:        cfg.Sweeper.Interval,
		LostAfterMonths: cfg.Sweeper.LostAfterMonths,
		RatePerSecond:   cfg.Sweeper.RatePerSecond,
	}
}

func directoryConfig(cfg config.AppConfig) directory.Config {
	return directory.Config{
		Backend: cfg.Directory.Backend,
		Path:    cfg.ResolvePath(cfg.Directory.Path),
		Redis: directory.RedisConfig{
			Addr:     cfg.Directory.Redis.Addr,
			Password: cfg.Directory.Redis.Password,
			DB:       cfg.Directory.Redis.DB,
		},
	}
}

func telemetryConfig(cfg config.AppConfig) telemetry.Config {
	return telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		Environment:    config.ParseString(config.EnvPrefix+"ENVIRONMENT", "production"),
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	}
}

// openApp opens storage and the directory. ctx bounds the directory
// watcher, so callers pass their lifetime context.
func openApp(ctx context.Context, cfg config.AppConfig) (*app, error) {
	if cfg.Store.Backend != store.BackendMemory && cfg.Store.Backend != store.BackendPostgres {
		if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	repo, err := store.OpenRepository(ctx, storeConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	dir, err := directory.Open(ctx, directoryConfig(cfg))
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("open directory: %w", err)
	}

	engine := manager.NewEngine(repo, engineConfig(cfg), manager.WithDirectory(dir))
	return &app{
		cfg:     cfg,
		repo:    repo,
		dir:     dir,
		engine:  engine,
		sweeper: manager.NewSweeper(engine, sweeperConfig(cfg)),
	}, nil
}

// healthProbeSerial is looked up by the store readiness probe; not found
// means the backend answered.
const healthProbeSerial = "HEALTH-PROBE"

// healthManager registers the store, directory and sweeper probes.
func (a *app) healthManager() *health.Manager {
	m := health.NewManager(a.cfg.Version)
	m.RegisterChecker(health.NewFuncChecker("store", func(ctx context.Context) error {
		_, err := a.repo.GetCylinder(ctx, healthProbeSerial)
		if err == nil || errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}))
	m.RegisterChecker(health.NewFuncChecker("directory", func(ctx context.Context) error {
		_, err := a.dir.List(ctx)
		return err
	}))
	if a.cfg.Sweeper.Interval > 0 {
		m.RegisterChecker(health.NewLastRunChecker("lost_sweeper", 2*a.cfg.Sweeper.Interval+time.Minute, a.sweeper.LastRun))
	}
	return m
}

func (a *app) Close() error {
	return errors.Join(a.dir.Close(), a.repo.Close())
}

// loadConfig is shared by every entry point.
func loadConfig(path string) (config.AppConfig, error) {
	return config.NewLoader(path, version.Version).Load()
}
