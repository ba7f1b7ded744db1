// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ManuGH/cylinderd/internal/api"
	"github.com/ManuGH/cylinderd/internal/config"
	"github.com/ManuGH/cylinderd/internal/log"
	"github.com/ManuGH/cylinderd/internal/telemetry"
	"github.com/ManuGH/cylinderd/internal/version"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "storage":
			os.Exit(runStorageCLI(os.Args[2:], os.Stdout, os.Stderr))
		case "import":
			os.Exit(runImportCLI(os.Args[2:], os.Stdout, os.Stderr))
		case "audit":
			os.Exit(runAuditCLI(os.Args[2:], os.Stdout, os.Stderr))
		case "sweep":
			os.Exit(runSweepCLI(os.Args[2:], os.Stdout, os.Stderr))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	log.Configure(log.Config{Level: "info", Service: "cylinderd", Version: version.Version})
	logger := log.WithComponent("daemon")

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}
	log.Configure(log.Config{Level: cfg.LogLevel, Service: cfg.LogService, Version: cfg.Version})
	logger = log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "daemon.failed").Msg("daemon exited with error")
		os.Exit(1)
	}
	logger.Info().Str(log.FieldEvent, "daemon.stopped").Msg("daemon stopped")
}

// run serves until ctx is canceled or a component fails.
func run(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("daemon")

	tp, err := telemetry.NewProvider(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn().Err(err).Msg("close failed")
		}
	}()

	srv := &http.Server{
		Addr: cfg.API.ListenAddr,
		Handler: api.New(api.Config{
			Version:        cfg.Version,
			RateLimit:      cfg.API.RateLimit,
			RateWindow:     cfg.API.RateWindow,
			TracingService: "cylinderd/http",
			EnableMetrics:  true,
			EnableLogging:  true,
		}, a.engine, a.sweeper, api.WithHealth(a.healthManager())).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Sweeper.Interval > 0 {
		g.Go(func() error { return a.sweeper.Run(gctx) })
	} else {
		logger.Info().Msg("background lost sweep disabled")
	}

	g.Go(func() error {
		logger.Info().
			Str(log.FieldEvent, "http.listen").
			Str("addr", cfg.API.ListenAddr).
			Str("store", cfg.Store.Backend).
			Msg("cylinderd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}
