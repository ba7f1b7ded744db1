// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/ManuGH/cylinderd/internal/audit"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/manager"
)

// runSweepCLI runs one lost sweep. --dry-run lists candidates only.
func runSweepCLI(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cylinderd sweep", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var configPath string
	var dryRun bool
	fs.StringVar(&configPath, "config", "", "path to config file (YAML)")
	fs.BoolVar(&dryRun, "dry-run", false, "list candidates without reclassifying")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	a, err := openApp(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = a.Close() }()

	now := time.Now()
	var rep manager.SweepReport
	if dryRun {
		details, err := a.sweeper.Candidates(ctx, now)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Sweep failed: %v\n", err)
			return 1
		}
		rep = manager.SweepReport{Candidates: len(details), Details: details}
	} else {
		rep, err = a.sweeper.SweepOnce(ctx, now)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Sweep failed: %v\n", err)
			return 1
		}
	}
	audit.NewLogger().LostSweep(ctx, "cli", rep.Candidates, rep.Reclassified, dryRun)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(rep)
	return 0
}
