// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/ManuGH/cylinderd/internal/audit"
)

// runAuditCLI runs the anomaly detector once and writes the report.
func runAuditCLI(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cylinderd audit", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var configPath, out string
	fs.StringVar(&configPath, "config", "", "path to config file (YAML)")
	fs.StringVar(&out, "out", "", "report file (JSON); relative paths resolve against the data dir")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if out == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --out is required")
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

	list, err := a.engine.Anomalies(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Audit failed: %v\n", err)
		return 1
	}

	auditLog := audit.NewLogger()
	auditLog.Anomalies(list)

	path := cfg.ResolvePath(out)
	if err := audit.WriteReport(path, audit.NewReport(time.Now(), list)); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	auditLog.Log(audit.Event{
		Type:     audit.EventReportWritten,
		Actor:    "cli",
		Action:   "anomaly report",
		Resource: path,
		Result:   "success",
	})

	_, _ = fmt.Fprintf(stdout, "%d anomalies written to %s\n", len(list), path)
	return 0
}
