// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ManuGH/cylinderd/internal/audit"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/sanitize"
)

func runImportCLI(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cylinderd import", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var configPath, file string
	fs.StringVar(&configPath, "config", "", "path to config file (YAML)")
	fs.StringVar(&file, "file", "", "legacy JSON export ({\"cylinders\": [...], \"transactions\": [...]})")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if file == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --file is required")
		return 2
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	// #nosec G304 -- operator-supplied import file
	f, err := os.Open(file)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = f.Close() }()

	batch, err := sanitize.Decode(f)
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

	sum, err := a.engine.Import(ctx, batch)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Import failed: %v\n", err)
		return 1
	}
	audit.NewLogger().Import("cli", file, sum.Cylinders, sum.Transactions, sum.Duplicates, len(sum.Rejected))

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(sum)
	return 0
}
