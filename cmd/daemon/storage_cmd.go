// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/ManuGH/cylinderd/internal/persistence/sqlite"
)

func runStorageCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printStorageUsage(stdout)
		return 0
	}

	switch args[0] {
	case "verify":
		return runStorageVerify(args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printStorageUsage(stderr)
		return 2
	}
}

func printStorageUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  cylinderd storage verify --path PATH [--mode quick|full]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Flags:")
	_, _ = fmt.Fprintln(w, "  --path string  Path to the SQLite cylinder database")
	_, _ = fmt.Fprintln(w, "  --mode string  Verification mode: quick (default) or full")
}

func runStorageVerify(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cylinderd storage verify", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var path, mode string
	fs.StringVar(&path, "path", "", "Path to the SQLite database file")
	fs.StringVar(&mode, "mode", sqlite.VerifyQuick, "Verification mode: quick or full")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if path == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --path is required")
		return 2
	}
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode != sqlite.VerifyQuick && mode != sqlite.VerifyFull {
		_, _ = fmt.Fprintf(stderr, "Error: invalid mode %q. Use 'quick' or 'full'.\n", mode)
		return 2
	}

	_, _ = fmt.Fprintf(stderr, "Verifying integrity of %s (mode: %s)...\n", path, mode)
	issues, err := sqlite.VerifyIntegrity(path, mode)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Verification failed: %v\n", err)
		return 1
	}
	if len(issues) > 0 {
		_, _ = fmt.Fprintln(stderr, "CORRUPTION DETECTED")
		for _, issue := range issues {
			_, _ = fmt.Fprintf(stderr, "  - %s\n", issue)
		}
		return 1
	}
	_, _ = fmt.Fprintln(stdout, "ok")
	return 0
}
