// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
)

// Verification modes.
const (
	VerifyQuick = "quick"
	VerifyFull  = "full"
)

// VerifyIntegrity runs quick_check or integrity_check against a read-only
// handle. A healthy database yields (nil, nil); otherwise the diagnostic rows
// are returned.
func VerifyIntegrity(path string, mode string) ([]string, error) {
	var pragma string
	switch mode {
	case VerifyQuick, "":
		pragma = "PRAGMA quick_check"
	case VerifyFull:
		pragma = "PRAGMA integrity_check"
	default:
		return nil, fmt.Errorf("unknown verify mode %q", mode)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(2000)", path))
	if err != nil {
		return nil, fmt.Errorf("open for verification: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.Query(pragma)
	if err != nil {
		return nil, fmt.Errorf("integrity pragma: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan integrity row: %w", err)
		}
		results = append(results, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(results) == 1 && strings.EqualFold(results[0], "ok"):
		return nil, nil
	case len(results) == 0:
		return []string{"no results returned from integrity check"}, nil
	default:
		return results, nil
	}
}
