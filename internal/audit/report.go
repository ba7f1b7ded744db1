// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/anomaly"
	"github.com/google/renameio/v2"
)

// Report is the persisted anomaly report.
type Report struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Total       int                  `json:"total"`
	Counts      map[anomaly.Type]int `json:"counts"`
	Anomalies   []anomaly.Anomaly    `json:"anomalies"`
}

// NewReport summarizes list. Every known type appears in Counts.
func NewReport(at time.Time, list []anomaly.Anomaly) Report {
	counts := anomaly.Count(list)
	for _, t := range anomaly.Types {
		if _, ok := counts[t]; !ok {
			counts[t] = 0
		}
	}
	if list == nil {
		list = []anomaly.Anomaly{}
	}
	return Report{GeneratedAt: at.UTC(), Total: len(list), Counts: counts, Anomalies: list}
}

// WriteReport writes r as indented JSON. Readers see the old file or the new
// one, never a partial write.
func WriteReport(path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pf.Cleanup() }()

	if _, err := pf.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace report: %w", err)
	}
	return nil
}
