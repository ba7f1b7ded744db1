// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/sanitize"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/store"
	"github.com/ManuGH/cylinderd/internal/log"
	"github.com/ManuGH/cylinderd/internal/metrics"
)

// ImportSummary counts what an import stored and skipped.
type ImportSummary struct {
	Cylinders    int                  `json:"cylinders"`
	Transactions int                  `json:"transactions"`
	Duplicates   int                  `json:"duplicates"`
	Rejected     []sanitize.Rejection `json:"rejected,omitempty"`
}

// Import stores a sanitized legacy batch under the write lock. Cylinders are
// upserted as baselines; transactions whose id already exists are counted as
// duplicates and skipped.
func (e *Engine) Import(ctx context.Context, b sanitize.Batch) (ImportSummary, error) {
	ctx = log.ContextWithJobID(ctx, e.newID())
	return WithWriteLock(ctx, e.guard, func(ctx context.Context) (ImportSummary, error) {
		sum := ImportSummary{Rejected: b.Rejected}
		for i := range b.Cylinders {
			if err := e.withPersist(ctx, func(pctx context.Context) error {
				return e.repo.PutCylinder(pctx, &b.Cylinders[i])
			}); err != nil {
				return sum, fmt.Errorf("import cylinder %s: %w", b.Cylinders[i].Serial, err)
			}
			sum.Cylinders++
		}
		for _, tx := range b.Transactions {
			err := e.withPersist(ctx, func(pctx context.Context) error {
				return e.repo.AppendTransaction(pctx, tx)
			})
			switch {
			case errors.Is(err, store.ErrDuplicate):
				sum.Duplicates++
			case err != nil:
				return sum, fmt.Errorf("import transaction %s: %w", tx.ID, err)
			default:
				sum.Transactions++
			}
		}

		metrics.AddImportRecords("cylinder", "stored", sum.Cylinders)
		metrics.AddImportRecords("transaction", "stored", sum.Transactions)
		metrics.AddImportRecords("transaction", "duplicate", sum.Duplicates)
		rejectedCyl, rejectedTx := 0, 0
		for _, r := range b.Rejected {
			if r.Kind == "cylinder" {
				rejectedCyl++
			} else {
				rejectedTx++
			}
		}
		metrics.AddImportRecords("cylinder", "rejected", rejectedCyl)
		metrics.AddImportRecords("transaction", "rejected", rejectedTx)

		logger := log.WithContext(ctx, e.logger)
		logger.Info().
			Str(log.FieldEvent, "cylinder.imported").
			Int("cylinders", sum.Cylinders).
			Int("transactions", sum.Transactions).
			Int("duplicates", sum.Duplicates).
			Int("rejected", len(sum.Rejected)).
			Msg("legacy import finished")
		return sum, nil
	})
}

func (e *Engine) withPersist(ctx context.Context, fn func(context.Context) error) error {
	pctx, cancel := e.persistCtx(ctx)
	defer cancel()
	return fn(pctx)
}
