// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package store persists the append-only cylinder transaction log and the
// per-cylinder snapshot cache.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate transaction id")
)

// Repository is the system of record for cylinders and their history.
//
// Contract:
//   - The transaction log is append-only; IDs are unique.
//   - Every returned value is a copy; callers never alias internal storage.
//   - Serial arguments are matched after model.NormalizeSerial.
//   - Commit appends one transaction and writes the snapshot atomically.
type Repository interface {
	// GetCylinder returns ErrNotFound for unknown serials.
	GetCylinder(ctx context.Context, serial string) (*model.Cylinder, error)
	// PutCylinder upserts a baseline record (registration and import).
	PutCylinder(ctx context.Context, c *model.Cylinder) error
	ListCylinders(ctx context.Context) ([]*model.Cylinder, error)

	// History returns serial's transactions oldest first.
	History(ctx context.Context, serial string) ([]model.Transaction, error)
	// ListTransactions returns the whole log oldest first.
	ListTransactions(ctx context.Context) ([]model.Transaction, error)
	// AppendTransaction appends without touching the snapshot (historical import).
	AppendTransaction(ctx context.Context, tx model.Transaction) error
	// Commit appends tx and replaces the snapshot in one atomic unit.
	// On ErrDuplicate neither is written.
	Commit(ctx context.Context, tx model.Transaction, snapshot *model.Cylinder) error

	Close() error
}

// sortLog orders transactions oldest first, ties broken by ID.
func sortLog(txs []model.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Timestamp.Equal(txs[j].Timestamp) {
			return txs[i].Timestamp.Before(txs[j].Timestamp)
		}
		return txs[i].ID < txs[j].ID
	})
}

func sortCylinders(cs []*model.Cylinder) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Serial < cs[j].Serial })
}

// canonical returns a copy of c keyed by its normalized serial.
func canonical(c *model.Cylinder) model.Cylinder {
	cp := *c
	cp.Serial = model.NormalizeSerial(c.Serial)
	return cp
}

func canonicalTx(tx model.Transaction) model.Transaction {
	tx.Serial = model.NormalizeSerial(tx.Serial)
	return tx
}

func toNS(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNS(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
