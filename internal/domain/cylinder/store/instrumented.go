// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cylinder_store_ops_total",
			Help: "Total cylinder repository operations",
		},
		[]string{"backend", "op", "result"}, // result=success/not_found/duplicate/error
	)
	storeLat = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cylinder_store_op_seconds",
			Help:    "Cylinder repository operation latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)
)

// instrumentedRepository wraps any Repository to capture metrics.
type instrumentedRepository struct {
	inner   Repository
	backend string
}

func NewInstrumentedRepository(inner Repository, backend string) Repository {
	return &instrumentedRepository{inner: inner, backend: backend}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	default:
		return "error"
	}
}

func (i *instrumentedRepository) observe(op string, start time.Time, err error) {
	storeOps.WithLabelValues(i.backend, op, resultLabel(err)).Inc()
	storeLat.WithLabelValues(i.backend, op).Observe(time.Since(start).Seconds())
}

func (i *instrumentedRepository) GetCylinder(ctx context.Context, serial string) (c *model.Cylinder, err error) {
	start := time.Now()
	defer func() { i.observe("get_cylinder", start, err) }()
	return i.inner.GetCylinder(ctx, serial)
}

func (i *instrumentedRepository) PutCylinder(ctx context.Context, c *model.Cylinder) (err error) {
	start := time.Now()
	defer func() { i.observe("put_cylinder", start, err) }()
	return i.inner.PutCylinder(ctx, c)
}

func (i *instrumentedRepository) ListCylinders(ctx context.Context) (list []*model.Cylinder, err error) {
	start := time.Now()
	defer func() { i.observe("list_cylinders", start, err) }()
	return i.inner.ListCylinders(ctx)
}

func (i *instrumentedRepository) History(ctx context.Context, serial string) (txs []model.Transaction, err error) {
	start := time.Now()
	defer func() { i.observe("history", start, err) }()
	return i.inner.History(ctx, serial)
}

func (i *instrumentedRepository) ListTransactions(ctx context.Context) (txs []model.Transaction, err error) {
	start := time.Now()
	defer func() { i.observe("list_transactions", start, err) }()
	return i.inner.ListTransactions(ctx)
}

func (i *instrumentedRepository) AppendTransaction(ctx context.Context, tx model.Transaction) (err error) {
	start := time.Now()
	defer func() { i.observe("append_transaction", start, err) }()
	return i.inner.AppendTransaction(ctx, tx)
}

func (i *instrumentedRepository) Commit(ctx context.Context, tx model.Transaction, snapshot *model.Cylinder) (err error) {
	start := time.Now()
	defer func() { i.observe("commit", start, err) }()
	return i.inner.Commit(ctx, tx, snapshot)
}

func (i *instrumentedRepository) Close() error {
	return i.inner.Close()
}
