// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"errors"
	"sync"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
)

// MemoryRepository is an in-process Repository for tests and local iteration.
// Not durable.
type MemoryRepository struct {
	mu sync.RWMutex

	cylinders map[string]model.Cylinder
	log       []model.Transaction
	bySerial  map[string][]int // serial -> indexes into log
	ids       map[string]struct{}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		cylinders: make(map[string]model.Cylinder),
		bySerial:  make(map[string][]int),
		ids:       make(map[string]struct{}),
	}
}

func (m *MemoryRepository) Close() error { return nil }

func (m *MemoryRepository) GetCylinder(ctx context.Context, serial string) (*model.Cylinder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cylinders[model.NormalizeSerial(serial)]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryRepository) PutCylinder(ctx context.Context, c *model.Cylinder) error {
	if c == nil {
		return errors.New("nil cylinder")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := canonical(c)
	m.mu.Lock()
	m.cylinders[cp.Serial] = cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryRepository) ListCylinders(ctx context.Context) ([]*model.Cylinder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]*model.Cylinder, 0, len(m.cylinders))
	for _, c := range m.cylinders {
		cp := c
		out = append(out, &cp)
	}
	m.mu.RUnlock()
	sortCylinders(out)
	return out, nil
}

func (m *MemoryRepository) History(ctx context.Context, serial string) ([]model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	idx := m.bySerial[model.NormalizeSerial(serial)]
	out := make([]model.Transaction, 0, len(idx))
	for _, i := range idx {
		out = append(out, m.log[i])
	}
	m.mu.RUnlock()
	sortLog(out)
	return out, nil
}

func (m *MemoryRepository) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := append([]model.Transaction(nil), m.log...)
	m.mu.RUnlock()
	sortLog(out)
	return out, nil
}

func (m *MemoryRepository) AppendTransaction(ctx context.Context, tx model.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(canonicalTx(tx))
}

func (m *MemoryRepository) Commit(ctx context.Context, tx model.Transaction, snapshot *model.Cylinder) error {
	if snapshot == nil {
		return errors.New("nil snapshot")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.appendLocked(canonicalTx(tx)); err != nil {
		return err
	}
	cp := canonical(snapshot)
	m.cylinders[cp.Serial] = cp
	return nil
}

func (m *MemoryRepository) appendLocked(tx model.Transaction) error {
	if _, dup := m.ids[tx.ID]; dup {
		return ErrDuplicate
	}
	m.ids[tx.ID] = struct{}{}
	m.log = append(m.log, tx)
	m.bySerial[tx.Serial] = append(m.bySerial[tx.Serial], len(m.log)-1)
	return nil
}
