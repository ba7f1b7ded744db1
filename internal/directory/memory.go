// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package directory

import (
	"context"
	"sync"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
)

// MemoryDirectory is an in-process Directory.
type MemoryDirectory struct {
	mu        sync.RWMutex
	customers map[string]model.Customer
}

// NewMemoryDirectory seeds a directory with customers. Invalid entries are skipped.
func NewMemoryDirectory(customers ...model.Customer) *MemoryDirectory {
	d := &MemoryDirectory{customers: make(map[string]model.Customer, len(customers))}
	for _, c := range customers {
		if n, err := Normalize(c); err == nil {
			d.customers[n.ID] = n
		}
	}
	return d
}

func (d *MemoryDirectory) Get(_ context.Context, id string) (model.Customer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.customers[id]
	if !ok {
		return model.Customer{}, ErrUnknownCustomer
	}
	return c, nil
}

func (d *MemoryDirectory) List(_ context.Context) ([]model.Customer, error) {
	d.mu.RLock()
	out := make([]model.Customer, 0, len(d.customers))
	for _, c := range d.customers {
		out = append(out, c)
	}
	d.mu.RUnlock()
	sortCustomers(out)
	return out, nil
}

func (d *MemoryDirectory) Put(_ context.Context, c model.Customer) error {
	n, err := Normalize(c)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.customers[n.ID] = n
	d.mu.Unlock()
	return nil
}

// replace swaps the whole set (file reloads).
func (d *MemoryDirectory) replace(customers map[string]model.Customer) {
	d.mu.Lock()
	d.customers = customers
	d.mu.Unlock()
}

func (d *MemoryDirectory) len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.customers)
}

func (d *MemoryDirectory) Close() error { return nil }
