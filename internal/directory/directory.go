// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package directory resolves customer ids for the anomaly pass and the API.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
)

var (
	ErrUnknownCustomer = errors.New("unknown customer")
	ErrInvalidCustomer = errors.New("invalid customer")
)

// Directory is a customer store keyed by id.
type Directory interface {
	// Get returns ErrUnknownCustomer for ids not in the directory.
	Get(ctx context.Context, id string) (model.Customer, error)
	// List returns every customer sorted by id.
	List(ctx context.Context) ([]model.Customer, error)
	Put(ctx context.Context, c model.Customer) error
	Close() error
}

// Normalize trims c and defaults its kind. Sentinel holder ids are rejected:
// they name internal locations, not customers.
func Normalize(c model.Customer) (model.Customer, error) {
	c.ID = strings.TrimSpace(c.ID)
	c.Name = strings.TrimSpace(c.Name)
	if c.ID == "" {
		return c, fmt.Errorf("%w: empty id", ErrInvalidCustomer)
	}
	if model.IsSentinelHolder(c.ID) {
		return c, fmt.Errorf("%w: %s is a reserved holder id", ErrInvalidCustomer, c.ID)
	}
	switch c.Kind {
	case "":
		c.Kind = model.CustomerBusiness
	case model.CustomerBusiness, model.CustomerIndividual, model.CustomerFactory:
	default:
		return c, fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidCustomer, c.ID, c.Kind)
	}
	return c, nil
}

func sortCustomers(cs []model.Customer) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].ID < cs[j].ID })
}
