// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Cylinder is the canonical baseline record of one physical cylinder.
// Status and HolderID are a snapshot cache; business logic re-derives them
// from the transaction log before use.
type Cylinder struct {
	Serial         string    `json:"serial"`
	GasType        string    `json:"gas_type,omitempty"`
	Capacity       string    `json:"capacity,omitempty"`
	OwnerID        string    `json:"owner_id,omitempty"`
	Status         Status    `json:"status"`
	HolderID       string    `json:"holder_id"`
	ChargingExpiry time.Time `json:"charging_expiry,omitzero"`
	LastInspection time.Time `json:"last_inspection,omitzero"`
	Deleted        bool      `json:"deleted,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitzero"`
}

// Clone returns a copy that shares no memory with c.
func (c *Cylinder) Clone() *Cylinder {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// Key returns the normalized serial used to join against the transaction log.
func (c *Cylinder) Key() string {
	return NormalizeSerial(c.Serial)
}

// Transaction is one immutable event in a cylinder's history.
type Transaction struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Type           TxType    `json:"type"`
	Serial         string    `json:"serial"`
	CounterpartyID string    `json:"counterparty_id,omitempty"`
	WorkerID       string    `json:"worker_id,omitempty"`
	Memo           string    `json:"memo,omitempty"`
}

// Customer is a directory entry a cylinder can be delivered to.
type Customer struct {
	ID   string       `json:"id" yaml:"id"`
	Name string       `json:"name" yaml:"name"`
	Kind CustomerKind `json:"kind" yaml:"kind"`
}

// DerivedState is the status/holder pair computed from a cylinder's history.
type DerivedState struct {
	Status   Status `json:"status"`
	HolderID string `json:"holder_id"`
}

// NormalizeSerial folds compatibility characters (full-width digits and
// letters from legacy input), trims whitespace and upper-cases the serial.
func NormalizeSerial(serial string) string {
	return strings.ToUpper(strings.TrimSpace(norm.NFKC.String(serial)))
}
