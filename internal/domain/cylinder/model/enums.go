// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

// Status is the physical lifecycle state of a cylinder.
type Status string

const (
	StatusEmpty        Status = "EMPTY"
	StatusFull         Status = "FULL"
	StatusDelivered    Status = "DELIVERED"
	StatusCharging     Status = "CHARGING"
	StatusInInspection Status = "IN_INSPECTION"
	StatusDefective    Status = "DEFECTIVE"
	StatusScrapped     Status = "SCRAPPED"
	StatusLost         Status = "LOST"
)

// Statuses lists every status in declaration order.
var Statuses = []Status{
	StatusEmpty,
	StatusFull,
	StatusDelivered,
	StatusCharging,
	StatusInInspection,
	StatusDefective,
	StatusScrapped,
	StatusLost,
}

// IsTerminal reports whether the status cannot be left through normal transitions.
// SCRAPPED is absorbing; LOST can only be left through an explicit override.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusScrapped, StatusLost:
		return true
	}
	return false
}

// AtFactory reports whether the status implies the cylinder is physically at the factory.
func (s Status) AtFactory() bool {
	switch s {
	case StatusEmpty, StatusFull, StatusCharging:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// TxType is the closed set of recorded transaction types.
type TxType string

const (
	TxDeliver        TxType = "DELIVER"
	TxCollect        TxType = "COLLECT"
	TxCollectFull    TxType = "COLLECT_FULL"
	TxChargeStart    TxType = "CHARGE_START"
	TxChargeComplete TxType = "CHARGE_COMPLETE"
	TxInspectOut     TxType = "INSPECT_OUT"
	TxInspectIn      TxType = "INSPECT_IN"
	TxScrap          TxType = "SCRAP"
	TxLost           TxType = "LOST"
)

// TxTypes lists every transaction type.
var TxTypes = []TxType{
	TxDeliver,
	TxCollect,
	TxCollectFull,
	TxChargeStart,
	TxChargeComplete,
	TxInspectOut,
	TxInspectIn,
	TxScrap,
	TxLost,
}

// Valid reports whether t is a known transaction type.
func (t TxType) Valid() bool {
	for _, v := range TxTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Holder sentinels. Any other holder id is a customer id.
const (
	HolderFactory          = "FACTORY"
	HolderInspectionAgency = "INSPECTION_AGENCY"
	HolderDisposal         = "DISPOSAL"

	// WorkerSystem authors synthetic transactions (e.g. lost reclassification).
	WorkerSystem = "SYSTEM"
)

// IsSentinelHolder reports whether id names an internal location rather than a customer.
func IsSentinelHolder(id string) bool {
	switch id {
	case HolderFactory, HolderInspectionAgency, HolderDisposal:
		return true
	}
	return false
}

// CustomerKind classifies directory entries.
type CustomerKind string

const (
	CustomerBusiness   CustomerKind = "business"
	CustomerIndividual CustomerKind = "individual"
	CustomerFactory    CustomerKind = "internal_factory"
)
