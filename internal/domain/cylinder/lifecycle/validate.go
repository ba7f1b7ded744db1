// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"strings"
	"time"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
)

const dateLayout = "2006-01-02"

// Subject is the already-derived view of a cylinder that validators consume.
type Subject struct {
	Serial         string
	State          model.DerivedState
	ChargingExpiry time.Time
}

// NewSubject derives the current state of cyl from txs.
func NewSubject(cyl model.Cylinder, txs []model.Transaction) Subject {
	return Subject{
		Serial:         model.NormalizeSerial(cyl.Serial),
		State:          DeriveState(cyl, txs),
		ChargingExpiry: cyl.ChargingExpiry,
	}
}

// Params carries the caller-supplied context of a requested action.
// A zero Now disables expiry advisories.
type Params struct {
	CustomerID       string
	NextExpiry       time.Time
	Now              time.Time
	NearExpiryWindow time.Duration
}

func (p Params) customer() string { return strings.TrimSpace(p.CustomerID) }

func terminal(s Subject) (Result, bool) {
	switch s.State.Status {
	case model.StatusScrapped:
		return Reject(CodeDiscarded, "cylinder %s has been scrapped", s.Serial), true
	case model.StatusLost:
		return Reject(CodeCylinderLost, "cylinder %s is registered as lost (last holder %s)", s.Serial, s.State.HolderID), true
	}
	return Result{}, false
}

func expiryAdvisory(s Subject, p Params) Result {
	if s.ChargingExpiry.IsZero() || p.Now.IsZero() {
		return OK()
	}
	if !p.Now.Before(s.ChargingExpiry) {
		return Warn("%s: charging expiry %s has passed", MarkerExpired, s.ChargingExpiry.Format(dateLayout))
	}
	if p.NearExpiryWindow > 0 && s.ChargingExpiry.Sub(p.Now) <= p.NearExpiryWindow {
		return Warn("%s: charging expiry %s is near", MarkerNearExpiry, s.ChargingExpiry.Format(dateLayout))
	}
	return OK()
}

// ValidateChargeStart checks that a cylinder can be put on the charging line.
// A lost cylinder is flagged rather than silently accepted; an expired
// charging date is advisory only.
func ValidateChargeStart(s Subject, p Params) Result {
	if r, ok := terminal(s); ok {
		return r
	}
	switch s.State.Status {
	case model.StatusDelivered, model.StatusInInspection:
		return Reject(CodeLocationMismatch, "cylinder %s is not at the factory (status %s, holder %s)",
			s.Serial, s.State.Status, s.State.HolderID)
	case model.StatusCharging:
		return Reject(CodeAlreadyCharging, "cylinder %s is already charging", s.Serial)
	case model.StatusEmpty, model.StatusFull:
	default:
		return Reject(CodeStatusMismatch, "cylinder %s cannot be charged in status %s", s.Serial, s.State.Status)
	}
	if s.State.HolderID != model.HolderFactory {
		return Reject(CodeLocationMismatch, "cylinder %s is held by %s, not the factory", s.Serial, s.State.HolderID)
	}
	return expiryAdvisory(s, p)
}

// ValidateChargeComplete requires the cylinder to be charging.
func ValidateChargeComplete(s Subject, _ Params) Result {
	if r, ok := terminal(s); ok {
		return r
	}
	if s.State.Status != model.StatusCharging {
		return Reject(CodeStatusMismatch, "cylinder %s is %s, expected %s", s.Serial, s.State.Status, model.StatusCharging)
	}
	return OK()
}

// ValidateDelivery requires a full cylinder held by the factory.
// A cylinder out at another holder is a hard block.
func ValidateDelivery(s Subject, p Params) Result {
	if r, ok := terminal(s); ok {
		return r
	}
	customer := p.customer()
	if customer == "" {
		return Reject(CodeMissingParameter, "delivery of %s requires a customer id", s.Serial)
	}
	if s.State.Status == model.StatusDelivered && s.State.HolderID == customer {
		return Reject(CodeAlreadyDelivered, "cylinder %s is already delivered to %s", s.Serial, customer)
	}
	if s.State.HolderID != model.HolderFactory {
		return Reject(CodeLocationMismatch, "cylinder %s is held by %s, not the factory", s.Serial, s.State.HolderID)
	}
	if s.State.Status != model.StatusFull {
		return Reject(CodeStatusMismatch, "cylinder %s is %s, expected %s", s.Serial, s.State.Status, model.StatusFull)
	}
	return expiryAdvisory(s, p)
}

// ValidateCollection requires the cylinder to be delivered to the collecting customer.
// It serves both the empty and the full collection variants.
func ValidateCollection(s Subject, p Params) Result {
	if r, ok := terminal(s); ok {
		return r
	}
	customer := p.customer()
	if customer == "" {
		return Reject(CodeMissingParameter, "collection of %s requires a customer id", s.Serial)
	}
	if s.State.Status != model.StatusDelivered {
		return Reject(CodeStatusMismatch, "cylinder %s is %s, expected %s", s.Serial, s.State.Status, model.StatusDelivered)
	}
	if s.State.HolderID != customer {
		return Reject(CodeLocationMismatch, "cylinder %s is held by %s, not %s", s.Serial, s.State.HolderID, customer)
	}
	return OK()
}

// ValidateInspectOut requires an available cylinder at the factory.
// Defective cylinders may also be sent out.
func ValidateInspectOut(s Subject, _ Params) Result {
	if r, ok := terminal(s); ok {
		return r
	}
	switch s.State.Status {
	case model.StatusInInspection:
		return Reject(CodeAlreadyInInspection, "cylinder %s is already at the inspection agency", s.Serial)
	case model.StatusEmpty, model.StatusDefective:
	default:
		return Reject(CodeStatusMismatch, "cylinder %s is %s, expected %s", s.Serial, s.State.Status, model.StatusEmpty)
	}
	if s.State.HolderID != model.HolderFactory {
		return Reject(CodeLocationMismatch, "cylinder %s is held by %s, not the factory", s.Serial, s.State.HolderID)
	}
	return OK()
}

// ValidateInspectIn requires the cylinder to be in inspection and a new expiry date.
func ValidateInspectIn(s Subject, p Params) Result {
	if r, ok := terminal(s); ok {
		return r
	}
	if s.State.Status != model.StatusInInspection {
		return Reject(CodeStatusMismatch, "cylinder %s is %s, expected %s", s.Serial, s.State.Status, model.StatusInInspection)
	}
	if p.NextExpiry.IsZero() {
		return Reject(CodeMissingParameter, "inspection return of %s requires the next expiry date", s.Serial)
	}
	if !p.Now.IsZero() && !p.NextExpiry.After(p.Now) {
		return Warn("%s: next expiry %s is not in the future", MarkerExpired, p.NextExpiry.Format(dateLayout))
	}
	return OK()
}

// ValidateScrap is rejected only for an already scrapped cylinder.
func ValidateScrap(s Subject, _ Params) Result {
	if s.State.Status == model.StatusScrapped {
		return Reject(CodeDiscarded, "cylinder %s has already been scrapped", s.Serial)
	}
	return OK()
}

// ValidateReinspect sends a cylinder back for inspection from almost any state.
func ValidateReinspect(s Subject, _ Params) Result {
	if s.State.Status == model.StatusScrapped {
		return Reject(CodeDiscarded, "cylinder %s has been scrapped", s.Serial)
	}
	return OK()
}
