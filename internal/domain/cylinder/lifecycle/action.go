// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
)

// Action is an operator-requested lifecycle step.
type Action string

const (
	ActionChargeStart    Action = "charge_start"
	ActionChargeComplete Action = "charge_complete"
	ActionDeliver        Action = "deliver"
	ActionCollect        Action = "collect"
	ActionCollectFull    Action = "collect_full"
	ActionInspectOut     Action = "inspect_out"
	ActionInspectIn      Action = "inspect_in"
	ActionScrap          Action = "scrap"
	ActionReinspect      Action = "reinspect"
)

// ErrUnknownAction is returned for action names outside the table.
var ErrUnknownAction = errors.New("unknown action")

// MemoReinspect prefixes the memo of INSPECT_OUT records created by a reinspection.
const MemoReinspect = "[REINSPECT]"

// Validator is the shape shared by every per-action predicate.
type Validator func(Subject, Params) Result

type actionRule struct {
	validate   Validator
	record     model.TxType
	memoPrefix string
}

var actionTable = map[Action]actionRule{
	ActionChargeStart:    {validate: ValidateChargeStart, record: model.TxChargeStart},
	ActionChargeComplete: {validate: ValidateChargeComplete, record: model.TxChargeComplete},
	ActionDeliver:        {validate: ValidateDelivery, record: model.TxDeliver},
	ActionCollect:        {validate: ValidateCollection, record: model.TxCollect},
	ActionCollectFull:    {validate: ValidateCollection, record: model.TxCollectFull},
	ActionInspectOut:     {validate: ValidateInspectOut, record: model.TxInspectOut},
	ActionInspectIn:      {validate: ValidateInspectIn, record: model.TxInspectIn},
	ActionScrap:          {validate: ValidateScrap, record: model.TxScrap},
	ActionReinspect:      {validate: ValidateReinspect, record: model.TxInspectOut, memoPrefix: MemoReinspect},
}

// Actions lists every known action in a stable order.
var Actions = []Action{
	ActionChargeStart,
	ActionChargeComplete,
	ActionDeliver,
	ActionCollect,
	ActionCollectFull,
	ActionInspectOut,
	ActionInspectIn,
	ActionScrap,
	ActionReinspect,
}

// ParseAction accepts the canonical snake_case name, case-insensitively;
// hyphens are treated as underscores.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if _, ok := actionTable[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// RequiresCustomer reports whether the action names a counterparty customer.
func (a Action) RequiresCustomer() bool {
	switch a {
	case ActionDeliver, ActionCollect, ActionCollectFull:
		return true
	}
	return false
}

// Validate dispatches to the validator registered for a.
func Validate(a Action, s Subject, p Params) (Result, error) {
	rule, ok := actionTable[a]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, a)
	}
	return rule.validate(s, p), nil
}

// RecoveredSubject lifts the LOST flag from s for a forced action. A
// collection finds the cylinder still at its last holder; any other action
// finds it back at the factory, empty.
func RecoveredSubject(a Action, s Subject) Subject {
	if s.State.Status != model.StatusLost {
		return s
	}
	switch a {
	case ActionCollect, ActionCollectFull:
		s.State = model.DerivedState{Status: model.StatusDelivered, HolderID: s.State.HolderID}
	default:
		s.State = model.DerivedState{Status: model.StatusEmpty, HolderID: model.HolderFactory}
	}
	return s
}

// Record describes the transaction an accepted action appends.
type Record struct {
	Type           model.TxType
	CounterpartyID string
	Memo           string
}

// RecordFor builds the transaction content for an accepted action.
func RecordFor(a Action, p Params, memo string) (Record, error) {
	rule, ok := actionTable[a]
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownAction, a)
	}
	rec := Record{Type: rule.record, Memo: strings.TrimSpace(memo)}
	if rule.memoPrefix != "" {
		rec.Memo = strings.TrimSpace(rule.memoPrefix + " " + rec.Memo)
	}
	switch rule.record {
	case model.TxDeliver, model.TxCollect, model.TxCollectFull:
		rec.CounterpartyID = p.customer()
	case model.TxChargeStart, model.TxChargeComplete, model.TxInspectIn:
		rec.CounterpartyID = model.HolderFactory
	case model.TxInspectOut:
		rec.CounterpartyID = model.HolderInspectionAgency
	case model.TxScrap:
		rec.CounterpartyID = model.HolderDisposal
	}
	return rec, nil
}
