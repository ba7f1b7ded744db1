// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
)

// legacyFullMarker matches collection memos written before COLLECT_FULL existed.
// Those records encoded "collected full" only in free text: a "[FULL]" tag,
// "collect full" / "collected full", or a memo that is just "full".
var legacyFullMarker = regexp.MustCompile(`(?i)\[full\]|\bcollect(ed)?[ _-]full\b|^\s*full\s*$`)

// IsFullCollection decides whether a collection returned a full cylinder.
//
// Legacy compatibility: both the dedicated COLLECT_FULL type and a COLLECT
// carrying the legacy memo marker count as evidence. Neither encoding may be
// dropped without breaking replay of historical logs.
func IsFullCollection(tx model.Transaction) bool {
	switch tx.Type {
	case model.TxCollectFull:
		return true
	case model.TxCollect:
		return legacyFullMarker.MatchString(tx.Memo)
	}
	return false
}

// History returns the transactions that belong to serial, newest first.
// Callers may pass a superset of the log; foreign serials are dropped.
// Equal timestamps are ordered by ID so replay is deterministic.
func History(serial string, txs []model.Transaction) []model.Transaction {
	key := model.NormalizeSerial(serial)
	out := make([]model.Transaction, 0, len(txs))
	for _, tx := range txs {
		if model.NormalizeSerial(tx.Serial) == key {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// DeriveState recomputes a cylinder's status and holder from its history.
// It is pure: no I/O, no mutation of its inputs.
func DeriveState(cyl model.Cylinder, txs []model.Transaction) model.DerivedState {
	history := History(cyl.Serial, txs)

	for _, tx := range history {
		if tx.Type == model.TxScrap {
			return model.DerivedState{Status: model.StatusScrapped, HolderID: model.HolderDisposal}
		}
	}

	if len(history) == 0 {
		return baseline(cyl)
	}

	st := fromTransaction(history[0], cyl)
	st.HolderID = strings.TrimSpace(st.HolderID)
	return st
}

func baseline(cyl model.Cylinder) model.DerivedState {
	st := model.DerivedState{
		Status:   cyl.Status,
		HolderID: strings.TrimSpace(cyl.HolderID),
	}
	if st.Status == "" {
		st.Status = model.StatusEmpty
	}
	if st.HolderID == "" {
		st.HolderID = model.HolderFactory
	}
	return st
}

func fromTransaction(tx model.Transaction, cyl model.Cylinder) model.DerivedState {
	switch tx.Type {
	case model.TxDeliver:
		return model.DerivedState{Status: model.StatusDelivered, HolderID: tx.CounterpartyID}
	case model.TxCollect, model.TxCollectFull:
		if IsFullCollection(tx) {
			return model.DerivedState{Status: model.StatusFull, HolderID: model.HolderFactory}
		}
		return model.DerivedState{Status: model.StatusEmpty, HolderID: model.HolderFactory}
	case model.TxChargeStart:
		return model.DerivedState{Status: model.StatusCharging, HolderID: model.HolderFactory}
	case model.TxChargeComplete:
		return model.DerivedState{Status: model.StatusFull, HolderID: model.HolderFactory}
	case model.TxInspectOut:
		return model.DerivedState{Status: model.StatusInInspection, HolderID: model.HolderInspectionAgency}
	case model.TxInspectIn:
		return model.DerivedState{Status: model.StatusEmpty, HolderID: model.HolderFactory}
	case model.TxLost:
		holder := tx.CounterpartyID
		if strings.TrimSpace(holder) == "" {
			holder = cyl.HolderID
		}
		return model.DerivedState{Status: model.StatusLost, HolderID: holder}
	case model.TxScrap:
		return model.DerivedState{Status: model.StatusScrapped, HolderID: model.HolderDisposal}
	}
	// Unknown types never reach the reducer through the sanitizer; fall back
	// to the snapshot rather than inventing a state.
	return baseline(cyl)
}

// LastOfType returns the most recent transaction of type t in serial's history.
func LastOfType(serial string, txs []model.Transaction, t model.TxType) (model.Transaction, bool) {
	for _, tx := range History(serial, txs) {
		if tx.Type == t {
			return tx, true
		}
	}
	return model.Transaction{}, false
}
