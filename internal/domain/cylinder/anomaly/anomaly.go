// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package anomaly runs the advisory consistency pass over the whole
// cylinder set. Nothing here blocks a transition.
package anomaly

import (
	"fmt"
	"sort"
	"time"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/lifecycle"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
)

// Type classifies an anomaly.
type Type string

const (
	TypeStatusHolderMismatch Type = "STATUS_HOLDER_MISMATCH"
	TypeUnknownCustomer      Type = "UNKNOWN_CUSTOMER"
	TypeLongDelivered        Type = "LONG_DELIVERED"
	TypeSnapshotDrift        Type = "SNAPSHOT_DRIFT"
	TypeOrphanTransaction    Type = "ORPHAN_TRANSACTION"
)

// Types lists every anomaly type in report order.
var Types = []Type{
	TypeStatusHolderMismatch,
	TypeUnknownCustomer,
	TypeLongDelivered,
	TypeSnapshotDrift,
	TypeOrphanTransaction,
}

// Anomaly is one advisory finding.
type Anomaly struct {
	Serial      string `json:"serial"`
	Type        Type   `json:"type"`
	Description string `json:"description"`
}

// Options tunes the long-tail heuristic.
type Options struct {
	// LongTailFactor flags a delivery older than factor × the peer median.
	LongTailFactor float64
	// LongTailMinAge suppresses long-tail findings younger than this.
	LongTailMinAge time.Duration
}

// DefaultOptions returns the long-tail defaults.
func DefaultOptions() Options {
	return Options{
		LongTailFactor: 3,
		LongTailMinAge: 90 * 24 * time.Hour,
	}
}

// Input is one detection run. A nil KnownCustomer disables the
// unknown-customer check; a zero Now disables the long-tail check.
type Input struct {
	Cylinders     []model.Cylinder
	Transactions  []model.Transaction
	KnownCustomer func(id string) bool
	Now           time.Time
	Options       Options
}

type delivered struct {
	serial string
	holder string
	since  time.Time
}

// Detect returns the findings sorted by serial, then type.
func Detect(in Input) []Anomaly {
	opts := in.Options
	if opts.LongTailFactor <= 0 {
		opts.LongTailFactor = DefaultOptions().LongTailFactor
	}

	bySerial := make(map[string][]model.Transaction)
	for _, tx := range in.Transactions {
		key := model.NormalizeSerial(tx.Serial)
		bySerial[key] = append(bySerial[key], tx)
	}

	var (
		out   []Anomaly
		peers []delivered
		known = make(map[string]struct{}, len(in.Cylinders))
	)
	add := func(serial string, t Type, format string, args ...any) {
		out = append(out, Anomaly{Serial: serial, Type: t, Description: fmt.Sprintf(format, args...)})
	}

	for _, cyl := range in.Cylinders {
		serial := cyl.Key()
		known[serial] = struct{}{}
		if cyl.Deleted {
			continue
		}
		txs := bySerial[serial]
		state := lifecycle.DeriveState(cyl, txs)

		switch {
		case state.Status == model.StatusDelivered && state.HolderID == "":
			add(serial, TypeStatusHolderMismatch, "status DELIVERED without a holder")
		case state.Status == model.StatusDelivered && model.IsSentinelHolder(state.HolderID):
			add(serial, TypeStatusHolderMismatch, "status DELIVERED but holder is %s", state.HolderID)
		case state.Status.AtFactory() && state.HolderID != model.HolderFactory:
			add(serial, TypeStatusHolderMismatch, "status %s but holder is %s", state.Status, state.HolderID)
		}

		if state.Status == model.StatusDelivered && state.HolderID != "" && !model.IsSentinelHolder(state.HolderID) &&
			in.KnownCustomer != nil && !in.KnownCustomer(state.HolderID) {
			add(serial, TypeUnknownCustomer, "delivered to unknown customer %q", state.HolderID)
		}

		if len(txs) > 0 && (cyl.Status != state.Status || cyl.HolderID != state.HolderID) {
			add(serial, TypeSnapshotDrift, "snapshot %s/%s, history says %s/%s",
				cyl.Status, cyl.HolderID, state.Status, state.HolderID)
		}

		if state.Status == model.StatusDelivered {
			if last, ok := lifecycle.LastOfType(serial, txs, model.TxDeliver); ok {
				peers = append(peers, delivered{serial: serial, holder: state.HolderID, since: last.Timestamp})
			}
		}
	}

	if !in.Now.IsZero() {
		out = append(out, longTail(peers, in.Now, opts)...)
	}

	orphans := make([]string, 0)
	for serial := range bySerial {
		if _, ok := known[serial]; !ok {
			orphans = append(orphans, serial)
		}
	}
	for _, serial := range orphans {
		add(serial, TypeOrphanTransaction, "%d transaction(s) reference an unregistered cylinder", len(bySerial[serial]))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Serial != out[j].Serial {
			return out[i].Serial < out[j].Serial
		}
		return typeRank(out[i].Type) < typeRank(out[j].Type)
	})
	return out
}

func longTail(peers []delivered, now time.Time, opts Options) []Anomaly {
	if len(peers) == 0 {
		return nil
	}
	ages := make([]time.Duration, len(peers))
	for i, p := range peers {
		ages[i] = now.Sub(p.since)
	}
	median := medianOf(ages)
	threshold := time.Duration(float64(median) * opts.LongTailFactor)

	var out []Anomaly
	for i, p := range peers {
		age := ages[i]
		if age <= threshold || age <= opts.LongTailMinAge {
			continue
		}
		out = append(out, Anomaly{
			Serial: p.serial,
			Type:   TypeLongDelivered,
			Description: fmt.Sprintf("at %s for %d days (peer median %d days)",
				p.holder, int(age.Hours()/24), int(median.Hours()/24)),
		})
	}
	return out
}

func medianOf(in []time.Duration) time.Duration {
	s := append([]time.Duration(nil), in...)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func typeRank(t Type) int {
	for i, known := range Types {
		if known == t {
			return i
		}
	}
	return len(Types)
}

// Count tallies findings by type.
func Count(list []Anomaly) map[Type]int {
	out := make(map[Type]int, len(Types))
	for _, a := range list {
		out[a.Type]++
	}
	return out
}
