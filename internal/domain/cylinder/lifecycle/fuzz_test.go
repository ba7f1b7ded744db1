// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"testing"
	"time"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
)

// FuzzDeriveStateInvariants replays arbitrary histories encoded as bytes
// (one byte per transaction type) and checks reducer invariants.
func FuzzDeriveStateInvariants(f *testing.F) {
	f.Add([]byte{0, 1, 3, 4}, "CUST-1")
	f.Add([]byte{7, 0, 0}, "")
	f.Add([]byte{}, "X")

	f.Fuzz(func(t *testing.T, seq []byte, customer string) {
		cyl := model.Cylinder{Serial: "fz-1"}
		txs := make([]model.Transaction, 0, len(seq))
		scrapped := false
		for i, b := range seq {
			typ := model.TxTypes[int(b)%len(model.TxTypes)]
			if typ == model.TxScrap {
				scrapped = true
			}
			txs = append(txs, model.Transaction{
				ID:             string(rune('a' + i%26)),
				Timestamp:      t0.Add(time.Duration(i) * time.Minute),
				Type:           typ,
				Serial:         "FZ-1",
				CounterpartyID: customer,
			})
		}

		got := DeriveState(cyl, txs)
		if again := DeriveState(cyl, txs); again != got {
			t.Fatalf("non-deterministic: %+v vs %+v", got, again)
		}
		if !got.Status.Valid() {
			t.Fatalf("invalid status %q", got.Status)
		}
		if scrapped && got.Status != model.StatusScrapped {
			t.Fatalf("scrap must be absorbing, got %+v", got)
		}
		if got.Status.AtFactory() && got.HolderID != model.HolderFactory {
			t.Fatalf("factory status with holder %q", got.HolderID)
		}
	})
}
