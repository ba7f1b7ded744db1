// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sanitize

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
)

// Rejection records one input record that could not be mapped.
type Rejection struct {
	Kind  string `json:"kind"` // "cylinder" or "transaction"
	Index int    `json:"index"`
	Err   string `json:"error"`
}

// Batch is the sanitized content of a legacy export.
type Batch struct {
	Cylinders    []model.Cylinder
	Transactions []model.Transaction
	Rejected     []Rejection
}

type legacyExport struct {
	Cylinders    []Raw `json:"cylinders"`
	Transactions []Raw `json:"transactions"`
}

// Decode reads a legacy JSON export ({"cylinders": [...], "transactions": [...]})
// and sanitizes every record. Malformed records are collected, not fatal;
// only undecodable input fails the whole batch.
func Decode(r io.Reader) (Batch, error) {
	var in legacyExport
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&in); err != nil {
		return Batch{}, fmt.Errorf("decode legacy export: %w", err)
	}
	return Sanitize(in.Cylinders, in.Transactions), nil
}

// Sanitize maps raw records, keeping the first occurrence of each cylinder
// serial and each transaction ID.
func Sanitize(cylinders, transactions []Raw) Batch {
	var b Batch
	seenCyl := make(map[string]struct{}, len(cylinders))
	for i, raw := range cylinders {
		c, err := Cylinder(raw)
		if err != nil {
			b.Rejected = append(b.Rejected, Rejection{Kind: "cylinder", Index: i, Err: err.Error()})
			continue
		}
		if _, dup := seenCyl[c.Serial]; dup {
			b.Rejected = append(b.Rejected, Rejection{Kind: "cylinder", Index: i, Err: "duplicate serial " + c.Serial})
			continue
		}
		seenCyl[c.Serial] = struct{}{}
		b.Cylinders = append(b.Cylinders, c)
	}

	seenTx := make(map[string]struct{}, len(transactions))
	for i, raw := range transactions {
		tx, err := Transaction(raw)
		if err != nil {
			b.Rejected = append(b.Rejected, Rejection{Kind: "transaction", Index: i, Err: err.Error()})
			continue
		}
		if _, dup := seenTx[tx.ID]; dup {
			b.Rejected = append(b.Rejected, Rejection{Kind: "transaction", Index: i, Err: "duplicate id " + tx.ID})
			continue
		}
		seenTx[tx.ID] = struct{}{}
		b.Transactions = append(b.Transactions, tx)
	}
	return b
}
