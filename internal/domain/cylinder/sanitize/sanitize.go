// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package sanitize maps heterogeneous persisted records onto the canonical
// cylinder model. Legacy exports mix camelCase and snake_case field names,
// string and numeric timestamps, and lower-case enum spellings; nothing past
// this package sees a raw record.
package sanitize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
	"github.com/google/uuid"
)

// ErrMalformed marks records that cannot be mapped to the canonical shape.
var ErrMalformed = errors.New("malformed record")

// Raw is one decoded persisted record.
type Raw map[string]any

// Field alias tables. The first alias is the canonical snake_case name.
var (
	cylSerial         = []string{"serial_number", "serialNumber", "serial", "serial_no", "serialNo"}
	cylGasType        = []string{"gas_type", "gasType", "gas"}
	cylCapacity       = []string{"capacity", "volume"}
	cylOwner          = []string{"owner_id", "ownerId", "owner"}
	cylStatus         = []string{"status", "current_status", "currentStatus"}
	cylHolder         = []string{"current_holder_id", "currentHolderId", "holder_id", "holderId", "location"}
	cylChargingExpiry = []string{"charging_expiry_date", "chargingExpiryDate", "charging_expiry", "chargingExpiry", "expiry_date", "expiryDate"}
	cylLastInspection = []string{"last_inspection_date", "lastInspectionDate", "last_inspection", "lastInspection"}
	cylDeleted        = []string{"is_deleted", "isDeleted", "deleted"}
	cylUpdated        = []string{"updated_at", "updatedAt"}

	txID           = []string{"id", "transaction_id", "transactionId"}
	txTimestamp    = []string{"timestamp", "created_at", "createdAt", "date", "occurred_at", "occurredAt"}
	txType         = []string{"type", "transaction_type", "transactionType", "action"}
	txSerial       = []string{"serial_number", "serialNumber", "cylinder_serial", "cylinderSerial", "serial", "cylinder_id", "cylinderId"}
	txCounterparty = []string{"customer_id", "customerId", "counterparty_id", "counterpartyId", "holder_id", "holderId"}
	txWorker       = []string{"worker_id", "workerId", "user_id", "userId"}
	txMemo         = []string{"memo", "note", "notes", "remark"}
)

var statusAliases = map[string]model.Status{
	"INSPECTION": model.StatusInInspection,
	"INSPECTING": model.StatusInInspection,
	"DISCARDED":  model.StatusScrapped,
	"SCRAP":      model.StatusScrapped,
	"CHARGED":    model.StatusFull,
}

var holderAliases = map[string]string{
	"FACTORY":           model.HolderFactory,
	"PLANT":             model.HolderFactory,
	"INSPECTION_AGENCY": model.HolderInspectionAgency,
	"INSPECTION":        model.HolderInspectionAgency,
	"DISPOSAL":          model.HolderDisposal,
	"DISPOSED":          model.HolderDisposal,
}

// namespace for IDs synthesized for legacy transactions that carry none.
var legacyIDSpace = uuid.MustParse("6f1c2a7e-8b0d-4c55-9d3e-2a4b5c6d7e8f")

// Cylinder maps a raw cylinder record.
func Cylinder(raw Raw) (model.Cylinder, error) {
	serial := model.NormalizeSerial(str(raw, cylSerial))
	if serial == "" {
		return model.Cylinder{}, fmt.Errorf("%w: cylinder without serial number", ErrMalformed)
	}
	c := model.Cylinder{
		Serial:   serial,
		GasType:  strings.TrimSpace(str(raw, cylGasType)),
		Capacity: strings.TrimSpace(str(raw, cylCapacity)),
		OwnerID:  strings.TrimSpace(str(raw, cylOwner)),
		HolderID: Holder(str(raw, cylHolder)),
	}

	var err error
	if c.Status, err = Status(str(raw, cylStatus)); err != nil {
		return model.Cylinder{}, fmt.Errorf("cylinder %s: %w", serial, err)
	}
	if c.ChargingExpiry, err = timeField(raw, cylChargingExpiry); err != nil {
		return model.Cylinder{}, fmt.Errorf("cylinder %s charging expiry: %w", serial, err)
	}
	if c.LastInspection, err = timeField(raw, cylLastInspection); err != nil {
		return model.Cylinder{}, fmt.Errorf("cylinder %s last inspection: %w", serial, err)
	}
	if c.UpdatedAt, err = timeField(raw, cylUpdated); err != nil {
		return model.Cylinder{}, fmt.Errorf("cylinder %s updated at: %w", serial, err)
	}
	c.Deleted = boolField(raw, cylDeleted)
	return c, nil
}

// Transaction maps a raw transaction record. Records without an ID get a
// deterministic one derived from their content so re-imports stay idempotent.
func Transaction(raw Raw) (model.Transaction, error) {
	serial := model.NormalizeSerial(str(raw, txSerial))
	if serial == "" {
		return model.Transaction{}, fmt.Errorf("%w: transaction without cylinder reference", ErrMalformed)
	}
	typ, err := TxType(str(raw, txType))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("transaction for %s: %w", serial, err)
	}
	ts, err := timeField(raw, txTimestamp)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("transaction for %s: %w", serial, err)
	}
	if ts.IsZero() {
		return model.Transaction{}, fmt.Errorf("%w: transaction for %s without timestamp", ErrMalformed, serial)
	}

	tx := model.Transaction{
		ID:             strings.TrimSpace(str(raw, txID)),
		Timestamp:      ts,
		Type:           typ,
		Serial:         serial,
		CounterpartyID: Holder(str(raw, txCounterparty)),
		WorkerID:       strings.TrimSpace(str(raw, txWorker)),
		Memo:           strings.TrimSpace(str(raw, txMemo)),
	}
	if tx.ID == "" {
		seed := fmt.Sprintf("%s|%s|%d|%s|%s", tx.Serial, tx.Type, tx.Timestamp.UnixNano(), tx.CounterpartyID, tx.Memo)
		tx.ID = uuid.NewSHA1(legacyIDSpace, []byte(seed)).String()
	}
	return tx, nil
}

// Status maps a persisted status spelling; blank maps to blank.
func Status(s string) (model.Status, error) {
	key := enumKey(s)
	if key == "" {
		return "", nil
	}
	if st := model.Status(key); st.Valid() {
		return st, nil
	}
	if st, ok := statusAliases[key]; ok {
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrMalformed, s)
}

// TxType maps a persisted transaction type spelling.
func TxType(s string) (model.TxType, error) {
	key := enumKey(s)
	if t := model.TxType(key); t.Valid() {
		return t, nil
	}
	if key == "COLLECTFULL" {
		return model.TxCollectFull, nil
	}
	return "", fmt.Errorf("%w: unknown transaction type %q", ErrMalformed, s)
}

// Holder canonicalizes sentinel holder spellings; customer IDs are only trimmed.
func Holder(s string) string {
	trimmed := strings.TrimSpace(s)
	if h, ok := holderAliases[enumKey(trimmed)]; ok {
		return h
	}
	return trimmed
}

func enumKey(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

func lookup(raw Raw, aliases []string) (any, bool) {
	for _, k := range aliases {
		if v, ok := raw[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func str(raw Raw, aliases []string) string {
	v, ok := lookup(raw, aliases)
	if !ok {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case fmt.Stringer:
		return x.String()
	case float64:
		return fmt.Sprintf("%.0f", x)
	default:
		return fmt.Sprint(x)
	}
}

func boolField(raw Raw, aliases []string) bool {
	v, ok := lookup(raw, aliases)
	if !ok {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	case float64:
		return x != 0
	case int:
		return x != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1", "y", "yes":
			return true
		}
	}
	return false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

func timeField(raw Raw, aliases []string) (time.Time, error) {
	v, ok := lookup(raw, aliases)
	if !ok {
		return time.Time{}, nil
	}
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return fromEpoch(n), nil
		}
		f, err := x.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: unparseable time %q", ErrMalformed, x)
		}
		return fromEpoch(int64(f)), nil
	case float64:
		return fromEpoch(int64(x)), nil
	case int64:
		return fromEpoch(x), nil
	case int:
		return fromEpoch(int64(x)), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, nil
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: unparseable time %q", ErrMalformed, s)
	}
	return time.Time{}, fmt.Errorf("%w: unsupported time value %T", ErrMalformed, v)
}

// fromEpoch accepts seconds or milliseconds; anything past year 2286 in
// seconds is read as milliseconds.
func fromEpoch(n int64) time.Time {
	if n > 1e10 || n < -1e10 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
