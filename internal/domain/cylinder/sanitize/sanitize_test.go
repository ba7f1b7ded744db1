// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sanitize

import (
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCylinder_FieldVariants(t *testing.T) {
	want := model.Cylinder{
		Serial:         "AB-100",
		GasType:        "O2",
		Capacity:       "40L",
		OwnerID:        "OWN-1",
		Status:         model.StatusDelivered,
		HolderID:       "CUST-7",
		ChargingExpiry: time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		LastInspection: time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name string
		raw  Raw
	}{
		{
			name: "camelCase",
			raw: Raw{
				"serialNumber": " ab-100 ", "gasType": "O2", "capacity": "40L", "ownerId": "OWN-1",
				"currentStatus": "delivered", "currentHolderId": "CUST-7 ",
				"chargingExpiryDate": "2026-01-31", "lastInspectionDate": "2021-01-31T00:00:00Z",
			},
		},
		{
			name: "snake_case",
			raw: Raw{
				"serial_number": "AB-100", "gas_type": "O2", "capacity": "40L", "owner_id": "OWN-1",
				"current_status": "DELIVERED", "current_holder_id": "CUST-7",
				"charging_expiry_date": "2026/01/31", "last_inspection_date": "2021-01-31 00:00:00",
			},
		},
		{
			name: "short names with epoch millis",
			raw: Raw{
				"serial": "AB-100", "gas": "O2", "volume": "40L", "owner": "OWN-1",
				"status": "Delivered", "location": "CUST-7",
				"chargingExpiry": float64(time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC).UnixMilli()),
				"lastInspection": float64(time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC).Unix()),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cylinder(tt.raw)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("Cylinder mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCylinder_DefaultsAndAliases(t *testing.T) {
	got, err := Cylinder(Raw{"serial": "x1", "status": "inspecting", "holderId": "factory", "isDeleted": "Y"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInInspection, got.Status)
	assert.Equal(t, model.HolderFactory, got.HolderID)
	assert.True(t, got.Deleted)

	got, err = Cylinder(Raw{"serial": "x2"})
	require.NoError(t, err)
	assert.Equal(t, model.Status(""), got.Status)
	assert.False(t, got.Deleted)
}

func TestCylinder_Malformed(t *testing.T) {
	for name, raw := range map[string]Raw{
		"missing serial": {"status": "FULL"},
		"blank serial":   {"serial": "   "},
		"bad status":     {"serial": "A", "status": "melted"},
		"bad date":       {"serial": "A", "chargingExpiryDate": "next tuesday"},
		"bad date type":  {"serial": "A", "chargingExpiryDate": true},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Cylinder(raw)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestTransaction_FieldVariants(t *testing.T) {
	ts := time.Date(2024, 5, 5, 10, 30, 0, 0, time.UTC)
	raws := []Raw{
		{"id": "t1", "createdAt": "2024-05-05T10:30:00Z", "transactionType": "deliver", "cylinderId": "ab-1", "customerId": "C1", "workerId": "W1", "memo": " hi "},
		{"id": "t1", "created_at": "2024-05-05 10:30:00", "transaction_type": "DELIVER", "cylinder_serial": "AB-1", "customer_id": "C1", "user_id": "W1", "note": "hi"},
		{"transaction_id": "t1", "timestamp": float64(ts.UnixMilli()), "action": "Deliver", "serialNumber": "AB-1", "counterpartyId": "C1", "userId": "W1", "notes": "hi"},
	}
	want := model.Transaction{ID: "t1", Timestamp: ts, Type: model.TxDeliver, Serial: "AB-1", CounterpartyID: "C1", WorkerID: "W1", Memo: "hi"}
	for i, raw := range raws {
		got, err := Transaction(raw)
		require.NoError(t, err, "variant %d", i)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("variant %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestTransaction_SerialWinsOverSurrogateID(t *testing.T) {
	tx, err := Transaction(Raw{
		"id": "t1", "type": "DELIVER", "timestamp": "2024-05-05T10:30:00Z",
		"cylinder_id": "42", "serial_number": "SN-001", "customer_id": "C1",
	})
	require.NoError(t, err)
	assert.Equal(t, "SN-001", tx.Serial)

	tx, err = Transaction(Raw{"id": "t2", "type": "COLLECT", "timestamp": "2024-05-06", "cylinderId": "42", "serialNumber": "sn-001"})
	require.NoError(t, err)
	assert.Equal(t, "SN-001", tx.Serial)
}

func TestTransaction_TypeSpellings(t *testing.T) {
	for in, want := range map[string]model.TxType{
		"collect-full":    model.TxCollectFull,
		"collect full":    model.TxCollectFull,
		"COLLECTFULL":     model.TxCollectFull,
		"charge_complete": model.TxChargeComplete,
		"inspect-out":     model.TxInspectOut,
	} {
		got, err := TxType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := TxType("refill")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestTransaction_SynthesizedIDIsDeterministic(t *testing.T) {
	raw := Raw{"timestamp": "2024-01-01", "type": "COLLECT", "serial": "A1", "memo": "collect full"}
	a, err := Transaction(raw)
	require.NoError(t, err)
	b, err := Transaction(raw)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, a.ID, b.ID)

	raw["memo"] = "other"
	c, err := Transaction(raw)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestTransaction_Malformed(t *testing.T) {
	for name, raw := range map[string]Raw{
		"no serial":    {"type": "DELIVER", "timestamp": "2024-01-01"},
		"no type":      {"serial": "A", "timestamp": "2024-01-01"},
		"no timestamp": {"serial": "A", "type": "DELIVER"},
		"bad time":     {"serial": "A", "type": "DELIVER", "timestamp": "yesterday"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Transaction(raw)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestHolder(t *testing.T) {
	assert.Equal(t, model.HolderFactory, Holder(" Factory "))
	assert.Equal(t, model.HolderInspectionAgency, Holder("inspection-agency"))
	assert.Equal(t, model.HolderDisposal, Holder("disposed"))
	assert.Equal(t, "cust-9", Holder(" cust-9 "))
	assert.Equal(t, "", Holder(""))
}

func TestDecode_CollectsRejections(t *testing.T) {
	input := `{
		"cylinders": [
			{"serialNumber": "A1", "status": "full", "currentHolderId": "FACTORY"},
			{"serial_number": "a1", "status": "empty"},
			{"status": "full"}
		],
		"transactions": [
			{"id": "t1", "type": "DELIVER", "cylinderId": "A1", "customerId": "C1", "timestamp": "2024-01-01T00:00:00Z"},
			{"id": "t1", "type": "COLLECT", "cylinderId": "A1", "customerId": "C1", "timestamp": "2024-01-02T00:00:00Z"},
			{"id": "t2", "type": "TELEPORT", "cylinderId": "A1", "timestamp": "2024-01-03T00:00:00Z"}
		]
	}`
	b, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, b.Cylinders, 1)
	require.Len(t, b.Transactions, 1)
	assert.Equal(t, "A1", b.Cylinders[0].Serial)
	assert.Equal(t, "t1", b.Transactions[0].ID)
	require.Len(t, b.Rejected, 4)
	assert.Equal(t, "cylinder", b.Rejected[0].Kind)
	assert.Contains(t, b.Rejected[0].Err, "duplicate serial")
	assert.Equal(t, 2, b.Rejected[1].Index)
	assert.Equal(t, "transaction", b.Rejected[2].Kind)
	assert.Contains(t, b.Rejected[3].Err, "unknown transaction type")
}

func TestDecode_KeepsLargeNumericIDs(t *testing.T) {
	input := `{
		"cylinders": [{"serialNumber": 12345678901234567, "status": "delivered", "currentHolderId": 98765432109876543, "isDeleted": 0}],
		"transactions": [{"id": 9007199254740993, "type": "DELIVER", "serialNumber": 12345678901234567, "customerId": 98765432109876543, "timestamp": 1717200000000}]
	}`
	b, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	require.Empty(t, b.Rejected)
	require.Len(t, b.Cylinders, 1)
	require.Len(t, b.Transactions, 1)

	assert.Equal(t, "12345678901234567", b.Cylinders[0].Serial)
	assert.Equal(t, "98765432109876543", b.Cylinders[0].HolderID)
	assert.False(t, b.Cylinders[0].Deleted)

	tx := b.Transactions[0]
	assert.Equal(t, "9007199254740993", tx.ID)
	assert.Equal(t, "12345678901234567", tx.Serial)
	assert.Equal(t, "98765432109876543", tx.CounterpartyID)
	assert.Equal(t, time.UnixMilli(1717200000000).UTC(), tx.Timestamp)
}

func TestDecode_InvalidJSON(t *testing.T) {
	_, err := Decode(strings.NewReader("{not json"))
	assert.Error(t, err)
}

func FuzzTransaction(f *testing.F) {
	f.Add("A1", "deliver", "2024-01-01", "C1", "memo")
	f.Add("", "", "", "", "")
	f.Add(" ｘ１ ", "COLLECT FULL", "2024/02/03", "factory", "full")

	f.Fuzz(func(t *testing.T, serial, typ, ts, counterparty, memo string) {
		tx, err := Transaction(Raw{"serial": serial, "type": typ, "timestamp": ts, "customerId": counterparty, "memo": memo})
		if err != nil {
			return
		}
		if tx.Serial == "" || tx.ID == "" || tx.Timestamp.IsZero() {
			t.Fatalf("accepted incomplete transaction: %+v", tx)
		}
		if !tx.Type.Valid() {
			t.Fatalf("accepted invalid type %q", tx.Type)
		}
		if strings.TrimSpace(tx.Serial) != tx.Serial {
			t.Fatalf("serial not trimmed: %q", tx.Serial)
		}
	})
}
