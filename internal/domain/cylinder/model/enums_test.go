// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_IsTerminal(t *testing.T) {
	terminal := map[Status]bool{StatusScrapped: true, StatusLost: true}
	for _, s := range Statuses {
		assert.Equal(t, terminal[s], s.IsTerminal(), "status %s", s)
	}
}

func TestStatus_Valid(t *testing.T) {
	assert.True(t, StatusInInspection.Valid())
	assert.False(t, Status("RETIRED").Valid())
	assert.False(t, Status("").Valid())
}

func TestTxType_Valid(t *testing.T) {
	for _, tt := range TxTypes {
		assert.True(t, tt.Valid(), "type %s", tt)
	}
	assert.False(t, TxType("REFILL").Valid())
}

func TestIsSentinelHolder(t *testing.T) {
	assert.True(t, IsSentinelHolder(HolderFactory))
	assert.True(t, IsSentinelHolder(HolderDisposal))
	assert.False(t, IsSentinelHolder("CUST-001"))
	assert.False(t, IsSentinelHolder(""))
}

func TestNormalizeSerial(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  ab-123 ", "AB-123"},
		{"AB-123", "AB-123"},
		{"\tcyl7\n", "CYL7"},
		{"ＡＢ－１２３", "AB-123"}, // full-width input from legacy terminals
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSerial(tt.in), "input %q", tt.in)
	}
}

func TestCylinder_CloneIsIndependent(t *testing.T) {
	c := &Cylinder{Serial: "A1", Status: StatusFull, HolderID: HolderFactory}
	cp := c.Clone()
	cp.Status = StatusDelivered
	assert.Equal(t, StatusFull, c.Status)
	assert.Nil(t, (*Cylinder)(nil).Clone())
}
