// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResult_Variants(t *testing.T) {
	ok := OK()
	assert.True(t, ok.Success())
	assert.Equal(t, CodeNone, ok.Code())
	assert.Empty(t, ok.Warning())
	assert.NoError(t, ok.Err())

	w := Warn("%s: soon", MarkerNearExpiry)
	assert.True(t, w.Success())
	assert.Equal(t, "NEAR_EXPIRY: soon", w.Warning())
	assert.Empty(t, w.Message())

	e := Reject(CodeStatusMismatch, "bad %d", 1)
	assert.False(t, e.Success())
	assert.Equal(t, "bad 1", e.Message())
	assert.Empty(t, e.Warning())
}

func TestResult_And(t *testing.T) {
	a := Warn("first")
	b := Warn("second")
	assert.Equal(t, "first; second", a.And(b).Warning())
	assert.Equal(t, "second", OK().And(b).Warning())

	blocked := Reject(CodeDiscarded, "gone")
	assert.Equal(t, blocked, blocked.And(b))
	assert.Equal(t, a, a.And(OK()))
}

func TestValidationError_Classes(t *testing.T) {
	tests := []struct {
		code     Code
		terminal bool
		missing  bool
		conflict bool
	}{
		{CodeStatusMismatch, false, false, true},
		{CodeLocationMismatch, false, false, true},
		{CodeAlreadyDelivered, false, false, true},
		{CodeAlreadyCharging, false, false, true},
		{CodeAlreadyInInspection, false, false, true},
		{CodeCylinderLost, true, false, false},
		{CodeDiscarded, true, false, false},
		{CodeMissingParameter, false, true, false},
	}
	assert.Len(t, tests, len(Codes))
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := fmt.Errorf("apply: %w", Reject(tt.code, "x").Err())
			assert.True(t, errors.Is(err, ErrBlocked))
			assert.Equal(t, tt.terminal, errors.Is(err, ErrTerminal))
			assert.Equal(t, tt.missing, errors.Is(err, ErrMissingInput))
			assert.Equal(t, tt.conflict, errors.Is(err, ErrStateConflict))

			code, ok := CodeOf(err)
			assert.True(t, ok)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestCode_Overridable(t *testing.T) {
	for _, c := range Codes {
		want := c == CodeLocationMismatch || c == CodeCylinderLost
		assert.Equal(t, want, c.Overridable(), string(c))
	}
}
