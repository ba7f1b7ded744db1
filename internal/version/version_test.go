// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	prev := Commit
	Commit = "abc123"
	t.Cleanup(func() { Commit = prev })

	assert.Contains(t, String(), "commit: abc123")
	assert.Contains(t, String(), Version)
}
