// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"errors"
	"fmt"
)

// Error classes for errors.Is matching on *ValidationError.
var (
	// ErrBlocked matches every blocking validation error.
	ErrBlocked = errors.New("transition blocked")
	// ErrTerminal matches errors raised because the cylinder is scrapped or lost.
	ErrTerminal = errors.New("cylinder in terminal state")
	// ErrMissingInput matches errors raised for absent caller parameters.
	ErrMissingInput = errors.New("missing required parameter")
	// ErrStateConflict matches wrong-status and wrong-holder errors.
	ErrStateConflict = errors.New("cylinder state conflict")
)

// ValidationError is the error form of a blocking Result.
type ValidationError struct {
	Code   Code
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Is maps the code onto its error classes.
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrBlocked:
		return true
	case ErrTerminal:
		return e.Code == CodeDiscarded || e.Code == CodeCylinderLost
	case ErrMissingInput:
		return e.Code == CodeMissingParameter
	case ErrStateConflict:
		switch e.Code {
		case CodeStatusMismatch, CodeLocationMismatch, CodeAlreadyDelivered,
			CodeAlreadyCharging, CodeAlreadyInInspection:
			return true
		}
	}
	return false
}

// CodeOf extracts the validation code from err, if any.
func CodeOf(err error) (Code, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Code, true
	}
	return CodeNone, false
}
