// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "fmt"

// Code is the closed set of blocking validation outcomes.
type Code string

const (
	CodeNone                Code = ""
	CodeStatusMismatch      Code = "STATUS_MISMATCH"
	CodeLocationMismatch    Code = "LOCATION_MISMATCH"
	CodeAlreadyDelivered    Code = "ALREADY_DELIVERED"
	CodeAlreadyCharging     Code = "ALREADY_CHARGING"
	CodeAlreadyInInspection Code = "ALREADY_IN_INSPECTION"
	CodeCylinderLost        Code = "CYLINDER_LOST"
	CodeDiscarded           Code = "DISCARDED"
	CodeMissingParameter    Code = "MISSING_PARAMETER"
)

// Codes lists every blocking code.
var Codes = []Code{
	CodeStatusMismatch,
	CodeLocationMismatch,
	CodeAlreadyDelivered,
	CodeAlreadyCharging,
	CodeAlreadyInInspection,
	CodeCylinderLost,
	CodeDiscarded,
	CodeMissingParameter,
}

// Overridable reports whether an operator may force past this code.
// Only physical-location disagreements qualify; destroyed cylinders and
// missing input never do.
func (c Code) Overridable() bool {
	return c == CodeLocationMismatch || c == CodeCylinderLost
}

// Kind tags a Result.
type Kind int

const (
	KindOK Kind = iota
	KindWarning
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindWarning:
		return "warning"
	case KindError:
		return "error"
	}
	return "unknown"
}

// Warning markers embedded in advisory messages.
const (
	MarkerExpired    = "EXPIRED"
	MarkerNearExpiry = "NEAR_EXPIRY"
	MarkerForced     = "FORCED"
)

// Result is the tagged outcome of a validator. Exactly one variant is set:
// OK, Warning (success carrying an advisory) or Error (carrying a Code).
type Result struct {
	kind    Kind
	code    Code
	message string
}

// OK returns a plain success.
func OK() Result { return Result{kind: KindOK} }

// Warn returns a success that carries an operator-visible advisory.
func Warn(format string, args ...any) Result {
	return Result{kind: KindWarning, message: fmt.Sprintf(format, args...)}
}

// Reject returns a blocking result.
func Reject(code Code, format string, args ...any) Result {
	return Result{kind: KindError, code: code, message: fmt.Sprintf(format, args...)}
}

func (r Result) Kind() Kind { return r.kind }

// Success is true for OK and Warning results.
func (r Result) Success() bool { return r.kind != KindError }

// Code is CodeNone unless the result is blocking.
func (r Result) Code() Code { return r.code }

// Warning returns the advisory text of a Warning result.
func (r Result) Warning() string {
	if r.kind == KindWarning {
		return r.message
	}
	return ""
}

// Message returns the human-readable error text of a blocking result.
func (r Result) Message() string {
	if r.kind == KindError {
		return r.message
	}
	return ""
}

// Err converts a blocking result into a *ValidationError; nil otherwise.
func (r Result) Err() error {
	if r.kind != KindError {
		return nil
	}
	return &ValidationError{Code: r.code, Detail: r.message}
}

// And merges an advisory into r. Blocking results are returned unchanged.
func (r Result) And(other Result) Result {
	if r.kind == KindError || other.kind != KindWarning {
		return r
	}
	if r.kind == KindWarning {
		return Result{kind: KindWarning, message: r.message + "; " + other.message}
	}
	return other
}

func (r Result) String() string {
	switch r.kind {
	case KindError:
		return fmt.Sprintf("error(%s): %s", r.code, r.message)
	case KindWarning:
		return "warning: " + r.message
	}
	return "ok"
}
