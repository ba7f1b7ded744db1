// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Cylinder fields
	FieldSerial   = "serial"
	FieldAction   = "action"
	FieldCode     = "code"
	FieldHolderID = "holder_id"
	FieldTxID     = "tx_id"
	FieldWorkerID = "worker_id"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Storage fields
	FieldBackend = "backend"
	FieldPath    = "path"
)
