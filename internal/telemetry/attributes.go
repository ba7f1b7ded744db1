// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by engine, sweeper and HTTP spans.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	CylinderSerialKey = "cylinder.serial"
	CylinderActionKey = "cylinder.action"
	CylinderStatusKey = "cylinder.status"
	CylinderHolderKey = "cylinder.holder"
	CylinderForcedKey = "cylinder.forced"

	ResultKindKey = "result.kind"
	ResultCodeKey = "result.code"

	SweepCandidatesKey   = "sweep.candidates"
	SweepReclassifiedKey = "sweep.reclassified"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// ActionAttributes describes an engine action request.
func ActionAttributes(serial, action string, forced bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(CylinderSerialKey, serial),
		attribute.String(CylinderActionKey, action),
		attribute.Bool(CylinderForcedKey, forced),
	}
}

// StateAttributes describes a derived cylinder state. Empty fields are omitted.
func StateAttributes(status, holder string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if status != "" {
		attrs = append(attrs, attribute.String(CylinderStatusKey, status))
	}
	if holder != "" {
		attrs = append(attrs, attribute.String(CylinderHolderKey, holder))
	}
	return attrs
}

// ResultAttributes describes a validation outcome.
func ResultAttributes(kind, code string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(ResultKindKey, kind)}
	if code != "" {
		attrs = append(attrs, attribute.String(ResultCodeKey, code))
	}
	return attrs
}

// SweepAttributes describes one lost sweep.
func SweepAttributes(candidates, reclassified int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(SweepCandidatesKey, candidates),
		attribute.Int(SweepReclassifiedKey, reclassified),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
