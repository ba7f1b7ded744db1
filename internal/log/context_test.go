// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestContextWithRequestID(t *testing.T) {
	tests := []struct {
		name      string
		ctx       context.Context
		requestID string
		want      string
	}{
		{name: "nil context", ctx: nil, requestID: "req-1", want: "req-1"},
		{name: "background context", ctx: context.Background(), requestID: "req-2", want: "req-2"},
		{name: "empty request ID", ctx: context.Background(), requestID: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithRequestID(tt.ctx, tt.requestID)
			assert.Equal(t, tt.want, RequestIDFromContext(ctx))
		})
	}
}

func TestJobIDFromContext(t *testing.T) {
	assert.Equal(t, "", JobIDFromContext(nil))
	assert.Equal(t, "", JobIDFromContext(context.Background()))
	assert.Equal(t, "", JobIDFromContext(context.WithValue(context.Background(), jobIDKey, 42)))
	assert.Equal(t, "sweep-7", JobIDFromContext(ContextWithJobID(context.Background(), "sweep-7")))
}

func captureLogger(buf *bytes.Buffer) zerolog.Logger {
	return zerolog.New(buf)
}

func TestWithContext_AddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithRequestID(context.Background(), "req-123")
	ctx = ContextWithJobID(ctx, "job-456")

	l := WithContext(ctx, captureLogger(&buf))
	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-123", entry[FieldRequestID])
	assert.Equal(t, "job-456", entry[FieldJobID])
	assert.NotContains(t, entry, FieldTraceID)
}

func TestWithContext_AddsTraceFields(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	var buf bytes.Buffer
	l := WithContext(ctx, captureLogger(&buf))
	l.Info().Msg("traced")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry[FieldTraceID])
	assert.Equal(t, "00f067aa0ba902b7", entry[FieldSpanID])
}

func TestWithContext_NoFieldsReturnsSameLogger(t *testing.T) {
	var buf bytes.Buffer
	l := WithContext(context.Background(), captureLogger(&buf))
	l.Info().Msg("plain")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Len(t, entry, 2) // level + message
}

func TestConfigure_ServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "cylinderd-test", Version: "v0.0.1"})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("engine")
	l.Debug().Str(FieldSerial, "CYL-1").Msg("committed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "cylinderd-test", entry["service"])
	assert.Equal(t, "v0.0.1", entry["version"])
	assert.Equal(t, "engine", entry[FieldComponent])
	assert.Equal(t, "CYL-1", entry[FieldSerial])
}

func TestDerive(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	l := Derive(func(c *zerolog.Context) { *c = c.Str("custom_field", "x") })
	l.Info().Msg("derived")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "x", entry["custom_field"])

	assert.NotPanics(t, func() { Derive(nil) })
}

func TestFromContext_FallsBackToBase(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	ctx := ContextWithRequestID(context.Background(), "req-9")
	FromContext(ctx).Info().Msg("from ctx")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-9", entry[FieldRequestID])
}
