// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package audit records compliance-relevant cylinder events (WHO/WHAT/WHEN)
// and writes the anomaly report.
package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/anomaly"
	"github.com/ManuGH/cylinderd/internal/log"
	"github.com/rs/zerolog"
)

// EventType represents the type of audit event.
type EventType string

const (
	EventAnomalyDetected EventType = "anomaly.detected"
	EventForcedOverride  EventType = "cylinder.forced"
	EventLostSweep       EventType = "sweep.lost"
	EventImport          EventType = "import.completed"
	EventReportWritten   EventType = "report.written"
)

// Event is one structured audit record.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	Actor     string            `json:"actor"`    // worker id, remote addr or "system"
	Action    string            `json:"action"`   // human-readable
	Resource  string            `json:"resource"` // serial, file, ...
	Result    string            `json:"result"`
	RequestID string            `json:"request_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Logger writes audit events to a dedicated component logger.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates an audit logger on the global log configuration.
func NewLogger() *Logger {
	return NewLoggerWith(log.WithComponent("audit"))
}

// NewLoggerWith wraps base (tests, alternate sinks).
func NewLoggerWith(base zerolog.Logger) *Logger {
	return &Logger{logger: base.With().Str("log_type", "audit").Logger()}
}

// Log writes event, stamping the time if unset.
func (l *Logger) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	ev := l.logger.Info().
		Time("timestamp", event.Timestamp).
		Str("event_type", string(event.Type)).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("resource", event.Resource).
		Str("result", event.Result)
	if event.RequestID != "" {
		ev.Str(log.FieldRequestID, event.RequestID)
	}
	for k, v := range event.Details {
		ev.Str(k, v)
	}
	ev.Msg("audit event")
}

// LogFromContext fills the request id from ctx before logging.
func (l *Logger) LogFromContext(ctx context.Context, event Event) {
	if event.RequestID == "" {
		event.RequestID = log.RequestIDFromContext(ctx)
	}
	l.Log(event)
}

// Anomalies emits one event per finding.
func (l *Logger) Anomalies(list []anomaly.Anomaly) {
	for _, a := range list {
		l.Log(Event{
			Type:     EventAnomalyDetected,
			Actor:    "system",
			Action:   a.Description,
			Resource: a.Serial,
			Result:   string(a.Type),
		})
	}
}

// ForcedOverride records an operator bypassing a blocking result.
func (l *Logger) ForcedOverride(ctx context.Context, worker, serial, action, warning string) {
	l.LogFromContext(ctx, Event{
		Type:     EventForcedOverride,
		Actor:    actorOrUnknown(worker),
		Action:   action,
		Resource: serial,
		Result:   "committed",
		Details:  map[string]string{"warning": warning},
	})
}

// LostSweep records a sweep run.
func (l *Logger) LostSweep(ctx context.Context, actor string, candidates, reclassified int, dryRun bool) {
	l.LogFromContext(ctx, Event{
		Type:     EventLostSweep,
		Actor:    actorOrUnknown(actor),
		Action:   "lost sweep",
		Resource: "fleet",
		Result:   "success",
		Details: map[string]string{
			"candidates":   strconv.Itoa(candidates),
			"reclassified": strconv.Itoa(reclassified),
			"dry_run":      strconv.FormatBool(dryRun),
		},
	})
}

// Import records a legacy import.
func (l *Logger) Import(actor, source string, cylinders, transactions, duplicates, rejected int) {
	l.Log(Event{
		Type:     EventImport,
		Actor:    actorOrUnknown(actor),
		Action:   "legacy import",
		Resource: source,
		Result:   "success",
		Details: map[string]string{
			"cylinders":    strconv.Itoa(cylinders),
			"transactions": strconv.Itoa(transactions),
			"duplicates":   strconv.Itoa(duplicates),
			"rejected":     strconv.Itoa(rejected),
		},
	})
}

func actorOrUnknown(a string) string {
	if a == "" {
		return "unknown"
	}
	return a
}
