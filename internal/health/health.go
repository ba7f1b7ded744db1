// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package health provides liveness and readiness probes with per-component
// status.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/ManuGH/cylinderd/internal/log"
)

// Status represents the overall health/readiness status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component health check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Response is the body of both probes.
type Response struct {
	Status    Status                 `json:"status"`
	Ready     bool                   `json:"ready"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker is one component probe.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs the registered checkers.
type Manager struct {
	version  string
	timeout  time.Duration
	checkers []Checker
}

// NewManager creates a manager; each check gets at most 2s.
func NewManager(version string) *Manager {
	return &Manager{version: version, timeout: 2 * time.Second}
}

// RegisterChecker adds a checker.
func (m *Manager) RegisterChecker(c Checker) {
	m.checkers = append(m.checkers, c)
}

// Names lists registered checkers, sorted.
func (m *Manager) Names() []string {
	out := make([]string, 0, len(m.checkers))
	for _, c := range m.checkers {
		out = append(out, c.Name())
	}
	sort.Strings(out)
	return out
}

// Evaluate runs every checker. Unhealthy wins over degraded; only an
// unhealthy component makes the service not ready.
func (m *Manager) Evaluate(ctx context.Context) Response {
	resp := Response{Status: StatusHealthy, Ready: true, Version: m.version, Timestamp: time.Now().UTC()}
	if len(m.checkers) == 0 {
		return resp
	}
	resp.Checks = make(map[string]CheckResult, len(m.checkers))
	for _, c := range m.checkers {
		cctx, cancel := context.WithTimeout(ctx, m.timeout)
		res := c.Check(cctx)
		cancel()
		resp.Checks[c.Name()] = res

		switch res.Status {
		case StatusUnhealthy:
			resp.Status = StatusUnhealthy
			resp.Ready = false
		case StatusDegraded:
			if resp.Status == StatusHealthy {
				resp.Status = StatusDegraded
			}
		}
	}
	return resp
}

// ServeHealth is the liveness probe: always 200. Component checks run only
// with ?verbose=true.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	resp := Response{Status: StatusHealthy, Ready: true, Version: m.version, Timestamp: time.Now().UTC()}
	if r.URL.Query().Get("verbose") == "true" {
		resp = m.Evaluate(r.Context())
	}
	m.write(w, r, http.StatusOK, resp)
}

// ServeReady is the readiness probe: 503 while any component is unhealthy.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	resp := m.Evaluate(r.Context())
	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
	}
	m.write(w, r, code, resp)
}

func (m *Manager) write(w http.ResponseWriter, r *http.Request, code int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "health")
		logger.Error().Err(err).Str(log.FieldEvent, "health.encode_error").Msg("failed to encode health response")
	}
}

// FuncChecker adapts a probe function. A nil error is healthy.
type FuncChecker struct {
	name string
	fn   func(ctx context.Context) error
}

// NewFuncChecker wraps fn.
func NewFuncChecker(name string, fn func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, fn: fn}
}

func (c *FuncChecker) Name() string { return c.name }

func (c *FuncChecker) Check(ctx context.Context) CheckResult {
	if err := c.fn(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// LastRunChecker reports on a periodic job.
type LastRunChecker struct {
	name       string
	maxAge     time.Duration
	getLastRun func() (time.Time, error)
	now        func() time.Time
}

// NewLastRunChecker degrades when the last success is older than maxAge.
// A job that never ran is degraded, not unhealthy.
func NewLastRunChecker(name string, maxAge time.Duration, getLastRun func() (time.Time, error)) *LastRunChecker {
	return &LastRunChecker{name: name, maxAge: maxAge, getLastRun: getLastRun, now: time.Now}
}

func (c *LastRunChecker) Name() string { return c.name }

func (c *LastRunChecker) Check(context.Context) CheckResult {
	lastRun, lastErr := c.getLastRun()
	switch {
	case lastErr != nil:
		return CheckResult{Status: StatusDegraded, Error: lastErr.Error(), Message: "last run failed"}
	case lastRun.IsZero():
		return CheckResult{Status: StatusDegraded, Message: "no run yet"}
	case c.maxAge > 0 && c.now().Sub(lastRun) > c.maxAge:
		return CheckResult{Status: StatusDegraded, Message: "last successful run is stale"}
	}
	return CheckResult{Status: StatusHealthy, Message: "last run " + lastRun.UTC().Format(time.RFC3339)}
}
