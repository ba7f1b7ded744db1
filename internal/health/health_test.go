// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticChecker struct {
	name string
	res  CheckResult
}

func (s staticChecker) Name() string                      { return s.name }
func (s staticChecker) Check(context.Context) CheckResult { return s.res }

func TestEvaluate_Aggregation(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []Status
		want      Status
		wantReady bool
	}{
		{"none", nil, StatusHealthy, true},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy, true},
		{"degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded, true},
		{"unhealthy wins", []Status{StatusUnhealthy, StatusDegraded}, StatusUnhealthy, false},
		{"unhealthy after degraded", []Status{StatusDegraded, StatusUnhealthy}, StatusUnhealthy, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("v1")
			for i, s := range tt.statuses {
				m.RegisterChecker(staticChecker{name: string(rune('a' + i)), res: CheckResult{Status: s}})
			}
			resp := m.Evaluate(context.Background())
			assert.Equal(t, tt.want, resp.Status)
			assert.Equal(t, tt.wantReady, resp.Ready)
			assert.Len(t, resp.Checks, len(tt.statuses))
		})
	}
}

func TestServeHealth_AlwaysOK(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(staticChecker{name: "store", res: CheckResult{Status: StatusUnhealthy}})

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Empty(t, resp.Checks)

	rec = httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestServeReady(t *testing.T) {
	healthy := true
	m := NewManager("v1")
	m.RegisterChecker(NewFuncChecker("store", func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("db gone")
	}))

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	healthy = false
	rec = httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db gone")
}

func TestFuncChecker_HonorsTimeout(t *testing.T) {
	m := NewManager("v1")
	m.timeout = 10 * time.Millisecond
	m.RegisterChecker(NewFuncChecker("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	resp := m.Evaluate(context.Background())
	assert.False(t, resp.Ready)
	assert.Contains(t, resp.Checks["slow"].Error, "deadline exceeded")
}

func TestLastRunChecker(t *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	var (
		last time.Time
		err  error
	)
	c := NewLastRunChecker("sweeper", 48*time.Hour, func() (time.Time, error) { return last, err })
	c.now = func() time.Time { return now }

	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)

	last = now.Add(-time.Hour)
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	last = now.Add(-72 * time.Hour)
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)

	last, err = now, errors.New("lock timeout")
	res := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, "lock timeout", res.Error)
}

func TestNames(t *testing.T) {
	m := NewManager("")
	m.RegisterChecker(staticChecker{name: "store"})
	m.RegisterChecker(staticChecker{name: "directory"})
	assert.Equal(t, []string{"directory", "store"}, m.Names())
}
