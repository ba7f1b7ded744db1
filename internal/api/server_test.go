// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/cylinderd/internal/api/middleware"
	"github.com/ManuGH/cylinderd/internal/audit"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/anomaly"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/manager"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/store"
	"github.com/ManuGH/cylinderd/internal/health"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type harness struct {
	repo     *store.MemoryRepository
	engine   *manager.Engine
	handler  http.Handler
	auditBuf *bytes.Buffer
	now      time.Time
}

func newHarness(t *testing.T, cfg Config, cyls ...model.Cylinder) *harness {
	t.Helper()
	h := &harness{repo: store.NewMemoryRepository(), auditBuf: &bytes.Buffer{}, now: t0}
	for i := range cyls {
		require.NoError(t, h.repo.PutCylinder(context.Background(), &cyls[i]))
	}
	clock := func() time.Time { return h.now }
	h.engine = manager.NewEngine(h.repo, manager.DefaultConfig(), manager.WithClock(clock))
	sweeper := manager.NewSweeper(h.engine, manager.SweeperConfig{LostAfterMonths: 24})
	srv := New(cfg, h.engine, sweeper,
		WithClock(clock),
		WithAudit(audit.NewLoggerWith(zerolog.New(h.auditBuf))),
	)
	h.handler = srv.Handler()
	return h
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func full(serial string) model.Cylinder {
	return model.Cylinder{Serial: serial, Status: model.StatusFull, HolderID: model.HolderFactory}
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, Config{Version: "v9"})
	rec := h.do(t, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[health.Response](t, rec)
	assert.Equal(t, health.StatusHealthy, resp.Status)
	assert.Equal(t, "v9", resp.Version)
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))
}

func TestReadyz_ReportsUnhealthyComponent(t *testing.T) {
	m := health.NewManager("v9")
	m.RegisterChecker(health.NewFuncChecker("store", func(context.Context) error { return errors.New("down") }))
	engine := manager.NewEngine(store.NewMemoryRepository(), manager.DefaultConfig())
	handler := New(Config{}, engine, nil, WithHealth(m)).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "down")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, Config{EnableMetrics: true})
	h.do(t, http.MethodGet, "/healthz", "")

	rec := h.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cylinderd_http_request_duration_seconds")
}

func TestAction_DeliverCommits(t *testing.T) {
	h := newHarness(t, Config{}, full("SN-1"))

	rec := h.do(t, http.MethodPost, "/api/v1/cylinders/sn-1/actions/deliver", `{"customer_id":"CUST-1","worker_id":"w1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode[outcomeDTO](t, rec)
	assert.True(t, out.Committed)
	assert.Equal(t, "SN-1", out.Serial)
	assert.Equal(t, "ok", out.Result.Kind)
	assert.Equal(t, model.DerivedState{Status: model.StatusDelivered, HolderID: "CUST-1"}, out.State)
	require.NotNil(t, out.Transaction)
	assert.Equal(t, model.TxDeliver, out.Transaction.Type)
}

func TestAction_StatusMapping(t *testing.T) {
	h := newHarness(t, Config{}, full("SN-1"))

	// Missing customer.
	rec := h.do(t, http.MethodPost, "/api/v1/cylinders/SN-1/actions/deliver", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "MISSING_PARAMETER", decode[outcomeDTO](t, rec).Result.Code)

	// FULL cannot start charging.
	rec = h.do(t, http.MethodPost, "/api/v1/cylinders/SN-1/actions/charge-start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	out := decode[outcomeDTO](t, rec)
	assert.False(t, out.Committed)
	assert.Equal(t, "error", out.Result.Kind)

	rec = h.do(t, http.MethodPost, "/api/v1/cylinders/NOPE/actions/deliver", `{"customer_id":"C"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/v1/cylinders/SN-1/actions/teleport", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/v1/cylinders/SN-1/actions/deliver", `{"customer":"typo"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAction_LockTimeoutIs503(t *testing.T) {
	h := newHarness(t, Config{}, full("SN-1"))
	guard := h.engine.Guard()

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = manager.WithWriteLock(context.Background(), guard, func(context.Context) (struct{}, error) {
			close(held)
			<-release
			return struct{}{}, nil
		})
	}()
	<-held

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cylinders/SN-1/actions/deliver", strings.NewReader(`{"customer_id":"C"}`))
	ctx, cancel := context.WithTimeout(req.Context(), 20*time.Millisecond)
	defer cancel()
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req.WithContext(ctx))

	close(release)
	<-done
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "busy", decode[errorBody](t, rec).Error)
}

func TestAction_ForcedOverrideIsAudited(t *testing.T) {
	h := newHarness(t, Config{}, full("SN-1"))
	h.do(t, http.MethodPost, "/api/v1/cylinders/SN-1/actions/deliver", `{"customer_id":"CUST-1"}`)

	rec := h.do(t, http.MethodPost, "/api/v1/cylinders/SN-1/actions/deliver", `{"customer_id":"CUST-2"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, h.auditBuf.String())

	rec = h.do(t, http.MethodPost, "/api/v1/cylinders/SN-1/actions/deliver", `{"customer_id":"CUST-2","worker_id":"w9","force":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[outcomeDTO](t, rec)
	assert.True(t, out.Forced)
	assert.Equal(t, "warning", out.Result.Kind)
	assert.Contains(t, h.auditBuf.String(), `"event_type":"cylinder.forced"`)
	assert.Contains(t, h.auditBuf.String(), `"actor":"w9"`)
}

func TestCheck_DoesNotCommit(t *testing.T) {
	h := newHarness(t, Config{}, full("SN-1"))

	rec := h.do(t, http.MethodPost, "/api/v1/cylinders/SN-1/checks/deliver", `{"customer_id":"CUST-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[outcomeDTO](t, rec).Committed)

	txs, err := h.repo.History(context.Background(), "SN-1")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestGetCylinder(t *testing.T) {
	h := newHarness(t, Config{}, full("SN-1"))
	h.do(t, http.MethodPost, "/api/v1/cylinders/SN-1/actions/deliver", `{"customer_id":"CUST-1"}`)

	rec := h.do(t, http.MethodGet, "/api/v1/cylinders/SN-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decode[cylinderDTO](t, rec)
	assert.Equal(t, 1, dto.HistoryLength)
	assert.Empty(t, dto.History)
	assert.Equal(t, model.StatusDelivered, dto.Derived.Status)

	rec = h.do(t, http.MethodGet, "/api/v1/cylinders/SN-1?history=true", "")
	assert.Len(t, decode[cylinderDTO](t, rec).History, 1)

	rec = h.do(t, http.MethodGet, "/api/v1/cylinders/MISSING", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegister(t *testing.T) {
	h := newHarness(t, Config{})

	rec := h.do(t, http.MethodPost, "/api/v1/cylinders", `{"serial":" new-1 ","gas_type":"O2"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/v1/cylinders/NEW-1", rec.Header().Get("Location"))
	cyl := decode[model.Cylinder](t, rec)
	assert.Equal(t, model.StatusEmpty, cyl.Status)
	assert.Equal(t, model.HolderFactory, cyl.HolderID)

	rec = h.do(t, http.MethodPost, "/api/v1/cylinders", `{"serial":"NEW-1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/v1/cylinders", `{"serial":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnomalies(t *testing.T) {
	bad := model.Cylinder{Serial: "BAD", Status: model.StatusDelivered, HolderID: model.HolderFactory}
	h := newHarness(t, Config{}, full("OK-1"), bad)

	rec := h.do(t, http.MethodGet, "/api/v1/anomalies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rep := decode[audit.Report](t, rec)
	assert.Equal(t, 1, rep.Total)
	assert.Equal(t, 1, rep.Counts[anomaly.TypeStatusHolderMismatch])
	assert.Equal(t, "BAD", rep.Anomalies[0].Serial)
}

func TestSweep(t *testing.T) {
	h := newHarness(t, Config{}, full("OLD-1"), full("NEW-1"))
	h.do(t, http.MethodPost, "/api/v1/cylinders/OLD-1/actions/deliver", `{"customer_id":"C1"}`)
	h.now = t0.AddDate(1, 0, 0)
	h.do(t, http.MethodPost, "/api/v1/cylinders/NEW-1/actions/deliver", `{"customer_id":"C2"}`)
	h.now = t0.AddDate(2, 1, 0)

	rec := h.do(t, http.MethodPost, "/api/v1/sweeps/lost?dry_run=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rep := decode[manager.SweepReport](t, rec)
	assert.Equal(t, 1, rep.Candidates)
	assert.Zero(t, rep.Reclassified)

	rec = h.do(t, http.MethodPost, "/api/v1/sweeps/lost", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rep = decode[manager.SweepReport](t, rec)
	assert.Equal(t, 1, rep.Reclassified)
	assert.Contains(t, h.auditBuf.String(), `"event_type":"sweep.lost"`)

	rec = h.do(t, http.MethodGet, "/api/v1/cylinders/OLD-1", "")
	assert.Equal(t, model.StatusLost, decode[cylinderDTO](t, rec).Derived.Status)
}

func TestSweep_Disabled(t *testing.T) {
	engine := manager.NewEngine(store.NewMemoryRepository(), manager.DefaultConfig())
	handler := New(Config{}, engine, nil).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sweeps/lost", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimitOnMutatingRoutes(t *testing.T) {
	h := newHarness(t, Config{RateLimit: 2, RateWindow: time.Minute}, full("SN-1"))

	codes := make([]int, 0, 3)
	for range 3 {
		rec := h.do(t, http.MethodPost, "/api/v1/cylinders/SN-1/actions/charge-start", "")
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusConflict, http.StatusConflict, http.StatusTooManyRequests}, codes)

	// Reads are not limited.
	for range 3 {
		assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/v1/cylinders/SN-1", "").Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t, Config{})
	rec := h.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[errorBody](t, rec).Error)
}
