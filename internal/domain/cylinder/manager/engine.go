// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package manager owns the cylinder write path: it serializes
// derive-validate-commit cycles behind one WriteGuard and runs the lost sweep.
package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/anomaly"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/lifecycle"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/store"
	"github.com/ManuGH/cylinderd/internal/log"
	"github.com/ManuGH/cylinderd/internal/metrics"
	"github.com/ManuGH/cylinderd/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrInvalidRequest marks malformed requests (empty serial, unknown status).
	ErrInvalidRequest = errors.New("invalid request")
	// ErrAlreadyRegistered is returned by Register for an existing serial.
	ErrAlreadyRegistered = errors.New("cylinder already registered")
)

// MemoForced prefixes the memo of a transaction committed past a blocking result.
const MemoForced = "[FORCED]"

// Config bounds the critical section.
type Config struct {
	// LockTimeout bounds the wait for the write lock.
	LockTimeout time.Duration
	// PersistTimeout bounds each repository call inside the lock.
	PersistTimeout time.Duration
	// NearExpiryWindow triggers NEAR_EXPIRY advisories.
	NearExpiryWindow time.Duration
	// Anomaly tunes Engine.Anomalies.
	Anomaly anomaly.Options
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		LockTimeout:      5 * time.Second,
		PersistTimeout:   5 * time.Second,
		NearExpiryWindow: 30 * 24 * time.Hour,
		Anomaly:          anomaly.DefaultOptions(),
	}
}

// CustomerLister is the slice of the customer directory the engine needs.
type CustomerLister interface {
	List(ctx context.Context) ([]model.Customer, error)
}

// ActionRequest is one operator request.
type ActionRequest struct {
	Serial     string
	Action     lifecycle.Action
	CustomerID string
	WorkerID   string
	Memo       string
	// NextExpiry is the post-inspection charging expiry (inspect_in).
	NextExpiry time.Time
	// Force bypasses LOCATION_MISMATCH and CYLINDER_LOST.
	Force bool
}

// Outcome is the engine's answer to an ActionRequest. Business rejections
// are Outcomes, not errors.
type Outcome struct {
	Serial   string
	Action   lifecycle.Action
	Result   lifecycle.Result
	Previous model.DerivedState
	State    model.DerivedState
	// Transaction is set only when something was committed.
	Transaction *model.Transaction
	Forced      bool
}

// Committed reports whether the outcome appended a transaction.
func (o Outcome) Committed() bool { return o.Transaction != nil }

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces time.Now (tests, replays).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces the transaction id source.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithDirectory enables the unknown-customer anomaly check.
func WithDirectory(dir CustomerLister) Option {
	return func(e *Engine) { e.dir = dir }
}

// Engine is the cylinder write path.
type Engine struct {
	repo   store.Repository
	guard  *WriteGuard
	dir    CustomerLister
	cfg    Config
	now    func() time.Time
	newID  func() string
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewEngine creates an Engine over repo. Zero config durations fall back to defaults.
func NewEngine(repo store.Repository, cfg Config, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = def.LockTimeout
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = def.PersistTimeout
	}
	if cfg.Anomaly.LongTailFactor <= 0 {
		cfg.Anomaly.LongTailFactor = def.Anomaly.LongTailFactor
	}
	e := &Engine{
		repo:   repo,
		guard:  NewWriteGuard("cylinder-engine", cfg.LockTimeout),
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  newTransactionID,
		tracer: telemetry.Tracer("cylinderd/engine"),
		logger: log.WithComponent("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func newTransactionID() string {
	// v7 ids sort by creation time, which keeps same-instant ties in commit order.
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Guard exposes the write lock so sibling writers (sweeper, import) share it.
func (e *Engine) Guard() *WriteGuard { return e.guard }

func (e *Engine) persistCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.PersistTimeout)
}

// load fetches the snapshot and history of serial.
func (e *Engine) load(ctx context.Context, serial string) (*model.Cylinder, []model.Transaction, error) {
	pctx, cancel := e.persistCtx(ctx)
	defer cancel()

	cyl, err := e.repo.GetCylinder(pctx, serial)
	if err != nil {
		return nil, nil, fmt.Errorf("load cylinder %s: %w", serial, err)
	}
	txs, err := e.repo.History(pctx, serial)
	if err != nil {
		return nil, nil, fmt.Errorf("load history %s: %w", serial, err)
	}
	return cyl, txs, nil
}

func (e *Engine) params(req ActionRequest, now time.Time) lifecycle.Params {
	return lifecycle.Params{
		CustomerID:       req.CustomerID,
		NextExpiry:       req.NextExpiry,
		Now:              now,
		NearExpiryWindow: e.cfg.NearExpiryWindow,
	}
}

// decide validates req against the current history. bypassed is the code a
// forced override skipped, CodeNone otherwise.
func (e *Engine) decide(req ActionRequest, subject lifecycle.Subject, p lifecycle.Params) (res lifecycle.Result, bypassed lifecycle.Code, err error) {
	res, err = lifecycle.Validate(req.Action, subject, p)
	if err != nil {
		return lifecycle.Result{}, lifecycle.CodeNone, err
	}
	if res.Success() || !req.Force || !res.Code().Overridable() {
		return res, lifecycle.CodeNone, nil
	}
	if missing, ok := missingParameter(req.Action, p); ok {
		return missing, lifecycle.CodeNone, nil
	}
	if res.Code() == lifecycle.CodeCylinderLost {
		// Only the lost flag is lifted; the action's own rules still apply.
		recovered, err := lifecycle.Validate(req.Action, lifecycle.RecoveredSubject(req.Action, subject), p)
		if err != nil {
			return lifecycle.Result{}, lifecycle.CodeNone, err
		}
		if !recovered.Success() {
			return recovered, lifecycle.CodeNone, nil
		}
		if recovered.Kind() == lifecycle.KindWarning {
			return lifecycle.Warn("%s: %s overridden: %s; %s", lifecycle.MarkerForced, res.Code(), res.Message(), recovered.Warning()),
				res.Code(), nil
		}
	}
	forced := lifecycle.Warn("%s: %s overridden: %s", lifecycle.MarkerForced, res.Code(), res.Message())
	return forced, res.Code(), nil
}

// missingParameter re-applies the input requirements a forced override would
// otherwise skip.
func missingParameter(a lifecycle.Action, p lifecycle.Params) (lifecycle.Result, bool) {
	if a.RequiresCustomer() && strings.TrimSpace(p.CustomerID) == "" {
		return lifecycle.Reject(lifecycle.CodeMissingParameter, "%s requires a customer", a), true
	}
	if a == lifecycle.ActionInspectIn && p.NextExpiry.IsZero() {
		return lifecycle.Reject(lifecycle.CodeMissingParameter, "inspect_in requires the next charging expiry"), true
	}
	return lifecycle.Result{}, false
}

func normalizeRequest(req ActionRequest) (ActionRequest, error) {
	req.Serial = model.NormalizeSerial(req.Serial)
	if req.Serial == "" {
		return req, fmt.Errorf("%w: empty serial", ErrInvalidRequest)
	}
	a, err := lifecycle.ParseAction(string(req.Action))
	if err != nil {
		return req, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	req.Action = a
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.WorkerID = strings.TrimSpace(req.WorkerID)
	return req, nil
}

// Apply runs one action under the write lock: re-derive, validate, commit.
func (e *Engine) Apply(ctx context.Context, req ActionRequest) (out Outcome, err error) {
	req, err = normalizeRequest(req)
	if err != nil {
		return Outcome{}, err
	}

	ctx, span := e.tracer.Start(ctx, "cylinder.apply",
		trace.WithAttributes(telemetry.ActionAttributes(req.Serial, string(req.Action), req.Force)...))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(telemetry.ResultAttributes(out.Result.Kind().String(), string(out.Result.Code()))...)
			span.SetAttributes(telemetry.StateAttributes(string(out.State.Status), out.State.HolderID)...)
		}
		span.End()
	}()

	return WithWriteLock(ctx, e.guard, func(ctx context.Context) (Outcome, error) {
		return e.applyLocked(ctx, req)
	})
}

func (e *Engine) applyLocked(ctx context.Context, req ActionRequest) (Outcome, error) {
	logger := log.WithContext(ctx, e.logger).With().
		Str(log.FieldSerial, req.Serial).
		Str(log.FieldAction, string(req.Action)).
		Logger()

	cyl, txs, err := e.load(ctx, req.Serial)
	if err != nil {
		return Outcome{}, err
	}

	now := e.now()
	subject := lifecycle.NewSubject(*cyl, txs)
	p := e.params(req, now)
	res, bypassed, err := e.decide(req, subject, p)
	if err != nil {
		return Outcome{}, err
	}
	forced := bypassed != lifecycle.CodeNone

	out := Outcome{
		Serial:   req.Serial,
		Action:   req.Action,
		Result:   res,
		Previous: subject.State,
		State:    subject.State,
	}
	if !res.Success() {
		metrics.IncAction(string(req.Action), res.Kind().String(), string(res.Code()))
		logger.Debug().
			Str(log.FieldCode, string(res.Code())).
			Str(log.FieldOldState, string(subject.State.Status)).
			Str(log.FieldHolderID, subject.State.HolderID).
			Msg(res.Message())
		return out, nil
	}

	rec, err := lifecycle.RecordFor(req.Action, p, req.Memo)
	if err != nil {
		return Outcome{}, err
	}
	if forced {
		rec.Memo = strings.TrimSpace(MemoForced + " " + rec.Memo)
	}
	tx := model.Transaction{
		ID:             e.newID(),
		Timestamp:      now,
		Type:           rec.Type,
		Serial:         req.Serial,
		CounterpartyID: rec.CounterpartyID,
		WorkerID:       req.WorkerID,
		Memo:           rec.Memo,
	}

	next := lifecycle.DeriveState(*cyl, append(txs, tx))
	snapshot := cyl.Clone()
	snapshot.Status = next.Status
	snapshot.HolderID = next.HolderID
	snapshot.UpdatedAt = now
	if req.Action == lifecycle.ActionInspectIn {
		snapshot.ChargingExpiry = req.NextExpiry
		snapshot.LastInspection = now
	}

	pctx, cancel := e.persistCtx(ctx)
	defer cancel()
	if err := e.repo.Commit(pctx, tx, snapshot); err != nil {
		return Outcome{}, fmt.Errorf("commit %s %s: %w", req.Action, req.Serial, err)
	}

	if forced {
		metrics.IncForcedOverride(string(bypassed))
		logger.Warn().
			Str(log.FieldCode, string(bypassed)).
			Str(log.FieldOldState, string(subject.State.Status)).
			Str(log.FieldHolderID, subject.State.HolderID).
			Msg("forced override committed")
	}
	metrics.IncAction(string(req.Action), res.Kind().String(), "")
	logger.Info().
		Str(log.FieldEvent, "cylinder.committed").
		Str(log.FieldTxID, tx.ID).
		Str(log.FieldWorkerID, tx.WorkerID).
		Str(log.FieldOldState, string(subject.State.Status)).
		Str(log.FieldNewState, string(next.Status)).
		Str(log.FieldHolderID, next.HolderID).
		Str("warning", res.Warning()).
		Msg("transaction committed")

	out.State = next
	out.Transaction = &tx
	out.Forced = forced
	return out, nil
}

// Check is the speculative form of Apply: it derives and validates without
// taking the lock or writing anything.
func (e *Engine) Check(ctx context.Context, req ActionRequest) (Outcome, error) {
	req, err := normalizeRequest(req)
	if err != nil {
		return Outcome{}, err
	}
	cyl, txs, err := e.load(ctx, req.Serial)
	if err != nil {
		return Outcome{}, err
	}
	subject := lifecycle.NewSubject(*cyl, txs)
	res, bypassed, err := e.decide(req, subject, e.params(req, e.now()))
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Serial:   req.Serial,
		Action:   req.Action,
		Result:   res,
		Previous: subject.State,
		State:    subject.State,
		Forced:   bypassed != lifecycle.CodeNone,
	}, nil
}

// StateView is a lock-free read of one cylinder.
type StateView struct {
	Cylinder model.Cylinder
	Derived  model.DerivedState
	// History is oldest first.
	History []model.Transaction
}

// State returns the snapshot, derived state and history of serial.
func (e *Engine) State(ctx context.Context, serial string) (StateView, error) {
	serial = model.NormalizeSerial(serial)
	if serial == "" {
		return StateView{}, fmt.Errorf("%w: empty serial", ErrInvalidRequest)
	}
	cyl, txs, err := e.load(ctx, serial)
	if err != nil {
		return StateView{}, err
	}
	return StateView{
		Cylinder: *cyl,
		Derived:  lifecycle.DeriveState(*cyl, txs),
		History:  txs,
	}, nil
}

// Register stores a new baseline cylinder. Blank status and holder default
// to EMPTY at FACTORY.
func (e *Engine) Register(ctx context.Context, cyl model.Cylinder) (*model.Cylinder, error) {
	cyl.Serial = model.NormalizeSerial(cyl.Serial)
	if cyl.Serial == "" {
		return nil, fmt.Errorf("%w: empty serial", ErrInvalidRequest)
	}
	if cyl.Status == "" {
		cyl.Status = model.StatusEmpty
	}
	if !cyl.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, cyl.Status)
	}
	if strings.TrimSpace(cyl.HolderID) == "" {
		cyl.HolderID = model.HolderFactory
	}
	cyl.UpdatedAt = e.now()

	return WithWriteLock(ctx, e.guard, func(ctx context.Context) (*model.Cylinder, error) {
		pctx, cancel := e.persistCtx(ctx)
		defer cancel()

		_, err := e.repo.GetCylinder(pctx, cyl.Serial)
		switch {
		case err == nil:
			return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, cyl.Serial)
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("register %s: %w", cyl.Serial, err)
		}
		if err := e.repo.PutCylinder(pctx, &cyl); err != nil {
			return nil, fmt.Errorf("register %s: %w", cyl.Serial, err)
		}

		logger := log.WithContext(ctx, e.logger)
		logger.Info().
			Str(log.FieldEvent, "cylinder.registered").
			Str(log.FieldSerial, cyl.Serial).
			Str(log.FieldNewState, string(cyl.Status)).
			Str(log.FieldHolderID, cyl.HolderID).
			Msg("cylinder registered")
		return cyl.Clone(), nil
	})
}

// Anomalies runs the advisory detector over the whole fleet, lock-free.
func (e *Engine) Anomalies(ctx context.Context) ([]anomaly.Anomaly, error) {
	ctx, span := e.tracer.Start(ctx, "cylinder.anomalies")
	defer span.End()

	cyls, txs, err := e.snapshot(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	in := anomaly.Input{
		Cylinders:    cyls,
		Transactions: txs,
		Now:          e.now(),
		Options:      e.cfg.Anomaly,
	}
	if e.dir != nil {
		customers, err := e.dir.List(ctx)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("list customers: %w", err)
		}
		knownIDs := make(map[string]struct{}, len(customers))
		for _, c := range customers {
			knownIDs[c.ID] = struct{}{}
		}
		in.KnownCustomer = func(id string) bool {
			_, ok := knownIDs[id]
			return ok
		}
	}

	found := anomaly.Detect(in)
	counts := anomaly.Count(found)
	names := make([]string, len(anomaly.Types))
	byName := make(map[string]int, len(counts))
	for i, t := range anomaly.Types {
		names[i] = string(t)
		byName[string(t)] = counts[t]
	}
	metrics.RecordAnomalies(names, byName)
	return found, nil
}

// snapshot reads the whole fleet without the lock.
func (e *Engine) snapshot(ctx context.Context) ([]model.Cylinder, []model.Transaction, error) {
	list, err := e.repo.ListCylinders(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list cylinders: %w", err)
	}
	txs, err := e.repo.ListTransactions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list transactions: %w", err)
	}
	cyls := make([]model.Cylinder, len(list))
	for i, c := range list {
		cyls[i] = *c
	}
	return cyls, txs, nil
}
