// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/lifecycle"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
	"github.com/ManuGH/cylinderd/internal/log"
	"github.com/ManuGH/cylinderd/internal/metrics"
	"github.com/ManuGH/cylinderd/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// SweeperConfig tunes the lost sweep.
type SweeperConfig struct {
	// Interval between sweeps in Run.
	Interval time.Duration
	// LostAfterMonths is the calendar-month age of the last delivery after
	// which a delivered cylinder is reclassified LOST.
	LostAfterMonths int
	// RatePerSecond paces reclassification commits (<=0 means unpaced).
	RatePerSecond float64
}

// DefaultSweeperConfig returns the sweep defaults.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:        24 * time.Hour,
		LostAfterMonths: 24,
		RatePerSecond:   20,
	}
}

// SweepDetail describes one reclassified (or, in dry runs, eligible) cylinder.
type SweepDetail struct {
	Serial      string    `json:"serial"`
	HolderID    string    `json:"holder_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	Candidates   int           `json:"candidates"`
	Reclassified int           `json:"reclassified"`
	Details      []SweepDetail `json:"details,omitempty"`
}

// Sweeper reclassifies long-undelivered cylinders as LOST.
type Sweeper struct {
	engine  *Engine
	cfg     SweeperConfig
	limiter *rate.Limiter
	tracer  trace.Tracer
	logger  zerolog.Logger

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

// NewSweeper creates a sweeper sharing e's write lock.
func NewSweeper(e *Engine, cfg SweeperConfig) *Sweeper {
	def := DefaultSweeperConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.LostAfterMonths <= 0 {
		cfg.LostAfterMonths = def.LostAfterMonths
	}
	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Sweeper{
		engine:  e,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		tracer:  telemetry.Tracer("cylinderd/sweeper"),
		logger:  log.WithComponent("sweeper"),
	}
}

// cutoff is the instant before which a delivery counts as lost.
func (s *Sweeper) cutoff(now time.Time) time.Time {
	return now.AddDate(0, -s.cfg.LostAfterMonths, 0)
}

// qualifies reports whether the history of cyl makes it a lost candidate.
func (s *Sweeper) qualifies(cyl model.Cylinder, txs []model.Transaction, now time.Time) (SweepDetail, bool) {
	if cyl.Deleted {
		return SweepDetail{}, false
	}
	state := lifecycle.DeriveState(cyl, txs)
	if state.Status != model.StatusDelivered {
		return SweepDetail{}, false
	}
	last, ok := lifecycle.LastOfType(cyl.Serial, txs, model.TxDeliver)
	if !ok || !last.Timestamp.Before(s.cutoff(now)) {
		return SweepDetail{}, false
	}
	return SweepDetail{Serial: cyl.Key(), HolderID: state.HolderID, DeliveredAt: last.Timestamp}, true
}

// Candidates scans the fleet lock-free and returns the cylinders a sweep at
// now would reclassify.
func (s *Sweeper) Candidates(ctx context.Context, now time.Time) ([]SweepDetail, error) {
	cyls, txs, err := s.engine.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	bySerial := make(map[string][]model.Transaction)
	for _, tx := range txs {
		key := model.NormalizeSerial(tx.Serial)
		bySerial[key] = append(bySerial[key], tx)
	}
	var out []SweepDetail
	for _, cyl := range cyls {
		if d, ok := s.qualifies(cyl, bySerial[cyl.Key()], now); ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// SweepOnce reclassifies every qualifying cylinder. Each candidate is
// re-checked under the write lock before the LOST record is committed.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) (rep SweepReport, err error) {
	start := time.Now()
	ctx = log.ContextWithJobID(ctx, s.engine.newID())
	ctx, span := s.tracer.Start(ctx, "cylinder.sweep_lost")
	defer func() {
		s.mu.Lock()
		s.lastErr = err
		if err == nil {
			s.lastRun = start
		}
		s.mu.Unlock()
		metrics.RecordSweep(rep.Reclassified, time.Since(start).Seconds(), err)
		span.SetAttributes(telemetry.SweepAttributes(rep.Candidates, rep.Reclassified)...)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	candidates, err := s.Candidates(ctx, now)
	if err != nil {
		return rep, err
	}
	rep.Candidates = len(candidates)

	for _, c := range candidates {
		if err := s.limiter.Wait(ctx); err != nil {
			return rep, err
		}
		detail, done, err := s.reclassify(ctx, c.Serial, now)
		if err != nil {
			return rep, err
		}
		if done {
			rep.Reclassified++
			rep.Details = append(rep.Details, detail)
		}
	}

	logger := log.WithContext(ctx, s.logger)
	logger.Info().
		Int("candidates", rep.Candidates).
		Int("reclassified", rep.Reclassified).
		Dur("took", time.Since(start)).
		Msg("lost sweep finished")
	return rep, nil
}

func (s *Sweeper) reclassify(ctx context.Context, serial string, now time.Time) (SweepDetail, bool, error) {
	type result struct {
		detail SweepDetail
		done   bool
	}
	e := s.engine
	r, err := WithWriteLock(ctx, e.guard, func(ctx context.Context) (result, error) {
		cyl, txs, err := e.load(ctx, serial)
		if err != nil {
			return result{}, err
		}
		detail, ok := s.qualifies(*cyl, txs, now)
		if !ok {
			// Collected (or otherwise moved) since the lock-free scan.
			return result{}, nil
		}

		tx := model.Transaction{
			ID:             e.newID(),
			Timestamp:      now,
			Type:           model.TxLost,
			Serial:         detail.Serial,
			CounterpartyID: detail.HolderID,
			WorkerID:       model.WorkerSystem,
			Memo: fmt.Sprintf("auto: not collected within %d months of delivery on %s",
				s.cfg.LostAfterMonths, detail.DeliveredAt.Format("2006-01-02")),
		}
		next := lifecycle.DeriveState(*cyl, append(txs, tx))
		snapshot := cyl.Clone()
		snapshot.Status = next.Status
		snapshot.HolderID = next.HolderID
		snapshot.UpdatedAt = now

		pctx, cancel := e.persistCtx(ctx)
		defer cancel()
		if err := e.repo.Commit(pctx, tx, snapshot); err != nil {
			return result{}, fmt.Errorf("commit lost %s: %w", serial, err)
		}

		logger := log.WithContext(ctx, s.logger)
		logger.Warn().
			Str(log.FieldEvent, "cylinder.lost").
			Str(log.FieldSerial, detail.Serial).
			Str(log.FieldHolderID, detail.HolderID).
			Str(log.FieldTxID, tx.ID).
			Time("delivered_at", detail.DeliveredAt).
			Msg("cylinder reclassified as lost")
		return result{detail: detail, done: true}, nil
	})
	return r.detail, r.done, err
}

// LastRun returns the start of the last successful sweep and the error of
// the most recent one.
func (s *Sweeper) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

// Interval is the background sweep period.
func (s *Sweeper) Interval() time.Duration { return s.cfg.Interval }

// Run sweeps immediately and then every Interval until ctx ends. A failed
// sweep is logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx, s.engine.now()); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			s.logger.Error().Err(err).Msg("lost sweep failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
