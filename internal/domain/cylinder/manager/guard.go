// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/cylinderd/internal/metrics"
)

// ErrLockTimeout is returned when the write lock could not be acquired in time.
// No mutation has happened when a caller sees it.
var ErrLockTimeout = errors.New("write lock timeout")

// WriteGuard is the single writer lock of an Engine. It is a one-slot
// semaphore so acquisition can honour contexts.
type WriteGuard struct {
	name    string
	timeout time.Duration
	sem     chan struct{}
}

// NewWriteGuard returns a guard whose acquisitions wait at most timeout
// (0 waits until the caller's context ends).
func NewWriteGuard(name string, timeout time.Duration) *WriteGuard {
	return &WriteGuard{name: name, timeout: timeout, sem: make(chan struct{}, 1)}
}

func (g *WriteGuard) acquire(ctx context.Context) error {
	start := time.Now()
	select {
	case g.sem <- struct{}{}:
		metrics.ObserveLockWait(0, true)
		return nil
	default:
	}

	waitCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	select {
	case g.sem <- struct{}{}:
		metrics.ObserveLockWait(time.Since(start).Seconds(), true)
		return nil
	case <-waitCtx.Done():
		waited := time.Since(start)
		metrics.ObserveLockWait(waited.Seconds(), false)
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrLockTimeout, g.name, err)
		}
		return fmt.Errorf("%w: %s after %s", ErrLockTimeout, g.name, waited.Round(time.Millisecond))
	}
}

func (g *WriteGuard) release() {
	<-g.sem
}

// WithWriteLock runs fn while holding g. The lock is released on every exit
// path, panics included.
func WithWriteLock[T any](ctx context.Context, g *WriteGuard, fn func(ctx context.Context) (T, error)) (T, error) {
	if err := g.acquire(ctx); err != nil {
		var zero T
		return zero, err
	}
	defer g.release()
	return fn(ctx)
}
