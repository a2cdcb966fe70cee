// Package ratelimit implements the fixed-window limiter that fronts every
// voice agent and OAuth endpoint.
package ratelimit

import (
	"context"
	"time"

	"barberline/pkg/logger"
)

// Result of a single Check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type Limiter struct {
	store Store
	now   func() time.Time
}

// New builds a Limiter; a nil store gets a fresh MemoryStore and a nil clock uses time.Now.
func New(store Store, now func() time.Time) *Limiter {
	if store == nil {
		store = NewMemoryStore()
	}
	if now == nil {
		now = time.Now
	}
	return &Limiter{store: store, now: now}
}

// Check counts one hit against key. Hits are allowed while the window's
// count stays within limit.
func (l *Limiter) Check(key string, limit int, window time.Duration) Result {
	e := l.store.Increment(key, window, l.now())

	remaining := limit - e.Count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   e.Count <= limit,
		Remaining: remaining,
		ResetAt:   e.ResetAt,
	}
}

// Sweep drops expired windows.
func (l *Limiter) Sweep() int {
	return l.store.Sweep(l.now())
}

// StartSweeper runs Sweep every interval until ctx is done.
func (l *Limiter) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.Sweep(); n > 0 {
					logger.From(ctx).Debug("rate limit sweep", "removed", n)
				}
			}
		}
	}()
}
