// Package ratelimit implements a fixed-window request budget. External
// providers (embedding API, vector store) meter throughput per rolling
// window; callers that would exceed the budget are suspended until the
// window resets instead of receiving an error.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Window tracks consumed budget within the current time window. It is an
// owned component instance: one per provider credential set, never a
// process-wide global. Safe for concurrent use; the counter and window
// start are guarded by a mutex.
type Window struct {
	mu          sync.Mutex
	budget      float64
	interval    time.Duration
	used        float64
	windowStart time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option customizes a Window, mainly for tests.
type Option func(*Window)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(w *Window) { w.now = now }
}

// WithSleeper replaces the suspension primitive.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(w *Window) { w.sleep = sleep }
}

// NewWindow creates a limiter allowing budget units of cost per interval.
func NewWindow(budget float64, interval time.Duration, opts ...Option) (*Window, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("budget must be positive, got %v", budget)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", interval)
	}
	w := &Window{
		budget:   budget,
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.windowStart = w.now()
	return w, nil
}

// Wait charges cost against the current window. If the window has elapsed
// the counter resets; if the charge would exceed the budget before the
// window elapses, the caller is suspended until the window resets, then
// proceeds. Returns the context error if cancelled while suspended, in
// which case the charge is rolled back.
func (w *Window) Wait(ctx context.Context, cost float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if elapsed := now.Sub(w.windowStart); elapsed >= w.interval {
		w.used = 0
		w.windowStart = now
	}

	w.used += cost
	if w.used <= w.budget {
		return nil
	}

	remaining := w.interval - now.Sub(w.windowStart)
	if remaining > 0 {
		if err := w.sleep(ctx, remaining); err != nil {
			w.used -= cost
			return err
		}
	}
	w.windowStart = w.now()
	w.used = cost
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
