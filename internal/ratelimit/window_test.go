package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests control window elapse and observe suspensions
// without real sleeping.
type fakeClock struct {
	mu  sync.Mutex
	t   time.Time
	dur []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// sleep records the suspension and advances the clock as if it happened.
func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dur = append(c.dur, d)
	c.t = c.t.Add(d)
	return nil
}

func (c *fakeClock) sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.dur...)
}

func newTestWindow(t *testing.T, budget float64, interval time.Duration) (*Window, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	w, err := NewWindow(budget, interval, WithClock(clk.now), WithSleeper(clk.sleep))
	require.NoError(t, err)
	return w, clk
}

func TestNewWindow_RejectsBadConfig(t *testing.T) {
	_, err := NewWindow(0, time.Second)
	assert.Error(t, err)
	_, err = NewWindow(10, 0)
	assert.Error(t, err)
}

func TestWait_WithinBudgetNeverSuspends(t *testing.T) {
	w, clk := newTestWindow(t, 5, time.Minute)

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Wait(context.Background(), 1))
	}
	assert.Empty(t, clk.sleeps(), "issuing exactly budget requests must not suspend")
}

func TestWait_OverBudgetSuspendsUntilReset(t *testing.T) {
	w, clk := newTestWindow(t, 5, time.Minute)

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Wait(context.Background(), 1))
	}
	clk.advance(10 * time.Second)
	require.NoError(t, w.Wait(context.Background(), 1))

	sleeps := clk.sleeps()
	require.Len(t, sleeps, 1, "the (budget+1)-th request must observe a suspension")
	assert.Equal(t, 50*time.Second, sleeps[0], "suspension lasts until the window resets")

	// The suspended request was charged to the fresh window.
	for i := 0; i < 4; i++ {
		require.NoError(t, w.Wait(context.Background(), 1))
	}
	assert.Len(t, clk.sleeps(), 1)
}

func TestWait_WindowElapseResetsCounter(t *testing.T) {
	w, clk := newTestWindow(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Wait(context.Background(), 1))
	}
	clk.advance(time.Minute)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Wait(context.Background(), 1))
	}
	assert.Empty(t, clk.sleeps())
}

func TestWait_CostBasedCharging(t *testing.T) {
	w, clk := newTestWindow(t, 100, time.Second)

	require.NoError(t, w.Wait(context.Background(), 60))
	require.NoError(t, w.Wait(context.Background(), 40))
	assert.Empty(t, clk.sleeps())

	require.NoError(t, w.Wait(context.Background(), 1))
	assert.Len(t, clk.sleeps(), 1)
}

func TestWait_CancelledWhileSuspendedRollsBack(t *testing.T) {
	clk := newFakeClock()
	w, err := NewWindow(1, time.Minute, WithClock(clk.now), WithSleeper(
		func(ctx context.Context, d time.Duration) error { return context.Canceled },
	))
	require.NoError(t, err)

	require.NoError(t, w.Wait(context.Background(), 1))
	assert.ErrorIs(t, w.Wait(context.Background(), 1), context.Canceled)

	// The rolled-back charge leaves room once the window elapses.
	clk.advance(time.Minute)
	assert.NoError(t, w.Wait(context.Background(), 1))
}

func TestWait_ConcurrentCallersWithinBudget(t *testing.T) {
	w, clk := newTestWindow(t, 50, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, w.Wait(context.Background(), 1))
		}()
	}
	wg.Wait()
	assert.Empty(t, clk.sleeps())
}
