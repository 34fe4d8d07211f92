package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireConsumesBudget(t *testing.T) {
	l := New(1000, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
	assert.Equal(t, 5, l.Used())
	assert.Equal(t, 0, l.Remaining())

	// Ceiling is hard: fails, does not wait.
	start := time.Now()
	err := l.Acquire(ctx)
	require.ErrorIs(t, err, ErrBudgetExhausted)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 5, l.Used())
}

func TestAcquireConcurrentNeverOvershoots(t *testing.T) {
	l := New(100000, 50)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(ctx); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, granted)
	assert.Equal(t, 50, l.Used())
}

func TestAcquireHonorsCancellation(t *testing.T) {
	// 1 req/sec with a drained bucket forces Acquire to wait.
	l := New(1, 10)
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx)) // burst slot

	cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := l.Acquire(cctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBudgetExhausted)
}

func TestBackoffGrowthAndCap(t *testing.T) {
	l := New(10, 100)

	for attempt, base := range []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second} {
		d := l.Backoff(attempt)
		assert.GreaterOrEqual(t, d, base, "attempt %d", attempt)
		assert.Less(t, d, base+1*time.Second, "attempt %d", attempt)
	}

	// Large attempts clamp to the cap, including overflow-sized shifts.
	assert.Equal(t, 30*time.Second, l.Backoff(10))
	assert.Equal(t, 30*time.Second, l.Backoff(64))
}
