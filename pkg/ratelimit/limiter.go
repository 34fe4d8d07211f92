// Package ratelimit provides the shared request budget for one analysis run:
// a token bucket for steady-state smoothing plus a hard per-run call ceiling.
package ratelimit

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrBudgetExhausted is returned when the hard per-run API call ceiling
// has been reached. It fails immediately rather than waiting.
var ErrBudgetExhausted = errors.New("api call budget exhausted")

const (
	// DefaultCeiling is the per-run API call budget.
	DefaultCeiling = 100
	// DefaultRate is the steady-state request rate in req/sec.
	DefaultRate = 10.0

	backoffBase = 1 * time.Second
	backoffCap  = 30 * time.Second
)

// Limiter enforces both a steady-state rate and the hard call ceiling.
// Safe for concurrent use by every analyzer in a run.
type Limiter struct {
	bucket *rate.Limiter

	mu      sync.Mutex
	used    int
	ceiling int
}

// New builds a limiter with the given req/sec rate and call ceiling.
// Non-positive arguments fall back to the defaults.
func New(reqPerSec float64, ceiling int) *Limiter {
	if reqPerSec <= 0 {
		reqPerSec = DefaultRate
	}
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Limiter{
		bucket:  rate.NewLimiter(rate.Limit(reqPerSec), int(reqPerSec)+1),
		ceiling: ceiling,
	}
}

// Acquire blocks until a token is available, then consumes one budget unit.
// It fails with ErrBudgetExhausted when the ceiling is reached, and with the
// context error when ctx is cancelled while waiting. The ceiling check and
// counter increment are atomic relative to other acquirers.
func (l *Limiter) Acquire(ctx context.Context) error {
	// Fail fast before waiting on the bucket.
	l.mu.Lock()
	if l.used >= l.ceiling {
		l.mu.Unlock()
		return ErrBudgetExhausted
	}
	l.mu.Unlock()

	if err := l.bucket.Wait(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.used >= l.ceiling {
		return ErrBudgetExhausted
	}
	l.used++
	return nil
}

// Used returns the number of budget units consumed so far.
func (l *Limiter) Used() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used
}

// Remaining returns the budget units left before the ceiling.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ceiling - l.used
}

// Ceiling returns the configured hard ceiling.
func (l *Limiter) Ceiling() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ceiling
}

// Backoff returns the retry delay for the given zero-based attempt:
// min(base * 2^attempt + jitter, cap) with jitter uniform in [0, base).
func (l *Limiter) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := backoffBase << uint(attempt)
	if d <= 0 || d > backoffCap {
		d = backoffCap
	}
	jitter := time.Duration(rand.Int64N(int64(backoffBase)))
	if d+jitter > backoffCap {
		return backoffCap
	}
	return d + jitter
}
