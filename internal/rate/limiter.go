package rate

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Decision is the outcome of one Check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is the wait before the window resets, in whole seconds within [1, window].
	RetryAfter int
	// Reset is when the current window ends.
	Reset time.Time
	// Degraded is set when the counter store failed and the request was let through.
	Degraded bool
}

// DegradedFunc observes counter store failures that caused a fail-open decision.
type DegradedFunc func(ctx context.Context, key string, err error)

// Limiter enforces fixed-window request budgets against a CounterStore.
type Limiter struct {
	store      CounterStore
	timeout    time.Duration
	onDegraded DegradedFunc
	now        func() time.Time
}

// New creates a Limiter. Each store call is bounded by timeout; onDegraded may be nil.
func New(store CounterStore, timeout time.Duration, onDegraded DegradedFunc) *Limiter {
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	return &Limiter{
		store:      store,
		timeout:    timeout,
		onDegraded: onDegraded,
		now:        time.Now,
	}
}

// Check counts one request for key against limit per window.
//
// When the counter store is unreachable or slow the request is allowed and the
// decision is flagged Degraded. An error is returned only for an invalid policy.
func (l *Limiter) Check(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 || window < time.Second {
		return Decision{}, fmt.Errorf("%w: limit=%d window=%s", ErrInvalidPolicy, limit, window)
	}

	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	count, remaining, err := l.store.Incr(callCtx, key, window)
	if err != nil {
		if l.onDegraded != nil {
			l.onDegraded(ctx, key, err)
		}
		return Decision{Allowed: true, Limit: limit, Remaining: limit, Degraded: true}, nil
	}

	d := Decision{
		Allowed:    count <= int64(limit),
		Limit:      limit,
		Remaining:  limit - int(count),
		RetryAfter: retryAfterSeconds(remaining, window),
		Reset:      l.now().Add(remaining),
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	return d, nil
}

// retryAfterSeconds is windowSeconds - elapsedInWindow rounded up, kept within [1, window].
func retryAfterSeconds(remaining, window time.Duration) int {
	secs := int(math.Ceil(remaining.Seconds()))
	maxSecs := int(window / time.Second)
	if secs > maxSecs {
		secs = maxSecs
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}
