// Package infra provides the shared resilience primitives of the fetch
// pipeline: per-provider-channel rate limiting and bounded retry with
// exponential backoff. The primitives have no side effects beyond timing
// and delegation.
package infra

import (
	"context"
	"errors"
	"sync"
	"time"
)

// --- Rate limiter ---

// RateLimiter enforces a minimum delay between consecutive calls on one
// external provider channel. It serializes timing decisions across all
// concurrent callers targeting that channel.
type RateLimiter struct {
	mu       sync.Mutex
	minDelay time.Duration
	last     time.Time
}

// NewRateLimiter creates a limiter with the given minimum inter-call delay.
func NewRateLimiter(minDelay time.Duration) *RateLimiter {
	return &RateLimiter{minDelay: minDelay}
}

// Wait blocks until the minimum delay since the previous call on this
// channel has elapsed, or the context is cancelled. The first call on a
// fresh limiter passes immediately.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	now := time.Now()
	var sleep time.Duration
	if !rl.last.IsZero() {
		if elapsed := now.Sub(rl.last); elapsed < rl.minDelay {
			sleep = rl.minDelay - elapsed
		}
	}
	// Reserve the slot before sleeping so concurrent callers queue up
	// behind each other rather than all firing at once.
	rl.last = now.Add(sleep)
	rl.mu.Unlock()

	if sleep <= 0 {
		return nil
	}
	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Limiters hands out one RateLimiter per named channel, so concurrency
// across facilities never violates a single provider's quota.
type Limiters struct {
	mu       sync.Mutex
	minDelay time.Duration
	channels map[string]*RateLimiter
}

// NewLimiters creates a registry whose channels share one minimum delay.
func NewLimiters(minDelay time.Duration) *Limiters {
	return &Limiters{
		minDelay: minDelay,
		channels: make(map[string]*RateLimiter),
	}
}

// Channel returns the limiter for the named provider channel, creating it
// on first use.
func (ls *Limiters) Channel(name string) *RateLimiter {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	rl, ok := ls.channels[name]
	if !ok {
		rl = NewRateLimiter(ls.minDelay)
		ls.channels[name] = rl
	}
	return rl
}

// --- Retry policy ---

// RetryableError lets an error declare whether the operation that produced
// it may be attempted again. Errors without the method are not retried.
type RetryableError interface {
	error
	Retryable() bool
}

// IsRetryable reports whether err (or any wrapped error) declares itself
// retryable. Context cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var re RetryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return false
}

// DelayHinter lets an error carry the provider's own wait advice, such as
// a Retry-After header. The hint acts as a floor on the backoff delay.
type DelayHinter interface {
	error
	DelayHint() time.Duration
}

// RetryPolicy wraps a fallible operation with rate limiting and bounded
// exponential backoff. The zero value retries nothing.
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	BackoffMultiplier float64

	// OnAttempt, when set, observes every attempt and its result. It must
	// not block.
	OnAttempt func(attempt int, err error)
}

// Do runs op, pacing each attempt (including the first) through the given
// channel limiter. Retryable failures back off BaseDelay × multiplier^attempt
// up to MaxRetries; a DelayHinter error raises the delay to its hint.
// Non-retryable failures return immediately.
func (p RetryPolicy) Do(ctx context.Context, limiter *RateLimiter, op func(ctx context.Context) error) error {
	mult := p.BackoffMultiplier
	if mult <= 0 {
		mult = 1
	}

	var err error
	for attempt := 0; ; attempt++ {
		if limiter != nil {
			if werr := limiter.Wait(ctx); werr != nil {
				return werr
			}
		}

		err = op(ctx)
		if p.OnAttempt != nil {
			p.OnAttempt(attempt, err)
		}
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt >= p.MaxRetries {
			return err
		}

		delay := p.BaseDelay
		for i := 0; i < attempt; i++ {
			delay = time.Duration(float64(delay) * mult)
		}
		var dh DelayHinter
		if errors.As(err, &dh) {
			if hint := dh.DelayHint(); hint > delay {
				delay = hint
			}
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
