package source

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidRequest is a caller error: the request is outside coverage or
// malformed for this provider. Never retried.
type ErrInvalidRequest struct {
	Source string
	Detail string
}

func (e *ErrInvalidRequest) Error() string {
	return fmt.Sprintf("%s: invalid request: %s", e.Source, e.Detail)
}

// Retryable implements infra.RetryableError.
func (e *ErrInvalidRequest) Retryable() bool { return false }

// ErrRateLimited means the provider rejected the call for quota reasons.
// Transient; retried per policy.
type ErrRateLimited struct {
	Source     string
	RetryAfter time.Duration // 0 when the provider gave no hint
}

func (e *ErrRateLimited) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited (retry after %s)", e.Source, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Source)
}

func (e *ErrRateLimited) Retryable() bool { return true }

// DelayHint implements infra.DelayHinter so the retry policy waits at
// least as long as the provider asked.
func (e *ErrRateLimited) DelayHint() time.Duration { return e.RetryAfter }

// ErrUnavailable covers timeouts, transient network failures, and
// 5xx-equivalent responses. Transient; retried per policy.
type ErrUnavailable struct {
	Source string
	Err    error
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("%s: unavailable: %v", e.Source, e.Err)
}

func (e *ErrUnavailable) Unwrap() error   { return e.Err }
func (e *ErrUnavailable) Retryable() bool { return true }

// ErrMalformedResponse means the provider returned data that failed
// plausibility or structural checks. Not retried against the same
// provider, but fallback to the next provider is attempted.
type ErrMalformedResponse struct {
	Source string
	Detail string
}

func (e *ErrMalformedResponse) Error() string {
	return fmt.Sprintf("%s: malformed response: %s", e.Source, e.Detail)
}

func (e *ErrMalformedResponse) Retryable() bool { return false }

// ErrAllSourcesFailed is the terminal per-request failure after every
// configured provider has been exhausted. It aggregates the per-source
// reasons and is surfaced to the batch ledger, never raised as a fatal
// condition.
type ErrAllSourcesFailed struct {
	Attempts map[string]error // provider name → final error
}

func (e *ErrAllSourcesFailed) Error() string {
	if len(e.Attempts) == 0 {
		return "all sources failed: no sources configured"
	}
	names := make([]string, 0, len(e.Attempts))
	for name := range e.Attempts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", name, e.Attempts[name]))
	}
	return "all sources failed: " + strings.Join(parts, "; ")
}
