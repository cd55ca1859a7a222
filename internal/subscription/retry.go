package subscription

import (
	"context"
	"log"
	"math"
	"time"
)

// Policy bounds the retry-with-backoff subscription resync. The constants
// absorb payment-webhook propagation delay; they are tunable policy, not a
// strict consistency mechanism.
type Policy struct {
	// MaxRetries is how many unresolved attempts trigger a backoff retry.
	MaxRetries int
	// InitialDelay is the first backoff delay.
	InitialDelay time.Duration
	// Multiplier grows the delay after each unresolved attempt.
	Multiplier float64
	// MaxDelay caps a single backoff delay.
	MaxDelay time.Duration
	// GraceDelay is the wait before re-checking a confirmed-absent result once.
	GraceDelay time.Duration
}

// DefaultPolicy returns the default resync policy: 5 retries, 1s initial
// delay doubling up to 10s, 500ms grace re-check.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   5,
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     10 * time.Second,
		GraceDelay:   500 * time.Millisecond,
	}
}

// Delay returns the backoff delay after the n-th unresolved attempt (0-based):
// min(InitialDelay * Multiplier^n, MaxDelay).
func (p Policy) Delay(n int) time.Duration {
	d := time.Duration(float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(n)))
	if d > p.MaxDelay || d <= 0 {
		return p.MaxDelay
	}
	return d
}

// Syncer wraps a Fetcher with the bounded retry loop. Worst-case latency is
// the sum of the backoff series, tens of seconds under the default policy;
// callers invoking Sync synchronously must treat it as a long-running
// operation.
type Syncer struct {
	fetcher Fetcher
	policy  Policy
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewSyncer returns a Syncer over fetcher with the given policy.
func NewSyncer(fetcher Fetcher, policy Policy) *Syncer {
	return &Syncer{fetcher: fetcher, policy: policy, sleep: sleepCtx}
}

// Sync fetches until a resolved outcome or retries are exhausted.
//
// A confirmed-absent result is re-checked exactly once after GraceDelay
// before it is accepted as final, absorbing the common case where the payment
// webhook has not landed yet. An unresolved attempt n sleeps Delay(n) and
// retries; exhaustion returns the unresolved outcome and the caller must
// leave any prior status untouched.
func (s *Syncer) Sync(ctx context.Context, accessToken string) Outcome {
	graceUsed := false
	failures := 0
	for {
		out := s.fetcher.Fetch(ctx, accessToken)
		switch {
		case out.Resolved && out.Status != nil:
			return out
		case out.Resolved:
			if graceUsed {
				return out
			}
			graceUsed = true
			if err := s.sleep(ctx, s.policy.GraceDelay); err != nil {
				return Outcome{}
			}
		default:
			if failures >= s.policy.MaxRetries {
				log.Printf("subscription: resync exhausted after %d retries; status unknown", s.policy.MaxRetries)
				return out
			}
			if err := s.sleep(ctx, s.policy.Delay(failures)); err != nil {
				return Outcome{}
			}
			failures++
		}
	}
}

// sleepCtx waits for d or until ctx is done, returning ctx.Err() in that case.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
