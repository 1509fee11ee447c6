// Package retry runs network-bound calls under an explicit attempt/delay policy.
// Exhaustion never panics or aborts the caller: it is reported in the Outcome.
package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Backoff int

const (
	BackoffFixed Backoff = iota
	BackoffLinear
	BackoffExponential
)

type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     Backoff
}

// Default is 5 attempts with a fixed 5s pause.
func Default() Policy {
	return Policy{MaxAttempts: 5, Delay: 5 * time.Second, Backoff: BackoffFixed}
}

// Wait returns the pause after the given failed attempt (1-based).
func (p Policy) Wait(attempt int) time.Duration {
	switch p.Backoff {
	case BackoffLinear:
		return p.Delay * time.Duration(attempt)
	case BackoffExponential:
		return p.Delay * time.Duration(1<<(attempt-1))
	default:
		return p.Delay
	}
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Outcome is the result of Do. Err holds the last failure when every attempt failed.
type Outcome[T any] struct {
	Value    T
	Attempts int
	Err      error
}

func (o Outcome[T]) OK() bool { return o.Err == nil }

// Do calls fn until it succeeds, the policy is exhausted or ctx is done.
func Do[T any](ctx context.Context, log zerolog.Logger, p Policy, op string, fn func(ctx context.Context) (T, error)) Outcome[T] {
	var out Outcome[T]
	max := p.attempts()

	for attempt := 1; attempt <= max; attempt++ {
		out.Attempts = attempt

		v, err := fn(ctx)
		if err == nil {
			out.Value = v
			out.Err = nil
			return out
		}
		out.Err = err

		if attempt == max {
			break
		}

		wait := p.Wait(attempt)
		log.Warn().Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("attempt failed, retrying")

		if !sleep(ctx, wait) {
			out.Err = ctx.Err()
			log.Warn().Str("op", op).Int("attempt", attempt).Msg("retry aborted: context done")
			return out
		}
	}

	log.Error().Err(out.Err).Str("op", op).Int("attempts", out.Attempts).Msg("giving up")
	return out
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
