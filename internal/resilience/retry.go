// Package resilience retries calls to unreliable generation providers with
// exponential backoff.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hrithiknl17/socialagent/internal/provider"
)

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = 500 * time.Millisecond
)

// ErrRetriesExhausted wraps the last error once the attempt budget is spent.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Policy controls how Call retries. The zero value uses the defaults.
type Policy struct {
	// MaxRetries is the total number of attempts, including the first.
	MaxRetries int
	// InitialDelay is the wait after the first failed attempt; it doubles
	// after each subsequent failure.
	InitialDelay time.Duration
	// Retryable decides whether err is worth another attempt.
	// Defaults to provider.IsRetryable.
	Retryable func(error) bool
	// OnRetry, if set, runs before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
	// Name labels log lines.
	Name string
}

// DefaultPolicy returns a policy with the package defaults.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: DefaultMaxRetries, InitialDelay: DefaultInitialDelay}
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	if p.Retryable == nil {
		p.Retryable = provider.IsRetryable
	}
	return p
}

// Backoff returns the delay that follows failed attempt k (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.InitialDelay << (attempt - 1)
}

// Call invokes op until it succeeds, returns a non-retryable error, or the
// attempt budget runs out. Non-retryable errors are returned unchanged after
// exactly one invocation. When the budget is exhausted the last error is
// returned wrapped with ErrRetriesExhausted.
func Call[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if !p.Retryable(err) {
			return zero, err
		}

		lastErr = err
		if attempt == p.MaxRetries {
			break
		}

		delay := p.Backoff(attempt)
		slog.Warn("resilience: retrying after failure",
			"call", p.Name,
			"attempt", attempt,
			"max_attempts", p.MaxRetries,
			"delay", delay,
			"error", err,
		)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, p.MaxRetries, lastErr)
}
