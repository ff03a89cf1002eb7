// Package retry runs optimistic read-modify-write bodies until they commit without a version conflict.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/logger"
)

// Policy bounds the retries of an optimistic update
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy returns the policy used when none is configured
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     5,
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}
}

// Outcome is how an optimistic update ended
type Outcome int

const (
	// OutcomeCommitted means the body succeeded
	OutcomeCommitted Outcome = iota
	// OutcomeExhausted means every attempt lost a version conflict
	OutcomeExhausted
	// OutcomeFailed means the body failed for a reason other than a conflict
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "committed"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "failed"
	}
}

// Result is the value of the last successful attempt, or why there was none
type Result[T any] struct {
	Value    T
	Outcome  Outcome
	Attempts int
	// Err wraps domain.ErrRetryExhausted when Outcome is OutcomeExhausted
	Err error
}

// WithOptimisticRetry runs body until it returns an error that is not domain.ErrConflict.
// Conflicts are retried with exponential backoff up to MaxAttempts attempts in total.
func WithOptimisticRetry[T any](ctx context.Context, policy Policy, body func(ctx context.Context) (T, error)) Result[T] {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		b.MaxInterval = policy.MaxInterval
	}
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0.5

	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(policy.MaxAttempts-1)), ctx)

	var result Result[T]
	operation := func() error {
		result.Attempts++
		value, err := body(ctx)
		if err == nil {
			result.Value = value
			return nil
		}
		if errors.Is(err, domain.ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, next time.Duration) {
		logger.DebugCtx(ctx, "Optimistic update conflicted, retrying",
			zap.Error(err),
			zap.Int("attempt", result.Attempts),
			zap.Duration("next_retry_in", next),
		)
	}

	err := backoff.RetryNotify(operation, bo, notify)
	switch {
	case err == nil:
		result.Outcome = OutcomeCommitted
	case errors.Is(err, domain.ErrConflict):
		result.Outcome = OutcomeExhausted
		result.Err = fmt.Errorf("%w after %d attempts: %w", domain.ErrRetryExhausted, result.Attempts, err)
	default:
		result.Outcome = OutcomeFailed
		result.Err = err
	}
	return result
}
