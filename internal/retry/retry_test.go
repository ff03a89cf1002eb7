package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/feral-file/ff-state-reducer/internal/domain"
)

var fast = Policy{MaxAttempts: 4, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

func TestWithOptimisticRetry_CommitsAfterConflicts(t *testing.T) {
	calls := 0
	res := WithOptimisticRetry(context.Background(), fast, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", fmt.Errorf("save: %w", domain.ErrConflict)
		}
		return "ok", nil
	})

	assert.Equal(t, OutcomeCommitted, res.Outcome)
	assert.Equal(t, "ok", res.Value)
	assert.Equal(t, 3, res.Attempts)
	assert.NoError(t, res.Err)
}

func TestWithOptimisticRetry_Exhausted(t *testing.T) {
	res := WithOptimisticRetry(context.Background(), fast, func(ctx context.Context) (int, error) {
		return 0, domain.ErrConflict
	})

	assert.Equal(t, OutcomeExhausted, res.Outcome)
	assert.Equal(t, fast.MaxAttempts, res.Attempts)
	assert.ErrorIs(t, res.Err, domain.ErrRetryExhausted)
	assert.ErrorIs(t, res.Err, domain.ErrConflict)
}

func TestWithOptimisticRetry_FailsFastOnOtherErrors(t *testing.T) {
	boom := errors.New("database unavailable")
	res := WithOptimisticRetry(context.Background(), fast, func(ctx context.Context) (int, error) {
		return 0, boom
	})

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.ErrorIs(t, res.Err, boom)
}

func TestWithOptimisticRetry_SingleAttemptPolicy(t *testing.T) {
	res := WithOptimisticRetry(context.Background(), Policy{}, func(ctx context.Context) (int, error) {
		return 0, domain.ErrConflict
	})

	assert.Equal(t, OutcomeExhausted, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
}

func TestWithOptimisticRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	slow := Policy{MaxAttempts: 10, InitialInterval: time.Second, MaxInterval: time.Second}

	res := WithOptimisticRetry(ctx, slow, func(ctx context.Context) (int, error) {
		cancel()
		return 0, domain.ErrConflict
	})

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 1, res.Attempts)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "committed", OutcomeCommitted.String())
	assert.Equal(t, "exhausted", OutcomeExhausted.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
}
