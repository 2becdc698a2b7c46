package coreerr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreErrorUnwrap(t *testing.T) {
	cause := errors.New("db down")
	err := New(KindTransient, "saving assignment", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindTransient, KindOf(err))
	assert.True(t, IsRetryable(err))
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestRetrySucceedsEventually(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return New(KindTransient, "flaky", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	cfg := DefaultRetryConfig()

	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return New(KindValidation, "bad input", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
