package entity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwapRecordTransitionHappyPath(t *testing.T) {
	rec := &SwapRecord{ID: uuid.New(), Status: SwapStatusPending}
	t0 := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, rec.Transition(SwapStatusValidated, t0))
	assert.Equal(t, SwapStatusValidated, rec.Status)
	require.NotNil(t, rec.ValidatedAt)

	t1 := t0.Add(time.Hour)
	require.NoError(t, rec.Transition(SwapStatusExecuted, t1))
	assert.Equal(t, SwapStatusExecuted, rec.Status)
	require.NotNil(t, rec.ExecutedAt)
}

func TestSwapRecordTransitionRejected(t *testing.T) {
	rec := &SwapRecord{ID: uuid.New(), Status: SwapStatusExecuted}

	err := rec.Transition(SwapStatusValidated, time.Now())
	assert.ErrorIs(t, err, ErrInvalidSwapTransition)
}

func TestSwapRecordCanRollback(t *testing.T) {
	executedAt := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	rec := SwapRecord{Status: SwapStatusExecuted, ExecutedAt: &executedAt}

	assert.True(t, rec.CanRollback(executedAt.Add(23*time.Hour)))
	assert.False(t, rec.CanRollback(executedAt.Add(25*time.Hour)))

	pending := SwapRecord{Status: SwapStatusPending}
	assert.False(t, pending.CanRollback(time.Now()))
}
