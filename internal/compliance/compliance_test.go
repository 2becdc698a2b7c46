package compliance

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/schedcore/schedcore/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDailyContext(t *testing.T, personID entity.PersonID, hoursPerDay float64, numDays int) *entity.SchedulingContext {
	t.Helper()
	rt := entity.RotationTemplate{
		ID:           uuid.New(),
		ActivityType: entity.ActivityInpatient,
		DutyHoursAM:  hoursPerDay,
	}
	person := entity.Person{ID: personID, Role: entity.RoleTrainee}

	var blocks []entity.Block
	var assignments []entity.Assignment
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < numDays; i++ {
		b := entity.Block{ID: uuid.New(), Date: start.AddDate(0, 0, i), Session: entity.SessionAM}
		blocks = append(blocks, b)
		assignments = append(assignments, entity.Assignment{
			ID: uuid.New(), PersonID: personID, BlockID: b.ID, RotationTemplateID: rt.ID,
		})
	}

	ctx, err := entity.BuildContext([]entity.Person{person}, blocks, []entity.RotationTemplate{rt}, assignments, nil, nil)
	require.NoError(t, err)
	return ctx
}

func TestValidateRollingWindowExceeded(t *testing.T) {
	personID := uuid.New()
	ctx := buildDailyContext(t, personID, 20, 28) // 28*20 = 560 > 320 hour limit

	v := NewValidator(entity.RealClock{})
	result := v.Validate(ctx)

	assert.True(t, result.HasErrors())
	msgs := result.MessagesByCode("ROLLING_WINDOW_EXCEEDED")
	assert.NotEmpty(t, msgs)
}

func TestValidateWithinLimits(t *testing.T) {
	personID := uuid.New()
	ctx := buildDailyContext(t, personID, 8, 5)

	v := NewValidator(entity.RealClock{})
	result := v.Validate(ctx)

	assert.False(t, result.HasErrors())
}

func TestValidateConsecutiveDutyLimit(t *testing.T) {
	personID := uuid.New()
	ctx := buildDailyContext(t, personID, 8, 8) // 8 consecutive days > limit of 6

	v := NewValidator(entity.RealClock{})
	result := v.Validate(ctx)

	msgs := result.MessagesByCode("CONSECUTIVE_DUTY_LIMIT")
	assert.NotEmpty(t, msgs)
}

func TestValidateEmptyContext(t *testing.T) {
	ctx, err := entity.BuildContext(nil, nil, nil, nil, nil, nil)
	require.NoError(t, err)

	v := NewValidator(entity.RealClock{})
	result := v.Validate(ctx)

	assert.False(t, result.HasErrors())
}
