package constraint

import (
	"testing"

	"github.com/google/uuid"
	"github.com/schedcore/schedcore/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rotationTemplate(activity entity.ActivityType, max int) entity.RotationTemplate {
	return entity.RotationTemplate{
		ID:           uuid.New(),
		ActivityType: activity,
		Coverage:     entity.CoverageRequirement{Max: max},
	}
}

func TestCoverageBoundsConstraintRejectsOverstaff(t *testing.T) {
	rt := rotationTemplate(entity.ActivityInpatient, 1)
	block := entity.Block{ID: uuid.New()}
	p1, p2 := uuid.New(), uuid.New()

	ctx, err := entity.BuildContext(nil, []entity.Block{block}, []entity.RotationTemplate{rt}, nil, nil, nil)
	require.NoError(t, err)

	accepted := entity.AssignmentSet{{ID: uuid.New(), PersonID: p1, BlockID: block.ID, RotationTemplateID: rt.ID}}
	candidate := entity.Assignment{ID: uuid.New(), PersonID: p2, BlockID: block.ID, RotationTemplateID: rt.ID}

	c := NewCoverageBoundsConstraint()
	ok, violation := c.Evaluate(ctx, accepted, candidate)

	assert.False(t, ok)
	require.NotNil(t, violation)
	assert.Equal(t, TierRegulatory, violation.Tier)
}

func TestAbsenceConflictConstraint(t *testing.T) {
	person := entity.Person{ID: uuid.New()}
	day := entity.Block{ID: uuid.New()}
	absence := entity.Absence{PersonID: person.ID, Start: day.Date, End: day.Date, Reason: entity.AbsenceSick}

	ctx, err := entity.BuildContext([]entity.Person{person}, []entity.Block{day}, nil, nil, []entity.Absence{absence}, nil)
	require.NoError(t, err)

	c := NewAbsenceConflictConstraint()
	ok, violation := c.Evaluate(ctx, nil, entity.Assignment{PersonID: person.ID, BlockID: day.ID})

	assert.False(t, ok)
	require.NotNil(t, violation)
}

func TestCredentialRequiredConstraint(t *testing.T) {
	rt := entity.RotationTemplate{
		ID:          uuid.New(),
		Eligibility: entity.EligibilityPredicate{RequiredCredentials: []string{"NICU"}},
	}
	person := entity.Person{ID: uuid.New()}
	block := entity.Block{ID: uuid.New()}

	ctx, err := entity.BuildContext([]entity.Person{person}, []entity.Block{block}, []entity.RotationTemplate{rt}, nil, nil, nil)
	require.NoError(t, err)

	c := NewCredentialRequiredConstraint()
	ok, _ := c.Evaluate(ctx, nil, entity.Assignment{PersonID: person.ID, BlockID: block.ID, RotationTemplateID: rt.ID})
	assert.False(t, ok)
}

func TestLibraryEvaluateOrdersByTier(t *testing.T) {
	lib := NewLibrary(
		NewPreferenceAlignmentConstraint(),
		NewAbsenceConflictConstraint(),
		NewCoverageBoundsConstraint(),
	)

	tiers := make([]Tier, 0)
	for _, c := range lib.Constraints() {
		tiers = append(tiers, c.Tier())
	}
	for i := 1; i < len(tiers); i++ {
		assert.LessOrEqual(t, tiers[i-1], tiers[i])
	}
}

func TestLibraryEvaluateFeasible(t *testing.T) {
	person := entity.Person{ID: uuid.New()}
	block := entity.Block{ID: uuid.New()}
	rt := entity.RotationTemplate{ID: uuid.New(), Coverage: entity.CoverageRequirement{Max: 5}}

	ctx, err := entity.BuildContext([]entity.Person{person}, []entity.Block{block}, []entity.RotationTemplate{rt}, nil, nil, nil)
	require.NoError(t, err)

	lib := NewLibrary(NewCoverageBoundsConstraint(), NewAbsenceConflictConstraint())
	result := lib.Evaluate(ctx, nil, entity.Assignment{PersonID: person.ID, BlockID: block.ID, RotationTemplateID: rt.ID})

	assert.True(t, result.Feasible)
	assert.Empty(t, result.Violations)
}
