package constraint

import "github.com/schedcore/schedcore/internal/entity"

// MaxConsecutiveOnDutyConstraint caps consecutive on-duty blocks for a
// person, a Regulatory-tier rule that can never be relaxed.
type MaxConsecutiveOnDutyConstraint struct {
	BaseConstraint
	MaxConsecutive int
}

func NewMaxConsecutiveOnDutyConstraint(max int) *MaxConsecutiveOnDutyConstraint {
	return &MaxConsecutiveOnDutyConstraint{
		BaseConstraint: BaseConstraint{NameValue: "max_consecutive_on_duty", TierValue: TierRegulatory, WeightValue: 1000},
		MaxConsecutive: max,
	}
}

func (c *MaxConsecutiveOnDutyConstraint) Evaluate(ctx *entity.SchedulingContext, accepted entity.AssignmentSet, candidate entity.Assignment) (bool, *ViolationDetail) {
	rt, ok := ctx.RotationTemplateByID(candidate.RotationTemplateID)
	if !ok || !rt.ActivityType.IsOnDuty() {
		return true, nil
	}

	ordered := ctx.OrderedBlocks()
	blockIndex := make(map[entity.BlockID]int, len(ordered))
	for i, b := range ordered {
		blockIndex[b.ID] = i
	}
	candIdx, ok := blockIndex[candidate.BlockID]
	if !ok {
		return true, nil
	}

	onDuty := make(map[int]bool, len(accepted)+1)
	onDuty[candIdx] = true
	for _, a := range accepted.ForPerson(candidate.PersonID) {
		art, ok := ctx.RotationTemplateByID(a.RotationTemplateID)
		if !ok || !art.ActivityType.IsOnDuty() {
			continue
		}
		if idx, ok := blockIndex[a.BlockID]; ok {
			onDuty[idx] = true
		}
	}

	run := 1
	for i := candIdx - 1; i >= 0 && onDuty[i]; i-- {
		run++
	}
	for i := candIdx + 1; onDuty[i]; i++ {
		run++
	}

	if run > c.MaxConsecutive {
		return false, c.violation(candidate.PersonID, candidate.BlockID, "exceeds max consecutive on-duty blocks")
	}
	return true, nil
}

// MinRestAfterOnCallConstraint enforces a minimum rest period following a
// call block, another Regulatory-tier rule.
type MinRestAfterOnCallConstraint struct {
	BaseConstraint
	MinRestBlocks int
}

func NewMinRestAfterOnCallConstraint(minRest int) *MinRestAfterOnCallConstraint {
	return &MinRestAfterOnCallConstraint{
		BaseConstraint: BaseConstraint{NameValue: "min_rest_after_on_call", TierValue: TierRegulatory, WeightValue: 1000},
		MinRestBlocks:  minRest,
	}
}

func (c *MinRestAfterOnCallConstraint) Evaluate(ctx *entity.SchedulingContext, accepted entity.AssignmentSet, candidate entity.Assignment) (bool, *ViolationDetail) {
	ordered := ctx.OrderedBlocks()
	blockIndex := make(map[entity.BlockID]int, len(ordered))
	for i, b := range ordered {
		blockIndex[b.ID] = i
	}
	candIdx, ok := blockIndex[candidate.BlockID]
	if !ok {
		return true, nil
	}

	for _, a := range accepted.ForPerson(candidate.PersonID) {
		art, ok := ctx.RotationTemplateByID(a.RotationTemplateID)
		if !ok || art.ActivityType != entity.ActivityCall {
			continue
		}
		callIdx, ok := blockIndex[a.BlockID]
		if !ok {
			continue
		}
		gap := candIdx - callIdx
		if gap > 0 && gap < c.MinRestBlocks {
			return false, c.violation(candidate.PersonID, candidate.BlockID, "insufficient rest after on-call block")
		}
	}
	return true, nil
}

// TeamTogetherConstraint is an Institutional-tier preference that two
// designated people be scheduled to the same block whenever both are
// available, e.g. a resident/attending pairing requirement.
type TeamTogetherConstraint struct {
	BaseConstraint
	Pairs map[entity.PersonID]entity.PersonID
}

func NewTeamTogetherConstraint(pairs map[entity.PersonID]entity.PersonID) *TeamTogetherConstraint {
	return &TeamTogetherConstraint{
		BaseConstraint: BaseConstraint{NameValue: "team_together", TierValue: TierInstitutional, WeightValue: 50},
		Pairs:          pairs,
	}
}

func (c *TeamTogetherConstraint) Evaluate(ctx *entity.SchedulingContext, accepted entity.AssignmentSet, candidate entity.Assignment) (bool, *ViolationDetail) {
	partner, paired := c.Pairs[candidate.PersonID]
	if !paired {
		return true, nil
	}
	for _, a := range accepted.ForBlock(candidate.BlockID) {
		if a.PersonID == partner {
			return true, nil
		}
	}
	if ctx.IsAbsent(partner, candidate.BlockID) {
		return true, nil
	}
	return false, c.violation(candidate.PersonID, candidate.BlockID, "paired person not scheduled to the same block")
}

// CoverageBoundsConstraint keeps headcount for a block's rotation within its
// declared CoverageRequirement. Only Max is checked, as a Regulatory
// violation when a candidate would push headcount above it; understaffing
// below Min is not checked here.
type CoverageBoundsConstraint struct {
	BaseConstraint
}

func NewCoverageBoundsConstraint() *CoverageBoundsConstraint {
	return &CoverageBoundsConstraint{
		BaseConstraint: BaseConstraint{NameValue: "coverage_bounds", TierValue: TierRegulatory, WeightValue: 1000},
	}
}

func (c *CoverageBoundsConstraint) Evaluate(ctx *entity.SchedulingContext, accepted entity.AssignmentSet, candidate entity.Assignment) (bool, *ViolationDetail) {
	rt, ok := ctx.RotationTemplateByID(candidate.RotationTemplateID)
	if !ok {
		return true, nil
	}
	count := 1
	for _, a := range accepted.ForBlock(candidate.BlockID) {
		if a.RotationTemplateID == candidate.RotationTemplateID {
			count++
		}
	}
	if rt.Coverage.Max > 0 && count > rt.Coverage.Max {
		return false, c.violation(candidate.PersonID, candidate.BlockID, "rotation exceeds maximum coverage")
	}
	return true, nil
}

// CredentialRequiredConstraint requires that anyone assigned to the
// rotation hold all of its required credentials. Hard-coded in the
// template's EligibilityPredicate, re-checked here at assignment time since
// credentials can lapse after a template was authored.
type CredentialRequiredConstraint struct {
	BaseConstraint
}

func NewCredentialRequiredConstraint() *CredentialRequiredConstraint {
	return &CredentialRequiredConstraint{
		BaseConstraint: BaseConstraint{NameValue: "credential_required", TierValue: TierRegulatory, WeightValue: 1000},
	}
}

func (c *CredentialRequiredConstraint) Evaluate(ctx *entity.SchedulingContext, accepted entity.AssignmentSet, candidate entity.Assignment) (bool, *ViolationDetail) {
	rt, ok := ctx.RotationTemplateByID(candidate.RotationTemplateID)
	if !ok {
		return true, nil
	}
	person, ok := ctx.People[candidate.PersonID]
	if !ok {
		return true, nil
	}
	if !rt.Eligibility.Matches(person) {
		return false, c.violation(candidate.PersonID, candidate.BlockID, "person does not satisfy rotation eligibility")
	}
	return true, nil
}

// AbsenceConflictConstraint rejects assigning someone during a recorded
// absence window.
type AbsenceConflictConstraint struct {
	BaseConstraint
}

func NewAbsenceConflictConstraint() *AbsenceConflictConstraint {
	return &AbsenceConflictConstraint{
		BaseConstraint: BaseConstraint{NameValue: "absence_conflict", TierValue: TierRegulatory, WeightValue: 1000},
	}
}

func (c *AbsenceConflictConstraint) Evaluate(ctx *entity.SchedulingContext, accepted entity.AssignmentSet, candidate entity.Assignment) (bool, *ViolationDetail) {
	if ctx.IsAbsent(candidate.PersonID, candidate.BlockID) {
		return false, c.violation(candidate.PersonID, candidate.BlockID, "person is absent for this block")
	}
	return true, nil
}

// PreferenceAlignmentConstraint is an Optimization-tier soft term that
// penalizes assignments falling in a person's declared blackout (e.g. made
// by an emergency coverage search overriding soft preferences). Declared
// template preferences are not scored.
type PreferenceAlignmentConstraint struct {
	BaseConstraint
}

func NewPreferenceAlignmentConstraint() *PreferenceAlignmentConstraint {
	return &PreferenceAlignmentConstraint{
		BaseConstraint: BaseConstraint{NameValue: "preference_alignment", TierValue: TierOptimization, WeightValue: 1},
	}
}

func (c *PreferenceAlignmentConstraint) Evaluate(ctx *entity.SchedulingContext, accepted entity.AssignmentSet, candidate entity.Assignment) (bool, *ViolationDetail) {
	pv, ok := ctx.Preferences[candidate.PersonID]
	if !ok {
		return true, nil
	}
	if pv.IsBlackout(candidate.BlockID) {
		return false, c.violation(candidate.PersonID, candidate.BlockID, "assigned during a declared blackout")
	}
	return true, nil
}
