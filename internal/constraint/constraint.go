// Package constraint holds the tiered rule library that the scheduling
// engine and compliance validator evaluate assignments against.
package constraint

import (
	"fmt"

	"github.com/schedcore/schedcore/internal/entity"
)

// Tier orders constraints by how negotiable a violation is. Regulatory
// constraints can never be relaxed; Optimization constraints are soft scoring
// terms consulted only to rank otherwise-feasible schedules.
type Tier int

const (
	TierRegulatory Tier = iota
	TierInstitutional
	TierSoft
	TierOptimization
)

func (t Tier) String() string {
	switch t {
	case TierRegulatory:
		return "REGULATORY"
	case TierInstitutional:
		return "INSTITUTIONAL"
	case TierSoft:
		return "SOFT"
	case TierOptimization:
		return "OPTIMIZATION"
	default:
		return "UNKNOWN"
	}
}

// ViolationDetail describes one concrete breach of a constraint, surfaced to
// callers through an EvaluateResult rather than as a Go error.
type ViolationDetail struct {
	ConstraintName string
	Tier           Tier
	PersonID       entity.PersonID
	BlockID        entity.BlockID
	Message        string
	Penalty        float64
}

// Constraint is the shared capability every rule in the library implements.
// There is no string-keyed registry: each constraint is an explicit Go type,
// so adding a new rule means adding a new type that satisfies this interface,
// not registering a string somewhere.
type Constraint interface {
	Name() string
	Tier() Tier
	IsHard() bool
	PenaltyWeight() float64
	// Evaluate checks candidate against the context and already-accepted
	// assignments, returning whether it passes and, if not, the violation.
	Evaluate(ctx *entity.SchedulingContext, accepted entity.AssignmentSet, candidate entity.Assignment) (bool, *ViolationDetail)
}

// BaseConstraint carries the fields common to every constraint
// implementation; concrete types embed it and implement Evaluate.
type BaseConstraint struct {
	NameValue   string
	TierValue   Tier
	WeightValue float64
}

func (b BaseConstraint) Name() string          { return b.NameValue }
func (b BaseConstraint) Tier() Tier             { return b.TierValue }
func (b BaseConstraint) IsHard() bool           { return b.TierValue == TierRegulatory || b.TierValue == TierInstitutional }
func (b BaseConstraint) PenaltyWeight() float64 { return b.WeightValue }

func (b BaseConstraint) violation(personID entity.PersonID, blockID entity.BlockID, msg string) *ViolationDetail {
	return &ViolationDetail{
		ConstraintName: b.NameValue,
		Tier:           b.TierValue,
		PersonID:       personID,
		BlockID:        blockID,
		Message:        msg,
		Penalty:        b.WeightValue,
	}
}

// Library is an ordered collection of constraints, evaluated tier by tier.
type Library struct {
	constraints []Constraint
}

// NewLibrary builds a library from the given constraints, preserving order
// within a tier but always evaluating Regulatory before Institutional before
// Soft before Optimization.
func NewLibrary(cs ...Constraint) *Library {
	ordered := make([]Constraint, len(cs))
	copy(ordered, cs)
	sortByTier(ordered)
	return &Library{constraints: ordered}
}

func sortByTier(cs []Constraint) {
	for i := 1; i < len(cs); i++ {
		j := i
		for j > 0 && cs[j-1].Tier() > cs[j].Tier() {
			cs[j-1], cs[j] = cs[j], cs[j-1]
			j--
		}
	}
}

// EvaluateResult is the outcome of running a candidate assignment through
// the full library.
type EvaluateResult struct {
	Feasible   bool // no hard-tier violation
	Violations []ViolationDetail
	SoftScore  float64 // sum of soft/optimization penalties, for ranking
}

// Evaluate runs candidate through every constraint in the library. A
// constraint that panics is reported as a VALIDATOR_FAULT violation of that
// constraint and evaluation continues with the next one.
func (l *Library) Evaluate(ctx *entity.SchedulingContext, accepted entity.AssignmentSet, candidate entity.Assignment) EvaluateResult {
	result := EvaluateResult{Feasible: true}
	for _, c := range l.constraints {
		ok, violation := func() (ok bool, v *ViolationDetail) {
			defer func() {
				if r := recover(); r != nil {
					ok, v = false, &ViolationDetail{
						ConstraintName: c.Name(), Tier: c.Tier(), PersonID: candidate.PersonID,
						BlockID: candidate.BlockID, Message: fmt.Sprintf("VALIDATOR_FAULT: %v", r), Penalty: c.PenaltyWeight(),
					}
				}
			}()
			return c.Evaluate(ctx, accepted, candidate)
		}()
		if ok {
			continue
		}
		result.Violations = append(result.Violations, *violation)
		if c.IsHard() {
			result.Feasible = false
		} else {
			result.SoftScore += violation.Penalty
		}
	}
	return result
}

// EvaluateSet scores a complete assignment set against itself, evaluating
// each assignment as a candidate against every other assignment already
// accepted. Used where the caller needs the aggregate feasibility/soft score
// of a schedule as a whole rather than one more candidate against it.
func (l *Library) EvaluateSet(ctx *entity.SchedulingContext, assignments entity.AssignmentSet) EvaluateResult {
	result := EvaluateResult{Feasible: true}
	for i, candidate := range assignments {
		accepted := make(entity.AssignmentSet, 0, len(assignments)-1)
		accepted = append(accepted, assignments[:i]...)
		accepted = append(accepted, assignments[i+1:]...)
		sub := l.Evaluate(ctx, accepted, candidate)
		result.Violations = append(result.Violations, sub.Violations...)
		result.SoftScore += sub.SoftScore
		if !sub.Feasible {
			result.Feasible = false
		}
	}
	return result
}

// Constraints returns the library's constraints in evaluation order.
func (l *Library) Constraints() []Constraint {
	out := make([]Constraint, len(l.constraints))
	copy(out, l.constraints)
	return out
}
