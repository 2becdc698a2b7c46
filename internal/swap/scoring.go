// Package swap implements transactional assignment exchange: compatibility
// scoring, matching, cycle detection, and atomic execution with rollback.
package swap

import (
	"math"
	"sort"

	"github.com/schedcore/schedcore/internal/entity"
)

// MinAutoMatchScore filters weak matches out of auto-matching results.
const MinAutoMatchScore = 0.6

// weights for the five compatibility components, summing to 1.0.
const (
	weightScheduleCompat  = 0.30
	weightPreference      = 0.20
	weightWorkloadBalance = 0.20
	weightCredentialMatch = 0.20
	weightTemporal        = 0.10
)

// Request is one side of a candidate swap: a person offering up
// givingAssignment in exchange for a slot on wantedBlock.
type Request struct {
	PersonID         entity.PersonID
	GivingAssignment entity.Assignment
	WantedBlockID    entity.BlockID
}

// CompatibilityScore scores how well a and b fit together as a bilateral
// swap, in [0,1]. The weighted total is clamped to [0,1].
func CompatibilityScore(ctx *entity.SchedulingContext, a, b Request) float64 {
	score := weightScheduleCompat*scheduleCompatibility(ctx, a, b) +
		weightPreference*preferenceAlignment(ctx, a, b) +
		weightWorkloadBalance*workloadBalance(ctx, a, b) +
		weightCredentialMatch*credentialMatch(ctx, a, b) +
		weightTemporal*temporalProximity(ctx, a, b)

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// scheduleCompatibility is 1.0 when neither party is already booked on, or
// absent for, the block it wants; 0 on any conflict. Coverage of the
// exchanged rotations is not compared.
func scheduleCompatibility(ctx *entity.SchedulingContext, a, b Request) float64 {
	byKey := ctx.Assignments.ByPersonBlock()
	if _, booked := byKey[entity.AssignmentKey{PersonID: a.PersonID, BlockID: a.WantedBlockID}]; booked {
		return 0
	}
	if _, booked := byKey[entity.AssignmentKey{PersonID: b.PersonID, BlockID: b.WantedBlockID}]; booked {
		return 0
	}
	if ctx.IsAbsent(a.PersonID, a.WantedBlockID) || ctx.IsAbsent(b.PersonID, b.WantedBlockID) {
		return 0
	}
	return 1
}

// preferenceAlignment rewards a swap that moves each party off a blackout
// block, penalizes one that moves a party onto a blackout block, and
// penalizes giving up a rotation template the party weights positively.
func preferenceAlignment(ctx *entity.SchedulingContext, a, b Request) float64 {
	delta := preferenceDelta(ctx, a.PersonID, a.GivingAssignment, a.WantedBlockID) +
		preferenceDelta(ctx, b.PersonID, b.GivingAssignment, b.WantedBlockID)
	// Normalize an unbounded weight delta into [0,1] with a soft squash.
	return 0.5 + 0.5*math.Tanh(delta)
}

func preferenceDelta(ctx *entity.SchedulingContext, personID entity.PersonID, giving entity.Assignment, wantedBlock entity.BlockID) float64 {
	pref, ok := ctx.Preferences[personID]
	if !ok {
		return 0
	}
	delta := 0.0
	if pref.IsBlackout(giving.BlockID) {
		delta += 1
	}
	if pref.IsBlackout(wantedBlock) {
		delta -= 1
	}
	delta += pref.TemplateWeights[giving.RotationTemplateID] * -0.1
	return delta
}

// workloadBalance scores how much the swap reduces the Gini coefficient of
// assignment counts across active people; an even-further-unequal swap
// scores low.
func workloadBalance(ctx *entity.SchedulingContext, a, b Request) float64 {
	before := assignmentCounts(ctx.Assignments)
	after := simulateSwap(ctx.Assignments, a, b)
	afterCounts := assignmentCounts(after)

	giniBefore := giniCoefficient(before)
	giniAfter := giniCoefficient(afterCounts)

	if giniBefore == 0 {
		if giniAfter == 0 {
			return 1
		}
		return 0
	}
	improvement := (giniBefore - giniAfter) / giniBefore
	return 0.5 + 0.5*clamp(improvement, -1, 1)
}

func simulateSwap(set entity.AssignmentSet, a, b Request) entity.AssignmentSet {
	out := make(entity.AssignmentSet, len(set))
	copy(out, set)
	for i, asn := range out {
		if asn.ID == a.GivingAssignment.ID {
			out[i].PersonID = b.PersonID
		}
		if asn.ID == b.GivingAssignment.ID {
			out[i].PersonID = a.PersonID
		}
	}
	return out
}

func assignmentCounts(set entity.AssignmentSet) map[entity.PersonID]int {
	counts := make(map[entity.PersonID]int)
	for _, a := range set {
		counts[a.PersonID]++
	}
	return counts
}

// giniCoefficient computes the Gini coefficient of a distribution of
// nonnegative counts; 0 is perfectly even, approaching 1 is maximally
// unequal.
func giniCoefficient(counts map[entity.PersonID]int) float64 {
	if len(counts) == 0 {
		return 0
	}
	values := make([]float64, 0, len(counts))
	var sum float64
	for _, c := range counts {
		values = append(values, float64(c))
		sum += float64(c)
	}
	if sum == 0 {
		return 0
	}
	sort.Float64s(values)

	n := float64(len(values))
	var weighted float64
	for i, v := range values {
		weighted += (2*float64(i+1) - n - 1) * v
	}
	return weighted / (n * sum)
}

// credentialMatch is the fraction of the destination rotation template's
// required credentials each party already holds for the other's block.
func credentialMatch(ctx *entity.SchedulingContext, a, b Request) float64 {
	return (credentialFit(ctx, a.PersonID, b.GivingAssignment.RotationTemplateID) + credentialFit(ctx, b.PersonID, a.GivingAssignment.RotationTemplateID)) / 2
}

func credentialFit(ctx *entity.SchedulingContext, personID entity.PersonID, templateID entity.RotationTemplateID) float64 {
	person, ok := ctx.People[personID]
	if !ok {
		return 0
	}
	rt, ok := ctx.RotationTemplateByID(templateID)
	if !ok || len(rt.Eligibility.RequiredCredentials) == 0 {
		return 1
	}
	matched := 0
	for _, cred := range rt.Eligibility.RequiredCredentials {
		if person.HasCredential(cred) {
			matched++
		}
	}
	return float64(matched) / float64(len(rt.Eligibility.RequiredCredentials))
}

// temporalProximity favors swaps between blocks close together in time;
// decays to 0 over an eight-week horizon.
func temporalProximity(ctx *entity.SchedulingContext, a, b Request) float64 {
	ba, aok := ctx.Blocks[a.GivingAssignment.BlockID]
	bb, bok := ctx.Blocks[b.GivingAssignment.BlockID]
	if !aok || !bok {
		return 0
	}
	weeks := math.Abs(bb.Date.Sub(ba.Date).Hours() / (24 * 7))
	const horizonWeeks = 8
	if weeks >= horizonWeeks {
		return 0
	}
	return 1 - weeks/horizonWeeks
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
