// Package qubo builds the sparse QUBO (quadratic unconstrained binary
// optimization) encoding for the quantum-inspired algorithm variant and
// solves it with simulated annealing. Quantum/QUBO hardware access is
// explicitly out of scope for this spec (solver library choice is left
// open); the "mandatory transparent fallback" described for this variant
// is therefore the only backend implemented, and every caller is told the
// backend really used.
package qubo

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/schedcore/schedcore/internal/constraint"
	"github.com/schedcore/schedcore/internal/entity"
)

const (
	HardPenalty = 10000.0
	ACGMEPenalty = 5000.0
	SoftPenalty  = 100.0

	Backend = "simulated_annealing"
)

// Callback mirrors the scheduler's solution-callback contract.
type Callback struct {
	Report  func(iteration int, bestScore float64, assignments entity.AssignmentSet)
	Aborted func() bool
}

// Variable is one binary decision x[p,b,t] in the sparse QUBO.
type Variable struct {
	PersonID   entity.PersonID
	BlockID    entity.BlockID
	TemplateID entity.RotationTemplateID
}

// Solution is the annealer's output.
type Solution struct {
	Assignments entity.AssignmentSet
	Energy      float64
	Iterations  int
	Backend     string
	Aborted     bool
}

// BuildVariables enumerates the sparse set of binary variables worth
// considering: only (person, block, template) triples where the person is
// eligible for the template and not absent for the block. Variables outside
// this set are implicitly fixed to 0, keeping the QUBO sparse.
func BuildVariables(ctx *entity.SchedulingContext, templates []entity.RotationTemplate) []Variable {
	var out []Variable
	for _, block := range ctx.OrderedBlocks() {
		for _, rt := range templates {
			for _, p := range ctx.People {
				if !p.Active || p.IsDeleted() || !rt.Eligibility.Matches(p) {
					continue
				}
				if ctx.IsAbsent(p.ID, block.ID) {
					continue
				}
				out = append(out, Variable{PersonID: p.ID, BlockID: block.ID, TemplateID: rt.ID})
			}
		}
	}
	return out
}

// energy scores a candidate assignment set: the constraint library's hard
// violations at HardPenalty weight, plus its own reported soft score scaled
// by SoftPenalty so the annealer moves toward feasible, low-soft-score
// schedules in the same units.
func energy(lib *constraint.Library, ctx *entity.SchedulingContext, assignments entity.AssignmentSet) float64 {
	eval := lib.EvaluateSet(ctx, assignments)
	e := eval.SoftScore * SoftPenalty
	for _, v := range eval.Violations {
		if v.Tier == constraint.TierRegulatory {
			e += HardPenalty
		} else if v.Tier == constraint.TierInstitutional {
			e += ACGMEPenalty
		}
	}
	return e
}

// Anneal runs simulated annealing over the sparse variable set, each state
// a 0/1 assignment of every variable. Each move flips one variable: it adds
// that (person, block) assignment with the variable's template, or removes
// that person's assignment on that block; moves do not make a block's
// variables mutually exclusive. This annealer is the only backend, and
// Solution.Backend always reports "simulated_annealing".
func Anneal(ctx context.Context, schedCtx *entity.SchedulingContext, lib *constraint.Library, templates []entity.RotationTemplate, preserved entity.AssignmentSet, maxIterations int, rng *rand.Rand, cb Callback) *Solution {
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 2))
	}
	if maxIterations <= 0 {
		maxIterations = 2000
	}

	current := make(entity.AssignmentSet, len(preserved))
	copy(current, preserved)
	currentEnergy := energy(lib, schedCtx, current)

	best := append(entity.AssignmentSet(nil), current...)
	bestEnergy := currentEnergy

	vars := BuildVariables(schedCtx, templates)
	if len(vars) == 0 {
		return &Solution{Assignments: stripPreserved(best, preserved), Energy: bestEnergy, Backend: Backend}
	}

	temperature := 10.0
	cooling := 0.995

	iter := 0
	aborted := false
	for ; iter < maxIterations; iter++ {
		select {
		case <-ctx.Done():
			goto done
		default:
		}
		if cb.Aborted() {
			aborted = true
			break
		}

		v := vars[rng.IntN(len(vars))]
		proposal := proposeFlip(current, v)
		proposalEnergy := energy(lib, schedCtx, proposal)

		delta := proposalEnergy - currentEnergy
		if delta < 0 || rng.Float64() < acceptanceProbability(delta, temperature) {
			current = proposal
			currentEnergy = proposalEnergy
			if currentEnergy < bestEnergy {
				best = append(entity.AssignmentSet(nil), current...)
				bestEnergy = currentEnergy
			}
		}
		temperature *= cooling

		if iter%10 == 0 {
			cb.Report(iter, -bestEnergy, best)
		}
	}
done:

	return &Solution{
		Assignments: stripPreserved(best, preserved),
		Energy:      bestEnergy,
		Iterations:  iter,
		Backend:     Backend,
		Aborted:     aborted,
	}
}

func acceptanceProbability(delta, temperature float64) float64 {
	if temperature <= 0 {
		return 0
	}
	return expNeg(delta / temperature)
}

func expNeg(x float64) float64 {
	return math.Exp(-x)
}

func proposeFlip(current entity.AssignmentSet, v Variable) entity.AssignmentSet {
	out := make(entity.AssignmentSet, 0, len(current)+1)
	replaced := false
	for _, a := range current {
		if a.PersonID == v.PersonID && a.BlockID == v.BlockID {
			replaced = true
			continue
		}
		out = append(out, a)
	}
	if !replaced {
		out = append(out, entity.Assignment{
			ID: entity.NewAssignmentID(), PersonID: v.PersonID, BlockID: v.BlockID,
			RotationTemplateID: v.TemplateID, Source: entity.AssignmentSourceSolver, CreatedBy: "scheduler:quantum_sa",
		})
	}
	return out
}

func stripPreserved(accepted, preserved entity.AssignmentSet) entity.AssignmentSet {
	preservedIDs := make(map[entity.AssignmentID]bool, len(preserved))
	for _, a := range preserved {
		preservedIDs[a.ID] = true
	}
	out := make(entity.AssignmentSet, 0, len(accepted))
	for _, a := range accepted {
		if !preservedIDs[a.ID] {
			out = append(out, a)
		}
	}
	return out
}
