// Package cpsat implements the decision-variable/constraint encoding
// described for the CP-SAT algorithm variant: x[p,b,t] in {0,1} with an
// at-most-one-per-block constraint per person. This is a pure-Go
// branch-and-bound search with constraint propagation (pruning branches
// the constraint library already rejects) rather than a vendored CP-SAT
// library — solver library choice is explicitly left open by the spec this
// package implements.
package cpsat

import (
	"context"

	"github.com/schedcore/schedcore/internal/constraint"
	"github.com/schedcore/schedcore/internal/entity"
)

// Callback mirrors the scheduler's solution-callback contract without
// importing the scheduler package, so this stays a leaf dependency.
type Callback struct {
	Report  func(iteration int, bestScore float64, assignments entity.AssignmentSet)
	Aborted func() bool
}

// Solution is the outcome of one branch-and-bound search.
type Solution struct {
	Assignments entity.AssignmentSet
	Feasible    bool
	Nodes       int
	Backtracks  int
	Aborted     bool
}

// slot is one (block, template) replica the search must fill.
type slot struct {
	block    entity.Block
	template entity.RotationTemplate
}

// nodeBudget bounds the search so a pathological instance cannot run
// forever; a budget-exhausted search returns its best-so-far solution.
const nodeBudget = 20000

// Solve runs branch-and-bound over every open (block, template) slot,
// propagating the constraint library at each assignment to prune
// infeasible branches before recursing.
func Solve(ctx context.Context, schedCtx *entity.SchedulingContext, lib *constraint.Library, templates []entity.RotationTemplate, preserved entity.AssignmentSet, cb Callback) *Solution {
	slots := buildSlots(schedCtx, templates, preserved)

	accepted := make(entity.AssignmentSet, len(preserved))
	copy(accepted, preserved)

	people := activePeople(schedCtx)

	s := &search{
		ctx:      ctx,
		ground:   schedCtx,
		lib:      lib,
		people:   people,
		cb:       cb,
		best:     nil,
		bestSoft: -1,
	}

	s.run(slots, 0, accepted)

	sol := &Solution{Nodes: s.nodes, Backtracks: s.backtracks, Aborted: s.aborted}
	if s.best != nil {
		sol.Assignments = stripPreserved(s.best, preserved)
		sol.Feasible = true
	}
	return sol
}

type search struct {
	ctx      context.Context
	ground   *entity.SchedulingContext
	lib      *constraint.Library
	people   []entity.Person
	cb       Callback
	best     entity.AssignmentSet
	bestSoft float64
	nodes    int
	backtracks int
	aborted  bool
	done     bool
}

func (s *search) run(slots []slot, idx int, accepted entity.AssignmentSet) {
	if s.done || s.aborted {
		return
	}
	select {
	case <-s.ctx.Done():
		s.done = true
		return
	default:
	}

	s.nodes++
	if s.nodes%1 == 0 {
		s.cb.Report(s.nodes, s.currentScore(accepted), accepted)
		if s.cb.Aborted() {
			s.aborted = true
			return
		}
	}
	if s.nodes > nodeBudget {
		s.done = true
		return
	}

	if idx == len(slots) {
		eval := s.lib.EvaluateSet(s.ground, accepted)
		if eval.Feasible && (s.best == nil || eval.SoftScore < s.bestSoft) {
			s.best = append(entity.AssignmentSet(nil), accepted...)
			s.bestSoft = eval.SoftScore
		}
		return
	}

	sl := slots[idx]
	for _, p := range s.people {
		if s.done || s.aborted {
			return
		}
		if !sl.template.Eligibility.Matches(p) {
			continue
		}
		if s.ground.IsAbsent(p.ID, sl.block.ID) {
			continue
		}
		if hasAssignment(accepted, p.ID, sl.block.ID) {
			continue
		}
		cand := entity.Assignment{
			ID: entity.NewAssignmentID(), PersonID: p.ID, BlockID: sl.block.ID,
			RotationTemplateID: sl.template.ID, Source: entity.AssignmentSourceSolver, CreatedBy: "scheduler:cp_sat",
		}
		eval := s.lib.Evaluate(s.ground, accepted, cand)
		if !eval.Feasible {
			continue
		}
		s.run(slots, idx+1, append(accepted, cand))
		s.backtracks++
	}
}

func (s *search) currentScore(accepted entity.AssignmentSet) float64 {
	return -s.lib.EvaluateSet(s.ground, accepted).SoftScore
}

func buildSlots(ctx *entity.SchedulingContext, templates []entity.RotationTemplate, preserved entity.AssignmentSet) []slot {
	var out []slot
	for _, block := range ctx.OrderedBlocks() {
		for _, rt := range templates {
			filled := 0
			for _, a := range preserved.ForBlock(block.ID) {
				if a.RotationTemplateID == rt.ID {
					filled++
				}
			}
			for i := filled; i < rt.Coverage.Target; i++ {
				out = append(out, slot{block: block, template: rt})
			}
		}
	}
	return out
}

func activePeople(ctx *entity.SchedulingContext) []entity.Person {
	var out []entity.Person
	for _, p := range ctx.People {
		if p.Active && !p.IsDeleted() {
			out = append(out, p)
		}
	}
	return out
}

func hasAssignment(accepted entity.AssignmentSet, personID entity.PersonID, blockID entity.BlockID) bool {
	for _, a := range accepted.ForPerson(personID) {
		if a.BlockID == blockID {
			return true
		}
	}
	return false
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
