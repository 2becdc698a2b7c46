package scheduler

import (
	"context"
	"sort"

	"github.com/schedcore/schedcore/internal/constraint"
	"github.com/schedcore/schedcore/internal/entity"
)

// runGreedy iterates blocks chronologically; for each open block it picks
// the eligible, hard-constraint-satisfying person with the lowest current
// load, tie-breaking on fewest existing assignments on that template.
// Abort is checked every 10 assignments per §4.4.3.
func (e *Engine) runGreedy(ctx context.Context, schedCtx *entity.SchedulingContext, templates []entity.RotationTemplate, preserved entity.AssignmentSet, cb SolutionCallback) (*Result, error) {
	accepted := make(entity.AssignmentSet, len(preserved))
	copy(accepted, preserved)
	load := make(map[entity.PersonID]int)
	templateLoad := make(map[personTemplate]int)
	for _, a := range accepted {
		load[a.PersonID]++
		templateLoad[personTemplate{a.PersonID, a.RotationTemplateID}]++
	}

	people := make([]entity.Person, 0, len(schedCtx.People))
	for _, p := range schedCtx.People {
		if p.Active && !p.IsDeleted() {
			people = append(people, p)
		}
	}

	iteration := 0
	status := StatusOK

blocks:
	for _, block := range schedCtx.OrderedBlocks() {
		for _, rt := range templates {
			if alreadyFilled(accepted, block.ID, rt.ID, rt.Coverage.Target) {
				continue
			}
			needed := rt.Coverage.Target - countForBlockTemplate(accepted, block.ID, rt.ID)
			for i := 0; i < needed; i++ {
				candidate, ok := pickCandidate(schedCtx, e.lib, accepted, people, block, rt, load, templateLoad)
				if !ok {
					continue
				}
				assignment := entity.Assignment{
					ID: entity.NewAssignmentID(), PersonID: candidate.ID, BlockID: block.ID,
					RotationTemplateID: rt.ID, Source: entity.AssignmentSourceSolver, CreatedBy: "scheduler:greedy",
				}
				accepted = append(accepted, assignment)
				load[candidate.ID]++
				templateLoad[personTemplate{candidate.ID, rt.ID}]++

				iteration++
				if iteration%10 == 0 {
					cb.Report(iteration, -float64(e.lib.EvaluateSet(schedCtx, accepted).SoftScore), accepted)
					if cb.Aborted() {
						status = StatusAborted
						break blocks
					}
				}
				select {
				case <-ctx.Done():
					status = StatusTimeout
					break blocks
				default:
				}
			}
		}
	}

	eval := e.lib.EvaluateSet(schedCtx, accepted)
	if status == StatusOK && !eval.Feasible {
		status = StatusInfeasible
	}
	result := &Result{
		Assignments: generatedOnly(accepted, preserved),
		Violations:  eval.Violations,
		Status:      status,
		Statistics: map[string]interface{}{
			"algorithm":  string(AlgorithmGreedy),
			"iterations": iteration,
			"soft_score": eval.SoftScore,
		},
	}
	if status == StatusInfeasible {
		result.Assignments = nil
	}
	return result, nil
}

func alreadyFilled(accepted entity.AssignmentSet, blockID entity.BlockID, templateID entity.RotationTemplateID, target int) bool {
	return countForBlockTemplate(accepted, blockID, templateID) >= target
}

func countForBlockTemplate(accepted entity.AssignmentSet, blockID entity.BlockID, templateID entity.RotationTemplateID) int {
	n := 0
	for _, a := range accepted.ForBlock(blockID) {
		if a.RotationTemplateID == templateID {
			n++
		}
	}
	return n
}

// generatedOnly strips the preserved (block-assigned) set back out of the
// accumulated accepted set so Result.Assignments reflects only what this
// invocation produced, matching generate()'s contract.
func generatedOnly(accepted, preserved entity.AssignmentSet) entity.AssignmentSet {
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

// pickCandidate selects the eligible, hard-constraint-satisfying person
// with the lowest current load, tie-breaking on fewest assignments already
// held on this specific template.
func pickCandidate(
	schedCtx *entity.SchedulingContext,
	lib *constraint.Library,
	accepted entity.AssignmentSet,
	people []entity.Person,
	block entity.Block,
	rt entity.RotationTemplate,
	load map[entity.PersonID]int,
	templateLoad map[personTemplate]int,
) (entity.Person, bool) {
	type scored struct {
		person       entity.Person
		load         int
		templateLoad int
	}
	var candidates []scored
	for _, p := range people {
		if !rt.Eligibility.Matches(p) {
			continue
		}
		if schedCtx.IsAbsent(p.ID, block.ID) {
			continue
		}
		if hasAssignment(accepted, p.ID, block.ID) {
			continue
		}
		cand := entity.Assignment{
			ID: entity.NewAssignmentID(), PersonID: p.ID, BlockID: block.ID,
			RotationTemplateID: rt.ID, Source: entity.AssignmentSourceSolver,
		}
		eval := lib.Evaluate(schedCtx, accepted, cand)
		if !eval.Feasible {
			continue
		}
		candidates = append(candidates, scored{person: p, load: load[p.ID], templateLoad: templateLoad[personTemplate{p.ID, rt.ID}]})
	}
	if len(candidates) == 0 {
		return entity.Person{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].load != candidates[j].load {
			return candidates[i].load < candidates[j].load
		}
		return candidates[i].templateLoad < candidates[j].templateLoad
	})
	return candidates[0].person, true
}

func hasAssignment(accepted entity.AssignmentSet, personID entity.PersonID, blockID entity.BlockID) bool {
	for _, a := range accepted.ForPerson(personID) {
		if a.BlockID == blockID {
			return true
		}
	}
	return false
}

// personTemplate keys the per-template load tie-break: fewest existing
// assignments a person holds on this specific rotation template.
type personTemplate struct {
	PersonID   entity.PersonID
	TemplateID entity.RotationTemplateID
}
