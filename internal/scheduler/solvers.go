package scheduler

import (
	"context"

	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/scheduler/cpsat"
	"github.com/schedcore/schedcore/internal/scheduler/qubo"
)

// runCPSAT dispatches to the branch-and-bound constraint-propagation search
// for both cp_sat and its pulp alias: both names describe the same
// decision-variable/constraint encoding, just different historical solver
// libraries for it, and this module implements the encoding itself rather
// than binding either.
func (e *Engine) runCPSAT(ctx context.Context, schedCtx *entity.SchedulingContext, templates []entity.RotationTemplate, preserved entity.AssignmentSet, cb SolutionCallback) (*Result, error) {
	sol := cpsat.Solve(ctx, schedCtx, e.lib, templates, preserved, cpsat.Callback{
		Report:  cb.Report,
		Aborted: cb.Aborted,
	})

	status := StatusOK
	switch {
	case sol.Aborted:
		status = StatusAborted
	case ctx.Err() != nil:
		status = StatusTimeout
	case !sol.Feasible:
		status = StatusInfeasible
	}

	result := &Result{
		Status: status,
		Statistics: map[string]interface{}{
			"algorithm":  "cp_sat",
			"nodes":      sol.Nodes,
			"backtracks": sol.Backtracks,
		},
	}
	if status == StatusOK {
		result.Assignments = sol.Assignments
		eval := e.lib.EvaluateSet(schedCtx, append(append(entity.AssignmentSet(nil), preserved...), sol.Assignments...))
		result.Violations = eval.Violations
		result.Statistics["soft_score"] = eval.SoftScore
	}
	return result, nil
}

// runQUBO dispatches to the simulated-annealing QUBO solver. The mandatory
// transparent fallback means this is the only backend ever reported, and
// Statistics["backend"] always says so.
func (e *Engine) runQUBO(ctx context.Context, schedCtx *entity.SchedulingContext, templates []entity.RotationTemplate, preserved entity.AssignmentSet, cb SolutionCallback) (*Result, error) {
	sol := qubo.Anneal(ctx, schedCtx, e.lib, templates, preserved, 0, nil, qubo.Callback{
		Report:  cb.Report,
		Aborted: cb.Aborted,
	})

	status := StatusOK
	switch {
	case sol.Aborted:
		status = StatusAborted
	case ctx.Err() != nil:
		status = StatusTimeout
	}

	whole := append(append(entity.AssignmentSet(nil), preserved...), sol.Assignments...)
	eval := e.lib.EvaluateSet(schedCtx, whole)
	if status == StatusOK && !eval.Feasible {
		status = StatusInfeasible
	}

	result := &Result{
		Status: status,
		Statistics: map[string]interface{}{
			"algorithm":  string(AlgorithmQuantumSA),
			"backend":    sol.Backend,
			"iterations": sol.Iterations,
			"energy":     sol.Energy,
		},
	}
	if status == StatusOK {
		result.Assignments = sol.Assignments
		result.Violations = eval.Violations
		result.Statistics["soft_score"] = eval.SoftScore
	}
	return result, nil
}
