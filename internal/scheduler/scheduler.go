// Package scheduler implements the scheduling engine: algorithm-polymorphic
// generation of half-day clinic assignments against a constraint library,
// with a control plane (abort) and a progress plane backed by an ephemeral
// keyed store, per the run protocol.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/schedcore/schedcore/internal/constraint"
	"github.com/schedcore/schedcore/internal/coreerr"
	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/ephemeral"
	"github.com/schedcore/schedcore/internal/workerpool"
)

// Algorithm selects the solver backend for generate/optimize.
type Algorithm string

const (
	AlgorithmCPSAT     Algorithm = "cp_sat"
	AlgorithmGreedy    Algorithm = "greedy"
	AlgorithmPulp      Algorithm = "pulp"
	AlgorithmQuantumSA Algorithm = "quantum_sa"
)

// Status is the terminal state of a Result.
type Status string

const (
	StatusOK                    Status = "OK"
	StatusInfeasibleNoTemplates Status = "INFEASIBLE_NO_TEMPLATES"
	StatusInfeasible            Status = "INFEASIBLE"
	StatusTimeout                Status = "TIMEOUT"
	StatusAborted                Status = "ABORTED"
	StatusInternalError          Status = "INTERNAL_ERROR"
)

const DefaultNumWorkers = 8

// Config bounds one generate/optimize/generate_pareto invocation.
type Config struct {
	Start, End     time.Time
	Algorithm      Algorithm
	TimeoutSeconds int
	NumWorkers     int
}

// Result is the contract every algorithm variant returns.
type Result struct {
	RunID       entity.RunID
	Assignments entity.AssignmentSet
	Violations  []constraint.ViolationDetail
	Statistics  map[string]interface{}
	Status      Status
}

// SolutionCallback is the progress/abort yield point every solver backend
// (CP-SAT branch-and-bound, greedy, QUBO annealer) must honor.
type SolutionCallback struct {
	// Report publishes a candidate's iteration count and objective score.
	// Implementations must call this at least once per iteration (CP-SAT)
	// or every 10 assignments (greedy).
	Report func(iteration int, bestScore float64, assignments entity.AssignmentSet)
	// Aborted reports whether request_abort has been observed for this run.
	Aborted func() bool
}

// ProgressSnapshot is the JSON shape persisted to the progress plane.
type ProgressSnapshot struct {
	RunID            entity.RunID `json:"run_id"`
	Iteration        int          `json:"iteration"`
	BestScore        float64      `json:"best_score"`
	AssignmentsCount int          `json:"assignments_count"`
	ViolationsCount  int          `json:"violations_count"`
	Status           Status       `json:"status"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// BackupMarker is the Mandatory Safety Gate collaborator: the engine only
// checks freshness, it never creates backups itself.
type BackupMarker interface {
	LatestBackupAge(ctx context.Context) (time.Duration, error)
}

const maxBackupAge = 2 * time.Hour

// Engine runs generate/optimize/generate_pareto over a SchedulingContext.
type Engine struct {
	lib     *constraint.Library
	clock   entity.Clock
	store   ephemeral.Store
	backup  BackupMarker
	rules   *PreassignmentRuleSet

	tracer     trace.Tracer
	scoreGauge metric.Float64Gauge
	iterGauge  metric.Int64Gauge

	mu     sync.Mutex
	active map[entity.RunID]struct{}
}

// NewEngine wires a scheduling engine. backup may be nil for flows that skip
// the safety gate (e.g. pareto exploration, which never mutates the store).
func NewEngine(lib *constraint.Library, clock entity.Clock, store ephemeral.Store, backup BackupMarker, rules *PreassignmentRuleSet) *Engine {
	if clock == nil {
		clock = entity.RealClock{}
	}
	if rules == nil {
		rules = NewPreassignmentRuleSet(DefaultPreassignmentConfig())
	}
	meter := otel.Meter("github.com/schedcore/schedcore/internal/scheduler")
	scoreGauge, _ := meter.Float64Gauge("scheduler.best_score")
	iterGauge, _ := meter.Int64Gauge("scheduler.iteration")

	return &Engine{
		lib:        lib,
		clock:      clock,
		store:      store,
		backup:     backup,
		rules:      rules,
		tracer:     otel.Tracer("github.com/schedcore/schedcore/internal/scheduler"),
		scoreGauge: scoreGauge,
		iterGauge:  iterGauge,
		active:     make(map[entity.RunID]struct{}),
	}
}

// templatesForSolver filters the rotation catalog to the half-day-optimized
// templates the solver owns. Block-assigned rotations (inpatient, night
// float, NICU) are preserved, never generated.
func templatesForSolver(ctx *entity.SchedulingContext) []entity.RotationTemplate {
	var out []entity.RotationTemplate
	for _, rt := range ctx.RotationTemplates {
		if rt.ActivityType == entity.ActivityClinic {
			out = append(out, rt)
		}
	}
	return out
}

func (e *Engine) checkSafetyGate(ctx context.Context) error {
	if e.backup == nil {
		return nil
	}
	age, err := e.backup.LatestBackupAge(ctx)
	if err != nil {
		return coreerr.New(coreerr.KindBackupMissing, "NO_RECENT_BACKUP: could not read backup freshness marker", err)
	}
	if age >= maxBackupAge {
		return coreerr.New(coreerr.KindBackupMissing, fmt.Sprintf("NO_RECENT_BACKUP: latest backup is %s old", age), nil)
	}
	return nil
}

func (e *Engine) register(runID entity.RunID) {
	e.mu.Lock()
	e.active[runID] = struct{}{}
	e.mu.Unlock()
}

func (e *Engine) unregister(runID entity.RunID) {
	e.mu.Lock()
	delete(e.active, runID)
	e.mu.Unlock()
}

// ActiveRuns lists runs with live progress.
func (e *Engine) ActiveRuns() []entity.RunID {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]entity.RunID, 0, len(e.active))
	for id := range e.active {
		out = append(out, id)
	}
	return out
}

// RequestAbort sets a durable abort flag the running solver observes within
// one iteration. Requests issued after completion are ignored by the
// solver's own callback (it simply never reads the flag again).
func (e *Engine) RequestAbort(ctx context.Context, runID entity.RunID, reason string) error {
	return e.store.Set(ctx, ephemeral.AbortFlagKey(runID.String()), []byte(reason), ephemeral.AbortFlagTTL)
}

func (e *Engine) isAborted(ctx context.Context, runID entity.RunID) bool {
	_, ok, err := e.store.Get(ctx, ephemeral.AbortFlagKey(runID.String()))
	return err == nil && ok
}

// Progress fetches the latest published snapshot for a run.
func (e *Engine) Progress(ctx context.Context, runID entity.RunID) (*ProgressSnapshot, error) {
	raw, ok, err := e.store.Get(ctx, ephemeral.ProgressKey(runID.String()))
	if err != nil {
		return nil, coreerr.New(coreerr.KindTransient, "reading progress snapshot", err)
	}
	if !ok {
		return nil, coreerr.New(coreerr.KindNotFound, "no progress recorded for run", nil)
	}
	var snap ProgressSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, coreerr.New(coreerr.KindInternal, "decoding progress snapshot", err)
	}
	return &snap, nil
}

func (e *Engine) publishProgress(ctx context.Context, snap ProgressSnapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	_ = e.store.Set(ctx, ephemeral.ProgressKey(snap.RunID.String()), raw, ephemeral.ProgressTTL)
	e.scoreGauge.Record(ctx, snap.BestScore, metric.WithAttributes(attribute.String("run_id", snap.RunID.String())))
	e.iterGauge.Record(ctx, int64(snap.Iteration), metric.WithAttributes(attribute.String("run_id", snap.RunID.String())))
}

// Generate produces an assignment set honoring every hard constraint and
// minimizing weighted soft-constraint penalties, filtered to the
// half-day-optimized templates and seeded with the pre-assignment rules'
// block-assigned output.
func (e *Engine) Generate(ctx context.Context, schedCtx *entity.SchedulingContext, cfg Config) (*Result, error) {
	if err := e.checkSafetyGate(ctx); err != nil {
		return nil, err
	}

	runID := uuid.New()
	e.register(runID)
	defer e.unregister(runID)

	ctx, span := e.tracer.Start(ctx, "scheduler.generate",
		trace.WithAttributes(attribute.String("run_id", runID.String()), attribute.String("algorithm", string(cfg.Algorithm))))
	defer span.End()

	templates := templatesForSolver(schedCtx)
	if len(templates) == 0 {
		return &Result{RunID: runID, Status: StatusInfeasibleNoTemplates}, nil
	}

	preassigned := e.rules.Apply(schedCtx)
	preserved := preserveBlockAssigned(schedCtx, preassigned)

	if cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = DefaultNumWorkers
	}

	callback := SolutionCallback{
		Report: func(iteration int, bestScore float64, assignments entity.AssignmentSet) {
			e.publishProgress(ctx, ProgressSnapshot{
				RunID: runID, Iteration: iteration, BestScore: bestScore,
				AssignmentsCount: len(assignments), Status: StatusOK, UpdatedAt: e.clock.Now(),
			})
		},
		Aborted: func() bool { return e.isAborted(ctx, runID) },
	}

	result, err := e.dispatch(ctx, schedCtx, templates, preserved, cfg, callback)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	result.RunID = runID

	e.publishProgress(ctx, ProgressSnapshot{
		RunID: runID, Iteration: -1, BestScore: -result.scoreOf(e.lib, schedCtx), AssignmentsCount: len(result.Assignments),
		ViolationsCount: len(result.Violations), Status: result.Status, UpdatedAt: e.clock.Now(),
	})
	return result, nil
}

// scoreOf is a convenience for final progress publication; it is not part
// of the public Result contract.
func (r *Result) scoreOf(lib *constraint.Library, ctx *entity.SchedulingContext) float64 {
	return lib.EvaluateSet(ctx, r.Assignments).SoftScore
}

func (e *Engine) dispatch(ctx context.Context, schedCtx *entity.SchedulingContext, templates []entity.RotationTemplate, preserved entity.AssignmentSet, cfg Config, cb SolutionCallback) (*Result, error) {
	switch cfg.Algorithm {
	case AlgorithmGreedy, "":
		return e.runGreedy(ctx, schedCtx, templates, preserved, cb)
	case AlgorithmCPSAT, AlgorithmPulp:
		return e.runCPSAT(ctx, schedCtx, templates, preserved, cb)
	case AlgorithmQuantumSA:
		return e.runQUBO(ctx, schedCtx, templates, preserved, cb)
	default:
		return nil, coreerr.New(coreerr.KindValidation, fmt.Sprintf("unknown algorithm %q", cfg.Algorithm), nil)
	}
}

// preserveBlockAssigned keeps every non-clinic assignment already in the
// context plus the pre-assignment rules' output; the solver never touches
// these blocks.
func preserveBlockAssigned(ctx *entity.SchedulingContext, preassigned entity.AssignmentSet) entity.AssignmentSet {
	out := make(entity.AssignmentSet, 0, len(ctx.Assignments)+len(preassigned))
	for _, a := range ctx.Assignments {
		rt, ok := ctx.RotationTemplateByID(a.RotationTemplateID)
		if ok && rt.ActivityType != entity.ActivityClinic {
			out = append(out, a)
		}
	}
	out = append(out, preassigned...)
	return out
}

// Optimize improves an existing schedule by local search within the same
// contract: it regenerates the clinic assignments and keeps whichever of
// the existing or regenerated set scores better on the soft objective,
// never discarding a feasible existing schedule for an infeasible one.
func (e *Engine) Optimize(ctx context.Context, schedCtx *entity.SchedulingContext, existing entity.AssignmentSet, cfg Config) (*Result, error) {
	result, err := e.Generate(ctx, schedCtx, cfg)
	if err != nil {
		return nil, err
	}
	existingEval := e.lib.EvaluateSet(schedCtx, existing)
	if result.Status == StatusInfeasible && existingEval.Feasible {
		result.Status = StatusOK
		result.Assignments = existing
		result.Violations = violationsFrom(existingEval)
		result.Statistics["kept_existing"] = true
		return result, nil
	}
	if result.Status != StatusOK {
		return result, nil
	}

	if existingEval.Feasible && existingEval.SoftScore < result.scoreOf(e.lib, schedCtx) {
		result.Assignments = existing
		result.Violations = violationsFrom(existingEval)
		result.Statistics["kept_existing"] = true
	}
	return result, nil
}

// WeightSet is one point in the objective-weight grid swept by
// generate_pareto: relative importance of fairness, coverage, and
// preference-match. GeneratePareto records the weights on each result's
// Statistics["weights"]; they are not passed to the solver.
type WeightSet struct {
	Fairness, Coverage, Preference float64
}

// GeneratePareto returns one Result per point on the weight grid, in grid
// order; callers reduce the returned slice to its Pareto frontier. Every
// point runs the same Generate with cfg, so the weights only label the
// results and do not change the solutions. Each grid point runs on
// the bounded worker pool so a wide sweep doesn't serialize on solver CPU
// time.
func (e *Engine) GeneratePareto(ctx context.Context, schedCtx *entity.SchedulingContext, weightsGrid []WeightSet, cfg Config) ([]*Result, error) {
	results := make([]*Result, len(weightsGrid))
	tasks := make([]workerpool.Task, len(weightsGrid))
	for i, w := range weightsGrid {
		i, w := i, w
		tasks[i] = func() error {
			result, err := e.Generate(ctx, schedCtx, cfg)
			if err != nil {
				return err
			}
			if result.Statistics == nil {
				result.Statistics = map[string]interface{}{}
			}
			result.Statistics["weights"] = w
			results[i] = result
			return nil
		}
	}
	if errs := workerpool.Run(clampWorkers(cfg.NumWorkers), tasks); len(errs) > 0 {
		return nil, errs[0]
	}
	return results, nil
}

func violationsFrom(eval constraint.EvaluateResult) []constraint.ViolationDetail {
	return eval.Violations
}

// clampWorkers bounds a requested worker count to something workerpool.Run
// accepts sanely; kept here so every algorithm shares the same policy.
func clampWorkers(n int) int {
	if n <= 0 {
		return DefaultNumWorkers
	}
	return n
}
