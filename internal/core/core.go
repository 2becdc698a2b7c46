// Package core wires the scheduling engine, swap engine, resilience
// analyzer, and constraint library into one facade. Generate, RequestSwap,
// and ExecuteSwap take an optional idempotency key (byte-identical replay on
// retry); ValidateSwap and RollbackSwap take none. The mandatory safety gate
// (backup freshness) is checked by the scheduling engine on Generate only.
// Notifier events are dispatched without blocking on delivery.
package core

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/schedcore/schedcore/internal/constraint"
	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/lockmgr"
	"github.com/schedcore/schedcore/internal/repository"
	"github.com/schedcore/schedcore/internal/resilience"
	"github.com/schedcore/schedcore/internal/scheduler"
	"github.com/schedcore/schedcore/internal/swap"
)

// Event is a fire-and-forget notification dispatched after an operation
// completes (or needs human escalation, per the swap engine's tier-4
// emergency coverage search).
type Event struct {
	Type    string
	Details map[string]interface{}
}

// Notifier delivers Events out of band. Dispatch must never block the
// caller on delivery succeeding; production wiring backs this with an
// Asynq task enqueue, generalizing the teacher's own fire-and-forget job
// dispatch pattern.
type Notifier interface {
	Dispatch(ctx context.Context, event Event) error
}

// swapNotifierAdapter lets a core.Notifier satisfy swap.Notifier without
// the swap package needing to know about core.Event.
type swapNotifierAdapter struct {
	notifier Notifier
}

func (a swapNotifierAdapter) NotifyEscalation(ctx context.Context, subject string, details map[string]interface{}) error {
	if a.notifier == nil {
		return nil
	}
	return a.notifier.Dispatch(ctx, Event{Type: subject, Details: details})
}

// Core is the transport-agnostic facade every cmd/schedcore command and
// internal/runqueue job handler calls through.
type Core struct {
	db       repository.Database
	lib      *constraint.Library
	clock    entity.Clock
	log      *logrus.Logger
	notifier Notifier

	scheduler  *scheduler.Engine
	swap       *swap.Engine
	resilience *resilience.Analyzer
}

// New wires every collaborator. schedEngine is constructed by the caller
// (its ephemeral.Store is typically Redis in production and has its own
// wiring concerns separate from repository.Database) and handed in ready
// to use.
func New(db repository.Database, lib *constraint.Library, clock entity.Clock, log *logrus.Logger, notifier Notifier, locker lockmgr.Locker, schedEngine *scheduler.Engine) *Core {
	if clock == nil {
		clock = entity.RealClock{}
	}
	if log == nil {
		log = logrus.New()
	}

	c := &Core{db: db, lib: lib, clock: clock, log: log, notifier: notifier, scheduler: schedEngine}
	c.swap = swap.NewEngine(db, locker, clock, log, swapNotifierAdapter{notifier: notifier})
	c.resilience = resilience.NewAnalyzer(clock)
	return c
}

func (c *Core) dispatch(ctx context.Context, event Event) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Dispatch(ctx, event); err != nil {
		c.log.WithError(err).WithField("event_type", event.Type).Warn("notifier dispatch failed")
	}
}

// GenerateRequest is the generate operation's idempotency-hashed body.
type GenerateRequest struct {
	Start          time.Time
	End            time.Time
	Algorithm      scheduler.Algorithm
	TimeoutSeconds int
}

// GenerateResult is generate's idempotent, JSON-replayable response.
type GenerateResult struct {
	RunID       entity.RunID              `json:"run_id"`
	Status      scheduler.Status          `json:"status"`
	Assignments entity.AssignmentSet      `json:"assignments"`
	Statistics  map[string]interface{}    `json:"statistics"`
}

// Generate runs the scheduling engine over [req.Start, req.End] (both ends
// inclusive, as the repository's date-range queries are), persisting
// nothing itself -- callers are expected to write Result.Assignments back
// through the repository once satisfied with the outcome (generate is a
// proposal, not a commit, matching §4.4's documented read-only contract).
func (c *Core) Generate(ctx context.Context, req GenerateRequest, idempotencyKey string) (*GenerateResult, error) {
	var result GenerateResult
	err := c.withIdempotency(ctx, idempotencyKey, req, &result, func(ctx context.Context) error {
		schedCtx, err := c.BuildSchedulingContext(ctx, req.Start, req.End)
		if err != nil {
			return err
		}
		r, err := c.scheduler.Generate(ctx, schedCtx, scheduler.Config{
			Start: req.Start, End: req.End, Algorithm: req.Algorithm, TimeoutSeconds: req.TimeoutSeconds,
		})
		if err != nil {
			return err
		}
		result = GenerateResult{RunID: r.RunID, Status: r.Status, Assignments: r.Assignments, Statistics: r.Statistics}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.dispatch(ctx, Event{Type: "generate.completed", Details: map[string]interface{}{"run_id": result.RunID, "status": result.Status}})
	return &result, nil
}

// ValidateResult is validate's response: whether the queried window's
// persisted assignments currently satisfy every constraint.
type ValidateResult struct {
	Feasible   bool                         `json:"feasible"`
	Violations []constraint.ViolationDetail `json:"violations"`
}

// Validate scores the persisted assignments in [start, end] against the
// constraint library, with no solver involvement -- a pure compliance
// check over whatever is already committed.
func (c *Core) Validate(ctx context.Context, start, end time.Time) (*ValidateResult, error) {
	schedCtx, err := c.BuildSchedulingContext(ctx, start, end)
	if err != nil {
		return nil, err
	}
	eval := c.lib.EvaluateSet(schedCtx, schedCtx.Assignments)
	return &ValidateResult{Feasible: eval.Feasible, Violations: eval.Violations}, nil
}

// AbortRun requests that a running generate/optimize invocation stop at its
// next yield point.
func (c *Core) AbortRun(ctx context.Context, runID entity.RunID, reason string) error {
	return c.scheduler.RequestAbort(ctx, runID, reason)
}

// Progress reports the latest published snapshot for a run.
func (c *Core) Progress(ctx context.Context, runID entity.RunID) (*scheduler.ProgressSnapshot, error) {
	return c.scheduler.Progress(ctx, runID)
}

// ActiveRuns lists runs with live progress.
func (c *Core) ActiveRuns() []entity.RunID {
	return c.scheduler.ActiveRuns()
}

// AnalyzeResilienceResult bundles the Resilience Analyzer's metrics for one
// reporting window.
type AnalyzeResilienceResult struct {
	Utilization        resilience.UtilizationReport `json:"utilization"`
	N1Vulnerability     float64                      `json:"n1_vulnerability"`
	N2                  resilience.N2Result          `json:"n2"`
	DegradedModeAdvised bool                         `json:"degraded_mode_advised"`
	SacrificeHierarchy  []entity.ActivityType        `json:"sacrifice_hierarchy"`
}

// AnalyzeResilience runs every resilience metric over [start, end].
func (c *Core) AnalyzeResilience(ctx context.Context, start, end time.Time) (*AnalyzeResilienceResult, error) {
	schedCtx, err := c.BuildSchedulingContext(ctx, start, end)
	if err != nil {
		return nil, err
	}
	util := c.resilience.Utilization(schedCtx)
	n1 := c.resilience.N1Vulnerability(ctx, schedCtx, c.lib)
	n2 := c.resilience.N2Vulnerability(ctx, schedCtx, c.lib)
	degraded := resilience.DegradedModeRecommended(util.System, n1)

	result := &AnalyzeResilienceResult{
		Utilization: util, N1Vulnerability: n1, N2: n2,
		DegradedModeAdvised: degraded, SacrificeHierarchy: resilience.SacrificeHierarchy(),
	}
	if degraded {
		c.dispatch(ctx, Event{Type: "resilience.degraded_mode_recommended", Details: map[string]interface{}{
			"utilization": util.System, "n1_vulnerability": n1,
		}})
	}
	return result, nil
}
