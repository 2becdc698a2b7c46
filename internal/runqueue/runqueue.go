// Package runqueue dispatches solver runs onto an Asynq task queue, the
// same retry/timeout-budget pattern the teacher used for its ODS import and
// Amion scrape jobs, generalized to a single job type: a long-running
// generate/optimize invocation that reports progress and honors abort
// through the scheduling engine's own run protocol rather than Asynq's.
package runqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/scheduler"
)

// TypeSolverRun is the one job type this queue dispatches.
const TypeSolverRun = "solver:run"

// defaultMaxRetry and defaultTimeout bound a solver run the way the
// teacher bounded its coverage-calculation job: a single retry, since a
// solver run that failed once is unlikely to succeed unchanged, and a
// timeout long enough to cover a full-quarter generate.
const (
	defaultMaxRetry = 1
	defaultTimeout  = 30 * time.Minute
)

// RunPayload is the Asynq task payload for a solver run.
type RunPayload struct {
	RunID     entity.RunID      `json:"run_id"`
	Start     time.Time         `json:"start"`
	End       time.Time         `json:"end"`
	Algorithm scheduler.Algorithm `json:"algorithm"`
	Timeout   int               `json:"timeout_seconds"`
}

// Scheduler enqueues solver runs onto Asynq.
type Scheduler struct {
	client    *asynq.Client
	redisAddr string
}

// NewScheduler dials Asynq's Redis backend, failing fast if it cannot be
// reached, matching the teacher's JobScheduler constructor.
func NewScheduler(redisAddr string) (*Scheduler, error) {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	if err := client.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("runqueue: connect to redis: %w", err)
	}
	return &Scheduler{client: client, redisAddr: redisAddr}, nil
}

// EnqueueSolverRun enqueues a generate invocation for asynchronous
// execution, returning the Asynq task info for status polling.
func (s *Scheduler) EnqueueSolverRun(ctx context.Context, payload RunPayload) (*asynq.TaskInfo, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("runqueue: marshal payload: %w", err)
	}

	timeout := defaultTimeout
	if payload.Timeout > 0 {
		timeout = time.Duration(payload.Timeout) * time.Second
	}

	task := asynq.NewTask(TypeSolverRun, raw)
	info, err := s.client.EnqueueContext(ctx, task, asynq.MaxRetry(defaultMaxRetry), asynq.Timeout(timeout), asynq.TaskID(payload.RunID.String()))
	if err != nil {
		return nil, fmt.Errorf("runqueue: enqueue solver run: %w", err)
	}
	return info, nil
}

// Close releases the underlying Asynq client.
func (s *Scheduler) Close() error {
	return s.client.Close()
}

// Client exposes the underlying Asynq client so a Notifier can share the
// same connection rather than dialing Redis twice.
func (s *Scheduler) Client() *asynq.Client {
	return s.client
}

// TaskStatus reports an enqueued run's Asynq-level status (distinct from
// the scheduling engine's own run-protocol progress, which tracks solver
// iterations rather than queue position).
func (s *Scheduler) TaskStatus(ctx context.Context, queue, runID string) (*asynq.TaskInfo, error) {
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: s.redisAddr})
	defer inspector.Close()
	return inspector.GetTaskInfo(ctx, queue, runID)
}

// Handlers executes solver-run jobs popped off the queue, loading the
// scheduling context fresh from the repository for every run so a retried
// job never operates on stale in-memory state.
type Handlers struct {
	engine       *scheduler.Engine
	contextBuilder ContextBuilder
	log          *logrus.Logger
}

// ContextBuilder loads the SchedulingContext a solver run needs for its
// date range; the concrete implementation lives in internal/core, which
// already knows how to assemble one from the repository.
type ContextBuilder interface {
	BuildSchedulingContext(ctx context.Context, start, end time.Time) (*entity.SchedulingContext, error)
}

func NewHandlers(engine *scheduler.Engine, contextBuilder ContextBuilder, log *logrus.Logger) *Handlers {
	return &Handlers{engine: engine, contextBuilder: contextBuilder, log: log}
}

// RegisterHandlers wires this queue's one job type onto an Asynq mux.
func (h *Handlers) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeSolverRun, h.HandleSolverRun)
}

// HandleSolverRun runs generate() for a queued job. It never returns an
// Asynq-retryable error for INFEASIBLE/ABORTED/TIMEOUT outcomes: those are
// legitimate terminal states the engine already recorded to the progress
// plane, not job execution failures. Only a failure to build context, or an
// unexpected engine error (backup gate, internal error), triggers a retry.
func (h *Handlers) HandleSolverRun(ctx context.Context, t *asynq.Task) error {
	var payload RunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("runqueue: unmarshal payload: %w", asynq.SkipRetry)
	}

	schedCtx, err := h.contextBuilder.BuildSchedulingContext(ctx, payload.Start, payload.End)
	if err != nil {
		return fmt.Errorf("runqueue: build scheduling context: %w", err)
	}

	result, err := h.engine.Generate(ctx, schedCtx, scheduler.Config{
		Start: payload.Start, End: payload.End, Algorithm: payload.Algorithm, TimeoutSeconds: payload.Timeout,
	})
	if err != nil {
		return fmt.Errorf("runqueue: generate: %w", err)
	}

	if h.log != nil {
		h.log.WithFields(logrus.Fields{
			"run_id": payload.RunID,
			"status": result.Status,
			"assignments": len(result.Assignments),
		}).Info("solver run completed")
	}
	return nil
}
