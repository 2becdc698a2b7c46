// Command schedcore is the operator-facing CLI over the core facade: schedule
// generation, compliance validation, swap execution, run control, and
// resilience reporting.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/schedcore/schedcore/internal/constraint"
	"github.com/schedcore/schedcore/internal/core"
	"github.com/schedcore/schedcore/internal/coreerr"
	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/ephemeral"
	"github.com/schedcore/schedcore/internal/lockmgr"
	"github.com/schedcore/schedcore/internal/logging"
	"github.com/schedcore/schedcore/internal/repository"
	"github.com/schedcore/schedcore/internal/repository/memory"
	"github.com/schedcore/schedcore/internal/repository/postgres"
	"github.com/schedcore/schedcore/internal/runqueue"
	"github.com/schedcore/schedcore/internal/scheduler"
)

const dateLayout = "2006-01-02"

// Exit codes per the operational command surface: 0 success, 2 invalid
// input, 3 infeasible, 4 aborted, 5 timeout, 10 internal.
const (
	exitOK         = 0
	exitInvalid    = 2
	exitInfeasible = 3
	exitAborted    = 4
	exitTimeout    = 5
	exitInternal   = 10
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	app, err := newApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitInternal
	}
	defer app.close()

	root := app.rootCommand()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitCodeFor(err)
	}
	return app.lastExitCode
}

// exitCodeFor maps an operation's error Kind to the CLI's documented exit
// code table.
func exitCodeFor(err error) int {
	switch coreerr.KindOf(err) {
	case coreerr.KindValidation:
		return exitInvalid
	case coreerr.KindInfeasible:
		return exitInfeasible
	case coreerr.KindAborted:
		return exitAborted
	case coreerr.KindTimeout:
		return exitTimeout
	default:
		return exitInternal
	}
}

// app wires every collaborator once and hands out commands that share the
// connection pool, ephemeral store, and notifier.
type app struct {
	db           repository.Database
	core         *core.Core
	schedEngine  *scheduler.Engine
	runqueueSvc  *runqueue.Scheduler
	log          *logrus.Logger
	tracerCloser func(context.Context) error
	meterCloser  func(context.Context) error
	lastExitCode int
}

func newApp() (*app, error) {
	log := newLogger()

	db, err := openDatabase()
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store, err := openEphemeralStore()
	if err != nil {
		return nil, fmt.Errorf("opening ephemeral store: %w", err)
	}

	tp := sdktrace.NewTracerProvider()
	mp := sdkmetric.NewMeterProvider()

	lib := constraint.NewLibrary(
		constraint.NewCoverageBoundsConstraint(),
		constraint.NewCredentialRequiredConstraint(),
		constraint.NewAbsenceConflictConstraint(),
	)

	backup := core.NewAuditLogBackupMarker(db.AuditLogRepository(), entity.RealClock{})
	rules := scheduler.NewPreassignmentRuleSet(scheduler.DefaultPreassignmentConfig())
	schedEngine := scheduler.NewEngine(lib, entity.RealClock{}, store, backup, rules)

	var rq *runqueue.Scheduler
	var notifier core.Notifier
	if addr := os.Getenv("SCHEDCORE_REDIS_ADDR"); addr != "" {
		rq, err = runqueue.NewScheduler(addr)
		if err != nil {
			return nil, fmt.Errorf("connecting to job queue: %w", err)
		}
		notifier = runqueue.NewNotifier(rq.Client())
	}

	c := core.New(db, lib, entity.RealClock{}, log, notifier, lockmgr.NewMemoryLocker(), schedEngine)

	return &app{
		db:          db,
		core:        c,
		schedEngine: schedEngine,
		runqueueSvc: rq,
		log:         log,
		tracerCloser: func(ctx context.Context) error { return tp.Shutdown(ctx) },
		meterCloser:  func(ctx context.Context) error { return mp.Shutdown(ctx) },
	}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.tracerCloser != nil {
		_ = a.tracerCloser(ctx)
	}
	if a.meterCloser != nil {
		_ = a.meterCloser(ctx)
	}
	if a.runqueueSvc != nil {
		_ = a.runqueueSvc.Close()
	}
	_ = a.db.Close()
}

func newLogger() *logrus.Logger {
	level := os.Getenv("SCHEDCORE_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	return logging.New(level)
}

func openDatabase() (repository.Database, error) {
	if dsn := os.Getenv("SCHEDCORE_DATABASE_URL"); dsn != "" {
		return postgres.NewDatabase(dsn)
	}
	return memory.NewDatabase(), nil
}

func openEphemeralStore() (ephemeral.Store, error) {
	if addr := os.Getenv("SCHEDCORE_REDIS_ADDR"); addr != "" {
		return ephemeral.NewRedisStore(addr)
	}
	return ephemeral.NewMemoryStore(entity.RealClock{}), nil
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "schedcore",
		Short: "Residency scheduling engine CLI",
	}
	root.AddCommand(
		a.generateScheduleCommand(),
		a.validateScheduleCommand(),
		a.swapCommand(),
		a.abortRunCommand(),
		a.jobStatusCommand(),
		a.resilienceReportCommand(),
	)
	return root
}

func parseDateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	raw, err := cmd.Flags().GetString(name)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", name, err)
	}
	return t, nil
}

func (a *app) generateScheduleCommand() *cobra.Command {
	var algorithm string
	var timeoutSeconds int
	var idempotencyKey string

	cmd := &cobra.Command{
		Use:   "generate-schedule",
		Short: "Run the scheduling engine over a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseDateFlag(cmd, "start")
			if err != nil {
				a.lastExitCode = exitInvalid
				return err
			}
			end, err := parseDateFlag(cmd, "end")
			if err != nil {
				a.lastExitCode = exitInvalid
				return err
			}

			result, err := a.core.Generate(cmd.Context(), core.GenerateRequest{
				Start: start, End: end,
				Algorithm:      scheduler.Algorithm(algorithm),
				TimeoutSeconds: timeoutSeconds,
			}, idempotencyKey)
			if err != nil {
				a.lastExitCode = exitCodeFor(err)
				return err
			}

			a.lastExitCode = exitCodeForStatus(result.Status)
			fmt.Printf("run_id=%s status=%s assignments=%d\n", result.RunID, result.Status, len(result.Assignments))
			return nil
		},
	}
	cmd.Flags().String("start", "", "window start date (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "window end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&algorithm, "algorithm", string(scheduler.AlgorithmGreedy), "cp_sat|greedy|pulp|quantum_sa")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout-seconds", 60, "solver time budget")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "optional idempotency key")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func exitCodeForStatus(status scheduler.Status) int {
	switch status {
	case scheduler.StatusOK:
		return exitOK
	case scheduler.StatusInfeasible, scheduler.StatusInfeasibleNoTemplates:
		return exitInfeasible
	case scheduler.StatusAborted:
		return exitAborted
	case scheduler.StatusTimeout:
		return exitTimeout
	default:
		return exitInternal
	}
}

func (a *app) validateScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-schedule",
		Short: "Check a window's persisted assignments against every constraint",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseDateFlag(cmd, "start")
			if err != nil {
				a.lastExitCode = exitInvalid
				return err
			}
			end, err := parseDateFlag(cmd, "end")
			if err != nil {
				a.lastExitCode = exitInvalid
				return err
			}

			result, err := a.core.Validate(cmd.Context(), start, end)
			if err != nil {
				a.lastExitCode = exitCodeFor(err)
				return err
			}
			if result.Feasible {
				a.lastExitCode = exitOK
			} else {
				a.lastExitCode = exitInfeasible
			}
			fmt.Printf("feasible=%t violations=%d\n", result.Feasible, len(result.Violations))
			for _, v := range result.Violations {
				fmt.Printf("  - %s: %s\n", v.ConstraintName, v.Message)
			}
			return nil
		},
	}
	cmd.Flags().String("start", "", "window start date (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "window end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func (a *app) swapCommand() *cobra.Command {
	var sourcePerson, targetPerson, swapType, idempotencyKey string
	var sourceWeek, targetWeek string

	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Request a direct or chain swap between two trainees",
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceID, err := uuid.Parse(sourcePerson)
			if err != nil {
				a.lastExitCode = exitInvalid
				return fmt.Errorf("--source-person must be a UUID: %w", err)
			}
			targetID, err := uuid.Parse(targetPerson)
			if err != nil {
				a.lastExitCode = exitInvalid
				return fmt.Errorf("--target-person must be a UUID: %w", err)
			}
			sourceBlock, err := uuid.Parse(sourceWeek)
			if err != nil {
				a.lastExitCode = exitInvalid
				return fmt.Errorf("--source-week must be a block UUID: %w", err)
			}

			st := entity.SwapTypeDirect
			if swapType != "" {
				st = entity.SwapType(swapType)
			}

			var participants []entity.SwapParticipant
			if targetWeek != "" {
				targetBlock, err := uuid.Parse(targetWeek)
				if err != nil {
					a.lastExitCode = exitInvalid
					return fmt.Errorf("--target-week must be a block UUID: %w", err)
				}
				participants = []entity.SwapParticipant{
					{PersonID: sourceID, GivingBlockID: sourceBlock, ReceivingBlockID: targetBlock},
					{PersonID: targetID, GivingBlockID: targetBlock, ReceivingBlockID: sourceBlock},
				}
			} else {
				// No --target-week: the target trainee is being asked to pick up
				// the source's block with nothing given back (emergency coverage
				// style request), so only the target side has a receiving block
				// and the source side only gives.
				participants = []entity.SwapParticipant{
					{PersonID: sourceID, GivingBlockID: sourceBlock},
					{PersonID: targetID, ReceivingBlockID: sourceBlock},
				}
			}

			now := time.Now()
			result, err := a.core.RequestSwap(cmd.Context(), core.RequestSwapInput{
				Start: now.AddDate(0, -1, 0), End: now.AddDate(0, 1, 0),
				Participants: participants,
				Type:         st,
				RequestedBy:  sourceID,
			}, idempotencyKey)
			if err != nil {
				a.lastExitCode = exitCodeFor(err)
				return err
			}
			a.lastExitCode = exitOK
			fmt.Printf("swap_record_id=%s status=%s\n", result.SwapRecordID, result.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&sourcePerson, "source-person", "", "source person id")
	cmd.Flags().StringVar(&sourceWeek, "source-week", "", "source block id")
	cmd.Flags().StringVar(&targetPerson, "target-person", "", "target person id")
	cmd.Flags().StringVar(&targetWeek, "target-week", "", "target block id (optional)")
	cmd.Flags().StringVar(&swapType, "type", "", "DIRECT|CHAIN")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "optional idempotency key")
	_ = cmd.MarkFlagRequired("source-person")
	_ = cmd.MarkFlagRequired("source-week")
	_ = cmd.MarkFlagRequired("target-person")
	return cmd
}

func (a *app) abortRunCommand() *cobra.Command {
	var runID, reason string
	cmd := &cobra.Command{
		Use:   "abort-run",
		Short: "Request an in-flight generate/optimize run stop at its next yield point",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(runID)
			if err != nil {
				a.lastExitCode = exitInvalid
				return fmt.Errorf("--run-id must be a UUID: %w", err)
			}
			if err := a.core.AbortRun(cmd.Context(), id, reason); err != nil {
				a.lastExitCode = exitCodeFor(err)
				return err
			}
			a.lastExitCode = exitOK
			fmt.Println("abort requested")
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run id")
	cmd.Flags().StringVar(&reason, "reason", "", "abort reason")
	_ = cmd.MarkFlagRequired("run-id")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func (a *app) jobStatusCommand() *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "job-status",
		Short: "Poll the ephemeral store for a run's latest published progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(runID)
			if err != nil {
				a.lastExitCode = exitInvalid
				return fmt.Errorf("--run-id must be a UUID: %w", err)
			}
			snap, err := a.core.Progress(cmd.Context(), id)
			if err != nil {
				a.lastExitCode = exitCodeFor(err)
				return err
			}
			a.lastExitCode = exitOK
			fmt.Printf("run_id=%s iteration=%d best_score=%.2f aborted=%t\n", runID, snap.Iteration, snap.BestScore, snap.Aborted)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run id")
	_ = cmd.MarkFlagRequired("run-id")
	return cmd
}

func (a *app) resilienceReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resilience-report",
		Short: "Run the N-1/N-2 resilience analyzer over a window",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseDateFlag(cmd, "start")
			if err != nil {
				a.lastExitCode = exitInvalid
				return err
			}
			end, err := parseDateFlag(cmd, "end")
			if err != nil {
				a.lastExitCode = exitInvalid
				return err
			}
			result, err := a.core.AnalyzeResilience(cmd.Context(), start, end)
			if err != nil {
				a.lastExitCode = exitCodeFor(err)
				return err
			}
			a.lastExitCode = exitOK
			fmt.Printf("system_utilization=%.3f n1_vulnerability=%.3f degraded_mode_advised=%t\n",
				result.Utilization.System, result.N1Vulnerability, result.DegradedModeAdvised)
			fmt.Printf("sacrifice_hierarchy=%v\n", result.SacrificeHierarchy)
			return nil
		},
	}
	cmd.Flags().String("start", "", "window start date (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "window end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

