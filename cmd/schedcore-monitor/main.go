// Command schedcore-monitor runs the operational signals the core facade
// itself never schedules on its own: a periodic degraded-mode check and
// backup-freshness sweep, dispatched as Notifier events when thresholds are
// crossed.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/schedcore/schedcore/internal/constraint"
	"github.com/schedcore/schedcore/internal/core"
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

// checkSchedule matches §4.6's "every 15 minutes" operational cadence.
const checkSchedule = "*/15 * * * *"

// horizonDays bounds how far ahead the degraded-mode check looks; the
// monitor cares about near-term coverage risk, not the whole academic year.
const horizonDays = 14

func main() {
	log := logging.New(envOrDefault("SCHEDCORE_LOG_LEVEL", "info"))

	db, err := openDatabase()
	if err != nil {
		log.WithError(err).Fatal("opening database")
	}
	defer db.Close()

	lib := constraint.NewLibrary(
		constraint.NewCoverageBoundsConstraint(),
		constraint.NewCredentialRequiredConstraint(),
		constraint.NewAbsenceConflictConstraint(),
	)

	var notifier core.Notifier
	if addr := os.Getenv("SCHEDCORE_REDIS_ADDR"); addr != "" {
		rq, err := runqueue.NewScheduler(addr)
		if err != nil {
			log.WithError(err).Fatal("connecting to job queue")
		}
		defer rq.Close()
		notifier = runqueue.NewNotifier(rq.Client())
	}

	// AnalyzeResilience and the backup marker never touch the scheduling
	// engine itself, so a bare in-memory-backed Engine is enough to satisfy
	// core.New's constructor here.
	schedEngine := scheduler.NewEngine(lib, entity.RealClock{}, ephemeral.NewMemoryStore(entity.RealClock{}), nil, scheduler.NewPreassignmentRuleSet(scheduler.DefaultPreassignmentConfig()))
	c := core.New(db, lib, entity.RealClock{}, log, notifier, lockmgr.NewMemoryLocker(), schedEngine)

	m := &monitor{db: db, core: c, notifier: notifier, clock: entity.RealClock{}, log: log}

	sched := cron.New()
	if _, err := sched.AddFunc(checkSchedule, m.runChecks); err != nil {
		log.WithError(err).Fatal("scheduling monitor checks")
	}
	sched.Start()
	log.WithField("schedule", checkSchedule).Info("schedcore-monitor started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT)
	<-sig

	log.Info("shutting down")
	stopCtx := sched.Stop()
	<-stopCtx.Done()
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func openDatabase() (repository.Database, error) {
	if dsn := os.Getenv("SCHEDCORE_DATABASE_URL"); dsn != "" {
		return postgres.NewDatabase(dsn)
	}
	return memory.NewDatabase(), nil
}

// maxBackupAge mirrors the Mandatory Safety Gate's own staleness threshold,
// so this monitor surfaces the same breach generate's own gate would refuse
// on, before a generate run is even attempted.
const maxBackupAge = 2 * time.Hour

// monitor runs the two checks this command owns: degraded-mode
// recommendation over the near horizon, and the backup-freshness threshold,
// independent of whether a generate run happens to be in flight to trip it.
type monitor struct {
	db       repository.Database
	core     *core.Core
	notifier core.Notifier
	clock    entity.Clock
	log      *logrus.Logger
}

func (m *monitor) runChecks() {
	ctx := context.Background()
	m.checkDegradedMode(ctx)
	m.checkBackupFreshness(ctx)
}

func (m *monitor) checkDegradedMode(ctx context.Context) {
	start := m.clock.Now()
	end := start.AddDate(0, 0, horizonDays)

	result, err := m.core.AnalyzeResilience(ctx, start, end)
	if err != nil {
		m.log.WithError(err).Warn("degraded-mode check failed")
		return
	}
	if result.DegradedModeAdvised {
		m.log.WithFields(logrus.Fields{
			"system_utilization": result.Utilization.System,
			"n1_vulnerability":    result.N1Vulnerability,
		}).Warn("degraded mode recommended")
	}
}

func (m *monitor) checkBackupFreshness(ctx context.Context) {
	marker := core.NewAuditLogBackupMarker(m.db.AuditLogRepository(), m.clock)
	age, err := marker.LatestBackupAge(ctx)
	if err != nil {
		m.log.WithError(err).Warn("backup freshness check: no backup recorded")
		m.dispatch(ctx, core.Event{Type: "monitor.backup_missing", Details: map[string]interface{}{"reason": err.Error()}})
		return
	}
	if age > maxBackupAge {
		m.log.WithField("backup_age", age.String()).Warn("backup is stale")
		m.dispatch(ctx, core.Event{Type: "monitor.backup_stale", Details: map[string]interface{}{"backup_age_seconds": age.Seconds()}})
		return
	}
	m.log.WithField("backup_age", age.String()).Debug("backup freshness checked")
}

func (m *monitor) dispatch(ctx context.Context, event core.Event) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Dispatch(ctx, event); err != nil {
		m.log.WithError(err).WithField("event_type", event.Type).Warn("notifier dispatch failed")
	}
}
