package core

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/constraint"
	"github.com/schedcore/schedcore/internal/coreerr"
	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/ephemeral"
	"github.com/schedcore/schedcore/internal/lockmgr"
	"github.com/schedcore/schedcore/internal/repository"
	"github.com/schedcore/schedcore/internal/repository/memory"
	"github.com/schedcore/schedcore/internal/scheduler"
)

type fakeNotifier struct {
	events []Event
}

func (f *fakeNotifier) Dispatch(ctx context.Context, event Event) error {
	f.events = append(f.events, event)
	return nil
}

func testLibrary() *constraint.Library {
	return constraint.NewLibrary(
		constraint.NewCoverageBoundsConstraint(),
		constraint.NewCredentialRequiredConstraint(),
		constraint.NewAbsenceConflictConstraint(),
	)
}

func newTestCore(t *testing.T, db repository.Database, notifier Notifier) *Core {
	t.Helper()
	clock := entity.NewFakeClock(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))
	lib := testLibrary()
	rules := scheduler.NewPreassignmentRuleSet(scheduler.DefaultPreassignmentConfig())
	schedEngine := scheduler.NewEngine(lib, clock, ephemeral.NewMemoryStore(clock), nil, rules)
	return New(db, lib, clock, nil, notifier, lockmgr.NewMemoryLocker(), schedEngine)
}

func seedClinic(t *testing.T, db repository.Database) (entity.Person, entity.Person, entity.Block, entity.Block, entity.RotationTemplate) {
	t.Helper()
	ctx := context.Background()

	rt := entity.RotationTemplate{
		ID: uuid.New(), Name: "General Clinic", ActivityType: entity.ActivityClinic,
		Coverage: entity.CoverageRequirement{Min: 1, Target: 1, Max: 2},
	}
	p1 := entity.Person{ID: uuid.New(), Role: entity.RoleTrainee, PGYLevel: 2, Active: true, Name: "Alice"}
	p2 := entity.Person{ID: uuid.New(), Role: entity.RoleTrainee, PGYLevel: 2, Active: true, Name: "Bob"}
	b1 := entity.Block{ID: uuid.New(), Date: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), Session: entity.SessionAM}
	b2 := entity.Block{ID: uuid.New(), Date: time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC), Session: entity.SessionAM}

	if err := db.RotationTemplateRepository().Create(ctx, &rt); err != nil {
		t.Fatalf("seed rotation template: %v", err)
	}
	if err := db.PersonRepository().Create(ctx, &p1); err != nil {
		t.Fatalf("seed person p1: %v", err)
	}
	if err := db.PersonRepository().Create(ctx, &p2); err != nil {
		t.Fatalf("seed person p2: %v", err)
	}
	if err := db.BlockRepository().Create(ctx, &b1); err != nil {
		t.Fatalf("seed block b1: %v", err)
	}
	if err := db.BlockRepository().Create(ctx, &b2); err != nil {
		t.Fatalf("seed block b2: %v", err)
	}

	a1 := entity.Assignment{ID: uuid.New(), PersonID: p1.ID, BlockID: b1.ID, RotationTemplateID: rt.ID}
	a2 := entity.Assignment{ID: uuid.New(), PersonID: p2.ID, BlockID: b2.ID, RotationTemplateID: rt.ID}
	if err := db.AssignmentRepository().Create(ctx, &a1); err != nil {
		t.Fatalf("seed assignment a1: %v", err)
	}
	if err := db.AssignmentRepository().Create(ctx, &a2); err != nil {
		t.Fatalf("seed assignment a2: %v", err)
	}
	return p1, p2, b1, b2, rt
}

func TestGenerateDispatchesCompletionEvent(t *testing.T) {
	db := memory.NewDatabase()
	seedClinic(t, db)
	notifier := &fakeNotifier{}
	c := newTestCore(t, db, notifier)

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	result, err := c.Generate(context.Background(), GenerateRequest{Start: start, End: end, Algorithm: scheduler.AlgorithmGreedy, TimeoutSeconds: 5}, "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Status != scheduler.StatusOK {
		t.Fatalf("expected OK, got %s", result.Status)
	}
	if len(notifier.events) != 1 || notifier.events[0].Type != "generate.completed" {
		t.Fatalf("expected one generate.completed event, got %+v", notifier.events)
	}
}

func TestGenerateIsIdempotentUnderRepeatedKey(t *testing.T) {
	db := memory.NewDatabase()
	seedClinic(t, db)
	c := newTestCore(t, db, nil)

	req := GenerateRequest{
		Start: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Algorithm: scheduler.AlgorithmGreedy, TimeoutSeconds: 5,
	}
	first, err := c.Generate(context.Background(), req, "generate-key-1")
	if err != nil {
		t.Fatalf("Generate (first): %v", err)
	}
	second, err := c.Generate(context.Background(), req, "generate-key-1")
	if err != nil {
		t.Fatalf("Generate (replay): %v", err)
	}
	if first.RunID != second.RunID {
		t.Fatalf("expected replayed result to carry the same run id, got %s vs %s", first.RunID, second.RunID)
	}
}

func TestGenerateRejectsReusedKeyWithDifferentBody(t *testing.T) {
	db := memory.NewDatabase()
	seedClinic(t, db)
	c := newTestCore(t, db, nil)

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := c.Generate(context.Background(), GenerateRequest{Start: start, End: end, Algorithm: scheduler.AlgorithmGreedy, TimeoutSeconds: 5}, "reused-key"); err != nil {
		t.Fatalf("Generate (first): %v", err)
	}
	_, err := c.Generate(context.Background(), GenerateRequest{Start: start, End: end, Algorithm: scheduler.AlgorithmCPSAT, TimeoutSeconds: 5}, "reused-key")
	if err == nil {
		t.Fatal("expected idempotency-key reuse with a different body to fail")
	}
	if coreerr.KindOf(err) != coreerr.KindIdempotencyConflict {
		t.Fatalf("expected KindIdempotencyConflict, got %s", coreerr.KindOf(err))
	}
}

func TestValidateReportsPersistedViolations(t *testing.T) {
	db := memory.NewDatabase()
	seedClinic(t, db)
	c := newTestCore(t, db, nil)

	result, err := c.Validate(context.Background(), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Feasible {
		t.Fatalf("expected the seeded clinic schedule to be feasible, got violations: %+v", result.Violations)
	}
}

func TestAbortRunUnknownRunIsRecordedWithoutStartingRun(t *testing.T) {
	db := memory.NewDatabase()
	seedClinic(t, db)
	c := newTestCore(t, db, nil)

	runID := entity.RunID(uuid.New())
	if err := c.AbortRun(context.Background(), runID, "no such run yet"); err != nil {
		t.Fatalf("expected AbortRun to record the flag for an unknown run id, got %v", err)
	}
	if len(c.ActiveRuns()) != 0 {
		t.Fatalf("expected no active runs, got %d", len(c.ActiveRuns()))
	}
}

func TestRequestSwapPersistsPendingRecord(t *testing.T) {
	db := memory.NewDatabase()
	p1, p2, b1, b2, _ := seedClinic(t, db)
	notifier := &fakeNotifier{}
	c := newTestCore(t, db, notifier)

	input := RequestSwapInput{
		Start: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Participants: []entity.SwapParticipant{
			{PersonID: p1.ID, GivingBlockID: b1.ID, ReceivingBlockID: b2.ID},
			{PersonID: p2.ID, GivingBlockID: b2.ID, ReceivingBlockID: b1.ID},
		},
		Type: entity.SwapTypeDirect, RequestedBy: p1.ID,
	}
	result, err := c.RequestSwap(context.Background(), input, "")
	if err != nil {
		t.Fatalf("RequestSwap: %v", err)
	}
	if result.Status != entity.SwapStatusPending {
		t.Fatalf("expected PENDING, got %s", result.Status)
	}

	stored, err := db.SwapRecordRepository().GetByID(context.Background(), result.SwapRecordID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != entity.SwapStatusPending {
		t.Fatalf("expected persisted record to be PENDING, got %s", stored.Status)
	}
	if len(notifier.events) != 1 || notifier.events[0].Type != "swap.requested" {
		t.Fatalf("expected one swap.requested event, got %+v", notifier.events)
	}
}

func TestRequestValidateExecuteSwapLifecycle(t *testing.T) {
	db := memory.NewDatabase()
	p1, p2, b1, b2, _ := seedClinic(t, db)
	notifier := &fakeNotifier{}
	c := newTestCore(t, db, notifier)

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	reqResult, err := c.RequestSwap(context.Background(), RequestSwapInput{
		Start: start, End: end,
		Participants: []entity.SwapParticipant{
			{PersonID: p1.ID, GivingBlockID: b1.ID, ReceivingBlockID: b2.ID},
			{PersonID: p2.ID, GivingBlockID: b2.ID, ReceivingBlockID: b1.ID},
		},
		Type: entity.SwapTypeDirect, RequestedBy: p1.ID,
	}, "")
	if err != nil {
		t.Fatalf("RequestSwap: %v", err)
	}

	valResult, err := c.ValidateSwap(context.Background(), start, end, reqResult.SwapRecordID)
	if err != nil {
		t.Fatalf("ValidateSwap: %v", err)
	}
	if valResult.Status != entity.SwapStatusValidated {
		t.Fatalf("expected VALIDATED, got %s (%s)", valResult.Status, valResult.RejectedReason)
	}

	execResult, err := c.ExecuteSwap(context.Background(), reqResult.SwapRecordID, "tester", "")
	if err != nil {
		t.Fatalf("ExecuteSwap: %v", err)
	}
	if execResult.Status != entity.SwapStatusExecuted {
		t.Fatalf("expected EXECUTED, got %s", execResult.Status)
	}

	p1Assignments, err := db.AssignmentRepository().GetByPerson(context.Background(), p1.ID)
	if err != nil {
		t.Fatalf("GetByPerson: %v", err)
	}
	if p1Assignments[0].BlockID != b2.ID {
		t.Fatalf("expected p1 to hold b2 after the swap, got %s", p1Assignments[0].BlockID)
	}

	var sawExecuted bool
	for _, e := range notifier.events {
		if e.Type == "swap.executed" {
			sawExecuted = true
		}
	}
	if !sawExecuted {
		t.Fatalf("expected a swap.executed event, got %+v", notifier.events)
	}
}

func TestValidateSwapUnknownRecordReturnsNotFound(t *testing.T) {
	db := memory.NewDatabase()
	seedClinic(t, db)
	c := newTestCore(t, db, nil)

	_, err := c.ValidateSwap(context.Background(), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), entity.SwapRecordID(uuid.New()))
	if err == nil {
		t.Fatal("expected an unknown swap record id to fail")
	}
	if coreerr.KindOf(err) != coreerr.KindNotFound {
		t.Fatalf("expected KindNotFound, got %s", coreerr.KindOf(err))
	}
}

func TestAnalyzeResilienceDispatchesOnDegradedMode(t *testing.T) {
	db := memory.NewDatabase()
	ctx := context.Background()

	rt := entity.RotationTemplate{
		ID: uuid.New(), Name: "NICU", ActivityType: entity.ActivityInpatient,
		Coverage: entity.CoverageRequirement{Min: 1, Target: 1, Max: 1},
	}
	p := entity.Person{ID: uuid.New(), Role: entity.RoleTrainee, PGYLevel: 2, Active: true, Name: "Solo"}
	b := entity.Block{ID: uuid.New(), Date: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), Session: entity.SessionAM}
	if err := db.RotationTemplateRepository().Create(ctx, &rt); err != nil {
		t.Fatalf("seed rotation template: %v", err)
	}
	if err := db.PersonRepository().Create(ctx, &p); err != nil {
		t.Fatalf("seed person: %v", err)
	}
	if err := db.BlockRepository().Create(ctx, &b); err != nil {
		t.Fatalf("seed block: %v", err)
	}
	a := entity.Assignment{ID: uuid.New(), PersonID: p.ID, BlockID: b.ID, RotationTemplateID: rt.ID}
	if err := db.AssignmentRepository().Create(ctx, &a); err != nil {
		t.Fatalf("seed assignment: %v", err)
	}

	notifier := &fakeNotifier{}
	c := newTestCore(t, db, notifier)

	result, err := c.AnalyzeResilience(ctx, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("AnalyzeResilience: %v", err)
	}
	if !result.DegradedModeAdvised {
		t.Fatalf("expected a single-person rotation to trip degraded mode, got %+v", result)
	}
	if len(notifier.events) != 1 || notifier.events[0].Type != "resilience.degraded_mode_recommended" {
		t.Fatalf("expected one resilience.degraded_mode_recommended event, got %+v", notifier.events)
	}
}

func TestAuditLogBackupMarkerReportsAge(t *testing.T) {
	db := memory.NewDatabase()
	clock := entity.NewFakeClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	marker := NewAuditLogBackupMarker(db.AuditLogRepository(), clock)

	if _, err := marker.LatestBackupAge(context.Background()); err == nil {
		t.Fatal("expected an error when no backup has ever been recorded")
	}

	backupTime := clock.Now().Add(-90 * time.Minute)
	if err := db.AuditLogRepository().Create(context.Background(), &repository.AuditLogEntry{
		Actor: "backup-job", Action: "completed", Resource: backupResource, Timestamp: backupTime,
	}); err != nil {
		t.Fatalf("seed audit log: %v", err)
	}

	age, err := marker.LatestBackupAge(context.Background())
	if err != nil {
		t.Fatalf("LatestBackupAge: %v", err)
	}
	if age != 90*time.Minute {
		t.Fatalf("expected 90m age, got %s", age)
	}
}
