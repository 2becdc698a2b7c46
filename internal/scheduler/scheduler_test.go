package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/constraint"
	"github.com/schedcore/schedcore/internal/coreerr"
	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/ephemeral"
)

func buildClinicContext(t *testing.T, nBlocks int) *entity.SchedulingContext {
	t.Helper()

	rt := entity.RotationTemplate{
		ID:           uuid.New(),
		Name:         "General Clinic",
		ActivityType: entity.ActivityClinic,
		Coverage:     entity.CoverageRequirement{Min: 1, Target: 1, Max: 2},
	}
	p1 := entity.Person{ID: uuid.New(), Role: entity.RoleTrainee, PGYLevel: 2, Active: true, Name: "Alice"}
	p2 := entity.Person{ID: uuid.New(), Role: entity.RoleTrainee, PGYLevel: 2, Active: true, Name: "Bob"}

	var blocks []entity.Block
	base := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < nBlocks; i++ {
		blocks = append(blocks, entity.Block{ID: uuid.New(), Date: base.AddDate(0, 0, i), Session: entity.SessionAM})
	}

	ctx, err := entity.BuildContext([]entity.Person{p1, p2}, blocks, []entity.RotationTemplate{rt}, nil, nil, nil)
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	return ctx
}

func testLibrary() *constraint.Library {
	return constraint.NewLibrary(
		constraint.NewCoverageBoundsConstraint(),
		constraint.NewCredentialRequiredConstraint(),
		constraint.NewAbsenceConflictConstraint(),
	)
}

type fakeBackup struct {
	age time.Duration
	err error
}

func (f fakeBackup) LatestBackupAge(ctx context.Context) (time.Duration, error) { return f.age, f.err }

func TestEngineGenerateGreedyFillsCoverage(t *testing.T) {
	schedCtx := buildClinicContext(t, 5)
	clock := entity.NewFakeClock(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))
	engine := NewEngine(testLibrary(), clock, ephemeral.NewMemoryStore(clock), nil, nil)

	result, err := engine.Generate(context.Background(), schedCtx, Config{Algorithm: AlgorithmGreedy})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Status != StatusOK {
		t.Fatalf("expected OK, got %s", result.Status)
	}
	if len(result.Assignments) != 5 {
		t.Fatalf("expected one assignment per block, got %d", len(result.Assignments))
	}
}

func TestEngineGenerateNoTemplatesIsInfeasible(t *testing.T) {
	rt := entity.RotationTemplate{ID: uuid.New(), Name: "Inpatient Ward", ActivityType: entity.ActivityInpatient}
	p := entity.Person{ID: uuid.New(), Role: entity.RoleTrainee, PGYLevel: 1, Active: true}
	b := entity.Block{ID: uuid.New(), Date: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), Session: entity.SessionAM}
	schedCtx, err := entity.BuildContext([]entity.Person{p}, []entity.Block{b}, []entity.RotationTemplate{rt}, nil, nil, nil)
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}

	clock := entity.NewFakeClock(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))
	engine := NewEngine(testLibrary(), clock, ephemeral.NewMemoryStore(clock), nil, nil)

	result, err := engine.Generate(context.Background(), schedCtx, Config{Algorithm: AlgorithmGreedy})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Status != StatusInfeasibleNoTemplates {
		t.Fatalf("expected INFEASIBLE_NO_TEMPLATES, got %s", result.Status)
	}
}

func TestEngineGenerateRefusesOnStaleBackup(t *testing.T) {
	schedCtx := buildClinicContext(t, 3)
	clock := entity.NewFakeClock(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))
	engine := NewEngine(testLibrary(), clock, ephemeral.NewMemoryStore(clock), fakeBackup{age: 3 * time.Hour}, nil)

	_, err := engine.Generate(context.Background(), schedCtx, Config{Algorithm: AlgorithmGreedy})
	if err == nil {
		t.Fatal("expected a safety-gate error")
	}
	if coreerr.KindOf(err) != coreerr.KindBackupMissing {
		t.Fatalf("expected KindBackupMissing, got %v", coreerr.KindOf(err))
	}
}

func TestEngineGenerateCPSATProducesFeasibleSchedule(t *testing.T) {
	schedCtx := buildClinicContext(t, 3)
	clock := entity.NewFakeClock(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))
	engine := NewEngine(testLibrary(), clock, ephemeral.NewMemoryStore(clock), nil, nil)

	result, err := engine.Generate(context.Background(), schedCtx, Config{Algorithm: AlgorithmCPSAT})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Status != StatusOK {
		t.Fatalf("expected OK, got %s", result.Status)
	}
	if len(result.Assignments) != 3 {
		t.Fatalf("expected one assignment per block, got %d", len(result.Assignments))
	}
}

func TestEngineGenerateQuantumSAReportsSimulatedAnnealingBackend(t *testing.T) {
	schedCtx := buildClinicContext(t, 3)
	clock := entity.NewFakeClock(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))
	engine := NewEngine(testLibrary(), clock, ephemeral.NewMemoryStore(clock), nil, nil)

	result, err := engine.Generate(context.Background(), schedCtx, Config{Algorithm: AlgorithmQuantumSA})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Statistics["backend"] != "simulated_annealing" {
		t.Fatalf("expected the mandatory fallback backend to be reported, got %v", result.Statistics["backend"])
	}
}

func TestEngineGenerateUnknownAlgorithmIsValidationError(t *testing.T) {
	schedCtx := buildClinicContext(t, 1)
	clock := entity.NewFakeClock(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))
	engine := NewEngine(testLibrary(), clock, ephemeral.NewMemoryStore(clock), nil, nil)

	_, err := engine.Generate(context.Background(), schedCtx, Config{Algorithm: Algorithm("bogus")})
	if coreerr.KindOf(err) != coreerr.KindValidation {
		t.Fatalf("expected KindValidation, got %v", coreerr.KindOf(err))
	}
}

func TestEngineRunProtocolAbortAndProgress(t *testing.T) {
	schedCtx := buildClinicContext(t, 40)
	clock := entity.NewFakeClock(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))
	store := ephemeral.NewMemoryStore(clock)
	engine := NewEngine(testLibrary(), clock, store, nil, nil)

	runID := uuid.New()
	if err := engine.RequestAbort(context.Background(), runID, "operator requested stop"); err != nil {
		t.Fatalf("RequestAbort: %v", err)
	}
	if !engine.isAborted(context.Background(), runID) {
		t.Fatal("expected the run to observe its own abort flag")
	}

	if _, err := engine.Progress(context.Background(), uuid.New()); coreerr.KindOf(err) != coreerr.KindNotFound {
		t.Fatalf("expected KindNotFound for an unknown run, got %v", err)
	}
}

func TestEngineOptimizeWithEmptyExistingReturnsOK(t *testing.T) {
	schedCtx := buildClinicContext(t, 3)
	clock := entity.NewFakeClock(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))
	engine := NewEngine(testLibrary(), clock, ephemeral.NewMemoryStore(clock), nil, nil)

	existing := schedCtx.Assignments
	result, err := engine.Optimize(context.Background(), schedCtx, existing, Config{Algorithm: AlgorithmGreedy})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if result.Status != StatusOK {
		t.Fatalf("expected OK, got %s", result.Status)
	}
}

func TestEngineGeneratePareto(t *testing.T) {
	schedCtx := buildClinicContext(t, 3)
	clock := entity.NewFakeClock(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))
	engine := NewEngine(testLibrary(), clock, ephemeral.NewMemoryStore(clock), nil, nil)

	grid := []WeightSet{{Fairness: 1}, {Coverage: 1}, {Preference: 1}}
	results, err := engine.GeneratePareto(context.Background(), schedCtx, grid, Config{Algorithm: AlgorithmGreedy})
	if err != nil {
		t.Fatalf("GeneratePareto: %v", err)
	}
	if len(results) != len(grid) {
		t.Fatalf("expected %d results, got %d", len(grid), len(results))
	}
	for i, r := range results {
		if r.Statistics["weights"] != grid[i] {
			t.Fatalf("result %d missing its weight stamp", i)
		}
	}
}

func TestPreassignmentRuleSetAssignsPGYClinicDays(t *testing.T) {
	rt := entity.RotationTemplate{ID: uuid.New(), Name: "General Clinic", ActivityType: entity.ActivityClinic}
	p := entity.Person{ID: uuid.New(), Role: entity.RoleTrainee, PGYLevel: 1, Active: true}
	wed := entity.Block{ID: uuid.New(), Date: time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC), Session: entity.SessionAM}
	thu := entity.Block{ID: uuid.New(), Date: time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC), Session: entity.SessionAM}

	schedCtx, err := entity.BuildContext([]entity.Person{p}, []entity.Block{wed, thu}, []entity.RotationTemplate{rt}, nil, nil, nil)
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}

	rs := NewPreassignmentRuleSet(DefaultPreassignmentConfig())
	out := rs.pgyClinicDays(schedCtx)

	if len(out) != 1 {
		t.Fatalf("expected exactly one PGY1 Wednesday AM lock, got %d", len(out))
	}
	if out[0].BlockID != wed.ID {
		t.Fatalf("expected the Wednesday block, got a different one")
	}
}

func TestCheckSafetyGatePropagatesReadError(t *testing.T) {
	schedCtx := buildClinicContext(t, 1)
	clock := entity.NewFakeClock(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))
	engine := NewEngine(testLibrary(), clock, ephemeral.NewMemoryStore(clock), fakeBackup{err: errors.New("marker unreadable")}, nil)

	_, err := engine.Generate(context.Background(), schedCtx, Config{Algorithm: AlgorithmGreedy})
	if coreerr.KindOf(err) != coreerr.KindBackupMissing {
		t.Fatalf("expected KindBackupMissing, got %v", coreerr.KindOf(err))
	}
}
