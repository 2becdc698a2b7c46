package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/constraint"
	"github.com/schedcore/schedcore/internal/entity"
)

func buildSchedule(t *testing.T, n int) (*entity.SchedulingContext, []entity.Person) {
	t.Helper()

	rt := entity.RotationTemplate{
		ID:               uuid.New(),
		Name:             "Inpatient Wards",
		ActivityType:     entity.ActivityInpatient,
		Granularity:      entity.GranularityHalfBlock,
		HoursAttribution: entity.HoursNominalDefault,
		Coverage:         entity.CoverageRequirement{Min: 1, Target: 1, Max: 2},
	}

	var people []entity.Person
	for i := 0; i < n; i++ {
		people = append(people, entity.Person{ID: uuid.New(), Role: entity.RoleTrainee, PGYLevel: 2, Active: true, Name: "P"})
	}

	var blocks []entity.Block
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		blocks = append(blocks, entity.Block{ID: uuid.New(), Date: base.AddDate(0, 0, i), Session: entity.SessionAM})
	}

	var assignments []entity.Assignment
	for i, b := range blocks {
		assignments = append(assignments, entity.Assignment{
			ID: uuid.New(), PersonID: people[i%len(people)].ID, BlockID: b.ID,
			RotationTemplateID: rt.ID, Source: entity.AssignmentSourceSolver,
		})
	}

	ctx, err := entity.BuildContext(people, blocks, []entity.RotationTemplate{rt}, assignments, nil, nil)
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	return ctx, people
}

func TestClassifyUtilization(t *testing.T) {
	cases := map[float64]UtilizationColor{
		0.50: ColorGreen,
		0.75: ColorYellow,
		0.82: ColorOrange,
		0.87: ColorRed,
		0.95: ColorBlack,
	}
	for ratio, want := range cases {
		if got := ClassifyUtilization(ratio); got != want {
			t.Errorf("ClassifyUtilization(%.2f) = %s, want %s", ratio, got, want)
		}
	}
}

func TestUtilizationSystemWide(t *testing.T) {
	ctx, _ := buildSchedule(t, 4)
	a := NewAnalyzer(entity.RealClock{})
	report := a.Utilization(ctx)
	if report.System <= 0 || report.System > 1 {
		t.Fatalf("expected system utilization in (0,1], got %f", report.System)
	}
}

func TestN1VulnerabilityWithSpareCapacity(t *testing.T) {
	ctx, _ := buildSchedule(t, 4)
	lib := constraint.NewLibrary(
		constraint.NewCoverageBoundsConstraint(),
		constraint.NewCredentialRequiredConstraint(),
	)
	a := NewAnalyzer(entity.RealClock{})
	score := a.N1Vulnerability(context.Background(), ctx, lib)
	if score < 0 || score > 1 {
		t.Fatalf("expected vulnerability in [0,1], got %f", score)
	}
}

func TestN2VulnerabilitySamplesAboveThreshold(t *testing.T) {
	ctx, _ := buildSchedule(t, 40)
	lib := constraint.NewLibrary(constraint.NewCoverageBoundsConstraint())
	a := NewAnalyzer(entity.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	result := a.N2Vulnerability(context.Background(), ctx, lib)
	if !result.Sampled {
		t.Fatal("expected sampling above 30 people")
	}
	if result.SampleSize < n2MinSample {
		t.Fatalf("expected at least %d sampled pairs, got %d", n2MinSample, result.SampleSize)
	}
}

func TestChurnRate(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	b1, b2, b3 := uuid.New(), uuid.New(), uuid.New()
	rt := uuid.New()

	prev := entity.AssignmentSet{
		{ID: uuid.New(), PersonID: p1, BlockID: b1, RotationTemplateID: rt},
		{ID: uuid.New(), PersonID: p1, BlockID: b2, RotationTemplateID: rt},
	}
	next := entity.AssignmentSet{
		{ID: uuid.New(), PersonID: p1, BlockID: b1, RotationTemplateID: rt}, // unchanged
		{ID: uuid.New(), PersonID: p2, BlockID: b3, RotationTemplateID: rt}, // added, b2 removed
	}

	rate := ChurnRate(prev, next)
	if rate <= 0 {
		t.Fatalf("expected nonzero churn, got %f", rate)
	}
}

func TestDegradedModeRecommended(t *testing.T) {
	if !DegradedModeRecommended(0.90, 0.0) {
		t.Fatal("expected degraded mode at high utilization")
	}
	if !DegradedModeRecommended(0.0, 0.35) {
		t.Fatal("expected degraded mode at high N-1 vulnerability")
	}
	if DegradedModeRecommended(0.5, 0.1) {
		t.Fatal("expected no degraded mode under both thresholds")
	}
}

func TestSacrificeHierarchyExcludesOnDutyActivities(t *testing.T) {
	hierarchy := SacrificeHierarchy()
	for _, a := range hierarchy {
		if a == entity.ActivityCall {
			t.Fatal("call duty must never be sheddable")
		}
	}
	if hierarchy[0] != entity.ActivityElective {
		t.Fatalf("expected elective to be shed first, got %s", hierarchy[0])
	}
}

func TestRippleFactorOverModifiedAssignments(t *testing.T) {
	ctx, people := buildSchedule(t, 4)
	modified := []entity.Assignment{ctx.Assignments[0]}
	_ = people
	factor := RippleFactor(ctx, modified)
	if factor < 0 {
		t.Fatalf("expected non-negative ripple factor, got %f", factor)
	}
}
