// Package resilience scores a schedule's robustness against personnel
// unavailability: utilization, N-1/N-2 vulnerability, churn, ripple factor,
// and the operational signals derived from them.
package resilience

import (
	"context"
	"math/rand/v2"
	"sort"

	"github.com/schedcore/schedcore/internal/constraint"
	"github.com/schedcore/schedcore/internal/entity"
)

// UtilizationColor buckets a utilization ratio into an operational signal.
type UtilizationColor string

const (
	ColorGreen  UtilizationColor = "GREEN"
	ColorYellow UtilizationColor = "YELLOW"
	ColorOrange UtilizationColor = "ORANGE"
	ColorRed    UtilizationColor = "RED"
	ColorBlack  UtilizationColor = "BLACK"
)

// ClassifyUtilization buckets a ratio per the fixed thresholds.
func ClassifyUtilization(ratio float64) UtilizationColor {
	switch {
	case ratio >= 0.90:
		return ColorBlack
	case ratio >= 0.85:
		return ColorRed
	case ratio >= 0.80:
		return ColorOrange
	case ratio >= 0.70:
		return ColorYellow
	default:
		return ColorGreen
	}
}

// UtilizationReport holds per-person and system-wide utilization.
type UtilizationReport struct {
	PerPerson map[entity.PersonID]float64
	System    float64
}

// Analyzer computes resilience metrics over a SchedulingContext.
type Analyzer struct {
	clock entity.Clock
}

func NewAnalyzer(clock entity.Clock) *Analyzer {
	if clock == nil {
		clock = entity.RealClock{}
	}
	return &Analyzer{clock: clock}
}

// Utilization reports assigned_blocks/assignable_blocks, per-person and
// system-wide. A block is "assignable" to a person if some RotationTemplate
// would have accepted them there, regardless of whether they were assigned.
func (a *Analyzer) Utilization(ctx *entity.SchedulingContext) UtilizationReport {
	blocks := ctx.OrderedBlocks()
	out := UtilizationReport{PerPerson: make(map[entity.PersonID]float64, len(ctx.People))}

	var totalAssigned, totalAssignable int
	byPerson := ctx.Assignments.ByPersonBlock()

	for _, p := range ctx.People {
		if p.IsDeleted() {
			continue
		}
		assignable := 0
		assigned := 0
		for _, b := range blocks {
			if ctx.IsAbsent(p.ID, b.ID) {
				continue
			}
			eligible := false
			for _, rt := range ctx.RotationTemplates {
				if rt.Eligibility.Matches(p) {
					eligible = true
					break
				}
			}
			if !eligible {
				continue
			}
			assignable++
			if _, ok := byPerson[entity.AssignmentKey{PersonID: p.ID, BlockID: b.ID}]; ok {
				assigned++
			}
		}
		if assignable > 0 {
			out.PerPerson[p.ID] = float64(assigned) / float64(assignable)
		}
		totalAssigned += assigned
		totalAssignable += assignable
	}

	if totalAssignable > 0 {
		out.System = float64(totalAssigned) / float64(totalAssignable)
	}
	return out
}

// backfillLeavesViolation simulates removing a set of people and greedily
// reassigning their blocks to any other eligible, constraint-compliant
// person; it reports whether any block could not be covered within Min.
func backfillLeavesViolation(ctx *entity.SchedulingContext, lib *constraint.Library, removed map[entity.PersonID]bool) bool {
	remaining := make(entity.AssignmentSet, 0, len(ctx.Assignments))
	orphaned := make(entity.AssignmentSet, 0)
	for _, asn := range ctx.Assignments {
		if removed[asn.PersonID] {
			orphaned = append(orphaned, asn)
			continue
		}
		remaining = append(remaining, asn)
	}

	accepted := remaining
	for _, orphan := range orphaned {
		rt, ok := ctx.RotationTemplateByID(orphan.RotationTemplateID)
		if !ok {
			return true
		}
		covered := false
		for _, p := range ctx.People {
			if p.IsDeleted() || removed[p.ID] || !rt.Eligibility.Matches(p) {
				continue
			}
			if ctx.IsAbsent(p.ID, orphan.BlockID) {
				continue
			}
			candidate := entity.Assignment{
				PersonID:           p.ID,
				BlockID:            orphan.BlockID,
				RotationTemplateID: orphan.RotationTemplateID,
				Source:             entity.AssignmentSourceSolver,
			}
			result := lib.Evaluate(ctx, accepted, candidate)
			if result.Feasible {
				accepted = append(accepted, candidate)
				covered = true
				break
			}
		}
		if !covered {
			return true
		}
	}
	return false
}

// N1Vulnerability is the fraction of people whose removal leaves a hard
// violation after greedy backfill.
func (a *Analyzer) N1Vulnerability(ctx context.Context, schedCtx *entity.SchedulingContext, lib *constraint.Library) float64 {
	active := activePeople(schedCtx)
	if len(active) == 0 {
		return 0
	}
	vulnerable := 0
	for _, p := range active {
		select {
		case <-ctx.Done():
			return float64(vulnerable) / float64(len(active))
		default:
		}
		if backfillLeavesViolation(schedCtx, lib, map[entity.PersonID]bool{p.ID: true}) {
			vulnerable++
		}
	}
	return float64(vulnerable) / float64(len(active))
}

// N2Result carries the vulnerability estimate plus, when sampled, the
// sample size actually evaluated.
type N2Result struct {
	Vulnerability float64
	SampleSize    int
	Sampled       bool
}

const n2SamplingThreshold = 30
const n2MinSample = 100

// N2Vulnerability evaluates every unordered pair when |people| <= 30;
// above that it samples at least 100 pairs, seeded from the Analyzer's
// clock so repeated runs against the same schedule are deterministic.
func (a *Analyzer) N2Vulnerability(ctx context.Context, schedCtx *entity.SchedulingContext, lib *constraint.Library) N2Result {
	active := activePeople(schedCtx)
	n := len(active)
	if n < 2 {
		return N2Result{}
	}

	type pair struct{ i, j int }
	var pairs []pair
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, pair{i, j})
		}
	}

	sampled := false
	if n > n2SamplingThreshold {
		sampled = true
		seed := uint64(a.clock.Now().UnixNano())
		rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b9))
		rng.Shuffle(len(pairs), func(i, j int) { pairs[i], pairs[j] = pairs[j], pairs[i] })
		if len(pairs) > n2MinSample {
			pairs = pairs[:n2MinSample]
		}
	}

	vulnerable := 0
	for _, pr := range pairs {
		select {
		case <-ctx.Done():
			return N2Result{Vulnerability: float64(vulnerable) / float64(len(pairs)), SampleSize: len(pairs), Sampled: sampled}
		default:
		}
		removed := map[entity.PersonID]bool{active[pr.i].ID: true, active[pr.j].ID: true}
		if backfillLeavesViolation(schedCtx, lib, removed) {
			vulnerable++
		}
	}

	return N2Result{
		Vulnerability: float64(vulnerable) / float64(len(pairs)),
		SampleSize:    len(pairs),
		Sampled:       sampled,
	}
}

func activePeople(ctx *entity.SchedulingContext) []entity.Person {
	var out []entity.Person
	for _, p := range ctx.People {
		if !p.IsDeleted() && p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// ChurnRate is (added+removed+modified)/(prev_assignments+new_assignments)
// between two assignment snapshots, keyed by (person, block).
func ChurnRate(prev, next entity.AssignmentSet) float64 {
	prevIdx := prev.ByPersonBlock()
	nextIdx := next.ByPersonBlock()

	added, removed, modified := 0, 0, 0
	for k, a := range nextIdx {
		p, ok := prevIdx[k]
		if !ok {
			added++
		} else if p.RotationTemplateID != a.RotationTemplateID {
			modified++
		}
	}
	for k := range prevIdx {
		if _, ok := nextIdx[k]; !ok {
			removed++
		}
	}

	denom := len(prev) + len(next)
	if denom == 0 {
		return 0
	}
	return float64(added+removed+modified) / float64(denom)
}

// DegradedModeRecommended flags system stress per the fixed thresholds.
func DegradedModeRecommended(systemUtilization, n1Vulnerability float64) bool {
	return systemUtilization > 0.85 || n1Vulnerability > 0.30
}

// SacrificeHierarchy is the fixed shed order: earlier entries are shed
// first. Activities that safeguard patient coverage (on-duty inpatient
// and call) are never returned.
func SacrificeHierarchy() []entity.ActivityType {
	return []entity.ActivityType{
		entity.ActivityElective,
		entity.ActivityConference,
		entity.ActivityClinic,
		entity.ActivityProcedure,
	}
}
