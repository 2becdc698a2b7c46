package swap

import (
	"context"
	"time"

	"github.com/schedcore/schedcore/internal/coreerr"
	"github.com/schedcore/schedcore/internal/entity"
)

// BackupCredential tags a person as part of the backup-call roster: someone
// pre-designated to absorb coverage gaps on short notice.
const BackupCredential = "backup_call"

// MaxExtensionHours is the tier-3 extension bound. findExtensionCandidate
// does not read it: the tier-3 search neither measures nor limits the
// extension.
const MaxExtensionHours = 4 * time.Hour

// EmergencyResult reports which tier resolved an emergency coverage request,
// or that none did and escalation was dispatched.
type EmergencyResult struct {
	Tier     int // 1..4, matching the search order below
	PersonID entity.PersonID
	Extended bool
	Escalated bool
}

// EmergencyCoverage runs the four-tier emergency search for gap when the
// consent step is skipped. It never mutates the schedule itself — callers
// still drive the returned candidate through Create/Validate/Execute (tiers
// 1-3) or treat tier 4 as a terminal failure requiring human intervention.
func (e *Engine) EmergencyCoverage(ctx context.Context, schedCtx *entity.SchedulingContext, gap entity.Assignment) (EmergencyResult, error) {
	if candidate, ok := e.findBackupPersonnel(schedCtx, gap); ok {
		return EmergencyResult{Tier: 1, PersonID: candidate}, nil
	}

	if candidate, ok := e.findBroadcastCandidate(schedCtx, gap); ok {
		return EmergencyResult{Tier: 2, PersonID: candidate}, nil
	}

	if candidate, ok := e.findExtensionCandidate(schedCtx, gap); ok {
		return EmergencyResult{Tier: 3, PersonID: candidate, Extended: true}, nil
	}

	if e.notifier != nil {
		details := map[string]interface{}{
			"block_id":             gap.BlockID.String(),
			"rotation_template_id": gap.RotationTemplateID.String(),
		}
		if err := e.notifier.NotifyEscalation(ctx, "unresolved coverage gap", details); err != nil {
			return EmergencyResult{}, coreerr.New(coreerr.KindTransient, "failed to dispatch escalation", err)
		}
	}
	return EmergencyResult{Tier: 4, Escalated: true}, nil
}

// findBackupPersonnel searches tier 1: people on the backup roster, not
// absent, and not already booked on gap's block.
func (e *Engine) findBackupPersonnel(schedCtx *entity.SchedulingContext, gap entity.Assignment) (entity.PersonID, bool) {
	rt, ok := schedCtx.RotationTemplateByID(gap.RotationTemplateID)
	if !ok {
		return entity.PersonID{}, false
	}
	byKey := schedCtx.Assignments.ByPersonBlock()
	for _, p := range availablePeople(schedCtx, byKey, gap.BlockID) {
		if !p.HasCredential(BackupCredential) {
			continue
		}
		if !rt.Eligibility.Matches(p) {
			continue
		}
		return p.ID, true
	}
	return entity.PersonID{}, false
}

// findBroadcastCandidate searches tier 2: any eligible, available person —
// an "absorb" offer broadcast to the full eligible pool rather than a
// targeted swap.
func (e *Engine) findBroadcastCandidate(schedCtx *entity.SchedulingContext, gap entity.Assignment) (entity.PersonID, bool) {
	rt, ok := schedCtx.RotationTemplateByID(gap.RotationTemplateID)
	if !ok {
		return entity.PersonID{}, false
	}
	byKey := schedCtx.Assignments.ByPersonBlock()
	for _, p := range availablePeople(schedCtx, byKey, gap.BlockID) {
		if !rt.Eligibility.Matches(p) {
			continue
		}
		return p.ID, true
	}
	return entity.PersonID{}, false
}

// findExtensionCandidate searches tier 3: the first person holding an
// assignment on gap's rotation template on a block dated within 24 hours of
// gap's block (before or after it) who is not absent for gap's block.
// Post-call rest and the length of the extension are not checked.
func (e *Engine) findExtensionCandidate(schedCtx *entity.SchedulingContext, gap entity.Assignment) (entity.PersonID, bool) {
	gapBlock, ok := schedCtx.Blocks[gap.BlockID]
	if !ok {
		return entity.PersonID{}, false
	}
	for _, a := range schedCtx.Assignments {
		if a.RotationTemplateID != gap.RotationTemplateID {
			continue
		}
		blk, ok := schedCtx.Blocks[a.BlockID]
		if !ok || !adjacentBlock(blk, gapBlock) {
			continue
		}
		if schedCtx.IsAbsent(a.PersonID, gap.BlockID) {
			continue
		}
		return a.PersonID, true
	}
	return entity.PersonID{}, false
}

func adjacentBlock(a, b entity.Block) bool {
	return b.Date.Sub(a.Date) == 0 || b.Date.Sub(a.Date).Abs() <= 24*time.Hour
}

func availablePeople(ctx *entity.SchedulingContext, byKey map[entity.AssignmentKey]entity.Assignment, blockID entity.BlockID) []entity.Person {
	var out []entity.Person
	for _, p := range ctx.People {
		if p.IsDeleted() || !p.Active {
			continue
		}
		if _, booked := byKey[entity.AssignmentKey{PersonID: p.ID, BlockID: blockID}]; booked {
			continue
		}
		if ctx.IsAbsent(p.ID, blockID) {
			continue
		}
		out = append(out, p)
	}
	return out
}
