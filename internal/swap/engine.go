package swap

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/schedcore/schedcore/internal/constraint"
	"github.com/schedcore/schedcore/internal/coreerr"
	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/lockmgr"
	"github.com/schedcore/schedcore/internal/repository"
)

// Notifier dispatches an out-of-band alert when the swap engine cannot
// resolve coverage on its own and a human must be paged.
type Notifier interface {
	NotifyEscalation(ctx context.Context, subject string, details map[string]interface{}) error
}

// Engine validates, executes, and rolls back SwapRecords against a shared
// assignment store, serializing concurrent access through a Locker.
type Engine struct {
	db       repository.Database
	locker   lockmgr.Locker
	clock    entity.Clock
	log      *logrus.Logger
	notifier Notifier
	matchers []Matcher
}

func NewEngine(db repository.Database, locker lockmgr.Locker, clock entity.Clock, log *logrus.Logger, notifier Notifier) *Engine {
	if clock == nil {
		clock = entity.RealClock{}
	}
	return &Engine{db: db, locker: locker, clock: clock, log: log, notifier: notifier, matchers: DefaultMatchers()}
}

// Create opens a new swap request in PENDING status, snapshotting each
// participant's current block so rollback has something to restore. A
// participant given only a GivingBlockID has its GivingAssignment resolved
// from its assignment on that block.
func (e *Engine) Create(schedCtx *entity.SchedulingContext, participants []entity.SwapParticipant, swapType entity.SwapType, requestedBy entity.PersonID) *entity.SwapRecord {
	byID := make(map[entity.AssignmentID]entity.Assignment, len(schedCtx.Assignments))
	for _, a := range schedCtx.Assignments {
		byID[a.ID] = a
	}
	byKey := schedCtx.Assignments.ByPersonBlock()
	snapshotted := make([]entity.SwapParticipant, len(participants))
	for i, p := range participants {
		if a, ok := byID[p.GivingAssignment]; ok {
			p.GivingBlockID = a.BlockID
		} else if a, ok := byKey[entity.AssignmentKey{PersonID: p.PersonID, BlockID: p.GivingBlockID}]; ok {
			p.GivingAssignment = a.ID
		}
		snapshotted[i] = p
	}
	return &entity.SwapRecord{
		ID:           uuid.New(),
		Type:         swapType,
		Status:       entity.SwapStatusPending,
		Participants: snapshotted,
		RequestedAt:  e.clock.Now(),
		RequestedBy:  requestedBy,
	}
}

// Validate re-checks a PENDING record's participants against the current
// schedule and constraint library, transitioning it to VALIDATED or
// REJECTED.
func (e *Engine) Validate(ctx context.Context, schedCtx *entity.SchedulingContext, lib *constraint.Library, record *entity.SwapRecord) error {
	violations := e.checkParticipants(schedCtx, lib, record.Participants)
	now := e.clock.Now()
	if len(violations) > 0 {
		record.RejectedReason = violations[0]
		return record.Transition(entity.SwapStatusRejected, now)
	}
	return record.Transition(entity.SwapStatusValidated, now)
}

func (e *Engine) checkParticipants(schedCtx *entity.SchedulingContext, lib *constraint.Library, participants []entity.SwapParticipant) []string {
	var violations []string
	byKey := schedCtx.Assignments.ByPersonBlock()
	accepted := make(entity.AssignmentSet, len(schedCtx.Assignments))
	copy(accepted, schedCtx.Assignments)

	for _, p := range participants {
		if _, conflict := byKey[entity.AssignmentKey{PersonID: p.PersonID, BlockID: p.ReceivingBlockID}]; conflict {
			violations = append(violations, fmt.Sprintf("%s already booked on %s", p.PersonID, p.ReceivingBlockID))
			continue
		}
		if schedCtx.IsAbsent(p.PersonID, p.ReceivingBlockID) {
			violations = append(violations, fmt.Sprintf("%s is absent on %s", p.PersonID, p.ReceivingBlockID))
			continue
		}
		original, ok := byKey[entity.AssignmentKey{PersonID: p.PersonID, BlockID: p.GivingBlockID}]
		if !ok {
			violations = append(violations, fmt.Sprintf("%s has no assignment on %s to give up", p.PersonID, p.GivingBlockID))
			continue
		}
		candidate := entity.Assignment{
			PersonID:           p.PersonID,
			BlockID:            p.ReceivingBlockID,
			RotationTemplateID: original.RotationTemplateID,
			Source:             entity.AssignmentSourceSwap,
		}
		if lib != nil {
			if result := lib.Evaluate(schedCtx, accepted, candidate); !result.Feasible {
				for _, v := range result.Violations {
					violations = append(violations, v.Message)
				}
			}
		}
	}
	return violations
}

// AutoMatch runs the engine's configured matchers, in order, over a pool of
// pending requests.
func (e *Engine) AutoMatch(schedCtx *entity.SchedulingContext, pool []Request) []Match {
	return AutoMatch(schedCtx, pool, e.matchers)
}

// Execute runs the atomic execution protocol: re-read each participant's
// assignment and fail with SWAP_STALE if it no longer sits with that
// participant on the giving block, move it to the receiving block, write an
// audit row, and commit. Two concurrent executions touching the same assignment serialize
// through the locker; the loser returns a CONCURRENCY_CONFLICT CoreError
// tagged SWAP_STALE, which callers should retry.
func (e *Engine) Execute(ctx context.Context, record *entity.SwapRecord, actor string) error {
	if record.Status != entity.SwapStatusValidated {
		return coreerr.New(coreerr.KindInvariantViolation, "swap must be VALIDATED before execution", nil)
	}

	lockKeys := make([]string, 0, len(record.Participants)+1)
	lockKeys = append(lockKeys, "swap:"+record.ID.String())
	for _, p := range record.Participants {
		lockKeys = append(lockKeys, "assignment:"+p.GivingAssignment.String())
	}

	release, err := e.locker.Acquire(ctx, lockKeys...)
	if err != nil {
		return coreerr.New(coreerr.KindConcurrencyConflict, "SWAP_STALE: failed to acquire assignment locks", err)
	}
	defer release()

	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return coreerr.New(coreerr.KindTransient, "failed to open transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	assignmentRepo := tx.AssignmentRepository()
	for _, p := range record.Participants {
		current, err := assignmentRepo.GetByID(ctx, p.GivingAssignment)
		if err != nil {
			return coreerr.New(coreerr.KindConcurrencyConflict, "SWAP_STALE: assignment vanished under execution", err)
		}
		if current.PersonID != p.PersonID || current.BlockID != p.GivingBlockID {
			return coreerr.New(coreerr.KindConcurrencyConflict, "SWAP_STALE: assignment changed since the swap was requested", nil)
		}
		current.BlockID = p.ReceivingBlockID
		current.Source = entity.AssignmentSourceSwap
		current.SourceSwapID = &record.ID
		if err := assignmentRepo.Update(ctx, current); err != nil {
			return coreerr.New(coreerr.KindConcurrencyConflict, "SWAP_STALE: concurrent write to assignment", err)
		}
	}

	auditRepo := tx.AuditLogRepository()
	if err := auditRepo.Create(ctx, &repository.AuditLogEntry{
		Actor:     actor,
		Action:    "swap.execute",
		Resource:  "swap:" + record.ID.String(),
		Timestamp: e.clock.Now(),
		Details:   map[string]interface{}{"participants": len(record.Participants), "type": string(record.Type)},
	}); err != nil {
		return coreerr.New(coreerr.KindTransient, "failed to write audit row", err)
	}

	swapRepo := tx.SwapRecordRepository()
	if err := record.Transition(entity.SwapStatusExecuted, e.clock.Now()); err != nil {
		return err
	}
	if err := swapRepo.Update(ctx, record); err != nil {
		return coreerr.New(coreerr.KindTransient, "failed to persist swap record", err)
	}

	if err := tx.Commit(); err != nil {
		return coreerr.New(coreerr.KindTransient, "failed to commit swap execution", err)
	}
	committed = true
	if e.log != nil {
		e.log.WithField("swap_id", record.ID.String()).Info("swap executed")
	}
	return nil
}

// Rollback reverses an EXECUTED swap's assignment moves within the
// RollbackWindow. If any participating assignment has since been touched by
// a later swap, rollback fails with a CONFLICT CoreError tagged
// ROLLBACK_BLOCKED_BY_SUCCESSOR and must be escalated rather than retried.
func (e *Engine) Rollback(ctx context.Context, record *entity.SwapRecord, reason string) error {
	if !record.CanRollback(e.clock.Now()) {
		return coreerr.New(coreerr.KindInvariantViolation, "swap is outside its rollback window", nil)
	}

	lockKeys := make([]string, 0, len(record.Participants)+1)
	lockKeys = append(lockKeys, "swap:"+record.ID.String())
	for _, p := range record.Participants {
		lockKeys = append(lockKeys, "assignment:"+p.GivingAssignment.String())
	}
	release, err := e.locker.Acquire(ctx, lockKeys...)
	if err != nil {
		return coreerr.New(coreerr.KindConcurrencyConflict, "failed to acquire rollback locks", err)
	}
	defer release()

	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return coreerr.New(coreerr.KindTransient, "failed to open transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	assignmentRepo := tx.AssignmentRepository()
	for _, p := range record.Participants {
		current, err := assignmentRepo.GetByID(ctx, p.GivingAssignment)
		if err != nil {
			return coreerr.New(coreerr.KindConflict, "ROLLBACK_BLOCKED_BY_SUCCESSOR: assignment no longer exists", err)
		}
		if current.SourceSwapID == nil || *current.SourceSwapID != record.ID {
			return coreerr.New(coreerr.KindConflict, "ROLLBACK_BLOCKED_BY_SUCCESSOR: assignment claimed by a later swap", nil)
		}
		current.BlockID = p.GivingBlockID
		current.Source = entity.AssignmentSourceSwap
		current.SourceSwapID = nil
		if err := assignmentRepo.Update(ctx, current); err != nil {
			return coreerr.New(coreerr.KindTransient, "failed to restore assignment", err)
		}
	}

	if err := record.Transition(entity.SwapStatusRolledBack, e.clock.Now()); err != nil {
		return err
	}
	record.RejectedReason = reason
	if err := tx.SwapRecordRepository().Update(ctx, record); err != nil {
		return coreerr.New(coreerr.KindTransient, "failed to persist rollback", err)
	}
	if err := tx.AuditLogRepository().Create(ctx, &repository.AuditLogEntry{
		Action:    "swap.rollback",
		Resource:  "swap:" + record.ID.String(),
		Timestamp: e.clock.Now(),
		Details:   map[string]interface{}{"reason": reason},
	}); err != nil {
		return coreerr.New(coreerr.KindTransient, "failed to write rollback audit row", err)
	}

	if err := tx.Commit(); err != nil {
		return coreerr.New(coreerr.KindTransient, "failed to commit rollback", err)
	}
	committed = true
	return nil
}
