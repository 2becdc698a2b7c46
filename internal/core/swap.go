package core

import (
	"context"
	"time"

	"github.com/schedcore/schedcore/internal/coreerr"
	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/repository"
	"github.com/schedcore/schedcore/internal/swap"
)

// RequestSwapInput is the request_swap operation's idempotency-hashed body.
type RequestSwapInput struct {
	Start, End   time.Time
	Participants []entity.SwapParticipant
	Type         entity.SwapType
	RequestedBy  entity.PersonID
}

// RequestSwapResult is request_swap's idempotent, JSON-replayable response.
type RequestSwapResult struct {
	SwapRecordID entity.SwapRecordID `json:"swap_record_id"`
	Status       entity.SwapStatus   `json:"status"`
}

// RequestSwap creates a PENDING SwapRecord and persists it. It does not
// validate or execute the swap -- that is validate_swap/execute_swap's job,
// matching the state machine's own separation of concerns.
func (c *Core) RequestSwap(ctx context.Context, input RequestSwapInput, idempotencyKey string) (*RequestSwapResult, error) {
	var result RequestSwapResult
	err := c.withIdempotency(ctx, idempotencyKey, input, &result, func(ctx context.Context) error {
		schedCtx, err := c.BuildSchedulingContext(ctx, input.Start, input.End)
		if err != nil {
			return err
		}
		record := c.swap.Create(schedCtx, input.Participants, input.Type, input.RequestedBy)
		if err := c.db.SwapRecordRepository().Create(ctx, record); err != nil {
			return coreerr.New(coreerr.KindTransient, "persisting swap record", err)
		}
		result = RequestSwapResult{SwapRecordID: record.ID, Status: record.Status}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.dispatch(ctx, Event{Type: "swap.requested", Details: map[string]interface{}{"swap_record_id": result.SwapRecordID}})
	return &result, nil
}

// ValidateSwapResult reports a swap record's post-validation state.
type ValidateSwapResult struct {
	Status         entity.SwapStatus `json:"status"`
	RejectedReason string            `json:"rejected_reason,omitempty"`
}

// ValidateSwap re-checks a PENDING record against the current schedule,
// transitioning it to VALIDATED or REJECTED and persisting the result.
func (c *Core) ValidateSwap(ctx context.Context, start, end time.Time, swapRecordID entity.SwapRecordID) (*ValidateSwapResult, error) {
	record, err := c.db.SwapRecordRepository().GetByID(ctx, swapRecordID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, coreerr.New(coreerr.KindNotFound, "swap record not found", err)
		}
		return nil, coreerr.New(coreerr.KindTransient, "loading swap record", err)
	}

	schedCtx, err := c.BuildSchedulingContext(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if err := c.swap.Validate(ctx, schedCtx, c.lib, record); err != nil {
		return nil, coreerr.New(coreerr.KindInvariantViolation, "validating swap", err)
	}
	if err := c.db.SwapRecordRepository().Update(ctx, record); err != nil {
		return nil, coreerr.New(coreerr.KindTransient, "persisting validated swap record", err)
	}

	return &ValidateSwapResult{Status: record.Status, RejectedReason: record.RejectedReason}, nil
}

// ExecuteSwapResult confirms a swap's execution.
type ExecuteSwapResult struct {
	Status entity.SwapStatus `json:"status"`
}

// ExecuteSwap runs the atomic execution protocol for a VALIDATED swap
// record.
func (c *Core) ExecuteSwap(ctx context.Context, swapRecordID entity.SwapRecordID, actor string, idempotencyKey string) (*ExecuteSwapResult, error) {
	var result ExecuteSwapResult
	err := c.withIdempotency(ctx, idempotencyKey, struct {
		SwapRecordID entity.SwapRecordID
		Actor        string
	}{swapRecordID, actor}, &result, func(ctx context.Context) error {
		record, err := c.db.SwapRecordRepository().GetByID(ctx, swapRecordID)
		if err != nil {
			if repository.IsNotFound(err) {
				return coreerr.New(coreerr.KindNotFound, "swap record not found", err)
			}
			return coreerr.New(coreerr.KindTransient, "loading swap record", err)
		}
		if err := c.swap.Execute(ctx, record, actor); err != nil {
			return err
		}
		result = ExecuteSwapResult{Status: record.Status}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.dispatch(ctx, Event{Type: "swap.executed", Details: map[string]interface{}{"swap_record_id": swapRecordID}})
	return &result, nil
}

// RollbackSwapResult confirms a swap's rollback.
type RollbackSwapResult struct {
	Status entity.SwapStatus `json:"status"`
}

// RollbackSwap reverses an EXECUTED swap within its rollback window.
func (c *Core) RollbackSwap(ctx context.Context, swapRecordID entity.SwapRecordID, reason string) (*RollbackSwapResult, error) {
	record, err := c.db.SwapRecordRepository().GetByID(ctx, swapRecordID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, coreerr.New(coreerr.KindNotFound, "swap record not found", err)
		}
		return nil, coreerr.New(coreerr.KindTransient, "loading swap record", err)
	}
	if err := c.swap.Rollback(ctx, record, reason); err != nil {
		return nil, err
	}
	c.dispatch(ctx, Event{Type: "swap.rolled_back", Details: map[string]interface{}{"swap_record_id": swapRecordID, "reason": reason}})
	return &RollbackSwapResult{Status: record.Status}, nil
}

// FindSwapMatches runs the swap engine's configured matchers over a pool of
// pending requests, returning viable matches ranked by compatibility score.
func (c *Core) FindSwapMatches(ctx context.Context, start, end time.Time, pool []swap.Request) ([]swap.Match, error) {
	schedCtx, err := c.BuildSchedulingContext(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return c.swap.AutoMatch(schedCtx, pool), nil
}
