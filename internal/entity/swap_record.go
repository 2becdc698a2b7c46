package entity

import "time"

// SwapStatus is the swap record state machine: PENDING -> VALIDATED ->
// EXECUTED -> ROLLED_BACK, or PENDING/VALIDATED -> REJECTED.
type SwapStatus string

const (
	SwapStatusPending    SwapStatus = "PENDING"
	SwapStatusValidated  SwapStatus = "VALIDATED"
	SwapStatusExecuted   SwapStatus = "EXECUTED"
	SwapStatusRolledBack SwapStatus = "ROLLED_BACK"
	SwapStatusRejected   SwapStatus = "REJECTED"
)

// validSwapTransitions enumerates the only allowed state transitions.
var validSwapTransitions = map[SwapStatus][]SwapStatus{
	SwapStatusPending:   {SwapStatusValidated, SwapStatusRejected},
	SwapStatusValidated: {SwapStatusExecuted, SwapStatusRejected},
	SwapStatusExecuted:  {SwapStatusRolledBack},
}

func (s SwapStatus) canTransitionTo(target SwapStatus) bool {
	for _, allowed := range validSwapTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// SwapType distinguishes a direct two-party exchange from a multi-party
// chain resolved by the cycle detector.
type SwapType string

const (
	SwapTypeDirect SwapType = "DIRECT"
	SwapTypeChain  SwapType = "CHAIN"
)

// SwapParticipant is one leg of a swap: a person giving up one assignment
// in exchange for another.
type SwapParticipant struct {
	PersonID         PersonID
	GivingAssignment AssignmentID
	GivingBlockID    BlockID // snapshot of GivingAssignment's block at request time, restored on rollback
	ReceivingBlockID BlockID
}

// SwapRecord is a transactional request to exchange assignments between two
// or more people.
type SwapRecord struct {
	ID             SwapRecordID
	Type           SwapType
	Status         SwapStatus
	Participants   []SwapParticipant
	CompatScore    float64
	RequestedAt    time.Time
	ValidatedAt    *time.Time
	ExecutedAt     *time.Time
	RolledBackAt   *time.Time
	RejectedReason string
	RequestedBy    PersonID
}

// Transition moves the record to a new status, enforcing the state machine.
func (s *SwapRecord) Transition(target SwapStatus, now time.Time) error {
	if !s.Status.canTransitionTo(target) {
		return ErrInvalidSwapTransition
	}
	s.Status = target
	switch target {
	case SwapStatusValidated:
		s.ValidatedAt = &now
	case SwapStatusExecuted:
		s.ExecutedAt = &now
	case SwapStatusRolledBack:
		s.RolledBackAt = &now
	}
	return nil
}

// RollbackWindow is how long after execution a swap may still be rolled
// back; past this the swap is final.
const RollbackWindow = 24 * time.Hour

// CanRollback reports whether now still falls within the rollback window.
func (s SwapRecord) CanRollback(now time.Time) bool {
	if s.Status != SwapStatusExecuted || s.ExecutedAt == nil {
		return false
	}
	return now.Sub(*s.ExecutedAt) <= RollbackWindow
}
