package entity

import "errors"

// Domain-specific sentinel errors for precondition failures detected while
// building or reading a SchedulingContext. Constraint violations are never
// represented as errors — those populate a Report's violation list instead.
var (
	ErrInvalidDateRange         = errors.New("invalid date range: end date must be after or equal to start date")
	ErrUnknownActivityType      = errors.New("unknown activity type")
	ErrUnknownRole              = errors.New("unknown person role")
	ErrUnknownGranularity       = errors.New("unknown rotation granularity")
	ErrDuplicateAssignment      = errors.New("person already has an assignment for this block")
	ErrAbsenceConflict          = errors.New("assignment falls within a non-absence-compatible absence window")
	ErrInvalidSwapTransition    = errors.New("invalid swap record state transition")
	ErrRollbackWindowExpired    = errors.New("rollback window has expired")
	ErrIdempotencyConflict      = errors.New("idempotency key reused with a different request body")
	ErrBackupMissing            = errors.New("no recent backup snapshot; refusing to mutate assignment store")
	ErrBlockNotFound            = errors.New("block not found in context")
	ErrPersonNotFound           = errors.New("person not found in context")
	ErrRotationTemplateNotFound = errors.New("rotation template not found in context")
)
