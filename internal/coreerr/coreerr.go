// Package coreerr defines the error taxonomy shared by every subsystem the
// facade in internal/core wires together.
package coreerr

import (
	"errors"
	"fmt"
)

// Kind classifies a CoreError so callers (CLI exit codes, job handlers) can
// branch on failure category without string matching.
type Kind string

const (
	KindValidation          Kind = "VALIDATION"
	KindInvariantViolation  Kind = "INVARIANT_VIOLATION"
	KindConflict            Kind = "CONFLICT"
	KindConcurrencyConflict Kind = "CONCURRENCY_CONFLICT"
	KindIdempotencyConflict Kind = "IDEMPOTENCY_CONFLICT"
	KindNotFound            Kind = "NOT_FOUND"
	KindInfeasible          Kind = "INFEASIBLE"
	KindTimeout             Kind = "TIMEOUT"
	KindAborted             Kind = "ABORTED"
	KindBackupMissing       Kind = "BACKUP_MISSING"
	KindTransient           Kind = "TRANSIENT"
	KindInternal            Kind = "INTERNAL"
)

// CoreError wraps an underlying cause with a Kind and optional context.
type CoreError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error { return e.Cause }

func New(kind Kind, message string, cause error) *CoreError {
	return &CoreError{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, defaulting to KindInternal for errors
// that did not originate as a CoreError.
func KindOf(err error) Kind {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// IsRetryable reports whether the error's Kind is worth retrying with
// backoff (transient infrastructure failure), as opposed to a permanent
// rejection (validation, conflict, infeasibility).
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}
