package entity

import (
	"time"

	"github.com/google/uuid"
)

// Type aliases for domain IDs, aliasing uuid.UUID per aggregate so call
// sites read as domain types.
type (
	PersonID            = uuid.UUID
	BlockID             = uuid.UUID
	RotationTemplateID  = uuid.UUID
	AssignmentID        = uuid.UUID
	AbsenceID           = uuid.UUID
	SwapRecordID        = uuid.UUID
	IdempotencyRecordID = uuid.UUID
	RunID               = uuid.UUID
	AuditLogID          = uuid.UUID
	Date                = time.Time
)

// Clock is the injectable source of the current time. Production code uses
// RealClock; tests substitute a FakeClock so timeouts, idempotency expiry,
// and rollback windows are deterministic.
type Clock interface {
	Now() time.Time
}

// RealClock returns the wall clock in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// FakeClock is a settable clock for tests.
type FakeClock struct {
	t time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{t: t.UTC()}
}

func (f *FakeClock) Now() time.Time { return f.t }

func (f *FakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func (f *FakeClock) Set(t time.Time) { f.t = t.UTC() }
