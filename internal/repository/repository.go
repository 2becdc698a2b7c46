// Package repository defines the persistence boundary for every aggregate
// the scheduling engine, compliance validator, and swap engine operate on.
package repository

import (
	"context"

	"github.com/schedcore/schedcore/internal/entity"
)

// NotFoundError is returned by single-row lookups that find nothing.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	if e.Entity == "" {
		return "not found"
	}
	return e.Entity + " not found"
}

func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// Database provides access to every repository plus transaction control.
type Database interface {
	BeginTx(ctx context.Context) (Transaction, error)

	PersonRepository() PersonRepository
	BlockRepository() BlockRepository
	RotationTemplateRepository() RotationTemplateRepository
	AssignmentRepository() AssignmentRepository
	AbsenceRepository() AbsenceRepository
	SwapRecordRepository() SwapRecordRepository
	IdempotencyRepository() IdempotencyRepository
	AuditLogRepository() AuditLogRepository

	Close() error
	Health(ctx context.Context) error
}

// Transaction mirrors Database's accessors, scoped to one transaction.
type Transaction interface {
	Commit() error
	Rollback() error

	PersonRepository() PersonRepository
	BlockRepository() BlockRepository
	RotationTemplateRepository() RotationTemplateRepository
	AssignmentRepository() AssignmentRepository
	AbsenceRepository() AbsenceRepository
	SwapRecordRepository() SwapRecordRepository
	IdempotencyRepository() IdempotencyRepository
	AuditLogRepository() AuditLogRepository
}

type PersonRepository interface {
	Create(ctx context.Context, p *entity.Person) error
	GetByID(ctx context.Context, id entity.PersonID) (*entity.Person, error)
	ListActive(ctx context.Context) ([]*entity.Person, error)
	Update(ctx context.Context, p *entity.Person) error
	Delete(ctx context.Context, id entity.PersonID) error
}

type BlockRepository interface {
	Create(ctx context.Context, b *entity.Block) error
	GetByID(ctx context.Context, id entity.BlockID) (*entity.Block, error)
	ListByDateRange(ctx context.Context, start, end entity.Date) ([]*entity.Block, error)
}

type RotationTemplateRepository interface {
	Create(ctx context.Context, rt *entity.RotationTemplate) error
	GetByID(ctx context.Context, id entity.RotationTemplateID) (*entity.RotationTemplate, error)
	ListAll(ctx context.Context) ([]*entity.RotationTemplate, error)
}

type AssignmentRepository interface {
	Create(ctx context.Context, a *entity.Assignment) error
	GetByID(ctx context.Context, id entity.AssignmentID) (*entity.Assignment, error)
	GetByPerson(ctx context.Context, personID entity.PersonID) ([]*entity.Assignment, error)
	GetByBlockIDs(ctx context.Context, blockIDs []entity.BlockID) ([]*entity.Assignment, error)
	GetByDateRange(ctx context.Context, start, end entity.Date) ([]*entity.Assignment, error)
	Update(ctx context.Context, a *entity.Assignment) error
	Delete(ctx context.Context, id entity.AssignmentID) error
}

type AbsenceRepository interface {
	Create(ctx context.Context, a *entity.Absence) error
	GetByPerson(ctx context.Context, personID entity.PersonID) ([]*entity.Absence, error)
}

type SwapRecordRepository interface {
	Create(ctx context.Context, s *entity.SwapRecord) error
	GetByID(ctx context.Context, id entity.SwapRecordID) (*entity.SwapRecord, error)
	Update(ctx context.Context, s *entity.SwapRecord) error
	ListByStatus(ctx context.Context, status entity.SwapStatus) ([]*entity.SwapRecord, error)
}

type IdempotencyRepository interface {
	Get(ctx context.Context, key string) (*entity.IdempotencyRecord, error)
	Create(ctx context.Context, r *entity.IdempotencyRecord) error
}

// AuditLogEntry records a single mutating action for traceability: every
// assignment must be attributable to a run, a swap, or a manual actor.
type AuditLogEntry struct {
	ID        entity.AuditLogID
	Actor     string
	Action    string
	Resource  string
	Timestamp entity.Date
	Details   map[string]interface{}
}

type AuditLogRepository interface {
	Create(ctx context.Context, e *AuditLogEntry) error
	ListByResource(ctx context.Context, resource string) ([]*AuditLogEntry, error)
}
