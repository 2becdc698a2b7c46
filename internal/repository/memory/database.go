// Package memory provides sync.RWMutex-protected in-memory implementations
// of every repository interface, used by unit tests and by both CLIs when
// no database URL is configured.
package memory

import (
	"context"

	"github.com/schedcore/schedcore/internal/repository"
)

// Database is an in-memory repository.Database. BeginTx returns a
// Transaction backed by the same maps: there is no real isolation, but
// Commit/Rollback let callers exercise the same control flow they'd use
// against PostgreSQL.
type Database struct {
	person           *PersonRepository
	block            *BlockRepository
	rotationTemplate *RotationTemplateRepository
	assignment       *AssignmentRepository
	absence          *AbsenceRepository
	swapRecord       *SwapRecordRepository
	idempotency      *IdempotencyRepository
	auditLog         *AuditLogRepository
}

// NewDatabase creates an empty in-memory database.
func NewDatabase() *Database {
	return &Database{
		person:           NewPersonRepository(),
		block:            NewBlockRepository(),
		rotationTemplate: NewRotationTemplateRepository(),
		assignment:       NewAssignmentRepository(),
		absence:          NewAbsenceRepository(),
		swapRecord:       NewSwapRecordRepository(),
		idempotency:      NewIdempotencyRepository(),
		auditLog:         NewAuditLogRepository(),
	}
}

func (d *Database) PersonRepository() repository.PersonRepository           { return d.person }
func (d *Database) BlockRepository() repository.BlockRepository             { return d.block }
func (d *Database) RotationTemplateRepository() repository.RotationTemplateRepository {
	return d.rotationTemplate
}
func (d *Database) AssignmentRepository() repository.AssignmentRepository   { return d.assignment }
func (d *Database) AbsenceRepository() repository.AbsenceRepository         { return d.absence }
func (d *Database) SwapRecordRepository() repository.SwapRecordRepository   { return d.swapRecord }
func (d *Database) IdempotencyRepository() repository.IdempotencyRepository { return d.idempotency }
func (d *Database) AuditLogRepository() repository.AuditLogRepository       { return d.auditLog }

func (d *Database) Close() error                    { return nil }
func (d *Database) Health(ctx context.Context) error { return nil }

func (d *Database) BeginTx(ctx context.Context) (repository.Transaction, error) {
	return &transaction{db: d}, nil
}

// transaction has no real rollback support: in-memory writes take effect
// immediately. It exists so code written against repository.Transaction
// can run unmodified in tests.
type transaction struct {
	db *Database
}

func (t *transaction) Commit() error   { return nil }
func (t *transaction) Rollback() error { return nil }

func (t *transaction) PersonRepository() repository.PersonRepository { return t.db.person }
func (t *transaction) BlockRepository() repository.BlockRepository   { return t.db.block }
func (t *transaction) RotationTemplateRepository() repository.RotationTemplateRepository {
	return t.db.rotationTemplate
}
func (t *transaction) AssignmentRepository() repository.AssignmentRepository {
	return t.db.assignment
}
func (t *transaction) AbsenceRepository() repository.AbsenceRepository { return t.db.absence }
func (t *transaction) SwapRecordRepository() repository.SwapRecordRepository {
	return t.db.swapRecord
}
func (t *transaction) IdempotencyRepository() repository.IdempotencyRepository {
	return t.db.idempotency
}
func (t *transaction) AuditLogRepository() repository.AuditLogRepository { return t.db.auditLog }
