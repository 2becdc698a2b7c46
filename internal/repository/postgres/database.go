package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/schedcore/schedcore/internal/repository"
)

// Database implements repository.Database over a single *sql.DB connection
// pool, handing out one repository instance per aggregate.
type Database struct {
	db *DB

	person            *PersonRepository
	block             *BlockRepository
	rotationTemplate  *RotationTemplateRepository
	assignment        *AssignmentRepository
	absence           *AbsenceRepository
	swapRecord        *SwapRecordRepository
	idempotency       *IdempotencyRepository
	auditLog          *AuditLogRepository
}

// NewDatabase wires every repository against the given connection string.
func NewDatabase(connString string) (*Database, error) {
	db, err := New(connString)
	if err != nil {
		return nil, err
	}
	return newDatabaseFrom(db), nil
}

func newDatabaseFrom(db *DB) *Database {
	return &Database{
		db:               db,
		person:           NewPersonRepository(db.DB),
		block:            NewBlockRepository(db.DB),
		rotationTemplate: NewRotationTemplateRepository(db.DB),
		assignment:       NewAssignmentRepository(db.DB),
		absence:          NewAbsenceRepository(db.DB),
		swapRecord:       NewSwapRecordRepository(db.DB),
		idempotency:      NewIdempotencyRepository(db.DB),
		auditLog:         NewAuditLogRepository(db.DB),
	}
}

func (d *Database) PersonRepository() repository.PersonRepository                     { return d.person }
func (d *Database) BlockRepository() repository.BlockRepository                       { return d.block }
func (d *Database) RotationTemplateRepository() repository.RotationTemplateRepository { return d.rotationTemplate }
func (d *Database) AssignmentRepository() repository.AssignmentRepository             { return d.assignment }
func (d *Database) AbsenceRepository() repository.AbsenceRepository                   { return d.absence }
func (d *Database) SwapRecordRepository() repository.SwapRecordRepository             { return d.swapRecord }
func (d *Database) IdempotencyRepository() repository.IdempotencyRepository           { return d.idempotency }
func (d *Database) AuditLogRepository() repository.AuditLogRepository                 { return d.auditLog }

func (d *Database) Close() error                          { return d.db.Close() }
func (d *Database) Health(ctx context.Context) error       { return d.db.Health(ctx) }

// BeginTx opens a SQL transaction and rebuilds every repository against it,
// so the swap engine's atomic execution path and the scheduler's commit
// path both see a single all-or-nothing unit of work.
func (d *Database) BeginTx(ctx context.Context) (repository.Transaction, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &transaction{
		tx:               tx,
		person:           NewPersonRepository(tx),
		block:            NewBlockRepository(tx),
		rotationTemplate: NewRotationTemplateRepository(tx),
		assignment:       NewAssignmentRepository(tx),
		absence:          NewAbsenceRepository(tx),
		swapRecord:       NewSwapRecordRepository(tx),
		idempotency:      NewIdempotencyRepository(tx),
		auditLog:         NewAuditLogRepository(tx),
	}, nil
}

type transaction struct {
	tx *sql.Tx

	person           *PersonRepository
	block            *BlockRepository
	rotationTemplate *RotationTemplateRepository
	assignment       *AssignmentRepository
	absence          *AbsenceRepository
	swapRecord       *SwapRecordRepository
	idempotency      *IdempotencyRepository
	auditLog         *AuditLogRepository
}

func (t *transaction) Commit() error   { return t.tx.Commit() }
func (t *transaction) Rollback() error { return t.tx.Rollback() }

func (t *transaction) PersonRepository() repository.PersonRepository                     { return t.person }
func (t *transaction) BlockRepository() repository.BlockRepository                       { return t.block }
func (t *transaction) RotationTemplateRepository() repository.RotationTemplateRepository { return t.rotationTemplate }
func (t *transaction) AssignmentRepository() repository.AssignmentRepository             { return t.assignment }
func (t *transaction) AbsenceRepository() repository.AbsenceRepository                   { return t.absence }
func (t *transaction) SwapRecordRepository() repository.SwapRecordRepository             { return t.swapRecord }
func (t *transaction) IdempotencyRepository() repository.IdempotencyRepository           { return t.idempotency }
func (t *transaction) AuditLogRepository() repository.AuditLogRepository                 { return t.auditLog }
