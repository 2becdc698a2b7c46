package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/repository"
)

// AssignmentRepository implements repository.AssignmentRepository for PostgreSQL.
type AssignmentRepository struct {
	db sqlExecutor
}

func NewAssignmentRepository(db sqlExecutor) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) Create(ctx context.Context, a *entity.Assignment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	query := `
		INSERT INTO assignments (id, person_id, block_id, rotation_template_id, actual_hours,
		                          created_at, created_by, source_run_id, source_swap_id, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.PersonID, a.BlockID, a.RotationTemplateID, a.ActualHours,
		a.CreatedAt, a.CreatedBy, a.SourceRunID, a.SourceSwapID, string(a.Source),
	)
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

func scanAssignment(row interface{ Scan(...any) error }) (*entity.Assignment, error) {
	a := &entity.Assignment{}
	err := row.Scan(
		&a.ID, &a.PersonID, &a.BlockID, &a.RotationTemplateID, &a.ActualHours,
		&a.CreatedAt, &a.CreatedBy, &a.SourceRunID, &a.SourceSwapID, (*string)(&a.Source),
	)
	return a, err
}

func (r *AssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Assignment, error) {
	query := `
		SELECT id, person_id, block_id, rotation_template_id, actual_hours,
		       created_at, created_by, source_run_id, source_swap_id, source
		FROM assignments WHERE id = $1
	`
	a, err := scanAssignment(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{Entity: "Assignment"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

func (r *AssignmentRepository) GetByPerson(ctx context.Context, personID uuid.UUID) ([]*entity.Assignment, error) {
	query := `
		SELECT id, person_id, block_id, rotation_template_id, actual_hours,
		       created_at, created_by, source_run_id, source_swap_id, source
		FROM assignments WHERE person_id = $1 ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var out []*entity.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetByBlockIDs batches the lookup across many blocks in a single query,
// avoiding the per-block round trip a naive loop would make.
func (r *AssignmentRepository) GetByBlockIDs(ctx context.Context, blockIDs []uuid.UUID) ([]*entity.Assignment, error) {
	if len(blockIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, person_id, block_id, rotation_template_id, actual_hours,
		       created_at, created_by, source_run_id, source_swap_id, source
		FROM assignments WHERE block_id = ANY($1) ORDER BY block_id, created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(blockIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var out []*entity.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AssignmentRepository) GetByDateRange(ctx context.Context, start, end entity.Date) ([]*entity.Assignment, error) {
	query := `
		SELECT a.id, a.person_id, a.block_id, a.rotation_template_id, a.actual_hours,
		       a.created_at, a.created_by, a.source_run_id, a.source_swap_id, a.source
		FROM assignments a
		INNER JOIN blocks b ON a.block_id = b.id
		WHERE b.date >= $1 AND b.date <= $2
		ORDER BY b.date ASC
	`
	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var out []*entity.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AssignmentRepository) Update(ctx context.Context, a *entity.Assignment) error {
	query := `
		UPDATE assignments
		SET person_id = $2, block_id = $3, rotation_template_id = $4, actual_hours = $5, source = $6
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, a.ID, a.PersonID, a.BlockID, a.RotationTemplateID, a.ActualHours, string(a.Source))
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &repository.NotFoundError{Entity: "Assignment"}
	}
	return nil
}

func (r *AssignmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &repository.NotFoundError{Entity: "Assignment"}
	}
	return nil
}
