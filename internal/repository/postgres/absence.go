package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/entity"
)

// AbsenceRepository implements repository.AbsenceRepository for PostgreSQL.
type AbsenceRepository struct {
	db sqlExecutor
}

func NewAbsenceRepository(db sqlExecutor) *AbsenceRepository {
	return &AbsenceRepository{db: db}
}

func (r *AbsenceRepository) Create(ctx context.Context, a *entity.Absence) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO absences (id, person_id, start_date, end_date, reason) VALUES ($1,$2,$3,$4,$5)`,
		a.ID, a.PersonID, a.Start, a.End, string(a.Reason),
	)
	if err != nil {
		return fmt.Errorf("failed to create absence: %w", err)
	}
	return nil
}

func (r *AbsenceRepository) GetByPerson(ctx context.Context, personID uuid.UUID) ([]*entity.Absence, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, person_id, start_date, end_date, reason FROM absences WHERE person_id = $1 ORDER BY start_date`,
		personID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query absences: %w", err)
	}
	defer rows.Close()

	var out []*entity.Absence
	for rows.Next() {
		a := &entity.Absence{}
		if err := rows.Scan(&a.ID, &a.PersonID, &a.Start, &a.End, (*string)(&a.Reason)); err != nil {
			return nil, fmt.Errorf("failed to scan absence: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
