package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/repository"
)

// PersonRepository implements repository.PersonRepository for PostgreSQL.
type PersonRepository struct {
	db sqlExecutor
}

func NewPersonRepository(db sqlExecutor) *PersonRepository {
	return &PersonRepository{db: db}
}

func (r *PersonRepository) Create(ctx context.Context, p *entity.Person) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	credentials, err := json.Marshal(p.Credentials)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	query := `
		INSERT INTO persons (id, role, pgy_level, credentials, active, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, query,
		p.ID, string(p.Role), p.PGYLevel, credentials, p.Active, p.Name, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create person: %w", err)
	}
	return nil
}

func (r *PersonRepository) scan(row *sql.Row) (*entity.Person, error) {
	p := &entity.Person{}
	var credentials []byte
	err := row.Scan(&p.ID, (*string)(&p.Role), &p.PGYLevel, &credentials, &p.Active, &p.Name, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		return nil, err
	}
	if len(credentials) > 0 {
		if err := json.Unmarshal(credentials, &p.Credentials); err != nil {
			return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
		}
	}
	return p, nil
}

func (r *PersonRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Person, error) {
	query := `
		SELECT id, role, pgy_level, credentials, active, name, created_at, updated_at, deleted_at
		FROM persons WHERE id = $1 AND deleted_at IS NULL
	`
	p, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{Entity: "Person"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	return p, nil
}

func (r *PersonRepository) ListActive(ctx context.Context) ([]*entity.Person, error) {
	query := `
		SELECT id, role, pgy_level, credentials, active, name, created_at, updated_at, deleted_at
		FROM persons WHERE deleted_at IS NULL AND active = true
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query persons: %w", err)
	}
	defer rows.Close()

	var out []*entity.Person
	for rows.Next() {
		p := &entity.Person{}
		var credentials []byte
		if err := rows.Scan(&p.ID, (*string)(&p.Role), &p.PGYLevel, &credentials, &p.Active, &p.Name, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		if len(credentials) > 0 {
			if err := json.Unmarshal(credentials, &p.Credentials); err != nil {
				return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PersonRepository) Update(ctx context.Context, p *entity.Person) error {
	credentials, err := json.Marshal(p.Credentials)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	query := `
		UPDATE persons
		SET role = $2, pgy_level = $3, credentials = $4, active = $5, name = $6, updated_at = $7
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, p.ID, string(p.Role), p.PGYLevel, credentials, p.Active, p.Name, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update person: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &repository.NotFoundError{Entity: "Person"}
	}
	return nil
}

func (r *PersonRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `UPDATE persons SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete person: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &repository.NotFoundError{Entity: "Person"}
	}
	return nil
}
