package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/repository"
)

// IdempotencyRepository implements repository.IdempotencyRepository for PostgreSQL.
type IdempotencyRepository struct {
	db sqlExecutor
}

func NewIdempotencyRepository(db sqlExecutor) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*entity.IdempotencyRecord, error) {
	rec := &entity.IdempotencyRecord{}
	query := `SELECT id, key, body_hash, result_json, created_at, expires_at FROM idempotency_records WHERE key = $1`
	err := r.db.QueryRowContext(ctx, query, key).Scan(&rec.ID, &rec.Key, &rec.BodyHash, &rec.ResultJSON, &rec.CreatedAt, &rec.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{Entity: "IdempotencyRecord"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}
	return rec, nil
}

func (r *IdempotencyRepository) Create(ctx context.Context, rec *entity.IdempotencyRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	query := `INSERT INTO idempotency_records (id, key, body_hash, result_json, created_at, expires_at) VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.db.ExecContext(ctx, query, rec.ID, rec.Key, rec.BodyHash, rec.ResultJSON, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create idempotency record: %w", err)
	}
	return nil
}
