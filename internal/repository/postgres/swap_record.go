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

// SwapRecordRepository implements repository.SwapRecordRepository for PostgreSQL.
type SwapRecordRepository struct {
	db sqlExecutor
}

func NewSwapRecordRepository(db sqlExecutor) *SwapRecordRepository {
	return &SwapRecordRepository{db: db}
}

func (r *SwapRecordRepository) Create(ctx context.Context, s *entity.SwapRecord) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	participants, err := json.Marshal(s.Participants)
	if err != nil {
		return fmt.Errorf("failed to marshal participants: %w", err)
	}

	query := `
		INSERT INTO swap_records (id, type, status, participants, compat_score, requested_at, requested_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`
	_, err = r.db.ExecContext(ctx, query, s.ID, string(s.Type), string(s.Status), participants, s.CompatScore, s.RequestedAt, s.RequestedBy)
	if err != nil {
		return fmt.Errorf("failed to create swap record: %w", err)
	}
	return nil
}

func (r *SwapRecordRepository) scan(row interface{ Scan(...any) error }) (*entity.SwapRecord, error) {
	s := &entity.SwapRecord{}
	var participantsJSON []byte
	err := row.Scan(
		&s.ID, (*string)(&s.Type), (*string)(&s.Status), &participantsJSON, &s.CompatScore,
		&s.RequestedAt, &s.ValidatedAt, &s.ExecutedAt, &s.RolledBackAt, &s.RejectedReason, &s.RequestedBy,
	)
	if err != nil {
		return nil, err
	}
	if len(participantsJSON) > 0 {
		if err := json.Unmarshal(participantsJSON, &s.Participants); err != nil {
			return nil, fmt.Errorf("failed to unmarshal participants: %w", err)
		}
	}
	return s, nil
}

func (r *SwapRecordRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.SwapRecord, error) {
	query := `
		SELECT id, type, status, participants, compat_score, requested_at,
		       validated_at, executed_at, rolled_back_at, rejected_reason, requested_by
		FROM swap_records WHERE id = $1
	`
	s, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{Entity: "SwapRecord"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get swap record: %w", err)
	}
	return s, nil
}

func (r *SwapRecordRepository) Update(ctx context.Context, s *entity.SwapRecord) error {
	query := `
		UPDATE swap_records
		SET status = $2, validated_at = $3, executed_at = $4, rolled_back_at = $5, rejected_reason = $6
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, s.ID, string(s.Status), s.ValidatedAt, s.ExecutedAt, s.RolledBackAt, s.RejectedReason)
	if err != nil {
		return fmt.Errorf("failed to update swap record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &repository.NotFoundError{Entity: "SwapRecord"}
	}
	return nil
}

func (r *SwapRecordRepository) ListByStatus(ctx context.Context, status entity.SwapStatus) ([]*entity.SwapRecord, error) {
	query := `
		SELECT id, type, status, participants, compat_score, requested_at,
		       validated_at, executed_at, rolled_back_at, rejected_reason, requested_by
		FROM swap_records WHERE status = $1 ORDER BY requested_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query swap records: %w", err)
	}
	defer rows.Close()

	var out []*entity.SwapRecord
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan swap record: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
