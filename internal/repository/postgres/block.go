package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/repository"
)

// BlockRepository implements repository.BlockRepository for PostgreSQL.
type BlockRepository struct {
	db sqlExecutor
}

func NewBlockRepository(db sqlExecutor) *BlockRepository {
	return &BlockRepository{db: db}
}

func (r *BlockRepository) Create(ctx context.Context, b *entity.Block) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO blocks (id, date, session) VALUES ($1, $2, $3)`,
		b.ID, b.Date, string(b.Session),
	)
	if err != nil {
		return fmt.Errorf("failed to create block: %w", err)
	}
	return nil
}

func (r *BlockRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Block, error) {
	b := &entity.Block{}
	err := r.db.QueryRowContext(ctx, `SELECT id, date, session FROM blocks WHERE id = $1`, id).
		Scan(&b.ID, &b.Date, (*string)(&b.Session))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{Entity: "Block"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get block: %w", err)
	}
	return b, nil
}

func (r *BlockRepository) ListByDateRange(ctx context.Context, start, end entity.Date) ([]*entity.Block, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, session FROM blocks WHERE date >= $1 AND date <= $2 ORDER BY date, session`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer rows.Close()

	var out []*entity.Block
	for rows.Next() {
		b := &entity.Block{}
		if err := rows.Scan(&b.ID, &b.Date, (*string)(&b.Session)); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
