package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/repository"
)

// BlockRepository is an in-memory implementation for testing.
type BlockRepository struct {
	mu         sync.RWMutex
	blocks     map[entity.BlockID]*entity.Block
	queryCount int
}

func NewBlockRepository() *BlockRepository {
	return &BlockRepository{blocks: make(map[entity.BlockID]*entity.Block)}
}

func (r *BlockRepository) Create(ctx context.Context, b *entity.Block) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queryCount++

	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	cp := *b
	r.blocks[b.ID] = &cp
	return nil
}

func (r *BlockRepository) GetByID(ctx context.Context, id entity.BlockID) (*entity.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.queryCount++

	b, ok := r.blocks[id]
	if !ok {
		return nil, &repository.NotFoundError{Entity: "Block"}
	}
	cp := *b
	return &cp, nil
}

func (r *BlockRepository) ListByDateRange(ctx context.Context, start, end entity.Date) ([]*entity.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.queryCount++

	var out []*entity.Block
	for _, b := range r.blocks {
		if !b.Date.Before(start) && !b.Date.After(end) {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *BlockRepository) QueryCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.queryCount
}

func (r *BlockRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks = make(map[entity.BlockID]*entity.Block)
	r.queryCount = 0
}
