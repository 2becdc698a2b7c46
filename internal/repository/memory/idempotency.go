package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/repository"
)

// IdempotencyRepository is an in-memory implementation for testing.
type IdempotencyRepository struct {
	mu         sync.RWMutex
	records    map[string]*entity.IdempotencyRecord
	queryCount int
}

func NewIdempotencyRepository() *IdempotencyRepository {
	return &IdempotencyRepository{records: make(map[string]*entity.IdempotencyRecord)}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*entity.IdempotencyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.queryCount++

	rec, ok := r.records[key]
	if !ok {
		return nil, &repository.NotFoundError{Entity: "IdempotencyRecord"}
	}
	cp := *rec
	return &cp, nil
}

func (r *IdempotencyRepository) Create(ctx context.Context, rec *entity.IdempotencyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queryCount++

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	cp := *rec
	r.records[rec.Key] = &cp
	return nil
}

func (r *IdempotencyRepository) QueryCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.queryCount
}

func (r *IdempotencyRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[string]*entity.IdempotencyRecord)
	r.queryCount = 0
}
