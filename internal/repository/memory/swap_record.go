package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/repository"
)

// SwapRecordRepository is an in-memory implementation for testing.
type SwapRecordRepository struct {
	mu         sync.RWMutex
	records    map[entity.SwapRecordID]*entity.SwapRecord
	queryCount int
}

func NewSwapRecordRepository() *SwapRecordRepository {
	return &SwapRecordRepository{records: make(map[entity.SwapRecordID]*entity.SwapRecord)}
}

func (r *SwapRecordRepository) Create(ctx context.Context, s *entity.SwapRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queryCount++

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	cp := *s
	r.records[s.ID] = &cp
	return nil
}

func (r *SwapRecordRepository) GetByID(ctx context.Context, id entity.SwapRecordID) (*entity.SwapRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.queryCount++

	s, ok := r.records[id]
	if !ok {
		return nil, &repository.NotFoundError{Entity: "SwapRecord"}
	}
	cp := *s
	return &cp, nil
}

func (r *SwapRecordRepository) Update(ctx context.Context, s *entity.SwapRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queryCount++

	if _, ok := r.records[s.ID]; !ok {
		return &repository.NotFoundError{Entity: "SwapRecord"}
	}
	cp := *s
	r.records[s.ID] = &cp
	return nil
}

func (r *SwapRecordRepository) ListByStatus(ctx context.Context, status entity.SwapStatus) ([]*entity.SwapRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.queryCount++

	var out []*entity.SwapRecord
	for _, s := range r.records {
		if s.Status == status {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *SwapRecordRepository) QueryCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.queryCount
}

func (r *SwapRecordRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[entity.SwapRecordID]*entity.SwapRecord)
	r.queryCount = 0
}
