package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/repository"
)

// RotationTemplateRepository is an in-memory implementation for testing.
type RotationTemplateRepository struct {
	mu         sync.RWMutex
	templates  map[entity.RotationTemplateID]*entity.RotationTemplate
	queryCount int
}

func NewRotationTemplateRepository() *RotationTemplateRepository {
	return &RotationTemplateRepository{templates: make(map[entity.RotationTemplateID]*entity.RotationTemplate)}
}

func (r *RotationTemplateRepository) Create(ctx context.Context, rt *entity.RotationTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queryCount++

	if rt.ID == uuid.Nil {
		rt.ID = uuid.New()
	}
	cp := *rt
	r.templates[rt.ID] = &cp
	return nil
}

func (r *RotationTemplateRepository) GetByID(ctx context.Context, id entity.RotationTemplateID) (*entity.RotationTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.queryCount++

	rt, ok := r.templates[id]
	if !ok {
		return nil, &repository.NotFoundError{Entity: "RotationTemplate"}
	}
	cp := *rt
	return &cp, nil
}

func (r *RotationTemplateRepository) ListAll(ctx context.Context) ([]*entity.RotationTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.queryCount++

	out := make([]*entity.RotationTemplate, 0, len(r.templates))
	for _, rt := range r.templates {
		cp := *rt
		out = append(out, &cp)
	}
	return out, nil
}

func (r *RotationTemplateRepository) QueryCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.queryCount
}

func (r *RotationTemplateRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates = make(map[entity.RotationTemplateID]*entity.RotationTemplate)
	r.queryCount = 0
}
