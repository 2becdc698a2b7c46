package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/entity"
)

// AbsenceRepository is an in-memory implementation for testing.
type AbsenceRepository struct {
	mu         sync.RWMutex
	absences   map[entity.AbsenceID]*entity.Absence
	queryCount int
}

func NewAbsenceRepository() *AbsenceRepository {
	return &AbsenceRepository{absences: make(map[entity.AbsenceID]*entity.Absence)}
}

func (r *AbsenceRepository) Create(ctx context.Context, a *entity.Absence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queryCount++

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	r.absences[a.ID] = &cp
	return nil
}

func (r *AbsenceRepository) GetByPerson(ctx context.Context, personID entity.PersonID) ([]*entity.Absence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.queryCount++

	var out []*entity.Absence
	for _, a := range r.absences {
		if a.PersonID == personID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *AbsenceRepository) QueryCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.queryCount
}

func (r *AbsenceRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.absences = make(map[entity.AbsenceID]*entity.Absence)
	r.queryCount = 0
}
