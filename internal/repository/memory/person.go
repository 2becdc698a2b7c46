package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/repository"
)

// PersonRepository is an in-memory implementation for testing.
type PersonRepository struct {
	mu         sync.RWMutex
	people     map[entity.PersonID]*entity.Person
	queryCount int
}

func NewPersonRepository() *PersonRepository {
	return &PersonRepository{people: make(map[entity.PersonID]*entity.Person)}
}

func (r *PersonRepository) Create(ctx context.Context, p *entity.Person) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queryCount++

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	r.people[p.ID] = &cp
	return nil
}

func (r *PersonRepository) GetByID(ctx context.Context, id entity.PersonID) (*entity.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.queryCount++

	p, ok := r.people[id]
	if !ok || p.IsDeleted() {
		return nil, &repository.NotFoundError{Entity: "Person"}
	}
	cp := *p
	return &cp, nil
}

func (r *PersonRepository) ListActive(ctx context.Context) ([]*entity.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.queryCount++

	var out []*entity.Person
	for _, p := range r.people {
		if !p.IsDeleted() && p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *PersonRepository) Update(ctx context.Context, p *entity.Person) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queryCount++

	existing, ok := r.people[p.ID]
	if !ok || existing.IsDeleted() {
		return &repository.NotFoundError{Entity: "Person"}
	}
	cp := *p
	r.people[p.ID] = &cp
	return nil
}

func (r *PersonRepository) Delete(ctx context.Context, id entity.PersonID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queryCount++

	p, ok := r.people[id]
	if !ok || p.IsDeleted() {
		return &repository.NotFoundError{Entity: "Person"}
	}
	p.SoftDelete(entity.RealClock{}.Now())
	return nil
}

// QueryCount returns the number of operations executed, for N+1 assertions.
func (r *PersonRepository) QueryCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.queryCount
}

// Reset clears all data and resets the query count.
func (r *PersonRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.people = make(map[entity.PersonID]*entity.Person)
	r.queryCount = 0
}
