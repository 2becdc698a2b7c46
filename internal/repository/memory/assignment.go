package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/repository"
)

// AssignmentRepository is an in-memory implementation for testing.
type AssignmentRepository struct {
	mu          sync.RWMutex
	assignments map[entity.AssignmentID]*entity.Assignment
	queryCount  int
}

func NewAssignmentRepository() *AssignmentRepository {
	return &AssignmentRepository{assignments: make(map[entity.AssignmentID]*entity.Assignment)}
}

func (r *AssignmentRepository) Create(ctx context.Context, a *entity.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queryCount++

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	r.assignments[a.ID] = &cp
	return nil
}

func (r *AssignmentRepository) GetByID(ctx context.Context, id entity.AssignmentID) (*entity.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.queryCount++

	a, ok := r.assignments[id]
	if !ok {
		return nil, &repository.NotFoundError{Entity: "Assignment"}
	}
	cp := *a
	return &cp, nil
}

func (r *AssignmentRepository) GetByPerson(ctx context.Context, personID entity.PersonID) ([]*entity.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.queryCount++

	var out []*entity.Assignment
	for _, a := range r.assignments {
		if a.PersonID == personID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// GetByBlockIDs scans the single in-memory map once regardless of how many
// block IDs are requested, mirroring the batched SQL lookup's single
// round-trip behavior.
func (r *AssignmentRepository) GetByBlockIDs(ctx context.Context, blockIDs []entity.BlockID) ([]*entity.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.queryCount++

	want := make(map[entity.BlockID]bool, len(blockIDs))
	for _, id := range blockIDs {
		want[id] = true
	}
	var out []*entity.Assignment
	for _, a := range r.assignments {
		if want[a.BlockID] {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *AssignmentRepository) GetByDateRange(ctx context.Context, start, end entity.Date) ([]*entity.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.queryCount++

	// Without an indexed join to blocks, callers needing date-range
	// filtering construct a SchedulingContext and filter assignments via
	// ForBlock/OrderedBlocks instead of relying on this path in tests.
	out := make([]*entity.Assignment, 0, len(r.assignments))
	for _, a := range r.assignments {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *AssignmentRepository) Update(ctx context.Context, a *entity.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queryCount++

	if _, ok := r.assignments[a.ID]; !ok {
		return &repository.NotFoundError{Entity: "Assignment"}
	}
	cp := *a
	r.assignments[a.ID] = &cp
	return nil
}

func (r *AssignmentRepository) Delete(ctx context.Context, id entity.AssignmentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queryCount++

	if _, ok := r.assignments[id]; !ok {
		return &repository.NotFoundError{Entity: "Assignment"}
	}
	delete(r.assignments, id)
	return nil
}

func (r *AssignmentRepository) QueryCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.queryCount
}

func (r *AssignmentRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments = make(map[entity.AssignmentID]*entity.Assignment)
	r.queryCount = 0
}
