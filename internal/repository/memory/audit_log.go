package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/repository"
)

// AuditLogRepository is an in-memory implementation for testing.
type AuditLogRepository struct {
	mu         sync.RWMutex
	entries    []*repository.AuditLogEntry
	queryCount int
}

func NewAuditLogRepository() *AuditLogRepository {
	return &AuditLogRepository{}
}

func (r *AuditLogRepository) Create(ctx context.Context, e *repository.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queryCount++

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	cp := *e
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *AuditLogRepository) ListByResource(ctx context.Context, resource string) ([]*repository.AuditLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.queryCount++

	var out []*repository.AuditLogEntry
	for _, e := range r.entries {
		if e.Resource == resource {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *AuditLogRepository) QueryCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.queryCount
}

func (r *AuditLogRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
	r.queryCount = 0
}
