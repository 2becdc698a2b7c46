package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/repository"
)

// AuditLogRepository implements repository.AuditLogRepository for PostgreSQL.
type AuditLogRepository struct {
	db sqlExecutor
}

func NewAuditLogRepository(db sqlExecutor) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Create(ctx context.Context, e *repository.AuditLogEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	detailsJSON, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}

	query := `
		INSERT INTO audit_logs (id, actor, action, resource, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.ExecContext(ctx, query, e.ID, e.Actor, e.Action, e.Resource, detailsJSON, e.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *AuditLogRepository) ListByResource(ctx context.Context, resource string) ([]*repository.AuditLogEntry, error) {
	query := `
		SELECT id, actor, action, resource, details, created_at
		FROM audit_logs WHERE resource = $1 ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, resource)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var out []*repository.AuditLogEntry
	for rows.Next() {
		e := &repository.AuditLogEntry{Details: make(map[string]interface{})}
		var detailsJSON []byte
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Resource, &detailsJSON, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &e.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal details: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
