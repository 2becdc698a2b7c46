package core

import (
	"context"
	"time"

	"github.com/schedcore/schedcore/internal/repository"
)

// backupResource is the audit-log resource key backup-completion events are
// recorded under, so the safety gate can find the latest one without a
// dedicated backup table.
const backupResource = "database_backup"

// AuditLogBackupMarker implements scheduler.BackupMarker by reading the
// most recent audit-log entry recorded under the database_backup resource,
// whatever its action. Whatever process performs
// the actual backup is expected to call AuditLogRepository.Create with this
// resource key; this marker only ever reads.
type AuditLogBackupMarker struct {
	audit repository.AuditLogRepository
	clock interface{ Now() time.Time }
}

func NewAuditLogBackupMarker(audit repository.AuditLogRepository, clock interface{ Now() time.Time }) *AuditLogBackupMarker {
	return &AuditLogBackupMarker{audit: audit, clock: clock}
}

func (m *AuditLogBackupMarker) LatestBackupAge(ctx context.Context) (time.Duration, error) {
	entries, err := m.audit.ListByResource(ctx, backupResource)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, errNoBackupRecorded
	}
	latest := entries[0].Timestamp
	for _, e := range entries[1:] {
		if e.Timestamp.After(latest) {
			latest = e.Timestamp
		}
	}
	return m.clock.Now().Sub(latest), nil
}

var errNoBackupRecorded = &noBackupError{}

type noBackupError struct{}

func (*noBackupError) Error() string { return "no backup has ever been recorded" }
