package lockmgr

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sort"
)

// PostgresLocker acquires transaction-scoped advisory locks via
// pg_advisory_xact_lock, releasing automatically at transaction end. This
// gives the swap engine the same "hold until commit or rollback" semantics
// `SELECT ... FOR UPDATE` would, without requiring the locked keys to be
// existing row primary keys.
type PostgresLocker struct {
	tx *sql.Tx
}

func NewPostgresLocker(tx *sql.Tx) *PostgresLocker {
	return &PostgresLocker{tx: tx}
}

// Acquire takes out an advisory lock per key, in sorted order, and returns a
// no-op Release: the locks are released when the caller commits or rolls
// back tx, per pg_advisory_xact_lock's semantics.
func (l *PostgresLocker) Acquire(ctx context.Context, keys ...string) (Release, error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	seen := make(map[int64]bool, len(sorted))
	for _, key := range sorted {
		id := advisoryKeyHash(key)
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := l.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, id); err != nil {
			return nil, fmt.Errorf("failed to acquire advisory lock for %q: %w", key, err)
		}
	}
	return func() {}, nil
}

// advisoryKeyHash maps an arbitrary key to the int64 space pg_advisory_xact_lock expects.
func advisoryKeyHash(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}
