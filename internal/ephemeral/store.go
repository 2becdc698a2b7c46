// Package ephemeral provides a TTL-keyed store for the abort flags, progress
// snapshots, and partial results the scheduling engine publishes while a
// solver run is in flight.
package ephemeral

import (
	"context"
	"time"
)

// Store is a keyed, TTL-bound key/value store. Production wires it to
// Redis; tests use the in-memory implementation for determinism.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
}

const (
	AbortFlagTTL     = time.Hour
	ProgressTTL      = 2 * time.Hour
	PartialResultTTL = 24 * time.Hour
)

func AbortFlagKey(runID string) string     { return "solver:abort:" + runID }
func ProgressKey(runID string) string      { return "solver:progress:" + runID }
func PartialResultKey(runID string) string { return "solver:result:" + runID }
