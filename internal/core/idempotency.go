package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/schedcore/schedcore/internal/coreerr"
	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/repository"
)

// idempotencyWindow is how long a completed mutating operation's result
// stays replayable under its idempotency key.
const idempotencyWindow = 24 * time.Hour

func bodyHash(body interface{}) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", coreerr.New(coreerr.KindInternal, "hashing request body", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// withIdempotency runs fn at most once per (key, body) pair, decoding a
// replayed result into out (a pointer) instead of running fn again. A
// repeated call with the same key and a different body is rejected as a
// conflicting reuse of the key. An empty key disables idempotency entirely
// (fn always runs and its result is not persisted).
func (c *Core) withIdempotency(ctx context.Context, key string, body interface{}, out interface{}, fn func(ctx context.Context) error) error {
	if key == "" {
		return fn(ctx)
	}

	hash, err := bodyHash(body)
	if err != nil {
		return err
	}

	repo := c.db.IdempotencyRepository()
	existing, err := repo.Get(ctx, key)
	switch {
	case err == nil && !existing.Expired(c.clock.Now()):
		if !existing.Matches(hash) {
			return coreerr.New(coreerr.KindIdempotencyConflict, "idempotency key reused with a different request body", nil)
		}
		if jsonErr := json.Unmarshal(existing.ResultJSON, out); jsonErr != nil {
			return coreerr.New(coreerr.KindInternal, "decoding replayed idempotent result", jsonErr)
		}
		return nil
	case err != nil && !repository.IsNotFound(err):
		return coreerr.New(coreerr.KindTransient, "reading idempotency record", err)
	}
	// Not found, or found but expired: fall through and run fn fresh.

	if err := fn(ctx); err != nil {
		return err
	}

	resultJSON, err := json.Marshal(out)
	if err != nil {
		return coreerr.New(coreerr.KindInternal, "encoding idempotent result", err)
	}

	now := c.clock.Now()
	if err := repo.Create(ctx, &entity.IdempotencyRecord{
		Key: key, BodyHash: hash, ResultJSON: resultJSON,
		CreatedAt: now, ExpiresAt: now.Add(idempotencyWindow),
	}); err != nil {
		c.log.WithError(err).Warn("failed to persist idempotency record; retries of this request will not be deduplicated")
	}
	return nil
}
