package entity

import "time"

// IdempotencyRecord maps an idempotency key plus request-body hash to the
// externally visible effect already produced for it, so a retried request
// with the same body returns the prior result instead of repeating it.
type IdempotencyRecord struct {
	ID         IdempotencyRecordID
	Key        string
	BodyHash   string
	ResultJSON []byte
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the record has aged out and may be evicted.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Matches reports whether a repeated request with the given body hash is
// the same request (true) or a conflicting reuse of the key (false).
func (r IdempotencyRecord) Matches(bodyHash string) bool {
	return r.BodyHash == bodyHash
}
