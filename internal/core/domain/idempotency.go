package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyStatus is the lifecycle state of an idempotency record.
type IdempotencyStatus string

const (
	IdempotencyStatusStored    IdempotencyStatus = "stored"
	IdempotencyStatusCompleted IdempotencyStatus = "completed"
	IdempotencyStatusFailed    IdempotencyStatus = "failed"
)

// IdempotencyRecord deduplicates client-retried mutating requests. Uniqueness
// is enforced on (Key, UserID) at the storage layer, so concurrent duplicate
// submissions race safely: exactly one wins creation.
type IdempotencyRecord struct {
	ID            uuid.UUID         `json:"id"`
	Key           string            `json:"key"`
	UserID        uuid.UUID         `json:"user_id"`
	Status        IdempotencyStatus `json:"status"`
	TransactionID *uuid.UUID        `json:"transaction_id,omitempty"`
	ResponseJSON  []byte            `json:"-"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Replayable reports whether the record holds a finalized cached response
// that can be returned without re-executing business logic.
func (r *IdempotencyRecord) Replayable() bool {
	return r.Status == IdempotencyStatusCompleted && len(r.ResponseJSON) > 0
}

// BuildIdempotencyCacheKey constructs the replay-cache key scoped per user.
func BuildIdempotencyCacheKey(userID uuid.UUID, key string) string {
	return userID.String() + ":" + key
}
