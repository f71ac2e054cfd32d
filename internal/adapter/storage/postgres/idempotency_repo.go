package postgres

import (
	"context"
	"errors"
	"fmt"

	"banking-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository. The idempotency_keys
// table carries a UNIQUE (key, user_id) constraint; Create relies on it so
// concurrent duplicate submissions race safely.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Create inserts a fresh record in `stored` state. Returns inserted=false
// without error when another record already owns the (key, user_id) slot.
func (r *IdempotencyRepo) Create(ctx context.Context, rec *domain.IdempotencyRecord) (bool, error) {
	query := `INSERT INTO idempotency_keys (id, key, user_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key, user_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query, rec.ID, rec.Key, rec.UserID, string(rec.Status), rec.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert idempotency record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Get fetches the record for (userID, key). Returns nil, nil when absent.
func (r *IdempotencyRepo) Get(ctx context.Context, userID uuid.UUID, key string) (*domain.IdempotencyRecord, error) {
	query := `SELECT id, key, user_id, status, transaction_id, response_json, created_at
		FROM idempotency_keys WHERE key = $1 AND user_id = $2`

	rec := &domain.IdempotencyRecord{}
	var status string
	err := r.pool.QueryRow(ctx, query, key, userID).Scan(
		&rec.ID, &rec.Key, &rec.UserID, &status, &rec.TransactionID, &rec.ResponseJSON, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	rec.Status = domain.IdempotencyStatus(status)
	return rec, nil
}

// Finalize transitions a `stored` record to a terminal state exactly once.
// A record that already left `stored` is not touched.
func (r *IdempotencyRepo) Finalize(ctx context.Context, id uuid.UUID, status domain.IdempotencyStatus, transactionID uuid.UUID, responseJSON []byte) error {
	query := `UPDATE idempotency_keys
		SET status = $1, transaction_id = $2, response_json = $3
		WHERE id = $4 AND status = $5`

	tag, err := r.pool.Exec(ctx, query, string(status), transactionID, responseJSON, id, string(domain.IdempotencyStatusStored))
	if err != nil {
		return fmt.Errorf("finalize idempotency record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("idempotency record %s not in stored state", id)
	}
	return nil
}
