package postgres

import (
	"context"
	"fmt"

	"banking-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository. The ledger_entries table is
// append-only; no update or delete statement exists in this repository.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// AppendEntries inserts a batch of ledger legs inside an atomic unit.
// All-or-nothing: the surrounding transaction guarantees no partial batch is
// ever visible.
func (r *LedgerRepo) AppendEntries(ctx context.Context, tx pgx.Tx, entries []domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, transaction_id, account_id, currency, amount, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)`

	for _, e := range entries {
		_, err := tx.Exec(ctx, query,
			e.ID, e.TransactionID, e.AccountID, string(e.Currency), e.Amount.String(), e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}
	}
	return nil
}

// SumByAccount returns the exact sum of ledger entry amounts per account.
// Summation happens in the database over NUMERIC values, so there is no
// intermediate rounding. Accounts with no entries are absent from the map.
func (r *LedgerRepo) SumByAccount(ctx context.Context) (map[uuid.UUID]domain.Money, error) {
	query := `SELECT account_id, COALESCE(SUM(amount), 0)::text FROM ledger_entries GROUP BY account_id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sum ledger entries: %w", err)
	}
	defer rows.Close()

	sums := make(map[uuid.UUID]domain.Money)
	for rows.Next() {
		var accountID uuid.UUID
		var sum string
		if err := rows.Scan(&accountID, &sum); err != nil {
			return nil, fmt.Errorf("scan ledger sum: %w", err)
		}
		m, err := domain.ParseMoney(sum)
		if err != nil {
			return nil, fmt.Errorf("parse ledger sum: %w", err)
		}
		sums[accountID] = m
	}
	return sums, rows.Err()
}
