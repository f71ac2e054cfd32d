package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"banking-ledger/internal/core/domain"
	"banking-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a transaction envelope inside an atomic unit. Envelopes are
// immutable after creation.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	metaJSON, err := json.Marshal(t.Meta)
	if err != nil {
		return fmt.Errorf("marshal transaction meta: %w", err)
	}

	query := `INSERT INTO transactions (id, kind, status, initiator_user_id, base_currency, amount, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)`

	_, err = tx.Exec(ctx, query,
		t.ID, string(t.Kind), string(t.Status), t.InitiatorUserID,
		string(t.BaseCurrency), t.Amount.String(), metaJSON, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

const transactionColumns = `id, kind, status, initiator_user_id, base_currency, amount::text, meta, created_at`

// GetByID fetches a transaction envelope by ID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return t, nil
}

// List returns the envelopes that produced a ledger entry on any of the given
// accounts, newest first, with the total count for paging.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	if len(params.AccountIDs) == 0 {
		return nil, 0, nil
	}
	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 10
	}

	filter := `FROM transactions t
		WHERE t.id IN (SELECT DISTINCT transaction_id FROM ledger_entries WHERE account_id = ANY($1))`
	args := []any{params.AccountIDs}
	if params.Kind != nil {
		filter += ` AND t.kind = $2`
		args = append(args, string(*params.Kind))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) `+filter, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT t.id, t.kind, t.status, t.initiator_user_id, t.base_currency, t.amount::text, t.meta, t.created_at `+
			filter+` ORDER BY t.created_at DESC LIMIT %d OFFSET %d`,
		pageSize, (page-1)*pageSize,
	)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var items []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		items = append(items, *t)
	}
	return items, total, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var kind, status, currency, amount string
	var metaJSON []byte
	err := row.Scan(&t.ID, &kind, &status, &t.InitiatorUserID, &currency, &amount, &metaJSON, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Kind = domain.TransactionKind(kind)
	t.Status = domain.TransactionStatus(status)
	t.BaseCurrency = domain.Currency(currency)
	if t.Amount, err = domain.ParseMoney(amount); err != nil {
		return nil, fmt.Errorf("parse transaction amount: %w", err)
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &t.Meta); err != nil {
			return nil, fmt.Errorf("unmarshal transaction meta: %w", err)
		}
	}
	return t, nil
}
