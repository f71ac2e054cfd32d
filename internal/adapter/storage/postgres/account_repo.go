package postgres

import (
	"context"
	"errors"
	"fmt"

	"banking-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository. Balances are NUMERIC(20,2)
// columns moved as text on the wire so amounts never pass through floats.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

const accountColumns = `id, user_id, currency, balance::text, created_at, updated_at`

// Create inserts a new account. The (user_id, currency) pair is unique.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (id, user_id, currency, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.UserID, string(a.Currency), a.Balance.String(), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByID fetches an account by its UUID (without locking).
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id))
}

// ListByUser fetches all of a user's accounts ordered by currency.
func (r *AccountRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY currency ASC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts by user: %w", err)
	}
	defer rows.Close()
	return collectAccounts(rows)
}

// ListAll fetches every account. Used by the reconciliation auditor; this is
// a plain non-locking read.
func (r *AccountRepo) ListAll(ctx context.Context) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list all accounts: %w", err)
	}
	defer rows.Close()
	return collectAccounts(rows)
}

// GetForUpdate fetches a user's account in one currency with a pessimistic
// row lock. MUST be called inside an atomic unit.
func (r *AccountRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID, currency domain.Currency) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE user_id = $1 AND currency = $2 FOR UPDATE`
	return scanAccount(tx.QueryRow(ctx, query, userID, string(currency)))
}

// SetBalance writes a new balance inside an atomic unit.
func (r *AccountRepo) SetBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, balance domain.Money) error {
	query := `UPDATE accounts SET balance = $1::numeric, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, balance.String(), accountID)
	if err != nil {
		return fmt.Errorf("set account balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %s", accountID)
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	var currency, balance string
	err := row.Scan(&a.ID, &a.UserID, &currency, &balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	a.Currency = domain.Currency(currency)
	if a.Balance, err = domain.ParseMoney(balance); err != nil {
		return nil, fmt.Errorf("parse account balance: %w", err)
	}
	return a, nil
}

func collectAccounts(rows pgx.Rows) ([]domain.Account, error) {
	var accounts []domain.Account
	for rows.Next() {
		a := &domain.Account{}
		var currency, balance string
		if err := rows.Scan(&a.ID, &a.UserID, &currency, &balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Currency = domain.Currency(currency)
		var err error
		if a.Balance, err = domain.ParseMoney(balance); err != nil {
			return nil, fmt.Errorf("parse account balance: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}
