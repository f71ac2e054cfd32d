package ports

import (
	"context"

	"banking-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository defines persistence operations for users.
// The Tx variant is used inside an atomic unit so recipient resolution reads
// from the same serializable snapshot as the rest of the unit.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error)
}

// AccountRepository defines persistence operations for accounts.
// Methods accepting pgx.Tx run inside an atomic unit; GetForUpdate acquires a
// row lock with intent to mutate.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Account, error)
	ListAll(ctx context.Context) ([]domain.Account, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID, currency domain.Currency) (*domain.Account, error)
	SetBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, balance domain.Money) error
}

// TransactionRepository defines persistence operations for transaction envelopes.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// TransactionListParams holds filter + pagination for transaction history.
// AccountIDs scopes the listing to envelopes that produced a ledger entry on
// any of the caller's accounts.
type TransactionListParams struct {
	AccountIDs []uuid.UUID
	Kind       *domain.TransactionKind
	Page       int
	PageSize   int
}

// LedgerRepository defines persistence operations for ledger entries.
// Entries are append-only; there is no update or delete.
type LedgerRepository interface {
	AppendEntries(ctx context.Context, tx pgx.Tx, entries []domain.LedgerEntry) error
	SumByAccount(ctx context.Context) (map[uuid.UUID]domain.Money, error)
}

// IdempotencyRepository defines persistence for the idempotency register.
// Create inserts with ON CONFLICT DO NOTHING semantics and reports whether
// this caller won the (key, user) slot.
type IdempotencyRepository interface {
	Create(ctx context.Context, record *domain.IdempotencyRecord) (inserted bool, err error)
	Get(ctx context.Context, userID uuid.UUID, key string) (*domain.IdempotencyRecord, error)
	Finalize(ctx context.Context, id uuid.UUID, status domain.IdempotencyStatus, transactionID uuid.UUID, responseJSON []byte) error
}

// DBTransactor executes a function inside one atomic unit of work with
// serializable isolation. If fn returns an error the unit is rolled back and
// no partial writes are visible to any other transaction.
type DBTransactor interface {
	RunAtomic(ctx context.Context, fn func(tx pgx.Tx) error) error
}
