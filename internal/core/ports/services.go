package ports

import (
	"context"
	"time"

	"banking-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferRequest carries a validated transfer command into the engine.
// Amount is the raw caller input; the engine normalizes it to 2dp half-up.
type TransferRequest struct {
	InitiatorUserID uuid.UUID
	RecipientUserID uuid.UUID
	Currency        domain.Currency
	Amount          string
	IdempotencyKey  *string
}

// ExchangeRequest carries a validated exchange command into the engine.
// The destination currency is derived: with two supported currencies the
// complement of FromCurrency is deterministic.
type ExchangeRequest struct {
	InitiatorUserID uuid.UUID
	FromCurrency    domain.Currency
	Amount          string
	IdempotencyKey  *string
}

// LedgerService is the transaction engine: it moves money between accounts
// under serializable isolation with idempotent retries.
type LedgerService interface {
	Transfer(ctx context.Context, req TransferRequest) (*domain.Transaction, error)
	Exchange(ctx context.Context, req ExchangeRequest) (*domain.Transaction, error)
}

// ReconciliationIssue reports one account whose stored balance disagrees
// with the sum of its ledger entries.
type ReconciliationIssue struct {
	AccountID uuid.UUID    `json:"account_id"`
	Expected  domain.Money `json:"expected"`
	Actual    domain.Money `json:"actual"`
}

// ReconciliationReport is the outcome of one full audit pass.
type ReconciliationReport struct {
	OK     bool                  `json:"ok"`
	Issues []ReconciliationIssue `json:"issues"`
}

// ReconciliationService audits stored balances against ledger history.
// It detects drift; repair is out of scope.
type ReconciliationService interface {
	Verify(ctx context.Context) (*ReconciliationReport, error)
}

// AccountService exposes read-only account and history queries.
type AccountService interface {
	ListAccounts(ctx context.Context, userID uuid.UUID) ([]domain.Account, error)
	GetBalance(ctx context.Context, userID, accountID uuid.UUID) (*domain.Account, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, kind *domain.TransactionKind, page, limit int) (*TransactionPage, error)
}

// TransactionPage is one page of transaction history.
type TransactionPage struct {
	Items []domain.Transaction `json:"items"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

// RateProvider supplies the point-in-time USD→EUR rate. The engine treats it
// as an opaque external input and captures it into transaction metadata.
type RateProvider interface {
	USDToEUR() decimal.Decimal
}

// IdempotencyCache is a best-effort replay cache in front of the durable
// idempotency register. Only finalized responses are ever stored here.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
