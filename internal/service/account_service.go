package service

import (
	"context"
	"fmt"

	"banking-ledger/internal/core/domain"
	"banking-ledger/internal/core/ports"
	"banking-ledger/pkg/apperror"

	"github.com/google/uuid"
)

// AccountServiceImpl implements ports.AccountService: read-only account and
// transaction-history queries scoped to one owner.
type AccountServiceImpl struct {
	accountRepo ports.AccountRepository
	txRepo      ports.TransactionRepository
}

// NewAccountService creates a new AccountServiceImpl.
func NewAccountService(accountRepo ports.AccountRepository, txRepo ports.TransactionRepository) *AccountServiceImpl {
	return &AccountServiceImpl{accountRepo: accountRepo, txRepo: txRepo}
}

// ListAccounts returns the user's accounts ordered by currency.
func (s *AccountServiceImpl) ListAccounts(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	accounts, err := s.accountRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list accounts: %w", err))
	}
	return accounts, nil
}

// GetBalance returns one account, verifying ownership.
func (s *AccountServiceImpl) GetBalance(ctx context.Context, userID, accountID uuid.UUID) (*domain.Account, error) {
	acc, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if acc == nil || acc.UserID != userID {
		return nil, apperror.ErrNotFound("account")
	}
	return acc, nil
}

// ListTransactions pages through the envelopes that touched any of the
// user's accounts, newest first, optionally filtered by kind.
func (s *AccountServiceImpl) ListTransactions(ctx context.Context, userID uuid.UUID, kind *domain.TransactionKind, page, limit int) (*ports.TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	if kind != nil && !kind.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown transaction kind %q", *kind))
	}

	accounts, err := s.accountRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list accounts: %w", err))
	}
	result := &ports.TransactionPage{Items: []domain.Transaction{}, Page: page, Limit: limit}
	if len(accounts) == 0 {
		return result, nil
	}

	ids := make([]uuid.UUID, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	items, total, err := s.txRepo.List(ctx, ports.TransactionListParams{
		AccountIDs: ids,
		Kind:       kind,
		Page:       page,
		PageSize:   limit,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	if items == nil {
		items = []domain.Transaction{}
	}
	result.Items = items
	result.Total = total
	return result, nil
}
