package service

import (
	"context"
	"encoding/json"
	"testing"

	"banking-ledger/internal/core/domain"
	"banking-ledger/internal/core/ports"
	"banking-ledger/internal/core/ports/mocks"
	"banking-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type ledgerTestDeps struct {
	svc         *LedgerServiceImpl
	userRepo    *mocks.MockUserRepository
	accountRepo *mocks.MockAccountRepository
	txRepo      *mocks.MockTransactionRepository
	ledgerRepo  *mocks.MockLedgerRepository
	idempRepo   *mocks.MockIdempotencyRepository
	idempCache  *mocks.MockIdempotencyCache
	rates       *mocks.MockRateProvider
	transactor  *mocks.MockDBTransactor
	ctrl        *gomock.Controller
}

func setupLedgerService(t *testing.T) *ledgerTestDeps {
	ctrl := gomock.NewController(t)
	d := &ledgerTestDeps{
		userRepo:    mocks.NewMockUserRepository(ctrl),
		accountRepo: mocks.NewMockAccountRepository(ctrl),
		txRepo:      mocks.NewMockTransactionRepository(ctrl),
		ledgerRepo:  mocks.NewMockLedgerRepository(ctrl),
		idempRepo:   mocks.NewMockIdempotencyRepository(ctrl),
		idempCache:  mocks.NewMockIdempotencyCache(ctrl),
		rates:       mocks.NewMockRateProvider(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewLedgerService(
		d.userRepo, d.accountRepo, d.txRepo, d.ledgerRepo,
		d.idempRepo, d.idempCache, d.rates, d.transactor, zerolog.Nop(),
	)
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

// expectRunAtomic makes the transactor execute the atomic unit against a
// fake tx, like the real implementation does inside BeginTx/Commit.
func expectRunAtomic(d *ledgerTestDeps, times int) {
	d.transactor.EXPECT().RunAtomic(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, fn func(pgx.Tx) error) error {
			return fn(&mockTx{})
		}).Times(times)
}

func money(t *testing.T, s string) domain.Money {
	t.Helper()
	m, err := domain.ParseMoney(s)
	require.NoError(t, err)
	return m
}

// ==================== Transfer Tests ====================

func TestLedgerService_Transfer_Success(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	senderID := uuid.New()
	recipientID := uuid.New()
	srcAccID := uuid.New()
	dstAccID := uuid.New()
	key := "key-1"

	req := ports.TransferRequest{
		InitiatorUserID: senderID,
		RecipientUserID: recipientID,
		Currency:        domain.CurrencyUSD,
		Amount:          "25.50",
		IdempotencyKey:  &key,
	}

	cacheKey := domain.BuildIdempotencyCacheKey(senderID, key)
	d.idempCache.EXPECT().Get(ctx, cacheKey).Return(nil, nil)
	d.idempRepo.EXPECT().Create(ctx, gomock.Any()).Return(true, nil)

	expectRunAtomic(d, 1)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), senderID, domain.CurrencyUSD).Return(&domain.Account{
		ID: srcAccID, UserID: senderID, Currency: domain.CurrencyUSD, Balance: money(t, "100.00"),
	}, nil)
	d.userRepo.EXPECT().GetByIDTx(ctx, gomock.Any(), recipientID).Return(&domain.User{ID: recipientID}, nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), recipientID, domain.CurrencyUSD).Return(&domain.Account{
		ID: dstAccID, UserID: recipientID, Currency: domain.CurrencyUSD, Balance: money(t, "10.00"),
	}, nil)
	d.txRepo.EXPECT().Create(ctx, gomock.Any(), gomock.Any()).Return(nil)
	d.ledgerRepo.EXPECT().AppendEntries(ctx, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, entries []domain.LedgerEntry) error {
			require.Len(t, entries, 2)
			assert.Equal(t, srcAccID, entries[0].AccountID)
			assert.Equal(t, dstAccID, entries[1].AccountID)
			assert.True(t, entries[0].Amount.Add(entries[1].Amount).IsZero(), "legs must sum to zero")
			return nil
		})
	d.accountRepo.EXPECT().SetBalance(ctx, gomock.Any(), srcAccID, money(t, "74.50")).Return(nil)
	d.accountRepo.EXPECT().SetBalance(ctx, gomock.Any(), dstAccID, money(t, "35.50")).Return(nil)

	d.idempRepo.EXPECT().Finalize(ctx, gomock.Any(), domain.IdempotencyStatusCompleted, gomock.Any(), gomock.Any()).Return(nil)
	d.idempCache.EXPECT().Set(ctx, cacheKey, gomock.Any(), idempotencyTTL).Return(nil)

	txn, err := d.svc.Transfer(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, domain.TransactionKindTransfer, txn.Kind)
	assert.Equal(t, domain.TransactionStatusCommitted, txn.Status)
	assert.Equal(t, money(t, "25.50"), txn.Amount)
	assert.Equal(t, recipientID.String(), txn.Meta["recipient_user_id"])
}

func TestLedgerService_Transfer_NoKeySkipsIdempotency(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	senderID := uuid.New()
	recipientID := uuid.New()

	req := ports.TransferRequest{
		InitiatorUserID: senderID,
		RecipientUserID: recipientID,
		Currency:        domain.CurrencyEUR,
		Amount:          "5.00",
	}

	expectRunAtomic(d, 1)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), senderID, domain.CurrencyEUR).Return(&domain.Account{
		ID: uuid.New(), UserID: senderID, Currency: domain.CurrencyEUR, Balance: money(t, "20.00"),
	}, nil)
	d.userRepo.EXPECT().GetByIDTx(ctx, gomock.Any(), recipientID).Return(&domain.User{ID: recipientID}, nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), recipientID, domain.CurrencyEUR).Return(&domain.Account{
		ID: uuid.New(), UserID: recipientID, Currency: domain.CurrencyEUR, Balance: money(t, "0.00"),
	}, nil)
	d.txRepo.EXPECT().Create(ctx, gomock.Any(), gomock.Any()).Return(nil)
	d.ledgerRepo.EXPECT().AppendEntries(ctx, gomock.Any(), gomock.Any()).Return(nil)
	d.accountRepo.EXPECT().SetBalance(ctx, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	txn, err := d.svc.Transfer(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, txn)
}

func TestLedgerService_Transfer_InvalidAmount(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	// "0.004" rounds to 0.00, which fails the strict positivity requirement.
	for _, amount := range []string{"", "abc", "0", "-5.00", "0.004", "NaN"} {
		req := ports.TransferRequest{
			InitiatorUserID: uuid.New(),
			RecipientUserID: uuid.New(),
			Currency:        domain.CurrencyUSD,
			Amount:          amount,
		}
		txn, err := d.svc.Transfer(context.Background(), req)
		assert.Nil(t, txn, "amount %q", amount)
		assertAppError(t, err, "LED_001")
	}
}

func TestLedgerService_Transfer_UnsupportedCurrency(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	req := ports.TransferRequest{
		InitiatorUserID: uuid.New(),
		RecipientUserID: uuid.New(),
		Currency:        "GBP",
		Amount:          "10.00",
	}
	txn, err := d.svc.Transfer(context.Background(), req)
	assert.Nil(t, txn)
	assertAppError(t, err, "LED_002")
}

func TestLedgerService_Transfer_SourceAccountNotFound(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	senderID := uuid.New()

	expectRunAtomic(d, 1)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), senderID, domain.CurrencyUSD).Return(nil, nil)

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{
		InitiatorUserID: senderID,
		RecipientUserID: uuid.New(),
		Currency:        domain.CurrencyUSD,
		Amount:          "10.00",
	})
	assert.Nil(t, txn)
	assertAppError(t, err, "LED_003")
}

func TestLedgerService_Transfer_RecipientNotFound(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	senderID := uuid.New()
	recipientID := uuid.New()

	expectRunAtomic(d, 1)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), senderID, domain.CurrencyUSD).Return(&domain.Account{
		ID: uuid.New(), UserID: senderID, Balance: money(t, "100.00"),
	}, nil)
	d.userRepo.EXPECT().GetByIDTx(ctx, gomock.Any(), recipientID).Return(nil, nil)

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{
		InitiatorUserID: senderID,
		RecipientUserID: recipientID,
		Currency:        domain.CurrencyUSD,
		Amount:          "10.00",
	})
	assert.Nil(t, txn)
	assertAppError(t, err, "LED_004")
}

func TestLedgerService_Transfer_RecipientAccountNotFound(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	senderID := uuid.New()
	recipientID := uuid.New()

	expectRunAtomic(d, 1)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), senderID, domain.CurrencyUSD).Return(&domain.Account{
		ID: uuid.New(), UserID: senderID, Balance: money(t, "100.00"),
	}, nil)
	d.userRepo.EXPECT().GetByIDTx(ctx, gomock.Any(), recipientID).Return(&domain.User{ID: recipientID}, nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), recipientID, domain.CurrencyUSD).Return(nil, nil)

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{
		InitiatorUserID: senderID,
		RecipientUserID: recipientID,
		Currency:        domain.CurrencyUSD,
		Amount:          "10.00",
	})
	assert.Nil(t, txn)
	assertAppError(t, err, "LED_005")
}

func TestLedgerService_Transfer_InsufficientFunds(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	senderID := uuid.New()
	recipientID := uuid.New()

	expectRunAtomic(d, 1)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), senderID, domain.CurrencyUSD).Return(&domain.Account{
		ID: uuid.New(), UserID: senderID, Balance: money(t, "9.99"),
	}, nil)
	d.userRepo.EXPECT().GetByIDTx(ctx, gomock.Any(), recipientID).Return(&domain.User{ID: recipientID}, nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), recipientID, domain.CurrencyUSD).Return(&domain.Account{
		ID: uuid.New(), UserID: recipientID, Balance: money(t, "0.00"),
	}, nil)

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{
		InitiatorUserID: senderID,
		RecipientUserID: recipientID,
		Currency:        domain.CurrencyUSD,
		Amount:          "10.00",
	})
	assert.Nil(t, txn)
	assertAppError(t, err, "LED_007")
}

// Exactly-equal balance must succeed: the check is strictly-less-than.
func TestLedgerService_Transfer_ExactBalance(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	senderID := uuid.New()
	recipientID := uuid.New()
	srcAccID := uuid.New()
	dstAccID := uuid.New()

	expectRunAtomic(d, 1)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), senderID, domain.CurrencyUSD).Return(&domain.Account{
		ID: srcAccID, UserID: senderID, Balance: money(t, "10.00"),
	}, nil)
	d.userRepo.EXPECT().GetByIDTx(ctx, gomock.Any(), recipientID).Return(&domain.User{ID: recipientID}, nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), recipientID, domain.CurrencyUSD).Return(&domain.Account{
		ID: dstAccID, UserID: recipientID, Balance: money(t, "0.00"),
	}, nil)
	d.txRepo.EXPECT().Create(ctx, gomock.Any(), gomock.Any()).Return(nil)
	d.ledgerRepo.EXPECT().AppendEntries(ctx, gomock.Any(), gomock.Any()).Return(nil)
	d.accountRepo.EXPECT().SetBalance(ctx, gomock.Any(), srcAccID, money(t, "0.00")).Return(nil)
	d.accountRepo.EXPECT().SetBalance(ctx, gomock.Any(), dstAccID, money(t, "10.00")).Return(nil)

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{
		InitiatorUserID: senderID,
		RecipientUserID: recipientID,
		Currency:        domain.CurrencyUSD,
		Amount:          "10.00",
	})
	require.NoError(t, err)
	require.NotNil(t, txn)
}

// Self-transfer: both legs land on the same account, so the balance must not
// be written at all. The legs still net to zero in the ledger.
func TestLedgerService_Transfer_SelfTransferSameAccount(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	senderID := uuid.New()
	accID := uuid.New()
	acc := &domain.Account{ID: accID, UserID: senderID, Currency: domain.CurrencyUSD, Balance: money(t, "50.00")}

	expectRunAtomic(d, 1)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), senderID, domain.CurrencyUSD).Return(acc, nil).Times(2)
	d.userRepo.EXPECT().GetByIDTx(ctx, gomock.Any(), senderID).Return(&domain.User{ID: senderID}, nil)
	d.txRepo.EXPECT().Create(ctx, gomock.Any(), gomock.Any()).Return(nil)
	d.ledgerRepo.EXPECT().AppendEntries(ctx, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, entries []domain.LedgerEntry) error {
			require.Len(t, entries, 2)
			assert.True(t, entries[0].Amount.Add(entries[1].Amount).IsZero())
			return nil
		})
	// No SetBalance expectations: writes are skipped.

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{
		InitiatorUserID: senderID,
		RecipientUserID: senderID,
		Currency:        domain.CurrencyUSD,
		Amount:          "10.00",
	})
	require.NoError(t, err)
	require.NotNil(t, txn)
}

// ==================== Idempotency Tests ====================

func TestLedgerService_Transfer_RedisReplayHit(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	senderID := uuid.New()
	key := "key-replay"

	cachedTxn := &domain.Transaction{
		ID:     uuid.New(),
		Kind:   domain.TransactionKindTransfer,
		Status: domain.TransactionStatusCommitted,
		Amount: money(t, "25.50"),
	}
	cachedJSON, _ := json.Marshal(cachedTxn)

	cacheKey := domain.BuildIdempotencyCacheKey(senderID, key)
	d.idempCache.EXPECT().Get(ctx, cacheKey).Return(cachedJSON, nil)

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{
		InitiatorUserID: senderID,
		RecipientUserID: uuid.New(),
		Currency:        domain.CurrencyUSD,
		Amount:          "25.50",
		IdempotencyKey:  &key,
	})
	require.NoError(t, err)
	assert.Equal(t, cachedTxn.ID, txn.ID)
	assert.Equal(t, cachedTxn.Amount, txn.Amount)
}

func TestLedgerService_Transfer_RegisterReplayHit(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	senderID := uuid.New()
	key := "key-durable"

	committedTxn := &domain.Transaction{
		ID:     uuid.New(),
		Kind:   domain.TransactionKindTransfer,
		Status: domain.TransactionStatusCommitted,
		Amount: money(t, "7.00"),
	}
	respJSON, _ := json.Marshal(committedTxn)

	cacheKey := domain.BuildIdempotencyCacheKey(senderID, key)
	d.idempCache.EXPECT().Get(ctx, cacheKey).Return(nil, nil)
	d.idempRepo.EXPECT().Create(ctx, gomock.Any()).Return(false, nil)
	d.idempRepo.EXPECT().Get(ctx, senderID, key).Return(&domain.IdempotencyRecord{
		ID:           uuid.New(),
		Key:          key,
		UserID:       senderID,
		Status:       domain.IdempotencyStatusCompleted,
		ResponseJSON: respJSON,
	}, nil)

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{
		InitiatorUserID: senderID,
		RecipientUserID: uuid.New(),
		Currency:        domain.CurrencyUSD,
		Amount:          "7.00",
		IdempotencyKey:  &key,
	})
	require.NoError(t, err)
	assert.Equal(t, committedTxn.ID, txn.ID)
}

func TestLedgerService_Transfer_DuplicateInFlight(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	senderID := uuid.New()
	key := "key-inflight"

	cacheKey := domain.BuildIdempotencyCacheKey(senderID, key)
	d.idempCache.EXPECT().Get(ctx, cacheKey).Return(nil, nil)
	d.idempRepo.EXPECT().Create(ctx, gomock.Any()).Return(false, nil)
	d.idempRepo.EXPECT().Get(ctx, senderID, key).Return(&domain.IdempotencyRecord{
		ID:     uuid.New(),
		Key:    key,
		UserID: senderID,
		Status: domain.IdempotencyStatusStored,
	}, nil)

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{
		InitiatorUserID: senderID,
		RecipientUserID: uuid.New(),
		Currency:        domain.CurrencyUSD,
		Amount:          "7.00",
		IdempotencyKey:  &key,
	})
	assert.Nil(t, txn)
	assertAppError(t, err, "LED_008")
}

// A failed business rule must not finalize the idempotency record; the key
// stays reserved until recovered.
func TestLedgerService_Transfer_FailureKeepsRecordStored(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	senderID := uuid.New()
	key := "key-failed"

	cacheKey := domain.BuildIdempotencyCacheKey(senderID, key)
	d.idempCache.EXPECT().Get(ctx, cacheKey).Return(nil, nil)
	d.idempRepo.EXPECT().Create(ctx, gomock.Any()).Return(true, nil)

	expectRunAtomic(d, 1)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), senderID, domain.CurrencyUSD).Return(nil, nil)
	// No Finalize expectation: the record must remain `stored`.

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{
		InitiatorUserID: senderID,
		RecipientUserID: uuid.New(),
		Currency:        domain.CurrencyUSD,
		Amount:          "10.00",
		IdempotencyKey:  &key,
	})
	assert.Nil(t, txn)
	assertAppError(t, err, "LED_003")
}

// ==================== Concurrency Mapping Tests ====================

func serializationErr() error {
	return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
}

func TestLedgerService_Transfer_ContentionAfterRetries(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.transactor.EXPECT().RunAtomic(gomock.Any(), gomock.Any()).Return(serializationErr()).Times(maxAtomicAttempts)

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{
		InitiatorUserID: uuid.New(),
		RecipientUserID: uuid.New(),
		Currency:        domain.CurrencyUSD,
		Amount:          "10.00",
	})
	assert.Nil(t, txn)
	assertAppError(t, err, "LED_009")
}

func TestLedgerService_Transfer_RetriesThenSucceeds(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	senderID := uuid.New()
	recipientID := uuid.New()

	first := d.transactor.EXPECT().RunAtomic(gomock.Any(), gomock.Any()).Return(serializationErr())
	d.transactor.EXPECT().RunAtomic(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, fn func(pgx.Tx) error) error {
			return fn(&mockTx{})
		}).After(first)

	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), senderID, domain.CurrencyUSD).Return(&domain.Account{
		ID: uuid.New(), UserID: senderID, Balance: money(t, "100.00"),
	}, nil)
	d.userRepo.EXPECT().GetByIDTx(ctx, gomock.Any(), recipientID).Return(&domain.User{ID: recipientID}, nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), recipientID, domain.CurrencyUSD).Return(&domain.Account{
		ID: uuid.New(), UserID: recipientID, Balance: money(t, "0.00"),
	}, nil)
	d.txRepo.EXPECT().Create(ctx, gomock.Any(), gomock.Any()).Return(nil)
	d.ledgerRepo.EXPECT().AppendEntries(ctx, gomock.Any(), gomock.Any()).Return(nil)
	d.accountRepo.EXPECT().SetBalance(ctx, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{
		InitiatorUserID: senderID,
		RecipientUserID: recipientID,
		Currency:        domain.CurrencyUSD,
		Amount:          "10.00",
	})
	require.NoError(t, err)
	require.NotNil(t, txn)
}

func TestLedgerService_Transfer_Timeout(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.transactor.EXPECT().RunAtomic(gomock.Any(), gomock.Any()).Return(context.DeadlineExceeded)

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{
		InitiatorUserID: uuid.New(),
		RecipientUserID: uuid.New(),
		Currency:        domain.CurrencyUSD,
		Amount:          "10.00",
	})
	assert.Nil(t, txn)
	assertAppError(t, err, "LED_010")
}

// ==================== Exchange Tests ====================

func TestLedgerService_Exchange_USDToEUR(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	usdAccID := uuid.New()
	eurAccID := uuid.New()

	d.rates.EXPECT().USDToEUR().Return(decimal.RequireFromString("0.92"))

	expectRunAtomic(d, 1)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), userID, domain.CurrencyUSD).Return(&domain.Account{
		ID: usdAccID, UserID: userID, Currency: domain.CurrencyUSD, Balance: money(t, "150.00"),
	}, nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), userID, domain.CurrencyEUR).Return(&domain.Account{
		ID: eurAccID, UserID: userID, Currency: domain.CurrencyEUR, Balance: money(t, "1.00"),
	}, nil)
	d.txRepo.EXPECT().Create(ctx, gomock.Any(), gomock.Any()).Return(nil)
	d.ledgerRepo.EXPECT().AppendEntries(ctx, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, entries []domain.LedgerEntry) error {
			require.Len(t, entries, 2)
			assert.Equal(t, usdAccID, entries[0].AccountID)
			assert.Equal(t, domain.CurrencyUSD, entries[0].Currency)
			assert.Equal(t, money(t, "-100.00"), entries[0].Amount)
			assert.Equal(t, eurAccID, entries[1].AccountID)
			assert.Equal(t, domain.CurrencyEUR, entries[1].Currency)
			assert.Equal(t, money(t, "92.00"), entries[1].Amount)
			return nil
		})
	d.accountRepo.EXPECT().SetBalance(ctx, gomock.Any(), usdAccID, money(t, "50.00")).Return(nil)
	d.accountRepo.EXPECT().SetBalance(ctx, gomock.Any(), eurAccID, money(t, "93.00")).Return(nil)

	txn, err := d.svc.Exchange(ctx, ports.ExchangeRequest{
		InitiatorUserID: userID,
		FromCurrency:    domain.CurrencyUSD,
		Amount:          "100.00",
	})
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, domain.TransactionKindExchange, txn.Kind)
	assert.Equal(t, "0.92", txn.Meta["rate"])
	assert.Equal(t, "EUR", txn.Meta["to_currency"])
	assert.Equal(t, "92.00", txn.Meta["converted"])
}

func TestLedgerService_Exchange_EURToUSD(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	eurAccID := uuid.New()
	usdAccID := uuid.New()

	d.rates.EXPECT().USDToEUR().Return(decimal.RequireFromString("0.92"))

	expectRunAtomic(d, 1)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), userID, domain.CurrencyEUR).Return(&domain.Account{
		ID: eurAccID, UserID: userID, Currency: domain.CurrencyEUR, Balance: money(t, "92.00"),
	}, nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), userID, domain.CurrencyUSD).Return(&domain.Account{
		ID: usdAccID, UserID: userID, Currency: domain.CurrencyUSD, Balance: money(t, "0.00"),
	}, nil)
	d.txRepo.EXPECT().Create(ctx, gomock.Any(), gomock.Any()).Return(nil)
	d.ledgerRepo.EXPECT().AppendEntries(ctx, gomock.Any(), gomock.Any()).Return(nil)
	// 92.00 EUR / 0.92 = 100.00 USD
	d.accountRepo.EXPECT().SetBalance(ctx, gomock.Any(), eurAccID, money(t, "0.00")).Return(nil)
	d.accountRepo.EXPECT().SetBalance(ctx, gomock.Any(), usdAccID, money(t, "100.00")).Return(nil)

	txn, err := d.svc.Exchange(ctx, ports.ExchangeRequest{
		InitiatorUserID: userID,
		FromCurrency:    domain.CurrencyEUR,
		Amount:          "92.00",
	})
	require.NoError(t, err)
	assert.Equal(t, "100.00", txn.Meta["converted"])
	assert.Equal(t, "USD", txn.Meta["to_currency"])
}

func TestLedgerService_Exchange_InsufficientFunds(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.rates.EXPECT().USDToEUR().Return(decimal.RequireFromString("0.92"))

	expectRunAtomic(d, 1)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), userID, domain.CurrencyUSD).Return(&domain.Account{
		ID: uuid.New(), UserID: userID, Balance: money(t, "50.00"),
	}, nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), userID, domain.CurrencyEUR).Return(&domain.Account{
		ID: uuid.New(), UserID: userID, Balance: money(t, "0.00"),
	}, nil)

	txn, err := d.svc.Exchange(ctx, ports.ExchangeRequest{
		InitiatorUserID: userID,
		FromCurrency:    domain.CurrencyUSD,
		Amount:          "100.00",
	})
	assert.Nil(t, txn)
	assertAppError(t, err, "LED_007")
}

func TestLedgerService_Exchange_DestinationAccountMissing(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.rates.EXPECT().USDToEUR().Return(decimal.RequireFromString("0.92"))

	expectRunAtomic(d, 1)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), userID, domain.CurrencyUSD).Return(&domain.Account{
		ID: uuid.New(), UserID: userID, Balance: money(t, "50.00"),
	}, nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), userID, domain.CurrencyEUR).Return(nil, nil)

	txn, err := d.svc.Exchange(ctx, ports.ExchangeRequest{
		InitiatorUserID: userID,
		FromCurrency:    domain.CurrencyUSD,
		Amount:          "10.00",
	})
	assert.Nil(t, txn)
	assertAppError(t, err, "LED_006")
}

// Rounding: 10.01 USD * 0.92 = 9.2092 -> 9.21 (half-up at 2dp).
func TestLedgerService_Exchange_RoundsHalfUp(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	usdAccID := uuid.New()
	eurAccID := uuid.New()

	d.rates.EXPECT().USDToEUR().Return(decimal.RequireFromString("0.92"))

	expectRunAtomic(d, 1)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), userID, domain.CurrencyUSD).Return(&domain.Account{
		ID: usdAccID, UserID: userID, Balance: money(t, "10.01"),
	}, nil)
	d.accountRepo.EXPECT().GetForUpdate(ctx, gomock.Any(), userID, domain.CurrencyEUR).Return(&domain.Account{
		ID: eurAccID, UserID: userID, Balance: money(t, "0.00"),
	}, nil)
	d.txRepo.EXPECT().Create(ctx, gomock.Any(), gomock.Any()).Return(nil)
	d.ledgerRepo.EXPECT().AppendEntries(ctx, gomock.Any(), gomock.Any()).Return(nil)
	d.accountRepo.EXPECT().SetBalance(ctx, gomock.Any(), usdAccID, money(t, "0.00")).Return(nil)
	d.accountRepo.EXPECT().SetBalance(ctx, gomock.Any(), eurAccID, money(t, "9.21")).Return(nil)

	txn, err := d.svc.Exchange(ctx, ports.ExchangeRequest{
		InitiatorUserID: userID,
		FromCurrency:    domain.CurrencyUSD,
		Amount:          "10.01",
	})
	require.NoError(t, err)
	assert.Equal(t, "9.21", txn.Meta["converted"])
}

// ==================== Helper ====================

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}
