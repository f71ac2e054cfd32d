package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"banking-ledger/internal/core/domain"
	"banking-ledger/internal/core/ports"
	"banking-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

const (
	idempotencyTTL = 24 * time.Hour

	// maxAtomicAttempts bounds internal retries of serialization conflicts
	// before surfacing Contention to the caller.
	maxAtomicAttempts = 3
)

// LedgerServiceImpl implements ports.LedgerService: the double-entry
// transaction engine for transfers and exchanges.
type LedgerServiceImpl struct {
	userRepo    ports.UserRepository
	accountRepo ports.AccountRepository
	txRepo      ports.TransactionRepository
	ledgerRepo  ports.LedgerRepository
	idempRepo   ports.IdempotencyRepository
	idempCache  ports.IdempotencyCache
	rates       ports.RateProvider
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	userRepo ports.UserRepository,
	accountRepo ports.AccountRepository,
	txRepo ports.TransactionRepository,
	ledgerRepo ports.LedgerRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	rates ports.RateProvider,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		userRepo:    userRepo,
		accountRepo: accountRepo,
		txRepo:      txRepo,
		ledgerRepo:  ledgerRepo,
		idempRepo:   idempRepo,
		idempCache:  idempCache,
		rates:       rates,
		transactor:  transactor,
		log:         log,
	}
}

// Transfer moves an amount between two users' accounts in one currency.
// Produces exactly two ledger legs summing to zero.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*domain.Transaction, error) {
	amount, err := domain.ParsePositiveMoney(req.Amount)
	if err != nil {
		return nil, apperror.ErrInvalidAmount()
	}
	if !req.Currency.Supported() {
		return nil, apperror.ErrUnsupportedCurrency(string(req.Currency))
	}

	rec, cached, err := s.beginOrReplay(ctx, req.InitiatorUserID, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	var txn *domain.Transaction
	err = s.runAtomicWithRetry(ctx, func(tx pgx.Tx) error {
		// Fixed lock order: source before destination.
		src, err := s.accountRepo.GetForUpdate(ctx, tx, req.InitiatorUserID, req.Currency)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock source account: %w", err))
		}
		if src == nil {
			return apperror.ErrSourceAccountNotFound()
		}

		recipient, err := s.userRepo.GetByIDTx(ctx, tx, req.RecipientUserID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("resolve recipient: %w", err))
		}
		if recipient == nil {
			return apperror.ErrRecipientNotFound()
		}

		dst, err := s.accountRepo.GetForUpdate(ctx, tx, recipient.ID, req.Currency)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock recipient account: %w", err))
		}
		if dst == nil {
			return apperror.ErrRecipientAccountNotFound()
		}

		if src.Balance.LessThan(amount) {
			return apperror.ErrInsufficientFunds()
		}

		now := time.Now().UTC()
		txn = &domain.Transaction{
			ID:              uuid.New(),
			Kind:            domain.TransactionKindTransfer,
			Status:          domain.TransactionStatusCommitted,
			InitiatorUserID: req.InitiatorUserID,
			BaseCurrency:    req.Currency,
			Amount:          amount,
			Meta:            domain.TransferMetadata(recipient.ID),
			CreatedAt:       now,
		}
		if err := s.txRepo.Create(ctx, tx, txn); err != nil {
			return apperror.InternalError(fmt.Errorf("create envelope: %w", err))
		}

		entries := []domain.LedgerEntry{
			{ID: uuid.New(), TransactionID: txn.ID, AccountID: src.ID, Currency: req.Currency, Amount: amount.Neg(), CreatedAt: now},
			{ID: uuid.New(), TransactionID: txn.ID, AccountID: dst.ID, Currency: req.Currency, Amount: amount, CreatedAt: now},
		}
		if err := s.ledgerRepo.AppendEntries(ctx, tx, entries); err != nil {
			return apperror.InternalError(fmt.Errorf("append ledger legs: %w", err))
		}

		if src.ID == dst.ID {
			// Self-transfer in one currency: the legs net to zero, so the
			// balance is unchanged and must be written once, not twice.
			return nil
		}
		if err := s.accountRepo.SetBalance(ctx, tx, src.ID, src.Balance.Sub(amount)); err != nil {
			return apperror.InternalError(fmt.Errorf("debit source: %w", err))
		}
		if err := s.accountRepo.SetBalance(ctx, tx, dst.ID, dst.Balance.Add(amount)); err != nil {
			return apperror.InternalError(fmt.Errorf("credit destination: %w", err))
		}
		return nil
	})
	if err != nil {
		// The unit rolled back whole; a created idempotency record stays
		// `stored`, so retries surface DuplicateInFlight instead of
		// double-executing.
		return nil, err
	}

	s.finalize(ctx, rec, txn)

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("initiator_user_id", req.InitiatorUserID.String()).
		Str("recipient_user_id", req.RecipientUserID.String()).
		Str("currency", string(req.Currency)).
		Str("amount", amount.String()).
		Msg("transfer committed")

	return txn, nil
}

// Exchange converts an amount between the owner's own accounts in the two
// supported currencies at the configured rate. The rate and converted amount
// are captured into the envelope metadata for auditability.
func (s *LedgerServiceImpl) Exchange(ctx context.Context, req ports.ExchangeRequest) (*domain.Transaction, error) {
	amount, err := domain.ParsePositiveMoney(req.Amount)
	if err != nil {
		return nil, apperror.ErrInvalidAmount()
	}
	if !req.FromCurrency.Supported() {
		return nil, apperror.ErrUnsupportedCurrency(string(req.FromCurrency))
	}

	rec, cached, err := s.beginOrReplay(ctx, req.InitiatorUserID, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	rate := s.rates.USDToEUR()
	toCurrency := req.FromCurrency.Complement()
	var converted domain.Money
	if req.FromCurrency == domain.CurrencyUSD {
		converted = amount.MulRate(rate)
	} else {
		converted = amount.DivRate(rate)
	}

	var txn *domain.Transaction
	err = s.runAtomicWithRetry(ctx, func(tx pgx.Tx) error {
		// Fixed lock order: from-currency account before to-currency account.
		from, err := s.accountRepo.GetForUpdate(ctx, tx, req.InitiatorUserID, req.FromCurrency)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock source account: %w", err))
		}
		if from == nil {
			return apperror.ErrSourceAccountNotFound()
		}
		to, err := s.accountRepo.GetForUpdate(ctx, tx, req.InitiatorUserID, toCurrency)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock destination account: %w", err))
		}
		if to == nil {
			return apperror.ErrNotFound("destination account")
		}

		if from.Balance.LessThan(amount) {
			return apperror.ErrInsufficientFunds()
		}

		now := time.Now().UTC()
		txn = &domain.Transaction{
			ID:              uuid.New(),
			Kind:            domain.TransactionKindExchange,
			Status:          domain.TransactionStatusCommitted,
			InitiatorUserID: req.InitiatorUserID,
			BaseCurrency:    req.FromCurrency,
			Amount:          amount,
			Meta:            domain.ExchangeMetadata(rate, toCurrency, converted),
			CreatedAt:       now,
		}
		if err := s.txRepo.Create(ctx, tx, txn); err != nil {
			return apperror.InternalError(fmt.Errorf("create envelope: %w", err))
		}

		entries := []domain.LedgerEntry{
			{ID: uuid.New(), TransactionID: txn.ID, AccountID: from.ID, Currency: req.FromCurrency, Amount: amount.Neg(), CreatedAt: now},
			{ID: uuid.New(), TransactionID: txn.ID, AccountID: to.ID, Currency: toCurrency, Amount: converted, CreatedAt: now},
		}
		if err := s.ledgerRepo.AppendEntries(ctx, tx, entries); err != nil {
			return apperror.InternalError(fmt.Errorf("append ledger legs: %w", err))
		}

		if err := s.accountRepo.SetBalance(ctx, tx, from.ID, from.Balance.Sub(amount)); err != nil {
			return apperror.InternalError(fmt.Errorf("debit source: %w", err))
		}
		if err := s.accountRepo.SetBalance(ctx, tx, to.ID, to.Balance.Add(converted)); err != nil {
			return apperror.InternalError(fmt.Errorf("credit destination: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.finalize(ctx, rec, txn)

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("initiator_user_id", req.InitiatorUserID.String()).
		Str("from_currency", string(req.FromCurrency)).
		Str("rate", rate.String()).
		Str("amount", amount.String()).
		Str("converted", converted.String()).
		Msg("exchange committed")

	return txn, nil
}

// beginOrReplay consults the idempotency register before executing business
// logic. Outcomes: (rec, nil, nil) fresh — this caller owns the key;
// (nil, txn, nil) replay — a finalized result is returned without
// re-executing; (nil, nil, err) the duplicate is rejected.
func (s *LedgerServiceImpl) beginOrReplay(ctx context.Context, userID uuid.UUID, key *string) (*domain.IdempotencyRecord, *domain.Transaction, error) {
	if key == nil || *key == "" {
		// No key: no dedup, the operation always executes.
		return nil, nil, nil
	}

	cacheKey := domain.BuildIdempotencyCacheKey(userID, *key)

	// Layer 1: Redis replay cache (best-effort).
	cached, err := s.idempCache.Get(ctx, cacheKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", cacheKey).Msg("redis idempotency check failed, falling through to register")
	}
	if cached != nil {
		txn, err := unmarshalCachedTransaction(cached)
		if err != nil {
			return nil, nil, err
		}
		return nil, txn, nil
	}

	// Layer 2: durable register. The unique (key, user_id) constraint makes
	// concurrent duplicates race safely: exactly one insert wins.
	rec := &domain.IdempotencyRecord{
		ID:        uuid.New(),
		Key:       *key,
		UserID:    userID,
		Status:    domain.IdempotencyStatusStored,
		CreatedAt: time.Now().UTC(),
	}
	inserted, err := s.idempRepo.Create(ctx, rec)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("create idempotency record: %w", err))
	}
	if inserted {
		return rec, nil, nil
	}

	existing, err := s.idempRepo.Get(ctx, userID, *key)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("read idempotency record: %w", err))
	}
	if existing != nil && existing.Replayable() {
		txn, err := unmarshalCachedTransaction(existing.ResponseJSON)
		if err != nil {
			return nil, nil, err
		}
		return nil, txn, nil
	}
	// Not finalized: a concurrent attempt is in flight or crashed mid-flight.
	return nil, nil, apperror.ErrDuplicateInFlight()
}

// finalize transitions the idempotency record to completed and populates the
// replay layers. The business transaction has already committed, so failures
// here are logged, not surfaced: the record stays `stored` and retries see
// DuplicateInFlight until out-of-band recovery.
func (s *LedgerServiceImpl) finalize(ctx context.Context, rec *domain.IdempotencyRecord, txn *domain.Transaction) {
	if rec == nil {
		return
	}
	respJSON, err := json.Marshal(txn)
	if err != nil {
		s.log.Error().Err(err).Str("tx_id", txn.ID.String()).Msg("failed to marshal replay payload")
		return
	}
	if err := s.idempRepo.Finalize(ctx, rec.ID, domain.IdempotencyStatusCompleted, txn.ID, respJSON); err != nil {
		s.log.Error().Err(err).Str("tx_id", txn.ID.String()).Msg("failed to finalize idempotency record")
		return
	}
	cacheKey := domain.BuildIdempotencyCacheKey(rec.UserID, rec.Key)
	if err := s.idempCache.Set(ctx, cacheKey, respJSON, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", cacheKey).Msg("failed to cache idempotent response in redis")
	}
}

// runAtomicWithRetry executes the atomic unit, re-running it on serialization
// conflicts up to maxAtomicAttempts before surfacing Contention. An aborted
// unit made no visible writes, so re-running it is safe.
func (s *LedgerServiceImpl) runAtomicWithRetry(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxAtomicAttempts; attempt++ {
		err = s.transactor.RunAtomic(ctx, fn)
		if err == nil || !isSerializationFailure(err) {
			break
		}
		s.log.Debug().Int("attempt", attempt).Msg("serialization conflict, retrying atomic unit")
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperror.ErrTimeout(err)
	}
	if isSerializationFailure(err) {
		return apperror.ErrContention(err)
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.InternalError(err)
}

// isSerializationFailure reports whether the store aborted the unit due to a
// serializable-isolation conflict (SQLSTATE 40001) or deadlock (40P01).
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// unmarshalCachedTransaction deserializes a cached replay payload.
func unmarshalCachedTransaction(data []byte) (*domain.Transaction, error) {
	txn := &domain.Transaction{}
	if err := json.Unmarshal(data, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached transaction: %w", err))
	}
	return txn, nil
}
