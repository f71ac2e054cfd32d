package postgres

import (
	"context"
	"testing"
	"time"

	"banking-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRepo_AppendEntries(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	txID := uuid.New()
	srcAcc := uuid.New()
	dstAcc := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	entries := []domain.LedgerEntry{
		{ID: uuid.New(), TransactionID: txID, AccountID: srcAcc, Currency: domain.CurrencyUSD, Amount: domain.NewMoney(-2550), CreatedAt: now},
		{ID: uuid.New(), TransactionID: txID, AccountID: dstAcc, Currency: domain.CurrencyUSD, Amount: domain.NewMoney(2550), CreatedAt: now},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(entries[0].ID, txID, srcAcc, "USD", "-25.50", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(entries[1].ID, txID, dstAcc, "USD", "25.50", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.AppendEntries(context.Background(), tx, entries)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_SumByAccount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	accA := uuid.New()
	accB := uuid.New()

	mock.ExpectQuery("SELECT account_id, COALESCE").
		WillReturnRows(pgxmock.NewRows([]string{"account_id", "sum"}).
			AddRow(accA, "74.50").
			AddRow(accB, "-74.50"))

	sums, err := repo.SumByAccount(context.Background())
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, int64(7450), sums[accA].Units())
	assert.Equal(t, int64(-7450), sums[accB].Units())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_SumByAccount_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectQuery("SELECT account_id, COALESCE").
		WillReturnRows(pgxmock.NewRows([]string{"account_id", "sum"}))

	sums, err := repo.SumByAccount(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sums)
	assert.NoError(t, mock.ExpectationsWereMet())
}
