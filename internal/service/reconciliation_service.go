package service

import (
	"context"
	"fmt"

	"banking-ledger/internal/core/ports"
	"banking-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// ReconciliationServiceImpl implements ports.ReconciliationService. It is a
// read-only, non-locking drift detector: for every account it compares the
// stored balance against the exact sum of the account's ledger entries.
// Repair is a separate, audited operation and is not performed here.
type ReconciliationServiceImpl struct {
	accountRepo ports.AccountRepository
	ledgerRepo  ports.LedgerRepository
	log         zerolog.Logger
}

// NewReconciliationService creates a new ReconciliationServiceImpl.
func NewReconciliationService(accountRepo ports.AccountRepository, ledgerRepo ports.LedgerRepository, log zerolog.Logger) *ReconciliationServiceImpl {
	return &ReconciliationServiceImpl{
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		log:         log,
	}
}

// Verify audits every account. Summation happens in the store over exact
// decimals; comparison is at two fractional digits. The report lists every
// mismatch; ok is true only when there are none.
func (s *ReconciliationServiceImpl) Verify(ctx context.Context) (*ports.ReconciliationReport, error) {
	accounts, err := s.accountRepo.ListAll(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list accounts: %w", err))
	}
	sums, err := s.ledgerRepo.SumByAccount(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum ledger entries: %w", err))
	}

	report := &ports.ReconciliationReport{OK: true, Issues: []ports.ReconciliationIssue{}}
	for _, acc := range accounts {
		expected := sums[acc.ID] // zero value when the account has no entries
		if !expected.Equal(acc.Balance) {
			report.Issues = append(report.Issues, ports.ReconciliationIssue{
				AccountID: acc.ID,
				Expected:  expected,
				Actual:    acc.Balance,
			})
		}
	}
	report.OK = len(report.Issues) == 0

	if !report.OK {
		s.log.Warn().Int("issues", len(report.Issues)).Msg("reconciliation detected balance drift")
	} else {
		s.log.Info().Int("accounts", len(accounts)).Msg("reconciliation clean")
	}
	return report, nil
}
