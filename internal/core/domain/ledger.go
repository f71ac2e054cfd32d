package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEntry is one signed, currency-tagged leg of a transaction envelope.
// Entries are append-only: once written they are never updated or deleted.
//
// Double-entry invariant: a transfer produces exactly two legs in one
// currency summing to zero; an exchange produces two legs in two currencies
// related by the recorded FX rate.
type LedgerEntry struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	AccountID     uuid.UUID `json:"account_id"`
	Currency      Currency  `json:"currency"`
	Amount        Money     `json:"amount"`
	CreatedAt     time.Time `json:"created_at"`
}
