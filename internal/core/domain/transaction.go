package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind represents the kind of money movement.
type TransactionKind string

const (
	TransactionKindTransfer TransactionKind = "transfer"
	TransactionKindExchange TransactionKind = "exchange"
)

// Valid reports whether the kind is one of the known kinds.
func (k TransactionKind) Valid() bool {
	return k == TransactionKindTransfer || k == TransactionKindExchange
}

// TransactionStatus represents the terminal state of a transaction envelope.
type TransactionStatus string

const (
	TransactionStatusCommitted TransactionStatus = "committed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Metadata is the free-form envelope metadata persisted as JSON.
type Metadata map[string]any

// TransferMetadata records who received a transfer.
func TransferMetadata(recipientUserID uuid.UUID) Metadata {
	return Metadata{"recipient_user_id": recipientUserID.String()}
}

// ExchangeMetadata records the point-in-time FX rate and the converted
// amount. The rate is an external input and must be durable with the
// transaction; it is never re-derived later.
func ExchangeMetadata(rate decimal.Decimal, toCurrency Currency, converted Money) Metadata {
	return Metadata{
		"rate":        rate.String(),
		"to_currency": string(toCurrency),
		"converted":   converted.String(),
	}
}

// Transaction is the durable envelope of one business operation, distinct
// from its constituent ledger legs. Created exactly once per successful
// operation and never mutated afterwards.
type Transaction struct {
	ID              uuid.UUID         `json:"id"`
	Kind            TransactionKind   `json:"kind"`
	Status          TransactionStatus `json:"status"`
	InitiatorUserID uuid.UUID         `json:"initiator_user_id"`
	BaseCurrency    Currency          `json:"base_currency"`
	Amount          Money             `json:"amount"`
	Meta            Metadata          `json:"meta,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}
