package domain

import (
	"time"

	"github.com/google/uuid"
)

// Currency identifies one of the supported settlement currencies.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// Supported reports whether the currency belongs to the closed supported set.
func (c Currency) Supported() bool {
	return c == CurrencyUSD || c == CurrencyEUR
}

// Complement returns the other supported currency. With exactly two
// currencies in the system the exchange destination is deterministic.
func (c Currency) Complement() Currency {
	if c == CurrencyUSD {
		return CurrencyEUR
	}
	return CurrencyUSD
}

// Account holds one user's balance in one currency. The (UserID, Currency)
// pair is unique; the balance only changes through a committed ledger-affecting
// transaction.
type Account struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Currency  Currency  `json:"currency"`
	Balance   Money     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
