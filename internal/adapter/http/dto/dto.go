package dto

import "encoding/json"

// TransferRequest is the payload for POST /api/v1/transactions/transfer.
// Amount is a json.Number so values reach the engine as written, without a
// float64 round-trip.
type TransferRequest struct {
	RecipientUserID string      `json:"recipient_user_id" binding:"required,uuid"`
	Currency        string      `json:"currency" binding:"required"`
	Amount          json.Number `json:"amount" binding:"required"`
	IdempotencyKey  *string     `json:"idempotency_key,omitempty"`
}

// ExchangeRequest is the payload for POST /api/v1/transactions/exchange.
type ExchangeRequest struct {
	FromCurrency   string      `json:"from_currency" binding:"required"`
	Amount         json.Number `json:"amount" binding:"required"`
	IdempotencyKey *string     `json:"idempotency_key,omitempty"`
}

// TransactionQuery filters GET /api/v1/transactions.
type TransactionQuery struct {
	Kind  *string `form:"kind"`
	Page  int     `form:"page,default=1"`
	Limit int     `form:"limit,default=10"`
}

// TransactionResponse is the wire form of one transaction envelope. Amount is
// rendered as a fixed 2dp string so clients never see float artifacts.
type TransactionResponse struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Status    string         `json:"status"`
	Currency  string         `json:"currency"`
	Amount    string         `json:"amount"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// AccountResponse is the wire form of one account.
type AccountResponse struct {
	ID       string `json:"id"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
}

// TransactionListResponse is one page of transaction history.
type TransactionListResponse struct {
	Items []TransactionResponse `json:"items"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}

// RatesResponse reports the FX rates currently applied to exchanges.
type RatesResponse struct {
	USDEUR string `json:"usd_eur"`
}
