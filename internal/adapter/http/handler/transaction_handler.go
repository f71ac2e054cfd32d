package handler

import (
	"time"

	"banking-ledger/internal/adapter/http/dto"
	"banking-ledger/internal/adapter/http/middleware"
	"banking-ledger/internal/core/domain"
	"banking-ledger/internal/core/ports"
	"banking-ledger/pkg/apperror"
	"banking-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TransactionHandler handles money movement and history endpoints.
type TransactionHandler struct {
	ledgerSvc  ports.LedgerService
	accountSvc ports.AccountService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(ledgerSvc ports.LedgerService, accountSvc ports.AccountService) *TransactionHandler {
	return &TransactionHandler{ledgerSvc: ledgerSvc, accountSvc: accountSvc}
}

// Transfer handles POST /api/v1/transactions/transfer.
func (h *TransactionHandler) Transfer(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.Validation("missing user context"))
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	recipientID, err := uuid.Parse(req.RecipientUserID)
	if err != nil {
		response.Error(c, apperror.Validation("recipient_user_id must be a UUID"))
		return
	}

	txn, err := h.ledgerSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		InitiatorUserID: userID,
		RecipientUserID: recipientID,
		Currency:        domain.Currency(req.Currency),
		Amount:          req.Amount.String(),
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(txn))
}

// Exchange handles POST /api/v1/transactions/exchange.
func (h *TransactionHandler) Exchange(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.Validation("missing user context"))
		return
	}

	var req dto.ExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	txn, err := h.ledgerSvc.Exchange(c.Request.Context(), ports.ExchangeRequest{
		InitiatorUserID: userID,
		FromCurrency:    domain.Currency(req.FromCurrency),
		Amount:          req.Amount.String(),
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(txn))
}

// List handles GET /api/v1/transactions.
func (h *TransactionHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.Validation("missing user context"))
		return
	}

	var q dto.TransactionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	var kind *domain.TransactionKind
	if q.Kind != nil && *q.Kind != "" {
		k := domain.TransactionKind(*q.Kind)
		kind = &k
	}

	page, err := h.accountSvc.ListTransactions(c.Request.Context(), userID, kind, q.Page, q.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, toTransactionResponse(&page.Items[i]))
	}
	response.OK(c, dto.TransactionListResponse{
		Items: items,
		Total: page.Total,
		Page:  page.Page,
		Limit: page.Limit,
	})
}

func toTransactionResponse(t *domain.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:        t.ID.String(),
		Kind:      string(t.Kind),
		Status:    string(t.Status),
		Currency:  string(t.BaseCurrency),
		Amount:    t.Amount.String(),
		Meta:      t.Meta,
		CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
