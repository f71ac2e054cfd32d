package handler

import (
	"banking-ledger/internal/adapter/http/dto"
	"banking-ledger/internal/core/ports"
	"banking-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// MetaHandler serves service metadata.
type MetaHandler struct {
	rates ports.RateProvider
}

// NewMetaHandler creates a new MetaHandler.
func NewMetaHandler(rates ports.RateProvider) *MetaHandler {
	return &MetaHandler{rates: rates}
}

// Rates handles GET /api/v1/meta/rates.
func (h *MetaHandler) Rates(c *gin.Context) {
	response.OK(c, dto.RatesResponse{USDEUR: h.rates.USDToEUR().String()})
}
