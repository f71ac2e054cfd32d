package handler

import (
	"banking-ledger/internal/core/ports"
	"banking-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// ReconciliationHandler exposes the ledger audit.
type ReconciliationHandler struct {
	reconSvc ports.ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(reconSvc ports.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconSvc: reconSvc}
}

// Verify handles GET /api/v1/reconciliation/verify.
func (h *ReconciliationHandler) Verify(c *gin.Context) {
	report, err := h.reconSvc.Verify(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}
