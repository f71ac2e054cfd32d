package handler

import (
	"banking-ledger/internal/adapter/http/middleware"
	"banking-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc      ports.LedgerService
	AccountSvc     ports.AccountService
	ReconSvc       ports.ReconciliationService
	Rates          ports.RateProvider
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// API v1 routes. The user context middleware is the authentication seam:
	// everything below expects an upstream gateway to have resolved the caller.
	v1 := r.Group("/api/v1", middleware.UserContext())

	txHandler := NewTransactionHandler(deps.LedgerSvc, deps.AccountSvc)
	transactions := v1.Group("/transactions")
	{
		transactions.POST("/transfer", txHandler.Transfer)
		transactions.POST("/exchange", txHandler.Exchange)
		transactions.GET("", txHandler.List)
	}

	accountHandler := NewAccountHandler(deps.AccountSvc)
	accounts := v1.Group("/accounts")
	{
		accounts.GET("", accountHandler.List)
		accounts.GET("/:id/balance", accountHandler.GetBalance)
	}

	reconHandler := NewReconciliationHandler(deps.ReconSvc)
	v1.GET("/reconciliation/verify", reconHandler.Verify)

	metaHandler := NewMetaHandler(deps.Rates)
	v1.GET("/meta/rates", metaHandler.Rates)

	return r
}
