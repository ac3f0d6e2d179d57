package api

import (
	"context"

	"payment-webhooks/internal/database"
	"payment-webhooks/internal/metrics"
	"payment-webhooks/internal/middleware"
	"payment-webhooks/internal/models"
	"payment-webhooks/internal/services"

	"github.com/gin-gonic/gin"
)

type transactionReader interface {
	FindByProviderID(ctx context.Context, provider models.Provider, providerTransactionID string) (*models.Transaction, error)
	List(ctx context.Context, f database.TransactionFilter) ([]models.Transaction, error)
}

type orderStore interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uint) (*models.Order, error)
}

// Handlers holds everything the routes need. A nil provider service leaves its endpoint unmounted.
type Handlers struct {
	Payme          *services.PaymeService
	Click          *services.ClickService
	Transactions   transactionReader
	Orders         orderStore
	AdminAPIKey    string
	MetricsEnabled bool
}

// SetupRoutes sets up all routes
func SetupRoutes(r *gin.Engine, h *Handlers) {
	r.Use(middleware.RequestID())
	if h.MetricsEnabled {
		r.Use(middleware.HTTPMetrics())
	}

	// API route group
	api := r.Group("/api")
	{
		// Provider callbacks (authenticated by the protocol itself, always HTTP 200)
		if h.Payme != nil {
			api.POST("/payme/webhook", h.PaymeWebhook)
		}
		if h.Click != nil {
			click := api.Group("/click")
			{
				click.POST("/prepare", h.ClickWebhook)
				click.POST("/complete", h.ClickWebhook)
				click.POST("/webhook", h.ClickWebhook)
			}
		}

		// Operator routes
		admin := api.Group("/admin")
		admin.Use(middleware.AdminAuthMiddleware(h.AdminAPIKey))
		{
			admin.POST("/orders", h.CreateOrder)
			admin.GET("/orders/:id", h.GetOrder)
			admin.GET("/transactions", h.ListTransactions)
			admin.GET("/transactions/:provider/:id", h.GetTransaction)
		}
	}

	if h.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "payment-webhooks",
		})
	})
}
