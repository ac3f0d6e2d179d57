package services

import (
	"context"
	"time"

	"payment-webhooks/internal/database"
	"payment-webhooks/internal/models"
)

// TransactionRepository is the Transaction Store the protocol handlers depend on.
// *database.TransactionStore implements it.
type TransactionRepository interface {
	Create(ctx context.Context, t *models.Transaction) (*models.Transaction, bool, error)
	FindByProviderID(ctx context.Context, provider models.Provider, providerTransactionID string) (*models.Transaction, error)
	FindByAccount(ctx context.Context, provider models.Provider, account string, states ...models.TransactionState) ([]models.Transaction, error)
	UpdateState(ctx context.Context, provider models.Provider, providerTransactionID string, mutate func(*models.Transaction) bool) (*models.Transaction, bool, error)
	List(ctx context.Context, f database.TransactionFilter) ([]models.Transaction, error)
}

// CallbackObserver is told the outcome of every handled callback
type CallbackObserver func(provider models.Provider, operation string, code int, elapsed time.Duration)

func lockKey(provider models.Provider, providerTransactionID string) string {
	return string(provider) + ":" + providerTransactionID
}
