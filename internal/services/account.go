package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"payment-webhooks/internal/database"
	"payment-webhooks/internal/models"

	"github.com/shopspring/decimal"
)

// Account is the merchant-side entity a callback pays for
type Account interface {
	// AmountDue is the expected charge in major currency units
	AmountDue() decimal.Decimal
}

// AccountResolver maps a callback's account reference to a merchant account.
// Implementations return ErrAccountNotFound when nothing matches.
type AccountResolver interface {
	Resolve(ctx context.Context, reference string) (Account, error)
}

// AccountResolverFunc adapts a function to AccountResolver
type AccountResolverFunc func(ctx context.Context, reference string) (Account, error)

func (f AccountResolverFunc) Resolve(ctx context.Context, reference string) (Account, error) {
	return f(ctx, reference)
}

// referencer is implemented by accounts that normalize their own reference
type referencer interface {
	Reference() string
}

// accountReference returns the reference stored on transactions for account
func accountReference(account Account, raw string) string {
	if r, ok := account.(referencer); ok {
		return r.Reference()
	}
	return raw
}

type orderFinder interface {
	FindByID(ctx context.Context, id uint) (*models.Order, error)
}

// OrderResolver resolves numeric references against the orders table
type OrderResolver struct {
	orders orderFinder
}

// NewOrderResolver creates a resolver backed by the order repository
func NewOrderResolver(orders orderFinder) *OrderResolver {
	return &OrderResolver{orders: orders}
}

// Resolve looks up the order whose id is the numeric reference
func (r *OrderResolver) Resolve(ctx context.Context, reference string) (Account, error) {
	ref := strings.TrimSpace(reference)
	id, err := strconv.ParseUint(ref, 10, 64)
	if err != nil || id == 0 {
		return nil, newCallbackError(ErrAccountNotFound, "Account %s not found", ref)
	}

	order, err := r.orders.FindByID(ctx, uint(id))
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			return nil, newCallbackError(ErrAccountNotFound, "Account %s not found", ref)
		}
		return nil, err
	}
	return order, nil
}
