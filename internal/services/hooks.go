package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"payment-webhooks/internal/models"
	"payment-webhooks/pkg/logging"
)

// Delivery budgets of the built-in hooks. Hooks run while the transaction key
// lock is held, so their sum must stay below the lock TTL.
const (
	notifyBudget  = 3 * time.Second
	emailBudget   = 2 * time.Second
	publishBudget = 2 * time.Second

	// HookDeliveryBudget is the longest the built-in hooks can delay one callback
	HookDeliveryBudget = notifyBudget + emailBudget + publishBudget
)

// HookKind names a lifecycle point
type HookKind string

const (
	HookBeforeCheckPerform HookKind = "before_check_perform"
	HookTransactionExists  HookKind = "transaction_exists"
	HookTransactionCreated HookKind = "transaction_created"
	HookPaymentSucceeded   HookKind = "payment_succeeded"
	HookTransactionChecked HookKind = "transaction_checked"
	HookPaymentCancelled   HookKind = "payment_cancelled"
	HookStatementProduced  HookKind = "statement_produced"
)

// HookEvent carries what a hook may observe. Fields not relevant to the point are nil.
type HookEvent struct {
	Provider    models.Provider
	Method      string
	Params      json.RawMessage
	Transaction *models.Transaction
	Account     Account
	Statement   []models.StatementEntry
}

// Hooks are invoked synchronously after the store mutation commits.
// They observe the lifecycle and cannot change the callback outcome.
type Hooks interface {
	BeforeCheckPerform(ctx context.Context, e HookEvent)
	TransactionExists(ctx context.Context, e HookEvent)
	TransactionCreated(ctx context.Context, e HookEvent)
	PaymentSucceeded(ctx context.Context, e HookEvent)
	TransactionChecked(ctx context.Context, e HookEvent)
	PaymentCancelled(ctx context.Context, e HookEvent)
	StatementProduced(ctx context.Context, e HookEvent)
}

// NopHooks implements every hook as a no-op; embed it to override a subset
type NopHooks struct{}

func (NopHooks) BeforeCheckPerform(context.Context, HookEvent) {}
func (NopHooks) TransactionExists(context.Context, HookEvent)  {}
func (NopHooks) TransactionCreated(context.Context, HookEvent) {}
func (NopHooks) PaymentSucceeded(context.Context, HookEvent)   {}
func (NopHooks) TransactionChecked(context.Context, HookEvent) {}
func (NopHooks) PaymentCancelled(context.Context, HookEvent)   {}
func (NopHooks) StatementProduced(context.Context, HookEvent)  {}

// EventFunc receives every hook point with its kind
type EventFunc func(ctx context.Context, kind HookKind, e HookEvent)

// EventHooks routes all hook points into a single function
type EventHooks struct {
	fn EventFunc
}

// NewEventHooks wraps fn as Hooks
func NewEventHooks(fn EventFunc) *EventHooks {
	return &EventHooks{fn: fn}
}

func (h *EventHooks) BeforeCheckPerform(ctx context.Context, e HookEvent) {
	h.fn(ctx, HookBeforeCheckPerform, e)
}

func (h *EventHooks) TransactionExists(ctx context.Context, e HookEvent) {
	h.fn(ctx, HookTransactionExists, e)
}

func (h *EventHooks) TransactionCreated(ctx context.Context, e HookEvent) {
	h.fn(ctx, HookTransactionCreated, e)
}

func (h *EventHooks) PaymentSucceeded(ctx context.Context, e HookEvent) {
	h.fn(ctx, HookPaymentSucceeded, e)
}

func (h *EventHooks) TransactionChecked(ctx context.Context, e HookEvent) {
	h.fn(ctx, HookTransactionChecked, e)
}

func (h *EventHooks) PaymentCancelled(ctx context.Context, e HookEvent) {
	h.fn(ctx, HookPaymentCancelled, e)
}

func (h *EventHooks) StatementProduced(ctx context.Context, e HookEvent) {
	h.fn(ctx, HookStatementProduced, e)
}

// HookChain fans every hook out to its members in order.
// A panicking member is logged and skipped.
type HookChain []Hooks

func (c HookChain) each(kind HookKind, call func(Hooks)) {
	for _, h := range c {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logging.Errorf("Hook %s panicked: %v", kind, r)
				}
			}()
			call(h)
		}()
	}
}

func (c HookChain) BeforeCheckPerform(ctx context.Context, e HookEvent) {
	c.each(HookBeforeCheckPerform, func(h Hooks) { h.BeforeCheckPerform(ctx, e) })
}

func (c HookChain) TransactionExists(ctx context.Context, e HookEvent) {
	c.each(HookTransactionExists, func(h Hooks) { h.TransactionExists(ctx, e) })
}

func (c HookChain) TransactionCreated(ctx context.Context, e HookEvent) {
	c.each(HookTransactionCreated, func(h Hooks) { h.TransactionCreated(ctx, e) })
}

func (c HookChain) PaymentSucceeded(ctx context.Context, e HookEvent) {
	c.each(HookPaymentSucceeded, func(h Hooks) { h.PaymentSucceeded(ctx, e) })
}

func (c HookChain) TransactionChecked(ctx context.Context, e HookEvent) {
	c.each(HookTransactionChecked, func(h Hooks) { h.TransactionChecked(ctx, e) })
}

func (c HookChain) PaymentCancelled(ctx context.Context, e HookEvent) {
	c.each(HookPaymentCancelled, func(h Hooks) { h.PaymentCancelled(ctx, e) })
}

func (c HookChain) StatementProduced(ctx context.Context, e HookEvent) {
	c.each(HookStatementProduced, func(h Hooks) { h.StatementProduced(ctx, e) })
}

type orderStatusUpdater interface {
	UpdateStatus(ctx context.Context, id uint, status string) error
}

// OrderStatusHooks marks orders paid or cancelled as their transactions settle
type OrderStatusHooks struct {
	NopHooks
	orders orderStatusUpdater
}

// NewOrderStatusHooks creates hooks that update order status
func NewOrderStatusHooks(orders orderStatusUpdater) *OrderStatusHooks {
	return &OrderStatusHooks{orders: orders}
}

func (h *OrderStatusHooks) PaymentSucceeded(ctx context.Context, e HookEvent) {
	h.update(ctx, e, models.OrderStatusPaid)
}

func (h *OrderStatusHooks) PaymentCancelled(ctx context.Context, e HookEvent) {
	h.update(ctx, e, models.OrderStatusCancelled)
}

func (h *OrderStatusHooks) update(ctx context.Context, e HookEvent, status string) {
	if e.Transaction == nil {
		return
	}
	id, err := strconv.ParseUint(e.Transaction.AccountReference, 10, 64)
	if err != nil {
		logging.Warnf("Order reference %q is not numeric, status not updated", e.Transaction.AccountReference)
		return
	}
	if err := h.orders.UpdateStatus(ctx, uint(id), status); err != nil {
		logging.Errorf("Failed to mark order %d %s: %v", id, status, err)
		return
	}
	logging.Infof("Order %d marked %s - provider: %s, transaction: %s", id, status, e.Provider, e.Transaction.ProviderTransactionID)
}
