package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Provider identifies the payment system that sends callbacks
type Provider string

const (
	ProviderPayme Provider = "payme"
	ProviderClick Provider = "click"
)

// TransactionState is the reconciliation state of a provider transaction
type TransactionState int

const (
	StateCreated             TransactionState = 0
	StateInitiating          TransactionState = 1
	StatePaid                TransactionState = 2
	StateCancelled           TransactionState = -2
	StateCancelledDuringInit TransactionState = -1
)

// IsTerminal reports whether no further lifecycle progress is expected
func (s TransactionState) IsTerminal() bool {
	switch s {
	case StatePaid, StateCancelled, StateCancelledDuringInit:
		return true
	}
	return false
}

// IsCancelled reports whether the state is one of the cancelled states
func (s TransactionState) IsCancelled() bool {
	return s == StateCancelled || s == StateCancelledDuringInit
}

func (s TransactionState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitiating:
		return "initiating"
	case StatePaid:
		return "paid"
	case StateCancelled:
		return "cancelled"
	case StateCancelledDuringInit:
		return "cancelled_during_init"
	}
	return "unknown"
}

// PendingStates are the transient states
var PendingStates = []TransactionState{StateCreated, StateInitiating}

// Metadata is the protocol-specific data kept alongside a transaction.
// RawParams holds the callback payload verbatim so unknown provider fields survive.
type Metadata struct {
	AccountField string          `json:"account_field,omitempty"`
	AccountValue string          `json:"account_value,omitempty"`
	ProviderTime int64           `json:"create_time,omitempty"` // provider-side creation time, ms
	CancelReason *int            `json:"cancel_reason,omitempty"`
	RawParams    json.RawMessage `json:"raw_params,omitempty"`
}

// Transaction 支付交易表
// One row per (provider, provider_transaction_id), never deleted.
type Transaction struct {
	ID                    uint                         `json:"id" gorm:"primaryKey"`
	Provider              Provider                     `json:"provider" gorm:"size:16;not null;uniqueIndex:idx_provider_transaction,priority:1"`
	ProviderTransactionID string                       `json:"provider_transaction_id" gorm:"size:255;not null;uniqueIndex:idx_provider_transaction,priority:2"`
	AccountReference      string                       `json:"account_reference" gorm:"size:255;not null;index"`
	Amount                decimal.Decimal              `json:"amount" gorm:"type:numeric(15,2);not null"`
	State                 TransactionState             `json:"state" gorm:"not null;default:0;index"`
	OneTime               bool                         `json:"one_time" gorm:"not null;default:false"` // at most one pending per account
	Extra                 datatypes.JSONType[Metadata] `json:"extra" gorm:"column:extra"`
	CreatedAt             time.Time                    `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt             time.Time                    `json:"updated_at" gorm:"autoUpdateTime;index"`
	PerformedAt           *time.Time                   `json:"performed_at" gorm:"index"`
	CancelledAt           *time.Time                   `json:"cancelled_at" gorm:"index"`
}

// TableName 指定表名
func (Transaction) TableName() string {
	return "payment_transactions"
}

// Metadata returns the decoded extra column
func (t *Transaction) Metadata() Metadata {
	return t.Extra.Data()
}

// SetMetadata replaces the extra column
func (t *Transaction) SetMetadata(m Metadata) {
	t.Extra = datatypes.NewJSONType(m)
}

// MarkPaid moves the transaction to PAID. It reports false when already paid
// or when the transaction is cancelled, cancelled transactions are never resurrected.
func (t *Transaction) MarkPaid(now time.Time) bool {
	if t.State == StatePaid || t.State.IsCancelled() {
		return false
	}
	t.State = StatePaid
	t.PerformedAt = &now
	return true
}

// MarkCancelled moves the transaction to CANCELLED from any non-cancelled state,
// including PAID. reason may be nil.
func (t *Transaction) MarkCancelled(now time.Time, reason *int) bool {
	if t.State.IsCancelled() {
		return false
	}
	t.State = StateCancelled
	t.CancelledAt = &now
	if reason != nil {
		m := t.Metadata()
		r := *reason
		m.CancelReason = &r
		t.SetMetadata(m)
	}
	return true
}

// UnixMilli converts an optional timestamp to provider milliseconds, zero when unset
func UnixMilli(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}
