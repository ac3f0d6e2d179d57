package models

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// Payme JSON-RPC method names
const (
	PaymeCheckPerformTransaction = "CheckPerformTransaction"
	PaymeCreateTransaction       = "CreateTransaction"
	PaymePerformTransaction      = "PerformTransaction"
	PaymeCheckTransaction        = "CheckTransaction"
	PaymeCancelTransaction       = "CancelTransaction"
	PaymeGetStatement            = "GetStatement"
)

// PaymeRequest is the JSON-RPC envelope Payme posts to the merchant endpoint
type PaymeRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     json.RawMessage `json:"id"` // echoed back verbatim
}

// PaymeParams is the union of parameters used by the supported methods
type PaymeParams struct {
	ID      string                     `json:"id"`
	Time    int64                      `json:"time"`
	Amount  decimal.Decimal            `json:"amount"` // minor units (tiyin)
	Account map[string]json.RawMessage `json:"account"`
	Reason  *int                       `json:"reason"`
	From    int64                      `json:"from"`
	To      int64                      `json:"to"`
}

// AccountValue returns params.account[field] as a string; numbers keep their literal form.
func (p *PaymeParams) AccountValue(field string) string {
	raw, ok := p.Account[field]
	if !ok {
		return ""
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	if bytes.Equal(raw, []byte("null")) {
		return ""
	}
	return string(raw)
}

// PaymeError is the JSON-RPC error object
type PaymeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// PaymeResponse is the JSON-RPC reply, always sent with HTTP 200
type PaymeResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *PaymeError     `json:"error,omitempty"`
}

// CheckPerformResult is returned by CheckPerformTransaction
type CheckPerformResult struct {
	Allow bool `json:"allow"`
}

// CreateTransactionResult is returned by CreateTransaction
type CreateTransactionResult struct {
	Transaction string           `json:"transaction"`
	State       TransactionState `json:"state"`
	CreateTime  int64            `json:"create_time"`
}

// PerformTransactionResult is returned by PerformTransaction
type PerformTransactionResult struct {
	Transaction string           `json:"transaction"`
	State       TransactionState `json:"state"`
	PerformTime int64            `json:"perform_time"`
}

// CancelTransactionResult is returned by CancelTransaction
type CancelTransactionResult struct {
	Transaction string           `json:"transaction"`
	State       TransactionState `json:"state"`
	CancelTime  int64            `json:"cancel_time"`
}

// CheckTransactionResult is returned by CheckTransaction
type CheckTransactionResult struct {
	Transaction string           `json:"transaction"`
	State       TransactionState `json:"state"`
	CreateTime  int64            `json:"create_time"`
	PerformTime int64            `json:"perform_time"`
	CancelTime  int64            `json:"cancel_time"`
	Reason      *int             `json:"reason"`
}

// StatementEntry is one transaction inside a GetStatement result
type StatementEntry struct {
	ID          string            `json:"id"`
	Time        int64             `json:"time"`
	Amount      int64             `json:"amount"` // minor units
	Account     map[string]string `json:"account"`
	State       TransactionState  `json:"state"`
	CreateTime  int64             `json:"create_time"`
	PerformTime int64             `json:"perform_time"`
	CancelTime  int64             `json:"cancel_time"`
	Transaction string            `json:"transaction"`
	Reason      *int              `json:"reason"`
}

// StatementResult is returned by GetStatement
type StatementResult struct {
	Transactions []StatementEntry `json:"transactions"`
}

// NewStatementEntry converts a stored transaction into its statement form
func NewStatementEntry(t *Transaction, accountField string) StatementEntry {
	created := t.CreatedAt.UnixMilli()
	meta := t.Metadata()
	providerTime := meta.ProviderTime
	if providerTime == 0 {
		providerTime = created
	}
	return StatementEntry{
		ID:          t.ProviderTransactionID,
		Time:        providerTime,
		Amount:      t.Amount.Shift(2).Round(0).IntPart(),
		Account:     map[string]string{accountField: t.AccountReference},
		State:       t.State,
		CreateTime:  created,
		PerformTime: UnixMilli(t.PerformedAt),
		CancelTime:  UnixMilli(t.CancelledAt),
		Transaction: t.ProviderTransactionID,
		Reason:      meta.CancelReason,
	}
}

// ParseMinorUnits converts a minor-unit amount into major units
func ParseMinorUnits(amount decimal.Decimal) decimal.Decimal {
	return amount.Shift(-2)
}

// FormatID renders a numeric row id the way the providers expect it
func FormatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
