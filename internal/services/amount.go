package services

import (
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	// commissionTolerance absorbs rounding noise between provider and merchant amounts
	commissionTolerance = decimal.RequireFromString("0.01")
)

// AmountValidator compares callback amounts to the amount an account expects
type AmountValidator struct {
	// Strict requires an exact match, otherwise any positive amount is accepted
	Strict bool
	// CommissionPercent inflates the expected amount before comparison
	CommissionPercent decimal.Decimal
}

// ValidateMinorUnits checks a minor-unit amount (tiyin) against expected major units
func (v AmountValidator) ValidateMinorUnits(received, expected decimal.Decimal) error {
	want := expected.Mul(hundred)
	if v.Strict {
		if !received.Equal(want) {
			return newCallbackError(ErrAmountMismatch, "Invalid amount. Expected: %s, received: %s", want, received)
		}
		return nil
	}
	if !received.IsPositive() {
		return newCallbackError(ErrAmountMismatch, "Invalid amount. Amount must be positive, received: %s", received)
	}
	return nil
}

// ValidateWithCommission checks a major-unit amount against expected inflated by the commission.
// A difference of up to 0.01 is accepted.
func (v AmountValidator) ValidateWithCommission(received, expected decimal.Decimal) error {
	want := expected
	if !v.CommissionPercent.IsZero() {
		want = expected.Mul(decimal.NewFromInt(1).Add(v.CommissionPercent.Div(hundred))).Round(2)
	}
	if received.Sub(want).Abs().GreaterThan(commissionTolerance) {
		return newCallbackError(ErrAmountMismatch, "Incorrect amount. Expected: %s, received: %s", want.StringFixed(2), received.StringFixed(2))
	}
	return nil
}
