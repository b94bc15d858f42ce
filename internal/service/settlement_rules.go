package service

// settlement_rules.go
// Pure computation and validation rules for recording payments against a
// booking's outstanding balance. No I/O, no framework types — everything here
// is deterministic on its inputs so the handlers, the submit workflow, and the
// dashboard quote endpoint all share one implementation.

import (
	"fmt"

	"frontdesk/internal/model"

	"github.com/shopspring/decimal"
)

// Boundary constants. The +1 overshoot and the 0.01 coincidence window are
// load-bearing: moving either changes which amounts the front desk accepts.
var (
	// maxOvershoot tolerates 1 peso above the balance on partial/down payments
	// to absorb rounding on amounts keyed in by hand.
	maxOvershoot = decimal.NewFromInt(1)
	// balanceEpsilon is the window inside which a partial/down amount is treated
	// as coinciding with the full balance and must be rejected.
	balanceEpsilon = decimal.RequireFromString("0.01")
	// downPaymentCap is the ceiling on the suggested down payment.
	downPaymentCap = decimal.NewFromInt(1000)
	// downPaymentRate is the fraction of the booking total suggested as down payment.
	downPaymentRate = decimal.RequireFromString("0.5")
)

// RuleError is a client-side validation failure, detected before any call to
// the booking service. It renders inline on the amount field.
type RuleError struct {
	Field   string
	Message string
}

func (e *RuleError) Error() string { return e.Message }

func ruleErr(field, format string, args ...interface{}) *RuleError {
	return &RuleError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AvailableTypes returns the settlement types that may be offered for a
// booking, in display order. A fully paid booking offers none; a down payment
// is only offered before the first completed payment exists.
func AvailableTypes(hasExistingPayments bool, balance decimal.Decimal) []model.SettlementType {
	if !balance.IsPositive() {
		return nil
	}
	var types []model.SettlementType
	if !hasExistingPayments {
		types = append(types, model.SettlementDownPayment)
	}
	types = append(types, model.SettlementPartial, model.SettlementBalance)
	return types
}

// DefaultType picks the pre-selected settlement type: down payment when it is
// offered, partial payment otherwise.
func DefaultType(types []model.SettlementType) model.SettlementType {
	for _, t := range types {
		if t == model.SettlementDownPayment {
			return t
		}
	}
	return model.SettlementPartial
}

// SuggestedAmount proposes an amount for the given settlement type.
// balance_settlement is always the exact balance; down_payment suggests half
// the booking total rounded to the peso, capped at 1000 and at the balance;
// partial_payment has no suggestion (zero, editable).
func SuggestedAmount(t model.SettlementType, fin model.BookingFinancials) decimal.Decimal {
	switch t {
	case model.SettlementBalance:
		return fin.BalanceAmount
	case model.SettlementDownPayment:
		half := fin.TotalAmount.Mul(downPaymentRate).Round(0)
		return decimal.Min(half, downPaymentCap, fin.BalanceAmount)
	default:
		return decimal.Zero
	}
}

// IsAmountEditable reports whether the operator may change the amount for the
// given settlement type. Only a balance settlement locks the field.
func IsAmountEditable(t model.SettlementType) bool {
	return t != model.SettlementBalance
}

// ValidateAmount enforces the settlement amount rules against the current
// balance. Returns a *RuleError on violation, nil when the amount is acceptable.
func ValidateAmount(t model.SettlementType, amount, balance decimal.Decimal) error {
	if t == model.SettlementBalance {
		// The field is locked client-side; a differing amount means a stale or
		// tampered request.
		if !amount.Equal(balance) {
			return ruleErr("amount", "a balance settlement must equal the outstanding balance of %s exactly", balance.StringFixed(2))
		}
		return nil
	}

	if !amount.IsPositive() {
		return ruleErr("amount", "amount must be greater than zero")
	}
	if amount.GreaterThan(balance.Add(maxOvershoot)) {
		return ruleErr("amount", "amount exceeds the outstanding balance of %s", balance.StringFixed(2))
	}
	if amount.Sub(balance).Abs().LessThan(balanceEpsilon) {
		return ruleErr("amount", "this amount pays the balance in full — submit it as a balance settlement instead")
	}
	return nil
}

// Quote is the computed outcome of applying an amount to a balance.
type Quote struct {
	RemainingBalance decimal.Decimal
	WillFullyPay     bool
}

// ComputeQuote applies amount to balance. Remaining never goes negative:
// the overshoot tolerance means a payment may exceed the balance by up to 1.
func ComputeQuote(balance, amount decimal.Decimal) Quote {
	remaining := balance.Sub(amount)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return Quote{RemainingBalance: remaining, WillFullyPay: remaining.IsZero()}
}
