package model

import (
	"github.com/shopspring/decimal"
)

// SettlementType classifies how a payment is recorded against a booking.
type SettlementType string

const (
	SettlementDownPayment SettlementType = "down_payment"
	SettlementPartial     SettlementType = "partial_payment"
	SettlementBalance     SettlementType = "balance_settlement"
)

// Valid reports whether t is one of the known settlement types.
func (t SettlementType) Valid() bool {
	switch t {
	case SettlementDownPayment, SettlementPartial, SettlementBalance:
		return true
	}
	return false
}

// PaymentMethod is the tender used at the front desk.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCard         PaymentMethod = "card"
	MethodGCash        PaymentMethod = "gcash"
	MethodMaya         PaymentMethod = "maya"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCheck        PaymentMethod = "check"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodGCash, MethodMaya, MethodBankTransfer, MethodCheck:
		return true
	}
	return false
}

// Currency is fixed: the booking service records all amounts in Philippine pesos.
const Currency = "PHP"

// BookingFinancials is the booking's money summary as reported by the booking
// service. Owned upstream, fetched read-only per booking.
// Invariant: BalanceAmount = TotalAmount - TotalPaid, never negative.
type BookingFinancials struct {
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	BalanceAmount decimal.Decimal `json:"balance_amount"`
}

// PaymentFlags are derived booleans the dashboard keys its UI off.
type PaymentFlags struct {
	IsFullyPaid     bool `json:"is_fully_paid"`
	HasBalance      bool `json:"has_balance"`
	AcceptsPayments bool `json:"accepts_payments"`
}

// DeriveFlags computes PaymentFlags from the financial summary.
// cancelled comes from the booking status reported upstream.
func DeriveFlags(fin BookingFinancials, cancelled bool) PaymentFlags {
	fullyPaid := fin.BalanceAmount.IsZero()
	return PaymentFlags{
		IsFullyPaid:     fullyPaid,
		HasBalance:      fin.BalanceAmount.IsPositive(),
		AcceptsPayments: !fullyPaid && !cancelled,
	}
}

// PaymentRecord is one prior payment row as listed by the booking service.
// Only the fields the gateway reads are modeled.
type PaymentRecord struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`   // room_charge | partial_payment | down_payment | refund | ...
	Status string          `json:"status"` // completed | pending | voided
	Amount decimal.Decimal `json:"amount"`
}

// HasExistingPayments reports whether any prior payment is completed and of a
// type that counts toward the booking. A down payment is only offered before
// the first such record exists.
func HasExistingPayments(records []PaymentRecord) bool {
	for _, r := range records {
		if r.Status != "completed" {
			continue
		}
		switch r.Type {
		case "room_charge", "partial_payment", "down_payment":
			return true
		}
	}
	return false
}
