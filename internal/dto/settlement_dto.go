package dto

import (
	"frontdesk/internal/model"

	"github.com/shopspring/decimal"
)

// ─── Summary / Options ───────────────────────────────────────────────────────

// SummaryResponse is returned by GET /v1/bookings/:id/payments/summary.
type SummaryResponse struct {
	BookingID           string                  `json:"booking_id"`
	Financials          model.BookingFinancials `json:"financials"`
	Flags               model.PaymentFlags      `json:"flags"`
	HasExistingPayments bool                    `json:"has_existing_payments"`
}

// SettlementOption describes one offerable settlement type.
type SettlementOption struct {
	Type            model.SettlementType `json:"type"`
	SuggestedAmount decimal.Decimal      `json:"suggested_amount"`
	AmountEditable  bool                 `json:"amount_editable"`
	Default         bool                 `json:"default"`
}

// OptionsResponse is returned by GET /v1/bookings/:id/payments/options.
// An empty Options list means the booking is fully paid and accepts no payment.
type OptionsResponse struct {
	BookingID           string                  `json:"booking_id"`
	Financials          model.BookingFinancials `json:"financials"`
	Flags               model.PaymentFlags      `json:"flags"`
	HasExistingPayments bool                    `json:"has_existing_payments"`
	Options             []SettlementOption      `json:"options"`
}

// ─── Quote ───────────────────────────────────────────────────────────────────

type QuoteRequest struct {
	SettlementType string          `json:"settlement_type" validate:"required,oneof=down_payment partial_payment balance_settlement"`
	Amount         decimal.Decimal `json:"amount"          validate:"required"`
}

type QuoteResponse struct {
	BookingID        string          `json:"booking_id"`
	Amount           decimal.Decimal `json:"amount"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	WillFullyPay     bool            `json:"will_fully_pay"`
}

// ─── Settle ──────────────────────────────────────────────────────────────────

type SettleRequest struct {
	SettlementType string          `json:"settlement_type" validate:"required,oneof=down_payment partial_payment balance_settlement"`
	Amount         decimal.Decimal `json:"amount"          validate:"required"`
	PaymentMethod  string          `json:"payment_method"  validate:"required,oneof=cash card gcash maya bank_transfer check"`
	Notes          *string         `json:"notes"           validate:"omitempty,max=500"`
	// GuestEmail: optional — when present, the receipt worker mails the PDF receipt.
	GuestEmail *string `json:"guest_email" validate:"omitempty,email"`
	// TransactionReference is generated server-side when the dashboard omits it.
	TransactionReference *string `json:"transaction_reference" validate:"omitempty,uuid"`
}

type SettleResponse struct {
	BookingID            string               `json:"booking_id"`
	PaymentID            string               `json:"payment_id"`
	SettlementType       model.SettlementType `json:"settlement_type"`
	PaymentMethod        model.PaymentMethod  `json:"payment_method"`
	Amount               decimal.Decimal      `json:"amount"`
	Currency             string               `json:"currency"`
	RemainingBalance     decimal.Decimal      `json:"remaining_balance"`
	WillFullyPay         bool                 `json:"will_fully_pay"`
	TransactionReference string               `json:"transaction_reference"`
	RecordedAt           string               `json:"recorded_at"`
}

// ─── Attempts (audit trail) ──────────────────────────────────────────────────

type AttemptResponse struct {
	ID                   string               `json:"id"`
	BookingID            string               `json:"booking_id"`
	OperatorID           string               `json:"operator_id"`
	SettlementType       model.SettlementType `json:"settlement_type"`
	PaymentMethod        model.PaymentMethod  `json:"payment_method"`
	Amount               decimal.Decimal      `json:"amount"`
	Currency             string               `json:"currency"`
	TransactionReference string               `json:"transaction_reference"`
	Outcome              string               `json:"outcome"`
	UpstreamMessage      *string              `json:"upstream_message"`
	CreatedAt            string               `json:"created_at"`
}
