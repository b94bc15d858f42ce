package infra

// booking_client.go
// HTTP client for the external booking service — the system of record for
// bookings and payments. The gateway only reads financial summaries and
// payment lists, and posts settlements; every call travels with the acting
// operator's session so the upstream audit log shows who did what.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"frontdesk/internal/model"
	"frontdesk/internal/session"

	"github.com/shopspring/decimal"
)

// ErrorKind classifies upstream failures so callers can react without parsing
// status codes. See UpstreamError.
type ErrorKind int

const (
	// KindAuth: the upstream rejected the gateway's credentials (401/403).
	// The acting operator's session must be reset.
	KindAuth ErrorKind = iota
	// KindBusiness: the upstream refused the action for this booking's state
	// (already fully paid, cancelled, …). Message is surfaced verbatim.
	KindBusiness
	// KindTransport: network error, timeout, or upstream 5xx. Retryable only
	// by explicit user action — never automatically.
	KindTransport
)

// UpstreamError wraps any failure from the booking service.
type UpstreamError struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *UpstreamError) Error() string { return e.Message }

// AsUpstreamError unwraps err into an *UpstreamError, if it is one.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	ok := errors.As(err, &ue)
	return ue, ok
}

// PaymentSummaryPayload is the upstream response for a booking's money summary.
type PaymentSummaryPayload struct {
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	BalanceAmount decimal.Decimal `json:"balance_amount"`
	BookingStatus string          `json:"booking_status"` // confirmed | checked_in | cancelled | ...
}

// SettlePayload is the body posted to the settle endpoint.
type SettlePayload struct {
	SettlementType       model.SettlementType `json:"settlementType"`
	Amount               decimal.Decimal      `json:"amount"`
	PaymentMethod        model.PaymentMethod  `json:"paymentMethod"`
	Notes                *string              `json:"notes,omitempty"`
	Currency             string               `json:"currency"`
	TransactionReference string               `json:"transactionReference"`
}

// SettleConfirmation is the upstream's acknowledgement of a recorded payment.
// BalanceAmount is a pointer so an omitted field is distinguishable from a
// genuine zero balance.
type SettleConfirmation struct {
	PaymentID     string           `json:"payment_id"`
	BalanceAmount *decimal.Decimal `json:"balance_amount"`
	RecordedAt    string           `json:"recorded_at"`
}

// upstreamErrorBody is the error payload shape the booking service returns.
type upstreamErrorBody struct {
	Message string `json:"message"`
}

// BookingClient talks to the booking service over HTTP.
type BookingClient struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
}

func NewBookingClient(baseURL, serviceToken string) *BookingClient {
	return &BookingClient{
		baseURL:      baseURL,
		serviceToken: serviceToken,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// GetPaymentSummary fetches the booking's financial summary. Safe to call
// concurrently — GET, idempotent.
func (c *BookingClient) GetPaymentSummary(ctx context.Context, sess *session.Session, bookingID string) (*PaymentSummaryPayload, error) {
	var out PaymentSummaryPayload
	path := fmt.Sprintf("/api/bookings/%s/payments/summary", bookingID)
	if err := c.do(ctx, sess, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPayments returns the booking's prior payment records.
func (c *BookingClient) ListPayments(ctx context.Context, sess *session.Session, bookingID string) ([]model.PaymentRecord, error) {
	var out []model.PaymentRecord
	path := fmt.Sprintf("/api/bookings/%s/payments", bookingID)
	if err := c.do(ctx, sess, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Settle posts a payment settlement for the booking. The request is submitted
// once; the caller decides whether the user may manually resubmit.
func (c *BookingClient) Settle(ctx context.Context, sess *session.Session, bookingID string, payload SettlePayload) (*SettleConfirmation, error) {
	var out SettleConfirmation
	path := fmt.Sprintf("/api/bookings/%s/payments/settle", bookingID)
	if err := c.do(ctx, sess, http.MethodPost, path, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *BookingClient) do(ctx context.Context, sess *session.Session, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &UpstreamError{Kind: KindTransport, Message: fmt.Sprintf("booking: marshal request: %v", err)}
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &UpstreamError{Kind: KindTransport, Message: fmt.Sprintf("booking: create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.serviceToken)
	if sess != nil {
		req.Header.Set("X-Acting-Operator", sess.Username)
		req.Header.Set("X-Acting-Role", string(sess.Role))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Kind: KindTransport, Message: "booking service unreachable"}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &UpstreamError{Kind: KindAuth, Status: resp.StatusCode, Message: "booking service rejected credentials"}
	case resp.StatusCode >= 500:
		return &UpstreamError{Kind: KindTransport, Status: resp.StatusCode, Message: fmt.Sprintf("booking service returned %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		// Business rejection — surface the upstream message verbatim.
		var eb upstreamErrorBody
		msg := fmt.Sprintf("booking service rejected the request (%d)", resp.StatusCode)
		if err := json.NewDecoder(resp.Body).Decode(&eb); err == nil && eb.Message != "" {
			msg = eb.Message
		}
		return &UpstreamError{Kind: KindBusiness, Status: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &UpstreamError{Kind: KindTransport, Status: resp.StatusCode, Message: fmt.Sprintf("booking: decode response: %v", err)}
		}
	}
	return nil
}
