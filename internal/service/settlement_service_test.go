package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"frontdesk/internal/dto"
	"frontdesk/internal/infra"
	"frontdesk/internal/model"
	"frontdesk/internal/repository"
	"frontdesk/internal/session"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── In-memory BookingAPI stub ────────────────────────────────────────────────

type stubBookingAPI struct {
	mu          sync.Mutex
	summary     infra.PaymentSummaryPayload
	payments    []model.PaymentRecord
	settleErr   error
	settleConf  infra.SettleConfirmation
	settleCalls int
	// settleGate, when set, blocks Settle until closed — used to hold a
	// submission in flight while a second one is attempted.
	settleGate chan struct{}
}

func (s *stubBookingAPI) GetPaymentSummary(_ context.Context, _ *session.Session, _ string) (*infra.PaymentSummaryPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.summary
	return &out, nil
}

func (s *stubBookingAPI) ListPayments(_ context.Context, _ *session.Session, _ string) ([]model.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payments, nil
}

func (s *stubBookingAPI) Settle(_ context.Context, _ *session.Session, _ string, _ infra.SettlePayload) (*infra.SettleConfirmation, error) {
	s.mu.Lock()
	s.settleCalls++
	gate := s.settleGate
	err := s.settleErr
	conf := s.settleConf
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &conf, nil
}

func (s *stubBookingAPI) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settleCalls
}

var _ BookingAPI = (*stubBookingAPI)(nil)

// ── In-memory AttemptRepository stub ─────────────────────────────────────────

type stubAttemptRepo struct {
	mu       sync.Mutex
	attempts []*model.SettlementAttempt
}

func (r *stubAttemptRepo) Create(_ context.Context, a *model.SettlementAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	cloned := *a
	r.attempts = append(r.attempts, &cloned)
	return nil
}

func (r *stubAttemptRepo) FindByID(_ context.Context, id uuid.UUID) (*model.SettlementAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, errors.New("record not found")
}

func (r *stubAttemptRepo) ListByBooking(_ context.Context, bookingID string, limit int) ([]model.SettlementAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SettlementAttempt
	for i := len(r.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if r.attempts[i].BookingID == bookingID {
			out = append(out, *r.attempts[i])
		}
	}
	return out, nil
}

func (r *stubAttemptRepo) FindByTransactionReference(_ context.Context, ref string) (*model.SettlementAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.TransactionReference == ref {
			return a, nil
		}
	}
	return nil, errors.New("record not found")
}

func (r *stubAttemptRepo) last() *model.SettlementAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.attempts) == 0 {
		return nil
	}
	return r.attempts[len(r.attempts)-1]
}

var _ repository.AttemptRepository = (*stubAttemptRepo)(nil)

// ── Fixtures ─────────────────────────────────────────────────────────────────

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func testSession() *session.Session {
	return &session.Session{
		OperatorID: uuid.New(),
		Username:   "maria",
		Role:       session.RoleReceptionist,
	}
}

func openBooking(total, paid string) infra.PaymentSummaryPayload {
	t := d(total)
	p := d(paid)
	return infra.PaymentSummaryPayload{
		TotalAmount:   t,
		TotalPaid:     p,
		BalanceAmount: t.Sub(p),
		BookingStatus: "confirmed",
	}
}

func newTestService(api BookingAPI, attempts repository.AttemptRepository) SettlementService {
	summaries := NewSummaryService(api, nil, time.Minute)
	return NewSettlementService(api, summaries, attempts, nil, nil, nil)
}

func settleReq(typ, amount, method string) dto.SettleRequest {
	return dto.SettleRequest{
		SettlementType: typ,
		Amount:         d(amount),
		PaymentMethod:  method,
	}
}

// ── Options ──────────────────────────────────────────────────────────────────

func TestOptions_FreshBooking(t *testing.T) {
	api := &stubBookingAPI{summary: openBooking("1500", "0")}
	svc := newTestService(api, &stubAttemptRepo{})

	resp, err := svc.Options(context.Background(), testSession(), "BK-1001")
	require.NoError(t, err)
	require.Len(t, resp.Options, 3)

	down := resp.Options[0]
	assert.Equal(t, model.SettlementDownPayment, down.Type)
	assert.True(t, down.SuggestedAmount.Equal(d("750")))
	assert.True(t, down.AmountEditable)
	assert.True(t, down.Default)

	balance := resp.Options[2]
	assert.Equal(t, model.SettlementBalance, balance.Type)
	assert.True(t, balance.SuggestedAmount.Equal(d("1500")))
	assert.False(t, balance.AmountEditable)
}

func TestOptions_AfterFirstPayment(t *testing.T) {
	api := &stubBookingAPI{
		summary:  openBooking("1500", "750"),
		payments: []model.PaymentRecord{{Type: "down_payment", Status: "completed", Amount: d("750")}},
	}
	svc := newTestService(api, &stubAttemptRepo{})

	resp, err := svc.Options(context.Background(), testSession(), "BK-1001")
	require.NoError(t, err)
	require.Len(t, resp.Options, 2)
	assert.Equal(t, model.SettlementPartial, resp.Options[0].Type)
	assert.Equal(t, model.SettlementBalance, resp.Options[1].Type)
	assert.True(t, resp.Options[1].SuggestedAmount.Equal(d("750")))
	assert.True(t, resp.HasExistingPayments)
}

func TestOptions_FullyPaidOffersNothing(t *testing.T) {
	api := &stubBookingAPI{
		summary:  openBooking("1500", "1500"),
		payments: []model.PaymentRecord{{Type: "room_charge", Status: "completed", Amount: d("1500")}},
	}
	svc := newTestService(api, &stubAttemptRepo{})

	resp, err := svc.Options(context.Background(), testSession(), "BK-1001")
	require.NoError(t, err)
	assert.Empty(t, resp.Options)
	assert.False(t, resp.Flags.AcceptsPayments)
}

// ── Quote ────────────────────────────────────────────────────────────────────

func TestQuoteFor_ValidPartial(t *testing.T) {
	api := &stubBookingAPI{summary: openBooking("1500", "750")}
	svc := newTestService(api, &stubAttemptRepo{})

	resp, err := svc.QuoteFor(context.Background(), testSession(), "BK-1001", dto.QuoteRequest{
		SettlementType: "partial_payment",
		Amount:         d("300"),
	})
	require.NoError(t, err)
	assert.True(t, resp.RemainingBalance.Equal(d("450")))
	assert.False(t, resp.WillFullyPay)
}

func TestQuoteFor_CoincidenceRejected(t *testing.T) {
	api := &stubBookingAPI{summary: openBooking("1500", "750")}
	svc := newTestService(api, &stubAttemptRepo{})

	_, err := svc.QuoteFor(context.Background(), testSession(), "BK-1001", dto.QuoteRequest{
		SettlementType: "partial_payment",
		Amount:         d("750"),
	})
	var rule *RuleError
	require.ErrorAs(t, err, &rule)
	assert.Contains(t, rule.Message, "balance settlement")
}

// ── Settle ───────────────────────────────────────────────────────────────────

func TestSettle_Accepted(t *testing.T) {
	api := &stubBookingAPI{
		summary: openBooking("1500", "750"),
		settleConf: infra.SettleConfirmation{
			PaymentID:     "PAY-77",
			BalanceAmount: dp("0"),
			RecordedAt:    "2026-09-01T10:00:00Z",
		},
	}
	attempts := &stubAttemptRepo{}
	svc := newTestService(api, attempts)

	resp, err := svc.Settle(context.Background(), testSession(), "BK-1001", settleReq("balance_settlement", "750", "cash"))
	require.NoError(t, err)
	assert.Equal(t, "PAY-77", resp.PaymentID)
	assert.True(t, resp.RemainingBalance.IsZero())
	assert.True(t, resp.WillFullyPay)
	assert.Equal(t, "PHP", resp.Currency)
	assert.NotEmpty(t, resp.TransactionReference)

	attempt := attempts.last()
	require.NotNil(t, attempt)
	assert.Equal(t, "accepted", attempt.Outcome)
	assert.Equal(t, model.SettlementBalance, attempt.SettlementType)
	assert.Equal(t, 1, api.calls())
}

func TestSettle_ConfirmationWithoutBalanceFallsBackToQuote(t *testing.T) {
	api := &stubBookingAPI{
		summary:    openBooking("1500", "750"),
		settleConf: infra.SettleConfirmation{PaymentID: "PAY-1", RecordedAt: "2026-09-01T10:00:00Z"},
	}
	svc := newTestService(api, &stubAttemptRepo{})

	resp, err := svc.Settle(context.Background(), testSession(), "BK-1001", settleReq("partial_payment", "300", "cash"))
	require.NoError(t, err)
	assert.True(t, resp.RemainingBalance.Equal(d("450")))
	assert.False(t, resp.WillFullyPay)
}

func TestSettle_RuleViolationNeverReachesUpstream(t *testing.T) {
	api := &stubBookingAPI{summary: openBooking("1500", "750")}
	attempts := &stubAttemptRepo{}
	svc := newTestService(api, attempts)

	// coincides with the balance as a partial payment
	_, err := svc.Settle(context.Background(), testSession(), "BK-1001", settleReq("partial_payment", "750", "cash"))
	var rule *RuleError
	require.ErrorAs(t, err, &rule)
	assert.Equal(t, 0, api.calls(), "rule violations must not be submitted")
	assert.Nil(t, attempts.last(), "nothing was attempted, nothing is audited")
}

func TestSettle_BusinessRejectionRecordedVerbatim(t *testing.T) {
	api := &stubBookingAPI{
		summary:   openBooking("1500", "750"),
		settleErr: &infra.UpstreamError{Kind: infra.KindBusiness, Status: 409, Message: "booking is locked for audit"},
	}
	attempts := &stubAttemptRepo{}
	svc := newTestService(api, attempts)

	_, err := svc.Settle(context.Background(), testSession(), "BK-1001", settleReq("partial_payment", "300", "card"))
	ue, ok := infra.AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, infra.KindBusiness, ue.Kind)
	assert.Equal(t, "booking is locked for audit", ue.Message)

	attempt := attempts.last()
	require.NotNil(t, attempt)
	assert.Equal(t, "rejected", attempt.Outcome)
	require.NotNil(t, attempt.UpstreamMessage)
	assert.Equal(t, "booking is locked for audit", *attempt.UpstreamMessage)
}

func TestSettle_TransportFailureRecordedAsFailed(t *testing.T) {
	api := &stubBookingAPI{
		summary:   openBooking("1500", "750"),
		settleErr: &infra.UpstreamError{Kind: infra.KindTransport, Message: "booking service unreachable"},
	}
	attempts := &stubAttemptRepo{}
	svc := newTestService(api, attempts)

	_, err := svc.Settle(context.Background(), testSession(), "BK-1001", settleReq("partial_payment", "300", "gcash"))
	ue, ok := infra.AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, infra.KindTransport, ue.Kind)

	attempt := attempts.last()
	require.NotNil(t, attempt)
	assert.Equal(t, "failed", attempt.Outcome)
	// exactly one submission — never retried automatically
	assert.Equal(t, 1, api.calls())
}

func TestSettle_FullyPaidBlocked(t *testing.T) {
	api := &stubBookingAPI{summary: openBooking("1500", "1500")}
	svc := newTestService(api, &stubAttemptRepo{})

	_, err := svc.Settle(context.Background(), testSession(), "BK-1001", settleReq("partial_payment", "100", "cash"))
	assert.ErrorIs(t, err, ErrNotAcceptingPayments)
	assert.Equal(t, 0, api.calls())
}

func TestSettle_CancelledBlocked(t *testing.T) {
	summary := openBooking("1500", "500")
	summary.BookingStatus = "cancelled"
	api := &stubBookingAPI{summary: summary}
	svc := newTestService(api, &stubAttemptRepo{})

	_, err := svc.Settle(context.Background(), testSession(), "BK-1001", settleReq("partial_payment", "100", "cash"))
	assert.ErrorIs(t, err, ErrNotAcceptingPayments)
}

func TestSettle_DownPaymentBlockedAfterFirstPayment(t *testing.T) {
	api := &stubBookingAPI{
		summary:  openBooking("1500", "750"),
		payments: []model.PaymentRecord{{Type: "down_payment", Status: "completed", Amount: d("750")}},
	}
	svc := newTestService(api, &stubAttemptRepo{})

	_, err := svc.Settle(context.Background(), testSession(), "BK-1001", settleReq("down_payment", "300", "cash"))
	assert.ErrorIs(t, err, ErrDownPaymentTaken)
	assert.Equal(t, 0, api.calls())
}

func TestSettle_SecondSubmissionWhileInFlight(t *testing.T) {
	gate := make(chan struct{})
	api := &stubBookingAPI{
		summary:    openBooking("1500", "750"),
		settleGate: gate,
		settleConf: infra.SettleConfirmation{PaymentID: "PAY-1", BalanceAmount: dp("450")},
	}
	svc := newTestService(api, &stubAttemptRepo{})

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.Settle(context.Background(), testSession(), "BK-1001", settleReq("partial_payment", "300", "cash"))
		firstDone <- err
	}()

	// wait for the first submission to reach the upstream call
	require.Eventually(t, func() bool { return api.calls() == 1 }, time.Second, 5*time.Millisecond)

	_, err := svc.Settle(context.Background(), testSession(), "BK-1001", settleReq("partial_payment", "200", "cash"))
	assert.ErrorIs(t, err, ErrSettlementInFlight)

	close(gate)
	require.NoError(t, <-firstDone)

	// a different booking is not blocked by BK-1001's guard
	_, err = svc.Settle(context.Background(), testSession(), "BK-2002", settleReq("partial_payment", "300", "cash"))
	require.NoError(t, err)
}

func TestSettle_ClientTransactionReferencePreserved(t *testing.T) {
	api := &stubBookingAPI{
		summary:    openBooking("1500", "750"),
		settleConf: infra.SettleConfirmation{PaymentID: "PAY-1", BalanceAmount: dp("450")},
	}
	attempts := &stubAttemptRepo{}
	svc := newTestService(api, attempts)

	ref := uuid.NewString()
	req := settleReq("partial_payment", "300", "maya")
	req.TransactionReference = &ref

	resp, err := svc.Settle(context.Background(), testSession(), "BK-1001", req)
	require.NoError(t, err)
	assert.Equal(t, ref, resp.TransactionReference)
	assert.Equal(t, ref, attempts.last().TransactionReference)
}

// ── Attempts ─────────────────────────────────────────────────────────────────

func TestAttempts_ListsAuditTrail(t *testing.T) {
	api := &stubBookingAPI{
		summary:    openBooking("1500", "0"),
		settleConf: infra.SettleConfirmation{PaymentID: "PAY-1", BalanceAmount: dp("750")},
	}
	attempts := &stubAttemptRepo{}
	svc := newTestService(api, attempts)

	_, err := svc.Settle(context.Background(), testSession(), "BK-1001", settleReq("down_payment", "750", "cash"))
	require.NoError(t, err)

	list, err := svc.Attempts(context.Background(), "BK-1001", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "accepted", list[0].Outcome)
	assert.Equal(t, model.SettlementDownPayment, list[0].SettlementType)
	assert.Equal(t, "PHP", list[0].Currency)
}
