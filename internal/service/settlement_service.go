package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"frontdesk/internal/dto"
	"frontdesk/internal/infra"
	"frontdesk/internal/model"
	"frontdesk/internal/repository"
	"frontdesk/internal/session"
	"frontdesk/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ErrSettlementInFlight rejects a second submission for a booking while one is
// still being processed. The dashboard disables its submit button, but the
// gateway enforces it regardless.
var ErrSettlementInFlight = errors.New("a settlement for this booking is already in progress")

// ErrNotAcceptingPayments blocks submissions for fully paid or cancelled
// bookings before any upstream call is made.
var ErrNotAcceptingPayments = errors.New("this booking is fully paid or cancelled and accepts no further payments")

// ErrDownPaymentTaken blocks a down payment once any completed payment exists.
var ErrDownPaymentTaken = errors.New("a payment has already been recorded for this booking — use a partial payment instead")

type SettlementService interface {
	Options(ctx context.Context, sess *session.Session, bookingID string) (*dto.OptionsResponse, error)
	QuoteFor(ctx context.Context, sess *session.Session, bookingID string, req dto.QuoteRequest) (*dto.QuoteResponse, error)
	Settle(ctx context.Context, sess *session.Session, bookingID string, req dto.SettleRequest) (*dto.SettleResponse, error)
	Attempts(ctx context.Context, bookingID string, limit int) ([]dto.AttemptResponse, error)
}

type settlementService struct {
	api         BookingAPI
	summaries   SummaryService
	attemptRepo repository.AttemptRepository
	receiptRepo repository.ReceiptRepository
	dispatcher  *worker.Dispatcher
	cb          *infra.CircuitBreaker

	// inflight holds booking IDs with a submission currently in progress.
	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

func NewSettlementService(
	api BookingAPI,
	summaries SummaryService,
	attemptRepo repository.AttemptRepository,
	receiptRepo repository.ReceiptRepository,
	dispatcher *worker.Dispatcher,
	cb *infra.CircuitBreaker,
) SettlementService {
	return &settlementService{
		api:         api,
		summaries:   summaries,
		attemptRepo: attemptRepo,
		receiptRepo: receiptRepo,
		dispatcher:  dispatcher,
		cb:          cb,
		inflight:    make(map[string]struct{}),
	}
}

// ── Options ───────────────────────────────────────────────────────────────────

func (s *settlementService) Options(ctx context.Context, sess *session.Session, bookingID string) (*dto.OptionsResponse, error) {
	summary, err := s.summaries.Get(ctx, sess, bookingID)
	if err != nil {
		return nil, err
	}

	types := AvailableTypes(summary.HasExistingPayments, summary.Financials.BalanceAmount)
	defaultType := DefaultType(types)

	options := make([]dto.SettlementOption, len(types))
	for i, t := range types {
		options[i] = dto.SettlementOption{
			Type:            t,
			SuggestedAmount: SuggestedAmount(t, summary.Financials),
			AmountEditable:  IsAmountEditable(t),
			Default:         t == defaultType,
		}
	}

	return &dto.OptionsResponse{
		BookingID:           bookingID,
		Financials:          summary.Financials,
		Flags:               summary.Flags(),
		HasExistingPayments: summary.HasExistingPayments,
		Options:             options,
	}, nil
}

// ── Quote ─────────────────────────────────────────────────────────────────────

// QuoteFor validates the amount against the current balance and computes the
// resulting remaining balance. No side effects, safe to call repeatedly.
func (s *settlementService) QuoteFor(ctx context.Context, sess *session.Session, bookingID string, req dto.QuoteRequest) (*dto.QuoteResponse, error) {
	summary, err := s.summaries.Get(ctx, sess, bookingID)
	if err != nil {
		return nil, err
	}

	t := model.SettlementType(req.SettlementType)
	if err := ValidateAmount(t, req.Amount, summary.Financials.BalanceAmount); err != nil {
		return nil, err
	}

	quote := ComputeQuote(summary.Financials.BalanceAmount, req.Amount)
	return &dto.QuoteResponse{
		BookingID:        bookingID,
		Amount:           req.Amount,
		RemainingBalance: quote.RemainingBalance,
		WillFullyPay:     quote.WillFullyPay,
	}, nil
}

// ── Settle ────────────────────────────────────────────────────────────────────
// One submission at a time per booking:
//  1. acquire the in-flight guard
//  2. refetch the summary (fresh — validation must see the latest balance)
//  3. run the client-side rules; no upstream call on violation
//  4. POST to the booking service through the circuit breaker — never retried
//  5. record the attempt, invalidate caches, enqueue the receipt job

func (s *settlementService) Settle(ctx context.Context, sess *session.Session, bookingID string, req dto.SettleRequest) (*dto.SettleResponse, error) {
	if !s.acquire(bookingID) {
		return nil, ErrSettlementInFlight
	}
	defer s.release(bookingID)

	t := model.SettlementType(req.SettlementType)
	method := model.PaymentMethod(req.PaymentMethod)

	summary, err := s.summaries.GetFresh(ctx, sess, bookingID)
	if err != nil {
		return nil, err
	}

	if !summary.Flags().AcceptsPayments {
		return nil, ErrNotAcceptingPayments
	}
	if t == model.SettlementDownPayment && summary.HasExistingPayments {
		return nil, ErrDownPaymentTaken
	}
	if err := ValidateAmount(t, req.Amount, summary.Financials.BalanceAmount); err != nil {
		return nil, err
	}

	txRef := uuid.NewString()
	if req.TransactionReference != nil {
		txRef = *req.TransactionReference
	}

	payload := infra.SettlePayload{
		SettlementType:       t,
		Amount:               req.Amount,
		PaymentMethod:        method,
		Notes:                req.Notes,
		Currency:             model.Currency,
		TransactionReference: txRef,
	}

	var conf *infra.SettleConfirmation
	settleErr := s.execute(func() error {
		c, err := s.api.Settle(ctx, sess, bookingID, payload)
		if err != nil {
			return err
		}
		conf = c
		return nil
	})

	if settleErr != nil {
		if errors.Is(settleErr, infra.ErrCircuitOpen) {
			settleErr = &infra.UpstreamError{Kind: infra.KindTransport, Message: "booking service is temporarily unavailable"}
		}
		s.recordAttempt(ctx, sess, bookingID, t, method, req.Amount, txRef, req.Notes, settleErr)
		return nil, settleErr
	}

	attempt := s.recordAttempt(ctx, sess, bookingID, t, method, req.Amount, txRef, req.Notes, nil)

	// The upstream is the system of record for the new balance; fall back to a
	// local quote if the confirmation omits it.
	var remaining decimal.Decimal
	if conf.BalanceAmount != nil {
		remaining = *conf.BalanceAmount
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
	} else {
		remaining = ComputeQuote(summary.Financials.BalanceAmount, req.Amount).RemainingBalance
	}

	s.summaries.Invalidate(ctx, bookingID)

	if req.GuestEmail != nil && *req.GuestEmail != "" && attempt != nil {
		s.enqueueReceipt(ctx, attempt, *req.GuestEmail, remaining)
	}

	return &dto.SettleResponse{
		BookingID:            bookingID,
		PaymentID:            conf.PaymentID,
		SettlementType:       t,
		PaymentMethod:        method,
		Amount:               req.Amount,
		Currency:             model.Currency,
		RemainingBalance:     remaining,
		WillFullyPay:         remaining.IsZero(),
		TransactionReference: txRef,
		RecordedAt:           conf.RecordedAt,
	}, nil
}

// ── Attempts ──────────────────────────────────────────────────────────────────

func (s *settlementService) Attempts(ctx context.Context, bookingID string, limit int) ([]dto.AttemptResponse, error) {
	if limit <= 0 {
		limit = 50
	}
	attempts, err := s.attemptRepo.ListByBooking(ctx, bookingID, limit)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.AttemptResponse, len(attempts))
	for i, a := range attempts {
		resp[i] = dto.AttemptResponse{
			ID:                   a.ID.String(),
			BookingID:            a.BookingID,
			OperatorID:           a.OperatorID.String(),
			SettlementType:       a.SettlementType,
			PaymentMethod:        a.PaymentMethod,
			Amount:               a.Amount,
			Currency:             a.Currency,
			TransactionReference: a.TransactionReference,
			Outcome:              a.Outcome,
			UpstreamMessage:      a.UpstreamMessage,
			CreatedAt:            a.CreatedAt.Format(time.RFC3339),
		}
	}
	return resp, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

func (s *settlementService) acquire(bookingID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, busy := s.inflight[bookingID]; busy {
		return false
	}
	s.inflight[bookingID] = struct{}{}
	return true
}

func (s *settlementService) release(bookingID string) {
	s.inflightMu.Lock()
	delete(s.inflight, bookingID)
	s.inflightMu.Unlock()
}

func (s *settlementService) execute(fn func() error) error {
	if s.cb == nil {
		return fn()
	}
	return s.cb.Execute(fn)
}

// recordAttempt writes the audit row. Accepted on nil err; rejected when the
// upstream refused; failed on auth/transport errors. Audit write failures are
// logged, never surfaced — they must not mask the settlement outcome.
func (s *settlementService) recordAttempt(
	ctx context.Context,
	sess *session.Session,
	bookingID string,
	t model.SettlementType,
	method model.PaymentMethod,
	amount decimal.Decimal,
	txRef string,
	notes *string,
	settleErr error,
) *model.SettlementAttempt {
	if s.attemptRepo == nil {
		return nil
	}

	outcome := "accepted"
	var upstreamMsg *string
	if settleErr != nil {
		outcome = "failed"
		if ue, ok := infra.AsUpstreamError(settleErr); ok {
			msg := ue.Message
			upstreamMsg = &msg
			if ue.Kind == infra.KindBusiness {
				outcome = "rejected"
			}
		}
	}

	attempt := &model.SettlementAttempt{
		BookingID:            bookingID,
		OperatorID:           sess.OperatorID,
		SettlementType:       t,
		PaymentMethod:        method,
		Amount:               amount,
		Currency:             model.Currency,
		TransactionReference: txRef,
		Notes:                notes,
		Outcome:              outcome,
		UpstreamMessage:      upstreamMsg,
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		log.Error().Err(err).Str("booking_id", bookingID).Msg("failed to record settlement attempt")
		return nil
	}
	return attempt
}

func (s *settlementService) enqueueReceipt(ctx context.Context, attempt *model.SettlementAttempt, guestEmail string, remaining decimal.Decimal) {
	if s.receiptRepo == nil || s.dispatcher == nil {
		return
	}
	receipt := &model.Receipt{
		AttemptID:        attempt.ID,
		BookingID:        attempt.BookingID,
		GuestEmail:       guestEmail,
		Amount:           attempt.Amount,
		RemainingBalance: remaining,
		Status:           "pending",
	}
	if err := s.receiptRepo.Create(ctx, receipt); err != nil {
		log.Warn().Err(err).Str("booking_id", attempt.BookingID).Msg("failed to create receipt record")
		return
	}
	payload := worker.ReceiptJobPayload{ReceiptID: receipt.ID.String()}
	if err := s.dispatcher.EnqueueReceipt(ctx, payload); err != nil {
		log.Warn().Err(err).Str("receipt_id", receipt.ID.String()).Msg("failed to enqueue receipt job")
	}
}
