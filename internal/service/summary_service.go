package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"frontdesk/internal/infra"
	"frontdesk/internal/model"
	"frontdesk/internal/session"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// BookingAPI is the slice of the booking-service client the services depend on.
// *infra.BookingClient satisfies it; tests substitute an in-memory stub.
type BookingAPI interface {
	GetPaymentSummary(ctx context.Context, sess *session.Session, bookingID string) (*infra.PaymentSummaryPayload, error)
	ListPayments(ctx context.Context, sess *session.Session, bookingID string) ([]model.PaymentRecord, error)
	Settle(ctx context.Context, sess *session.Session, bookingID string, payload infra.SettlePayload) (*infra.SettleConfirmation, error)
}

// Redis cache keys. The list key covers any dashboard view that shows payment
// status across bookings; it is invalidated wholesale on settlement success.
const (
	summaryCachePrefix = "payments:summary:"
	detailCachePrefix  = "bookings:detail:"
	listCacheKey       = "bookings:list"
)

// BookingSummary is what the gateway knows about a booking's money state at a
// point in time. Cached as a unit so flags and financials never disagree.
type BookingSummary struct {
	Financials          model.BookingFinancials `json:"financials"`
	Cancelled           bool                    `json:"cancelled"`
	HasExistingPayments bool                    `json:"has_existing_payments"`
	FetchedAt           time.Time               `json:"fetched_at"`
}

// Flags derives the UI booleans from the summary.
func (s *BookingSummary) Flags() model.PaymentFlags {
	return model.DeriveFlags(s.Financials, s.Cancelled)
}

type SummaryService interface {
	// Get returns the booking's summary, from cache when fresh enough.
	Get(ctx context.Context, sess *session.Session, bookingID string) (*BookingSummary, error)
	// GetFresh always refetches from the booking service, bypassing the cache.
	// Used immediately before a settlement submission.
	GetFresh(ctx context.Context, sess *session.Session, bookingID string) (*BookingSummary, error)
	// Invalidate drops the booking's cached summary, its detail entry, and the
	// shared booking list cache. Called after every successful settlement.
	Invalidate(ctx context.Context, bookingID string)
}

type summaryService struct {
	api BookingAPI
	rdb *redis.Client
	ttl time.Duration

	// mu serializes cache writes per booking so that overlapping refreshes
	// resolve by response arrival: whichever fetch completes last is what the
	// cache (and therefore the dashboard) ends up showing.
	mu sync.Mutex
}

func NewSummaryService(api BookingAPI, rdb *redis.Client, ttl time.Duration) SummaryService {
	return &summaryService{api: api, rdb: rdb, ttl: ttl}
}

func (s *summaryService) Get(ctx context.Context, sess *session.Session, bookingID string) (*BookingSummary, error) {
	if cached := s.readCache(ctx, bookingID); cached != nil {
		return cached, nil
	}
	return s.GetFresh(ctx, sess, bookingID)
}

func (s *summaryService) GetFresh(ctx context.Context, sess *session.Session, bookingID string) (*BookingSummary, error) {
	payload, err := s.api.GetPaymentSummary(ctx, sess, bookingID)
	if err != nil {
		return nil, err
	}

	records, err := s.api.ListPayments(ctx, sess, bookingID)
	if err != nil {
		return nil, err
	}

	summary := &BookingSummary{
		Financials: model.BookingFinancials{
			TotalAmount:   payload.TotalAmount,
			TotalPaid:     payload.TotalPaid,
			BalanceAmount: payload.BalanceAmount,
		},
		Cancelled:           payload.BookingStatus == "cancelled",
		HasExistingPayments: model.HasExistingPayments(records),
		FetchedAt:           time.Now(),
	}

	// Last response wins: apply at arrival time, serialized per service so a
	// slow earlier fetch landing after a later one simply overwrites with its
	// own arrival order — the cache always holds the most recently completed
	// fetch, not the most recently issued one.
	s.mu.Lock()
	s.writeCache(ctx, bookingID, summary)
	s.mu.Unlock()

	return summary, nil
}

func (s *summaryService) Invalidate(ctx context.Context, bookingID string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx,
		summaryCachePrefix+bookingID,
		detailCachePrefix+bookingID,
		listCacheKey,
	).Err(); err != nil {
		log.Warn().Err(err).Str("booking_id", bookingID).Msg("summary cache invalidation failed")
	}
}

func (s *summaryService) readCache(ctx context.Context, bookingID string) *BookingSummary {
	if s.rdb == nil {
		return nil
	}
	data, err := s.rdb.Get(ctx, summaryCachePrefix+bookingID).Bytes()
	if err != nil {
		return nil
	}
	var summary BookingSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil
	}
	return &summary
}

func (s *summaryService) writeCache(ctx context.Context, bookingID string, summary *BookingSummary) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, summaryCachePrefix+bookingID, data, s.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("booking_id", bookingID).Msg("summary cache write failed")
	}
}
