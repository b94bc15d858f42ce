package handler

import (
	"errors"
	"net/http"
	"strconv"

	"frontdesk/internal/apierror"
	"frontdesk/internal/dto"
	"frontdesk/internal/infra"
	"frontdesk/internal/middleware"
	"frontdesk/internal/service"

	"github.com/gin-gonic/gin"
)

type PaymentsHandler struct {
	settlements service.SettlementService
	summaries   service.SummaryService
}

func NewPaymentsHandler(settlements service.SettlementService, summaries service.SummaryService) *PaymentsHandler {
	return &PaymentsHandler{settlements: settlements, summaries: summaries}
}

// Summary godoc
// @Summary      Payment summary for a booking
// @Description  Returns the booking's financials and payment flags, served from cache when fresh.
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Booking ID"
// @Success      200 {object} dto.SummaryResponse
// @Failure      502 {object} apierror.APIError
// @Router       /v1/bookings/{id}/payments/summary [get]
func (h *PaymentsHandler) Summary(c *gin.Context) {
	bookingID := c.Param("id")
	sess := middleware.GetSession(c)

	summary, err := h.summaries.Get(c.Request.Context(), sess, bookingID)
	if err != nil {
		writeSettlementError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SummaryResponse{
		BookingID:           bookingID,
		Financials:          summary.Financials,
		Flags:               summary.Flags(),
		HasExistingPayments: summary.HasExistingPayments,
	})
}

// Options godoc
// @Summary      Offerable settlement types
// @Description  Returns the settlement types the front desk may offer for this booking, with suggested amounts. Empty when the booking is fully paid.
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Booking ID"
// @Success      200 {object} dto.OptionsResponse
// @Failure      502 {object} apierror.APIError
// @Router       /v1/bookings/{id}/payments/options [get]
func (h *PaymentsHandler) Options(c *gin.Context) {
	bookingID := c.Param("id")
	sess := middleware.GetSession(c)

	resp, err := h.settlements.Options(c.Request.Context(), sess, bookingID)
	if err != nil {
		writeSettlementError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Quote godoc
// @Summary      Validate an amount and preview the remaining balance
// @Description  Runs the settlement amount rules without submitting anything. Safe to call on every keystroke.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string           true "Booking ID"
// @Param        body body dto.QuoteRequest true "Settlement type and amount"
// @Success      200 {object} dto.QuoteResponse
// @Failure      422 {object} apierror.ValidationError
// @Router       /v1/bookings/{id}/payments/quote [post]
func (h *PaymentsHandler) Quote(c *gin.Context) {
	bookingID := c.Param("id")
	sess := middleware.GetSession(c)

	var req dto.QuoteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.settlements.QuoteFor(c.Request.Context(), sess, bookingID, req)
	if err != nil {
		writeSettlementError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Settle godoc
// @Summary      Record a payment against a booking
// @Description  Validates the amount, submits the settlement to the booking service exactly once, records the attempt and invalidates cached summaries. Never retried automatically.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string            true "Booking ID"
// @Param        body body dto.SettleRequest true "Settlement details"
// @Success      201 {object} dto.SettleResponse
// @Failure      401 {object} apierror.APIError "Session expired upstream; dashboard must re-authenticate"
// @Failure      409 {object} apierror.APIError "Rejected by the booking service, or a submission is already in flight"
// @Failure      422 {object} apierror.ValidationError
// @Failure      502 {object} apierror.APIError "Booking service unreachable; payment state unknown"
// @Router       /v1/bookings/{id}/payments/settle [post]
func (h *PaymentsHandler) Settle(c *gin.Context) {
	bookingID := c.Param("id")
	sess := middleware.GetSession(c)

	var req dto.SettleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.settlements.Settle(c.Request.Context(), sess, bookingID, req)
	if err != nil {
		writeSettlementError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Attempts godoc
// @Summary      Settlement attempt audit trail
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string true  "Booking ID"
// @Param        limit query int    false "Max rows (default 50)"
// @Success      200 {array} dto.AttemptResponse
// @Router       /v1/bookings/{id}/payments/attempts [get]
func (h *PaymentsHandler) Attempts(c *gin.Context) {
	bookingID := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	resp, err := h.settlements.Attempts(c.Request.Context(), bookingID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("failed to load settlement attempts"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// writeSettlementError maps service errors onto the response contract the
// dashboard is built against:
//
//	rule violation      → 422, field-level message, nothing was submitted
//	already in flight   → 409, wait for the current submission
//	business rejection  → 409, upstream's message verbatim
//	auth failure        → 401 with code "session_reset" — the dashboard clears
//	                      its session; nothing is retried
//	transport failure   → 502, payment state unknown, operator must verify
//	                      before resubmitting
func writeSettlementError(c *gin.Context, err error) {
	var rule *service.RuleError
	if errors.As(err, &rule) {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{rule.Field: rule.Message}))
		return
	}

	switch {
	case errors.Is(err, service.ErrSettlementInFlight),
		errors.Is(err, service.ErrNotAcceptingPayments),
		errors.Is(err, service.ErrDownPaymentTaken):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
		return
	}

	if ue, ok := infra.AsUpstreamError(err); ok {
		switch ue.Kind {
		case infra.KindAuth:
			c.JSON(http.StatusUnauthorized, apierror.NewCoded("Your session has expired. Please sign in again.", "session_reset"))
		case infra.KindBusiness:
			c.JSON(http.StatusConflict, apierror.New(ue.Message))
		default:
			c.JSON(http.StatusBadGateway, apierror.New("The booking service could not be reached. The payment may not have been recorded — verify before trying again."))
		}
		return
	}

	c.JSON(http.StatusInternalServerError, apierror.New("internal error"))
}
