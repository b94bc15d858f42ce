package worker

// receipt_worker.go
// Processes receipt jobs from QueueReceipt: renders the PDF receipt for a
// successful settlement and enqueues the guest email. Delivery failures
// schedule a retry (picked up by the retry cron); the settlement itself is
// already recorded upstream and is never re-submitted from here.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"frontdesk/internal/infra"
	"frontdesk/internal/model"
	"frontdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ReceiptJobPayload is the job envelope sent to QueueReceipt.
type ReceiptJobPayload struct {
	ReceiptID string `json:"receipt_id"`
}

// ReceiptWorker renders guest receipts and hands them to the email queue.
type ReceiptWorker struct {
	receiptRepo    repository.ReceiptRepository
	attemptRepo    repository.AttemptRepository
	dispatcher     *Dispatcher
	rdb            *redis.Client
	hotelName      string
	pdfStoragePath string
}

func NewReceiptWorker(
	receiptRepo repository.ReceiptRepository,
	attemptRepo repository.AttemptRepository,
	dispatcher *Dispatcher,
	rdb *redis.Client,
	hotelName string,
	pdfStoragePath string,
) *ReceiptWorker {
	return &ReceiptWorker{
		receiptRepo:    receiptRepo,
		attemptRepo:    attemptRepo,
		dispatcher:     dispatcher,
		rdb:            rdb,
		hotelName:      hotelName,
		pdfStoragePath: pdfStoragePath,
	}
}

// Process handles a single receipt job:
//  1. Parse ReceiptJobPayload from the job envelope
//  2. Load the receipt and its originating settlement attempt
//  3. Generate the PDF (skipped if a previous attempt already produced it)
//  4. Enqueue the email job — the email worker marks the receipt sent
//  5. On failure: schedule a retry for the cron, DLQ after MaxReceiptRetries
func (w *ReceiptWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload ReceiptJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("receipt_worker: invalid payload")
		return
	}

	receiptID, err := uuid.Parse(payload.ReceiptID)
	if err != nil {
		log.Error().Str("receipt_id", payload.ReceiptID).Msg("receipt_worker: invalid receipt_id")
		return
	}

	receipt, err := w.receiptRepo.FindByID(ctx, receiptID)
	if err != nil {
		log.Error().Err(err).Str("receipt_id", payload.ReceiptID).Msg("receipt_worker: receipt not found")
		return
	}
	if receipt.Status != "pending" {
		return
	}

	if err := w.deliver(ctx, receipt); err != nil {
		ScheduleReceiptRetry(ctx, w.rdb, w.receiptRepo, receipt, err)
	}
}

func (w *ReceiptWorker) deliver(ctx context.Context, receipt *model.Receipt) error {
	attempt, err := w.attemptRepo.FindByID(ctx, receipt.AttemptID)
	if err != nil {
		return fmt.Errorf("load attempt %s: %w", receipt.AttemptID, err)
	}

	if receipt.PDFPath == nil {
		path, err := infra.GenerateReceiptPDF(infra.ReceiptData{
			HotelName:        w.hotelName,
			BookingID:        receipt.BookingID,
			SettlementType:   attempt.SettlementType,
			PaymentMethod:    attempt.PaymentMethod,
			Amount:           attempt.Amount.StringFixed(2),
			RemainingBalance: receipt.RemainingBalance.StringFixed(2),
			TransactionRef:   attempt.TransactionReference,
			PaidAt:           attempt.CreatedAt.Format("02 Jan 2006 15:04"),
		}, w.pdfStoragePath)
		if err != nil {
			return fmt.Errorf("generate PDF: %w", err)
		}
		receipt.PDFPath = &path
		if err := w.receiptRepo.Update(ctx, receipt); err != nil {
			return fmt.Errorf("persist PDF path: %w", err)
		}
		log.Info().Str("pdf", path).Str("receipt_id", receipt.ID.String()).Msg("receipt_worker: PDF generated")
	}

	emailJob := EmailJobPayload{
		ReceiptID: receipt.ID.String(),
		ToEmail:   receipt.GuestEmail,
		Subject:   fmt.Sprintf("%s — Payment Receipt for Booking %s", w.hotelName, receipt.BookingID),
		Body: fmt.Sprintf("Please find your payment receipt attached.\nAmount paid: PHP %s\nRemaining balance: PHP %s",
			receipt.Amount.StringFixed(2), receipt.RemainingBalance.StringFixed(2)),
		PDFPath: *receipt.PDFPath,
	}
	if err := w.dispatcher.EnqueueEmail(ctx, emailJob); err != nil {
		return fmt.Errorf("enqueue email: %w", err)
	}
	return nil
}

// ScheduleReceiptRetry records a failed delivery attempt. The retry cron picks
// the receipt up again after the backoff; after MaxReceiptRetries the receipt
// is marked failed and parked in the DLQ for manual inspection.
func ScheduleReceiptRetry(ctx context.Context, rdb *redis.Client, repo repository.ReceiptRepository, receipt *model.Receipt, cause error) {
	receipt.RetryCount++
	errMsg := cause.Error()
	receipt.LastError = &errMsg

	if receipt.RetryCount >= model.MaxReceiptRetries {
		receipt.Status = "failed"
		receipt.NextRetryAt = nil
		log.Error().
			Str("receipt_id", receipt.ID.String()).
			Int("retries", receipt.RetryCount).
			Msg("receipt: max retries exceeded, moving to DLQ")

		payload := fmt.Sprintf(`{"receipt_id":"%s","booking_id":"%s"}`, receipt.ID, receipt.BookingID)
		SendToDLQ(ctx, rdb, QueueReceipt, "receipt", []byte(payload),
			fmt.Sprintf("max retries (%d) exceeded: %s", model.MaxReceiptRetries, errMsg),
			receipt.RetryCount)
	} else {
		nextRetry := time.Now().Add(computeRetryBackoff(receipt.RetryCount))
		receipt.NextRetryAt = &nextRetry
		log.Warn().
			Str("receipt_id", receipt.ID.String()).
			Int("retry_count", receipt.RetryCount).
			Time("next_retry_at", nextRetry).
			Msg("receipt: delivery failed, scheduled next attempt")
	}

	if err := repo.Update(ctx, receipt); err != nil {
		log.Error().Err(err).Str("receipt_id", receipt.ID.String()).Msg("receipt: failed to persist retry state")
	}
}

// computeRetryBackoff returns the wait before retry n: 1m, 2m, 4m, 8m, …
func computeRetryBackoff(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	return time.Duration(1<<uint(retryCount-1)) * time.Minute
}
