package worker

import (
	"context"
	"encoding/json"

	"frontdesk/internal/infra"
	"frontdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	ReceiptID string `json:"receipt_id"`
	ToEmail   string `json:"to_email"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	PDFPath   string `json:"pdf_path"`
}

// EmailWorker sends receipt emails via SMTP and settles the receipt's
// delivery state: sent on success, retry-scheduled on failure.
type EmailWorker struct {
	mailer      *infra.Mailer
	receiptRepo repository.ReceiptRepository
	rdb         *redis.Client
}

func NewEmailWorker(mailer *infra.Mailer, receiptRepo repository.ReceiptRepository, rdb *redis.Client) *EmailWorker {
	return &EmailWorker{mailer: mailer, receiptRepo: receiptRepo, rdb: rdb}
}

func (w *EmailWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("email_worker: invalid payload")
		return
	}

	receiptID, err := uuid.Parse(payload.ReceiptID)
	if err != nil {
		log.Error().Str("receipt_id", payload.ReceiptID).Msg("email_worker: invalid receipt_id")
		return
	}
	receipt, err := w.receiptRepo.FindByID(ctx, receiptID)
	if err != nil {
		log.Error().Err(err).Str("receipt_id", payload.ReceiptID).Msg("email_worker: receipt not found")
		return
	}

	if err := w.mailer.SendReceipt(payload.ToEmail, payload.Subject, payload.Body, payload.PDFPath); err != nil {
		log.Warn().Err(err).Str("to", payload.ToEmail).Msg("email_worker: send failed")
		ScheduleReceiptRetry(ctx, w.rdb, w.receiptRepo, receipt, err)
		return
	}

	receipt.Status = "sent"
	receipt.NextRetryAt = nil
	receipt.LastError = nil
	if err := w.receiptRepo.Update(ctx, receipt); err != nil {
		log.Error().Err(err).Str("receipt_id", payload.ReceiptID).Msg("email_worker: failed to mark receipt sent")
		return
	}
	log.Info().Str("to", payload.ToEmail).Str("receipt_id", payload.ReceiptID).Msg("email_worker: receipt delivered")
}
