package worker

// retry_cron.go
// Background goroutine that periodically re-enqueues receipt deliveries stuck
// in status='pending' with a next_retry_at in the past. Only receipt delivery
// is retried this way — settlement submissions are never retried automatically.

import (
	"context"
	"time"

	"frontdesk/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval = 30 * time.Second
	retryBatchSize    = 10
)

// StartRetryCron launches a background goroutine that ticks every 30s, queries
// receipts due for another delivery attempt, and puts them back on the queue.
// It respects the context for graceful shutdown.
func StartRetryCron(ctx context.Context, receiptRepo repository.ReceiptRepository, dispatcher *Dispatcher) {
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				processRetries(ctx, receiptRepo, dispatcher)
			}
		}
	}()
}

func processRetries(ctx context.Context, receiptRepo repository.ReceiptRepository, dispatcher *Dispatcher) {
	now := time.Now()
	receipts, err := receiptRepo.ListPendingRetries(ctx, now, retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query pending retries")
		return
	}

	if len(receipts) == 0 {
		return
	}

	log.Info().Int("count", len(receipts)).Msg("retry_cron: re-enqueueing pending receipts")

	for i := range receipts {
		receipt := &receipts[i]

		// Clear the schedule before re-enqueueing so a slow worker doesn't
		// race the next tick into a duplicate job.
		receipt.NextRetryAt = nil
		if err := receiptRepo.Update(ctx, receipt); err != nil {
			log.Error().Err(err).Str("receipt_id", receipt.ID.String()).Msg("retry_cron: failed to clear schedule")
			continue
		}

		payload := ReceiptJobPayload{ReceiptID: receipt.ID.String()}
		if err := dispatcher.EnqueueReceipt(ctx, payload); err != nil {
			log.Error().Err(err).Str("receipt_id", receipt.ID.String()).Msg("retry_cron: failed to enqueue")
		}
	}
}
