package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxReceiptRetries before a receipt delivery is parked in the DLQ.
const MaxReceiptRetries = 5

// Receipt tracks the guest-facing payment receipt generated after a successful
// settlement. Delivery is asynchronous and retryable; the settlement itself
// never is.
// Status: "pending" | "sent" | "failed"
type Receipt struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AttemptID  uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null"`
	BookingID  string          `gorm:"type:varchar(64);index;not null"`
	GuestEmail string          `gorm:"not null"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// RemainingBalance at the time of settlement, captured for the receipt body.
	RemainingBalance decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status           string          `gorm:"type:varchar(20);not null;default:'pending'"`
	PDFPath          *string
	RetryCount       int        `gorm:"not null;default:0"`
	NextRetryAt      *time.Time `gorm:"index"`
	LastError        *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
