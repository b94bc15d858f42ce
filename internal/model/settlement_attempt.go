package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementAttempt is the gateway's audit row for every settlement submission,
// whether the booking service accepted it or not. The booking service remains
// the system of record for payments; this table exists so the front desk can
// reconcile what was attempted from this terminal.
// Outcome: "accepted" | "rejected" | "failed"
// Attempts are immutable — never updated or deleted after creation.
type SettlementAttempt struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BookingID            string          `gorm:"type:varchar(64);index;not null"`
	OperatorID           uuid.UUID       `gorm:"type:uuid;not null"`
	SettlementType       SettlementType  `gorm:"type:varchar(30);not null"`
	PaymentMethod        PaymentMethod   `gorm:"type:varchar(20);not null"`
	Amount               decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency             string          `gorm:"type:varchar(3);not null;default:'PHP'"`
	TransactionReference string          `gorm:"type:varchar(64);uniqueIndex;not null"`
	Notes                *string
	Outcome              string `gorm:"type:varchar(20);not null"`
	// UpstreamMessage carries the booking service's message verbatim on rejection.
	UpstreamMessage *string
	CreatedAt       time.Time
}
