package repository

import (
	"context"

	"frontdesk/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AttemptRepository interface {
	Create(ctx context.Context, a *model.SettlementAttempt) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.SettlementAttempt, error)
	ListByBooking(ctx context.Context, bookingID string, limit int) ([]model.SettlementAttempt, error)
	FindByTransactionReference(ctx context.Context, ref string) (*model.SettlementAttempt, error)
}

type attemptRepo struct{ db *gorm.DB }

func NewAttemptRepository(db *gorm.DB) AttemptRepository { return &attemptRepo{db: db} }

func (r *attemptRepo) Create(ctx context.Context, a *model.SettlementAttempt) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *attemptRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.SettlementAttempt, error) {
	var a model.SettlementAttempt
	err := r.db.WithContext(ctx).First(&a, id).Error
	return &a, err
}

func (r *attemptRepo) ListByBooking(ctx context.Context, bookingID string, limit int) ([]model.SettlementAttempt, error) {
	var attempts []model.SettlementAttempt
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at DESC").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

func (r *attemptRepo) FindByTransactionReference(ctx context.Context, ref string) (*model.SettlementAttempt, error) {
	var a model.SettlementAttempt
	err := r.db.WithContext(ctx).Where("transaction_reference = ?", ref).First(&a).Error
	return &a, err
}
