package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// GormPaymentStore is the relational implementation of the payment record
// store the reconciler writes through.
type GormPaymentStore struct {
	db *gorm.DB
}

func NewGormPaymentStore(db *gorm.DB) *GormPaymentStore {
	return &GormPaymentStore{db: db}
}

func (s *GormPaymentStore) FindIDByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (uint, error) {
	var pmt Payment
	err := s.db.WithContext(ctx).
		Select("id").
		Where("checkout_request_id = ?", checkoutRequestID).
		First(&pmt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return pmt.ID, nil
}

// MarkPaid settles the payment with a single conditional update. A payment
// already confirmed matches zero rows, which keeps at-least-once callback
// delivery from double-crediting.
func (s *GormPaymentStore) MarkPaid(ctx context.Context, paymentID uint, receipt string) (bool, error) {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&Payment{}).
		Where("id = ? AND state <> ?", paymentID, PSTATE_CONFIRMED).
		Updates(map[string]interface{}{
			"is_paid":        true,
			"transaction_id": receipt,
			"state":          PSTATE_CONFIRMED,
			"payment_date":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	return s.exists(ctx, paymentID)
}

// MarkFailed transitions an awaiting payment to failed. Paid fields are left
// untouched so a new initiate can retry the same record.
func (s *GormPaymentStore) MarkFailed(ctx context.Context, paymentID uint) (bool, error) {
	res := s.db.WithContext(ctx).Model(&Payment{}).
		Where("id = ? AND state = ?", paymentID, PSTATE_AWAITING).
		Update("state", PSTATE_FAILED)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	return s.exists(ctx, paymentID)
}

// ExpireStale moves payments stuck in awaiting_callback past the cutoff to
// expired. Meant to be driven by an external sweep; nothing here schedules
// it.
func (s *GormPaymentStore) ExpireStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := s.db.WithContext(ctx).Model(&Payment{}).
		Where("state = ? AND updated_at < ?", PSTATE_AWAITING, cutoff).
		Update("state", PSTATE_EXPIRED)
	return res.RowsAffected, res.Error
}

func (s *GormPaymentStore) exists(ctx context.Context, paymentID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Payment{}).
		Where("id = ?", paymentID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
