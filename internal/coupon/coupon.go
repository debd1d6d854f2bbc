// Package coupon validates discount codes and consumes their usage at order
// commit. Validation is side-effect free; usage_count only moves inside the
// order-create transaction, through a conditional update that closes the
// check-then-act race between concurrent checkouts.
package coupon

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/andesrent/rental-admin/internal/models"
	"github.com/andesrent/rental-admin/internal/pricing"
)

const (
	MsgNotFound     = "coupon not found"
	MsgNotActive    = "coupon is not active"
	MsgExpired      = "coupon expired"
	MsgLimitReached = "coupon usage limit reached"
	MsgPerUserLimit = "coupon usage limit reached for this user"
	MsgBelowMinimum = "order subtotal below coupon minimum"
)

var (
	ErrExhausted    = errors.New(MsgLimitReached)
	ErrPerUserLimit = errors.New(MsgPerUserLimit)
)

type Service struct {
	DB *gorm.DB
}

type ValidationResult struct {
	IsValid        bool           `json:"is_valid"`
	Coupon         *models.Coupon `json:"coupon_data,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	DiscountAmount float64        `json:"discount_amount,omitempty"`
}

func reject(msg string) *ValidationResult {
	return &ValidationResult{IsValid: false, ErrorMessage: msg}
}

// Validate checks a code against status, expiry, usage limits and the minimum
// order amount, and computes the clamped discount on success. items may be
// nil when only a subtotal is known (the standalone validate endpoint); in
// that case a fixed_product coupon degrades to a flat cart discount.
func (s *Service) Validate(ctx context.Context, code string, subtotal float64, userID uint, items []pricing.LineItem) (*ValidationResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return reject(MsgNotFound), nil
	}

	var cpn models.Coupon
	if err := s.DB.WithContext(ctx).Where("UPPER(code) = ?", code).First(&cpn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reject(MsgNotFound), nil
		}
		return nil, err
	}

	if cpn.Status != models.CouponStatusPublish {
		return reject(MsgNotActive), nil
	}
	if cpn.DateExpires != nil && cpn.DateExpires.Before(time.Now().UTC()) {
		return reject(MsgExpired), nil
	}
	if cpn.UsageLimit > 0 && cpn.UsageCount >= cpn.UsageLimit {
		return reject(MsgLimitReached), nil
	}
	if cpn.UsageLimitPerUser > 0 && userID != 0 {
		var used int64
		if err := s.DB.WithContext(ctx).Model(&models.CouponRedemption{}).
			Where("coupon_id = ? AND user_id = ?", cpn.ID, userID).
			Count(&used).Error; err != nil {
			return nil, err
		}
		if used >= int64(cpn.UsageLimitPerUser) {
			return reject(MsgPerUserLimit), nil
		}
	}
	if subtotal < cpn.MinimumAmount {
		return reject(MsgBelowMinimum), nil
	}

	discount := pricing.ComputeDiscount(cpn.DiscountType, cpn.Amount, subtotal, cpn.MaximumAmount, matching(items, subtotal))

	return &ValidationResult{IsValid: true, Coupon: &cpn, DiscountAmount: discount}, nil
}

func matching(items []pricing.LineItem, subtotal float64) pricing.Matching {
	if len(items) == 0 {
		return pricing.Matching{Units: 1, Subtotal: subtotal}
	}
	m := pricing.Matching{}
	for _, it := range items {
		m.Units += int(it.Quantity)
		m.Subtotal = pricing.Round2(m.Subtotal + pricing.Round2(it.UnitPrice*float64(it.Quantity)))
	}
	return m
}

// Redeem consumes one usage inside tx. The guarded update increments
// usage_count only while it is under usage_limit, so two concurrent commits
// cannot both take the last slot.
func (s *Service) Redeem(ctx context.Context, tx *gorm.DB, cpn *models.Coupon, userID, orderID uint, amount float64) error {
	if cpn.UsageLimitPerUser > 0 {
		var used int64
		if err := tx.WithContext(ctx).Model(&models.CouponRedemption{}).
			Where("coupon_id = ? AND user_id = ?", cpn.ID, userID).
			Count(&used).Error; err != nil {
			return err
		}
		if used >= int64(cpn.UsageLimitPerUser) {
			return ErrPerUserLimit
		}
	}

	res := tx.WithContext(ctx).Model(&models.Coupon{}).
		Where("id = ? AND (usage_limit = 0 OR usage_count < usage_limit)", cpn.ID).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrExhausted
	}

	redemption := models.CouponRedemption{
		CouponID: cpn.ID,
		UserID:   userID,
		OrderID:  orderID,
		Amount:   amount,
	}
	return tx.WithContext(ctx).Create(&redemption).Error
}
