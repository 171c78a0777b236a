package domain

import "time"

// DiscountType coupon discount kind
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon discount code definition. UsedCount never exceeds MaxUses when
// MaxUses > 0; redemption is a single atomic conditional increment.
type Coupon struct {
	ID   uint64 `gorm:"primaryKey" json:"id"`
	Code string `gorm:"column:code;size:50;uniqueIndex;not null" json:"code"`

	DiscountType DiscountType `gorm:"column:discount_type;size:20;not null" json:"discount_type"`
	// Percent (1-100) for percentage coupons, centavos for fixed ones
	DiscountValue int64 `gorm:"column:discount_value;not null" json:"discount_value"`

	MaxUses   int64 `gorm:"column:max_uses;default:0" json:"max_uses"` // 0 = unlimited
	UsedCount int64 `gorm:"column:used_count;default:0" json:"used_count"`

	ExpiresAt *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
	IsActive  bool       `gorm:"column:is_active;default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName GORM table name
func (Coupon) TableName() string {
	return "coupons"
}

// ApplyCouponRequest coupon application DTO
type ApplyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// CouponValidation result of validating a code against a subtotal.
// Invalid codes are data, not errors, so the UI can show the message.
type CouponValidation struct {
	Valid         bool   `json:"valid"`
	Code          string `json:"code"`
	DiscountCents int64  `json:"discount_cents"`
	Message       string `json:"message,omitempty"`
}
