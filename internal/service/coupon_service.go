package service

import (
	"context"
	"fmt"

	"github.com/zapdesk/zapdesk-backend/internal/common"
	"github.com/zapdesk/zapdesk-backend/internal/domain"
	pkglogger "github.com/zapdesk/zapdesk-backend/pkg/logger"
)

// CouponService validates and redeems discount codes. Validation failures
// are data, not errors; only Redeem can fail, and only when a race
// exhausted the coupon between validate and redeem.
type CouponService struct {
	store CouponStore
	clock Clock
}

// NewCouponService creates a new CouponService
func NewCouponService(store CouponStore, clock Clock) *CouponService {
	return &CouponService{store: store, clock: clock}
}

// Validate checks a code against a subtotal and computes the discount.
// The discount never exceeds the subtotal: a coupon cannot make a total
// negative.
func (s *CouponService) Validate(ctx context.Context, code string, subtotalCents int64) (*domain.CouponValidation, error) {
	if subtotalCents < 0 {
		return nil, fmt.Errorf("%w: negative subtotal", common.ErrInvalidInput)
	}

	coupon, err := s.store.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("find coupon: %w", err)
	}

	invalid := func(msg string) *domain.CouponValidation {
		return &domain.CouponValidation{Valid: false, Code: code, Message: msg}
	}

	switch {
	case coupon == nil:
		return invalid("unknown coupon code"), nil
	case !coupon.IsActive:
		return invalid("coupon is inactive"), nil
	case coupon.ExpiresAt != nil && !coupon.ExpiresAt.After(s.clock.Now()):
		return invalid("coupon has expired"), nil
	case coupon.MaxUses > 0 && coupon.UsedCount >= coupon.MaxUses:
		return invalid("coupon has no remaining uses"), nil
	}

	var discount int64
	switch coupon.DiscountType {
	case domain.DiscountPercentage:
		product, err := mulChecked(subtotalCents, coupon.DiscountValue)
		if err != nil {
			return nil, err
		}
		discount = product / 100 // rounded down
	case domain.DiscountFixed:
		discount = coupon.DiscountValue
		if discount > subtotalCents {
			discount = subtotalCents
		}
	default:
		return invalid("unsupported discount type"), nil
	}

	return &domain.CouponValidation{
		Valid:         true,
		Code:          code,
		DiscountCents: discount,
	}, nil
}

// Redeem atomically increments the coupon's use counter. Fails with
// ErrCouponExhausted when a concurrent redeemer took the last use.
func (s *CouponService) Redeem(ctx context.Context, code string) error {
	coupon, err := s.store.FindByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("find coupon: %w", err)
	}
	if coupon == nil {
		return fmt.Errorf("%w: unknown code %q", common.ErrCouponInvalid, code)
	}

	redeemed, err := s.store.Redeem(ctx, code)
	if err != nil {
		return fmt.Errorf("redeem coupon: %w", err)
	}
	if !redeemed {
		return fmt.Errorf("%w: %q", common.ErrCouponExhausted, code)
	}

	pkglogger.GetLogger().Info().
		Str("code", code).
		Msg("coupon redeemed")

	return nil
}
