package repository

import (
	"context"
	"errors"

	"github.com/zapdesk/zapdesk-backend/internal/domain"
	"gorm.io/gorm"
)

// CouponRepository handles coupon persistence. Redemption is a single
// conditional UPDATE, not read-then-write, so two racing redeemers of a
// nearly-exhausted coupon cannot both succeed.
type CouponRepository struct {
	db *gorm.DB
}

// NewCouponRepository creates a new CouponRepository
func NewCouponRepository(db *gorm.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// AutoMigrate creates the coupon table
func (r *CouponRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Coupon{})
}

func (r *CouponRepository) conn(ctx context.Context) *gorm.DB {
	return txFrom(ctx, r.db).WithContext(ctx)
}

// Create creates a coupon
func (r *CouponRepository) Create(ctx context.Context, coupon *domain.Coupon) error {
	return r.conn(ctx).Create(coupon).Error
}

// FindByCode retrieves a coupon by code
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var coupon domain.Coupon
	err := r.conn(ctx).Where("code = ?", code).First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

// Redeem atomically increments used_count while the coupon still has
// uses left. Returns false when the guard fails (exhausted or inactive).
func (r *CouponRepository) Redeem(ctx context.Context, code string) (bool, error) {
	result := r.conn(ctx).Model(&domain.Coupon{}).
		Where("code = ? AND is_active = ? AND (max_uses = 0 OR used_count < max_uses)", code, true).
		Update("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
