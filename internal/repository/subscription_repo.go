package repository

import (
	"context"
	"errors"
	"time"

	"github.com/zapdesk/zapdesk-backend/internal/domain"
	"gorm.io/gorm"
)

// SubscriptionRepository handles subscription and plan-change-history persistence
type SubscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new SubscriptionRepository
func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// AutoMigrate creates subscription tables
func (r *SubscriptionRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Subscription{}, &domain.PlanChangeHistory{})
}

func (r *SubscriptionRepository) conn(ctx context.Context) *gorm.DB {
	return txFrom(ctx, r.db).WithContext(ctx)
}

// ========================================
// Subscriptions
// ========================================

// FindLiveByTenantID retrieves the tenant's trial/active/past_due subscription
func (r *SubscriptionRepository) FindLiveByTenantID(ctx context.Context, tenantID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := r.conn(ctx).
		Where("tenant_id = ? AND status IN ?", tenantID,
			[]domain.SubscriptionStatus{domain.SubscriptionTrial, domain.SubscriptionActive, domain.SubscriptionPastDue}).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// FindLatestByTenantID retrieves the most recent subscription row, live or not
func (r *SubscriptionRepository) FindLatestByTenantID(ctx context.Context, tenantID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := r.conn(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC, id DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// Create creates a new subscription
func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	return r.conn(ctx).Create(sub).Error
}

// Update updates an existing subscription
func (r *SubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	return r.conn(ctx).Save(sub).Error
}

// ListDueForSweep retrieves live subscriptions whose period or trial has
// elapsed, for the periodic sweep
func (r *SubscriptionRepository) ListDueForSweep(ctx context.Context, now time.Time, limit int) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := r.conn(ctx).
		Where("status IN ? AND (current_period_end <= ? OR (status = ? AND trial_ends_at IS NOT NULL AND trial_ends_at <= ?))",
			[]domain.SubscriptionStatus{domain.SubscriptionTrial, domain.SubscriptionActive, domain.SubscriptionPastDue},
			now, domain.SubscriptionTrial, now).
		Order("current_period_end ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

// ========================================
// Plan change history (append-only)
// ========================================

// CreateChange appends a plan change history row
func (r *SubscriptionRepository) CreateChange(ctx context.Context, change *domain.PlanChangeHistory) error {
	return r.conn(ctx).Create(change).Error
}

// ListChanges retrieves the change history for a tenant, newest first
func (r *SubscriptionRepository) ListChanges(ctx context.Context, tenantID string, limit, offset int) ([]domain.PlanChangeHistory, int64, error) {
	var changes []domain.PlanChangeHistory
	var total int64

	query := r.conn(ctx).Model(&domain.PlanChangeHistory{}).Where("tenant_id = ?", tenantID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&changes).Error
	return changes, total, err
}
