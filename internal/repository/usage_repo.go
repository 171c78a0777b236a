package repository

import (
	"context"
	"errors"

	"github.com/zapdesk/zapdesk-backend/internal/domain"
	"gorm.io/gorm"
)

// UsageRepository handles usage record persistence. Increments are a
// single atomic UPDATE so concurrent writers on the same
// (tenant, resource, period) tuple never lose updates.
type UsageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a new UsageRepository
func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// AutoMigrate creates the usage record table
func (r *UsageRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.UsageRecord{})
}

func (r *UsageRepository) conn(ctx context.Context) *gorm.DB {
	return txFrom(ctx, r.db).WithContext(ctx)
}

// Find retrieves a usage record for one (tenant, resource, period)
func (r *UsageRepository) Find(ctx context.Context, tenantID string, resource domain.ResourceType, period string) (*domain.UsageRecord, error) {
	var record domain.UsageRecord
	err := r.conn(ctx).
		Where("tenant_id = ? AND resource_type = ? AND period = ?", tenantID, resource, period).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// ListByTenantPeriod retrieves all usage records for a tenant and period
func (r *UsageRepository) ListByTenantPeriod(ctx context.Context, tenantID, period string) ([]domain.UsageRecord, error) {
	var records []domain.UsageRecord
	err := r.conn(ctx).
		Where("tenant_id = ? AND period = ?", tenantID, period).
		Order("resource_type ASC").
		Find(&records).Error
	return records, err
}

// Create inserts a fresh record. The unique index on
// (tenant, resource, period) rejects duplicates under races; callers
// retry Increment on conflict.
func (r *UsageRepository) Create(ctx context.Context, record *domain.UsageRecord) error {
	return r.conn(ctx).Create(record).Error
}

// Increment atomically adds delta to the record's counter and reports
// whether a row existed
func (r *UsageRepository) Increment(ctx context.Context, tenantID string, resource domain.ResourceType, period string, delta int64) (bool, error) {
	result := r.conn(ctx).Model(&domain.UsageRecord{}).
		Where("tenant_id = ? AND resource_type = ? AND period = ?", tenantID, resource, period).
		Update("usage_count", gorm.Expr("usage_count + ?", delta))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
