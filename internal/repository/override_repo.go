package repository

import (
	"context"

	"github.com/zapdesk/zapdesk-backend/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OverrideRepository handles per-tenant entitlement overrides
type OverrideRepository struct {
	db *gorm.DB
}

// NewOverrideRepository creates a new OverrideRepository
func NewOverrideRepository(db *gorm.DB) *OverrideRepository {
	return &OverrideRepository{db: db}
}

// AutoMigrate creates the override table
func (r *OverrideRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.EntitlementOverride{})
}

func (r *OverrideRepository) conn(ctx context.Context) *gorm.DB {
	return txFrom(ctx, r.db).WithContext(ctx)
}

// Upsert creates or replaces an override for (tenant, kind, key)
func (r *OverrideRepository) Upsert(ctx context.Context, override *domain.EntitlementOverride) error {
	return r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "kind"}, {Name: "override_key"}},
		UpdateAll: true,
	}).Create(override).Error
}

// ListByTenant retrieves all overrides for a tenant
func (r *OverrideRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.EntitlementOverride, error) {
	var overrides []domain.EntitlementOverride
	err := r.conn(ctx).Where("tenant_id = ?", tenantID).Find(&overrides).Error
	return overrides, err
}

// Delete removes an override
func (r *OverrideRepository) Delete(ctx context.Context, tenantID string, kind domain.OverrideKind, key string) error {
	return r.conn(ctx).
		Where("tenant_id = ? AND kind = ? AND override_key = ?", tenantID, kind, key).
		Delete(&domain.EntitlementOverride{}).Error
}
