package repository

import (
	"context"
	"errors"
	"time"

	"github.com/zapdesk/zapdesk-backend/internal/domain"
	"gorm.io/gorm"
)

// ModuleGrantRepository handles module grant persistence
type ModuleGrantRepository struct {
	db *gorm.DB
}

// NewModuleGrantRepository creates a new ModuleGrantRepository
func NewModuleGrantRepository(db *gorm.DB) *ModuleGrantRepository {
	return &ModuleGrantRepository{db: db}
}

// AutoMigrate creates the module grant table
func (r *ModuleGrantRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.ModuleGrant{})
}

func (r *ModuleGrantRepository) conn(ctx context.Context) *gorm.DB {
	return txFrom(ctx, r.db).WithContext(ctx)
}

// Create creates a new grant
func (r *ModuleGrantRepository) Create(ctx context.Context, grant *domain.ModuleGrant) error {
	return r.conn(ctx).Create(grant).Error
}

// FindActive retrieves the tenant's open grant for a module, if any
func (r *ModuleGrantRepository) FindActive(ctx context.Context, tenantID string, moduleID uint64) (*domain.ModuleGrant, error) {
	var grant domain.ModuleGrant
	err := r.conn(ctx).
		Where("tenant_id = ? AND module_id = ? AND deactivated_at IS NULL", tenantID, moduleID).
		First(&grant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &grant, nil
}

// ListActiveByTenant retrieves all open grants for a tenant
func (r *ModuleGrantRepository) ListActiveByTenant(ctx context.Context, tenantID string) ([]domain.ModuleGrant, error) {
	var grants []domain.ModuleGrant
	err := r.conn(ctx).
		Where("tenant_id = ? AND deactivated_at IS NULL", tenantID).
		Order("activated_at ASC").
		Find(&grants).Error
	return grants, err
}

// Deactivate soft-closes a grant. Grants are never hard-deleted.
func (r *ModuleGrantRepository) Deactivate(ctx context.Context, grantID uint64, at time.Time) error {
	return r.conn(ctx).Model(&domain.ModuleGrant{}).
		Where("id = ? AND deactivated_at IS NULL", grantID).
		Update("deactivated_at", at).Error
}
