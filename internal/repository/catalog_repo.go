package repository

import (
	"context"
	"errors"

	"github.com/zapdesk/zapdesk-backend/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogRepository handles plan and module catalog persistence
type CatalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates a new CatalogRepository
func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// AutoMigrate creates catalog tables
func (r *CatalogRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Plan{}, &domain.Module{})
}

func (r *CatalogRepository) conn(ctx context.Context) *gorm.DB {
	return txFrom(ctx, r.db).WithContext(ctx)
}

// ========================================
// Plans
// ========================================

// UpsertPlan inserts a plan or updates the row with the same slug.
// Used only by catalog seeding; published plans referenced by live
// subscriptions keep their version.
func (r *CatalogRepository) UpsertPlan(ctx context.Context, plan *domain.Plan) error {
	return r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		UpdateAll: true,
	}).Create(plan).Error
}

// FindPlanByID retrieves a plan by ID
func (r *CatalogRepository) FindPlanByID(ctx context.Context, id uint64) (*domain.Plan, error) {
	var plan domain.Plan
	err := r.conn(ctx).Where("id = ?", id).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

// FindPlanBySlug retrieves a plan by slug
func (r *CatalogRepository) FindPlanBySlug(ctx context.Context, slug string) (*domain.Plan, error) {
	var plan domain.Plan
	err := r.conn(ctx).Where("slug = ?", slug).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

// ListPlans retrieves plans, optionally only public active ones
func (r *CatalogRepository) ListPlans(ctx context.Context, publicOnly bool) ([]domain.Plan, error) {
	var plans []domain.Plan
	query := r.conn(ctx).Model(&domain.Plan{})
	if publicOnly {
		query = query.Where("is_active = ? AND is_public = ?", true, true)
	}
	err := query.Order("sort_order ASC, slug ASC").Find(&plans).Error
	return plans, err
}

// ========================================
// Modules
// ========================================

// UpsertModule inserts a module or updates the row with the same slug
func (r *CatalogRepository) UpsertModule(ctx context.Context, module *domain.Module) error {
	return r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		UpdateAll: true,
	}).Create(module).Error
}

// FindModuleByID retrieves a module by ID
func (r *CatalogRepository) FindModuleByID(ctx context.Context, id uint64) (*domain.Module, error) {
	var module domain.Module
	err := r.conn(ctx).Where("id = ?", id).First(&module).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &module, nil
}

// FindModuleBySlug retrieves a module by slug
func (r *CatalogRepository) FindModuleBySlug(ctx context.Context, slug string) (*domain.Module, error) {
	var module domain.Module
	err := r.conn(ctx).Where("slug = ?", slug).First(&module).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &module, nil
}

// ListModules retrieves all active modules
func (r *CatalogRepository) ListModules(ctx context.Context) ([]domain.Module, error) {
	var modules []domain.Module
	err := r.conn(ctx).Where("is_active = ?", true).
		Order("sort_order ASC, slug ASC").Find(&modules).Error
	return modules, err
}
