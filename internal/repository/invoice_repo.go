package repository

import (
	"context"
	"errors"
	"time"

	"github.com/zapdesk/zapdesk-backend/internal/domain"
	"gorm.io/gorm"
)

// InvoiceRepository handles invoice persistence
type InvoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new InvoiceRepository
func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// AutoMigrate creates invoice tables
func (r *InvoiceRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Invoice{}, &domain.InvoiceItem{})
}

func (r *InvoiceRepository) conn(ctx context.Context) *gorm.DB {
	return txFrom(ctx, r.db).WithContext(ctx)
}

// Create creates an invoice with its line items
func (r *InvoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	return r.conn(ctx).Create(inv).Error
}

// FindByID retrieves an invoice with its items
func (r *InvoiceRepository) FindByID(ctx context.Context, id uint64) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := r.conn(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order ASC, id ASC")
	}).Where("id = ?", id).First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

// Update updates an invoice
func (r *InvoiceRepository) Update(ctx context.Context, inv *domain.Invoice) error {
	return r.conn(ctx).Omit("Items").Save(inv).Error
}

// ListPendingPastDue retrieves pending invoices whose due date has passed
func (r *InvoiceRepository) ListPendingPastDue(ctx context.Context, now time.Time, limit int) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	err := r.conn(ctx).
		Where("status = ? AND due_date < ?", domain.InvoicePending, now).
		Order("due_date ASC").
		Limit(limit).
		Find(&invoices).Error
	return invoices, err
}

// ListByTenant retrieves invoices for a tenant, newest first
func (r *InvoiceRepository) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]domain.Invoice, int64, error) {
	var invoices []domain.Invoice
	var total int64

	query := r.conn(ctx).Model(&domain.Invoice{}).Where("tenant_id = ?", tenantID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order ASC, id ASC")
	}).Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&invoices).Error
	return invoices, total, err
}
