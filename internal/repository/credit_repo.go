package repository

import (
	"context"
	"time"

	"github.com/zapdesk/zapdesk-backend/internal/domain"
	"gorm.io/gorm"
)

// CreditRepository handles the append-only credit ledger
type CreditRepository struct {
	db *gorm.DB
}

// NewCreditRepository creates a new CreditRepository
func NewCreditRepository(db *gorm.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

// AutoMigrate creates the ledger table
func (r *CreditRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.CreditLedgerEntry{})
}

func (r *CreditRepository) conn(ctx context.Context) *gorm.DB {
	return txFrom(ctx, r.db).WithContext(ctx)
}

// Append adds a ledger entry. Entries are never updated or deleted;
// corrections are new offsetting entries.
func (r *CreditRepository) Append(ctx context.Context, entry *domain.CreditLedgerEntry) error {
	return r.conn(ctx).Create(entry).Error
}

// Balance sums all non-expired entries for a tenant as of the given instant
func (r *CreditRepository) Balance(ctx context.Context, tenantID string, asOf time.Time) (int64, error) {
	var balance int64
	err := r.conn(ctx).Model(&domain.CreditLedgerEntry{}).
		Where("tenant_id = ? AND (expires_at IS NULL OR expires_at > ?)", tenantID, asOf).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&balance).Error
	return balance, err
}

// ListByTenant retrieves ledger entries newest first. Consumption is
// attributed FIFO-by-expiry for reporting; the balance itself is a sum.
func (r *CreditRepository) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]domain.CreditLedgerEntry, int64, error) {
	var entries []domain.CreditLedgerEntry
	var total int64

	query := r.conn(ctx).Model(&domain.CreditLedgerEntry{}).Where("tenant_id = ?", tenantID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&entries).Error
	return entries, total, err
}

// ListActiveGrantsByExpiry retrieves positive, non-expired entries ordered
// closest-to-expiry first, for consumption attribution reporting
func (r *CreditRepository) ListActiveGrantsByExpiry(ctx context.Context, tenantID string, asOf time.Time) ([]domain.CreditLedgerEntry, error) {
	var entries []domain.CreditLedgerEntry
	err := r.conn(ctx).
		Where("tenant_id = ? AND amount_cents > 0 AND (expires_at IS NULL OR expires_at > ?)", tenantID, asOf).
		Order("CASE WHEN expires_at IS NULL THEN 1 ELSE 0 END ASC, expires_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}
