package service

import (
	"context"
	"time"

	"github.com/zapdesk/zapdesk-backend/internal/domain"
)

// Store interfaces implemented by internal/repository. Services depend on
// these rather than on gorm so the core can be tested without a database.

// TxManager runs a function atomically; multi-step operations like
// changePlan either commit every write or none
type TxManager interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CatalogStore persists plans and modules
type CatalogStore interface {
	UpsertPlan(ctx context.Context, plan *domain.Plan) error
	FindPlanByID(ctx context.Context, id uint64) (*domain.Plan, error)
	FindPlanBySlug(ctx context.Context, slug string) (*domain.Plan, error)
	ListPlans(ctx context.Context, publicOnly bool) ([]domain.Plan, error)
	UpsertModule(ctx context.Context, module *domain.Module) error
	FindModuleByID(ctx context.Context, id uint64) (*domain.Module, error)
	FindModuleBySlug(ctx context.Context, slug string) (*domain.Module, error)
	ListModules(ctx context.Context) ([]domain.Module, error)
}

// SubscriptionStore persists subscriptions and their change history
type SubscriptionStore interface {
	FindLiveByTenantID(ctx context.Context, tenantID string) (*domain.Subscription, error)
	FindLatestByTenantID(ctx context.Context, tenantID string) (*domain.Subscription, error)
	Create(ctx context.Context, sub *domain.Subscription) error
	Update(ctx context.Context, sub *domain.Subscription) error
	ListDueForSweep(ctx context.Context, now time.Time, limit int) ([]domain.Subscription, error)
	CreateChange(ctx context.Context, change *domain.PlanChangeHistory) error
	ListChanges(ctx context.Context, tenantID string, limit, offset int) ([]domain.PlanChangeHistory, int64, error)
}

// ModuleGrantStore persists add-on grants
type ModuleGrantStore interface {
	Create(ctx context.Context, grant *domain.ModuleGrant) error
	FindActive(ctx context.Context, tenantID string, moduleID uint64) (*domain.ModuleGrant, error)
	ListActiveByTenant(ctx context.Context, tenantID string) ([]domain.ModuleGrant, error)
	Deactivate(ctx context.Context, grantID uint64, at time.Time) error
}

// UsageStore persists metered usage counters
type UsageStore interface {
	Find(ctx context.Context, tenantID string, resource domain.ResourceType, period string) (*domain.UsageRecord, error)
	ListByTenantPeriod(ctx context.Context, tenantID, period string) ([]domain.UsageRecord, error)
	Create(ctx context.Context, record *domain.UsageRecord) error
	Increment(ctx context.Context, tenantID string, resource domain.ResourceType, period string, delta int64) (bool, error)
}

// CreditStore persists the append-only credit ledger
type CreditStore interface {
	Append(ctx context.Context, entry *domain.CreditLedgerEntry) error
	Balance(ctx context.Context, tenantID string, asOf time.Time) (int64, error)
	ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]domain.CreditLedgerEntry, int64, error)
	ListActiveGrantsByExpiry(ctx context.Context, tenantID string, asOf time.Time) ([]domain.CreditLedgerEntry, error)
}

// CouponStore persists coupons; Redeem must be an atomic conditional
// increment
type CouponStore interface {
	Create(ctx context.Context, coupon *domain.Coupon) error
	FindByCode(ctx context.Context, code string) (*domain.Coupon, error)
	Redeem(ctx context.Context, code string) (bool, error)
}

// InvoiceStore persists invoices
type InvoiceStore interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	FindByID(ctx context.Context, id uint64) (*domain.Invoice, error)
	Update(ctx context.Context, inv *domain.Invoice) error
	ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]domain.Invoice, int64, error)
	ListPendingPastDue(ctx context.Context, now time.Time, limit int) ([]domain.Invoice, error)
}

// OverrideStore persists per-tenant entitlement overrides
type OverrideStore interface {
	Upsert(ctx context.Context, override *domain.EntitlementOverride) error
	ListByTenant(ctx context.Context, tenantID string) ([]domain.EntitlementOverride, error)
	Delete(ctx context.Context, tenantID string, kind domain.OverrideKind, key string) error
}

// ChargeResult outcome of a payment capture attempt
type ChargeResult struct {
	Success       bool
	TransactionID string
}

// PaymentProcessor is the external payment collaborator. The core only
// reacts to its outcome; retries and timeouts belong to the processor.
type PaymentProcessor interface {
	Charge(ctx context.Context, tenantID string, amountCents int64, method string) (*ChargeResult, error)
}
