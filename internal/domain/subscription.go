package domain

import "time"

// SubscriptionStatus subscription lifecycle state
type SubscriptionStatus string

const (
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// IsLive reports whether the subscription still entitles the tenant.
// At most one live subscription row may exist per tenant.
func (s SubscriptionStatus) IsLive() bool {
	return s == SubscriptionTrial || s == SubscriptionActive || s == SubscriptionPastDue
}

// Subscription represents a tenant's subscription to a plan.
// Mutated only by the subscription state machine; cancelled rows are
// retained for history and reactivation creates a fresh row.
type Subscription struct {
	ID       uint64 `gorm:"primaryKey" json:"id"`
	TenantID string `gorm:"column:tenant_id;size:64;index;not null" json:"tenant_id"`
	PlanID   uint64 `gorm:"column:plan_id;not null" json:"plan_id"`

	Status       SubscriptionStatus `gorm:"column:status;size:20;default:trial" json:"status"`
	BillingCycle BillingCycle       `gorm:"column:billing_cycle;size:20;default:monthly" json:"billing_cycle"`

	CurrentPeriodStart time.Time  `gorm:"column:current_period_start" json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `gorm:"column:current_period_end" json:"current_period_end"`
	TrialEndsAt        *time.Time `gorm:"column:trial_ends_at" json:"trial_ends_at,omitempty"`

	// Scheduled cancellation, resolved by the periodic sweep at period end
	CancelAtPeriodEnd bool       `gorm:"column:cancel_at_period_end;default:false" json:"cancel_at_period_end"`
	CancelledAt       *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName GORM table name
func (Subscription) TableName() string {
	return "subscriptions"
}

// ModuleGrant records a purchased add-on. Soft-closed on removal,
// never hard-deleted.
type ModuleGrant struct {
	ID       uint64 `gorm:"primaryKey" json:"id"`
	TenantID string `gorm:"column:tenant_id;size:64;index;not null" json:"tenant_id"`
	ModuleID uint64 `gorm:"column:module_id;not null" json:"module_id"`
	Quantity int64  `gorm:"column:quantity;default:1" json:"quantity"`

	ActivatedAt   time.Time  `gorm:"column:activated_at" json:"activated_at"`
	DeactivatedAt *time.Time `gorm:"column:deactivated_at" json:"deactivated_at,omitempty"`
}

// TableName GORM table name
func (ModuleGrant) TableName() string {
	return "module_grants"
}

// IsActiveAt reports whether the grant is live at the given instant
func (g *ModuleGrant) IsActiveAt(at time.Time) bool {
	if g.ActivatedAt.After(at) {
		return false
	}
	return g.DeactivatedAt == nil || g.DeactivatedAt.After(at)
}

// PlanChangeType kind of subscription mutation
type PlanChangeType string

const (
	ChangeUpgrade      PlanChangeType = "upgrade"
	ChangeDowngrade    PlanChangeType = "downgrade"
	ChangeCancellation PlanChangeType = "cancellation"
	ChangeReactivation PlanChangeType = "reactivation"
)

// PlanChangeStatus outcome of a recorded change
type PlanChangeStatus string

const (
	PlanChangePending   PlanChangeStatus = "pending"
	PlanChangeCompleted PlanChangeStatus = "completed"
	PlanChangeFailed    PlanChangeStatus = "failed"
)

// PlanChangeHistory is the append-only audit record of every subscription
// mutation and the system of record for proration decisions. Write-once.
type PlanChangeHistory struct {
	ID       uint64 `gorm:"primaryKey" json:"id"`
	TenantID string `gorm:"column:tenant_id;size:64;index;not null" json:"tenant_id"`

	ChangeType PlanChangeType `gorm:"column:change_type;size:20;not null" json:"change_type"`
	FromPlanID *uint64        `gorm:"column:from_plan_id" json:"from_plan_id,omitempty"`
	ToPlanID   *uint64        `gorm:"column:to_plan_id" json:"to_plan_id,omitempty"`

	// Signed centavos: positive means the tenant owed money
	ProratedAmountCents   int64 `gorm:"column:prorated_amount_cents" json:"prorated_amount_cents"`
	CreditsGeneratedCents int64 `gorm:"column:credits_generated_cents" json:"credits_generated_cents"`

	Status    PlanChangeStatus `gorm:"column:status;size:20;default:pending" json:"status"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName GORM table name
func (PlanChangeHistory) TableName() string {
	return "plan_change_history"
}

// CreateSubscriptionRequest onboarding request DTO
type CreateSubscriptionRequest struct {
	PlanSlug     string `json:"plan_slug" binding:"required"`
	BillingCycle string `json:"billing_cycle" binding:"omitempty,oneof=monthly quarterly semiannual annual"`
}

// ChangePlanRequest for upgrading/downgrading
type ChangePlanRequest struct {
	PlanSlug     string `json:"plan_slug" binding:"required"`
	BillingCycle string `json:"billing_cycle" binding:"omitempty,oneof=monthly quarterly semiannual annual"`
}

// CancelRequest cancellation request DTO
type CancelRequest struct {
	Effective string `json:"effective" binding:"required,oneof=immediate end_of_period"`
}

// PurchaseModuleRequest add-on purchase DTO
type PurchaseModuleRequest struct {
	ModuleSlug string `json:"module_slug" binding:"required"`
	Quantity   int64  `json:"quantity" binding:"omitempty,gte=1"`
}

// SubscriptionResponse read-side subscription info
type SubscriptionResponse struct {
	TenantID           string `json:"tenant_id"`
	PlanSlug           string `json:"plan_slug"`
	Status             string `json:"status"`
	BillingCycle       string `json:"billing_cycle"`
	CurrentPeriodStart string `json:"current_period_start"`
	CurrentPeriodEnd   string `json:"current_period_end"`
	TrialEndsAt        string `json:"trial_ends_at,omitempty"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CancelledAt        string `json:"cancelled_at,omitempty"`
}
