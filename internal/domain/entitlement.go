package domain

import "time"

// OverrideKind what an entitlement override targets
type OverrideKind string

const (
	OverrideModule OverrideKind = "module"
	OverrideLimit  OverrideKind = "limit"
)

// EntitlementOverride is an explicit per-tenant exception consulted by the
// resolver ahead of plan defaults and module grants. Module overrides force
// a module on or off; limit overrides replace the plan limit.
type EntitlementOverride struct {
	ID       uint64 `gorm:"primaryKey" json:"id"`
	TenantID string `gorm:"column:tenant_id;size:64;uniqueIndex:idx_override_tenant_kind_key;not null" json:"tenant_id"`

	Kind OverrideKind `gorm:"column:kind;size:16;uniqueIndex:idx_override_tenant_kind_key;not null" json:"kind"`
	// Module slug or resource type, depending on Kind
	Key string `gorm:"column:override_key;size:50;uniqueIndex:idx_override_tenant_kind_key;not null" json:"key"`

	Enabled    *bool  `gorm:"column:enabled" json:"enabled,omitempty"`
	LimitCount *int64 `gorm:"column:limit_count" json:"limit_count,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName GORM table name
func (EntitlementOverride) TableName() string {
	return "entitlement_overrides"
}

// LimitInfo resolved limit state for one resource
type LimitInfo struct {
	UsageCount int64       `json:"usage_count"`
	LimitCount int64       `json:"limit_count"`
	Status     LimitStatus `json:"status"`
}

// Entitlement is the resolved answer to "what can this tenant do right
// now". The rest of the application queries this instead of holding its
// own copy of plan state.
type Entitlement struct {
	TenantID           string                     `json:"tenant_id"`
	SubscriptionStatus SubscriptionStatus         `json:"subscription_status"`
	PlanSlug           string                     `json:"plan_slug"`
	Features           map[string]bool            `json:"features"`
	Modules            map[string]bool            `json:"modules"`
	Limits             map[ResourceType]LimitInfo `json:"limits"`
	ResolvedAt         time.Time                  `json:"resolved_at"`
}
