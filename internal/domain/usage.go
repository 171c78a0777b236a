package domain

import "time"

// LimitStatus outcome of a usage check. Informational, never an error:
// callers decide whether to hard-block or soft-warn.
type LimitStatus string

const (
	LimitOK       LimitStatus = "ok"
	LimitWarning  LimitStatus = "warning"
	LimitExceeded LimitStatus = "exceeded"
)

// UsageRecord accumulates consumption for one (tenant, resource, period).
// LimitCents is a snapshot of the limit in effect when the period opened;
// later plan changes never rewrite it, preserving auditability.
type UsageRecord struct {
	ID       uint64 `gorm:"primaryKey" json:"id"`
	TenantID string `gorm:"column:tenant_id;size:64;uniqueIndex:idx_usage_tenant_resource_period;not null" json:"tenant_id"`

	ResourceType ResourceType `gorm:"column:resource_type;size:32;uniqueIndex:idx_usage_tenant_resource_period;not null" json:"resource_type"`
	Period       string       `gorm:"column:period;size:7;uniqueIndex:idx_usage_tenant_resource_period;not null" json:"period"`

	UsageCount int64 `gorm:"column:usage_count;default:0" json:"usage_count"`
	LimitCount int64 `gorm:"column:limit_count;default:0" json:"limit_count"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName GORM table name
func (UsageRecord) TableName() string {
	return "usage_records"
}

// Overage returns usage beyond the recorded limit; 0 when within limits
// or when the limit is unlimited.
func (u *UsageRecord) Overage() int64 {
	if u.LimitCount <= 0 {
		return 0
	}
	if over := u.UsageCount - u.LimitCount; over > 0 {
		return over
	}
	return 0
}

// PeriodKey formats a calendar-month period key for an instant
func PeriodKey(at time.Time) string {
	return at.UTC().Format("2006-01")
}

// RecordUsageRequest usage increment DTO
type RecordUsageRequest struct {
	ResourceType string `json:"resource_type" binding:"required"`
	Delta        int64  `json:"delta" binding:"required,gt=0"`
	Period       string `json:"period" binding:"omitempty,len=7"`
}

// UsageResponse read-side usage info
type UsageResponse struct {
	ResourceType string `json:"resource_type"`
	Period       string `json:"period"`
	UsageCount   int64  `json:"usage_count"`
	LimitCount   int64  `json:"limit_count"`
	Status       string `json:"status"`
}
