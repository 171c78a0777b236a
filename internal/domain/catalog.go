package domain

import (
	"encoding/json"
	"time"
)

// BillingCycle subscription billing cycle
type BillingCycle string

const (
	CycleMonthly    BillingCycle = "monthly"
	CycleQuarterly  BillingCycle = "quarterly"
	CycleSemiannual BillingCycle = "semiannual"
	CycleAnnual     BillingCycle = "annual"
)

// IsValid reports whether the cycle is a known billing cycle
func (c BillingCycle) IsValid() bool {
	switch c {
	case CycleMonthly, CycleQuarterly, CycleSemiannual, CycleAnnual:
		return true
	}
	return false
}

// Months returns the cycle length in calendar months
func (c BillingCycle) Months() int {
	switch c {
	case CycleQuarterly:
		return 3
	case CycleSemiannual:
		return 6
	case CycleAnnual:
		return 12
	default:
		return 1
	}
}

// ResourceType metered resource kinds
type ResourceType string

const (
	ResourceMessages          ResourceType = "messages"
	ResourceAITokens          ResourceType = "ai_tokens"
	ResourceStorage           ResourceType = "storage"
	ResourceAutomations       ResourceType = "automations"
	ResourceWhatsAppInstances ResourceType = "whatsapp_instances"
	ResourceUsers             ResourceType = "users"
)

// AllResourceTypes lists every metered resource
var AllResourceTypes = []ResourceType{
	ResourceMessages,
	ResourceAITokens,
	ResourceStorage,
	ResourceAutomations,
	ResourceWhatsAppInstances,
	ResourceUsers,
}

// IsValid reports whether the resource type is known
func (r ResourceType) IsValid() bool {
	for _, t := range AllResourceTypes {
		if r == t {
			return true
		}
	}
	return false
}

// Plan is an immutable catalog tier. Published plans are never mutated;
// pricing changes create a new version under a new slug revision.
type Plan struct {
	ID      uint64 `gorm:"primaryKey" json:"id"`
	Slug    string `gorm:"column:slug;size:50;uniqueIndex;not null" json:"slug"`
	Name    string `gorm:"column:name;size:100;not null" json:"name"`
	Version int    `gorm:"column:version;default:1" json:"version"`

	// Prices in minor currency units (centavos) per cycle
	PriceMonthly    int64 `gorm:"column:price_monthly" json:"price_monthly"`
	PriceQuarterly  int64 `gorm:"column:price_quarterly" json:"price_quarterly"`
	PriceSemiannual int64 `gorm:"column:price_semiannual" json:"price_semiannual"`
	PriceAnnual     int64 `gorm:"column:price_annual" json:"price_annual"`

	// Resource limits; 0 means unlimited
	MaxWhatsAppInstances int64 `gorm:"column:max_whatsapp_instances" json:"max_whatsapp_instances"`
	MaxMessagesPerMonth  int64 `gorm:"column:max_messages_per_month" json:"max_messages_per_month"`
	MaxUsers             int64 `gorm:"column:max_users" json:"max_users"`
	MaxAITokensPerMonth  int64 `gorm:"column:max_ai_tokens_per_month" json:"max_ai_tokens_per_month"`
	MaxActiveAutomations int64 `gorm:"column:max_active_automations" json:"max_active_automations"`
	MaxStorageBytes      int64 `gorm:"column:max_storage_bytes" json:"max_storage_bytes"`

	// Feature flags
	HasAI              bool `gorm:"column:has_ai;default:false" json:"has_ai"`
	HasAutomations     bool `gorm:"column:has_automations;default:false" json:"has_automations"`
	HasCalendarSync    bool `gorm:"column:has_calendar_sync;default:false" json:"has_calendar_sync"`
	HasPrioritySupport bool `gorm:"column:has_priority_support;default:false" json:"has_priority_support"`

	// Modules bundled with the plan, stored as a JSON array of slugs
	IncludedModules string `gorm:"column:included_modules;type:json" json:"-"`

	TrialDays int  `gorm:"column:trial_days;default:0" json:"trial_days"`
	IsActive  bool `gorm:"column:is_active;default:true" json:"is_active"`
	IsPublic  bool `gorm:"column:is_public;default:true" json:"is_public"`
	SortOrder int  `gorm:"column:sort_order;default:0" json:"sort_order"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName GORM table name
func (Plan) TableName() string {
	return "billing_plans"
}

// Price returns the plan price in centavos for a billing cycle
func (p *Plan) Price(cycle BillingCycle) int64 {
	switch cycle {
	case CycleQuarterly:
		return p.PriceQuarterly
	case CycleSemiannual:
		return p.PriceSemiannual
	case CycleAnnual:
		return p.PriceAnnual
	default:
		return p.PriceMonthly
	}
}

// LimitFor returns the plan limit for a resource type; 0 means unlimited
func (p *Plan) LimitFor(resource ResourceType) int64 {
	switch resource {
	case ResourceMessages:
		return p.MaxMessagesPerMonth
	case ResourceAITokens:
		return p.MaxAITokensPerMonth
	case ResourceStorage:
		return p.MaxStorageBytes
	case ResourceAutomations:
		return p.MaxActiveAutomations
	case ResourceWhatsAppInstances:
		return p.MaxWhatsAppInstances
	case ResourceUsers:
		return p.MaxUsers
	default:
		return 0
	}
}

// GetIncludedModules parses the IncludedModules JSON into a slug slice
func (p *Plan) GetIncludedModules() []string {
	if p.IncludedModules == "" || p.IncludedModules == "null" {
		return nil
	}
	var slugs []string
	if err := json.Unmarshal([]byte(p.IncludedModules), &slugs); err != nil {
		return nil
	}
	return slugs
}

// SetIncludedModules stores a slug slice as IncludedModules JSON
func (p *Plan) SetIncludedModules(slugs []string) error {
	if len(slugs) == 0 {
		p.IncludedModules = ""
		return nil
	}
	data, err := json.Marshal(slugs)
	if err != nil {
		return err
	}
	p.IncludedModules = string(data)
	return nil
}

// IncludesModule reports whether the plan bundles the module by default
func (p *Plan) IncludesModule(slug string) bool {
	for _, s := range p.GetIncludedModules() {
		if s == slug {
			return true
		}
	}
	return false
}

// Module is an optional paid add-on. Same immutability rule as Plan.
type Module struct {
	ID       uint64 `gorm:"primaryKey" json:"id"`
	Slug     string `gorm:"column:slug;size:50;uniqueIndex;not null" json:"slug"`
	Name     string `gorm:"column:name;size:100;not null" json:"name"`
	Category string `gorm:"column:category;size:50" json:"category"`

	PriceCents  int64 `gorm:"column:price_cents" json:"price_cents"`
	IsRecurring bool  `gorm:"column:is_recurring;default:true" json:"is_recurring"`
	IsPerUnit   bool  `gorm:"column:is_per_unit;default:false" json:"is_per_unit"`

	// Core modules are enabled for every tenant regardless of plan
	IsCore   bool `gorm:"column:is_core;default:false" json:"is_core"`
	IsActive bool `gorm:"column:is_active;default:true" json:"is_active"`

	SortOrder int       `gorm:"column:sort_order;default:0" json:"sort_order"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName GORM table name
func (Module) TableName() string {
	return "billing_modules"
}

// OverageRate prices usage beyond a plan limit. Overage is billed per
// started block: ceil(overage / block_size) * price_cents.
type OverageRate struct {
	Resource   ResourceType `yaml:"resource" json:"resource"`
	BlockSize  int64        `yaml:"block_size" json:"block_size"`
	PriceCents int64        `yaml:"price_cents" json:"price_cents"`
}
