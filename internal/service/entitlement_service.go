package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/zapdesk/zapdesk-backend/internal/common"
	"github.com/zapdesk/zapdesk-backend/internal/domain"
	"github.com/zapdesk/zapdesk-backend/pkg/cache"
	pkglogger "github.com/zapdesk/zapdesk-backend/pkg/logger"
)

// EntitlementService answers "what can this tenant do right now" by
// combining subscription status, plan defaults, module grants, usage
// counters and per-tenant overrides. Results are cached in Redis; every
// mutation path invalidates the tenant's entry, the TTL only bounds
// staleness if an invalidation is lost.
type EntitlementService struct {
	subs      SubscriptionStore
	grants    ModuleGrantStore
	overrides OverrideStore
	catalog   *CatalogService
	usage     *UsageService
	cache     cache.Service
	clock     Clock
}

// NewEntitlementService creates a new EntitlementService
func NewEntitlementService(subs SubscriptionStore, grants ModuleGrantStore, overrides OverrideStore, catalog *CatalogService, usage *UsageService, entCache cache.Service, clock Clock) *EntitlementService {
	return &EntitlementService{
		subs:      subs,
		grants:    grants,
		overrides: overrides,
		catalog:   catalog,
		usage:     usage,
		cache:     entCache,
		clock:     clock,
	}
}

// Resolve returns the tenant's full entitlement set, from cache when
// possible
func (s *EntitlementService) Resolve(ctx context.Context, tenantID string) (*domain.Entitlement, error) {
	var cached domain.Entitlement
	err := s.cache.GetEntitlement(ctx, tenantID, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		pkglogger.GetLogger().Warn().Err(err).
			Str("tenant_id", tenantID).
			Msg("entitlement cache read failed, resolving from database")
	}

	ent, err := s.resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetEntitlement(ctx, tenantID, ent); err != nil {
		pkglogger.GetLogger().Warn().Err(err).
			Str("tenant_id", tenantID).
			Msg("entitlement cache write failed")
	}
	return ent, nil
}

// IsModuleEnabled reports whether one module is usable by the tenant
func (s *EntitlementService) IsModuleEnabled(ctx context.Context, tenantID, moduleSlug string) (bool, error) {
	ent, err := s.Resolve(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return ent.Modules[moduleSlug], nil
}

// CheckLimit returns the resolved limit state for one resource
func (s *EntitlementService) CheckLimit(ctx context.Context, tenantID string, resource domain.ResourceType) (*domain.LimitInfo, error) {
	if !resource.IsValid() {
		return nil, fmt.Errorf("%w: unknown resource type %q", common.ErrInvalidInput, resource)
	}
	ent, err := s.Resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	info, ok := ent.Limits[resource]
	if !ok {
		info = domain.LimitInfo{Status: domain.LimitOK}
	}
	return &info, nil
}

// GetSubscriptionStatus returns the tenant's subscription status without
// the full entitlement payload
func (s *EntitlementService) GetSubscriptionStatus(ctx context.Context, tenantID string) (domain.SubscriptionStatus, error) {
	ent, err := s.Resolve(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return ent.SubscriptionStatus, nil
}

// SetOverride installs or replaces a per-tenant exception
func (s *EntitlementService) SetOverride(ctx context.Context, override *domain.EntitlementOverride) error {
	switch override.Kind {
	case domain.OverrideModule:
		if override.Enabled == nil {
			return fmt.Errorf("%w: module override requires enabled", common.ErrInvalidInput)
		}
	case domain.OverrideLimit:
		if override.LimitCount == nil {
			return fmt.Errorf("%w: limit override requires limit_count", common.ErrInvalidInput)
		}
		if !domain.ResourceType(override.Key).IsValid() {
			return fmt.Errorf("%w: unknown resource type %q", common.ErrInvalidInput, override.Key)
		}
	default:
		return fmt.Errorf("%w: unknown override kind %q", common.ErrInvalidInput, override.Kind)
	}

	if err := s.overrides.Upsert(ctx, override); err != nil {
		return fmt.Errorf("upsert override: %w", err)
	}
	s.Invalidate(ctx, override.TenantID)
	return nil
}

// RemoveOverride deletes a per-tenant exception
func (s *EntitlementService) RemoveOverride(ctx context.Context, tenantID string, kind domain.OverrideKind, key string) error {
	if err := s.overrides.Delete(ctx, tenantID, kind, key); err != nil {
		return err
	}
	s.Invalidate(ctx, tenantID)
	return nil
}

// Invalidate drops the tenant's cached entitlements
func (s *EntitlementService) Invalidate(ctx context.Context, tenantID string) {
	if err := s.cache.InvalidateEntitlement(ctx, tenantID); err != nil {
		pkglogger.GetLogger().Warn().Err(err).
			Str("tenant_id", tenantID).
			Msg("entitlement cache invalidation failed")
	}
}

// resolve rebuilds the entitlement set from the database
func (s *EntitlementService) resolve(ctx context.Context, tenantID string) (*domain.Entitlement, error) {
	sub, err := s.subs.FindLatestByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, common.ErrSubscriptionNotFound
	}

	now := s.clock.Now()
	ent := &domain.Entitlement{
		TenantID:           tenantID,
		SubscriptionStatus: sub.Status,
		Features:           map[string]bool{},
		Modules:            map[string]bool{},
		Limits:             map[domain.ResourceType]domain.LimitInfo{},
		ResolvedAt:         now,
	}

	plan, err := s.catalog.PlanByID(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	ent.PlanSlug = plan.Slug

	live := sub.Status.IsLive()
	ent.Features["ai"] = live && plan.HasAI
	ent.Features["automations"] = live && plan.HasAutomations
	ent.Features["calendar_sync"] = live && plan.HasCalendarSync
	ent.Features["priority_support"] = live && plan.HasPrioritySupport

	grants, err := s.grants.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	granted := make(map[uint64]bool, len(grants))
	for i := range grants {
		if grants[i].IsActiveAt(now) {
			granted[grants[i].ModuleID] = true
		}
	}

	modules, err := s.catalog.ListModules(ctx)
	if err != nil {
		return nil, err
	}
	for i := range modules {
		m := &modules[i]
		enabled := live && m.IsActive &&
			(m.IsCore || plan.IncludesModule(m.Slug) || granted[m.ID])
		ent.Modules[m.Slug] = enabled
	}

	records, err := s.usage.ListPeriod(ctx, tenantID, domain.PeriodKey(now))
	if err != nil {
		return nil, err
	}
	usageByResource := make(map[domain.ResourceType]int64, len(records))
	for i := range records {
		usageByResource[records[i].ResourceType] = records[i].UsageCount
	}

	overrides, err := s.overrides.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	limitOverrides := make(map[domain.ResourceType]int64)
	for i := range overrides {
		o := &overrides[i]
		switch o.Kind {
		case domain.OverrideModule:
			if o.Enabled != nil {
				ent.Modules[o.Key] = *o.Enabled && live
			}
		case domain.OverrideLimit:
			if o.LimitCount != nil {
				limitOverrides[domain.ResourceType(o.Key)] = *o.LimitCount
			}
		}
	}

	for _, resource := range domain.AllResourceTypes {
		limit := plan.LimitFor(resource)
		if override, ok := limitOverrides[resource]; ok {
			limit = override
		}
		usage := usageByResource[resource]
		ent.Limits[resource] = domain.LimitInfo{
			UsageCount: usage,
			LimitCount: limit,
			Status:     s.usage.statusFor(usage, limit),
		}
	}

	return ent, nil
}
