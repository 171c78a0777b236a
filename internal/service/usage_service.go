package service

import (
	"context"
	"fmt"

	"github.com/zapdesk/zapdesk-backend/internal/common"
	"github.com/zapdesk/zapdesk-backend/internal/domain"
	pkglogger "github.com/zapdesk/zapdesk-backend/pkg/logger"
)

const maxInt64Div100 = int64(9223372036854775807) / 100

// UsageService is the usage meter. It records consumption per tenant per
// billing period and reports limit status. Overage is never clamped here;
// it is billed by the invoice generator.
type UsageService struct {
	store       UsageStore
	subs        SubscriptionStore
	catalog     *CatalogService
	clock       Clock
	warnPercent int64
}

// NewUsageService creates a new UsageService
func NewUsageService(store UsageStore, subs SubscriptionStore, catalog *CatalogService, clock Clock, warnPercent int) *UsageService {
	if warnPercent <= 0 || warnPercent > 100 {
		warnPercent = 80
	}
	return &UsageService{
		store:       store,
		subs:        subs,
		catalog:     catalog,
		clock:       clock,
		warnPercent: int64(warnPercent),
	}
}

// RecordUsage increments a tenant's counter and returns the resulting
// limit status. The meter does not deduplicate; idempotency is the
// caller's concern. Counters never decrease within a period.
func (s *UsageService) RecordUsage(ctx context.Context, tenantID string, resource domain.ResourceType, delta int64, period string) (domain.LimitStatus, error) {
	if !resource.IsValid() {
		return "", fmt.Errorf("%w: unknown resource type %q", common.ErrInvalidInput, resource)
	}
	if delta <= 0 {
		return "", fmt.Errorf("%w: delta must be positive", common.ErrInvalidInput)
	}
	if period == "" {
		period = domain.PeriodKey(s.clock.Now())
	}

	updated, err := s.store.Increment(ctx, tenantID, resource, period, delta)
	if err != nil {
		return "", fmt.Errorf("increment usage: %w", err)
	}
	if !updated {
		// First write of the period: open the record with a snapshot of
		// the limit in effect right now. Later plan changes must not
		// rewrite it.
		limit, err := s.currentLimit(ctx, tenantID, resource)
		if err != nil {
			return "", err
		}
		record := &domain.UsageRecord{
			TenantID:     tenantID,
			ResourceType: resource,
			Period:       period,
			UsageCount:   0,
			LimitCount:   limit,
		}
		// A concurrent writer may have created the row already; the
		// unique index makes that harmless and the increment below lands
		// on whichever row won. Any other Create failure surfaces when
		// the retried increment still finds no row.
		createErr := s.store.Create(ctx, record)
		if createErr != nil {
			pkglogger.GetLogger().Debug().
				Err(createErr).
				Str("tenant_id", tenantID).
				Str("resource", string(resource)).
				Msg("usage record create lost the race or failed")
		}
		updated, err = s.store.Increment(ctx, tenantID, resource, period, delta)
		if err != nil {
			return "", fmt.Errorf("increment usage after create: %w", err)
		}
		if !updated {
			if createErr != nil {
				return "", fmt.Errorf("create usage record: %w", createErr)
			}
			return "", fmt.Errorf("usage record %s/%s/%s missing after create", tenantID, resource, period)
		}
	}

	record, err := s.store.Find(ctx, tenantID, resource, period)
	if err != nil {
		return "", fmt.Errorf("read usage: %w", err)
	}
	if record == nil {
		return domain.LimitOK, nil
	}
	return s.statusFor(record.UsageCount, record.LimitCount), nil
}

// GetUsage is a pure read. Periods with no record report zero usage
// against the limit currently in effect.
func (s *UsageService) GetUsage(ctx context.Context, tenantID string, resource domain.ResourceType, period string) (*domain.UsageResponse, error) {
	if !resource.IsValid() {
		return nil, fmt.Errorf("%w: unknown resource type %q", common.ErrInvalidInput, resource)
	}
	if period == "" {
		period = domain.PeriodKey(s.clock.Now())
	}

	record, err := s.store.Find(ctx, tenantID, resource, period)
	if err != nil {
		return nil, err
	}
	if record == nil {
		limit, err := s.currentLimit(ctx, tenantID, resource)
		if err != nil {
			return nil, err
		}
		return &domain.UsageResponse{
			ResourceType: string(resource),
			Period:       period,
			UsageCount:   0,
			LimitCount:   limit,
			Status:       string(s.statusFor(0, limit)),
		}, nil
	}

	return &domain.UsageResponse{
		ResourceType: string(resource),
		Period:       period,
		UsageCount:   record.UsageCount,
		LimitCount:   record.LimitCount,
		Status:       string(s.statusFor(record.UsageCount, record.LimitCount)),
	}, nil
}

// SeedPeriod opens zeroed usage records for every resource with limits
// snapshotted from the given plan. Invoked by advancePeriod; duplicate
// rows from earlier lazy writes are left untouched.
func (s *UsageService) SeedPeriod(ctx context.Context, tenantID string, plan *domain.Plan, period string) error {
	for _, resource := range domain.AllResourceTypes {
		existing, err := s.store.Find(ctx, tenantID, resource, period)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		record := &domain.UsageRecord{
			TenantID:     tenantID,
			ResourceType: resource,
			Period:       period,
			UsageCount:   0,
			LimitCount:   plan.LimitFor(resource),
		}
		if err := s.store.Create(ctx, record); err != nil {
			return fmt.Errorf("seed usage %s/%s: %w", tenantID, resource, err)
		}
	}
	return nil
}

// ListPeriod returns all usage records for a tenant and period
func (s *UsageService) ListPeriod(ctx context.Context, tenantID, period string) ([]domain.UsageRecord, error) {
	if period == "" {
		period = domain.PeriodKey(s.clock.Now())
	}
	return s.store.ListByTenantPeriod(ctx, tenantID, period)
}

// currentLimit resolves the limit in effect right now from the tenant's
// live subscription; tenants without one get zero (unlimited)
func (s *UsageService) currentLimit(ctx context.Context, tenantID string, resource domain.ResourceType) (int64, error) {
	sub, err := s.subs.FindLiveByTenantID(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if sub == nil {
		return 0, nil
	}
	plan, err := s.catalog.PlanByID(ctx, sub.PlanID)
	if err != nil {
		return 0, err
	}
	return plan.LimitFor(resource), nil
}

// statusFor maps a counter against its limit; limit <= 0 means unlimited
func (s *UsageService) statusFor(usage, limit int64) domain.LimitStatus {
	if limit <= 0 {
		return domain.LimitOK
	}
	if usage >= limit {
		return domain.LimitExceeded
	}
	// usage < limit here, so the cross-multiplication cannot overflow
	// for any limit representable in centavos, bytes or tokens
	if limit <= maxInt64Div100 {
		if usage*100 >= limit*s.warnPercent {
			return domain.LimitWarning
		}
		return domain.LimitOK
	}
	if usage >= limit/100*s.warnPercent {
		return domain.LimitWarning
	}
	return domain.LimitOK
}
