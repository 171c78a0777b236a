package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zapdesk/zapdesk-backend/internal/domain"
)

// In-memory store implementations backing the service tests. They mirror
// the repository semantics that matter to the services: atomic coupon
// redemption, atomic usage increments, duplicate-key errors on create.

type memTx struct{}

func (memTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memCatalogStore struct {
	mu      sync.Mutex
	nextID  uint64
	plans   map[uint64]*domain.Plan
	modules map[uint64]*domain.Module
}

func newMemCatalogStore() *memCatalogStore {
	return &memCatalogStore{
		plans:   make(map[uint64]*domain.Plan),
		modules: make(map[uint64]*domain.Module),
	}
}

func (s *memCatalogStore) UpsertPlan(_ context.Context, plan *domain.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.plans {
		if p.Slug == plan.Slug {
			plan.ID = id
			s.plans[id] = plan
			return nil
		}
	}
	s.nextID++
	plan.ID = s.nextID
	s.plans[plan.ID] = plan
	return nil
}

func (s *memCatalogStore) FindPlanByID(_ context.Context, id uint64) (*domain.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plans[id], nil
}

func (s *memCatalogStore) FindPlanBySlug(_ context.Context, slug string) (*domain.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.plans {
		if p.Slug == slug {
			return p, nil
		}
	}
	return nil, nil
}

func (s *memCatalogStore) ListPlans(_ context.Context, publicOnly bool) ([]domain.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var plans []domain.Plan
	for _, p := range s.plans {
		if publicOnly && (!p.IsPublic || !p.IsActive) {
			continue
		}
		plans = append(plans, *p)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].SortOrder < plans[j].SortOrder })
	return plans, nil
}

func (s *memCatalogStore) UpsertModule(_ context.Context, module *domain.Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.modules {
		if m.Slug == module.Slug {
			module.ID = id
			s.modules[id] = module
			return nil
		}
	}
	s.nextID++
	module.ID = s.nextID
	s.modules[module.ID] = module
	return nil
}

func (s *memCatalogStore) FindModuleByID(_ context.Context, id uint64) (*domain.Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modules[id], nil
}

func (s *memCatalogStore) FindModuleBySlug(_ context.Context, slug string) (*domain.Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.modules {
		if m.Slug == slug {
			return m, nil
		}
	}
	return nil, nil
}

func (s *memCatalogStore) ListModules(_ context.Context) ([]domain.Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var modules []domain.Module
	for _, m := range s.modules {
		if m.IsActive {
			modules = append(modules, *m)
		}
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].SortOrder < modules[j].SortOrder })
	return modules, nil
}

type memSubscriptionStore struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]*domain.Subscription
	changes []domain.PlanChangeHistory
}

func newMemSubscriptionStore() *memSubscriptionStore {
	return &memSubscriptionStore{subs: make(map[uint64]*domain.Subscription)}
}

func (s *memSubscriptionStore) FindLiveByTenantID(_ context.Context, tenantID string) (*domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *domain.Subscription
	for _, sub := range s.subs {
		if sub.TenantID == tenantID && sub.Status.IsLive() {
			if latest == nil || sub.ID > latest.ID {
				latest = sub
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *memSubscriptionStore) FindLatestByTenantID(_ context.Context, tenantID string) (*domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *domain.Subscription
	for _, sub := range s.subs {
		if sub.TenantID == tenantID {
			if latest == nil || sub.ID > latest.ID {
				latest = sub
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *memSubscriptionStore) Create(_ context.Context, sub *domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sub.ID = s.nextID
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

func (s *memSubscriptionStore) Update(_ context.Context, sub *domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.ID]; !ok {
		return fmt.Errorf("subscription %d not found", sub.ID)
	}
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

func (s *memSubscriptionStore) ListDueForSweep(_ context.Context, now time.Time, limit int) ([]domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []domain.Subscription
	for _, sub := range s.subs {
		if !sub.Status.IsLive() {
			continue
		}
		trialExpired := sub.Status == domain.SubscriptionTrial && sub.TrialEndsAt != nil && !sub.TrialEndsAt.After(now)
		if !sub.CurrentPeriodEnd.After(now) || trialExpired {
			due = append(due, *sub)
		}
		if len(due) >= limit {
			break
		}
	}
	return due, nil
}

func (s *memSubscriptionStore) CreateChange(_ context.Context, change *domain.PlanChangeHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	change.ID = uint64(len(s.changes) + 1)
	s.changes = append(s.changes, *change)
	return nil
}

func (s *memSubscriptionStore) ListChanges(_ context.Context, tenantID string, limit, offset int) ([]domain.PlanChangeHistory, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []domain.PlanChangeHistory
	for i := len(s.changes) - 1; i >= 0; i-- {
		if s.changes[i].TenantID == tenantID {
			matched = append(matched, s.changes[i])
		}
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

type memGrantStore struct {
	mu     sync.Mutex
	nextID uint64
	grants map[uint64]*domain.ModuleGrant
}

func newMemGrantStore() *memGrantStore {
	return &memGrantStore{grants: make(map[uint64]*domain.ModuleGrant)}
}

func (s *memGrantStore) Create(_ context.Context, grant *domain.ModuleGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	grant.ID = s.nextID
	cp := *grant
	s.grants[grant.ID] = &cp
	return nil
}

func (s *memGrantStore) FindActive(_ context.Context, tenantID string, moduleID uint64) (*domain.ModuleGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.grants {
		if g.TenantID == tenantID && g.ModuleID == moduleID && g.DeactivatedAt == nil {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memGrantStore) ListActiveByTenant(_ context.Context, tenantID string) ([]domain.ModuleGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var grants []domain.ModuleGrant
	for _, g := range s.grants {
		if g.TenantID == tenantID && g.DeactivatedAt == nil {
			grants = append(grants, *g)
		}
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].ID < grants[j].ID })
	return grants, nil
}

func (s *memGrantStore) Deactivate(_ context.Context, grantID uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[grantID]
	if !ok {
		return fmt.Errorf("grant %d not found", grantID)
	}
	g.DeactivatedAt = &at
	return nil
}

type usageKey struct {
	tenantID string
	resource domain.ResourceType
	period   string
}

type memUsageStore struct {
	mu      sync.Mutex
	records map[usageKey]*domain.UsageRecord
}

func newMemUsageStore() *memUsageStore {
	return &memUsageStore{records: make(map[usageKey]*domain.UsageRecord)}
}

func (s *memUsageStore) Find(_ context.Context, tenantID string, resource domain.ResourceType, period string) (*domain.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[usageKey{tenantID, resource, period}]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *memUsageStore) ListByTenantPeriod(_ context.Context, tenantID, period string) ([]domain.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []domain.UsageRecord
	for k, r := range s.records {
		if k.tenantID == tenantID && k.period == period {
			records = append(records, *r)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ResourceType < records[j].ResourceType })
	return records, nil
}

func (s *memUsageStore) Create(_ context.Context, record *domain.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := usageKey{record.TenantID, record.ResourceType, record.Period}
	if _, ok := s.records[key]; ok {
		return fmt.Errorf("duplicate usage record %v", key)
	}
	cp := *record
	s.records[key] = &cp
	return nil
}

func (s *memUsageStore) Increment(_ context.Context, tenantID string, resource domain.ResourceType, period string, delta int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[usageKey{tenantID, resource, period}]
	if !ok {
		return false, nil
	}
	r.UsageCount += delta
	return true, nil
}

type memCreditStore struct {
	mu      sync.Mutex
	entries []domain.CreditLedgerEntry
}

func newMemCreditStore() *memCreditStore { return &memCreditStore{} }

func (s *memCreditStore) Append(_ context.Context, entry *domain.CreditLedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = uint64(len(s.entries) + 1)
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *memCreditStore) Balance(_ context.Context, tenantID string, asOf time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var balance int64
	for _, e := range s.entries {
		if e.TenantID != tenantID {
			continue
		}
		if e.ExpiresAt != nil && !e.ExpiresAt.After(asOf) {
			continue
		}
		balance += e.AmountCents
	}
	return balance, nil
}

func (s *memCreditStore) ListByTenant(_ context.Context, tenantID string, limit, offset int) ([]domain.CreditLedgerEntry, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []domain.CreditLedgerEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].TenantID == tenantID {
			matched = append(matched, s.entries[i])
		}
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (s *memCreditStore) ListActiveGrantsByExpiry(_ context.Context, tenantID string, asOf time.Time) ([]domain.CreditLedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var grants []domain.CreditLedgerEntry
	for _, e := range s.entries {
		if e.TenantID != tenantID || e.AmountCents <= 0 {
			continue
		}
		if e.ExpiresAt != nil && !e.ExpiresAt.After(asOf) {
			continue
		}
		grants = append(grants, e)
	}
	sort.Slice(grants, func(i, j int) bool {
		switch {
		case grants[i].ExpiresAt == nil:
			return false
		case grants[j].ExpiresAt == nil:
			return true
		default:
			return grants[i].ExpiresAt.Before(*grants[j].ExpiresAt)
		}
	})
	return grants, nil
}

type memCouponStore struct {
	mu      sync.Mutex
	coupons map[string]*domain.Coupon
}

func newMemCouponStore() *memCouponStore {
	return &memCouponStore{coupons: make(map[string]*domain.Coupon)}
}

func (s *memCouponStore) Create(_ context.Context, coupon *domain.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coupon.ID = uint64(len(s.coupons) + 1)
	cp := *coupon
	s.coupons[coupon.Code] = &cp
	return nil
}

func (s *memCouponStore) FindByCode(_ context.Context, code string) (*domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[code]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// Redeem mirrors the repository's single conditional UPDATE
func (s *memCouponStore) Redeem(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[code]
	if !ok || !c.IsActive {
		return false, nil
	}
	if c.MaxUses > 0 && c.UsedCount >= c.MaxUses {
		return false, nil
	}
	c.UsedCount++
	return true, nil
}

type memInvoiceStore struct {
	mu       sync.Mutex
	nextID   uint64
	invoices map[uint64]*domain.Invoice
}

func newMemInvoiceStore() *memInvoiceStore {
	return &memInvoiceStore{invoices: make(map[uint64]*domain.Invoice)}
}

func (s *memInvoiceStore) Create(_ context.Context, inv *domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	inv.ID = s.nextID
	cp := *inv
	s.invoices[inv.ID] = &cp
	return nil
}

func (s *memInvoiceStore) FindByID(_ context.Context, id uint64) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (s *memInvoiceStore) Update(_ context.Context, inv *domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[inv.ID]; !ok {
		return fmt.Errorf("invoice %d not found", inv.ID)
	}
	cp := *inv
	s.invoices[inv.ID] = &cp
	return nil
}

func (s *memInvoiceStore) ListByTenant(_ context.Context, tenantID string, limit, offset int) ([]domain.Invoice, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []domain.Invoice
	for _, inv := range s.invoices {
		if inv.TenantID == tenantID {
			matched = append(matched, *inv)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (s *memInvoiceStore) ListPendingPastDue(_ context.Context, now time.Time, limit int) ([]domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []domain.Invoice
	for _, inv := range s.invoices {
		if inv.Status == domain.InvoicePending && inv.DueDate.Before(now) {
			due = append(due, *inv)
		}
		if len(due) >= limit {
			break
		}
	}
	return due, nil
}

type overrideKey struct {
	tenantID string
	kind     domain.OverrideKind
	key      string
}

type memOverrideStore struct {
	mu        sync.Mutex
	overrides map[overrideKey]*domain.EntitlementOverride
}

func newMemOverrideStore() *memOverrideStore {
	return &memOverrideStore{overrides: make(map[overrideKey]*domain.EntitlementOverride)}
}

func (s *memOverrideStore) Upsert(_ context.Context, override *domain.EntitlementOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *override
	s.overrides[overrideKey{override.TenantID, override.Kind, override.Key}] = &cp
	return nil
}

func (s *memOverrideStore) ListByTenant(_ context.Context, tenantID string) ([]domain.EntitlementOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var overrides []domain.EntitlementOverride
	for k, o := range s.overrides {
		if k.tenantID == tenantID {
			overrides = append(overrides, *o)
		}
	}
	return overrides, nil
}

func (s *memOverrideStore) Delete(_ context.Context, tenantID string, kind domain.OverrideKind, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides, overrideKey{tenantID, kind, key})
	return nil
}
