package service

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/zapdesk/zapdesk-backend/internal/common"
	"github.com/zapdesk/zapdesk-backend/internal/domain"
	pkglogger "github.com/zapdesk/zapdesk-backend/pkg/logger"
	"gopkg.in/yaml.v3"
)

// CatalogService owns the immutable plan/module catalog and the overage
// pricing table. Seeded from configs/catalog.yaml; published entries are
// never mutated retroactively, price changes ship as new versions.
type CatalogService struct {
	store CatalogStore

	mu           sync.RWMutex
	overageRates map[domain.ResourceType]domain.OverageRate
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(store CatalogStore) *CatalogService {
	return &CatalogService{
		store:        store,
		overageRates: make(map[domain.ResourceType]domain.OverageRate),
	}
}

// catalogSeed is the shape of configs/catalog.yaml
type catalogSeed struct {
	Plans []struct {
		Slug            string   `yaml:"slug"`
		Name            string   `yaml:"name"`
		Version         int      `yaml:"version"`
		PriceMonthly    int64    `yaml:"price_monthly"`
		PriceQuarterly  int64    `yaml:"price_quarterly"`
		PriceSemiannual int64    `yaml:"price_semiannual"`
		PriceAnnual     int64    `yaml:"price_annual"`
		Limits          struct {
			WhatsAppInstances int64 `yaml:"whatsapp_instances"`
			MessagesPerMonth  int64 `yaml:"messages_per_month"`
			Users             int64 `yaml:"users"`
			AITokensPerMonth  int64 `yaml:"ai_tokens_per_month"`
			ActiveAutomations int64 `yaml:"active_automations"`
			StorageBytes      int64 `yaml:"storage_bytes"`
		} `yaml:"limits"`
		Features struct {
			AI              bool `yaml:"ai"`
			Automations     bool `yaml:"automations"`
			CalendarSync    bool `yaml:"calendar_sync"`
			PrioritySupport bool `yaml:"priority_support"`
		} `yaml:"features"`
		IncludedModules []string `yaml:"included_modules"`
		TrialDays       int      `yaml:"trial_days"`
		IsActive        *bool    `yaml:"is_active"`
		IsPublic        *bool    `yaml:"is_public"`
		SortOrder       int      `yaml:"sort_order"`
	} `yaml:"plans"`

	Modules []struct {
		Slug        string `yaml:"slug"`
		Name        string `yaml:"name"`
		Category    string `yaml:"category"`
		PriceCents  int64  `yaml:"price_cents"`
		IsRecurring *bool  `yaml:"is_recurring"`
		IsPerUnit   bool   `yaml:"is_per_unit"`
		IsCore      bool   `yaml:"is_core"`
		SortOrder   int    `yaml:"sort_order"`
	} `yaml:"modules"`

	OverageRates []domain.OverageRate `yaml:"overage_rates"`
}

// SeedFromFile loads the catalog seed file and upserts plans, modules and
// overage rates
func (s *CatalogService) SeedFromFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog seed %s: %w", path, err)
	}

	var seed catalogSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse catalog seed %s: %w", path, err)
	}

	for _, p := range seed.Plans {
		plan := &domain.Plan{
			Slug:                 p.Slug,
			Name:                 p.Name,
			Version:              p.Version,
			PriceMonthly:         p.PriceMonthly,
			PriceQuarterly:       p.PriceQuarterly,
			PriceSemiannual:      p.PriceSemiannual,
			PriceAnnual:          p.PriceAnnual,
			MaxWhatsAppInstances: p.Limits.WhatsAppInstances,
			MaxMessagesPerMonth:  p.Limits.MessagesPerMonth,
			MaxUsers:             p.Limits.Users,
			MaxAITokensPerMonth:  p.Limits.AITokensPerMonth,
			MaxActiveAutomations: p.Limits.ActiveAutomations,
			MaxStorageBytes:      p.Limits.StorageBytes,
			HasAI:                p.Features.AI,
			HasAutomations:       p.Features.Automations,
			HasCalendarSync:      p.Features.CalendarSync,
			HasPrioritySupport:   p.Features.PrioritySupport,
			TrialDays:            p.TrialDays,
			IsActive:             p.IsActive == nil || *p.IsActive,
			IsPublic:             p.IsPublic == nil || *p.IsPublic,
			SortOrder:            p.SortOrder,
		}
		if plan.Version == 0 {
			plan.Version = 1
		}
		if err := plan.SetIncludedModules(p.IncludedModules); err != nil {
			return fmt.Errorf("plan %s included modules: %w", p.Slug, err)
		}
		if err := s.store.UpsertPlan(ctx, plan); err != nil {
			return fmt.Errorf("upsert plan %s: %w", p.Slug, err)
		}
	}

	for _, m := range seed.Modules {
		module := &domain.Module{
			Slug:        m.Slug,
			Name:        m.Name,
			Category:    m.Category,
			PriceCents:  m.PriceCents,
			IsRecurring: m.IsRecurring == nil || *m.IsRecurring,
			IsPerUnit:   m.IsPerUnit,
			IsCore:      m.IsCore,
			IsActive:    true,
			SortOrder:   m.SortOrder,
		}
		if err := s.store.UpsertModule(ctx, module); err != nil {
			return fmt.Errorf("upsert module %s: %w", m.Slug, err)
		}
	}

	s.mu.Lock()
	s.overageRates = make(map[domain.ResourceType]domain.OverageRate, len(seed.OverageRates))
	for _, rate := range seed.OverageRates {
		if !rate.Resource.IsValid() {
			s.mu.Unlock()
			return fmt.Errorf("%w: unknown overage resource %q", common.ErrInvalidInput, rate.Resource)
		}
		if rate.BlockSize <= 0 {
			rate.BlockSize = 1
		}
		s.overageRates[rate.Resource] = rate
	}
	s.mu.Unlock()

	pkglogger.GetLogger().Info().
		Int("plans", len(seed.Plans)).
		Int("modules", len(seed.Modules)).
		Int("overage_rates", len(seed.OverageRates)).
		Msg("catalog seeded")

	return nil
}

// ActivePlanBySlug returns an active plan or ErrPlanNotFound
func (s *CatalogService) ActivePlanBySlug(ctx context.Context, slug string) (*domain.Plan, error) {
	plan, err := s.store.FindPlanBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if plan == nil || !plan.IsActive {
		return nil, common.ErrPlanNotFound
	}
	return plan, nil
}

// PlanByID returns a plan regardless of active flag, for resolving the
// plan an existing subscription already references
func (s *CatalogService) PlanByID(ctx context.Context, id uint64) (*domain.Plan, error) {
	plan, err := s.store.FindPlanByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, common.ErrPlanNotFound
	}
	return plan, nil
}

// ActiveModuleBySlug returns an active module or ErrModuleNotFound
func (s *CatalogService) ActiveModuleBySlug(ctx context.Context, slug string) (*domain.Module, error) {
	module, err := s.store.FindModuleBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if module == nil || !module.IsActive {
		return nil, common.ErrModuleNotFound
	}
	return module, nil
}

// ModuleByID returns a module or ErrModuleNotFound
func (s *CatalogService) ModuleByID(ctx context.Context, id uint64) (*domain.Module, error) {
	module, err := s.store.FindModuleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if module == nil {
		return nil, common.ErrModuleNotFound
	}
	return module, nil
}

// ListPublicPlans returns public active plans ordered for display
func (s *CatalogService) ListPublicPlans(ctx context.Context) ([]domain.Plan, error) {
	return s.store.ListPlans(ctx, true)
}

// ListModules returns all active modules
func (s *CatalogService) ListModules(ctx context.Context) ([]domain.Module, error) {
	return s.store.ListModules(ctx)
}

// OverageRate returns the configured overage rate for a resource, if any
func (s *CatalogService) OverageRate(resource domain.ResourceType) (domain.OverageRate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rate, ok := s.overageRates[resource]
	return rate, ok
}
