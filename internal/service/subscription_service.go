package service

import (
	"context"
	"fmt"
	"time"

	"github.com/zapdesk/zapdesk-backend/internal/common"
	"github.com/zapdesk/zapdesk-backend/internal/domain"
	"github.com/zapdesk/zapdesk-backend/pkg/cache"
	pkglogger "github.com/zapdesk/zapdesk-backend/pkg/logger"
)

// CancelEffective when a cancellation takes effect
type CancelEffective string

const (
	CancelImmediate   CancelEffective = "immediate"
	CancelEndOfPeriod CancelEffective = "end_of_period"
)

// SubscriptionService owns the subscription lifecycle:
// trial -> active -> past_due -> active -> cancelled, with reactivation
// creating a fresh subscription row. All mutations are serialized per
// tenant and run inside one transaction; the ledger, history and
// subscription writes of a plan change commit or roll back together.
type SubscriptionService struct {
	subs     SubscriptionStore
	grants   ModuleGrantStore
	catalog  *CatalogService
	credits  *CreditService
	invoices *InvoiceService
	usage    *UsageService
	tx       TxManager
	clock    Clock
	cache    cache.Service
	locker   *tenantLocker
}

// NewSubscriptionService creates a new SubscriptionService
func NewSubscriptionService(subs SubscriptionStore, grants ModuleGrantStore, catalog *CatalogService, credits *CreditService, invoices *InvoiceService, usage *UsageService, tx TxManager, clock Clock, entCache cache.Service) *SubscriptionService {
	return &SubscriptionService{
		subs:     subs,
		grants:   grants,
		catalog:  catalog,
		credits:  credits,
		invoices: invoices,
		usage:    usage,
		tx:       tx,
		clock:    clock,
		cache:    entCache,
		locker:   newTenantLocker(),
	}
}

// CreateSubscription onboards a tenant onto a plan. Initial state is
// trial when the plan configures trial days, active otherwise.
func (s *SubscriptionService) CreateSubscription(ctx context.Context, tenantID, planSlug string, cycle domain.BillingCycle) (*domain.Subscription, error) {
	if !cycle.IsValid() {
		cycle = domain.CycleMonthly
	}

	unlock := s.locker.lock(tenantID)
	defer unlock()

	existing, err := s.subs.FindLiveByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, common.ErrSubscriptionExists
	}

	plan, err := s.catalog.ActivePlanBySlug(ctx, planSlug)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	sub := &domain.Subscription{
		TenantID:           tenantID,
		PlanID:             plan.ID,
		Status:             domain.SubscriptionActive,
		BillingCycle:       cycle,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, cycle.Months(), 0),
	}
	if plan.TrialDays > 0 {
		trialEnd := now.AddDate(0, 0, plan.TrialDays)
		sub.Status = domain.SubscriptionTrial
		sub.TrialEndsAt = &trialEnd
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.subs.Create(ctx, sub); err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
		return s.usage.SeedPeriod(ctx, tenantID, plan, domain.PeriodKey(now))
	})
	if err != nil {
		return nil, err
	}

	s.invalidateEntitlements(ctx, tenantID)

	pkglogger.GetLogger().Info().
		Str("tenant_id", tenantID).
		Str("plan", plan.Slug).
		Str("status", string(sub.Status)).
		Msg("subscription created")

	return sub, nil
}

// ChangePlan switches the tenant to a new plan mid-cycle. Period dates
// stay unchanged; the monetary delta is settled exactly once, either as
// an adjustment invoice (upgrade) or a ledger credit (downgrade), and
// recorded in the change history.
func (s *SubscriptionService) ChangePlan(ctx context.Context, tenantID, newPlanSlug string, newCycle domain.BillingCycle) (*domain.Subscription, error) {
	unlock := s.locker.lock(tenantID)
	defer unlock()

	sub, err := s.liveSubscription(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	newPlan, err := s.catalog.ActivePlanBySlug(ctx, newPlanSlug)
	if err != nil {
		return nil, err
	}
	if !newCycle.IsValid() {
		newCycle = sub.BillingCycle
	}
	if newPlan.ID == sub.PlanID && newCycle == sub.BillingCycle {
		return nil, fmt.Errorf("%w: already on plan %s", common.ErrInvalidInput, newPlanSlug)
	}

	oldPlan, err := s.catalog.PlanByID(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var prorated ProrationResult
	if sub.Status != domain.SubscriptionTrial {
		// Trial periods were never paid for, so there is nothing to prorate
		prorated, err = Prorate(oldPlan.Price(sub.BillingCycle), newPlan.Price(newCycle),
			sub.CurrentPeriodStart, sub.CurrentPeriodEnd, now)
		if err != nil {
			return nil, err
		}
	}

	changeType := domain.ChangeUpgrade
	if newPlan.Price(newCycle) < oldPlan.Price(sub.BillingCycle) {
		changeType = domain.ChangeDowngrade
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if prorated.AmountDueCents > 0 {
			description := fmt.Sprintf("Plan change: %s to %s (prorated)", oldPlan.Name, newPlan.Name)
			if _, err := s.invoices.GenerateAdjustment(ctx, tenantID, description, prorated.AmountDueCents); err != nil {
				return err
			}
		} else if prorated.CreditGrantedCents > 0 {
			if err := s.credits.Grant(ctx, tenantID, prorated.CreditGrantedCents, domain.CreditDowngradeRefund, nil); err != nil {
				return err
			}
		}

		fromPlanID, toPlanID := sub.PlanID, newPlan.ID
		change := &domain.PlanChangeHistory{
			TenantID:              tenantID,
			ChangeType:            changeType,
			FromPlanID:            &fromPlanID,
			ToPlanID:              &toPlanID,
			ProratedAmountCents:   prorated.AmountDueCents,
			CreditsGeneratedCents: prorated.CreditGrantedCents,
			Status:                domain.PlanChangeCompleted,
		}
		if err := s.subs.CreateChange(ctx, change); err != nil {
			return fmt.Errorf("record plan change: %w", err)
		}

		sub.PlanID = newPlan.ID
		sub.BillingCycle = newCycle
		return s.subs.Update(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateEntitlements(ctx, tenantID)

	pkglogger.GetLogger().Info().
		Str("tenant_id", tenantID).
		Str("from", oldPlan.Slug).
		Str("to", newPlan.Slug).
		Int64("amount_due_cents", prorated.AmountDueCents).
		Int64("credit_cents", prorated.CreditGrantedCents).
		Msg("plan changed")

	return sub, nil
}

// Cancel ends the subscription now or at the period boundary. Immediate
// cancellation refunds unused time as ledger credit; end-of-period flags
// the subscription for the periodic sweep instead of arming a timer.
func (s *SubscriptionService) Cancel(ctx context.Context, tenantID string, effective CancelEffective) (*domain.Subscription, error) {
	unlock := s.locker.lock(tenantID)
	defer unlock()

	sub, err := s.liveSubscription(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if effective == CancelEndOfPeriod {
		sub.CancelAtPeriodEnd = true
		if err := s.subs.Update(ctx, sub); err != nil {
			return nil, err
		}
		pkglogger.GetLogger().Info().
			Str("tenant_id", tenantID).
			Time("effective_at", sub.CurrentPeriodEnd).
			Msg("cancellation scheduled for period end")
		return sub, nil
	}

	now := s.clock.Now()
	var refund int64
	if sub.Status != domain.SubscriptionTrial {
		plan, err := s.catalog.PlanByID(ctx, sub.PlanID)
		if err != nil {
			return nil, err
		}
		prorated, err := Prorate(plan.Price(sub.BillingCycle), 0,
			sub.CurrentPeriodStart, sub.CurrentPeriodEnd, now)
		if err != nil {
			return nil, err
		}
		refund = prorated.CreditGrantedCents
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.finalizeCancellation(ctx, sub, refund, now)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateEntitlements(ctx, tenantID)
	return sub, nil
}

// MarkPastDue records a failed payment capture reported by the payment
// collaborator
func (s *SubscriptionService) MarkPastDue(ctx context.Context, tenantID string) error {
	unlock := s.locker.lock(tenantID)
	defer unlock()

	sub, err := s.liveSubscription(ctx, tenantID)
	if err != nil {
		return err
	}
	if sub.Status != domain.SubscriptionActive {
		return fmt.Errorf("%w: cannot mark %s subscription past due", common.ErrInvalidTransition, sub.Status)
	}

	sub.Status = domain.SubscriptionPastDue
	if err := s.subs.Update(ctx, sub); err != nil {
		return err
	}

	s.invalidateEntitlements(ctx, tenantID)

	pkglogger.GetLogger().Warn().
		Str("tenant_id", tenantID).
		Msg("subscription marked past due")
	return nil
}

// RecoverFromPastDue records a successful payment retry
func (s *SubscriptionService) RecoverFromPastDue(ctx context.Context, tenantID string) error {
	unlock := s.locker.lock(tenantID)
	defer unlock()

	sub, err := s.liveSubscription(ctx, tenantID)
	if err != nil {
		return err
	}
	if sub.Status != domain.SubscriptionPastDue {
		return fmt.Errorf("%w: subscription is %s, not past_due", common.ErrInvalidTransition, sub.Status)
	}

	sub.Status = domain.SubscriptionActive
	if err := s.subs.Update(ctx, sub); err != nil {
		return err
	}

	s.invalidateEntitlements(ctx, tenantID)

	pkglogger.GetLogger().Info().
		Str("tenant_id", tenantID).
		Msg("subscription recovered from past due")
	return nil
}

// Reactivate resubscribes a cancelled tenant. The old row stays for
// history; a fresh subscription with a fresh period is created.
func (s *SubscriptionService) Reactivate(ctx context.Context, tenantID, planSlug string, cycle domain.BillingCycle) (*domain.Subscription, error) {
	unlock := s.locker.lock(tenantID)
	defer unlock()

	live, err := s.subs.FindLiveByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if live != nil {
		return nil, fmt.Errorf("%w: subscription is %s", common.ErrInvalidTransition, live.Status)
	}
	latest, err := s.subs.FindLatestByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, common.ErrSubscriptionNotFound
	}

	plan, err := s.catalog.ActivePlanBySlug(ctx, planSlug)
	if err != nil {
		return nil, err
	}
	if !cycle.IsValid() {
		cycle = latest.BillingCycle
	}

	now := s.clock.Now()
	sub := &domain.Subscription{
		TenantID:           tenantID,
		PlanID:             plan.ID,
		Status:             domain.SubscriptionActive,
		BillingCycle:       cycle,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, cycle.Months(), 0),
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.subs.Create(ctx, sub); err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
		fromPlanID, toPlanID := latest.PlanID, plan.ID
		change := &domain.PlanChangeHistory{
			TenantID:   tenantID,
			ChangeType: domain.ChangeReactivation,
			FromPlanID: &fromPlanID,
			ToPlanID:   &toPlanID,
			Status:     domain.PlanChangeCompleted,
		}
		if err := s.subs.CreateChange(ctx, change); err != nil {
			return fmt.Errorf("record reactivation: %w", err)
		}
		return s.usage.SeedPeriod(ctx, tenantID, plan, domain.PeriodKey(now))
	})
	if err != nil {
		return nil, err
	}

	s.invalidateEntitlements(ctx, tenantID)

	pkglogger.GetLogger().Info().
		Str("tenant_id", tenantID).
		Str("plan", plan.Slug).
		Msg("subscription reactivated")

	return sub, nil
}

// AdvancePeriod closes out the current billing period: generates the
// period invoice, resolves scheduled cancellations, moves the period
// window forward one cycle and seeds fresh usage records with the
// current plan's limits.
func (s *SubscriptionService) AdvancePeriod(ctx context.Context, tenantID string) error {
	unlock := s.locker.lock(tenantID)
	defer unlock()

	sub, err := s.liveSubscription(ctx, tenantID)
	if err != nil {
		return err
	}

	plan, err := s.catalog.PlanByID(ctx, sub.PlanID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		// Trial periods generate no invoice
		if sub.Status != domain.SubscriptionTrial {
			if _, err := s.invoices.GenerateForPeriod(ctx, sub, plan, sub.CurrentPeriodStart, sub.CurrentPeriodEnd); err != nil {
				return err
			}
		}

		if sub.CancelAtPeriodEnd {
			return s.finalizeCancellation(ctx, sub, 0, now)
		}

		sub.CurrentPeriodStart = sub.CurrentPeriodEnd
		sub.CurrentPeriodEnd = sub.CurrentPeriodStart.AddDate(0, sub.BillingCycle.Months(), 0)
		if err := s.subs.Update(ctx, sub); err != nil {
			return err
		}
		return s.usage.SeedPeriod(ctx, tenantID, plan, domain.PeriodKey(sub.CurrentPeriodStart))
	})
	if err != nil {
		return err
	}

	s.invalidateEntitlements(ctx, tenantID)

	pkglogger.GetLogger().Info().
		Str("tenant_id", tenantID).
		Str("status", string(sub.Status)).
		Time("period_start", sub.CurrentPeriodStart).
		Time("period_end", sub.CurrentPeriodEnd).
		Msg("billing period advanced")

	return nil
}

// SweepDue advances elapsed periods, converts expired trials and
// finalizes scheduled cancellations. Invoked on a schedule; one failing
// tenant never blocks the rest.
func (s *SubscriptionService) SweepDue(ctx context.Context) int {
	now := s.clock.Now()
	due, err := s.subs.ListDueForSweep(ctx, now, 200)
	if err != nil {
		pkglogger.GetLogger().Error().Err(err).Msg("sweep: list due subscriptions")
		return 0
	}

	var processed int
	for i := range due {
		sub := &due[i]
		var err error
		switch {
		case sub.Status == domain.SubscriptionTrial && sub.TrialEndsAt != nil &&
			!sub.TrialEndsAt.After(now) && sub.CurrentPeriodEnd.After(now):
			err = s.convertTrial(ctx, sub.TenantID)
		case !sub.CurrentPeriodEnd.After(now):
			err = s.AdvancePeriod(ctx, sub.TenantID)
		default:
			continue
		}
		if err != nil {
			pkglogger.GetLogger().Error().Err(err).
				Str("tenant_id", sub.TenantID).
				Msg("sweep: subscription transition failed")
			continue
		}
		processed++
	}
	return processed
}

// PurchaseModule grants an add-on to the tenant. One-time modules are
// invoiced immediately; recurring ones are billed at each period close.
func (s *SubscriptionService) PurchaseModule(ctx context.Context, tenantID, moduleSlug string, quantity int64) (*domain.ModuleGrant, error) {
	if quantity <= 0 {
		quantity = 1
	}

	unlock := s.locker.lock(tenantID)
	defer unlock()

	if _, err := s.liveSubscription(ctx, tenantID); err != nil {
		return nil, err
	}

	module, err := s.catalog.ActiveModuleBySlug(ctx, moduleSlug)
	if err != nil {
		return nil, err
	}

	existing, err := s.grants.FindActive(ctx, tenantID, module.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: module %s already granted", common.ErrInvalidInput, moduleSlug)
	}
	if !module.IsPerUnit {
		quantity = 1
	}

	grant := &domain.ModuleGrant{
		TenantID:    tenantID,
		ModuleID:    module.ID,
		Quantity:    quantity,
		ActivatedAt: s.clock.Now(),
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.grants.Create(ctx, grant); err != nil {
			return fmt.Errorf("create module grant: %w", err)
		}
		if !module.IsRecurring && module.PriceCents > 0 {
			amount, err := mulChecked(module.PriceCents, quantity)
			if err != nil {
				return err
			}
			description := fmt.Sprintf("%s module (one-time)", module.Name)
			if _, err := s.invoices.GenerateAdjustment(ctx, tenantID, description, amount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateEntitlements(ctx, tenantID)

	pkglogger.GetLogger().Info().
		Str("tenant_id", tenantID).
		Str("module", moduleSlug).
		Int64("quantity", quantity).
		Msg("module purchased")

	return grant, nil
}

// RemoveModule soft-closes the tenant's grant for a module
func (s *SubscriptionService) RemoveModule(ctx context.Context, tenantID, moduleSlug string) error {
	unlock := s.locker.lock(tenantID)
	defer unlock()

	module, err := s.catalog.ActiveModuleBySlug(ctx, moduleSlug)
	if err != nil {
		return err
	}
	grant, err := s.grants.FindActive(ctx, tenantID, module.ID)
	if err != nil {
		return err
	}
	if grant == nil {
		return common.ErrNotFound
	}
	if err := s.grants.Deactivate(ctx, grant.ID, s.clock.Now()); err != nil {
		return err
	}

	s.invalidateEntitlements(ctx, tenantID)
	return nil
}

// GetSubscription returns the read-side view of the tenant's latest
// subscription
func (s *SubscriptionService) GetSubscription(ctx context.Context, tenantID string) (*domain.SubscriptionResponse, error) {
	sub, err := s.subs.FindLatestByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, common.ErrSubscriptionNotFound
	}
	plan, err := s.catalog.PlanByID(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	resp := &domain.SubscriptionResponse{
		TenantID:           sub.TenantID,
		PlanSlug:           plan.Slug,
		Status:             string(sub.Status),
		BillingCycle:       string(sub.BillingCycle),
		CurrentPeriodStart: sub.CurrentPeriodStart.Format(time.RFC3339),
		CurrentPeriodEnd:   sub.CurrentPeriodEnd.Format(time.RFC3339),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
	if sub.TrialEndsAt != nil {
		resp.TrialEndsAt = sub.TrialEndsAt.Format(time.RFC3339)
	}
	if sub.CancelledAt != nil {
		resp.CancelledAt = sub.CancelledAt.Format(time.RFC3339)
	}
	return resp, nil
}

// ListChanges returns the tenant's plan change history
func (s *SubscriptionService) ListChanges(ctx context.Context, tenantID string, limit, offset int) ([]domain.PlanChangeHistory, int64, error) {
	return s.subs.ListChanges(ctx, tenantID, limit, offset)
}

// --- internals ---

// liveSubscription loads the tenant's live subscription, mapping absence
// and cancellation to the error taxonomy
func (s *SubscriptionService) liveSubscription(ctx context.Context, tenantID string) (*domain.Subscription, error) {
	sub, err := s.subs.FindLiveByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		return sub, nil
	}

	latest, err := s.subs.FindLatestByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if latest != nil && latest.Status == domain.SubscriptionCancelled {
		return nil, fmt.Errorf("%w: subscription is cancelled", common.ErrInvalidTransition)
	}
	return nil, common.ErrSubscriptionNotFound
}

// finalizeCancellation flips the subscription to cancelled, grants the
// refund credit if any, and records the history row. Runs inside the
// caller's transaction.
func (s *SubscriptionService) finalizeCancellation(ctx context.Context, sub *domain.Subscription, refundCents int64, now time.Time) error {
	if refundCents > 0 {
		if err := s.credits.Grant(ctx, sub.TenantID, refundCents, domain.CreditCancellationRefund, nil); err != nil {
			return err
		}
	}

	fromPlanID := sub.PlanID
	change := &domain.PlanChangeHistory{
		TenantID:              sub.TenantID,
		ChangeType:            domain.ChangeCancellation,
		FromPlanID:            &fromPlanID,
		CreditsGeneratedCents: refundCents,
		Status:                domain.PlanChangeCompleted,
	}
	if err := s.subs.CreateChange(ctx, change); err != nil {
		return fmt.Errorf("record cancellation: %w", err)
	}

	sub.Status = domain.SubscriptionCancelled
	sub.CancelAtPeriodEnd = false
	sub.CancelledAt = &now
	if err := s.subs.Update(ctx, sub); err != nil {
		return err
	}

	pkglogger.GetLogger().Info().
		Str("tenant_id", sub.TenantID).
		Int64("refund_cents", refundCents).
		Msg("subscription cancelled")
	return nil
}

// convertTrial promotes an expired trial to active without touching the
// period window
func (s *SubscriptionService) convertTrial(ctx context.Context, tenantID string) error {
	unlock := s.locker.lock(tenantID)
	defer unlock()

	sub, err := s.liveSubscription(ctx, tenantID)
	if err != nil {
		return err
	}
	if sub.Status != domain.SubscriptionTrial {
		return nil
	}

	sub.Status = domain.SubscriptionActive
	if err := s.subs.Update(ctx, sub); err != nil {
		return err
	}

	s.invalidateEntitlements(ctx, tenantID)

	pkglogger.GetLogger().Info().
		Str("tenant_id", tenantID).
		Msg("trial converted to active")
	return nil
}

func (s *SubscriptionService) invalidateEntitlements(ctx context.Context, tenantID string) {
	if err := s.cache.InvalidateEntitlement(ctx, tenantID); err != nil {
		pkglogger.GetLogger().Warn().Err(err).
			Str("tenant_id", tenantID).
			Msg("entitlement cache invalidation failed")
	}
}
