package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapdesk/zapdesk-backend/internal/common"
	"github.com/zapdesk/zapdesk-backend/internal/domain"
	"github.com/zapdesk/zapdesk-backend/pkg/cache"
)

type billingFixture struct {
	svc      *SubscriptionService
	invoices *InvoiceService
	credits  *CreditService
	usage    *UsageService
	catalog  *CatalogService

	subStore     *memSubscriptionStore
	grantStore   *memGrantStore
	invoiceStore *memInvoiceStore
	creditStore  *memCreditStore
	usageStore   *memUsageStore
	couponStore  *memCouponStore

	starter *domain.Plan
	pro     *domain.Plan
	clock   FixedClock
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()
	clock := FixedClock{T: time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC)}
	ctx := context.Background()

	catalogStore := newMemCatalogStore()
	catalog := NewCatalogService(catalogStore)

	starter := &domain.Plan{
		Slug: "starter", Name: "Starter",
		PriceMonthly:        9900,
		MaxMessagesPerMonth: 3000,
		TrialDays:           14,
		IsActive:            true, IsPublic: true,
	}
	pro := &domain.Plan{
		Slug: "professional", Name: "Professional",
		PriceMonthly:        19900,
		MaxMessagesPerMonth: 15000,
		IsActive:            true, IsPublic: true,
	}
	require.NoError(t, catalogStore.UpsertPlan(ctx, starter))
	require.NoError(t, catalogStore.UpsertPlan(ctx, pro))

	subStore := newMemSubscriptionStore()
	grantStore := newMemGrantStore()
	invoiceStore := newMemInvoiceStore()
	creditStore := newMemCreditStore()
	usageStore := newMemUsageStore()
	couponStore := newMemCouponStore()

	usage := NewUsageService(usageStore, subStore, catalog, clock, 80)
	credits := NewCreditService(creditStore, clock)
	coupons := NewCouponService(couponStore, clock)
	invoices := NewInvoiceService(invoiceStore, grantStore, usageStore, catalog, credits, coupons, memTx{}, clock, 7)
	svc := NewSubscriptionService(subStore, grantStore, catalog, credits, invoices, usage, memTx{}, clock, cache.Noop())

	return &billingFixture{
		svc: svc, invoices: invoices, credits: credits, usage: usage, catalog: catalog,
		subStore: subStore, grantStore: grantStore, invoiceStore: invoiceStore,
		creditStore: creditStore, usageStore: usageStore, couponStore: couponStore,
		starter: starter, pro: pro, clock: clock,
	}
}

// activeSub inserts an active subscription whose period is centered on
// the fixture clock: 15 days used, 15 remaining
func (f *billingFixture) activeSub(t *testing.T, tenantID string, plan *domain.Plan) *domain.Subscription {
	t.Helper()
	sub := &domain.Subscription{
		TenantID:           tenantID,
		PlanID:             plan.ID,
		Status:             domain.SubscriptionActive,
		BillingCycle:       domain.CycleMonthly,
		CurrentPeriodStart: f.clock.T.AddDate(0, 0, -15),
		CurrentPeriodEnd:   f.clock.T.AddDate(0, 0, 15),
	}
	require.NoError(t, f.subStore.Create(context.Background(), sub))
	return sub
}

func (f *billingFixture) tenantInvoices(t *testing.T, tenantID string) []domain.Invoice {
	t.Helper()
	invoices, _, err := f.invoiceStore.ListByTenant(context.Background(), tenantID, 100, 0)
	require.NoError(t, err)
	return invoices
}

func TestCreateSubscriptionStartsTrialWhenPlanHasOne(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	sub, err := f.svc.CreateSubscription(ctx, "acme", "starter", domain.CycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionTrial, sub.Status)
	require.NotNil(t, sub.TrialEndsAt)
	assert.Equal(t, f.clock.T.AddDate(0, 0, 14), *sub.TrialEndsAt)

	// Usage records are opened with the plan's limits
	records, err := f.usage.ListPeriod(ctx, "acme", domain.PeriodKey(f.clock.T))
	require.NoError(t, err)
	assert.Len(t, records, len(domain.AllResourceTypes))
}

func TestCreateSubscriptionWithoutTrialIsActive(t *testing.T) {
	f := newBillingFixture(t)

	sub, err := f.svc.CreateSubscription(context.Background(), "acme", "professional", domain.CycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, sub.Status)
	assert.Nil(t, sub.TrialEndsAt)
	assert.Equal(t, f.clock.T.AddDate(0, 1, 0), sub.CurrentPeriodEnd)
}

func TestCreateSubscriptionRejectsSecondLiveOne(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateSubscription(ctx, "acme", "starter", domain.CycleMonthly)
	require.NoError(t, err)

	_, err = f.svc.CreateSubscription(ctx, "acme", "professional", domain.CycleMonthly)
	assert.ErrorIs(t, err, common.ErrSubscriptionExists)
}

func TestChangePlanUpgradeInvoicesTheDelta(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	before := f.activeSub(t, "acme", f.starter)

	sub, err := f.svc.ChangePlan(ctx, "acme", "professional", domain.CycleMonthly)
	require.NoError(t, err)

	assert.Equal(t, f.pro.ID, sub.PlanID)
	// Period window never moves on a plan change
	assert.Equal(t, before.CurrentPeriodStart, sub.CurrentPeriodStart)
	assert.Equal(t, before.CurrentPeriodEnd, sub.CurrentPeriodEnd)

	// Half the period remains: owed (19900 - 9900) / 2
	invoices := f.tenantInvoices(t, "acme")
	require.Len(t, invoices, 1)
	assert.Equal(t, int64(5000), invoices[0].TotalCents)
	assert.Equal(t, domain.InvoicePending, invoices[0].Status)

	balance, err := f.credits.Balance(ctx, "acme")
	require.NoError(t, err)
	assert.Zero(t, balance)

	changes, _, err := f.svc.ListChanges(ctx, "acme", 10, 0)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.ChangeUpgrade, changes[0].ChangeType)
	assert.Equal(t, domain.PlanChangeCompleted, changes[0].Status)
	assert.Equal(t, int64(5000), changes[0].ProratedAmountCents)
}

func TestChangePlanDowngradeGrantsCreditInstead(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	f.activeSub(t, "acme", f.pro)

	_, err := f.svc.ChangePlan(ctx, "acme", "starter", domain.CycleMonthly)
	require.NoError(t, err)

	balance, err := f.credits.Balance(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)

	// Exactly one settlement: credit, never also an invoice
	assert.Empty(t, f.tenantInvoices(t, "acme"))

	changes, _, err := f.svc.ListChanges(ctx, "acme", 10, 0)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.ChangeDowngrade, changes[0].ChangeType)
	assert.Equal(t, int64(5000), changes[0].CreditsGeneratedCents)
}

func TestChangePlanDuringTrialSettlesNothing(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateSubscription(ctx, "acme", "starter", domain.CycleMonthly)
	require.NoError(t, err)

	sub, err := f.svc.ChangePlan(ctx, "acme", "professional", domain.CycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionTrial, sub.Status)
	assert.Equal(t, f.pro.ID, sub.PlanID)

	assert.Empty(t, f.tenantInvoices(t, "acme"))
	balance, err := f.credits.Balance(ctx, "acme")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestChangePlanGuards(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	_, err := f.svc.ChangePlan(ctx, "ghost", "professional", domain.CycleMonthly)
	assert.ErrorIs(t, err, common.ErrSubscriptionNotFound)

	f.activeSub(t, "acme", f.starter)

	_, err = f.svc.ChangePlan(ctx, "acme", "imaginary", domain.CycleMonthly)
	assert.ErrorIs(t, err, common.ErrPlanNotFound)

	_, err = f.svc.ChangePlan(ctx, "acme", "starter", domain.CycleMonthly)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = f.svc.Cancel(ctx, "acme", CancelImmediate)
	require.NoError(t, err)
	_, err = f.svc.ChangePlan(ctx, "acme", "professional", domain.CycleMonthly)
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
}

func TestCancelImmediateRefundsUnusedTime(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	f.activeSub(t, "acme", f.pro)

	sub, err := f.svc.Cancel(ctx, "acme", CancelImmediate)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionCancelled, sub.Status)
	require.NotNil(t, sub.CancelledAt)

	// Half of 19900 remains unused
	balance, err := f.credits.Balance(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, int64(9950), balance)

	changes, _, err := f.svc.ListChanges(ctx, "acme", 10, 0)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.ChangeCancellation, changes[0].ChangeType)
}

func TestCancelDuringTrialGrantsNoCredit(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateSubscription(ctx, "acme", "starter", domain.CycleMonthly)
	require.NoError(t, err)

	sub, err := f.svc.Cancel(ctx, "acme", CancelImmediate)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionCancelled, sub.Status)

	balance, err := f.credits.Balance(ctx, "acme")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestCancelAtPeriodEndDefersToSweep(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	f.activeSub(t, "acme", f.starter)

	sub, err := f.svc.Cancel(ctx, "acme", CancelEndOfPeriod)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, sub.Status)
	assert.True(t, sub.CancelAtPeriodEnd)

	// No refund for a scheduled cancellation
	balance, err := f.credits.Balance(ctx, "acme")
	require.NoError(t, err)
	assert.Zero(t, balance)

	require.NoError(t, f.svc.AdvancePeriod(ctx, "acme"))

	latest, err := f.subStore.FindLatestByTenantID(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionCancelled, latest.Status)
}

func TestPastDueTransitions(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	f.activeSub(t, "acme", f.starter)

	require.NoError(t, f.svc.MarkPastDue(ctx, "acme"))
	assert.ErrorIs(t, f.svc.MarkPastDue(ctx, "acme"), common.ErrInvalidTransition)

	require.NoError(t, f.svc.RecoverFromPastDue(ctx, "acme"))
	assert.ErrorIs(t, f.svc.RecoverFromPastDue(ctx, "acme"), common.ErrInvalidTransition)

	latest, err := f.subStore.FindLatestByTenantID(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, latest.Status)
}

func TestAdvancePeriodInvoicesAndMovesWindow(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	before := f.activeSub(t, "acme", f.starter)

	require.NoError(t, f.svc.AdvancePeriod(ctx, "acme"))

	latest, err := f.subStore.FindLatestByTenantID(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, before.CurrentPeriodEnd, latest.CurrentPeriodStart)
	assert.Equal(t, before.CurrentPeriodEnd.AddDate(0, 1, 0), latest.CurrentPeriodEnd)

	invoices := f.tenantInvoices(t, "acme")
	require.Len(t, invoices, 1)
	assert.Equal(t, int64(9900), invoices[0].TotalCents)
	// Due date is the period boundary plus the grace window
	assert.Equal(t, before.CurrentPeriodEnd.AddDate(0, 0, 7), invoices[0].DueDate)

	records, err := f.usage.ListPeriod(ctx, "acme", domain.PeriodKey(latest.CurrentPeriodStart))
	require.NoError(t, err)
	assert.Len(t, records, len(domain.AllResourceTypes))
}

func TestReactivateCreatesFreshSubscription(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	old := f.activeSub(t, "acme", f.starter)

	_, err := f.svc.Reactivate(ctx, "acme", "professional", domain.CycleMonthly)
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	_, err = f.svc.Cancel(ctx, "acme", CancelImmediate)
	require.NoError(t, err)

	sub, err := f.svc.Reactivate(ctx, "acme", "professional", domain.CycleMonthly)
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, sub.ID)
	assert.Equal(t, domain.SubscriptionActive, sub.Status)
	assert.Equal(t, f.clock.T, sub.CurrentPeriodStart)

	changes, _, err := f.svc.ListChanges(ctx, "acme", 10, 0)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, domain.ChangeReactivation, changes[0].ChangeType)
}

func TestReactivateUnknownTenant(t *testing.T) {
	f := newBillingFixture(t)
	_, err := f.svc.Reactivate(context.Background(), "ghost", "starter", domain.CycleMonthly)
	assert.ErrorIs(t, err, common.ErrSubscriptionNotFound)
}

func TestSweepDueConvertsTrialsAndAdvancesPeriods(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	// Expired trial, period still running
	trialEnd := f.clock.T.Add(-time.Hour)
	require.NoError(t, f.subStore.Create(ctx, &domain.Subscription{
		TenantID: "trialist", PlanID: f.starter.ID,
		Status: domain.SubscriptionTrial, BillingCycle: domain.CycleMonthly,
		CurrentPeriodStart: f.clock.T.AddDate(0, 0, -14),
		CurrentPeriodEnd:   f.clock.T.AddDate(0, 0, 16),
		TrialEndsAt:        &trialEnd,
	}))

	// Elapsed period
	require.NoError(t, f.subStore.Create(ctx, &domain.Subscription{
		TenantID: "veteran", PlanID: f.pro.ID,
		Status: domain.SubscriptionActive, BillingCycle: domain.CycleMonthly,
		CurrentPeriodStart: f.clock.T.AddDate(0, -1, 0),
		CurrentPeriodEnd:   f.clock.T.Add(-time.Minute),
	}))

	// Not due
	f.activeSub(t, "bystander", f.starter)

	processed := f.svc.SweepDue(ctx)
	assert.Equal(t, 2, processed)

	trialist, err := f.subStore.FindLatestByTenantID(ctx, "trialist")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, trialist.Status)

	veteran, err := f.subStore.FindLatestByTenantID(ctx, "veteran")
	require.NoError(t, err)
	assert.True(t, veteran.CurrentPeriodEnd.After(f.clock.T))
	require.Len(t, f.tenantInvoices(t, "veteran"), 1)
}

func TestPurchaseOneTimeModuleInvoicesImmediately(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	f.activeSub(t, "acme", f.starter)

	catalogStore := f.catalog.store.(*memCatalogStore)
	require.NoError(t, catalogStore.UpsertModule(ctx, &domain.Module{
		Slug: "onboarding", Name: "Assisted Onboarding",
		PriceCents: 29900, IsRecurring: false, IsActive: true,
	}))

	grant, err := f.svc.PurchaseModule(ctx, "acme", "onboarding", 1)
	require.NoError(t, err)
	assert.NotZero(t, grant.ID)

	invoices := f.tenantInvoices(t, "acme")
	require.Len(t, invoices, 1)
	assert.Equal(t, int64(29900), invoices[0].TotalCents)

	// A second purchase of the same module is rejected
	_, err = f.svc.PurchaseModule(ctx, "acme", "onboarding", 1)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestPurchaseRecurringModuleBillsAtPeriodClose(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	f.activeSub(t, "acme", f.starter)

	catalogStore := f.catalog.store.(*memCatalogStore)
	require.NoError(t, catalogStore.UpsertModule(ctx, &domain.Module{
		Slug: "crm", Name: "CRM",
		PriceCents: 6900, IsRecurring: true, IsActive: true,
	}))

	_, err := f.svc.PurchaseModule(ctx, "acme", "crm", 1)
	require.NoError(t, err)
	assert.Empty(t, f.tenantInvoices(t, "acme"))

	require.NoError(t, f.svc.AdvancePeriod(ctx, "acme"))

	invoices := f.tenantInvoices(t, "acme")
	require.Len(t, invoices, 1)
	assert.Equal(t, int64(9900+6900), invoices[0].TotalCents)
	require.Len(t, invoices[0].Items, 2)
}

func TestRemoveModuleDeactivatesGrant(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	f.activeSub(t, "acme", f.starter)

	catalogStore := f.catalog.store.(*memCatalogStore)
	require.NoError(t, catalogStore.UpsertModule(ctx, &domain.Module{
		Slug: "crm", Name: "CRM", PriceCents: 6900, IsRecurring: true, IsActive: true,
	}))

	assert.ErrorIs(t, f.svc.RemoveModule(ctx, "acme", "crm"), common.ErrNotFound)

	_, err := f.svc.PurchaseModule(ctx, "acme", "crm", 1)
	require.NoError(t, err)
	require.NoError(t, f.svc.RemoveModule(ctx, "acme", "crm"))

	grants, err := f.grantStore.ListActiveByTenant(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, grants)
}
