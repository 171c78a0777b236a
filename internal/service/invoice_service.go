package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zapdesk/zapdesk-backend/internal/common"
	"github.com/zapdesk/zapdesk-backend/internal/domain"
	pkglogger "github.com/zapdesk/zapdesk-backend/pkg/logger"
)

// InvoiceService assembles invoices from subscription state, module
// grants, usage overages, coupon discounts and ledger credit. It emits
// pending invoices synchronously; payment capture is a separate,
// retryable operation owned by PaymentService.
type InvoiceService struct {
	store     InvoiceStore
	grants    ModuleGrantStore
	usage     UsageStore
	catalog   *CatalogService
	credits   *CreditService
	coupons   *CouponService
	tx        TxManager
	clock     Clock
	graceDays int
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(store InvoiceStore, grants ModuleGrantStore, usage UsageStore, catalog *CatalogService, credits *CreditService, coupons *CouponService, tx TxManager, clock Clock, graceDays int) *InvoiceService {
	if graceDays <= 0 {
		graceDays = 7
	}
	return &InvoiceService{
		store:     store,
		grants:    grants,
		usage:     usage,
		catalog:   catalog,
		credits:   credits,
		coupons:   coupons,
		tx:        tx,
		clock:     clock,
		graceDays: graceDays,
	}
}

// GenerateForPeriod builds the invoice closing out a billing period:
// base plan price, recurring module charges, overage charges, minus any
// available ledger credit. Returns nil when there is nothing to bill.
func (s *InvoiceService) GenerateForPeriod(ctx context.Context, sub *domain.Subscription, plan *domain.Plan, periodStart, periodEnd time.Time) (*domain.Invoice, error) {
	var items []domain.InvoiceItem
	var subtotal int64

	if base := plan.Price(sub.BillingCycle); base > 0 {
		items = append(items, domain.InvoiceItem{
			Description:    fmt.Sprintf("%s plan (%s)", plan.Name, sub.BillingCycle),
			UnitPriceCents: base,
			Quantity:       1,
			TotalCents:     base,
		})
		var err error
		if subtotal, err = addChecked(subtotal, base); err != nil {
			return nil, err
		}
	}

	moduleItems, moduleTotal, err := s.moduleLineItems(ctx, sub.TenantID)
	if err != nil {
		return nil, err
	}
	items = append(items, moduleItems...)
	if subtotal, err = addChecked(subtotal, moduleTotal); err != nil {
		return nil, err
	}

	overageItems, overageTotal, err := s.overageLineItems(ctx, sub.TenantID, domain.PeriodKey(periodStart))
	if err != nil {
		return nil, err
	}
	items = append(items, overageItems...)
	if subtotal, err = addChecked(subtotal, overageTotal); err != nil {
		return nil, err
	}

	if len(items) == 0 || subtotal == 0 {
		return nil, nil
	}

	return s.finalize(ctx, sub.TenantID, items, subtotal, periodEnd)
}

// GenerateAdjustment builds a single-line invoice for a mid-cycle charge
// such as an upgrade delta or a one-time module purchase
func (s *InvoiceService) GenerateAdjustment(ctx context.Context, tenantID, description string, amountCents int64) (*domain.Invoice, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: adjustment amount must be positive", common.ErrInvalidInput)
	}
	items := []domain.InvoiceItem{{
		Description:    description,
		UnitPriceCents: amountCents,
		Quantity:       1,
		TotalCents:     amountCents,
	}}
	return s.finalize(ctx, tenantID, items, amountCents, s.clock.Now())
}

// ApplyCoupon validates and redeems a coupon against a pending invoice,
// reducing its total. Returns the validation result so callers can relay
// the specific failure message.
func (s *InvoiceService) ApplyCoupon(ctx context.Context, tenantID string, invoiceID uint64, code string) (*domain.CouponValidation, error) {
	inv, err := s.store.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil || inv.TenantID != tenantID {
		return nil, common.ErrNotFound
	}
	if inv.Status != domain.InvoicePending {
		return nil, fmt.Errorf("%w: invoice is %s", common.ErrInvalidInput, inv.Status)
	}
	if inv.DiscountCents > 0 {
		return nil, fmt.Errorf("%w: invoice already discounted", common.ErrInvalidInput)
	}

	validation, err := s.coupons.Validate(ctx, code, inv.SubtotalCents)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return validation, nil
	}

	// The discount and the redemption must land together: a burned use
	// on an undiscounted invoice is money lost for the tenant.
	inv.DiscountCents = validation.DiscountCents
	inv.TotalCents = inv.SubtotalCents - inv.DiscountCents - inv.CreditAppliedCents
	if inv.TotalCents < 0 {
		inv.TotalCents = 0
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.Update(ctx, inv); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}
		return s.coupons.Redeem(ctx, code)
	})
	if err != nil {
		return nil, err
	}

	pkglogger.GetLogger().Info().
		Str("tenant_id", tenantID).
		Str("invoice", inv.InvoiceNumber).
		Str("code", code).
		Int64("discount_cents", validation.DiscountCents).
		Msg("coupon applied to invoice")

	return validation, nil
}

// MarkPaid transitions a pending or overdue invoice to paid
func (s *InvoiceService) MarkPaid(ctx context.Context, invoiceID uint64, method string) error {
	inv, err := s.store.FindByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if inv == nil {
		return common.ErrNotFound
	}
	if !inv.Status.CanTransitionTo(domain.InvoicePaid) {
		return fmt.Errorf("%w: invoice is %s", common.ErrInvalidTransition, inv.Status)
	}

	now := s.clock.Now()
	inv.Status = domain.InvoicePaid
	inv.PaidAt = &now
	inv.PaymentMethod = method
	return s.store.Update(ctx, inv)
}

// SweepOverdue marks pending invoices past their due date as overdue and
// returns how many were transitioned
func (s *InvoiceService) SweepOverdue(ctx context.Context) (int, error) {
	due, err := s.store.ListPendingPastDue(ctx, s.clock.Now(), 100)
	if err != nil {
		return 0, err
	}
	var swept int
	for i := range due {
		inv := &due[i]
		inv.Status = domain.InvoiceOverdue
		if err := s.store.Update(ctx, inv); err != nil {
			return swept, err
		}
		swept++
	}
	return swept, nil
}

// GetInvoice retrieves one invoice for a tenant
func (s *InvoiceService) GetInvoice(ctx context.Context, tenantID string, invoiceID uint64) (*domain.Invoice, error) {
	inv, err := s.store.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil || inv.TenantID != tenantID {
		return nil, common.ErrNotFound
	}
	return inv, nil
}

// ListInvoices returns a tenant's invoices, newest first
func (s *InvoiceService) ListInvoices(ctx context.Context, tenantID string, limit, offset int) ([]domain.Invoice, int64, error) {
	return s.store.ListByTenant(ctx, tenantID, limit, offset)
}

// --- internals ---

// finalize applies available ledger credit, numbers the invoice and
// persists it with status pending
func (s *InvoiceService) finalize(ctx context.Context, tenantID string, items []domain.InvoiceItem, subtotal int64, periodBoundary time.Time) (*domain.Invoice, error) {
	total := subtotal

	balance, err := s.credits.Balance(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("read credit balance: %w", err)
	}
	var creditApplied int64
	if balance > 0 {
		creditApplied = balance
		if creditApplied > total {
			creditApplied = total
		}
		if err := s.credits.Consume(ctx, tenantID, creditApplied, domain.CreditAppliedToInvoice); err != nil {
			return nil, err
		}
		total -= creditApplied
	}

	for i := range items {
		items[i].SortOrder = i
	}

	inv := &domain.Invoice{
		TenantID:           tenantID,
		InvoiceNumber:      s.nextInvoiceNumber(),
		Status:             domain.InvoicePending,
		SubtotalCents:      subtotal,
		CreditAppliedCents: creditApplied,
		TotalCents:         total,
		DueDate:            periodBoundary.AddDate(0, 0, s.graceDays),
		Items:              items,
	}
	if err := s.store.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	pkglogger.GetLogger().Info().
		Str("tenant_id", tenantID).
		Str("invoice", inv.InvoiceNumber).
		Int64("subtotal_cents", subtotal).
		Int64("credit_applied_cents", creditApplied).
		Int64("total_cents", total).
		Msg("invoice generated")

	return inv, nil
}

// moduleLineItems prices all active recurring grants
func (s *InvoiceService) moduleLineItems(ctx context.Context, tenantID string) ([]domain.InvoiceItem, int64, error) {
	grants, err := s.grants.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, 0, err
	}

	var items []domain.InvoiceItem
	var total int64
	for _, grant := range grants {
		module, err := s.catalog.ModuleByID(ctx, grant.ModuleID)
		if err != nil {
			return nil, 0, err
		}
		if !module.IsRecurring || module.PriceCents == 0 {
			continue
		}
		quantity := int64(1)
		if module.IsPerUnit && grant.Quantity > 1 {
			quantity = grant.Quantity
		}
		lineTotal, err := mulChecked(module.PriceCents, quantity)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, domain.InvoiceItem{
			Description:    fmt.Sprintf("%s module", module.Name),
			UnitPriceCents: module.PriceCents,
			Quantity:       quantity,
			TotalCents:     lineTotal,
		})
		if total, err = addChecked(total, lineTotal); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

// overageLineItems prices usage beyond recorded limits, per started block
func (s *InvoiceService) overageLineItems(ctx context.Context, tenantID, period string) ([]domain.InvoiceItem, int64, error) {
	records, err := s.usage.ListByTenantPeriod(ctx, tenantID, period)
	if err != nil {
		return nil, 0, err
	}

	var items []domain.InvoiceItem
	var total int64
	for _, record := range records {
		overage := record.Overage()
		if overage == 0 {
			continue
		}
		rate, ok := s.catalog.OverageRate(record.ResourceType)
		if !ok || rate.PriceCents == 0 {
			continue
		}
		blocks := (overage + rate.BlockSize - 1) / rate.BlockSize
		lineTotal, err := mulChecked(rate.PriceCents, blocks)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, domain.InvoiceItem{
			Description:    fmt.Sprintf("%s overage (%d over limit)", record.ResourceType, overage),
			UnitPriceCents: rate.PriceCents,
			Quantity:       blocks,
			TotalCents:     lineTotal,
		})
		if total, err = addChecked(total, lineTotal); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (s *InvoiceService) nextInvoiceNumber() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return fmt.Sprintf("INV-%s-%s", s.clock.Now().Format("200601"), id[:10])
}
