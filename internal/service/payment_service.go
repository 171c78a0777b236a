package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/zapdesk/zapdesk-backend/internal/common"
	"github.com/zapdesk/zapdesk-backend/internal/domain"
	pkglogger "github.com/zapdesk/zapdesk-backend/pkg/logger"
)

// PaymentService drives payment capture for invoices and maps the
// outcome onto invoice and subscription state. The processor itself is
// external; this service only reacts to success or failure.
type PaymentService struct {
	invoices  *InvoiceService
	subs      *SubscriptionService
	processor PaymentProcessor
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(invoices *InvoiceService, subs *SubscriptionService, processor PaymentProcessor) *PaymentService {
	return &PaymentService{invoices: invoices, subs: subs, processor: processor}
}

// AttemptPayment charges a pending or overdue invoice. Success marks it
// paid and recovers a past_due subscription; an explicit decline marks
// the subscription past_due. A processor transport error changes nothing:
// the outcome is unknown and the attempt can be retried.
func (s *PaymentService) AttemptPayment(ctx context.Context, tenantID string, invoiceID uint64, method string) (*ChargeResult, error) {
	inv, err := s.invoices.GetInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.Status.CanTransitionTo(domain.InvoicePaid) {
		return nil, fmt.Errorf("%w: invoice is %s", common.ErrInvalidTransition, inv.Status)
	}

	// Credit may have covered the whole invoice
	if inv.TotalCents == 0 {
		if err := s.invoices.MarkPaid(ctx, invoiceID, "credit"); err != nil {
			return nil, err
		}
		s.recover(ctx, tenantID)
		return &ChargeResult{Success: true}, nil
	}

	result, err := s.processor.Charge(ctx, tenantID, inv.TotalCents, method)
	if err != nil {
		return nil, fmt.Errorf("charge invoice %s: %w", inv.InvoiceNumber, err)
	}

	if err := s.Settle(ctx, tenantID, invoiceID, result.Success, method); err != nil {
		return nil, err
	}
	return result, nil
}

// Settle records a capture outcome, whether from a synchronous attempt
// or an asynchronous processor callback
func (s *PaymentService) Settle(ctx context.Context, tenantID string, invoiceID uint64, success bool, method string) error {
	if !success {
		pkglogger.GetLogger().Warn().
			Str("tenant_id", tenantID).
			Uint64("invoice_id", invoiceID).
			Msg("payment declined")
		if err := s.subs.MarkPastDue(ctx, tenantID); err != nil && !errors.Is(err, common.ErrInvalidTransition) {
			return err
		}
		return nil
	}

	if err := s.invoices.MarkPaid(ctx, invoiceID, method); err != nil {
		return err
	}
	s.recover(ctx, tenantID)

	pkglogger.GetLogger().Info().
		Str("tenant_id", tenantID).
		Uint64("invoice_id", invoiceID).
		Str("method", method).
		Msg("invoice settled")
	return nil
}

// recover moves a past_due subscription back to active; a no-op when the
// subscription is already active
func (s *PaymentService) recover(ctx context.Context, tenantID string) {
	err := s.subs.RecoverFromPastDue(ctx, tenantID)
	if err != nil && !errors.Is(err, common.ErrInvalidTransition) && !errors.Is(err, common.ErrSubscriptionNotFound) {
		pkglogger.GetLogger().Error().Err(err).
			Str("tenant_id", tenantID).
			Msg("past_due recovery failed after payment")
	}
}
