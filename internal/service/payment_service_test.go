package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapdesk/zapdesk-backend/internal/common"
	"github.com/zapdesk/zapdesk-backend/internal/domain"
)

type scriptedProcessor struct {
	result *ChargeResult
	err    error
	calls  int
}

func (p *scriptedProcessor) Charge(_ context.Context, _ string, _ int64, _ string) (*ChargeResult, error) {
	p.calls++
	return p.result, p.err
}

func newPaymentFixture(t *testing.T, processor PaymentProcessor) (*PaymentService, *billingFixture) {
	t.Helper()
	f := newBillingFixture(t)
	return NewPaymentService(f.invoices, f.svc, processor), f
}

func TestAttemptPaymentSuccess(t *testing.T) {
	processor := &scriptedProcessor{result: &ChargeResult{Success: true, TransactionID: "tx-1"}}
	payments, f := newPaymentFixture(t, processor)
	ctx := context.Background()
	f.activeSub(t, "acme", f.starter)

	inv, err := f.invoices.GenerateAdjustment(ctx, "acme", "upgrade", 5000)
	require.NoError(t, err)

	result, err := payments.AttemptPayment(ctx, "acme", inv.ID, "pix")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, processor.calls)

	paid, err := f.invoices.GetInvoice(ctx, "acme", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, paid.Status)
	assert.Equal(t, "pix", paid.PaymentMethod)
}

func TestAttemptPaymentZeroTotalSkipsProcessor(t *testing.T) {
	processor := &scriptedProcessor{result: &ChargeResult{Success: true}}
	payments, f := newPaymentFixture(t, processor)
	ctx := context.Background()
	f.activeSub(t, "acme", f.starter)

	// Credit fully covers the invoice
	require.NoError(t, f.credits.Grant(ctx, "acme", 5000, domain.CreditManualAdjustment, nil))
	inv, err := f.invoices.GenerateAdjustment(ctx, "acme", "upgrade", 5000)
	require.NoError(t, err)
	require.Zero(t, inv.TotalCents)

	result, err := payments.AttemptPayment(ctx, "acme", inv.ID, "pix")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, processor.calls)

	paid, err := f.invoices.GetInvoice(ctx, "acme", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, paid.Status)
	assert.Equal(t, "credit", paid.PaymentMethod)
}

func TestAttemptPaymentDeclineMarksPastDue(t *testing.T) {
	processor := &scriptedProcessor{result: &ChargeResult{Success: false}}
	payments, f := newPaymentFixture(t, processor)
	ctx := context.Background()
	f.activeSub(t, "acme", f.starter)

	inv, err := f.invoices.GenerateAdjustment(ctx, "acme", "upgrade", 5000)
	require.NoError(t, err)

	result, err := payments.AttemptPayment(ctx, "acme", inv.ID, "credit_card")
	require.NoError(t, err)
	assert.False(t, result.Success)

	sub, err := f.subStore.FindLatestByTenantID(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionPastDue, sub.Status)

	// The invoice stays open for a retry
	open, err := f.invoices.GetInvoice(ctx, "acme", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePending, open.Status)
}

func TestAttemptPaymentTransportErrorChangesNothing(t *testing.T) {
	processor := &scriptedProcessor{err: errors.New("gateway timeout")}
	payments, f := newPaymentFixture(t, processor)
	ctx := context.Background()
	f.activeSub(t, "acme", f.starter)

	inv, err := f.invoices.GenerateAdjustment(ctx, "acme", "upgrade", 5000)
	require.NoError(t, err)

	_, err = payments.AttemptPayment(ctx, "acme", inv.ID, "pix")
	require.Error(t, err)

	open, err := f.invoices.GetInvoice(ctx, "acme", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePending, open.Status)

	sub, err := f.subStore.FindLatestByTenantID(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, sub.Status)
}

func TestSettleSuccessRecoversPastDue(t *testing.T) {
	payments, f := newPaymentFixture(t, &scriptedProcessor{})
	ctx := context.Background()
	f.activeSub(t, "acme", f.starter)

	inv, err := f.invoices.GenerateAdjustment(ctx, "acme", "renewal", 9900)
	require.NoError(t, err)
	require.NoError(t, f.svc.MarkPastDue(ctx, "acme"))

	require.NoError(t, payments.Settle(ctx, "acme", inv.ID, true, "boleto"))

	sub, err := f.subStore.FindLatestByTenantID(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, sub.Status)
}

func TestSettleFailureTwiceIsIdempotent(t *testing.T) {
	payments, f := newPaymentFixture(t, &scriptedProcessor{})
	ctx := context.Background()
	f.activeSub(t, "acme", f.starter)

	inv, err := f.invoices.GenerateAdjustment(ctx, "acme", "renewal", 9900)
	require.NoError(t, err)

	require.NoError(t, payments.Settle(ctx, "acme", inv.ID, false, "pix"))
	// Already past_due; a second failure callback must not error
	require.NoError(t, payments.Settle(ctx, "acme", inv.ID, false, "pix"))
}

func TestAttemptPaymentGuards(t *testing.T) {
	payments, f := newPaymentFixture(t, &scriptedProcessor{result: &ChargeResult{Success: true}})
	ctx := context.Background()
	f.activeSub(t, "acme", f.starter)

	_, err := payments.AttemptPayment(ctx, "acme", 9999, "pix")
	assert.ErrorIs(t, err, common.ErrNotFound)

	inv, err := f.invoices.GenerateAdjustment(ctx, "acme", "upgrade", 5000)
	require.NoError(t, err)
	require.NoError(t, f.invoices.MarkPaid(ctx, inv.ID, "pix"))

	_, err = payments.AttemptPayment(ctx, "acme", inv.ID, "pix")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
}
