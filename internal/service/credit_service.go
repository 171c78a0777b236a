package service

import (
	"context"
	"fmt"
	"time"

	"github.com/zapdesk/zapdesk-backend/internal/common"
	"github.com/zapdesk/zapdesk-backend/internal/domain"
	pkglogger "github.com/zapdesk/zapdesk-backend/pkg/logger"
)

// CreditService owns the append-only credit ledger. The balance is the
// sum of non-expired entries; consumption entries are only appended when
// enough positive balance exists, so the balance is never implicitly
// negative.
type CreditService struct {
	store  CreditStore
	clock  Clock
	locker *tenantLocker
}

// NewCreditService creates a new CreditService
func NewCreditService(store CreditStore, clock Clock) *CreditService {
	return &CreditService{
		store:  store,
		clock:  clock,
		locker: newTenantLocker(),
	}
}

// Grant appends a positive entry
func (s *CreditService) Grant(ctx context.Context, tenantID string, amountCents int64, reason domain.CreditReason, expiresAt *time.Time) error {
	if amountCents <= 0 {
		return fmt.Errorf("%w: grant amount must be positive", common.ErrInvalidInput)
	}

	entry := &domain.CreditLedgerEntry{
		TenantID:    tenantID,
		AmountCents: amountCents,
		Reason:      reason,
		ExpiresAt:   expiresAt,
	}
	if err := s.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("append credit grant: %w", err)
	}

	pkglogger.GetLogger().Info().
		Str("tenant_id", tenantID).
		Int64("amount_cents", amountCents).
		Str("reason", string(reason)).
		Msg("credit granted")

	return nil
}

// Consume appends a negative entry after verifying sufficient balance.
// Serialized per tenant so two concurrent consumers cannot both pass the
// balance check.
func (s *CreditService) Consume(ctx context.Context, tenantID string, amountCents int64, reason domain.CreditReason) error {
	if amountCents <= 0 {
		return fmt.Errorf("%w: consume amount must be positive", common.ErrInvalidInput)
	}

	unlock := s.locker.lock(tenantID)
	defer unlock()

	balance, err := s.store.Balance(ctx, tenantID, s.clock.Now())
	if err != nil {
		return fmt.Errorf("read credit balance: %w", err)
	}
	if balance < amountCents {
		return fmt.Errorf("%w: balance %d, requested %d", common.ErrInsufficientCredit, balance, amountCents)
	}

	entry := &domain.CreditLedgerEntry{
		TenantID:    tenantID,
		AmountCents: -amountCents,
		Reason:      reason,
	}
	if err := s.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("append credit consumption: %w", err)
	}

	pkglogger.GetLogger().Info().
		Str("tenant_id", tenantID).
		Int64("amount_cents", amountCents).
		Str("reason", string(reason)).
		Msg("credit consumed")

	return nil
}

// Balance sums non-expired entries as of now
func (s *CreditService) Balance(ctx context.Context, tenantID string) (int64, error) {
	return s.store.Balance(ctx, tenantID, s.clock.Now())
}

// BalanceAsOf sums non-expired entries as of an arbitrary instant
func (s *CreditService) BalanceAsOf(ctx context.Context, tenantID string, asOf time.Time) (int64, error) {
	return s.store.Balance(ctx, tenantID, asOf)
}

// Adjust applies a manual correction: positive amounts grant, negative
// amounts consume with the balance guard
func (s *CreditService) Adjust(ctx context.Context, tenantID string, amountCents int64, expiresAt *time.Time) error {
	if amountCents == 0 {
		return fmt.Errorf("%w: adjustment must be non-zero", common.ErrInvalidInput)
	}
	if amountCents > 0 {
		return s.Grant(ctx, tenantID, amountCents, domain.CreditManualAdjustment, expiresAt)
	}
	return s.Consume(ctx, tenantID, -amountCents, domain.CreditManualAdjustment)
}

// ActiveGrants returns non-expired positive entries ordered soonest
// expiry first, for balance attribution
func (s *CreditService) ActiveGrants(ctx context.Context, tenantID string) ([]domain.CreditLedgerEntry, error) {
	return s.store.ListActiveGrantsByExpiry(ctx, tenantID, s.clock.Now())
}

// History returns ledger entries newest first
func (s *CreditService) History(ctx context.Context, tenantID string, limit, offset int) ([]domain.CreditLedgerEntry, int64, error) {
	return s.store.ListByTenant(ctx, tenantID, limit, offset)
}
