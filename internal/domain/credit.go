package domain

import "time"

// CreditReason why a ledger entry was appended
type CreditReason string

const (
	CreditDowngradeRefund    CreditReason = "downgrade_refund"
	CreditCancellationRefund CreditReason = "cancellation_refund"
	CreditManualAdjustment   CreditReason = "manual_adjustment"
	CreditAppliedToInvoice   CreditReason = "applied_to_invoice"
)

// CreditLedgerEntry is append-only. Positive amounts are grants, negative
// amounts consumptions. Corrections are new offsetting entries, never
// updates or deletes.
type CreditLedgerEntry struct {
	ID       uint64 `gorm:"primaryKey" json:"id"`
	TenantID string `gorm:"column:tenant_id;size:64;index;not null" json:"tenant_id"`

	AmountCents int64        `gorm:"column:amount_cents;not null" json:"amount_cents"`
	Reason      CreditReason `gorm:"column:reason;size:32;not null" json:"reason"`

	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	ExpiresAt *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
}

// TableName GORM table name
func (CreditLedgerEntry) TableName() string {
	return "credit_ledger_entries"
}

// AdjustCreditRequest manual credit adjustment DTO
type AdjustCreditRequest struct {
	AmountCents int64  `json:"amount_cents" binding:"required"`
	ExpiresAt   string `json:"expires_at" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// CreditGrantInfo one active grant, surfaced soonest-expiring first
type CreditGrantInfo struct {
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
	ExpiresAt   string `json:"expires_at,omitempty"`
}

// CreditBalanceResponse read-side balance info
type CreditBalanceResponse struct {
	TenantID     string            `json:"tenant_id"`
	BalanceCents int64             `json:"balance_cents"`
	AsOf         string            `json:"as_of"`
	ActiveGrants []CreditGrantInfo `json:"active_grants,omitempty"`
}
