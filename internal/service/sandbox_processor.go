package service

import (
	"context"

	"github.com/google/uuid"
	pkglogger "github.com/zapdesk/zapdesk-backend/pkg/logger"
)

// SandboxProcessor approves every charge without moving money. Used in
// development and test environments where no payment gateway is wired.
type SandboxProcessor struct{}

// NewSandboxProcessor creates a new SandboxProcessor
func NewSandboxProcessor() *SandboxProcessor {
	return &SandboxProcessor{}
}

// Charge approves the charge and fabricates a transaction id
func (p *SandboxProcessor) Charge(ctx context.Context, tenantID string, amountCents int64, method string) (*ChargeResult, error) {
	txID := "sandbox-" + uuid.New().String()[:13]
	pkglogger.GetLogger().Info().
		Str("tenant_id", tenantID).
		Int64("amount_cents", amountCents).
		Str("method", method).
		Str("transaction_id", txID).
		Msg("sandbox charge approved")
	return &ChargeResult{Success: true, TransactionID: txID}, nil
}
