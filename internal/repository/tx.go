package repository

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// WithTx returns a context carrying an open transaction. Repositories
// route their queries through it so multi-step service operations commit
// or roll back as one unit.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// txFrom returns the transaction from the context, or the fallback handle
func txFrom(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback
}

// TxManager runs a function inside a database transaction. The billing
// core relies on this for the atomicity of changePlan, cancel and
// advancePeriod; it never implements its own rollback.
type TxManager struct {
	db *gorm.DB
}

// NewTxManager creates a new TxManager
func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// InTx executes fn inside a transaction scoped into the context
func (m *TxManager) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(WithTx(ctx, tx))
	})
}
