package domain

import "time"

// InvoiceStatus invoice lifecycle. Transitions only move forward:
// pending -> paid | overdue | cancelled; paid and cancelled are terminal.
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// CanTransitionTo reports whether the forward-only transition is allowed
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	switch s {
	case InvoicePending:
		return next == InvoicePaid || next == InvoiceOverdue || next == InvoiceCancelled
	case InvoiceOverdue:
		return next == InvoicePaid || next == InvoiceCancelled
	default:
		return false
	}
}

// Invoice billing document for a period or a plan-change adjustment
type Invoice struct {
	ID            uint64 `gorm:"primaryKey" json:"id"`
	TenantID      string `gorm:"column:tenant_id;size:64;index;not null" json:"tenant_id"`
	InvoiceNumber string `gorm:"column:invoice_number;size:40;uniqueIndex;not null" json:"invoice_number"`

	Status InvoiceStatus `gorm:"column:status;size:20;default:pending" json:"status"`

	SubtotalCents      int64 `gorm:"column:subtotal_cents" json:"subtotal_cents"`
	DiscountCents      int64 `gorm:"column:discount_cents" json:"discount_cents"`
	CreditAppliedCents int64 `gorm:"column:credit_applied_cents" json:"credit_applied_cents"`
	TotalCents         int64 `gorm:"column:total_cents" json:"total_cents"`

	Currency string `gorm:"column:currency;size:3;default:BRL" json:"currency"`

	DueDate       time.Time  `gorm:"column:due_date" json:"due_date"`
	PaidAt        *time.Time `gorm:"column:paid_at" json:"paid_at,omitempty"`
	PaymentMethod string     `gorm:"column:payment_method;size:32" json:"payment_method,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID" json:"items"`
}

// TableName GORM table name
func (Invoice) TableName() string {
	return "invoices"
}

// InvoiceItem one ordered line on an invoice
type InvoiceItem struct {
	ID        uint64 `gorm:"primaryKey" json:"id"`
	InvoiceID uint64 `gorm:"column:invoice_id;index;not null" json:"invoice_id"`

	Description    string `gorm:"column:description;size:255;not null" json:"description"`
	UnitPriceCents int64  `gorm:"column:unit_price_cents" json:"unit_price_cents"`
	Quantity       int64  `gorm:"column:quantity;default:1" json:"quantity"`
	TotalCents     int64  `gorm:"column:total_cents" json:"total_cents"`

	SortOrder int `gorm:"column:sort_order;default:0" json:"sort_order"`
}

// TableName GORM table name
func (InvoiceItem) TableName() string {
	return "invoice_items"
}
