// Package domain contains the invoice entities and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Status is the invoice lifecycle state. The allocator only ever creates
// DRAFT invoices; later transitions happen outside this service.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusIssued    Status = "ISSUED"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

// Invoice is a billing document. At most one invoice exists per
// (tenant_id, billing_period_start, billing_period_end).
type Invoice struct {
	ID                 snowflake.ID    `gorm:"primaryKey"`
	TenantID           string          `gorm:"type:text;not null;index"`
	InvoiceNumber      string          `gorm:"type:text;not null;uniqueIndex:ux_invoices_invoice_number"`
	Status             Status          `gorm:"type:text;not null"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Currency           string          `gorm:"type:text;not null"`
	BillingPeriodStart time.Time       `gorm:"not null;index:ix_invoices_tenant_period,priority:2"`
	BillingPeriodEnd   time.Time       `gorm:"not null;index:ix_invoices_tenant_period,priority:3"`
	IssuedAt           *time.Time
	PaidAt             *time.Time
	CreatedAt          time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`

	Lines []InvoiceLine `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceLine is one priced item. total_price = quantity * unit_price,
// immutable once the parent invoice leaves DRAFT.
type InvoiceLine struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	InvoiceID   snowflake.ID    `gorm:"not null;index"`
	Description string          `gorm:"type:text;not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceLine) TableName() string { return "invoice_lines" }
