package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// LineItem is one priced entry on a new invoice.
type LineItem struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// CreateInvoiceCommand creates a DRAFT invoice for a billing period.
type CreateInvoiceCommand struct {
	TenantID    string
	Currency    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Lines       []LineItem
}

// CreateInvoiceResult reports the outcome of a create attempt. Created is
// false when an invoice already covered the period.
type CreateInvoiceResult struct {
	Created bool
	Invoice *Invoice
}

// ProformaResponse is the JSON proforma rendering of a draft invoice.
type ProformaResponse struct {
	InvoiceID     snowflake.ID    `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	TenantID      string          `json:"tenant_id"`
	Status        Status          `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	PeriodStart   time.Time       `json:"billing_period_start"`
	PeriodEnd     time.Time       `json:"billing_period_end"`
	PDFBase64     string          `json:"pdf_base64"`
}

// Service exposes invoice creation and the proforma renderings.
type Service interface {
	// CreateInvoice treats an existing invoice for the period as success
	// with no change rather than an error.
	CreateInvoice(ctx context.Context, cmd CreateInvoiceCommand) (*CreateInvoiceResult, error)
	GetInvoice(ctx context.Context, id snowflake.ID) (*Invoice, error)
	// ListInvoices pages a tenant's invoices newest first, optionally
	// narrowed to one status.
	ListInvoices(ctx context.Context, tenantID string, status Status, limit, offset int) ([]Invoice, int64, error)
	GenerateProforma(ctx context.Context, id snowflake.ID) (*ProformaResponse, error)
	// GenerateProformaPDF returns the raw document plus its download name.
	GenerateProformaPDF(ctx context.Context, id snowflake.ID) ([]byte, string, error)
}
