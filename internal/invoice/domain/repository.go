package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists invoices and their lines.
type Repository interface {
	Create(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	GetByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	// GetByTenant returns a page ordered newest first. An empty status
	// matches every status.
	GetByTenant(ctx context.Context, db *gorm.DB, tenantID string, status Status, limit, offset int) ([]Invoice, int64, error)
	GetByInvoiceNumber(ctx context.Context, db *gorm.DB, number string) (*Invoice, error)
	ExistsForPeriod(ctx context.Context, db *gorm.DB, tenantID string, start, end time.Time) (bool, error)
	// NextInvoiceNumber produces the next INV-YYYY-NNNNNN for the given
	// year. The read is not serialised; the unique constraint on
	// invoice_number makes concurrent collisions fail-closed and callers
	// retry.
	NextInvoiceNumber(ctx context.Context, db *gorm.DB, year int) (string, error)
}
