package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TenantConsumption is one row of the windowed consumption aggregate.
type TenantConsumption struct {
	TenantID string
	Total    decimal.Decimal
}

// LedgerRepository persists CreditLedger rows. All methods operate inside the
// caller's transaction scope.
type LedgerRepository interface {
	// GetByTenant returns nil when no ledger exists. With forUpdate the row
	// is locked in exclusive mode until the surrounding transaction ends.
	GetByTenant(ctx context.Context, db *gorm.DB, tenantID string, forUpdate bool) (*CreditLedger, error)
	Create(ctx context.Context, db *gorm.DB, ledger *CreditLedger) error
	UpdateBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, balance decimal.Decimal) error
	GetAll(ctx context.Context, db *gorm.DB) ([]CreditLedger, error)
}

// TransactionRepository persists the append-only audit log. Rows are never
// updated or deleted after insert.
type TransactionRepository interface {
	// Create fails with a duplicate-key error when the idempotency key
	// already exists; handlers treat that as the race-lost signal.
	Create(ctx context.Context, db *gorm.DB, transaction *CreditTransaction) error
	GetByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*CreditTransaction, error)
	// GetByTenant returns a page ordered by created_at desc, id desc, plus
	// the unfiltered count for the tenant.
	GetByTenant(ctx context.Context, db *gorm.DB, tenantID string, limit, offset int) ([]CreditTransaction, int64, error)
	// SumConsumptionByTenant aggregates CONSUME amounts per tenant over the
	// closed-open window [from, to).
	SumConsumptionByTenant(ctx context.Context, db *gorm.DB, from, to time.Time) ([]TenantConsumption, error)
	// SumByLedger returns the signed sum over all transaction types:
	// CONSUME contributes -amount, everything else +amount.
	SumByLedger(ctx context.Context, db *gorm.DB, ledgerID snowflake.ID) (decimal.Decimal, error)
}
