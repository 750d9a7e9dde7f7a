// Package domain contains the credit ledger entities and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TransactionType classifies a balance mutation.
type TransactionType string

const (
	TransactionTypeConsume  TransactionType = "CONSUME"
	TransactionTypeRefund   TransactionType = "REFUND"
	TransactionTypeAllocate TransactionType = "ALLOCATE"
	TransactionTypeAdjust   TransactionType = "ADJUST"
)

// CreditLedger is the per-tenant balance record. One row per tenant, mutated
// only by the command handlers while holding the exclusive row lock.
type CreditLedger struct {
	ID           snowflake.ID     `gorm:"primaryKey"`
	TenantID     string           `gorm:"type:text;not null;uniqueIndex:ux_credit_ledgers_tenant"`
	Balance      decimal.Decimal  `gorm:"type:decimal(18,6);not null"`
	MonthlyLimit *decimal.Decimal `gorm:"type:decimal(18,6)"`
	CreatedAt    time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CreditLedger) TableName() string { return "credit_ledgers" }

// CreditTransaction is an immutable audit entry. Amount is positive for
// CONSUME/REFUND/ALLOCATE and sign-bearing for ADJUST; balance snapshots are
// stored so idempotent replays return the original response byte for byte.
type CreditTransaction struct {
	ID              snowflake.ID      `gorm:"primaryKey"`
	TenantID        string            `gorm:"type:text;not null;index:ix_credit_transactions_tenant_created,priority:1"`
	LedgerID        snowflake.ID      `gorm:"not null;index"`
	TransactionType TransactionType   `gorm:"type:text;not null"`
	Amount          decimal.Decimal   `gorm:"type:decimal(18,6);not null"`
	BalanceBefore   decimal.Decimal   `gorm:"type:decimal(18,6);not null"`
	BalanceAfter    decimal.Decimal   `gorm:"type:decimal(18,6);not null"`
	ReferenceType   *string           `gorm:"type:text;index:ix_credit_transactions_reference,priority:1"`
	ReferenceID     *string           `gorm:"type:text;index:ix_credit_transactions_reference,priority:2"`
	IdempotencyKey  string            `gorm:"type:text;not null;uniqueIndex:ux_credit_transactions_idempotency_key"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index:ix_credit_transactions_tenant_created,priority:2,sort:desc"`
}

// TableName sets the database table name.
func (CreditTransaction) TableName() string { return "credit_transactions" }
