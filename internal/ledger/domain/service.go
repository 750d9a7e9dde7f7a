package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// MutationCommand is the shared shape of consume, refund and allocate
// commands. Amount must be strictly positive.
type MutationCommand struct {
	TenantID       string
	Amount         decimal.Decimal
	IdempotencyKey string
	ReferenceType  *string
	ReferenceID    *string
	Metadata       map[string]any
}

// AdjustCommand applies a signed correction. SignedAmount may be negative but
// never zero.
type AdjustCommand struct {
	TenantID       string
	SignedAmount   decimal.Decimal
	IdempotencyKey string
	ReferenceType  *string
	ReferenceID    *string
	Metadata       map[string]any
}

// TransactionResponse is the canonical command response. For idempotent
// replays every field comes from the originally written row.
type TransactionResponse struct {
	TransactionID   snowflake.ID    `json:"transaction_id"`
	TenantID        string          `json:"tenant_id"`
	TransactionType TransactionType `json:"transaction_type"`
	Amount          decimal.Decimal `json:"amount"`
	BalanceBefore   decimal.Decimal `json:"balance_before"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	ReferenceType   *string         `json:"reference_type,omitempty"`
	ReferenceID     *string         `json:"reference_id,omitempty"`
	IdempotencyKey  string          `json:"idempotency_key"`
	CreatedAt       time.Time       `json:"created_at"`
}

// BalanceResponse is the read-only balance view.
type BalanceResponse struct {
	TenantID    string          `json:"tenant_id"`
	Balance     decimal.Decimal `json:"balance"`
	LastUpdated time.Time       `json:"last_updated"`
}

// TransactionPage is one page of a tenant's audit log, newest first.
type TransactionPage struct {
	Items  []TransactionResponse `json:"items"`
	Total  int64                 `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// Service is the ledger mutation protocol plus its read-only queries.
type Service interface {
	Consume(ctx context.Context, cmd MutationCommand) (*TransactionResponse, error)
	Refund(ctx context.Context, cmd MutationCommand) (*TransactionResponse, error)
	Allocate(ctx context.Context, cmd MutationCommand) (*TransactionResponse, error)
	Adjust(ctx context.Context, cmd AdjustCommand) (*TransactionResponse, error)

	GetBalance(ctx context.Context, tenantID string) (*BalanceResponse, error)
	ListTransactions(ctx context.Context, tenantID string, limit, offset int) (*TransactionPage, error)
}
