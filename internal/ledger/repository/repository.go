// Package repository provides the gorm-backed ledger persistence.
package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/smallbiznis/creditd/internal/ledger/domain"
)

// Module wires the ledger repositories.
var Module = fx.Module("ledger.repository",
	fx.Provide(
		NewLedgerRepository,
		NewTransactionRepository,
	),
)

type ledgerRepository struct{}

// NewLedgerRepository constructs the CreditLedger repository.
func NewLedgerRepository() domain.LedgerRepository {
	return &ledgerRepository{}
}

func (r *ledgerRepository) GetByTenant(ctx context.Context, db *gorm.DB, tenantID string, forUpdate bool) (*domain.CreditLedger, error) {
	query := `
		SELECT id, tenant_id, balance, monthly_limit, created_at, updated_at
		FROM credit_ledgers
		WHERE tenant_id = ?`
	// sqlite serialises writers at the connection level and rejects
	// the locking clause, so the suffix is applied elsewhere only.
	if forUpdate && db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}

	var ledgers []domain.CreditLedger
	if err := db.WithContext(ctx).Raw(query, tenantID).Scan(&ledgers).Error; err != nil {
		return nil, err
	}
	if len(ledgers) == 0 {
		return nil, nil
	}
	return &ledgers[0], nil
}

func (r *ledgerRepository) Create(ctx context.Context, db *gorm.DB, ledger *domain.CreditLedger) error {
	return db.WithContext(ctx).Create(ledger).Error
}

func (r *ledgerRepository) UpdateBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, balance decimal.Decimal) error {
	return db.WithContext(ctx).Exec(`
		UPDATE credit_ledgers
		SET balance = ?, updated_at = ?
		WHERE id = ?`,
		balance, time.Now().UTC(), id,
	).Error
}

func (r *ledgerRepository) GetAll(ctx context.Context, db *gorm.DB) ([]domain.CreditLedger, error) {
	var ledgers []domain.CreditLedger
	if err := db.WithContext(ctx).Raw(`
		SELECT id, tenant_id, balance, monthly_limit, created_at, updated_at
		FROM credit_ledgers
		ORDER BY tenant_id`).Scan(&ledgers).Error; err != nil {
		return nil, err
	}
	return ledgers, nil
}

type transactionRepository struct{}

// NewTransactionRepository constructs the CreditTransaction repository.
func NewTransactionRepository() domain.TransactionRepository {
	return &transactionRepository{}
}

func (r *transactionRepository) Create(ctx context.Context, db *gorm.DB, transaction *domain.CreditTransaction) error {
	return db.WithContext(ctx).Create(transaction).Error
}

func (r *transactionRepository) GetByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*domain.CreditTransaction, error) {
	var transactions []domain.CreditTransaction
	if err := db.WithContext(ctx).Raw(`
		SELECT id, tenant_id, ledger_id, transaction_type, amount,
		       balance_before, balance_after, reference_type, reference_id,
		       idempotency_key, metadata, created_at
		FROM credit_transactions
		WHERE idempotency_key = ?`, key).Scan(&transactions).Error; err != nil {
		return nil, err
	}
	if len(transactions) == 0 {
		return nil, nil
	}
	return &transactions[0], nil
}

func (r *transactionRepository) GetByTenant(ctx context.Context, db *gorm.DB, tenantID string, limit, offset int) ([]domain.CreditTransaction, int64, error) {
	var total int64
	if err := db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM credit_transactions WHERE tenant_id = ?`, tenantID).
		Scan(&total).Error; err != nil {
		return nil, 0, err
	}

	var transactions []domain.CreditTransaction
	if err := db.WithContext(ctx).Raw(`
		SELECT id, tenant_id, ledger_id, transaction_type, amount,
		       balance_before, balance_after, reference_type, reference_id,
		       idempotency_key, metadata, created_at
		FROM credit_transactions
		WHERE tenant_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, tenantID, limit, offset).
		Scan(&transactions).Error; err != nil {
		return nil, 0, err
	}
	return transactions, total, nil
}

func (r *transactionRepository) SumConsumptionByTenant(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.TenantConsumption, error) {
	var rows []domain.TenantConsumption
	if err := db.WithContext(ctx).Raw(`
		SELECT tenant_id, SUM(amount) AS total
		FROM credit_transactions
		WHERE transaction_type = ?
		  AND created_at >= ?
		  AND created_at < ?
		GROUP BY tenant_id`,
		domain.TransactionTypeConsume, from, to).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *transactionRepository) SumByLedger(ctx context.Context, db *gorm.DB, ledgerID snowflake.ID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(
			CASE WHEN transaction_type = ? THEN -amount ELSE amount END
		), 0) AS total
		FROM credit_transactions
		WHERE ledger_id = ?`,
		domain.TransactionTypeConsume, ledgerID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}
