package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/smallbiznis/creditd/internal/ledger/domain"
)

func newTestDB(t *testing.T) (*gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.CreditLedger{}, &domain.CreditTransaction{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return db, node
}

func TestLedgerRepository_RoundTrip(t *testing.T) {
	db, node := newTestDB(t)
	repo := NewLedgerRepository()
	ctx := context.Background()

	missing, err := repo.GetByTenant(ctx, db, "nobody", false)
	require.NoError(t, err)
	assert.Nil(t, missing)

	ledger := &domain.CreditLedger{
		ID:        node.Generate(),
		TenantID:  "tenant-a",
		Balance:   decimal.RequireFromString("12.5"),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, db, ledger))

	got, err := repo.GetByTenant(ctx, db, "tenant-a", false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ledger.ID, got.ID)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("12.5")))

	require.NoError(t, repo.UpdateBalance(ctx, db, ledger.ID, decimal.RequireFromString("99")))
	got, err = repo.GetByTenant(ctx, db, "tenant-a", false)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("99")))

	// Second ledger for the same tenant must be rejected.
	err = repo.Create(ctx, db, &domain.CreditLedger{
		ID:       node.Generate(),
		TenantID: "tenant-a",
		Balance:  decimal.Zero,
	})
	require.Error(t, err)
}

func TestTransactionRepository_IdempotencyKeyUnique(t *testing.T) {
	db, node := newTestDB(t)
	repo := NewTransactionRepository()
	ctx := context.Background()

	ledgerID := node.Generate()
	tx := &domain.CreditTransaction{
		ID:              node.Generate(),
		TenantID:        "tenant-a",
		LedgerID:        ledgerID,
		TransactionType: domain.TransactionTypeConsume,
		Amount:          decimal.RequireFromString("1"),
		IdempotencyKey:  "key-1",
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, db, tx))

	dup := *tx
	dup.ID = node.Generate()
	require.Error(t, repo.Create(ctx, db, &dup))

	found, err := repo.GetByIdempotencyKey(ctx, db, "key-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, tx.ID, found.ID)

	none, err := repo.GetByIdempotencyKey(ctx, db, "unknown")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestTransactionRepository_SumByLedger_SignConvention(t *testing.T) {
	db, node := newTestDB(t)
	repo := NewTransactionRepository()
	ctx := context.Background()

	ledgerID := node.Generate()
	write := func(key string, typ domain.TransactionType, amount string) {
		require.NoError(t, repo.Create(ctx, db, &domain.CreditTransaction{
			ID:              node.Generate(),
			TenantID:        "tenant-a",
			LedgerID:        ledgerID,
			TransactionType: typ,
			Amount:          decimal.RequireFromString(amount),
			IdempotencyKey:  key,
			CreatedAt:       time.Now().UTC(),
		}))
	}

	write("alloc", domain.TransactionTypeAllocate, "100")
	write("consume", domain.TransactionTypeConsume, "30")
	write("refund", domain.TransactionTypeRefund, "10")
	write("adjust", domain.TransactionTypeAdjust, "-5")

	sum, err := repo.SumByLedger(ctx, db, ledgerID)
	require.NoError(t, err)
	// 100 - 30 + 10 - 5
	assert.True(t, sum.Equal(decimal.RequireFromString("75")), "got %s", sum)

	empty, err := repo.SumByLedger(ctx, db, node.Generate())
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
}

func TestTransactionRepository_SumConsumptionByTenant_Window(t *testing.T) {
	db, node := newTestDB(t)
	repo := NewTransactionRepository()
	ctx := context.Background()

	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	write := func(tenant, key string, typ domain.TransactionType, amount string, at time.Time) {
		require.NoError(t, repo.Create(ctx, db, &domain.CreditTransaction{
			ID:              node.Generate(),
			TenantID:        tenant,
			LedgerID:        node.Generate(),
			TransactionType: typ,
			Amount:          decimal.RequireFromString(amount),
			IdempotencyKey:  key,
			CreatedAt:       at,
		}))
	}

	write("tenant-a", "a1", domain.TransactionTypeConsume, "5", base.Add(10*time.Minute))
	write("tenant-a", "a2", domain.TransactionTypeConsume, "7", base.Add(20*time.Minute))
	write("tenant-b", "b1", domain.TransactionTypeConsume, "3", base.Add(30*time.Minute))
	// Outside the window and a non-consume inside it, both excluded.
	write("tenant-a", "a3", domain.TransactionTypeConsume, "100", base.Add(-10*time.Minute))
	write("tenant-a", "a4", domain.TransactionTypeRefund, "50", base.Add(15*time.Minute))
	// At the exclusive upper bound.
	write("tenant-b", "b2", domain.TransactionTypeConsume, "9", base.Add(time.Hour))

	rows, err := repo.SumConsumptionByTenant(ctx, db, base, base.Add(time.Hour))
	require.NoError(t, err)

	totals := map[string]decimal.Decimal{}
	for _, row := range rows {
		totals[row.TenantID] = row.Total
	}
	require.Len(t, totals, 2)
	assert.True(t, totals["tenant-a"].Equal(decimal.RequireFromString("12")))
	assert.True(t, totals["tenant-b"].Equal(decimal.RequireFromString("3")))
}

func TestTransactionRepository_GetByTenantPaging(t *testing.T) {
	db, node := newTestDB(t)
	repo := NewTransactionRepository()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, repo.Create(ctx, db, &domain.CreditTransaction{
			ID:              node.Generate(),
			TenantID:        "tenant-a",
			LedgerID:        node.Generate(),
			TransactionType: domain.TransactionTypeConsume,
			Amount:          decimal.RequireFromString("1"),
			IdempotencyKey:  fmt.Sprintf("key-%d", i),
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, total, err := repo.GetByTenant(ctx, db, "tenant-a", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, page, 2)
	assert.Equal(t, "key-3", page[0].IdempotencyKey)
	assert.Equal(t, "key-2", page[1].IdempotencyKey)
}
