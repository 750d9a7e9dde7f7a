package allocator

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
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/creditd/internal/clock"
	"github.com/smallbiznis/creditd/internal/config"
	invoicedomain "github.com/smallbiznis/creditd/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/creditd/internal/invoice/repository"
	invoicesvc "github.com/smallbiznis/creditd/internal/invoice/service"
	ledgerdomain "github.com/smallbiznis/creditd/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/creditd/internal/ledger/repository"
	ledgersvc "github.com/smallbiznis/creditd/internal/ledger/service"
	subscriptiondomain "github.com/smallbiznis/creditd/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/creditd/internal/subscription/repository"
)

type stubRenderer struct{}

func (stubRenderer) RenderProforma(*invoicedomain.Invoice) ([]byte, error) {
	return []byte("%PDF-1.7 stub"), nil
}

func newTestAllocator(t *testing.T) (*Allocator, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&ledgerdomain.CreditLedger{},
		&ledgerdomain.CreditTransaction{},
		&subscriptiondomain.Subscription{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLine{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	ledgerService := ledgersvc.NewService(ledgersvc.ServiceParam{
		DB:      db,
		Log:     log,
		GenID:   node,
		Clock:   fake,
		Ledgers: ledgerrepo.NewLedgerRepository(),
		Txs:     ledgerrepo.NewTransactionRepository(),
	})
	invoiceService := invoicesvc.NewService(invoicesvc.ServiceParam{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fake,
		Invoices: invoicerepo.NewRepository(),
		Renderer: stubRenderer{},
	})

	cfg := config.Config{
		Allocation: config.AllocationConfig{
			Enabled:     true,
			CreditPrice: decimal.RequireFromString("0.015"),
			RunDay:      1,
		},
	}

	a := NewAllocator(AllocatorParam{
		DB:            db,
		Log:           log,
		Clock:         fake,
		Config:        cfg,
		Subscriptions: subscriptionrepo.NewRepository(),
		Ledger:        ledgerService,
		Invoices:      invoiceService,
	})
	return a, db, node
}

func seedSubscription(t *testing.T, db *gorm.DB, node *snowflake.Node, tenant, plan string, credits string, status subscriptiondomain.Status) {
	t.Helper()
	require.NoError(t, db.Create(&subscriptiondomain.Subscription{
		ID:             node.Generate(),
		TenantID:       tenant,
		Status:         status,
		PlanName:       plan,
		MonthlyCredits: decimal.RequireFromString(credits),
		StartDate:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}).Error)
}

func TestRun_AllocatesActiveSubscriptions(t *testing.T) {
	a, db, node := newTestAllocator(t)

	seedSubscription(t, db, node, "tenant-a", "starter", "10000", subscriptiondomain.StatusActive)
	seedSubscription(t, db, node, "tenant-b", "growth", "5000", subscriptiondomain.StatusActive)
	seedSubscription(t, db, node, "tenant-c", "basic", "2000", subscriptiondomain.StatusActive)
	seedSubscription(t, db, node, "tenant-d", "old", "9999", subscriptiondomain.StatusCancelled)

	start, end := MonthPeriod(2026, time.February)
	summary, err := a.Run(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Successful)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 3, summary.InvoicesCreated)

	var ledger ledgerdomain.CreditLedger
	require.NoError(t, db.First(&ledger, "tenant_id = ?", "tenant-a").Error)
	assert.True(t, ledger.Balance.Equal(decimal.RequireFromString("10000")))

	var invoices []invoicedomain.Invoice
	require.NoError(t, db.Order("invoice_number").Find(&invoices).Error)
	require.Len(t, invoices, 3)
	for _, inv := range invoices {
		assert.Equal(t, invoicedomain.StatusDraft, inv.Status)
		assert.True(t, inv.BillingPeriodStart.Equal(start))
		assert.True(t, inv.BillingPeriodEnd.Equal(end))
	}

	// 10000 credits at 0.015 each.
	var tenantAInvoice invoicedomain.Invoice
	require.NoError(t, db.First(&tenantAInvoice, "tenant_id = ?", "tenant-a").Error)
	assert.True(t, tenantAInvoice.TotalAmount.Equal(decimal.RequireFromString("150")))
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	a, db, node := newTestAllocator(t)
	seedSubscription(t, db, node, "tenant-a", "starter", "10000", subscriptiondomain.StatusActive)

	start, end := MonthPeriod(2026, time.February)
	ctx := context.Background()

	_, err := a.Run(ctx, start, end)
	require.NoError(t, err)

	second, err := a.Run(ctx, start, end)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Successful)
	assert.Equal(t, 0, second.InvoicesCreated)

	var ledger ledgerdomain.CreditLedger
	require.NoError(t, db.First(&ledger, "tenant_id = ?", "tenant-a").Error)
	assert.True(t, ledger.Balance.Equal(decimal.RequireFromString("10000")))

	var invoiceCount int64
	require.NoError(t, db.Model(&invoicedomain.Invoice{}).Count(&invoiceCount).Error)
	assert.Equal(t, int64(1), invoiceCount)
}

func TestRun_DistinctMonthsAllocateSeparately(t *testing.T) {
	a, db, node := newTestAllocator(t)
	seedSubscription(t, db, node, "tenant-a", "starter", "1000", subscriptiondomain.StatusActive)
	ctx := context.Background()

	janStart, janEnd := MonthPeriod(2026, time.January)
	febStart, febEnd := MonthPeriod(2026, time.February)

	_, err := a.Run(ctx, janStart, janEnd)
	require.NoError(t, err)
	_, err = a.Run(ctx, febStart, febEnd)
	require.NoError(t, err)

	var ledger ledgerdomain.CreditLedger
	require.NoError(t, db.First(&ledger, "tenant_id = ?", "tenant-a").Error)
	assert.True(t, ledger.Balance.Equal(decimal.RequireFromString("2000")))
}

func TestPreviousMonth(t *testing.T) {
	start, end := PreviousMonth(time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC), end)

	// Leap year February.
	start, end = PreviousMonth(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC), end)

	// January rolls back into the previous year.
	start, end = PreviousMonth(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC), end)
}

func TestAllocationKey(t *testing.T) {
	start, _ := MonthPeriod(2024, time.January)
	assert.Equal(t, "allocation:T1:2024-01", AllocationKey("T1", start))
}
