package worker

import (
	"context"
	"errors"
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

	"github.com/smallbiznis/creditd/internal/allocator"
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

func TestRunner_ReportsJobError(t *testing.T) {
	r := NewRunner(zap.NewNop(), clock.NewFakeClock(time.Now()), nil)

	boom := errors.New("boom")
	err := r.RunOnce(context.Background(), "job", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = r.RunOnce(context.Background(), "job", func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestRunner_RecoversPanic(t *testing.T) {
	r := NewRunner(zap.NewNop(), clock.NewFakeClock(time.Now()), nil)

	err := r.RunOnce(context.Background(), "job", func(context.Context) error {
		panic("worker exploded")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker exploded")
}

func TestRunner_RunForeverStopsOnCancel(t *testing.T) {
	r := NewRunner(zap.NewNop(), clock.NewFakeClock(time.Now()), nil)

	ctx, cancel := context.WithCancel(context.Background())
	runs := 0
	done := make(chan struct{})
	go func() {
		r.RunForever(ctx, "job", 10*time.Millisecond, func(context.Context) error {
			runs++
			if runs >= 2 {
				cancel()
			}
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run loop did not stop on cancellation")
	}
	assert.GreaterOrEqual(t, runs, 2)
}

type stubRenderer struct{}

func (stubRenderer) RenderProforma(*invoicedomain.Invoice) ([]byte, error) {
	return []byte("%PDF-1.7 stub"), nil
}

func newAllocatorWorker(t *testing.T, fake *clock.FakeClock) (*AllocatorWorker, *gorm.DB, *snowflake.Node) {
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
	log := zap.NewNop()

	cfg := config.Config{
		Allocation: config.AllocationConfig{
			Enabled:     true,
			CreditPrice: decimal.RequireFromString("0.01"),
			RunDay:      1,
		},
	}

	alloc := allocator.NewAllocator(allocator.AllocatorParam{
		DB:     db,
		Log:    log,
		Clock:  fake,
		Config: cfg,
		Subscriptions: subscriptionrepo.NewRepository(),
		Ledger: ledgersvc.NewService(ledgersvc.ServiceParam{
			DB:      db,
			Log:     log,
			GenID:   node,
			Clock:   fake,
			Ledgers: ledgerrepo.NewLedgerRepository(),
			Txs:     ledgerrepo.NewTransactionRepository(),
		}),
		Invoices: invoicesvc.NewService(invoicesvc.ServiceParam{
			DB:       db,
			Log:      log,
			GenID:    node,
			Clock:    fake,
			Invoices: invoicerepo.NewRepository(),
			Renderer: stubRenderer{},
		}),
	})

	w := NewAllocatorWorker(AllocatorWorkerParam{
		Runner:    NewRunner(log, fake, nil),
		Allocator: alloc,
		Clock:     fake,
		Log:       log,
		Config:    cfg,
	})
	return w, db, node
}

func TestAllocatorWorker_GateClosedMidMonth(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	w, db, node := newAllocatorWorker(t, fake)

	require.NoError(t, db.Create(&subscriptiondomain.Subscription{
		ID:             node.Generate(),
		TenantID:       "tenant-a",
		Status:         subscriptiondomain.StatusActive,
		PlanName:       "starter",
		MonthlyCredits: decimal.RequireFromString("1000"),
		StartDate:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}).Error)

	w.tick(context.Background())

	var count int64
	require.NoError(t, db.Model(&ledgerdomain.CreditTransaction{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestAllocatorWorker_GateRunsOncePerMonth(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 3, 2, 0, 30, 0, 0, time.UTC))
	w, db, node := newAllocatorWorker(t, fake)

	require.NoError(t, db.Create(&subscriptiondomain.Subscription{
		ID:             node.Generate(),
		TenantID:       "tenant-a",
		Status:         subscriptiondomain.StatusActive,
		PlanName:       "starter",
		MonthlyCredits: decimal.RequireFromString("1000"),
		StartDate:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}).Error)

	ctx := context.Background()
	w.tick(ctx)
	w.tick(ctx)
	w.tick(ctx)

	var ledger ledgerdomain.CreditLedger
	require.NoError(t, db.First(&ledger, "tenant_id = ?", "tenant-a").Error)
	assert.True(t, ledger.Balance.Equal(decimal.RequireFromString("1000")))

	var invoiceCount int64
	require.NoError(t, db.Model(&invoicedomain.Invoice{}).Count(&invoiceCount).Error)
	assert.Equal(t, int64(1), invoiceCount)
}
