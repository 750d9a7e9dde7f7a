// Package allocator grants monthly credits and drafts the matching invoices.
package allocator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/creditd/internal/clock"
	"github.com/smallbiznis/creditd/internal/config"
	invoicedomain "github.com/smallbiznis/creditd/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/creditd/internal/ledger/domain"
	"github.com/smallbiznis/creditd/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/creditd/internal/subscription/domain"
)

var Module = fx.Module("allocator",
	fx.Provide(NewAllocator),
)

// Summary reports one allocation run.
type Summary struct {
	Total           int       `json:"total"`
	Successful      int       `json:"successful"`
	Failed          int       `json:"failed"`
	InvoicesCreated int       `json:"invoices_created"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	ElapsedMillisec int64     `json:"elapsed_ms"`
}

type AllocatorParam struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Clock         clock.Clock
	Config        config.Config
	Subscriptions subscriptiondomain.Repository
	Ledger        ledgerdomain.Service
	Invoices      invoicedomain.Service
	Metrics       *metrics.Metrics `optional:"true"`
}

type Allocator struct {
	db            *gorm.DB
	log           *zap.Logger
	clock         clock.Clock
	creditPrice   config.AllocationConfig
	subscriptions subscriptiondomain.Repository
	ledger        ledgerdomain.Service
	invoices      invoicedomain.Service
	metrics       *metrics.Metrics
}

func NewAllocator(p AllocatorParam) *Allocator {
	return &Allocator{
		db:            p.DB,
		log:           p.Log.Named("allocator"),
		clock:         p.Clock,
		creditPrice:   p.Config.Allocation,
		subscriptions: p.Subscriptions,
		ledger:        p.Ledger,
		invoices:      p.Invoices,
		metrics:       p.Metrics,
	}
}

// PreviousMonth returns the first instant of the month before now through
// the last second of its last day, in UTC.
func PreviousMonth(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	firstOfCurrent := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	start := firstOfCurrent.AddDate(0, -1, 0)
	end := firstOfCurrent.Add(-time.Second)
	return start, end
}

// MonthPeriod returns the billing period for an explicit year and month.
func MonthPeriod(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Second)
	return start, end
}

// Run allocates monthly credits for every ACTIVE subscription and drafts one
// invoice per tenant for the period. Each subscription is processed in its
// own transaction scope; one tenant's failure never rolls back another's.
func (a *Allocator) Run(ctx context.Context, periodStart, periodEnd time.Time) (*Summary, error) {
	started := a.clock.Now()

	subscriptions, err := a.subscriptions.ListActive(ctx, a.db)
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}

	summary := &Summary{
		Total:       len(subscriptions),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}

	for i := range subscriptions {
		sub := &subscriptions[i]
		if err := a.allocateOne(ctx, sub, periodStart, periodEnd, summary); err != nil {
			summary.Failed++
			a.log.Error("subscription allocation failed",
				zap.String("tenant_id", sub.TenantID),
				zap.String("subscription_id", sub.ID.String()),
				zap.Error(err),
			)
			continue
		}
		summary.Successful++
	}

	summary.ElapsedMillisec = a.clock.Now().Sub(started).Milliseconds()
	a.log.Info("monthly allocation run complete",
		zap.Int("total", summary.Total),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
		zap.Int("invoices_created", summary.InvoicesCreated),
		zap.Time("period_start", periodStart),
		zap.Time("period_end", periodEnd),
	)
	return summary, nil
}

func (a *Allocator) allocateOne(ctx context.Context, sub *subscriptiondomain.Subscription, periodStart, periodEnd time.Time, summary *Summary) error {
	referenceType := "subscription"
	referenceID := sub.ID.String()

	_, err := a.ledger.Allocate(ctx, ledgerdomain.MutationCommand{
		TenantID:       sub.TenantID,
		Amount:         sub.MonthlyCredits,
		IdempotencyKey: AllocationKey(sub.TenantID, periodStart),
		ReferenceType:  &referenceType,
		ReferenceID:    &referenceID,
		Metadata: map[string]any{
			"plan_name":    sub.PlanName,
			"period_start": periodStart.Format("2006-01-02"),
			"period_end":   periodEnd.Format("2006-01-02"),
		},
	})
	if err != nil {
		return fmt.Errorf("allocate credits: %w", err)
	}

	result, err := a.invoices.CreateInvoice(ctx, invoicedomain.CreateInvoiceCommand{
		TenantID:    sub.TenantID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Lines: []invoicedomain.LineItem{{
			Description: fmt.Sprintf("Monthly credit allocation - %s (%s)",
				sub.PlanName, periodStart.Format("2006-01")),
			Quantity:  sub.MonthlyCredits,
			UnitPrice: a.creditPrice.CreditPrice,
		}},
	})
	if err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	if result.Created {
		summary.InvoicesCreated++
	}
	return nil
}

// AllocationKey is the idempotency key for one tenant's monthly grant.
func AllocationKey(tenantID string, periodStart time.Time) string {
	return fmt.Sprintf("allocation:%s:%s", tenantID, periodStart.Format("2006-01"))
}
