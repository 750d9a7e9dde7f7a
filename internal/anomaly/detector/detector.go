// Package detector implements the windowed consumption threshold check.
package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/creditd/internal/anomaly/domain"
	"github.com/smallbiznis/creditd/internal/anomaly/notify"
	"github.com/smallbiznis/creditd/internal/clock"
	ledgerdomain "github.com/smallbiznis/creditd/internal/ledger/domain"
	"github.com/smallbiznis/creditd/internal/observability/metrics"
)

// Params configure one detection run. Zero PeriodEnd defaults to now
// truncated to the hour; zero PeriodStart defaults to PeriodEnd minus one
// hour.
type Params struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Threshold   decimal.Decimal
	AnomalyType domain.Type
}

// Result summarises one detection run.
type Result struct {
	PeriodStart     time.Time             `json:"period_start"`
	PeriodEnd       time.Time             `json:"period_end"`
	TenantsChecked  int                   `json:"tenants_checked"`
	AnomaliesFound  int                   `json:"anomalies_found"`
	Anomalies       []domain.UsageAnomaly `json:"anomalies"`
	NotifiedCount   int                   `json:"notified_count"`
	ElapsedMillisec int64                 `json:"elapsed_ms"`
}

type DetectorParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Anomalies domain.Repository
	Txs       ledgerdomain.TransactionRepository
	Notifier  notify.Notifier
	Metrics   *metrics.Metrics `optional:"true"`
}

type Detector struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	anomalies domain.Repository
	txs       ledgerdomain.TransactionRepository
	notifier  notify.Notifier
	metrics   *metrics.Metrics
}

func NewDetector(p DetectorParam) *Detector {
	return &Detector{
		db:        p.DB,
		log:       p.Log.Named("anomaly.detector"),
		genID:     p.GenID,
		clock:     p.Clock,
		anomalies: p.Anomalies,
		txs:       p.Txs,
		notifier:  p.Notifier,
		metrics:   p.Metrics,
	}
}

// Detect runs one threshold pass over the closed-open window. Detection
// commits once at the end even when nothing breached; notification and the
// notified_at stamp happen afterwards, each in its own write.
func (d *Detector) Detect(ctx context.Context, params Params) (*Result, error) {
	started := d.clock.Now()

	periodEnd := params.PeriodEnd
	if periodEnd.IsZero() {
		periodEnd = started.Truncate(time.Hour)
	}
	periodStart := params.PeriodStart
	if periodStart.IsZero() {
		periodStart = periodEnd.Add(-time.Hour)
	}

	result := &Result{PeriodStart: periodStart, PeriodEnd: periodEnd}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sums, err := d.txs.SumConsumptionByTenant(ctx, tx, periodStart, periodEnd)
		if err != nil {
			return domain.WrapFailure("failed to aggregate consumption", err)
		}
		result.TenantsChecked = len(sums)

		for _, row := range sums {
			if row.Total.LessThanOrEqual(params.Threshold) {
				continue
			}

			exists, err := d.anomalies.ExistsForTenantPeriod(ctx, tx, row.TenantID, periodStart, periodEnd)
			if err != nil {
				return domain.WrapFailure("failed to check existing anomaly", err)
			}
			if exists {
				continue
			}

			anomaly := domain.UsageAnomaly{
				ID:             d.genID.Generate(),
				TenantID:       row.TenantID,
				AnomalyType:    params.AnomalyType,
				Status:         domain.StatusDetected,
				ThresholdValue: params.Threshold,
				ActualValue:    row.Total,
				PeriodStart:    periodStart,
				PeriodEnd:      periodEnd,
				Description: fmt.Sprintf(
					"tenant %s consumed %s credits between %s and %s, above the %s threshold",
					row.TenantID, row.Total,
					periodStart.Format(time.RFC3339), periodEnd.Format(time.RFC3339),
					params.Threshold,
				),
				DetectedAt: d.clock.Now(),
			}
			if err := d.anomalies.Create(ctx, tx, &anomaly); err != nil {
				return domain.WrapFailure("failed to create anomaly", err)
			}
			result.Anomalies = append(result.Anomalies, anomaly)
		}
		return nil
	})
	if err != nil {
		if _, ok := err.(*domain.Error); ok {
			return nil, err
		}
		return nil, domain.WrapFailure("detection run failed", err)
	}

	result.AnomaliesFound = len(result.Anomalies)
	for i := range result.Anomalies {
		anomaly := &result.Anomalies[i]
		d.metrics.RecordAnomaly()

		if err := d.notifier.Notify(ctx, anomaly); err != nil {
			d.log.Error("anomaly notification failed",
				zap.String("tenant_id", anomaly.TenantID),
				zap.Error(err),
			)
			continue
		}
		if err := d.anomalies.MarkNotified(ctx, d.db, anomaly.ID, d.clock.Now()); err != nil {
			d.log.Error("failed to mark anomaly notified",
				zap.String("tenant_id", anomaly.TenantID),
				zap.Error(err),
			)
			continue
		}
		result.NotifiedCount++
	}

	result.ElapsedMillisec = d.clock.Now().Sub(started).Milliseconds()
	d.log.Info("detection run complete",
		zap.Time("period_start", periodStart),
		zap.Time("period_end", periodEnd),
		zap.Int("tenants_checked", result.TenantsChecked),
		zap.Int("anomalies_found", result.AnomaliesFound),
	)
	return result, nil
}

// UpdateStatus moves an anomaly through its triage states.
func (d *Detector) UpdateStatus(ctx context.Context, id snowflake.ID, status domain.Status, resolvedBy *string) error {
	if err := d.anomalies.UpdateStatus(ctx, d.db, id, status, resolvedBy, d.clock.Now()); err != nil {
		return domain.WrapFailure("failed to update anomaly status", err)
	}
	return nil
}
