// Package reconciler verifies stored balances against the transaction log.
package reconciler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/creditd/internal/clock"
	ledgerdomain "github.com/smallbiznis/creditd/internal/ledger/domain"
	"github.com/smallbiznis/creditd/internal/observability/metrics"
)

var Module = fx.Module("reconciler",
	fx.Provide(NewReconciler),
)

// CodeReconciliationFailed wraps unexpected failures inside a run.
const CodeReconciliationFailed = "RECONCILIATION_FAILED"

// Discrepancy is one ledger whose stored balance disagrees with the signed
// sum of its transactions.
type Discrepancy struct {
	TenantID   string          `json:"tenant_id"`
	LedgerID   snowflake.ID    `json:"ledger_id"`
	Stored     decimal.Decimal `json:"stored_balance"`
	Calculated decimal.Decimal `json:"calculated_balance"`
	Delta      decimal.Decimal `json:"delta"`
}

// Report summarises one reconciliation pass.
type Report struct {
	Checked         int           `json:"checked"`
	Discrepancies   []Discrepancy `json:"discrepancies"`
	RunAt           time.Time     `json:"run_at"`
	ElapsedMillisec int64         `json:"elapsed_ms"`
}

type ReconcilerParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Ledgers ledgerdomain.LedgerRepository
	Txs     ledgerdomain.TransactionRepository
	Metrics *metrics.Metrics `optional:"true"`
}

type Reconciler struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	ledgers ledgerdomain.LedgerRepository
	txs     ledgerdomain.TransactionRepository
	metrics *metrics.Metrics
}

func NewReconciler(p ReconcilerParam) *Reconciler {
	return &Reconciler{
		db:      p.DB,
		log:     p.Log.Named("reconciler"),
		clock:   p.Clock,
		ledgers: p.Ledgers,
		txs:     p.Txs,
		metrics: p.Metrics,
	}
}

// Run walks every ledger and compares the stored balance with the signed
// transaction sum. Read-only; discrepancies are reported, never repaired.
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	started := r.clock.Now()
	report := &Report{RunAt: started}

	ledgers, err := r.ledgers.GetAll(ctx, r.db)
	if err != nil {
		return nil, &ledgerdomain.Error{
			Code:    CodeReconciliationFailed,
			Message: "failed to list ledgers",
			Reason:  err.Error(),
		}
	}

	for i := range ledgers {
		ledger := &ledgers[i]
		calculated, err := r.txs.SumByLedger(ctx, r.db, ledger.ID)
		if err != nil {
			return nil, &ledgerdomain.Error{
				Code:    CodeReconciliationFailed,
				Message: "failed to sum transactions for ledger " + ledger.ID.String(),
				Reason:  err.Error(),
			}
		}
		report.Checked++

		if ledger.Balance.Equal(calculated) {
			continue
		}

		discrepancy := Discrepancy{
			TenantID:   ledger.TenantID,
			LedgerID:   ledger.ID,
			Stored:     ledger.Balance,
			Calculated: calculated,
			Delta:      ledger.Balance.Sub(calculated),
		}
		report.Discrepancies = append(report.Discrepancies, discrepancy)
		r.metrics.RecordDiscrepancy()
		r.log.Error("ledger balance discrepancy",
			zap.String("tenant_id", discrepancy.TenantID),
			zap.String("ledger_id", discrepancy.LedgerID.String()),
			zap.String("stored", discrepancy.Stored.String()),
			zap.String("calculated", discrepancy.Calculated.String()),
			zap.String("delta", discrepancy.Delta.String()),
		)
	}

	report.ElapsedMillisec = r.clock.Now().Sub(started).Milliseconds()
	r.log.Info("reconciliation run complete",
		zap.Int("checked", report.Checked),
		zap.Int("discrepancies", len(report.Discrepancies)),
	)
	return report, nil
}
