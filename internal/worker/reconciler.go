package worker

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/smallbiznis/creditd/internal/config"
	"github.com/smallbiznis/creditd/internal/reconciler"
)

// ReconcilerWorker drives the integrity loop on its configured cadence.
type ReconcilerWorker struct {
	runner     *Runner
	reconciler *reconciler.Reconciler
	cfg        config.ReconciliationConfig
}

type ReconcilerWorkerParam struct {
	fx.In

	Runner     *Runner
	Reconciler *reconciler.Reconciler
	Config     config.Config
}

func NewReconcilerWorker(p ReconcilerWorkerParam) *ReconcilerWorker {
	return &ReconcilerWorker{
		runner:     p.Runner,
		reconciler: p.Reconciler,
		cfg:        p.Config.Reconciliation,
	}
}

func (w *ReconcilerWorker) RunOnce(ctx context.Context) error {
	return w.runner.RunOnce(ctx, "reconciler", func(ctx context.Context) error {
		_, err := w.reconciler.Run(ctx)
		return err
	})
}

func (w *ReconcilerWorker) RunForever(ctx context.Context) {
	interval := time.Duration(w.cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	w.RunEvery(ctx, interval)
}

// RunEvery runs the integrity loop on an explicit interval.
func (w *ReconcilerWorker) RunEvery(ctx context.Context, interval time.Duration) {
	w.runner.RunForever(ctx, "reconciler", interval, func(ctx context.Context) error {
		_, err := w.reconciler.Run(ctx)
		return err
	})
}
