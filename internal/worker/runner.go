// Package worker provides the shared run-once / run-forever runtime for the
// background loops.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smallbiznis/creditd/internal/clock"
	"github.com/smallbiznis/creditd/internal/observability/metrics"
)

// Job is one worker iteration. Errors are logged and counted, never
// propagated out of the outer loop.
type Job func(ctx context.Context) error

// Runner drives named jobs. Every iteration gets its own run ID and panic
// recovery so a bad iteration cannot take the loop down.
type Runner struct {
	log     *zap.Logger
	clock   clock.Clock
	metrics *metrics.Metrics
}

func NewRunner(log *zap.Logger, clk clock.Clock, m *metrics.Metrics) *Runner {
	return &Runner{
		log:     log.Named("worker"),
		clock:   clk,
		metrics: m,
	}
}

// RunOnce executes a single iteration and reports its error.
func (r *Runner) RunOnce(ctx context.Context, name string, job Job) error {
	runID := uuid.NewString()
	log := r.log.With(zap.String("worker", name), zap.String("run_id", runID))

	started := r.clock.Now()
	err := r.safeRun(ctx, job)
	elapsed := r.clock.Now().Sub(started)

	outcome := "success"
	if err != nil {
		outcome = "error"
		log.Error("worker run failed", zap.Error(err), zap.Duration("elapsed", elapsed))
	} else {
		log.Info("worker run complete", zap.Duration("elapsed", elapsed))
	}
	r.metrics.RecordWorkerRun(name, outcome, elapsed)
	return err
}

// RunForever drives RunOnce on a fixed interval until the context is
// cancelled. Iteration errors are swallowed after logging; the loop only
// exits on cancellation.
func (r *Runner) RunForever(ctx context.Context, name string, interval time.Duration, job Job) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_ = r.RunOnce(ctx, name, job)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("worker panic: %v", rec)
		}
	}()
	return job(ctx)
}
