package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/creditd/internal/allocator"
	"github.com/smallbiznis/creditd/internal/clock"
	"github.com/smallbiznis/creditd/internal/config"
)

// allocationWindowDays is how many days past the configured run day the
// gated loop will still start the monthly run.
const allocationWindowDays = 3

// AllocatorWorker wraps the monthly allocator with the calendar gate used by
// the continuous mode: run only in the first days of a month, at most once
// per month per process.
type AllocatorWorker struct {
	runner    *Runner
	allocator *allocator.Allocator
	clock     clock.Clock
	log       *zap.Logger
	cfg       config.AllocationConfig

	mu        sync.Mutex
	processed map[string]bool
}

type AllocatorWorkerParam struct {
	fx.In

	Runner    *Runner
	Allocator *allocator.Allocator
	Clock     clock.Clock
	Log       *zap.Logger
	Config    config.Config
}

func NewAllocatorWorker(p AllocatorWorkerParam) *AllocatorWorker {
	return &AllocatorWorker{
		runner:    p.Runner,
		allocator: p.Allocator,
		clock:     p.Clock,
		log:       p.Log.Named("worker.allocator"),
		cfg:       p.Config.Allocation,
		processed: make(map[string]bool),
	}
}

// RunOnce allocates for the previous calendar month unconditionally.
func (w *AllocatorWorker) RunOnce(ctx context.Context) error {
	start, end := allocator.PreviousMonth(w.clock.Now())
	return w.RunPeriod(ctx, start, end)
}

// RunPeriod allocates for an explicit billing period.
func (w *AllocatorWorker) RunPeriod(ctx context.Context, start, end time.Time) error {
	return w.runner.RunOnce(ctx, "allocator", func(ctx context.Context) error {
		_, err := w.allocator.Run(ctx, start, end)
		return err
	})
}

// RunForever checks the calendar gate on every tick and fires the monthly
// run when it opens. The in-memory guard stops repeat runs within one
// process; the allocation idempotency keys protect across restarts.
func (w *AllocatorWorker) RunForever(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		w.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *AllocatorWorker) tick(ctx context.Context) {
	now := w.clock.Now()
	if !w.gateOpen(now) {
		return
	}

	month := now.Format("2006-01")
	w.mu.Lock()
	if w.processed[month] {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	if err := w.RunOnce(ctx); err != nil {
		// Leave the month unmarked so the next tick retries.
		w.log.Warn("monthly allocation failed, will retry", zap.String("month", month), zap.Error(err))
		return
	}

	w.mu.Lock()
	w.processed[month] = true
	w.mu.Unlock()
}

func (w *AllocatorWorker) gateOpen(now time.Time) bool {
	first := w.cfg.RunDay
	if first < 1 {
		first = 1
	}
	return now.Day() >= first && now.Day() < first+allocationWindowDays
}
