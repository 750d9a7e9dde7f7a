package worker

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/smallbiznis/creditd/internal/anomaly/detector"
	"github.com/smallbiznis/creditd/internal/anomaly/domain"
	"github.com/smallbiznis/creditd/internal/clock"
	"github.com/smallbiznis/creditd/internal/config"
)

// AnomalyWorker drives the detector on its configured cadence.
type AnomalyWorker struct {
	runner   *Runner
	detector *detector.Detector
	clock    clock.Clock
	cfg      config.AnomalyConfig
}

type AnomalyWorkerParam struct {
	fx.In

	Runner   *Runner
	Detector *detector.Detector
	Clock    clock.Clock
	Config   config.Config
}

func NewAnomalyWorker(p AnomalyWorkerParam) *AnomalyWorker {
	return &AnomalyWorker{
		runner:   p.Runner,
		detector: p.Detector,
		clock:    p.Clock,
		cfg:      p.Config.Anomaly,
	}
}

// RunOnce performs one hourly-threshold detection over the default window.
func (w *AnomalyWorker) RunOnce(ctx context.Context) error {
	return w.runner.RunOnce(ctx, "anomaly.hourly", w.detectHourly)
}

// RunOnceDaily performs one daily-threshold detection over the previous
// full UTC day.
func (w *AnomalyWorker) RunOnceDaily(ctx context.Context) error {
	return w.runner.RunOnce(ctx, "anomaly.daily", w.detectDaily)
}

// RunForever drives the hourly detection on the configured interval.
func (w *AnomalyWorker) RunForever(ctx context.Context) {
	interval := time.Duration(w.cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}
	w.RunEvery(ctx, interval)
}

// RunEvery drives the hourly detection on an explicit interval.
func (w *AnomalyWorker) RunEvery(ctx context.Context, interval time.Duration) {
	w.runner.RunForever(ctx, "anomaly.hourly", interval, w.detectHourly)
}

func (w *AnomalyWorker) detectHourly(ctx context.Context) error {
	_, err := w.detector.Detect(ctx, detector.Params{
		Threshold:   w.cfg.HourlyThreshold,
		AnomalyType: domain.TypeHourlyThreshold,
	})
	return err
}

func (w *AnomalyWorker) detectDaily(ctx context.Context) error {
	now := w.clock.Now()
	dayEnd := now.Truncate(24 * time.Hour)
	_, err := w.detector.Detect(ctx, detector.Params{
		PeriodStart: dayEnd.Add(-24 * time.Hour),
		PeriodEnd:   dayEnd,
		Threshold:   w.cfg.DailyThreshold,
		AnomalyType: domain.TypeDailyThreshold,
	})
	return err
}
