package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditd/internal/anomaly"
	"github.com/smallbiznis/creditd/internal/clock"
	"github.com/smallbiznis/creditd/internal/config"
	ledgerrepo "github.com/smallbiznis/creditd/internal/ledger/repository"
	"github.com/smallbiznis/creditd/internal/observability"
	"github.com/smallbiznis/creditd/internal/worker"
	"github.com/smallbiznis/creditd/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var (
	once     bool
	daily    bool
	interval int
)

var rootCmd = &cobra.Command{
	Use:   "anomaly",
	Short: "Credit usage anomaly detector",
	Long: `Watches credit consumption for threshold breaches and notifies the
configured channels. Runs continuously by default; --once and --daily
perform a single pass and exit.`,
	Run: runDetector,
}

func init() {
	rootCmd.Flags().BoolVar(&once, "once", false, "run one hourly detection pass and exit")
	rootCmd.Flags().BoolVar(&daily, "daily", false, "run one daily detection pass and exit")
	rootCmd.Flags().IntVar(&interval, "interval", 0, "detection interval in seconds, overrides ANOMALY_DETECTION_INTERVAL_SECONDS")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runDetector(cmd *cobra.Command, args []string) {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		ledgerrepo.Module,
		anomaly.Module,
		worker.Module,

		// No server module!
		fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, w *worker.AnomalyWorker) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					switch {
					case once:
						go runAndExit(sd, w.RunOnce)
					case daily:
						go runAndExit(sd, w.RunOnceDaily)
					case interval > 0:
						go w.RunEvery(context.Background(), time.Duration(interval)*time.Second)
					default:
						go w.RunForever(context.Background())
					}
					return nil
				},
			})
		}),
	)
	app.Run()
}

func runAndExit(sd fx.Shutdowner, job func(context.Context) error) {
	if err := job(context.Background()); err != nil {
		_ = sd.Shutdown(fx.ExitCode(1))
		return
	}
	_ = sd.Shutdown()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
