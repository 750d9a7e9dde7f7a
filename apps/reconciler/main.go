package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditd/internal/clock"
	"github.com/smallbiznis/creditd/internal/config"
	ledgerrepo "github.com/smallbiznis/creditd/internal/ledger/repository"
	"github.com/smallbiznis/creditd/internal/observability"
	"github.com/smallbiznis/creditd/internal/reconciler"
	"github.com/smallbiznis/creditd/internal/worker"
	"github.com/smallbiznis/creditd/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var (
	once     bool
	interval int
)

var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Ledger balance integrity checker",
	Long: `Compares every ledger's stored balance against the signed sum of its
transactions and reports discrepancies. Runs continuously by default;
--once performs a single pass and exits.`,
	Run: runReconciler,
}

func init() {
	rootCmd.Flags().BoolVar(&once, "once", false, "run one integrity pass and exit")
	rootCmd.Flags().IntVar(&interval, "interval", 0, "pass interval in seconds, overrides RECONCILIATION_INTERVAL_SECONDS")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runReconciler(cmd *cobra.Command, args []string) {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		ledgerrepo.Module,
		reconciler.Module,
		worker.Module,

		// No server module!
		fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, w *worker.ReconcilerWorker) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					switch {
					case once:
						go runAndExit(sd, w.RunOnce)
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
