package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditd/internal/allocator"
	"github.com/smallbiznis/creditd/internal/clock"
	"github.com/smallbiznis/creditd/internal/config"
	"github.com/smallbiznis/creditd/internal/invoice"
	"github.com/smallbiznis/creditd/internal/ledger"
	"github.com/smallbiznis/creditd/internal/observability"
	subscriptionrepo "github.com/smallbiznis/creditd/internal/subscription/repository"
	"github.com/smallbiznis/creditd/internal/worker"
	"github.com/smallbiznis/creditd/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var (
	year       int
	month      int
	continuous bool
	interval   int
)

var rootCmd = &cobra.Command{
	Use:   "allocator",
	Short: "Monthly credit allocator",
	Long: `Grants monthly credits to active subscriptions and drafts the matching
invoices. Allocates for the previous calendar month by default; --year and
--month select an explicit period, --continuous keeps a calendar-gated loop
running.`,
	Run: runAllocator,
}

func init() {
	rootCmd.Flags().IntVar(&year, "year", 0, "billing period year, used together with --month")
	rootCmd.Flags().IntVar(&month, "month", 0, "billing period month, used together with --year")
	rootCmd.Flags().BoolVar(&continuous, "continuous", false, "keep running and allocate when the calendar gate opens")
	rootCmd.Flags().IntVar(&interval, "interval", 3600, "gate check interval in seconds for --continuous")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runAllocator(cmd *cobra.Command, args []string) {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		ledger.Module,
		invoice.Module,
		subscriptionrepo.Module,
		allocator.Module,
		worker.Module,

		// No server module!
		fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, w *worker.AllocatorWorker) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					switch {
					case continuous:
						go w.RunForever(context.Background(), time.Duration(interval)*time.Second)
					case year != 0 && month != 0:
						start, end := allocator.MonthPeriod(year, time.Month(month))
						go runAndExit(sd, func(ctx context.Context) error {
							return w.RunPeriod(ctx, start, end)
						})
					default:
						go runAndExit(sd, w.RunOnce)
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
