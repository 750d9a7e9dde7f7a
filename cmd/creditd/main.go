package main

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditd/internal/allocator"
	"github.com/smallbiznis/creditd/internal/anomaly"
	"github.com/smallbiznis/creditd/internal/clock"
	"github.com/smallbiznis/creditd/internal/config"
	"github.com/smallbiznis/creditd/internal/migration"
	"github.com/smallbiznis/creditd/internal/observability"
	"github.com/smallbiznis/creditd/internal/reconciler"
	"github.com/smallbiznis/creditd/internal/server"
	subscriptionrepo "github.com/smallbiznis/creditd/internal/subscription/repository"
	"github.com/smallbiznis/creditd/internal/worker"
	"github.com/smallbiznis/creditd/pkg/db"
	"go.uber.org/fx"
)

// Monolith entrypoint: HTTP API plus all background workers in one process.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		server.Module,

		anomaly.Module,
		subscriptionrepo.Module,
		allocator.Module,
		reconciler.Module,
		worker.Module,

		fx.Invoke(StartWorkers),
	)
	app.Run()
}

func StartWorkers(lc fx.Lifecycle, cfg config.Config, an *worker.AnomalyWorker, al *worker.AllocatorWorker, re *worker.ReconcilerWorker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.Anomaly.Enabled {
				go an.RunForever(context.Background())
			}
			if cfg.Allocation.Enabled {
				go al.RunForever(context.Background(), time.Hour)
			}
			if cfg.Reconciliation.Enabled {
				go re.RunForever(context.Background())
			}
			return nil
		},
	})
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
