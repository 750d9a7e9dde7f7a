// Package server exposes the billing HTTP surface.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/creditd/internal/config"
	"github.com/smallbiznis/creditd/internal/estimate"
	"github.com/smallbiznis/creditd/internal/invoice"
	invoicedomain "github.com/smallbiznis/creditd/internal/invoice/domain"
	"github.com/smallbiznis/creditd/internal/ledger"
	ledgerdomain "github.com/smallbiznis/creditd/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/creditd/internal/observability/metrics"
	obstracing "github.com/smallbiznis/creditd/internal/observability/tracing"
)

var Module = fx.Module("http.server",
	ledger.Module,
	invoice.Module,
	estimate.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// NewEngine builds the shared gin engine with recovery, tracing and
// metrics middleware plus the operational endpoints.
func NewEngine(httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(httpMetrics)
}

type Server struct {
	engine     *gin.Engine
	log        *zap.Logger
	ledgerSvc  ledgerdomain.Service
	invoiceSvc invoicedomain.Service
	estimator  *estimate.Estimator
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Log        *zap.Logger
	LedgerSvc  ledgerdomain.Service
	InvoiceSvc invoicedomain.Service
	Estimator  *estimate.Estimator
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:     p.Gin,
		log:        p.Log.Named("http"),
		ledgerSvc:  p.LedgerSvc,
		invoiceSvc: p.InvoiceSvc,
		estimator:  p.Estimator,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	billing := s.engine.Group("/billing")

	credits := billing.Group("/credits")
	credits.POST("/consume", s.consumeCredits)
	credits.POST("/refund", s.refundCredits)
	credits.POST("/estimate", s.estimateCost)
	credits.GET("/balance/:tenant_id", s.getBalance)
	credits.GET("/transactions", s.listTransactions)

	invoices := billing.Group("/invoices")
	invoices.GET("/:id/proforma", s.getProforma)
	invoices.GET("/:id/proforma/pdf", s.getProformaPDF)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.APIHost, cfg.APIPort),
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting http server", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
