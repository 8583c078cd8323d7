package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medisync/clinicbilling/internal/billingstats"
	statsdomain "github.com/medisync/clinicbilling/internal/billingstats/domain"
	"github.com/medisync/clinicbilling/internal/cashflow"
	"github.com/medisync/clinicbilling/internal/config"
	"github.com/medisync/clinicbilling/internal/export"
	exportdomain "github.com/medisync/clinicbilling/internal/export/domain"
	"github.com/medisync/clinicbilling/internal/invoice"
	invoicedomain "github.com/medisync/clinicbilling/internal/invoice/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	invoice.Module,
	billingstats.Module,
	export.Module,
	cashflow.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	invoiceSvc invoicedomain.Service
	statsSvc   statsdomain.Service
	exportSvc  exportdomain.Service
	cashFlows  *cashflow.Manager
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	InvoiceSvc invoicedomain.Service
	StatsSvc   statsdomain.Service
	ExportSvc  exportdomain.Service
	CashFlows  *cashflow.Manager
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		invoiceSvc: p.InvoiceSvc,
		statsSvc:   p.StatsSvc,
		exportSvc:  p.ExportSvc,
		cashFlows:  p.CashFlows,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")
	api.Use(ActorMiddleware())

	invoices := api.Group("/invoices")
	{
		invoices.GET("", s.ListInvoices)
		invoices.POST("", s.CreateInvoice)
		invoices.GET("/:id", s.GetInvoiceByID)
		invoices.PATCH("/:id", s.UpdateInvoice)
		invoices.DELETE("/:id", s.DeleteInvoice)
		invoices.POST("/:id/cash-payment", s.MarkInvoiceCashPaid)
		invoices.POST("/:id/payments", s.RecordInvoicePayment)
		invoices.GET("/:id/payments", s.ListInvoicePayments)
		invoices.POST("/:id/refund", s.RefundInvoice)
		invoices.GET("/:id/document", s.DownloadInvoiceDocument)

		invoices.GET("/:id/cash-flow", s.GetCashFlowState)
		invoices.POST("/:id/cash-flow/confirm", s.ConfirmCashFlow)
		invoices.POST("/:id/cash-flow/retry", s.RetryCashFlow)
		invoices.POST("/:id/cash-flow/cancel", s.CancelCashFlow)
	}

	api.GET("/billing/stats", s.GetBillingStats)
}
