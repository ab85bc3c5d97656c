package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/paylink/internal/config"
	"github.com/smallbiznis/paylink/internal/observability"
	obsmiddleware "github.com/smallbiznis/paylink/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/paylink/internal/observability/metrics"
	obstracing "github.com/smallbiznis/paylink/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
	promodomain "github.com/smallbiznis/paylink/internal/promo/domain"
	referraldomain "github.com/smallbiznis/paylink/internal/referral/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(obstracing.MiddlewareConfig{SkipPaths: obstracing.DefaultSkipPaths}))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
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
	engine      *gin.Engine
	paymentSvc  paymentdomain.Service
	webhookSvc  paymentdomain.WebhookService
	promoSvc    promodomain.Service
	referralSvc referraldomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	PaymentSvc  paymentdomain.Service
	WebhookSvc  paymentdomain.WebhookService
	PromoSvc    promodomain.Service
	ReferralSvc referraldomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		paymentSvc:  p.PaymentSvc,
		webhookSvc:  p.WebhookSvc,
		promoSvc:    p.PromoSvc,
		referralSvc: p.ReferralSvc,
	}
	svc.registerAPIRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	// -------- Hosted payment --------
	api.POST("/hosted-payment/link", s.CreateHostedPaymentLink)
	api.GET("/pay-now/:uuid", s.PayNow)

	// -------- Gateway callbacks --------
	api.POST("/transaction", s.HandleTelrWebhook)
	api.POST("/transaction/noon", s.HandleNoonWebhook)
	api.GET("/transaction/noon/redirect", s.NoonRedirect)

	// -------- Promo --------
	api.GET("/promo", s.ListPromos)
	api.GET("/promo/:code", s.CheckPromo)

	// -------- Referrals --------
	api.POST("/referrals/apply", s.ApplyReferral)
	api.GET("/referrals/rewards-balance", s.ListRewardsBalance)
	api.GET("/referrals/rewards-balance/users/:userId", s.ListUserRewardsBalance)

	// -------- Purchase orders --------
	api.POST("/purchase-order/promo", s.ApplyPromo)
	api.GET("/purchase-order", s.GetPurchaseOrder)
	api.GET("/purchase-order/payment-transaction", s.GetPaymentTransaction)
	api.DELETE("/purchase-order/payment-transaction", s.CancelPaymentTransaction)
}
