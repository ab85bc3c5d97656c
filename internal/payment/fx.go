package payment

import (
	"github.com/smallbiznis/paylink/internal/config"
	obsmetrics "github.com/smallbiznis/paylink/internal/observability/metrics"
	"github.com/smallbiznis/paylink/internal/payment/adapters"
	"github.com/smallbiznis/paylink/internal/payment/adapters/noon"
	"github.com/smallbiznis/paylink/internal/payment/adapters/telr"
	"github.com/smallbiznis/paylink/internal/payment/domain"
	"github.com/smallbiznis/paylink/internal/payment/repository"
	paymentservice "github.com/smallbiznis/paylink/internal/payment/service"
	"github.com/smallbiznis/paylink/internal/payment/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type adapterParams struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(p adapterParams) *adapters.Registry {
		return adapters.NewRegistry(
			telr.New(p.Cfg, p.Log, p.ObsMetrics),
			noon.New(p.Cfg, p.Log, p.ObsMetrics),
		)
	}),
	fx.Provide(paymentservice.NewService),
	fx.Provide(func(s *paymentservice.Service) domain.Service { return s }),
	fx.Provide(webhook.NewService),
)
