package slack

import (
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/smallbiznis/paylink/internal/config"
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.slack",
	fx.Provide(NewFromConfig),
	fx.Provide(NewAlerter),
	fx.Provide(func(a *Alerter) paymentdomain.Alerter { return a }),
)

func NewFromConfig(cfg config.Config) Provider {
	if strings.TrimSpace(cfg.Slack.Token) == "" || strings.TrimSpace(cfg.Slack.Channel) == "" {
		return &NoOpProvider{}
	}
	return NewAPIProvider(cfg.Slack, resty.New().SetTimeout(cfg.GatewayTimeout))
}
