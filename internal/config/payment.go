package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ReturnPages are the customer-facing pages a gateway redirects to.
type ReturnPages struct {
	Authorised string `mapstructure:"authorised"`
	Declined   string `mapstructure:"declined"`
	Cancelled  string `mapstructure:"cancelled"`
}

// PaymentConfig holds the routing values that may change without a redeploy.
type PaymentConfig struct {
	DefaultGateway    string      `mapstructure:"defaultGateway"`
	ExpiryDays        int         `mapstructure:"expiryDays"`
	Pages             ReturnPages `mapstructure:"pages"`
	SubscriptionPages ReturnPages `mapstructure:"subscriptionPages"`
}

type PaymentConfigHolder struct {
	current atomic.Value // holds PaymentConfig
}

// NewPaymentConfigHolder reads payment.yml when present and watches it for
// changes. Environment values from cfg are the defaults.
func NewPaymentConfigHolder(cfg Config, log *zap.Logger) (*PaymentConfigHolder, error) {
	log = log.Named("config.payment")
	defaults := cfg.Payment

	v := viper.New()
	v.SetConfigName("payment")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/paylink")
	v.AddConfigPath(".")

	v.SetDefault("payment.defaultGateway", defaults.DefaultGateway)
	v.SetDefault("payment.expiryDays", defaults.ExpiryDays)
	v.SetDefault("payment.pages.authorised", defaults.Pages.Authorised)
	v.SetDefault("payment.pages.declined", defaults.Pages.Declined)
	v.SetDefault("payment.pages.cancelled", defaults.Pages.Cancelled)
	v.SetDefault("payment.subscriptionPages.authorised", defaults.SubscriptionPages.Authorised)
	v.SetDefault("payment.subscriptionPages.declined", defaults.SubscriptionPages.Declined)
	v.SetDefault("payment.subscriptionPages.cancelled", defaults.SubscriptionPages.Cancelled)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var pc PaymentConfig
	if err := v.UnmarshalKey("payment", &pc); err != nil {
		return nil, err
	}
	pc = normalizePaymentConfig(pc)
	if err := validatePaymentConfig(pc); err != nil {
		return nil, err
	}

	holder := NewStaticPaymentConfigHolder(pc)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PaymentConfig
		if err := v.UnmarshalKey("payment", &updated); err != nil {
			log.Warn("payment config reload failed", zap.Error(err))
			return
		}
		updated = normalizePaymentConfig(updated)
		if err := validatePaymentConfig(updated); err != nil {
			log.Warn("invalid payment config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("payment config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func NewStaticPaymentConfigHolder(pc PaymentConfig) *PaymentConfigHolder {
	holder := &PaymentConfigHolder{}
	holder.current.Store(normalizePaymentConfig(pc))
	return holder
}

func (h *PaymentConfigHolder) Get() PaymentConfig {
	return h.current.Load().(PaymentConfig)
}

// PagesFor returns the page set for a one-off or a subscription flow.
func (c PaymentConfig) PagesFor(subscription bool) ReturnPages {
	if subscription {
		return c.SubscriptionPages
	}
	return c.Pages
}

func normalizePaymentConfig(pc PaymentConfig) PaymentConfig {
	pc.DefaultGateway = strings.ToUpper(strings.TrimSpace(pc.DefaultGateway))
	if pc.ExpiryDays == 0 {
		pc.ExpiryDays = 10
	}
	return pc
}

func validatePaymentConfig(pc PaymentConfig) error {
	if pc.DefaultGateway == "" {
		return errors.New("payment.defaultGateway cannot be empty")
	}
	if pc.ExpiryDays < 0 {
		return errors.New("payment.expiryDays cannot be negative")
	}
	return nil
}
