package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticPaymentConfigHolderDefaults(t *testing.T) {
	holder := NewStaticPaymentConfigHolder(PaymentConfig{DefaultGateway: " noon "})

	pc := holder.Get()
	assert.Equal(t, "NOON", pc.DefaultGateway)
	assert.Equal(t, 10, pc.ExpiryDays)
}

func TestPagesForSubscription(t *testing.T) {
	pc := PaymentConfig{
		Pages:             ReturnPages{Authorised: "https://shop/ok"},
		SubscriptionPages: ReturnPages{Authorised: "https://shop/sub/ok"},
	}

	assert.Equal(t, "https://shop/ok", pc.PagesFor(false).Authorised)
	assert.Equal(t, "https://shop/sub/ok", pc.PagesFor(true).Authorised)
}

func TestValidatePaymentConfig(t *testing.T) {
	assert.Error(t, validatePaymentConfig(PaymentConfig{}))
	assert.Error(t, validatePaymentConfig(PaymentConfig{DefaultGateway: "TELR", ExpiryDays: -1}))
	assert.NoError(t, validatePaymentConfig(PaymentConfig{DefaultGateway: "TELR", ExpiryDays: 3}))
}

func TestWithTrailingSlash(t *testing.T) {
	assert.Equal(t, "http://x/", withTrailingSlash("http://x"))
	assert.Equal(t, "http://x/", withTrailingSlash("http://x/"))
	assert.Equal(t, "", withTrailingSlash(" "))
}
