package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsCustomerData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/v1/transaction"),
		attribute.String("card.last4", "4242"),
		attribute.String("customer.email", "a@b.c"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorTruncatesAtNewline(t *testing.T) {
	err := SafeError(errors.New("gateway failed\n{\"body\":\"secret\"}"))
	assert.EqualError(t, err, "gateway failed")
	assert.Nil(t, SafeError(nil))
}
