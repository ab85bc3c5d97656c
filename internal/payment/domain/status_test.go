package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusAuthorized, ParseStatus("a"))
	assert.Equal(t, StatusHoldAuthorized, ParseStatus(" H "))
	assert.Equal(t, StatusUnknown, ParseStatus("Z"))
	assert.Equal(t, StatusUnknown, ParseStatus(""))
}

func TestSuccessStatuses(t *testing.T) {
	for _, s := range []TransactionStatus{StatusAuthorized, StatusHoldAuthorized} {
		assert.True(t, s.IsSuccess(), s)
	}
	for _, s := range []TransactionStatus{StatusDeclined, StatusReadyForPayment, StatusInitiated, StatusUnknown} {
		assert.False(t, s.IsSuccess(), s)
	}
}

func TestDisplayAtAppliesExpiryOverlay(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	assert.Equal(t, DisplayExpired, StatusInitiated.DisplayAt(past, now))
	assert.Equal(t, DisplayExpired, StatusReadyForPayment.DisplayAt(now, now), "expiry instant counts as expired")
	assert.Equal(t, "Payment initiated", StatusInitiated.DisplayAt(future, now))
	assert.Equal(t, "Payment success", StatusAuthorized.DisplayAt(past, now))
	assert.Equal(t, "Unknown", StatusUnknown.DisplayAt(future, now))
}
