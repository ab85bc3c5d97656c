package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDiscountHalf(t *testing.T) {
	order := &PurchaseOrder{Amount: decimal.RequireFromString("100.00"), Currency: "AED"}

	after := order.ApplyDiscount("HALF", decimal.NewFromInt(50))

	assert.Equal(t, "50.00", after.StringFixed(2))
	assert.Equal(t, "HALF", order.PromoCode)
	assert.True(t, order.PayableAmount().Equal(decimal.NewFromInt(50)))
}

func TestDiscountedAmountRounds(t *testing.T) {
	got := DiscountedAmount(decimal.RequireFromString("99.99"), decimal.RequireFromString("33.3"))
	assert.Equal(t, "66.69", got.StringFixed(2))

	assert.True(t, DiscountedAmount(decimal.NewFromInt(80), decimal.NewFromInt(100)).IsZero())
}

func TestLatestTransactionPrefersLaterRowOnTie(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	order := &PurchaseOrder{Transactions: []PaymentTransaction{
		{ID: 1, Status: StatusInitiated, UpdatedAt: at.Add(time.Minute)},
		{ID: 2, Status: StatusDeclined, UpdatedAt: at},
		{ID: 3, Status: StatusCancelled, UpdatedAt: at.Add(time.Minute)},
	}}

	latest := order.LatestTransaction()
	require.NotNil(t, latest)
	assert.EqualValues(t, 3, latest.ID)

	assert.Nil(t, (&PurchaseOrder{}).LatestTransaction())
}

func TestRequestNumber(t *testing.T) {
	order := &PurchaseOrder{}
	assert.Equal(t, 1, order.RequestNumber())

	order.Transactions = make([]PaymentTransaction, 3)
	assert.Equal(t, 3, order.RequestNumber())
}

func TestSuccessfulTransaction(t *testing.T) {
	order := &PurchaseOrder{Transactions: []PaymentTransaction{
		{ID: 1, Status: StatusDeclined},
		{ID: 2, Status: StatusHoldAuthorized},
		{ID: 3, Status: StatusAuthorized},
		{ID: 4, Status: StatusDeclined},
	}}
	assert.True(t, order.HasSuccessfulTransaction())
	assert.EqualValues(t, 3, order.SuccessfulTransaction().ID)

	assert.Nil(t, (&PurchaseOrder{Transactions: []PaymentTransaction{{Status: StatusReadyForPayment}}}).SuccessfulTransaction())
}

func TestRecurring(t *testing.T) {
	assert.False(t, (&PurchaseOrder{BillingInterval: 1}).IsRecurring())
	assert.True(t, (&PurchaseOrder{BillingInterval: 1, BillingTerm: 12}).IsRecurring())
}
