package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func viewOrder() *PurchaseOrder {
	uuid := "3f1c"
	order := &PurchaseOrder{
		ID:            11,
		ReferenceID:   "900",
		ReferenceType: ReferenceOrder,
		UUID:          &uuid,
		UserID:        42,
		Amount:        decimal.RequireFromString("100"),
		Currency:      "AED",
		Gateway:       GatewayTelr,
	}
	order.ApplyDiscount("HALF", decimal.NewFromInt(50))
	return order
}

func TestTransactionViewPaidAmountOnlyOnSuccess(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	order := viewOrder()
	paid := &PaymentTransaction{ID: 7, Status: StatusAuthorized, Amount: decimal.NewFromInt(50), Currency: "AED", ExpiresAt: now.Add(-time.Hour), CardLast4: "4242", CardCode: "A1"}

	view := NewTransactionView(order, paid, "https://pay.example/", now)
	assert.Equal(t, "Payment success", view.Status)
	assert.Equal(t, Money{Value: "50.00", Currency: "AED"}, view.PaidAmount)
	assert.Equal(t, Money{Value: "100.00", Currency: "AED"}, view.Amount)
	require.NotNil(t, view.AmountAfterDiscount)
	assert.Equal(t, "50.00", view.AmountAfterDiscount.Value)
	assert.Equal(t, "HALF", view.PromoCode)
	assert.Equal(t, "https://pay.example/api/v1/pay-now/3f1c", view.Link)
	require.NotNil(t, view.PaymentMethodDetails)
	assert.Equal(t, MethodApplePay, view.PaymentMethodDetails.Method)

	pending := &PaymentTransaction{ID: 8, Status: StatusInitiated, Amount: decimal.NewFromInt(50), ExpiresAt: now.Add(-time.Hour)}
	view = NewTransactionView(order, pending, "https://pay.example/", now)
	assert.Equal(t, DisplayExpired, view.Status)
	assert.Equal(t, "0.00", view.PaidAmount.Value)
	assert.Nil(t, view.PaymentMethodDetails)
}

func TestWarehouseEventPromoFields(t *testing.T) {
	order := viewOrder()
	tx := &PaymentTransaction{Status: StatusAuthorized, Amount: decimal.NewFromInt(50), Currency: "AED"}

	ev := NewWarehouseEvent(order, tx, nil, "https://pay.example/")
	assert.Empty(t, ev.PromoCode)
	assert.Nil(t, ev.AmountAfterDiscount)
	assert.Equal(t, "3f1c", ev.UUID)

	ev = NewWarehouseEvent(order, tx, &PromoSnapshot{PromoID: "1", Code: "HALF", Discount: decimal.NewFromInt(50), UsedWithSuccessPayment: true}, "https://pay.example/")
	assert.Equal(t, "HALF", ev.PromoCode)
	require.NotNil(t, ev.PromoUsedWithSuccessPayment)
	assert.True(t, *ev.PromoUsedWithSuccessPayment)
	assert.Equal(t, "50.00", ev.PaidAmount.Value)
}

func TestNotificationRequest(t *testing.T) {
	n := NewNotificationRequest(viewOrder(), "https://pay.example/")
	assert.Equal(t, "PAYMENT_ORDER_NOTIFICATION", n.ReferenceType)
	assert.Equal(t, []string{"ALL"}, n.Methods)
	assert.Equal(t, "https://pay.example/api/v1/pay-now/3f1c", n.Params["link"])
	assert.EqualValues(t, 42, n.ReceiverID)
}
