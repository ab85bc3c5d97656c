package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PayNowPath = "api/v1/pay-now/"

	MethodCard     = "Credit/debit card"
	MethodApplePay = "Apple Pay"
	cardCodeApple  = "A1"
)

// Money serializes the value with two decimals.
type Money struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

func NewMoney(value decimal.Decimal, currency string) Money {
	return Money{Value: value.StringFixed(2), Currency: currency}
}

type PaymentMethodDetails struct {
	CardLast4 string `json:"cardLast4"`
	CardCode  string `json:"cardCode"`
	Method    string `json:"method"`
}

// TransactionView is the public shape of one transaction, also used as the
// payment-transaction event payload.
type TransactionView struct {
	ID                   string                `json:"id"`
	UserID               int64                 `json:"userId"`
	GatewayReference     Gateway               `json:"gatewayReference"`
	ReferenceID          string                `json:"referenceId"`
	ReferenceType        ReferenceType         `json:"referenceType"`
	Amount               Money                 `json:"amount"`
	PaidAmount           Money                 `json:"paidAmount"`
	PromoCode            string                `json:"promoCode,omitempty"`
	AmountAfterDiscount  *Money                `json:"amountAfterDiscount,omitempty"`
	PaymentMethodDetails *PaymentMethodDetails `json:"paymentMethodDetails,omitempty"`
	Status               string                `json:"status"`
	TransactionReference string                `json:"transactionReference,omitempty"`
	Link                 string                `json:"link"`
	UpdatedAt            time.Time             `json:"updatedAt"`
}

type OrderView struct {
	ID                  string        `json:"id"`
	UserID              int64         `json:"userId"`
	ReferenceID         string        `json:"referenceId"`
	ReferenceType       ReferenceType `json:"referenceType"`
	Amount              Money         `json:"amount"`
	Discount            *string       `json:"discount,omitempty"`
	AmountAfterDiscount *Money        `json:"amountAfterDiscount,omitempty"`
	PromoCode           string        `json:"promoCode,omitempty"`

	Transactions []TransactionView `json:"transactions,omitempty"`
}

// PromoSnapshot is the usage state attached to warehouse events.
type PromoSnapshot struct {
	PromoID                string
	Code                   string
	Discount               decimal.Decimal
	UsedWithSuccessPayment bool
}

type WarehouseEvent struct {
	ID                          string        `json:"id"`
	CreatedAt                   time.Time     `json:"createdAt"`
	UpdatedAt                   time.Time     `json:"updatedAt"`
	ReferenceID                 string        `json:"referenceId"`
	ReferenceType               ReferenceType `json:"referenceType"`
	UUID                        string        `json:"uuid"`
	Status                      string        `json:"status"`
	Link                        string        `json:"link"`
	UserID                      int64         `json:"userId"`
	FullName                    string        `json:"fullName"`
	PhoneNumber                 string        `json:"phoneNumber"`
	PromoID                     string        `json:"promoId,omitempty"`
	PromoCode                   string        `json:"promoCode,omitempty"`
	PromoDiscount               *string       `json:"promoDiscount,omitempty"`
	PromoUsedWithSuccessPayment *bool         `json:"promoUsedWithSuccessPayment,omitempty"`
	Amount                      Money         `json:"amount"`
	AmountAfterDiscount         *Money        `json:"amountAfterDiscount,omitempty"`
	PaidAmount                  Money         `json:"paidAmount"`
}

type NotificationRequest struct {
	ReceiverID    int64             `json:"receiverId"`
	ReferenceType string            `json:"referenceType"`
	Source        string            `json:"source"`
	Methods       []string          `json:"methods"`
	Params        map[string]string `json:"params"`
}

func PayNowURL(serviceBaseURL, uuid string) string {
	return serviceBaseURL + PayNowPath + uuid
}

func (o *PurchaseOrder) Link(serviceBaseURL string) string {
	if !o.HasUUID() {
		return ""
	}
	return PayNowURL(serviceBaseURL, *o.UUID)
}

func (o *PurchaseOrder) discountedMoney() *Money {
	if o.PromoCode == "" || !o.AmountAfterDiscount.Valid {
		return nil
	}
	m := NewMoney(o.AmountAfterDiscount.Decimal, o.Currency)
	return &m
}

// NewTransactionView renders tx for reads and events. The status carries
// the expiry overlay evaluated at now.
func NewTransactionView(o *PurchaseOrder, tx *PaymentTransaction, serviceBaseURL string, now time.Time) TransactionView {
	view := TransactionView{
		ID:                   tx.ID.String(),
		UserID:               o.UserID,
		GatewayReference:     o.Gateway,
		ReferenceID:          o.ReferenceID,
		ReferenceType:        o.ReferenceType,
		Amount:               NewMoney(o.Amount, o.Currency),
		PaidAmount:           NewMoney(decimal.Zero, o.Currency),
		Status:               tx.Status.DisplayAt(tx.ExpiresAt, now),
		TransactionReference: tx.Reference,
		Link:                 o.Link(serviceBaseURL),
		UpdatedAt:            tx.UpdatedAt,
	}
	if tx.Status.IsSuccess() {
		view.PaidAmount = NewMoney(tx.Amount, currencyOr(tx.Currency, o.Currency))
	}
	if tx.CardLast4 != "" && tx.CardCode != "" {
		method := MethodCard
		if tx.CardCode == cardCodeApple {
			method = MethodApplePay
		}
		view.PaymentMethodDetails = &PaymentMethodDetails{
			CardLast4: tx.CardLast4,
			CardCode:  tx.CardCode,
			Method:    method,
		}
	}
	if m := o.discountedMoney(); m != nil {
		view.PromoCode = o.PromoCode
		view.AmountAfterDiscount = m
	}
	return view
}

func NewOrderView(o *PurchaseOrder) OrderView {
	view := OrderView{
		ID:            o.ID.String(),
		UserID:        o.UserID,
		ReferenceID:   o.ReferenceID,
		ReferenceType: o.ReferenceType,
		Amount:        NewMoney(o.Amount, o.Currency),
	}
	if m := o.discountedMoney(); m != nil {
		view.PromoCode = o.PromoCode
		view.AmountAfterDiscount = m
		if o.Discount.Valid {
			d := o.Discount.Decimal.String()
			view.Discount = &d
		}
	}
	return view
}

// NewWarehouseEvent snapshots the order after tx was written. Promo fields
// are filled only when a usage was touched by the write.
func NewWarehouseEvent(o *PurchaseOrder, tx *PaymentTransaction, promo *PromoSnapshot, serviceBaseURL string) WarehouseEvent {
	ev := WarehouseEvent{
		ID:            o.ID.String(),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		ReferenceID:   o.ReferenceID,
		ReferenceType: o.ReferenceType,
		Status:        tx.Status.Display(),
		Link:          o.Link(serviceBaseURL),
		UserID:        o.UserID,
		FullName:      o.FullName,
		PhoneNumber:   o.PhoneNumber,
		Amount:        NewMoney(o.Amount, o.Currency),
		PaidAmount:    NewMoney(tx.Amount, currencyOr(tx.Currency, o.Currency)),
	}
	if o.HasUUID() {
		ev.UUID = *o.UUID
	}
	if promo != nil {
		discount := promo.Discount.String()
		used := promo.UsedWithSuccessPayment
		ev.PromoID = promo.PromoID
		ev.PromoCode = promo.Code
		ev.PromoDiscount = &discount
		ev.PromoUsedWithSuccessPayment = &used
		ev.AmountAfterDiscount = o.discountedMoney()
	}
	return ev
}

// NewNotificationRequest asks the notification service to send the pay-now
// link on every channel.
func NewNotificationRequest(o *PurchaseOrder, serviceBaseURL string) NotificationRequest {
	return NotificationRequest{
		ReceiverID:    o.UserID,
		ReferenceType: "PAYMENT_" + string(o.ReferenceType) + "_NOTIFICATION",
		Source:        "PAYMENT_SERVICE",
		Methods:       []string{"ALL"},
		Params:        map[string]string{"link": o.Link(serviceBaseURL)},
	}
}

func currencyOr(currency, fallback string) string {
	if currency != "" {
		return currency
	}
	return fallback
}
