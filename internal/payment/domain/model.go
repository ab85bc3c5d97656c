package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PurchaseOrder is the unit of consistency: every transaction belongs to one
// order and all writes for an order are serialized.
type PurchaseOrder struct {
	ID                  snowflake.ID        `json:"id" gorm:"primaryKey"`
	ReferenceID         string              `json:"reference_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_purchase_orders_reference"`
	ReferenceType       ReferenceType       `json:"reference_type" gorm:"type:varchar(32);not null;uniqueIndex:ux_purchase_orders_reference"`
	UUID                *string             `json:"uuid" gorm:"type:varchar(64);uniqueIndex"`
	UserID              int64               `json:"user_id" gorm:"not null;index"`
	FullName            string              `json:"full_name" gorm:"type:text"`
	Email               string              `json:"email" gorm:"type:text"`
	PhoneNumber         string              `json:"phone_number" gorm:"type:text"`
	Address             string              `json:"address" gorm:"type:text"`
	City                string              `json:"city" gorm:"type:text"`
	Country             string              `json:"country" gorm:"type:text"`
	Language            string              `json:"language" gorm:"type:varchar(8)"`
	Amount              decimal.Decimal     `json:"amount" gorm:"type:numeric(14,2);not null"`
	Currency            string              `json:"currency" gorm:"type:varchar(3);not null"`
	AmountAfterDiscount decimal.NullDecimal `json:"amount_after_discount" gorm:"type:numeric(14,2)"`
	PromoCode           string              `json:"promo_code" gorm:"type:varchar(64)"`
	Discount            decimal.NullDecimal `json:"discount" gorm:"type:numeric(5,2)"`
	Gateway             Gateway             `json:"gateway" gorm:"type:varchar(16);not null"`
	BillingInterval     int                 `json:"billing_interval"`
	BillingTerm         int                 `json:"billing_term"`
	CreatedAt           time.Time           `json:"created_at" gorm:"autoCreateTime:false"`
	UpdatedAt           time.Time           `json:"updated_at" gorm:"autoUpdateTime:false"`

	Transactions []PaymentTransaction `json:"transactions" gorm:"-"`
}

func (PurchaseOrder) TableName() string { return "purchase_orders" }

// PaymentTransaction is one row of an order's payment history. Rows are
// appended, not rewritten, apart from the first-row identity reuse performed
// during reconciliation.
type PaymentTransaction struct {
	ID                snowflake.ID      `json:"id" gorm:"primaryKey"`
	PurchaseOrderID   snowflake.ID      `json:"purchase_order_id" gorm:"not null;index"`
	Status            TransactionStatus `json:"status" gorm:"type:varchar(2);not null"`
	GatewayStatus     string            `json:"gateway_status" gorm:"type:varchar(64)"`
	Amount            decimal.Decimal   `json:"amount" gorm:"type:numeric(14,2);not null"`
	Currency          string            `json:"currency" gorm:"type:varchar(3)"`
	Description       string            `json:"description" gorm:"type:text"`
	Reference         string            `json:"reference" gorm:"type:varchar(128);index"`
	PreviousReference string            `json:"previous_reference" gorm:"type:varchar(128)"`
	FirstReference    string            `json:"first_reference" gorm:"type:varchar(128)"`
	CartID            string            `json:"cart_id" gorm:"type:varchar(128)"`
	StoreID           string            `json:"store_id" gorm:"type:varchar(32)"`
	Type              string            `json:"type" gorm:"type:varchar(32)"`
	Class             string            `json:"class" gorm:"type:varchar(32)"`
	AuthCode          string            `json:"auth_code" gorm:"type:varchar(64)"`
	AuthMessage       string            `json:"auth_message" gorm:"type:text"`
	CardLast4         string            `json:"card_last4" gorm:"type:varchar(4)"`
	CardCode          string            `json:"card_code" gorm:"type:varchar(16)"`
	TestMode          bool              `json:"test_mode"`
	ExpiresAt         time.Time         `json:"expires_at" gorm:"not null"`
	CreatedAt         time.Time         `json:"created_at" gorm:"autoCreateTime:false"`
	UpdatedAt         time.Time         `json:"updated_at" gorm:"autoUpdateTime:false"`
}

func (PaymentTransaction) TableName() string { return "payment_transactions" }

// WebhookEventRecord dedupes gateway deliveries on (gateway, event_id). A
// delivery claims the record while it applies the event; concurrent
// deliveries of the same event back off while the claim is fresh.
type WebhookEventRecord struct {
	ID          snowflake.ID   `json:"id" gorm:"primaryKey"`
	Gateway     Gateway        `json:"gateway" gorm:"type:varchar(16);not null;uniqueIndex:ux_payment_webhook_events_gateway_event"`
	EventID     string         `json:"event_id" gorm:"type:varchar(128);not null;uniqueIndex:ux_payment_webhook_events_gateway_event"`
	Payload     datatypes.JSON `json:"payload" gorm:"not null"`
	ReceivedAt  time.Time      `json:"received_at" gorm:"not null"`
	ClaimedAt   *time.Time     `json:"claimed_at"`
	ProcessedAt *time.Time     `json:"processed_at"`
}

func (WebhookEventRecord) TableName() string { return "payment_webhook_events" }

// Ref is the "TYPE:id" form used for lock keys and log fields.
func (o *PurchaseOrder) Ref() string {
	return OrderRef(o.ReferenceType, o.ReferenceID)
}

func OrderRef(t ReferenceType, referenceID string) string {
	return fmt.Sprintf("%s:%s", t, referenceID)
}

func (o *PurchaseOrder) HasSuccessfulTransaction() bool {
	for i := range o.Transactions {
		if o.Transactions[i].Status.IsSuccess() {
			return true
		}
	}
	return false
}

// SuccessfulTransaction returns the most recent paid row, if any. Later
// gateway outcomes such as a capture after an authorization are appended,
// so an order can hold more than one.
func (o *PurchaseOrder) SuccessfulTransaction() *PaymentTransaction {
	for i := len(o.Transactions) - 1; i >= 0; i-- {
		if o.Transactions[i].Status.IsSuccess() {
			return &o.Transactions[i]
		}
	}
	return nil
}

// LatestTransaction returns the most recently updated transaction. On equal
// timestamps the later row in the slice wins.
func (o *PurchaseOrder) LatestTransaction() *PaymentTransaction {
	var latest *PaymentTransaction
	for i := range o.Transactions {
		tx := &o.Transactions[i]
		if latest == nil || !tx.UpdatedAt.Before(latest.UpdatedAt) {
			latest = tx
		}
	}
	return latest
}

// RequestNumber is the attempt counter embedded in gateway references.
func (o *PurchaseOrder) RequestNumber() int {
	if len(o.Transactions) == 0 {
		return 1
	}
	return len(o.Transactions)
}

// PayableAmount is the discounted amount when a promo was applied.
func (o *PurchaseOrder) PayableAmount() decimal.Decimal {
	if o.AmountAfterDiscount.Valid {
		return o.AmountAfterDiscount.Decimal
	}
	return o.Amount
}

func (o *PurchaseOrder) IsRecurring() bool {
	return o.BillingInterval > 0 && o.BillingTerm > 0
}

func (o *PurchaseOrder) IsSubscription() bool {
	return o.ReferenceType == ReferenceSubscription
}

func (o *PurchaseOrder) HasUUID() bool {
	return o.UUID != nil && *o.UUID != ""
}

// ApplyDiscount sets the promo fields and returns the discounted amount.
// discount is a percentage between 0 and 100.
func (o *PurchaseOrder) ApplyDiscount(code string, discount decimal.Decimal) decimal.Decimal {
	after := DiscountedAmount(o.Amount, discount)
	o.PromoCode = code
	o.Discount = decimal.NullDecimal{Decimal: discount, Valid: true}
	o.AmountAfterDiscount = decimal.NullDecimal{Decimal: after, Valid: true}
	return after
}

func DiscountedAmount(amount, discount decimal.Decimal) decimal.Decimal {
	cut := amount.Mul(discount).Div(decimal.NewFromInt(100))
	return amount.Sub(cut).Round(2)
}
