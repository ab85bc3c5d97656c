package domain

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository loads orders together with their transactions, ordered by id.
// Lookups return nil, nil when nothing matches.
type Repository interface {
	FindOrderByReference(ctx context.Context, db *gorm.DB, referenceID string, t ReferenceType) (*PurchaseOrder, error)
	FindOrderByUUID(ctx context.Context, db *gorm.DB, uuid string) (*PurchaseOrder, error)
	FindOrderByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PurchaseOrder, error)
	InsertOrder(ctx context.Context, db *gorm.DB, order *PurchaseOrder) error
	UpdateOrder(ctx context.Context, db *gorm.DB, order *PurchaseOrder) error

	ListTransactions(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]PaymentTransaction, error)
	FindTransactionByReference(ctx context.Context, db *gorm.DB, reference string) (*PaymentTransaction, error)
	SaveTransaction(ctx context.Context, db *gorm.DB, tx *PaymentTransaction) error

	InsertWebhookEvent(ctx context.Context, db *gorm.DB, event *WebhookEventRecord) (bool, error)
	FindWebhookEvent(ctx context.Context, db *gorm.DB, gateway Gateway, eventID string) (*WebhookEventRecord, error)
	// ClaimWebhookEvent takes an unprocessed record whose claim is absent or
	// older than staleBefore. It reports whether this call got the claim.
	ClaimWebhookEvent(ctx context.Context, db *gorm.DB, id snowflake.ID, at, staleBefore time.Time) (bool, error)
	ReleaseWebhookEvent(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	MarkWebhookProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
}

type ReturnPages struct {
	Authorised string
	Declined   string
	Cancelled  string
}

type HostedPaymentRequest struct {
	Order         *PurchaseOrder
	Transaction   *PaymentTransaction
	RequestNumber int
	Pages         ReturnPages
	Now           time.Time
}

type HostedPayment struct {
	URL string
	// Reference is the gateway's id for the created payment, when it returns one.
	Reference string
}

// WebhookEvent is a verified gateway callback in canonical form.
//
// Telr callbacks carry the full transaction and a cart identifier; Noon
// callbacks carry only a status for the gateway order id stored on an
// existing transaction.
type WebhookEvent struct {
	Gateway       Gateway
	EventID       string
	GatewayStatus string
	Status        TransactionStatus

	Cart           *CartIdentifier
	OrderReference string
	Transaction    *PaymentTransaction

	// UserCancelled marks a cancel pressed on the gateway's own page. The
	// payment link stays payable.
	UserCancelled bool
}

// GatewayAdapter is the per-gateway capability selected from the stored
// order gateway.
type GatewayAdapter interface {
	Gateway() Gateway
	CreateHostedPayment(ctx context.Context, req HostedPaymentRequest) (*HostedPayment, error)
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*WebhookEvent, error)
}

// StatusPageResolver picks the return page for a gateway order when the
// gateway redirects every outcome to one URL.
type StatusPageResolver interface {
	StatusPage(ctx context.Context, gatewayOrderID string, pages ReturnPages) (string, error)
}

// AgreementCanceller stops a recurring agreement created by a paid
// transaction.
type AgreementCanceller interface {
	CancelAgreement(ctx context.Context, transactionReference string) error
}

type EventType string

const (
	EventCreate EventType = "create"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

func ParseEventType(raw string) (EventType, bool) {
	switch EventType(raw) {
	case EventCreate, EventUpdate, EventDelete:
		return EventType(raw), true
	}
	return "", false
}

// EventPublisher sends outbound events without blocking the caller.
type EventPublisher interface {
	PublishTransaction(ctx context.Context, eventType EventType, userID int64, view TransactionView, warehouse WarehouseEvent)
	PublishNotification(ctx context.Context, userID int64, req NotificationRequest)
}

type Alerter interface {
	Alert(ctx context.Context, message string)
}

// OrderLocker serializes work on one order. The returned func releases
// the lock.
type OrderLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type OrderDetails struct {
	ReferenceID     string
	ReferenceType   string
	Amount          decimal.Decimal
	Currency        string
	BillingInterval int
	BillingTerm     int
}

type UserDetails struct {
	ID          int64
	FullName    string
	Email       string
	PhoneNumber string
	Address     string
	City        string
	Country     string
	Language    string
}

// OrderCommand is an inbound order lifecycle message.
type OrderCommand struct {
	Order                *OrderDetails
	User                 *UserDetails
	SendAutoNotification bool
}

type Service interface {
	CreateOrder(ctx context.Context, cmd OrderCommand) (*PurchaseOrder, error)
	UpdateOrder(ctx context.Context, cmd OrderCommand) (*PurchaseOrder, error)
	DeleteOrder(ctx context.Context, referenceID, referenceType string) error

	HostedPaymentLink(ctx context.Context, referenceID, referenceType string) (string, error)
	PayNow(ctx context.Context, uuid string) (string, error)
	NoonStatusPage(ctx context.Context, gatewayOrderID string) (string, error)

	ApplyPromo(ctx context.Context, referenceID, referenceType, promoCode string) (*OrderView, error)
	GetOrder(ctx context.Context, referenceID, referenceType string) (*OrderView, error)
	LatestTransaction(ctx context.Context, referenceID, referenceType string) (*TransactionView, error)
}

type WebhookService interface {
	HandleTelr(ctx context.Context, payload []byte, headers http.Header) error
	HandleNoon(ctx context.Context, payload []byte, headers http.Header) error
}
