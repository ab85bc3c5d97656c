package events

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
)

const (
	EventName         = "payment"
	ReferralEventName = "referral"
	EventSource       = "payment-service"
)

// Envelope wraps every payload published by this service.
type Envelope struct {
	EventID        string    `json:"eventId"`
	ProducerUserID int64     `json:"producerUserId"`
	EventName      string    `json:"eventName"`
	EventType      string    `json:"eventType"`
	EventTime      time.Time `json:"eventTime"`
	EventSource    string    `json:"eventSource"`
	Details        any       `json:"details"`
}

func NewEnvelope(eventType paymentdomain.EventType, userID int64, at time.Time, details any) Envelope {
	return newEnvelope(EventName, eventType, userID, at, details)
}

func newEnvelope(name string, eventType paymentdomain.EventType, userID int64, at time.Time, details any) Envelope {
	return Envelope{
		EventID:        ulid.Make().String(),
		ProducerUserID: userID,
		EventName:      name,
		EventType:      string(eventType),
		EventTime:      at,
		EventSource:    EventSource,
		Details:        details,
	}
}

// InboundEnvelope is an order lifecycle message from the purchase order
// topic.
type InboundEnvelope struct {
	ProducerUserID int64          `json:"producerUserId"`
	EventName      string         `json:"eventName"`
	EventType      string         `json:"eventType"`
	EventTime      string         `json:"eventTime"`
	EventSource    string         `json:"eventSource"`
	Details        InboundDetails `json:"details"`
}

type InboundDetails struct {
	PaymentTransaction   *InboundTransaction `json:"paymentTransaction"`
	User                 *InboundUser        `json:"user"`
	SendAutoNotification bool                `json:"sendAutoNotification"`
}

type InboundTransaction struct {
	ReferenceID     string         `json:"referenceId"`
	ReferenceType   string         `json:"referenceType"`
	Amount          *InboundAmount `json:"amount"`
	BillingInterval int            `json:"billingInterval"`
	BillingTerm     int            `json:"billingTerm"`
}

type InboundAmount struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

type InboundUser struct {
	ID               int64  `json:"id"`
	FullName         string `json:"fullName"`
	Country          string `json:"country"`
	City             string `json:"city"`
	FormattedAddress string `json:"formattedAddress"`
	PhoneNumber      string `json:"phoneNumber"`
	Email            string `json:"email"`
	Language         string `json:"language"`
}

// Command converts the message into an order command.
func (e InboundEnvelope) Command() paymentdomain.OrderCommand {
	cmd := paymentdomain.OrderCommand{SendAutoNotification: e.Details.SendAutoNotification}
	if t := e.Details.PaymentTransaction; t != nil {
		details := &paymentdomain.OrderDetails{
			ReferenceID:     t.ReferenceID,
			ReferenceType:   t.ReferenceType,
			BillingInterval: t.BillingInterval,
			BillingTerm:     t.BillingTerm,
		}
		if t.Amount != nil {
			details.Amount = t.Amount.Value
			details.Currency = t.Amount.Currency
		}
		cmd.Order = details
	}
	if u := e.Details.User; u != nil {
		cmd.User = &paymentdomain.UserDetails{
			ID:          u.ID,
			FullName:    u.FullName,
			Email:       u.Email,
			PhoneNumber: u.PhoneNumber,
			Address:     u.FormattedAddress,
			City:        u.City,
			Country:     u.Country,
			Language:    u.Language,
		}
	}
	return cmd
}

// ConsultationEnvelope is a consultation update from the consultation topic.
type ConsultationEnvelope struct {
	ProducerUserID int64               `json:"producerUserId"`
	EventName      string              `json:"eventName"`
	EventType      string              `json:"eventType"`
	Details        ConsultationDetails `json:"details"`
}

type ConsultationDetails struct {
	ID     json.RawMessage `json:"id"`
	Status string          `json:"status"`
	UserID int64           `json:"userId"`
}
