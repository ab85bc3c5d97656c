package domain

import (
	"errors"

	"github.com/smallbiznis/paylink/internal/apperror"
)

var (
	ErrInvalidPayload         = errors.New("invalid_payload")
	ErrInvalidEvent           = errors.New("invalid_event")
	ErrEventIgnored           = errors.New("event_ignored")
	ErrEventAlreadyProcessed  = errors.New("event_already_processed")
	ErrEventInFlight          = errors.New("event_in_flight")
	ErrInvalidGatewayResponse = errors.New("invalid_gateway_response")
	ErrAgreementNotFound      = errors.New("agreement_not_found")
	ErrMissingTransaction     = errors.New("missing_payment_transaction")
	ErrMissingUser            = errors.New("missing_user_details")
	ErrOrderExists            = errors.New("order_exists")

	// ErrInvalidSignature shares identity with the HTTP-facing kind so the
	// server maps it without knowing about gateways.
	ErrInvalidSignature = apperror.ErrInvalidSignature
)

const (
	MessageAlreadyPaid    = "This order was successfully paid before, you cannot pay again for same order"
	MessageLinkCancelled  = "This payment link is cancelled, you need a new payment link"
	MessageLinkExpired    = "This payment link is expired, you need a new payment link"
	MessagePriceNotSet    = "Order price is not set"
	MessageMissingDetails = "Missing order details"
)

func OrderNotFound(referenceID string, t ReferenceType) error {
	return apperror.New(apperror.ErrNotFound,
		"Purchase order not found, reference id: %s, referenceType: %s", referenceID, t)
}
