package domain

import (
	"strings"
	"time"
)

// TransactionStatus is the canonical short code stored on every transaction.
// Telr reports these codes natively; other gateways are mapped onto them.
type TransactionStatus string

const (
	StatusHoldAuthorized    TransactionStatus = "H"
	StatusAuthorized        TransactionStatus = "A"
	StatusDeclined          TransactionStatus = "D"
	StatusError             TransactionStatus = "E"
	StatusCancelled         TransactionStatus = "C"
	StatusInitiated         TransactionStatus = "I"
	StatusReadyForPayment   TransactionStatus = "R"
	StatusAuthenticated     TransactionStatus = "T"
	StatusRefunded          TransactionStatus = "F"
	StatusPartiallyReversed TransactionStatus = "P"
	StatusReversed          TransactionStatus = "S"
	StatusLocked            TransactionStatus = "L"
	StatusExpired           TransactionStatus = "V"
	StatusUnknown           TransactionStatus = "U"
)

const DisplayExpired = "Expired"

var displayNames = map[TransactionStatus]string{
	StatusAuthorized:        "Payment success",
	StatusHoldAuthorized:    "Payment success",
	StatusReadyForPayment:   "Ready for payment",
	StatusError:             "Payment failed",
	StatusDeclined:          "Payment refused",
	StatusCancelled:         "Payment cancelled",
	StatusInitiated:         "Payment initiated",
	StatusAuthenticated:     "Payment initiated",
	StatusRefunded:          "Refunded",
	StatusPartiallyReversed: "Partially reserved",
	StatusReversed:          "Reserved",
	StatusExpired:           DisplayExpired,
	StatusLocked:            "Locked",
}

// ParseStatus maps a raw short code to a status. Unrecognised codes become
// StatusUnknown so reconciliation keeps going when a gateway adds codes.
func ParseStatus(code string) TransactionStatus {
	status := TransactionStatus(strings.ToUpper(strings.TrimSpace(code)))
	if _, ok := displayNames[status]; ok {
		return status
	}
	return StatusUnknown
}

func (s TransactionStatus) IsSuccess() bool {
	return s == StatusAuthorized || s == StatusHoldAuthorized
}

func (s TransactionStatus) Display() string {
	if name, ok := displayNames[s]; ok {
		return name
	}
	return "Unknown"
}

// DisplayAt applies the read-time expiry overlay: a non-success transaction
// whose expiry has passed reads as expired whatever its stored code.
func (s TransactionStatus) DisplayAt(expiresAt, now time.Time) string {
	if IsExpired(s, expiresAt, now) {
		return DisplayExpired
	}
	return s.Display()
}

func IsExpired(s TransactionStatus, expiresAt, now time.Time) bool {
	if s.IsSuccess() || expiresAt.IsZero() {
		return false
	}
	return !expiresAt.After(now)
}
