package noon

import (
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
)

const (
	Status3DSVerified       = "3DS_RESULT_VERIFIED"
	StatusAuthorized        = "AUTHORIZED"
	StatusCaptured          = "CAPTURED"
	StatusExpired           = "EXPIRED"
	StatusFailed            = "FAILED"
	StatusCancelled         = "CANCELLED"
	StatusInitiated         = "INITIATED"
	StatusAuthenticated     = "AUTHENTICATED"
	StatusRejected          = "REJECTED"
	StatusRefunded          = "REFUNDED"
	StatusLocked            = "LOCKED"
	StatusReversed          = "REVERSED"
	StatusPartiallyReversed = "PARTIALLY_REVERSED"
)

var statusMap = map[string]paymentdomain.TransactionStatus{
	Status3DSVerified:       paymentdomain.StatusAuthorized,
	StatusAuthorized:        paymentdomain.StatusAuthorized,
	StatusCaptured:          paymentdomain.StatusAuthorized,
	StatusExpired:           paymentdomain.StatusExpired,
	StatusFailed:            paymentdomain.StatusError,
	StatusCancelled:         paymentdomain.StatusCancelled,
	StatusInitiated:         paymentdomain.StatusInitiated,
	StatusAuthenticated:     paymentdomain.StatusAuthenticated,
	StatusRejected:          paymentdomain.StatusDeclined,
	StatusRefunded:          paymentdomain.StatusRefunded,
	StatusLocked:            paymentdomain.StatusLocked,
	StatusReversed:          paymentdomain.StatusReversed,
	StatusPartiallyReversed: paymentdomain.StatusPartiallyReversed,
}

// CanonicalStatus maps a Noon order status. Unmapped values become
// StatusUnknown.
func CanonicalStatus(status string) paymentdomain.TransactionStatus {
	if s, ok := statusMap[status]; ok {
		return s
	}
	return paymentdomain.StatusUnknown
}

// IsSuccess reports a completed charge. AUTHORIZED alone is not enough to
// send the customer to the success page.
func IsSuccess(status string) bool {
	return status == StatusCaptured || status == Status3DSVerified
}

func IsCancelled(status string) bool {
	return status == StatusCancelled
}
