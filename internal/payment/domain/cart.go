package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidCartIdentifier = errors.New("invalid_cart_identifier")

const cartSeparator = "_"

// CartIdentifier is echoed back by Telr in tran_cartid and resolves the
// order a webhook belongs to. Encoded form:
//
//	{typeShortCode}_{referenceId}_{requestNumber}_{country}_{epochSeconds}
type CartIdentifier struct {
	ReferenceType ReferenceType
	ReferenceID   string
	RequestNumber int
	Country       string
	Instant       time.Time
}

func NewCartIdentifier(order *PurchaseOrder, requestNumber int, country string, now time.Time) CartIdentifier {
	return CartIdentifier{
		ReferenceType: order.ReferenceType,
		ReferenceID:   order.ReferenceID,
		RequestNumber: requestNumber,
		Country:       country,
		Instant:       now.UTC().Truncate(time.Second),
	}
}

func (c CartIdentifier) Encode() (string, error) {
	short := c.ReferenceType.ShortCode()
	if short == "" {
		return "", ErrInvalidReferenceType
	}
	if c.ReferenceID == "" || strings.Contains(c.ReferenceID, cartSeparator) ||
		c.Country == "" || strings.Contains(c.Country, cartSeparator) {
		return "", ErrInvalidCartIdentifier
	}
	return strings.Join([]string{
		short,
		c.ReferenceID,
		strconv.Itoa(c.RequestNumber),
		c.Country,
		strconv.FormatInt(c.Instant.Unix(), 10),
	}, cartSeparator), nil
}

// DecodeCartIdentifier parses both the current five-part form and the legacy
// "{referenceId}_{requestNumber}" form, which always denotes an ORDER.
func DecodeCartIdentifier(raw string) (CartIdentifier, error) {
	parts := strings.Split(strings.TrimSpace(raw), cartSeparator)
	switch len(parts) {
	case 2:
		n, err := strconv.Atoi(parts[1])
		if err != nil || parts[0] == "" {
			return CartIdentifier{}, fmt.Errorf("%w: %q", ErrInvalidCartIdentifier, raw)
		}
		return CartIdentifier{
			ReferenceType: ReferenceOrder,
			ReferenceID:   parts[0],
			RequestNumber: n,
		}, nil
	case 5:
		refType, err := ReferenceTypeFromShortCode(parts[0])
		if err != nil {
			return CartIdentifier{}, fmt.Errorf("%w: %q", ErrInvalidCartIdentifier, raw)
		}
		n, err := strconv.Atoi(parts[2])
		if err != nil || parts[1] == "" {
			return CartIdentifier{}, fmt.Errorf("%w: %q", ErrInvalidCartIdentifier, raw)
		}
		epoch, err := strconv.ParseInt(parts[4], 10, 64)
		if err != nil {
			return CartIdentifier{}, fmt.Errorf("%w: %q", ErrInvalidCartIdentifier, raw)
		}
		return CartIdentifier{
			ReferenceType: refType,
			ReferenceID:   parts[1],
			RequestNumber: n,
			Country:       parts[3],
			Instant:       time.Unix(epoch, 0).UTC(),
		}, nil
	default:
		return CartIdentifier{}, fmt.Errorf("%w: %q", ErrInvalidCartIdentifier, raw)
	}
}
