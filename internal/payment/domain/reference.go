package domain

import (
	"errors"
	"strings"
)

type ReferenceType string

const (
	ReferenceOrder        ReferenceType = "ORDER"
	ReferenceConsultation ReferenceType = "CONSULTATION"
	ReferenceLab          ReferenceType = "LAB"
	ReferenceSubscription ReferenceType = "SUBSCRIPTION"
)

var ErrInvalidReferenceType = errors.New("invalid_reference_type")

var shortCodes = map[ReferenceType]string{
	ReferenceOrder:        "o",
	ReferenceConsultation: "c",
	ReferenceLab:          "l",
	ReferenceSubscription: "s",
}

func ParseReferenceType(raw string) (ReferenceType, error) {
	t := ReferenceType(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := shortCodes[t]; !ok {
		return "", ErrInvalidReferenceType
	}
	return t, nil
}

func ReferenceTypeFromShortCode(code string) (ReferenceType, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	for t, c := range shortCodes {
		if c == code {
			return t, nil
		}
	}
	return "", ErrInvalidReferenceType
}

func (t ReferenceType) ShortCode() string { return shortCodes[t] }

func (t ReferenceType) String() string { return string(t) }
