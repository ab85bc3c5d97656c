package domain

import (
	"errors"
	"strings"
)

type Gateway string

const (
	GatewayTelr Gateway = "TELR"
	GatewayNoon Gateway = "NOON"
)

// ErrUnknownGateway is a configuration error and is never retried.
var ErrUnknownGateway = errors.New("unknown_gateway")

func ParseGateway(raw string) (Gateway, error) {
	switch Gateway(strings.ToUpper(strings.TrimSpace(raw))) {
	case GatewayTelr:
		return GatewayTelr, nil
	case GatewayNoon:
		return GatewayNoon, nil
	default:
		return "", ErrUnknownGateway
	}
}

func (g Gateway) String() string { return string(g) }
