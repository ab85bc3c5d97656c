package context

import "context"

type requestIDKey struct{}
type gatewayKey struct{}
type orderRefKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithGateway tags the context with the payment gateway being served.
func WithGateway(ctx context.Context, gateway string) context.Context {
	if gateway == "" {
		return ctx
	}
	return context.WithValue(ctx, gatewayKey{}, gateway)
}

func GatewayFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(gatewayKey{}).(string)
	return v
}

// WithOrderRef tags the context with the order reference ("type:id").
func WithOrderRef(ctx context.Context, ref string) context.Context {
	if ref == "" {
		return ctx
	}
	return context.WithValue(ctx, orderRefKey{}, ref)
}

func OrderRefFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(orderRefKey{}).(string)
	return v
}
