package tracing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/paylink/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GatewayKey is the gin context key webhook handlers set to the gateway name.
const GatewayKey = "gateway"

// MiddlewareConfig lists request paths that never get a span.
type MiddlewareConfig struct {
	SkipPaths []string
}

// DefaultSkipPaths covers the liveness and scrape endpoints.
var DefaultSkipPaths = []string{"/health", "/metrics"}

// GinMiddleware opens a server span per request and tags it with the
// payment identifiers the route carries.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	tracer := otel.Tracer("paylink/http")
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			ctx = withRequestBaggage(ctx, requestID)
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		span.SetName("HTTP " + method + " " + route)
		span.SetAttributes(SafeAttributes(append([]attribute.KeyValue{
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		}, paymentAttributes(c)...)...)...)

		if c.Writer.Status() >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				span.RecordError(SafeError(lastErr.Err))
			}
			span.SetStatus(codes.Error, "request error")
		}
	}
}

func withRequestBaggage(ctx context.Context, requestID string) context.Context {
	member, err := baggage.NewMember("request_id", requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.New(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}

// paymentAttributes reads identifiers off the finished request: the gateway
// a webhook came from, the order reference, the promo code and the user a
// referral call acts for.
func paymentAttributes(c *gin.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if gateway := c.GetString(GatewayKey); gateway != "" {
		attrs = append(attrs, attribute.String("payment.gateway", gateway))
	}
	if refType := c.Query("referenceType"); refType != "" {
		attrs = append(attrs,
			attribute.String("order.reference_type", refType),
			attribute.String("order.reference_id", c.Query("referenceId")),
		)
	}
	if orderID := c.Query("orderId"); orderID != "" {
		attrs = append(attrs, attribute.String("payment.order_id", orderID))
	}
	if code := c.Param("code"); code != "" {
		attrs = append(attrs, attribute.String("promo.code", code))
	}
	userID := c.Param("userId")
	if userID == "" {
		userID = c.Query("userId")
	}
	if userID != "" {
		attrs = append(attrs, attribute.String("user.id", userID))
	}
	return attrs
}
