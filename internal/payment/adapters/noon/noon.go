package noon

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/smallbiznis/paylink/internal/apperror"
	"github.com/smallbiznis/paylink/internal/config"
	obsmetrics "github.com/smallbiznis/paylink/internal/observability/metrics"
	"github.com/smallbiznis/paylink/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	apiOperation   = "INITIATE"
	paymentAction  = "AUTHORIZE,SALE"
	channelWeb     = "WEB"
	categoryPay    = "pay"
	defaultLocale  = "en"
	orderPath      = "order"
	merchantRefHdr = "MerchantRef"
	signSeparator  = ","

	maxStreet = 59
	maxCity   = 30
	maxName   = 24
)

var (
	tracer    = otel.Tracer("paylink/payment/noon")
	nonLetter = regexp.MustCompile(`[^\p{L}]+`)
)

type Adapter struct {
	cfg     config.NoonConfig
	client  *resty.Client
	log     *zap.Logger
	metrics *obsmetrics.Metrics
}

func New(cfg config.Config, log *zap.Logger, metrics *obsmetrics.Metrics) *Adapter {
	client := resty.New().
		SetTimeout(cfg.GatewayTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("Authorization", fmt.Sprintf("Key_%s %s", cfg.Noon.Mode, cfg.Noon.AuthKey))
	return &Adapter{
		cfg:     cfg.Noon,
		client:  client,
		log:     log.Named("payment.noon"),
		metrics: metrics,
	}
}

func (a *Adapter) Gateway() paymentdomain.Gateway {
	return paymentdomain.GatewayNoon
}

type hostedRequest struct {
	APIOperation  string        `json:"apiOperation"`
	Order         orderBlock    `json:"order"`
	Configuration configuration `json:"configuration"`
	Shipping      shipping      `json:"shipping"`
}

type orderBlock struct {
	Reference   string `json:"reference"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Channel     string `json:"channel"`
	Category    string `json:"category"`
}

type configuration struct {
	ReturnURL     string `json:"returnUrl"`
	Locale        string `json:"locale"`
	TokenizeCC    bool   `json:"tokenizeCc"`
	StyleProfile  string `json:"styleProfile,omitempty"`
	PaymentAction string `json:"paymentAction"`
}

type shipping struct {
	Address shippingAddress `json:"address"`
	Contact contact         `json:"contact"`
}

type shippingAddress struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

type contact struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
}

type orderResponse struct {
	Result *struct {
		Order *struct {
			ID        *json.Number `json:"id"`
			Status    string       `json:"status"`
			ErrorCode *int         `json:"errorCode"`
		} `json:"order"`
		CheckoutData *struct {
			PostURL *string `json:"postUrl"`
		} `json:"checkoutData"`
	} `json:"result"`
}

func (a *Adapter) CreateHostedPayment(ctx context.Context, req paymentdomain.HostedPaymentRequest) (*paymentdomain.HostedPayment, error) {
	ctx, span := tracer.Start(ctx, "noon.create_hosted_payment")
	defer span.End()

	body, err := a.buildRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader(merchantRefHdr, req.Order.ReferenceID).
		SetBody(body).
		Post(a.cfg.BaseURL + orderPath)
	if err != nil {
		return nil, a.fail(ctx, span, "create", apperror.Wrap(apperror.ErrGatewayFailure, err, "No response from Noon"))
	}

	id, postURL, err := parseCreateResponse(resp.Body())
	if err != nil {
		a.log.Error("invalid noon order response",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("reference", body.Order.Reference),
			zap.Error(err),
		)
		return nil, a.fail(ctx, span, "create", apperror.Wrap(apperror.ErrGatewayFailure, err, "Invalid response from Noon"))
	}

	a.metrics.RecordGatewayRequest(ctx, string(paymentdomain.GatewayNoon), "create", true)
	span.SetAttributes(attribute.String("payment.gateway_order_id", id))
	return &paymentdomain.HostedPayment{URL: postURL, Reference: id}, nil
}

// parseCreateResponse requires result.order.id, result.order.errorCode and
// result.checkoutData.postUrl.
func parseCreateResponse(raw []byte) (string, string, error) {
	var out orderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", "", fmt.Errorf("%w: %v", paymentdomain.ErrInvalidGatewayResponse, err)
	}
	switch {
	case out.Result == nil || out.Result.Order == nil:
		return "", "", fmt.Errorf("%w: missing result.order", paymentdomain.ErrInvalidGatewayResponse)
	case out.Result.Order.ID == nil:
		return "", "", fmt.Errorf("%w: missing result.order.id", paymentdomain.ErrInvalidGatewayResponse)
	case out.Result.Order.ErrorCode == nil:
		return "", "", fmt.Errorf("%w: missing result.order.errorCode", paymentdomain.ErrInvalidGatewayResponse)
	case out.Result.CheckoutData == nil || out.Result.CheckoutData.PostURL == nil:
		return "", "", fmt.Errorf("%w: missing result.checkoutData.postUrl", paymentdomain.ErrInvalidGatewayResponse)
	}
	return out.Result.Order.ID.String(), *out.Result.CheckoutData.PostURL, nil
}

func (a *Adapter) buildRequest(req paymentdomain.HostedPaymentRequest) (*hostedRequest, error) {
	order := req.Order
	payable := order.PayableAmount()
	if !payable.IsPositive() {
		return nil, apperror.New(apperror.ErrInvalidRequest, paymentdomain.MessagePriceNotSet)
	}

	var txID string
	if req.Transaction != nil {
		txID = req.Transaction.ID.String()
	}

	locale := order.Language
	if locale == "" {
		locale = defaultLocale
	}
	returnURL := a.cfg.ReturnURL
	if order.IsSubscription() {
		returnURL = req.Pages.Authorised
	}

	first, last := splitName(order.FullName)
	return &hostedRequest{
		APIOperation: apiOperation,
		Order: orderBlock{
			Reference:   fmt.Sprintf("%s-%d", txID, req.RequestNumber),
			Amount:      payable.StringFixed(2),
			Currency:    order.Currency,
			Name:        fmt.Sprintf("%s_%s", orderPath, order.ID),
			Description: fmt.Sprintf("Request for purchase order id:%s", order.ID),
			Channel:     channelWeb,
			Category:    categoryPay,
		},
		Configuration: configuration{
			ReturnURL:     returnURL,
			Locale:        locale,
			TokenizeCC:    true,
			StyleProfile:  a.cfg.StyleProfile,
			PaymentAction: paymentAction,
		},
		Shipping: shipping{
			Address: shippingAddress{
				Street:  truncate(strings.ReplaceAll(order.Address, ":<", " "), maxStreet),
				City:    truncate(strings.ReplaceAll(order.City, ":<", " "), maxCity),
				Country: order.Country,
			},
			Contact: contact{
				FirstName: first,
				LastName:  last,
				Phone:     order.PhoneNumber,
				Email:     order.Email,
			},
		},
	}, nil
}

// splitName keeps letters only and returns the first and last words, each
// cut to what Noon accepts.
func splitName(full string) (string, string) {
	var words []string
	for _, w := range strings.Fields(full) {
		if w = nonLetter.ReplaceAllString(w, ""); w != "" {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return "", ""
	}
	return truncate(words[0], maxName), truncate(words[len(words)-1], maxName)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

// Field is a webhook value Noon sends either as a JSON string or as a bare
// number, depending on the event. The literal text is kept as is so the
// signature input matches what Noon signed.
type Field string

func (f *Field) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Field(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("noon: field must be a string or number: %w", err)
	}
	*f = Field(n.String())
	return nil
}

func (f Field) String() string { return string(f) }

// WebhookPayload is the body Noon posts to the notification URL. Identifier
// fields may arrive as strings or numbers.
type WebhookPayload struct {
	OrderID                Field  `json:"orderId"`
	OrderStatus            string `json:"orderStatus"`
	EventType              string `json:"eventType"`
	EventID                Field  `json:"eventId"`
	Signature              string `json:"signature"`
	TimeStamp              Field  `json:"timeStamp"`
	OriginalOrderID        Field  `json:"originalOrderId"`
	MerchantOrderReference Field  `json:"merchantOrderReference"`
	AttemptNumber          Field  `json:"attemptNumber"`
}

func decodeWebhook(payload []byte) (*WebhookPayload, error) {
	var p WebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrInvalidPayload, err)
	}
	return &p, nil
}

// Sign returns the Base64 HMAC-SHA512 over the ordered webhook fields. The
// retry fields are included only when attemptNumber is present.
func Sign(secret string, p *WebhookPayload) string {
	fields := []string{p.OrderID.String(), p.OrderStatus, p.EventID.String(), p.EventType, p.TimeStamp.String()}
	if p.AttemptNumber != "" {
		fields = append(fields, p.OriginalOrderID.String(), p.MerchantOrderReference.String(), p.AttemptNumber.String())
	}
	mac := hmac.New(sha512.New, []byte(secret))
	_, _ = mac.Write([]byte(strings.Join(fields, signSeparator)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	p, err := decodeWebhook(payload)
	if err != nil {
		return err
	}
	expected := Sign(a.cfg.Secret, p)
	if p.Signature == "" || !hmac.Equal([]byte(expected), []byte(p.Signature)) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.WebhookEvent, error) {
	p, err := decodeWebhook(payload)
	if err != nil {
		return nil, err
	}
	orderID, eventID := strings.TrimSpace(p.OrderID.String()), strings.TrimSpace(p.EventID.String())
	if orderID == "" || eventID == "" {
		return nil, fmt.Errorf("%w: missing orderId or eventId", paymentdomain.ErrInvalidEvent)
	}
	return &paymentdomain.WebhookEvent{
		Gateway:        paymentdomain.GatewayNoon,
		EventID:        eventID,
		GatewayStatus:  p.OrderStatus,
		Status:         CanonicalStatus(p.OrderStatus),
		OrderReference: orderID,
		UserCancelled:  IsCancelled(p.OrderStatus),
	}, nil
}

// StatusPage resolves the single Noon return URL to the page matching the
// order outcome.
func (a *Adapter) StatusPage(ctx context.Context, gatewayOrderID string, pages paymentdomain.ReturnPages) (string, error) {
	ctx, span := tracer.Start(ctx, "noon.order_status")
	defer span.End()

	resp, err := a.client.R().
		SetContext(ctx).
		Get(a.cfg.BaseURL + orderPath + "/" + gatewayOrderID)
	if err != nil {
		return "", a.fail(ctx, span, "get_order", apperror.Wrap(apperror.ErrGatewayFailure, err,
			"Failed getting noon order payment details for order id %s", gatewayOrderID))
	}
	a.metrics.RecordGatewayRequest(ctx, string(paymentdomain.GatewayNoon), "get_order", !resp.IsError())

	var out orderResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil || out.Result == nil || out.Result.Order == nil {
		a.log.Warn("failed extracting noon order details", zap.String("gateway_order_id", gatewayOrderID))
		return pages.Declined, nil
	}
	switch status := out.Result.Order.Status; {
	case IsSuccess(status):
		return pages.Authorised, nil
	case IsCancelled(status):
		return pages.Cancelled, nil
	default:
		return pages.Declined, nil
	}
}

func (a *Adapter) fail(ctx context.Context, span trace.Span, op string, err error) error {
	a.metrics.RecordGatewayRequest(ctx, string(paymentdomain.GatewayNoon), op, false)
	span.RecordError(tracing.SafeError(err))
	span.SetStatus(codes.Error, op)
	return err
}
