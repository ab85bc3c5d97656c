package telr

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
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
	createMethod   = "create"
	repeatMonthly  = "M"
	repeatNextDate = "next"
	signSeparator  = ":"
)

var tracer = otel.Tracer("paylink/payment/telr")

type Adapter struct {
	cfg     config.TelrConfig
	country string
	client  *resty.Client
	log     *zap.Logger
	metrics *obsmetrics.Metrics
}

func New(cfg config.Config, log *zap.Logger, metrics *obsmetrics.Metrics) *Adapter {
	client := resty.New().
		SetTimeout(cfg.GatewayTimeout).
		SetHeader("Accept", "application/json")
	return &Adapter{
		cfg:     cfg.Telr,
		country: cfg.SourceCountry,
		client:  client,
		log:     log.Named("payment.telr"),
		metrics: metrics,
	}
}

func (a *Adapter) Gateway() paymentdomain.Gateway {
	return paymentdomain.GatewayTelr
}

type hostedRequest struct {
	Method   string      `json:"method"`
	Store    int64       `json:"store"`
	AuthKey  string      `json:"authkey"`
	Order    orderBlock  `json:"order"`
	Repeat   *repeat     `json:"repeat,omitempty"`
	Customer customer    `json:"customer"`
	Return   returnPages `json:"return"`
}

type orderBlock struct {
	CartID      string `json:"cartid"`
	Test        string `json:"test"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

type repeat struct {
	Term     int    `json:"term"`
	Period   string `json:"period"`
	Interval int    `json:"interval"`
	Start    string `json:"start"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type customer struct {
	Ref     string  `json:"ref"`
	Email   string  `json:"email,omitempty"`
	Phone   string  `json:"phone,omitempty"`
	Address address `json:"address"`
}

type address struct {
	Line1   string `json:"line1,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

type returnPages struct {
	Authorised string `json:"authorised"`
	Declined   string `json:"declined"`
	Cancelled  string `json:"cancelled"`
}

type hostedResponse struct {
	Method string `json:"method"`
	Order  *struct {
		Ref string `json:"ref"`
		URL string `json:"url"`
	} `json:"order"`
	Error *struct {
		Message string `json:"message"`
		Note    string `json:"note"`
		Details string `json:"details"`
	} `json:"error"`
}

// CreateHostedPayment posts a "create" request. Telr reports failures inside
// a 200 body, so the error object is checked before the order block.
func (a *Adapter) CreateHostedPayment(ctx context.Context, req paymentdomain.HostedPaymentRequest) (*paymentdomain.HostedPayment, error) {
	ctx, span := tracer.Start(ctx, "telr.create_hosted_payment")
	defer span.End()

	body, err := a.buildRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(a.cfg.HostedURL)
	if err != nil {
		return nil, a.fail(ctx, span, "create", apperror.Wrap(apperror.ErrGatewayFailure, err, "No response from telr gateway"))
	}
	if resp.IsError() {
		return nil, a.fail(ctx, span, "create", apperror.New(apperror.ErrGatewayFailure, "Telr gateway responded with status %d", resp.StatusCode()))
	}
	var out hostedResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, a.fail(ctx, span, "create", apperror.Wrap(apperror.ErrGatewayFailure, err, "Invalid response from telr gateway"))
	}
	if out.Error != nil {
		a.log.Error("telr rejected hosted payment request",
			zap.String("message", out.Error.Message),
			zap.String("note", out.Error.Note),
			zap.String("cart_id", body.Order.CartID),
		)
		return nil, a.fail(ctx, span, "create", apperror.New(apperror.ErrGatewayFailure, "%s", out.Error.Message))
	}
	if out.Order == nil || strings.TrimSpace(out.Order.URL) == "" {
		return nil, a.fail(ctx, span, "create", apperror.Wrap(apperror.ErrGatewayFailure, paymentdomain.ErrInvalidGatewayResponse, "Invalid response from telr gateway"))
	}

	a.metrics.RecordGatewayRequest(ctx, string(paymentdomain.GatewayTelr), "create", true)
	span.SetAttributes(attribute.String("payment.cart_id", body.Order.CartID))
	return &paymentdomain.HostedPayment{URL: out.Order.URL, Reference: out.Order.Ref}, nil
}

func (a *Adapter) buildRequest(req paymentdomain.HostedPaymentRequest) (*hostedRequest, error) {
	order := req.Order
	payable := order.PayableAmount()
	if !payable.IsPositive() {
		return nil, apperror.New(apperror.ErrInvalidRequest, paymentdomain.MessagePriceNotSet)
	}

	cart, err := paymentdomain.NewCartIdentifier(order, req.RequestNumber, a.country, req.Now).Encode()
	if err != nil {
		return nil, err
	}

	test := "0"
	if a.cfg.TestMode {
		test = "1"
	}

	body := &hostedRequest{
		Method:  createMethod,
		Store:   a.cfg.StoreID,
		AuthKey: a.cfg.AuthKey,
		Order: orderBlock{
			CartID:      cart,
			Test:        test,
			Amount:      payable.StringFixed(2),
			Currency:    order.Currency,
			Description: fmt.Sprintf("Payment request for purchase order id:%s", order.ID),
		},
		Customer: customer{
			Ref:   strconv.FormatInt(order.UserID, 10),
			Email: order.Email,
			Phone: order.PhoneNumber,
			Address: address{
				Line1:   order.Address,
				City:    order.City,
				Country: order.Country,
			},
		},
		Return: returnPages{
			Authorised: req.Pages.Authorised,
			Declined:   req.Pages.Declined,
			Cancelled:  req.Pages.Cancelled,
		},
	}
	// The agreement bills the undiscounted amount from the second period on.
	if order.IsRecurring() {
		body.Repeat = &repeat{
			Term:     order.BillingTerm,
			Period:   repeatMonthly,
			Interval: order.BillingInterval,
			Start:    repeatNextDate,
			Amount:   order.Amount.StringFixed(2),
			Currency: order.Currency,
		}
	}
	return body, nil
}

// Verify checks tran_check against the SHA-1 of the signed field list. The
// posted value must match the lowercase hex digest exactly.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	form, err := url.ParseQuery(string(payload))
	if err != nil {
		return paymentdomain.ErrInvalidPayload
	}
	expected := Sign(a.cfg.Secret, form)
	got := form.Get("tran_check")
	if got == "" || !hmac.Equal([]byte(expected), []byte(got)) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

var signedFields = []string{
	"tran_store",
	"tran_type",
	"tran_class",
	"tran_test",
	"tran_ref",
	"tran_prevref",
	"tran_firstref",
	"tran_order",
	"tran_currency",
	"tran_amount",
	"tran_cartid",
	"tran_desc",
	"tran_status",
	"tran_authcode",
	"tran_authmessage",
}

// Sign returns the 40 hex digit transaction advice check value.
func Sign(secret string, form url.Values) string {
	parts := make([]string, 0, len(signedFields)+1)
	parts = append(parts, secret)
	for _, field := range signedFields {
		parts = append(parts, form.Get(field))
	}
	sum := sha1.Sum([]byte(strings.Join(parts, signSeparator)))
	return hex.EncodeToString(sum[:])
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.WebhookEvent, error) {
	form, err := url.ParseQuery(string(payload))
	if err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	ref := strings.TrimSpace(form.Get("tran_ref"))
	if ref == "" {
		return nil, fmt.Errorf("%w: missing tran_ref", paymentdomain.ErrInvalidEvent)
	}
	cart, err := paymentdomain.DecodeCartIdentifier(form.Get("tran_cartid"))
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(form.Get("tran_amount")))
	if err != nil {
		return nil, fmt.Errorf("%w: tran_amount", paymentdomain.ErrInvalidPayload)
	}

	rawStatus := form.Get("tran_status")
	status := paymentdomain.ParseStatus(rawStatus)
	return &paymentdomain.WebhookEvent{
		Gateway:       paymentdomain.GatewayTelr,
		EventID:       ref,
		GatewayStatus: rawStatus,
		Status:        status,
		Cart:          &cart,
		Transaction: &paymentdomain.PaymentTransaction{
			Status:            status,
			GatewayStatus:     rawStatus,
			Amount:            amount,
			Currency:          strings.ToUpper(form.Get("tran_currency")),
			Description:       form.Get("tran_desc"),
			Reference:         ref,
			PreviousReference: form.Get("tran_prevref"),
			FirstReference:    form.Get("tran_firstref"),
			CartID:            form.Get("tran_cartid"),
			StoreID:           form.Get("tran_store"),
			Type:              form.Get("tran_type"),
			Class:             form.Get("tran_class"),
			AuthCode:          form.Get("tran_authcode"),
			AuthMessage:       form.Get("tran_authmessage"),
			CardLast4:         form.Get("card_last4"),
			CardCode:          form.Get("card_code"),
			TestMode:          form.Get("tran_test") == "1",
		},
	}, nil
}

type transactionDetails struct {
	XMLName     xml.Name `xml:"transaction"`
	ID          string   `xml:"id"`
	PrevID      string   `xml:"prev_id"`
	InitID      string   `xml:"init_id"`
	AgreementID string   `xml:"agreementid"`
	Amount      string   `xml:"amount"`
	Currency    string   `xml:"currency"`
	Description string   `xml:"description"`
	CartID      string   `xml:"cartid"`
	Test        int      `xml:"test"`
}

// CancelAgreement reads the agreement id from the paid transaction and
// deletes the agreement through the service API.
func (a *Adapter) CancelAgreement(ctx context.Context, transactionReference string) error {
	ctx, span := tracer.Start(ctx, "telr.cancel_agreement")
	defer span.End()

	details, err := a.transactionDetails(ctx, transactionReference)
	if err != nil {
		return a.fail(ctx, span, "transaction_details", err)
	}
	agreementID := strings.TrimSpace(details.AgreementID)
	if agreementID == "" {
		return fmt.Errorf("%w: transaction %s", paymentdomain.ErrAgreementNotFound, transactionReference)
	}

	resp, err := a.serviceAPI(ctx).Delete(fmt.Sprintf(a.cfg.AgreementURL, agreementID))
	if err != nil {
		return a.fail(ctx, span, "cancel_agreement", fmt.Errorf("telr cancel agreement %s: %w", agreementID, err))
	}
	if resp.IsError() {
		return a.fail(ctx, span, "cancel_agreement", fmt.Errorf("telr cancel agreement %s: status %d", agreementID, resp.StatusCode()))
	}
	a.metrics.RecordGatewayRequest(ctx, string(paymentdomain.GatewayTelr), "cancel_agreement", true)
	a.log.Info("repeat agreement cancelled", zap.String("agreement_id", agreementID))
	return nil
}

func (a *Adapter) transactionDetails(ctx context.Context, reference string) (*transactionDetails, error) {
	resp, err := a.serviceAPI(ctx).Get(fmt.Sprintf(a.cfg.TransactionURL, reference))
	if err != nil {
		return nil, fmt.Errorf("telr transaction details %s: %w", reference, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("telr transaction details %s: status %d", reference, resp.StatusCode())
	}
	var details transactionDetails
	if err := xml.Unmarshal(resp.Body(), &details); err != nil {
		return nil, fmt.Errorf("parse telr transaction details: %w", err)
	}
	return &details, nil
}

func (a *Adapter) serviceAPI(ctx context.Context) *resty.Request {
	return a.client.R().
		SetContext(ctx).
		SetBasicAuth(a.cfg.MerchantID, a.cfg.APIKey)
}

func (a *Adapter) fail(ctx context.Context, span trace.Span, op string, err error) error {
	a.metrics.RecordGatewayRequest(ctx, string(paymentdomain.GatewayTelr), op, false)
	span.RecordError(tracing.SafeError(err))
	span.SetStatus(codes.Error, op)
	return err
}
