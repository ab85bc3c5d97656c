package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/paylink/internal/apperror"
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
	promodomain "github.com/smallbiznis/paylink/internal/promo/domain"
	referraldomain "github.com/smallbiznis/paylink/internal/referral/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePaymentService struct {
	paymentdomain.Service

	linkURL  string
	err      error
	deleted  []string
	promoArg string
}

func (f *fakePaymentService) HostedPaymentLink(_ context.Context, referenceID, referenceType string) (string, error) {
	return f.linkURL, f.err
}

func (f *fakePaymentService) PayNow(_ context.Context, uuid string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://secure.telr.com/gateway/process.html?o=" + uuid, nil
}

func (f *fakePaymentService) NoonStatusPage(_ context.Context, gatewayOrderID string) (string, error) {
	return "https://shop.example.com/payment/authorised", f.err
}

func (f *fakePaymentService) ApplyPromo(_ context.Context, referenceID, referenceType, promoCode string) (*paymentdomain.OrderView, error) {
	f.promoArg = promoCode
	if f.err != nil {
		return nil, f.err
	}
	return &paymentdomain.OrderView{ReferenceID: referenceID, PromoCode: promoCode}, nil
}

func (f *fakePaymentService) GetOrder(_ context.Context, referenceID, referenceType string) (*paymentdomain.OrderView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &paymentdomain.OrderView{
		ReferenceID:   referenceID,
		ReferenceType: paymentdomain.ReferenceType(referenceType),
		Amount:        paymentdomain.NewMoney(decimal.NewFromInt(100), "AED"),
	}, nil
}

func (f *fakePaymentService) LatestTransaction(_ context.Context, referenceID, referenceType string) (*paymentdomain.TransactionView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &paymentdomain.TransactionView{ReferenceID: referenceID, Status: "Pending"}, nil
}

func (f *fakePaymentService) DeleteOrder(_ context.Context, referenceID, referenceType string) error {
	f.deleted = append(f.deleted, referenceType+"-"+referenceID)
	return f.err
}

type fakeWebhookService struct {
	telrPayloads [][]byte
	noonPayloads [][]byte
	err          error
}

func (f *fakeWebhookService) HandleTelr(_ context.Context, payload []byte, _ http.Header) error {
	f.telrPayloads = append(f.telrPayloads, payload)
	return f.err
}

func (f *fakeWebhookService) HandleNoon(_ context.Context, payload []byte, _ http.Header) error {
	f.noonPayloads = append(f.noonPayloads, payload)
	return f.err
}

type fakePromoService struct {
	promodomain.Service

	lastUser int64
	err      error
}

func (f *fakePromoService) ListAvailable(_ context.Context, userID int64) ([]promodomain.View, error) {
	f.lastUser = userID
	return []promodomain.View{{Code: "HALF", Discount: decimal.NewFromInt(50), Valid: true}}, f.err
}

func (f *fakePromoService) Get(_ context.Context, userID int64, code string) (*promodomain.View, error) {
	f.lastUser = userID
	if f.err != nil {
		return nil, f.err
	}
	return &promodomain.View{Code: code, Discount: decimal.NewFromInt(50), Valid: true}, nil
}

type fakeReferralService struct {
	lastUser int64
	lastCode string
	lastPage referraldomain.Page
	err      error
}

func (f *fakeReferralService) Apply(_ context.Context, userID int64, code string) (*referraldomain.ReferralView, error) {
	f.lastUser, f.lastCode = userID, code
	if f.err != nil {
		return nil, f.err
	}
	return &referraldomain.ReferralView{RefereeID: userID, ReferrerID: 1234, ReferralCode: code}, nil
}

func (f *fakeReferralService) RewardsBalance(_ context.Context, userID int64, page referraldomain.Page) ([]referraldomain.RewardView, error) {
	f.lastUser, f.lastPage = userID, page
	return []referraldomain.RewardView{{UserID: userID, RewardType: referraldomain.RewardCash, Value: "25"}}, f.err
}

func (f *fakeReferralService) ConsultationCompleted(context.Context, int64) error { return f.err }

type testServer struct {
	engine   *gin.Engine
	payment  *fakePaymentService
	webhook  *fakeWebhookService
	promo    *fakePromoService
	referral *fakeReferralService
}

func newTestServer() *testServer {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	ts := &testServer{
		engine:   engine,
		payment:  &fakePaymentService{linkURL: "https://secure.telr.com/gateway/process.html?o=abc"},
		webhook:  &fakeWebhookService{},
		promo:    &fakePromoService{},
		referral: &fakeReferralService{},
	}
	NewServer(ServerParams{
		Gin:         engine,
		PaymentSvc:  ts.payment,
		WebhookSvc:  ts.webhook,
		PromoSvc:    ts.promo,
		ReferralSvc: ts.referral,
	})
	return ts
}

func (ts *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" && strings.HasPrefix(body, "{") {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHostedPaymentLink(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodPost, "/api/v1/hosted-payment/link", `{"referenceId":"42","referenceType":"ORDER"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data hostedLinkResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://secure.telr.com/gateway/process.html?o=abc", resp.Data.URL)
}

func TestHostedPaymentLinkRequiresReference(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodPost, "/api/v1/hosted-payment/link", `{"referenceType":"ORDER"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "referenceId is required", decodeError(t, rec).Message)
}

func TestErrorKindsMapToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		typ    string
	}{
		{apperror.New(apperror.ErrConflict, "Purchase order already paid"), http.StatusConflict, "conflict"},
		{apperror.New(apperror.ErrGone, "Payment link expired"), http.StatusGone, "gone"},
		{apperror.New(apperror.ErrNotFound, "Invalid order uuid(x)"), http.StatusNotFound, "not_found"},
		{apperror.New(apperror.ErrTooManyRequests, "Promo usage limit reached"), http.StatusTooManyRequests, "too_many_requests"},
		{apperror.New(apperror.ErrGatewayFailure, "Telr rejected the request"), http.StatusBadGateway, "gateway_failure"},
		{context.DeadlineExceeded, http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.typ, func(t *testing.T) {
			ts := newTestServer()
			ts.payment.err = tc.err

			rec := ts.do(http.MethodPost, "/api/v1/hosted-payment/link", `{"referenceId":"42","referenceType":"ORDER"}`)

			assert.Equal(t, tc.status, rec.Code)
			payload := decodeError(t, rec)
			assert.Equal(t, tc.typ, payload.Type)
			if msg := apperror.Message(tc.err); msg != "" {
				assert.Equal(t, msg, payload.Message)
			}
		})
	}
}

func TestPayNowRedirects(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodGet, "/api/v1/pay-now/4d1c", "")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://secure.telr.com/gateway/process.html?o=4d1c", rec.Header().Get("Location"))
}

func TestTelrWebhookPassesRawBody(t *testing.T) {
	ts := newTestServer()
	body := "tran_store=15996&tran_cartid=ORDER-1"

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transaction", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ts.webhook.telrPayloads, 1)
	assert.Equal(t, body, string(ts.webhook.telrPayloads[0]))
}

func TestNoonWebhookSignatureRejected(t *testing.T) {
	ts := newTestServer()
	ts.webhook.err = apperror.New(apperror.ErrInvalidSignature, "Invalid signature")

	rec := ts.do(http.MethodPost, "/api/v1/transaction/noon", `{"orderId":"1"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Len(t, ts.webhook.noonPayloads, 1)
}

func TestNoonRedirect(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodGet, "/api/v1/transaction/noon/redirect?orderId=7733", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://shop.example.com/payment/authorised", rec.Header().Get("Location"))

	rec = ts.do(http.MethodGet, "/api/v1/transaction/noon/redirect", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPromoRoutes(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodGet, "/api/v1/promo?userId=12", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(12), ts.promo.lastUser)

	rec = ts.do(http.MethodGet, "/api/v1/promo/HALF?userId=13", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data promodomain.View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "HALF", resp.Data.Code)
	assert.True(t, resp.Data.Valid)

	rec = ts.do(http.MethodGet, "/api/v1/promo?userId=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplyPromo(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodPost, "/api/v1/purchase-order/promo", `{"referenceId":"42","referenceType":"ORDER","promoCode":"HALF"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HALF", ts.payment.promoArg)

	rec = ts.do(http.MethodPost, "/api/v1/purchase-order/promo", `{"referenceId":"42","referenceType":"ORDER"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurchaseOrderReads(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodGet, "/api/v1/purchase-order?referenceId=42&referenceType=ORDER", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"value":"100.00"`)

	rec = ts.do(http.MethodGet, "/api/v1/purchase-order/payment-transaction?referenceId=42&referenceType=ORDER", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"Pending"`)

	rec = ts.do(http.MethodGet, "/api/v1/purchase-order?referenceId=42", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelPaymentTransaction(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodDelete, "/api/v1/purchase-order/payment-transaction?referenceId=42&referenceType=ORDER", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"ORDER-42"}, ts.payment.deleted)
}

func TestApplyReferral(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodPost, "/api/v1/referrals/apply?userId=21", `{"referralCode":"FRIEND1234"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(21), ts.referral.lastUser)
	assert.Equal(t, "FRIEND1234", ts.referral.lastCode)
	var resp struct {
		Data referraldomain.ReferralView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1234), resp.Data.ReferrerID)

	ts.referral.err = apperror.New(apperror.ErrInvalidRequest, "This user(21) is already used a referral code")
	rec = ts.do(http.MethodPost, "/api/v1/referrals/apply?userId=21", `{"referralCode":"FRIEND1234"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "This user(21) is already used a referral code", decodeError(t, rec).Message)

	rec = ts.do(http.MethodPost, "/api/v1/referrals/apply", `{"referralCode":"FRIEND1234"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRewardsBalanceRoutes(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodGet, "/api/v1/referrals/rewards-balance?userId=21", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(21), ts.referral.lastUser)
	assert.Equal(t, referraldomain.Page{Number: 0, Size: referraldomain.DefaultPageSize}, ts.referral.lastPage)
	assert.Contains(t, rec.Body.String(), `"rewardType":"CASH"`)

	rec = ts.do(http.MethodGet, "/api/v1/referrals/rewards-balance/users/1234?page=2&size=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1234), ts.referral.lastUser)
	assert.Equal(t, referraldomain.Page{Number: 2, Size: 10}, ts.referral.lastPage)

	rec = ts.do(http.MethodGet, "/api/v1/referrals/rewards-balance/users/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/referrals/rewards-balance?userId=21&size=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
