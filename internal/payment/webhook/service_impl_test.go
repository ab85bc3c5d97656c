package webhook_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/paylink/internal/apperror"
	"github.com/smallbiznis/paylink/internal/clock"
	"github.com/smallbiznis/paylink/internal/config"
	"github.com/smallbiznis/paylink/internal/migration"
	"github.com/smallbiznis/paylink/internal/orderlock"
	"github.com/smallbiznis/paylink/internal/payment/adapters"
	"github.com/smallbiznis/paylink/internal/payment/adapters/noon"
	"github.com/smallbiznis/paylink/internal/payment/adapters/telr"
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/paylink/internal/payment/repository"
	paymentservice "github.com/smallbiznis/paylink/internal/payment/service"
	"github.com/smallbiznis/paylink/internal/payment/webhook"
	promodomain "github.com/smallbiznis/paylink/internal/promo/domain"
	promorepo "github.com/smallbiznis/paylink/internal/promo/repository"
	promoservice "github.com/smallbiznis/paylink/internal/promo/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	telrSecret = "telr-secret"
	noonSecret = "noon-secret"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingAlerter struct {
	mu       sync.Mutex
	messages []string
}

func (a *recordingAlerter) Alert(_ context.Context, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, message)
}

// countingPublisher counts update events. When hold is set, the first update
// signals entered and blocks until hold is closed.
type countingPublisher struct {
	mu      sync.Mutex
	updates int
	hold    chan struct{}
	entered chan struct{}
}

func (p *countingPublisher) PublishTransaction(_ context.Context, eventType paymentdomain.EventType, _ int64, _ paymentdomain.TransactionView, _ paymentdomain.WarehouseEvent) {
	if eventType != paymentdomain.EventUpdate {
		return
	}
	p.mu.Lock()
	p.updates++
	first := p.updates == 1
	p.mu.Unlock()
	if first && p.hold != nil {
		close(p.entered)
		<-p.hold
	}
}

func (p *countingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updates
}

func (p *countingPublisher) PublishNotification(context.Context, int64, paymentdomain.NotificationRequest) {}

type fixture struct {
	db         *gorm.DB
	node       *snowflake.Node
	repo       paymentdomain.Repository
	paymentSvc *paymentservice.Service
	webhooks   paymentdomain.WebhookService
	alerter    *recordingAlerter
	publisher  *countingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:payment_webhook_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(7)
	require.NoError(t, err)
	clk := clock.NewFakeClock(now)
	log := zaptest.NewLogger(t)
	cfg := config.Config{
		ServiceBaseURL: "https://pay.test/",
		Currency:       "AED",
		SourceCountry:  "ae",
		Telr:           config.TelrConfig{Secret: telrSecret},
		Noon:           config.NoonConfig{Secret: noonSecret, MaxRetries: 3},
	}
	registry := adapters.NewRegistry(telr.New(cfg, log, nil), noon.New(cfg, log, nil))
	repo := paymentrepo.Provide()
	alerter := &recordingAlerter{}
	publisher := &countingPublisher{}

	promoSvc := promoservice.New(promoservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: promorepo.Provide()})
	paymentSvc := paymentservice.NewService(paymentservice.Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      clk,
		Cfg:        cfg,
		PaymentCfg: config.NewStaticPaymentConfigHolder(config.PaymentConfig{DefaultGateway: "TELR", ExpiryDays: 10}),
		Repo:       repo,
		Adapters:   registry,
		PromoSvc:   promoSvc,
		Publisher:  publisher,
		Locker:     orderlock.NewLocalLocker(),
	})
	webhooks := webhook.NewService(webhook.Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      clk,
		Cfg:        cfg,
		Repo:       repo,
		PaymentSvc: paymentSvc,
		Adapters:   registry,
		Alerter:    alerter,
	})
	return &fixture{db: db, node: node, repo: repo, paymentSvc: paymentSvc, webhooks: webhooks, alerter: alerter, publisher: publisher}
}

func (f *fixture) createOrder(t *testing.T, referenceID string) *paymentdomain.PurchaseOrder {
	t.Helper()
	order, err := f.paymentSvc.CreateOrder(context.Background(), paymentdomain.OrderCommand{
		Order: &paymentdomain.OrderDetails{
			ReferenceID:   referenceID,
			ReferenceType: "ORDER",
			Amount:        decimal.RequireFromString("100"),
			Currency:      "AED",
		},
		User: &paymentdomain.UserDetails{ID: 5, FullName: "John Smith"},
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) transactions(t *testing.T, order *paymentdomain.PurchaseOrder) []paymentdomain.PaymentTransaction {
	t.Helper()
	txs, err := f.repo.ListTransactions(context.Background(), f.db, order.ID)
	require.NoError(t, err)
	return txs
}

func successCount(txs []paymentdomain.PaymentTransaction) int {
	n := 0
	for _, tx := range txs {
		if tx.Status.IsSuccess() {
			n++
		}
	}
	return n
}

func telrPayload(ref, cartID, status, amount string) []byte {
	form := url.Values{}
	form.Set("tran_store", "21552")
	form.Set("tran_type", "sale")
	form.Set("tran_class", "ecom")
	form.Set("tran_test", "1")
	form.Set("tran_ref", ref)
	form.Set("tran_firstref", ref)
	form.Set("tran_order", "A1B2C3")
	form.Set("tran_currency", "AED")
	form.Set("tran_amount", amount)
	form.Set("tran_cartid", cartID)
	form.Set("tran_desc", "Payment request")
	form.Set("tran_status", status)
	form.Set("tran_authcode", "123456")
	form.Set("tran_authmessage", "Authorised")
	form.Set("card_code", "VC")
	form.Set("card_last4", "4242")
	form.Set("tran_check", telr.Sign(telrSecret, form))
	return []byte(form.Encode())
}

func noonPayload(t *testing.T, orderID, status, eventID string) []byte {
	t.Helper()
	p := noon.WebhookPayload{
		OrderID:     noon.Field(orderID),
		OrderStatus: status,
		EventType:   "Sale",
		EventID:     noon.Field(eventID),
		TimeStamp:   "2026-03-01T12:00:00Z",
	}
	p.Signature = noon.Sign(noonSecret, &p)
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return raw
}

// attachNoonOrder stores the Noon order id on the order's latest row, as a
// hosted payment creation would.
func (f *fixture) attachNoonOrder(t *testing.T, order *paymentdomain.PurchaseOrder, gatewayOrderID string) {
	t.Helper()
	latest := order.LatestTransaction()
	latest.Reference = gatewayOrderID
	require.NoError(t, f.repo.SaveTransaction(context.Background(), f.db, latest))
}

func TestTelrSuccessTakesOverReadyRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.createOrder(t, "900")
	ready := order.Transactions[0]

	payload := telrPayload("030012345678", "o_900_1_ae_1772366400", "A", "100.00")
	require.NoError(t, f.webhooks.HandleTelr(ctx, payload, nil))

	txs := f.transactions(t, order)
	require.Len(t, txs, 1)
	assert.Equal(t, ready.ID, txs[0].ID)
	assert.Equal(t, paymentdomain.StatusAuthorized, txs[0].Status)
	assert.Equal(t, "4242", txs[0].CardLast4)
	assert.True(t, ready.ExpiresAt.Equal(txs[0].ExpiresAt))
	assert.Equal(t, 1, f.publisher.updates)
}

func TestTelrDuplicateDeliveryIsAppliedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.createOrder(t, "900")

	declined := telrPayload("030000000001", "o_900_1_ae_1772366400", "D", "100.00")
	require.NoError(t, f.webhooks.HandleTelr(ctx, declined, nil))
	require.NoError(t, f.webhooks.HandleTelr(ctx, declined, nil))

	paid := telrPayload("030000000002", "o_900_2_ae_1772366400", "A", "100.00")
	require.NoError(t, f.webhooks.HandleTelr(ctx, paid, nil))
	require.NoError(t, f.webhooks.HandleTelr(ctx, paid, nil))

	txs := f.transactions(t, order)
	assert.Len(t, txs, 2)
	assert.Equal(t, 1, successCount(txs))
	assert.Equal(t, 2, f.publisher.updates)

	var events int64
	require.NoError(t, f.db.Model(&paymentdomain.WebhookEventRecord{}).Count(&events).Error)
	assert.EqualValues(t, 2, events)
}

func TestTelrRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	f.createOrder(t, "900")

	payload := telrPayload("030012345678", "o_900_1_ae_1772366400", "A", "100.00")
	tampered := strings.Replace(string(payload), "tran_amount=100.00", "tran_amount=1.00", 1)

	err := f.webhooks.HandleTelr(context.Background(), []byte(tampered), nil)
	assert.ErrorIs(t, err, apperror.ErrInvalidSignature)
	require.Len(t, f.alerter.messages, 1)
	assert.Contains(t, f.alerter.messages[0], "TELR")
}

func TestTelrUnknownOrderSurfacesImmediately(t *testing.T) {
	f := newFixture(t)
	payload := telrPayload("030012345678", "o_404_1_ae_1772366400", "A", "100.00")

	err := f.webhooks.HandleTelr(context.Background(), payload, nil)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Empty(t, f.alerter.messages)
}

func TestTelrHalfPromoFlipsUsageOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	expires := now.Add(24 * time.Hour)
	require.NoError(t, f.db.Create(&promodomain.Promo{
		ID:         f.node.Generate(),
		Code:       "HALF",
		Discount:   decimal.NewFromInt(50),
		ExpiresAt:  &expires,
		UsageLimit: 1,
	}).Error)
	order := f.createOrder(t, "900")
	_, err := f.paymentSvc.ApplyPromo(ctx, "900", "ORDER", "HALF")
	require.NoError(t, err)

	payload := telrPayload("030012345678", "o_900_1_ae_1772366400", "A", "50.00")
	require.NoError(t, f.webhooks.HandleTelr(ctx, payload, nil))
	require.NoError(t, f.webhooks.HandleTelr(ctx, payload, nil))

	var usages []promodomain.Usage
	require.NoError(t, f.db.Where("purchase_order_id = ?", order.ID).Find(&usages).Error)
	require.Len(t, usages, 1)
	assert.True(t, usages[0].UsedWithSuccessPayment)

	txs := f.transactions(t, order)
	require.Equal(t, 1, successCount(txs))
	assert.True(t, decimal.RequireFromString("50").Equal(txs[0].Amount))
}

func TestNoonCapturedAppendsPaidRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.createOrder(t, "900")
	f.attachNoonOrder(t, order, "316938457236")

	require.NoError(t, f.webhooks.HandleNoon(ctx, noonPayload(t, "316938457236", "CAPTURED", "evt-1"), nil))

	txs := f.transactions(t, order)
	require.Len(t, txs, 2)
	paid := txs[1]
	assert.Equal(t, paymentdomain.StatusAuthorized, paid.Status)
	assert.Equal(t, "CAPTURED", paid.GatewayStatus)
	assert.Equal(t, "316938457236", paid.Reference)
	assert.True(t, decimal.RequireFromString("100").Equal(paid.Amount))
	assert.Empty(t, f.alerter.messages)
}

func TestNoonCancelledIsIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.createOrder(t, "900")
	f.attachNoonOrder(t, order, "316938457236")

	payload := noonPayload(t, "316938457236", "CANCELLED", "evt-2")
	require.NoError(t, f.webhooks.HandleNoon(ctx, payload, nil))
	require.NoError(t, f.webhooks.HandleNoon(ctx, payload, nil))

	assert.Len(t, f.transactions(t, order), 1)
	assert.Zero(t, f.publisher.updates)
	assert.Empty(t, f.alerter.messages)
}

func TestNoonFailureIsRetriedThenAlerted(t *testing.T) {
	f := newFixture(t)

	err := f.webhooks.HandleNoon(context.Background(), noonPayload(t, "999", "CAPTURED", "evt-3"), nil)
	require.NoError(t, err)
	require.Len(t, f.alerter.messages, 1)
	assert.True(t, strings.HasPrefix(f.alerter.messages[0], "Processing Noon payment webhook request failed, "))

	stored, err := f.repo.FindWebhookEvent(context.Background(), f.db, paymentdomain.GatewayNoon, "evt-3")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Nil(t, stored.ProcessedAt)
	assert.Nil(t, stored.ClaimedAt)
}

func TestNoonBadSignatureIsNotRetried(t *testing.T) {
	f := newFixture(t)
	payload := noonPayload(t, "316938457236", "CAPTURED", "evt-4")
	tampered := strings.Replace(string(payload), "CAPTURED", "AUTHORIZED", 1)

	err := f.webhooks.HandleNoon(context.Background(), []byte(tampered), nil)
	assert.ErrorIs(t, err, apperror.ErrInvalidSignature)
	assert.Len(t, f.alerter.messages, 1)

	stored, err := f.repo.FindWebhookEvent(context.Background(), f.db, paymentdomain.GatewayNoon, "evt-4")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestTelrDuplicateWhileFirstInFlightIsAppliedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.createOrder(t, "900")
	f.publisher.hold = make(chan struct{})
	f.publisher.entered = make(chan struct{})

	payload := telrPayload("030000000009", "o_900_1_ae_1772366400", "A", "100.00")
	first := make(chan error, 1)
	go func() { first <- f.webhooks.HandleTelr(ctx, payload, nil) }()

	select {
	case <-f.publisher.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first delivery never reached the publisher")
	}

	// The first delivery has committed but not yet marked the event processed.
	stored, err := f.repo.FindWebhookEvent(ctx, f.db, paymentdomain.GatewayTelr, "030000000009")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Nil(t, stored.ProcessedAt)

	require.NoError(t, f.webhooks.HandleTelr(ctx, payload, nil))
	close(f.publisher.hold)
	require.NoError(t, <-first)

	txs := f.transactions(t, order)
	assert.Len(t, txs, 1)
	assert.Equal(t, 1, successCount(txs))
	assert.Equal(t, 1, f.publisher.count())

	stored, err = f.repo.FindWebhookEvent(ctx, f.db, paymentdomain.GatewayTelr, "030000000009")
	require.NoError(t, err)
	assert.NotNil(t, stored.ProcessedAt)
}

func TestTelrFreshClaimHeldElsewhereIsAcked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.createOrder(t, "900")
	claimed := now
	require.NoError(t, f.db.Create(&paymentdomain.WebhookEventRecord{
		ID:         f.node.Generate(),
		Gateway:    paymentdomain.GatewayTelr,
		EventID:    "030000000010",
		Payload:    datatypes.JSON(`"tran_ref=030000000010"`),
		ReceivedAt: now,
		ClaimedAt:  &claimed,
	}).Error)

	payload := telrPayload("030000000010", "o_900_1_ae_1772366400", "A", "100.00")
	require.NoError(t, f.webhooks.HandleTelr(ctx, payload, nil))

	txs := f.transactions(t, order)
	require.Len(t, txs, 1)
	assert.Equal(t, paymentdomain.StatusReadyForPayment, txs[0].Status)
	assert.Zero(t, f.publisher.count())
}

func TestTelrStaleClaimIsTakenOver(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.createOrder(t, "900")
	claimed := now.Add(-10 * time.Minute)
	require.NoError(t, f.db.Create(&paymentdomain.WebhookEventRecord{
		ID:         f.node.Generate(),
		Gateway:    paymentdomain.GatewayTelr,
		EventID:    "030000000011",
		Payload:    datatypes.JSON(`"tran_ref=030000000011"`),
		ReceivedAt: claimed,
		ClaimedAt:  &claimed,
	}).Error)

	payload := telrPayload("030000000011", "o_900_1_ae_1772366400", "A", "100.00")
	require.NoError(t, f.webhooks.HandleTelr(ctx, payload, nil))

	txs := f.transactions(t, order)
	assert.Equal(t, 1, successCount(txs))
	assert.Equal(t, 1, f.publisher.count())

	stored, err := f.repo.FindWebhookEvent(ctx, f.db, paymentdomain.GatewayTelr, "030000000011")
	require.NoError(t, err)
	assert.NotNil(t, stored.ProcessedAt)
}

func TestNoonNumericOrderIDIsApplied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.createOrder(t, "900")
	f.attachNoonOrder(t, order, "316938457236")

	signed := noon.WebhookPayload{
		OrderID:     "316938457236",
		OrderStatus: "CAPTURED",
		EventType:   "Sale",
		EventID:     "evt-7",
		TimeStamp:   "2026-03-01T12:00:00Z",
	}
	raw := []byte(`{"orderId":316938457236,"orderStatus":"CAPTURED","eventType":"Sale",` +
		`"eventId":"evt-7","timeStamp":"2026-03-01T12:00:00Z","signature":"` + noon.Sign(noonSecret, &signed) + `"}`)

	require.NoError(t, f.webhooks.HandleNoon(ctx, raw, nil))

	txs := f.transactions(t, order)
	require.Len(t, txs, 2)
	assert.Equal(t, "316938457236", txs[1].Reference)
	assert.Equal(t, paymentdomain.StatusAuthorized, txs[1].Status)
	assert.Empty(t, f.alerter.messages)
}

func TestNoonAuthorizedThenCapturedKeepsBothRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.createOrder(t, "900")
	f.attachNoonOrder(t, order, "316938457236")

	require.NoError(t, f.webhooks.HandleNoon(ctx, noonPayload(t, "316938457236", "AUTHORIZED", "evt-a"), nil))
	require.NoError(t, f.webhooks.HandleNoon(ctx, noonPayload(t, "316938457236", "CAPTURED", "evt-c"), nil))

	txs := f.transactions(t, order)
	require.Len(t, txs, 3)
	assert.Equal(t, 2, successCount(txs))
	assert.Equal(t, "AUTHORIZED", txs[1].GatewayStatus)
	assert.Equal(t, "CAPTURED", txs[2].GatewayStatus)
	assert.NotEqual(t, txs[1].ID, txs[2].ID)
	assert.Equal(t, 2, f.publisher.count())
}
