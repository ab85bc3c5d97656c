package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paylink/internal/apperror"
	"github.com/smallbiznis/paylink/internal/clock"
	"github.com/smallbiznis/paylink/internal/config"
	obsmetrics "github.com/smallbiznis/paylink/internal/observability/metrics"
	"github.com/smallbiznis/paylink/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
	paymentservice "github.com/smallbiznis/paylink/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const noonFailureAlert = "Processing Noon payment webhook request failed, %s"

// claimTTL bounds how long a delivery that died mid-apply blocks redelivery.
const claimTTL = 5 * time.Minute

const (
	outcomeProcessed        = "processed"
	outcomeDuplicate        = "duplicate"
	outcomeIgnored          = "ignored"
	outcomeInvalidSignature = "invalid_signature"
	outcomeFailed           = "failed"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Repo       paymentdomain.Repository
	PaymentSvc *paymentservice.Service
	Adapters   *adapters.Registry
	Alerter    paymentdomain.Alerter
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        paymentdomain.Repository
	paymentSvc  *paymentservice.Service
	adapters    *adapters.Registry
	alerter     paymentdomain.Alerter
	obsMetrics  *obsmetrics.Metrics
	noonRetries int
}

func NewService(p Params) paymentdomain.WebhookService {
	retries := p.Cfg.Noon.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.webhook"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		paymentSvc:  p.PaymentSvc,
		adapters:    p.Adapters,
		alerter:     p.Alerter,
		obsMetrics:  p.ObsMetrics,
		noonRetries: retries,
	}
}

// HandleTelr applies a Telr callback. Failures are returned to the caller
// as they happen.
func (s *Service) HandleTelr(ctx context.Context, payload []byte, headers http.Header) error {
	adapter, err := s.adapters.Adapter(paymentdomain.GatewayTelr)
	if err != nil {
		return err
	}
	if err := adapter.Verify(ctx, payload, headers); err != nil {
		return s.rejectSignature(ctx, adapter.Gateway(), err)
	}
	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		s.obsMetrics.RecordWebhook(ctx, string(paymentdomain.GatewayTelr), outcomeFailed)
		return apperror.Wrap(apperror.ErrInvalidRequest, err, "Invalid Telr transaction payload")
	}

	err = s.ingest(ctx, event, payload, s.applyTelr)
	return s.finish(ctx, event, err)
}

// HandleNoon applies a Noon callback. Processing is retried up to the
// configured budget; once exhausted the failure is alerted and the delivery
// acknowledged. Signature failures are never retried.
func (s *Service) HandleNoon(ctx context.Context, payload []byte, headers http.Header) error {
	adapter, err := s.adapters.Adapter(paymentdomain.GatewayNoon)
	if err != nil {
		return err
	}
	if err := adapter.Verify(ctx, payload, headers); err != nil {
		return s.rejectSignature(ctx, adapter.Gateway(), err)
	}
	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		s.obsMetrics.RecordWebhook(ctx, string(paymentdomain.GatewayNoon), outcomeFailed)
		return apperror.Wrap(apperror.ErrInvalidRequest, err, "Invalid Noon notification payload")
	}

	for attempt := 0; attempt <= s.noonRetries; attempt++ {
		err = s.finish(ctx, event, s.ingest(ctx, event, payload, s.applyNoon))
		if err == nil {
			return nil
		}
		s.log.Warn("noon webhook attempt failed",
			zap.String("event_id", event.EventID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}

	s.alerter.Alert(ctx, fmt.Sprintf(noonFailureAlert, err))
	return nil
}

func (s *Service) rejectSignature(ctx context.Context, gateway paymentdomain.Gateway, err error) error {
	s.log.Warn("webhook signature rejected", zap.String("gateway", gateway.String()), zap.Error(err))
	s.obsMetrics.RecordWebhook(ctx, gateway.String(), outcomeInvalidSignature)
	s.alerter.Alert(ctx, fmt.Sprintf("%s payment webhook rejected, %s", gateway, err))
	if errors.Is(err, paymentdomain.ErrInvalidSignature) {
		return err
	}
	return apperror.Wrap(apperror.ErrInvalidRequest, err, "Invalid %s notification payload", gateway)
}

// finish maps dedupe outcomes to success and records the metric.
func (s *Service) finish(ctx context.Context, event *paymentdomain.WebhookEvent, err error) error {
	gateway := event.Gateway.String()
	switch {
	case err == nil:
		s.obsMetrics.RecordWebhook(ctx, gateway, outcomeProcessed)
		return nil
	case errors.Is(err, paymentdomain.ErrEventAlreadyProcessed), errors.Is(err, paymentdomain.ErrEventInFlight):
		s.log.Info("webhook already handled", zap.String("gateway", gateway), zap.String("event_id", event.EventID), zap.Error(err))
		s.obsMetrics.RecordWebhook(ctx, gateway, outcomeDuplicate)
		return nil
	case errors.Is(err, paymentdomain.ErrEventIgnored):
		s.obsMetrics.RecordWebhook(ctx, gateway, outcomeIgnored)
		return nil
	default:
		s.obsMetrics.RecordWebhook(ctx, gateway, outcomeFailed)
		return err
	}
}

// ingest records the delivery, claims it, applies it once and marks it
// processed. A redelivery of a processed event returns
// ErrEventAlreadyProcessed; one that arrives while another delivery holds a
// fresh claim returns ErrEventInFlight. A failed apply gives the claim back
// so the event can be retried.
func (s *Service) ingest(
	ctx context.Context,
	event *paymentdomain.WebhookEvent,
	payload []byte,
	apply func(context.Context, *paymentdomain.WebhookEvent) error,
) error {
	now := s.clock.Now()
	received := paymentdomain.WebhookEventRecord{
		ID:         s.genID.Generate(),
		Gateway:    event.Gateway,
		EventID:    event.EventID,
		Payload:    storedPayload(payload),
		ReceivedAt: now,
		ClaimedAt:  &now,
	}

	inserted, err := s.repo.InsertWebhookEvent(ctx, s.db, &received)
	if err != nil {
		return err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindWebhookEvent(ctx, s.db, event.Gateway, event.EventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return paymentdomain.ErrEventAlreadyProcessed
		}
		claimed, err := s.repo.ClaimWebhookEvent(ctx, s.db, stored.ID, now, now.Add(-claimTTL))
		if err != nil {
			return err
		}
		if !claimed {
			return paymentdomain.ErrEventInFlight
		}
	}

	applyErr := apply(ctx, event)
	if applyErr != nil && !errors.Is(applyErr, paymentdomain.ErrEventIgnored) {
		if err := s.repo.ReleaseWebhookEvent(ctx, s.db, stored.ID); err != nil {
			s.log.Warn("release webhook claim", zap.String("event_id", event.EventID), zap.Error(err))
		}
		return applyErr
	}
	if err := s.repo.MarkWebhookProcessed(ctx, s.db, stored.ID, s.clock.Now()); err != nil {
		return err
	}
	return applyErr
}

// applyTelr correlates through the cart id. The order's first row is the
// previous transaction.
func (s *Service) applyTelr(ctx context.Context, event *paymentdomain.WebhookEvent) error {
	if event.Cart == nil || event.Transaction == nil {
		return paymentdomain.ErrInvalidEvent
	}
	cart := event.Cart

	release, err := s.paymentSvc.LockOrder(ctx, cart.ReferenceType, cart.ReferenceID)
	if err != nil {
		return err
	}
	defer release()

	order, err := s.repo.FindOrderByReference(ctx, s.db, cart.ReferenceID, cart.ReferenceType)
	if err != nil {
		return err
	}
	if order == nil {
		return paymentdomain.OrderNotFound(cart.ReferenceID, cart.ReferenceType)
	}
	if len(order.Transactions) == 0 {
		return apperror.Wrap(apperror.ErrNotFound, paymentdomain.ErrMissingTransaction,
			"No payment transactions where found for reference id: %s and referenceType: %s", cart.ReferenceID, cart.ReferenceType)
	}
	prev := &order.Transactions[0]

	tx := *event.Transaction
	tx.ExpiresAt = prev.ExpiresAt
	return s.paymentSvc.Reconcile(ctx, order, prev, &tx)
}

// applyNoon correlates through the Noon order id stored as the reference of
// an earlier row. The new row copies that row with the reported status.
func (s *Service) applyNoon(ctx context.Context, event *paymentdomain.WebhookEvent) error {
	prev, err := s.repo.FindTransactionByReference(ctx, s.db, event.OrderReference)
	if err != nil {
		return err
	}
	if prev == nil {
		return apperror.New(apperror.ErrNotFound, "Payment transaction not found for noon order id: %s", event.OrderReference)
	}
	order, err := s.repo.FindOrderByID(ctx, s.db, prev.PurchaseOrderID)
	if err != nil {
		return err
	}
	if order == nil {
		return apperror.New(apperror.ErrNotFound, "Purchase order not found for noon order id: %s", event.OrderReference)
	}

	release, err := s.paymentSvc.LockOrder(ctx, order.ReferenceType, order.ReferenceID)
	if err != nil {
		return err
	}
	defer release()

	if event.UserCancelled {
		s.log.Info("noon payment cancelled by customer",
			zap.String("order_ref", order.Ref()),
			zap.String("gateway_order_id", event.OrderReference),
		)
		return paymentdomain.ErrEventIgnored
	}

	order, err = s.repo.FindOrderByID(ctx, s.db, order.ID)
	if err != nil {
		return err
	}

	tx := *prev
	tx.ID = 0
	tx.Status = event.Status
	tx.GatewayStatus = event.GatewayStatus
	if tx.Status.IsSuccess() {
		tx.Amount = order.PayableAmount()
		tx.Currency = order.Currency
	}
	return s.paymentSvc.Reconcile(ctx, order, prev, &tx)
}

// storedPayload keeps JSON bodies as they are and stores form bodies as a
// JSON string.
func storedPayload(payload []byte) datatypes.JSON {
	if json.Valid(payload) {
		return datatypes.JSON(payload)
	}
	raw, _ := json.Marshal(string(payload))
	return datatypes.JSON(raw)
}
