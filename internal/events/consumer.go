package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/smallbiznis/paylink/internal/apperror"
	"github.com/smallbiznis/paylink/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
	referraldomain "github.com/smallbiznis/paylink/internal/referral/domain"
	"github.com/smallbiznis/paylink/pkg/idempotency"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// MessageReader is the part of kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var (
	ErrMissingTransaction = errors.New("payment transaction is missing")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrUnknownEventType   = errors.New("unknown event type")
	ErrMissingUser        = errors.New("user is missing")
)

// Consumer applies the messages of one topic. Every message is committed,
// whether it applied or not; failures are alerted.
type Consumer struct {
	reader  MessageReader
	apply   func(ctx context.Context, value []byte) error
	idem    *idempotency.Store
	alerter paymentdomain.Alerter
	log     *zap.Logger
}

// NewConsumer consumes purchase order lifecycle messages.
func NewConsumer(
	reader MessageReader,
	svc paymentdomain.Service,
	idem *idempotency.Store,
	alerter paymentdomain.Alerter,
	log *zap.Logger,
) *Consumer {
	return &Consumer{
		reader:  reader,
		apply:   purchaseOrderHandler(svc),
		idem:    idem,
		alerter: alerter,
		log:     log.Named("events.consumer"),
	}
}

// NewConsultationConsumer consumes consultation updates and grants referral
// rewards on completed ones.
func NewConsultationConsumer(
	reader MessageReader,
	svc referraldomain.Service,
	idem *idempotency.Store,
	alerter paymentdomain.Alerter,
	log *zap.Logger,
) *Consumer {
	return &Consumer{
		reader:  reader,
		apply:   consultationHandler(svc),
		idem:    idem,
		alerter: alerter,
		log:     log.Named("events.consultation_consumer"),
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("fetch message", zap.Error(err))
			continue
		}
		c.Handle(ctx, msg)
	}
}

// Handle processes one message and commits it.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) {
	ctx = tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	ctx, span := otel.Tracer("paylink/events").Start(ctx, "kafka.consume")
	span.SetAttributes(
		attribute.String("messaging.destination", msg.Topic),
		attribute.Int("messaging.kafka.partition", msg.Partition),
		attribute.Int64("messaging.kafka.offset", msg.Offset),
	)
	defer span.End()

	seen, err := c.idem.Seen(ctx, c.idem.Key(msg.Topic, msg.Partition, msg.Offset))
	if err != nil {
		c.log.Warn("idempotency check failed", zap.Error(err))
	}
	if seen {
		c.log.Info("message already consumed",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
	} else if err := c.apply(ctx, msg.Value); err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "apply failed")
		c.log.Error("apply message", zap.String("topic", msg.Topic), zap.Error(err))
		c.alerter.Alert(ctx, fmt.Sprintf("Kafka Consumer Topic %s \n message: %s \n localized: %s \n event: %s",
			msg.Topic, err, apperror.Message(err), msg.Value))
	}

	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.log.Error("commit message", zap.Error(err))
	}
}

func purchaseOrderHandler(svc paymentdomain.Service) func(context.Context, []byte) error {
	return func(ctx context.Context, value []byte) error {
		var env InboundEnvelope
		if err := json.Unmarshal(value, &env); err != nil {
			return apperror.Wrap(apperror.ErrInvalidRequest, err, "Invalid purchase order message")
		}
		eventType, ok := paymentdomain.ParseEventType(env.EventType)
		if !ok {
			return apperror.Wrap(apperror.ErrInvalidRequest, ErrUnknownEventType, "Unknown event type: %s", env.EventType)
		}
		t := env.Details.PaymentTransaction
		if t == nil {
			return apperror.Wrap(apperror.ErrInvalidRequest, ErrMissingTransaction, "Payment transaction is required")
		}
		if eventType != paymentdomain.EventDelete && (t.Amount == nil || !t.Amount.Value.IsPositive()) {
			return apperror.Wrap(apperror.ErrInvalidRequest, ErrInvalidAmount, "Amount must be greater than zero")
		}

		cmd := env.Command()
		switch eventType {
		case paymentdomain.EventCreate:
			_, err := svc.CreateOrder(ctx, cmd)
			return err
		case paymentdomain.EventUpdate:
			_, err := svc.UpdateOrder(ctx, cmd)
			return err
		default:
			return svc.DeleteOrder(ctx, t.ReferenceID, t.ReferenceType)
		}
	}
}

func consultationHandler(svc referraldomain.Service) func(context.Context, []byte) error {
	return func(ctx context.Context, value []byte) error {
		var env ConsultationEnvelope
		if err := json.Unmarshal(value, &env); err != nil {
			return apperror.Wrap(apperror.ErrInvalidRequest, err, "Invalid consultation message")
		}
		if env.Details.Status != referraldomain.ConsultationCompleted {
			return nil
		}
		if env.Details.UserID <= 0 {
			return apperror.Wrap(apperror.ErrInvalidRequest, ErrMissingUser, "Consultation %s has no user", env.Details.ID)
		}
		return svc.ConsultationCompleted(ctx, env.Details.UserID)
	}
}
