package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/smallbiznis/paylink/internal/clock"
	"github.com/smallbiznis/paylink/internal/config"
	obsmetrics "github.com/smallbiznis/paylink/internal/observability/metrics"
	"github.com/smallbiznis/paylink/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
	referraldomain "github.com/smallbiznis/paylink/internal/referral/domain"
	"go.uber.org/zap"
)

const (
	sendAttempts = 3
	sendTimeout  = 10 * time.Second
)

// Emitter publishes envelopes in the background. Each send is tried a few
// times back to back before the failure is alerted and the message dropped;
// the writer does its own backoff.
type Emitter struct {
	writer  MessageWriter
	log     *zap.Logger
	clock   clock.Clock
	alerter paymentdomain.Alerter
	metrics *obsmetrics.Metrics
	topics  config.KafkaConfig

	wg sync.WaitGroup
}

func NewEmitter(
	writer MessageWriter,
	cfg config.KafkaConfig,
	log *zap.Logger,
	clk clock.Clock,
	alerter paymentdomain.Alerter,
	metrics *obsmetrics.Metrics,
) *Emitter {
	return &Emitter{
		writer:  writer,
		log:     log.Named("events.emitter"),
		clock:   clk,
		alerter: alerter,
		metrics: metrics,
		topics:  cfg,
	}
}

func (e *Emitter) PublishTransaction(
	ctx context.Context,
	eventType paymentdomain.EventType,
	userID int64,
	view paymentdomain.TransactionView,
	warehouse paymentdomain.WarehouseEvent,
) {
	now := e.clock.Now()
	e.send(ctx, e.topics.TransactionTopic, view.ReferenceID, NewEnvelope(eventType, userID, now, view))
	e.send(ctx, e.topics.WarehouseTopic, warehouse.ReferenceID, NewEnvelope(eventType, userID, now, warehouse))
}

func (e *Emitter) PublishNotification(ctx context.Context, userID int64, req paymentdomain.NotificationRequest) {
	e.send(ctx, e.topics.NotificationTopic, strconv.FormatInt(userID, 10),
		NewEnvelope(paymentdomain.EventCreate, userID, e.clock.Now(), req))
}

func (e *Emitter) PublishReferral(ctx context.Context, userID int64, referral referraldomain.ReferralView) {
	e.send(ctx, e.topics.ReferralTopic, referral.ID,
		newEnvelope(ReferralEventName, paymentdomain.EventUpdate, userID, e.clock.Now(), referral))
}

func (e *Emitter) PublishReward(ctx context.Context, userID int64, reward referraldomain.RewardEvent) {
	e.send(ctx, e.topics.RewardsBalanceTopic, reward.ID,
		NewEnvelope(paymentdomain.EventCreate, userID, e.clock.Now(), reward))
}

// Wait blocks until all in-flight sends finished.
func (e *Emitter) Wait() {
	e.wg.Wait()
}

func (e *Emitter) send(ctx context.Context, topic, key string, env Envelope) {
	if topic == "" {
		return
	}
	value, err := json.Marshal(env)
	if err != nil {
		e.log.Error("marshal event", zap.String("topic", topic), zap.Error(err))
		return
	}
	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   value,
		Headers: tracing.InjectKafkaHeaders(ctx, nil),
	}

	// The request that triggered the event may end before the send does.
	ctx = context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(ctx, msg, env)
	}()
}

func (e *Emitter) deliver(ctx context.Context, msg kafka.Message, env Envelope) {
	var err error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err = e.writer.WriteMessages(sendCtx, msg)
		cancel()
		if err == nil {
			e.metrics.RecordEventEmitted(ctx, msg.Topic)
			return
		}
		e.log.Warn("kafka send failed",
			zap.String("topic", msg.Topic),
			zap.String("event_id", env.EventID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	e.metrics.RecordEventDropped(ctx, msg.Topic)
	e.alerter.Alert(ctx, fmt.Sprintf("Kafka Producer Topic %s \n message: %s \n localized: %s \n event: %s",
		msg.Topic, err, err, msg.Value))
}

// NoopPublisher drops every event. Used when Kafka is disabled.
type NoopPublisher struct {
	log *zap.Logger
}

func NewNoopPublisher(log *zap.Logger) *NoopPublisher {
	return &NoopPublisher{log: log.Named("events.noop")}
}

func (p *NoopPublisher) PublishTransaction(_ context.Context, eventType paymentdomain.EventType, _ int64, view paymentdomain.TransactionView, _ paymentdomain.WarehouseEvent) {
	p.log.Debug("event skipped", zap.String("event_type", string(eventType)), zap.String("reference_id", view.ReferenceID))
}

func (p *NoopPublisher) PublishNotification(_ context.Context, userID int64, _ paymentdomain.NotificationRequest) {
	p.log.Debug("notification skipped", zap.Int64("user_id", userID))
}

func (p *NoopPublisher) PublishReferral(_ context.Context, userID int64, referral referraldomain.ReferralView) {
	p.log.Debug("referral event skipped", zap.Int64("user_id", userID), zap.String("referral_code", referral.ReferralCode))
}

func (p *NoopPublisher) PublishReward(_ context.Context, userID int64, _ referraldomain.RewardEvent) {
	p.log.Debug("reward event skipped", zap.Int64("user_id", userID))
}
