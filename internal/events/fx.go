package events

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/smallbiznis/paylink/internal/clock"
	"github.com/smallbiznis/paylink/internal/config"
	obsmetrics "github.com/smallbiznis/paylink/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
	referraldomain "github.com/smallbiznis/paylink/internal/referral/domain"
	"github.com/smallbiznis/paylink/pkg/idempotency"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const consumedTTL = 7 * 24 * time.Hour

var Module = fx.Module("events",
	fx.Provide(NewPublisher),
	fx.Invoke(RunConsumer),
)

type PublisherParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Cfg        config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	Alerter    paymentdomain.Alerter
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Publishers hands the same emitter to the payment and referral services.
type Publishers struct {
	fx.Out

	Payment  paymentdomain.EventPublisher
	Referral referraldomain.EventPublisher
}

func NewPublisher(p PublisherParams) Publishers {
	if !p.Cfg.Kafka.Enabled {
		p.Log.Warn("kafka disabled, outbound events are dropped")
		noop := NewNoopPublisher(p.Log)
		return Publishers{Payment: noop, Referral: noop}
	}

	writer := NewWriter(p.Cfg.Kafka.Brokers)
	emitter := NewEmitter(writer, p.Cfg.Kafka, p.Log, p.Clock, p.Alerter, p.ObsMetrics)
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			emitter.Wait()
			return writer.Close()
		},
	})
	return Publishers{Payment: emitter, Referral: emitter}
}

type ConsumerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Cfg       config.Config
	Log       *zap.Logger
	Service   paymentdomain.Service
	Referrals referraldomain.Service
	Alerter   paymentdomain.Alerter
	Redis     *redis.Client `optional:"true"`
}

// RunConsumer starts the purchase order and consultation consumers when
// Kafka is enabled.
func RunConsumer(p ConsumerParams) {
	if !p.Cfg.Kafka.Enabled {
		return
	}
	idem := idempotency.NewStore(p.Redis, consumedTTL)

	if topic := p.Cfg.Kafka.PurchaseOrderTopic; topic != "" {
		reader := newReader(p.Cfg.Kafka, topic)
		runConsumer(p.Lifecycle, reader, NewConsumer(reader, p.Service, idem, p.Alerter, p.Log))
	}
	if topic := p.Cfg.Kafka.ConsultationTopic; topic != "" {
		reader := newReader(p.Cfg.Kafka, topic)
		runConsumer(p.Lifecycle, reader, NewConsultationConsumer(reader, p.Referrals, idem, p.Alerter, p.Log))
	}
}

func newReader(cfg config.KafkaConfig, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
}

func runConsumer(lc fx.Lifecycle, reader *kafka.Reader, consumer *Consumer) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				_ = consumer.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return reader.Close()
		},
	})
}
