package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Astemirdum/library-desk/pkg/circuit_breaker"
	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

//go:generate go run github.com/golang/mock/mockgen -source=publisher.go -destination=mocks/mock.go

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NewPublisher returns a no-op publisher when no brokers are configured.
func NewPublisher(cfg Config, log *zap.Logger) (Publisher, error) {
	if !cfg.Enabled() {
		return NopPublisher{}, nil
	}
	producer, err := NewProducer(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "kafka.NewProducer")
	}
	return NewEventPublisher(producer, cfg.Topic, log), nil
}

type eventPublisher struct {
	producer sarama.SyncProducer
	topic    string
	cb       circuit_breaker.CircuitBreaker
	log      *zap.Logger
}

func NewEventPublisher(producer sarama.SyncProducer, topic string, log *zap.Logger) *eventPublisher {
	if topic == "" {
		topic = LibraryTopic
	}
	return &eventPublisher{
		producer: producer,
		topic:    topic,
		cb:       circuit_breaker.New(10, 30*time.Second, 0.5, 3),
		log:      log.Named("publisher"),
	}
}

func (p *eventPublisher) Publish(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.Key()),
		Value: sarama.ByteEncoder(data),
	}
	return p.cb.Call(func() error {
		partition, offset, err := p.producer.SendMessage(msg)
		if err != nil {
			return err
		}
		p.log.Debug("event published",
			zap.String("type", string(event.Type)),
			zap.Int32("partition", partition),
			zap.Int64("offset", offset))
		return nil
	})
}

func (p *eventPublisher) Close() error {
	return p.producer.Close()
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
