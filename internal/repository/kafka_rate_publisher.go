package repository

import (
	"context"
	"fmt"

	"RateCast/internal/domain/models"
	domrepo "RateCast/internal/domain/repository"
	pkgkafka "RateCast/pkg/kafka"
)

// KafkaRatePublisher forwards rate points to a Kafka topic, keyed by
// currency so a partition preserves per-currency ordering.
type KafkaRatePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaRatePublisher(producer *pkgkafka.Producer, topic string) *KafkaRatePublisher {
	return &KafkaRatePublisher{producer: producer, topic: topic}
}

func (p *KafkaRatePublisher) Publish(ctx context.Context, point *models.RatePoint) error {
	return p.producer.Publish(ctx, p.topic, []byte(point.Currency), point)
}

func (p *KafkaRatePublisher) PublishBatch(ctx context.Context, points []*models.RatePoint) error {
	if len(points) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(points))
	for _, pt := range points {
		if pt == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(pt.Currency), Value: pt})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaRatePublisher) Close() error {
	return p.producer.Close()
}

var _ domrepo.RatePublisher = (*KafkaRatePublisher)(nil)

// KafkaEventPublisher emits model lifecycle events (registered,
// activated, pruned) for downstream consumers.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, event *models.ModelEvent) error {
	key := []byte(fmt.Sprintf("%s:%s", event.Currency, event.Type))
	return p.producer.Publish(ctx, p.topic, key, event)
}

func (p *KafkaEventPublisher) Close() error {
	return p.producer.Close()
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)
