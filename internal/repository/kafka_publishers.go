package repository

import (
	"context"
	"time"

	"AriaPull/internal/domain/models"
	domrepo "AriaPull/internal/domain/repository"
	applogger "AriaPull/pkg/logger"
)

// MessagePublisher is implemented by *kafka.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaEventPublisher forwards events to a Kafka topic, keyed by pair so
// events of one encounter stay in order on a partition.
type KafkaEventPublisher struct {
	pub   MessagePublisher
	topic string
}

func NewKafkaEventPublisher(pub MessagePublisher, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{pub: pub, topic: topic}
}

func (p *KafkaEventPublisher) Accept(ctx context.Context, e models.AirborneEvent) error {
	key := []byte(e.Track1ID + "|" + e.Track2ID)
	return p.pub.Publish(ctx, p.topic, key, e)
}

// KafkaLogPublisher ships aggregated error logs to the diagnostics topic.
type KafkaLogPublisher struct {
	pub     MessagePublisher
	timeout time.Duration
}

func NewKafkaLogPublisher(pub MessagePublisher) *KafkaLogPublisher {
	return &KafkaLogPublisher{pub: pub, timeout: 5 * time.Second}
}

func (p *KafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.pub.Publish(ctx, topic, nil, payload)
}

var (
	_ domrepo.EventSink   = (*KafkaEventPublisher)(nil)
	_ applogger.Publisher = (*KafkaLogPublisher)(nil)
)
