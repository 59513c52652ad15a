package service

import (
	"context"
	"time"

	"github.com/paulebil/UniHostel/internal/entity"
	"github.com/paulebil/UniHostel/pkg/kafka"
	"github.com/sirupsen/logrus"
)

const eventPublishTimeout = 3 * time.Second

type kafkaEventPublisher struct {
	producer kafka.Producer
}

// NewKafkaEventPublisher keys every event by its aggregate so one booking's
// events stay ordered on a partition.
func NewKafkaEventPublisher(producer kafka.Producer) EventPublisher {
	return &kafkaEventPublisher{producer: producer}
}

func (p *kafkaEventPublisher) Publish(ctx context.Context, event entity.DomainEvent) error {
	return p.producer.SendMessage(ctx, event.Key, event)
}

// emit publishes best effort. The state change already happened, so a
// failure is logged and swallowed.
func emit(ctx context.Context, events EventPublisher, logger logrus.FieldLogger, eventType entity.EventType, key string, payload map[string]interface{}) {
	if events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()

	event := entity.DomainEvent{
		Type:       eventType,
		Key:        key,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
	if err := events.Publish(ctx, event); err != nil {
		logger.WithError(err).WithField("event", eventType).Warn("Failed to publish domain event")
	}
}
