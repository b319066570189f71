package broker

import (
	"context"

	"replybot/pkg/models"
)

// Producer publishes envelopes. key selects the partition; messages with
// the same key keep their order.
type Producer interface {
	Publish(ctx context.Context, topic, key string, msg *models.MessageEnvelope) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, msg models.MessageEnvelope) error
