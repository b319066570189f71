package outcome

import (
	"context"
	"fmt"

	"replybot/internal/broker"
	"replybot/internal/constants"
	"replybot/pkg/logging"
	"replybot/pkg/models"
)

// KafkaSink publishes outcomes keyed by conversation so that a
// conversation's outcomes stay ordered within a partition.
type KafkaSink struct {
	producer broker.Producer
	topic    string
	source   string
}

func NewKafkaSink(producer broker.Producer, topic, source string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic, source: source}
}

func (s *KafkaSink) Name() string { return constants.SinkKafka }

func (s *KafkaSink) Write(ctx context.Context, outcome *models.RoutingOutcome) error {
	envelope, err := models.NewMessageEnvelopeBuilder().
		WithID(outcome.ID).
		WithSource(s.source).
		WithType(models.EnvelopeTypeRoutingOutcome).
		WithTimestamp(outcome.StartedAt).
		WithTraceID(logging.GetTraceID(ctx)).
		WithPayload(outcome).
		Build()
	if err != nil {
		return err
	}

	if err := s.producer.Publish(ctx, s.topic, outcome.ConversationID, envelope); err != nil {
		return fmt.Errorf("failed to publish routing outcome: %w", err)
	}
	return nil
}
