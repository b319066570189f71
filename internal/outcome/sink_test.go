package outcome

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replybot/internal/logger"
	"replybot/pkg/logging"
	"replybot/pkg/models"
)

type memorySink struct {
	name     string
	mu       sync.Mutex
	outcomes []*models.RoutingOutcome
	err      error
	gate     chan struct{}
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) Write(ctx context.Context, outcome *models.RoutingOutcome) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
	return s.err
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outcomes)
}

func sample(id string) *models.RoutingOutcome {
	return &models.RoutingOutcome{
		ID:             id,
		MessageID:      "m1",
		ConversationID: "g1",
		SenderID:       "1001",
		Status:         models.OutcomeSkipped,
		SkipReason:     models.SkipReasonNoRule,
		StartedAt:      time.Now(),
	}
}

func TestAsyncSink_DrainsOnClose(t *testing.T) {
	next := &memorySink{name: "memory"}
	s := NewAsyncSink(next, 16, logger.NopLogger())

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Write(context.Background(), sample("o")))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))
	assert.Equal(t, 10, next.count())

	assert.ErrorIs(t, s.Write(context.Background(), sample("late")), ErrSinkClosed)
	assert.NoError(t, s.Close(ctx), "close is idempotent")
}

func TestAsyncSink_NeverBlocks(t *testing.T) {
	next := &memorySink{name: "memory", gate: make(chan struct{})}
	s := NewAsyncSink(next, 1, logger.NopLogger())

	var full bool
	for i := 0; i < 5; i++ {
		if errors.Is(s.Write(context.Background(), sample("o")), ErrBufferFull) {
			full = true
		}
	}
	assert.True(t, full)

	close(next.gate)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))
}

func TestAsyncSink_WriteOutlivesCallerContext(t *testing.T) {
	next := &memorySink{name: "memory"}
	s := NewAsyncSink(next, 4, logger.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Write(ctx, sample("o")))
	cancel()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer closeCancel()
	require.NoError(t, s.Close(closeCtx))
	assert.Equal(t, 1, next.count())
}

func TestMultiSink_WritesAllAndJoinsErrors(t *testing.T) {
	ok := &memorySink{name: "ok"}
	failing := &memorySink{name: "failing", err: errors.New("db down")}

	err := MultiSink{failing, ok}.Write(context.Background(), sample("o"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 1, failing.count())
}

type capturedPublish struct {
	topic, key string
	envelope   *models.MessageEnvelope
}

type fakeProducer struct {
	published []capturedPublish
}

func (p *fakeProducer) Publish(ctx context.Context, topic, key string, msg *models.MessageEnvelope) error {
	p.published = append(p.published, capturedPublish{topic, key, msg})
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func TestKafkaSink_PublishesEnvelope(t *testing.T) {
	producer := &fakeProducer{}
	s := NewKafkaSink(producer, "routing_outcomes", "router-service")

	ctx := logging.WithTraceID(context.Background(), "trace-1")
	o := sample("outcome-1")
	o.PolicyFailure = &models.PolicyFailure{Interceptor: "Cooldown", Reason: "cooldown active, 3s remaining"}
	require.NoError(t, s.Write(ctx, o))

	require.Len(t, producer.published, 1)
	got := producer.published[0]
	assert.Equal(t, "routing_outcomes", got.topic)
	assert.Equal(t, "g1", got.key)
	assert.Equal(t, "outcome-1", got.envelope.ID)
	assert.Equal(t, models.EnvelopeTypeRoutingOutcome, got.envelope.Type)
	assert.Equal(t, "trace-1", got.envelope.Metadata.TraceID)

	var decoded models.RoutingOutcome
	require.NoError(t, got.envelope.DecodePayload(&decoded))
	assert.Equal(t, "Cooldown", decoded.PolicyFailure.Interceptor)
	assert.Equal(t, models.SkipReasonNoRule, decoded.SkipReason)
}
