package outcome

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"replybot/internal/logger"
	apperrors "replybot/pkg/errors"
	"replybot/pkg/metrics"
	"replybot/pkg/models"
)

var (
	ErrBufferFull = errors.New("outcome buffer full")
	ErrSinkClosed = errors.New("outcome sink closed")
)

type pending struct {
	ctx     context.Context
	outcome *models.RoutingOutcome
}

// AsyncSink queues outcomes in memory and writes them to next from a
// single background goroutine. Write never blocks.
type AsyncSink struct {
	next   Sink
	queue  chan pending
	logger logger.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAsyncSink(next Sink, bufferSize int, log logger.Logger) *AsyncSink {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	s := &AsyncSink{
		next:   next,
		queue:  make(chan pending, bufferSize),
		logger: log,
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *AsyncSink) Write(ctx context.Context, outcome *models.RoutingOutcome) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	select {
	case s.queue <- pending{ctx: context.WithoutCancel(ctx), outcome: outcome}:
		return nil
	default:
		metrics.OutcomeSinkWritesTotal.WithLabelValues("async", "dropped").Inc()
		return ErrBufferFull
	}
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for p := range s.queue {
		s.write(p)
	}
}

func (s *AsyncSink) write(p pending) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorwCtx(p.ctx, "Panic while writing routing outcome", "error", apperrors.RecoverPanic(r))
		}
	}()

	if err := s.next.Write(p.ctx, p.outcome); err != nil {
		s.logger.WarnwCtx(p.ctx, "Failed to write routing outcome",
			"outcome_id", p.outcome.ID,
			"error", err,
		)
	}
}

// Close stops accepting outcomes and waits for the queue to drain or ctx
// to end.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("outcome sink drain: %w", ctx.Err())
	}
}
