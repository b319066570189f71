// Package outcome records routing outcomes to Kafka and PostgreSQL
// without ever blocking the router.
package outcome

import (
	"context"
	"errors"

	"replybot/pkg/metrics"
	"replybot/pkg/models"
)

type Sink interface {
	Write(ctx context.Context, outcome *models.RoutingOutcome) error
}

// NamedSink is a Sink that reports its name in metrics.
type NamedSink interface {
	Sink
	Name() string
}

// MultiSink writes to every sink and joins their errors.
type MultiSink []NamedSink

func (m MultiSink) Write(ctx context.Context, outcome *models.RoutingOutcome) error {
	var errs []error
	for _, s := range m {
		err := s.Write(ctx, outcome)
		status := "success"
		if err != nil {
			status = "error"
			errs = append(errs, err)
		}
		metrics.OutcomeSinkWritesTotal.WithLabelValues(s.Name(), status).Inc()
	}
	return errors.Join(errs...)
}
