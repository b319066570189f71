package outcome

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"replybot/internal/constants"
	"replybot/pkg/metrics"
	"replybot/pkg/models"
)

type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Name() string { return constants.SinkPostgres }

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *PostgresSink) Write(ctx context.Context, outcome *models.RoutingOutcome) error {
	query := `
		INSERT INTO routing_logs (id, message_id, conversation_id, sender_id, matched_rule_id, reply_text,
			send_succeeded, status, skip_reason, policy_interceptor, policy_reason, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`

	var interceptor, reason *string
	if outcome.PolicyFailure != nil {
		interceptor = nullable(outcome.PolicyFailure.Interceptor)
		reason = nullable(outcome.PolicyFailure.Reason)
	}

	start := time.Now()
	_, err := s.db.ExecContext(ctx, query,
		outcome.ID, outcome.MessageID, outcome.ConversationID, outcome.SenderID,
		nullable(outcome.MatchedRuleID), nullable(outcome.ReplyText),
		outcome.SendSucceeded, string(outcome.Status), nullable(outcome.SkipReason),
		interceptor, reason, outcome.StartedAt, outcome.Duration.Milliseconds(),
	)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncDatabaseQuery("router", "postgres", "insert_"+constants.RoutingLogsTableName, status)
	metrics.ObserveDatabaseQueryDuration("router", "postgres", "insert_"+constants.RoutingLogsTableName, time.Since(start))

	if err != nil {
		return fmt.Errorf("failed to insert routing log: %w", err)
	}
	return nil
}
