package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"replybot/internal/matcher"
	"replybot/pkg/metrics"
)

var ErrConversationNotFound = errors.New("conversation not found")

type Repository interface {
	// ListEnabledRules returns the conversation's enabled rules ordered by
	// priority ascending, then creation time.
	ListEnabledRules(ctx context.Context, conversationID string) ([]Rule, error)
	GetConversation(ctx context.Context, conversationID string) (*Conversation, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListEnabledRules(ctx context.Context, conversationID string) ([]Rule, error) {
	query := `
		SELECT id, conversation_id, name, priority, match_type, pattern, reply_template,
		       enabled, error_policy, condition, created_at, updated_at
		FROM reply_rules
		WHERE conversation_id = $1 AND enabled = true
		ORDER BY priority ASC, created_at ASC
	`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	observeQuery("list_rules", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var rule Rule
		var matchType, errorPolicy string
		if err := rows.Scan(
			&rule.ID,
			&rule.ConversationID,
			&rule.Name,
			&rule.Priority,
			&matchType,
			&rule.Pattern,
			&rule.ReplyTemplate,
			&rule.Enabled,
			&errorPolicy,
			&rule.Condition,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rule.MatchType = matcher.MatchType(matchType)
		rule.ErrorPolicy = ErrorPolicy(errorPolicy)
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return rules, nil
}

func (r *PostgresRepository) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	query := `SELECT id, name, enabled FROM conversations WHERE id = $1`

	start := time.Now()
	var c Conversation
	err := r.db.QueryRowContext(ctx, query, conversationID).Scan(&c.ID, &c.Name, &c.Enabled)
	if errors.Is(err, sql.ErrNoRows) {
		observeQuery("get_conversation", start, nil)
		return nil, ErrConversationNotFound
	}
	observeQuery("get_conversation", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}

	return &c, nil
}

func observeQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncDatabaseQuery("router", "postgres", operation, status)
	metrics.ObserveDatabaseQueryDuration("router", "postgres", operation, time.Since(start))
}
