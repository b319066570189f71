package rules

import (
	"context"
	"errors"
	"fmt"

	"replybot/internal/logger"
	"replybot/internal/matcher"
	"replybot/pkg/metrics"
	"replybot/pkg/models"
	"replybot/pkg/tracing"
)

// ConditionEvaluator evaluates a rule's optional guard expression.
type ConditionEvaluator interface {
	EvaluateCondition(ctx context.Context, expression string, event models.InboundEvent) (bool, error)
}

type Engine struct {
	repo       Repository
	identity   *Identity
	conditions ConditionEvaluator
	logger     logger.Logger
}

// NewEngine wires the rule engine. conditions may be nil, in which case
// rule conditions are ignored.
func NewEngine(repo Repository, identity *Identity, conditions ConditionEvaluator, log logger.Logger) *Engine {
	return &Engine{
		repo:       repo,
		identity:   identity,
		conditions: conditions,
		logger:     log,
	}
}

// MatchRules returns the first enabled rule of the event's conversation
// that matches, or nil. Messages sent by the bot itself and messages from
// unknown or disabled conversations never match. A rule whose matcher or
// condition fails is skipped; only repository failures are returned.
func (e *Engine) MatchRules(ctx context.Context, event models.InboundEvent) (*Match, error) {
	ctx, span := tracing.GetTracer("router-service").Start(ctx, "rules.match")
	defer span.End()

	if e.isSelf(ctx, event) {
		e.logger.DebugwCtx(ctx, "Ignoring message sent by the bot itself")
		return nil, nil
	}

	conversation, err := e.repo.GetConversation(ctx, event.ConversationID)
	if errors.Is(err, ErrConversationNotFound) {
		e.logger.DebugwCtx(ctx, "Conversation is not served")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve conversation: %w", err)
	}
	if !conversation.Enabled {
		return nil, nil
	}

	rules, err := e.repo.ListEnabledRules(ctx, event.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}

	for _, rule := range orderRules(rules) {
		if !rule.Enabled {
			continue
		}
		if e.ruleMatches(ctx, rule, event) {
			return &Match{Rule: rule, Conversation: *conversation}, nil
		}
	}

	return nil, nil
}

func (e *Engine) isSelf(ctx context.Context, event models.InboundEvent) bool {
	if e.identity == nil {
		return false
	}
	e.identity.Observe(event.SelfID)

	self, err := e.identity.Get(ctx)
	if err != nil {
		e.logger.WarnwCtx(ctx, "Bot identity unavailable, skipping self-message filter",
			"error", err,
		)
		return false
	}
	return self == event.SenderID
}

func (e *Engine) ruleMatches(ctx context.Context, rule Rule, event models.InboundEvent) bool {
	matched, err := matcher.Match(rule.MatchType, event.MessageText, rule.Pattern)
	if err != nil {
		metrics.IncRuleMatch(string(rule.MatchType), "error")
		e.logger.WarnwCtx(ctx, "Rule matcher failed, treating as no match",
			"rule_id", rule.ID,
			"match_type", rule.MatchType,
			"error", err,
		)
		return false
	}
	if !matched {
		metrics.IncRuleMatch(string(rule.MatchType), "miss")
		return false
	}

	if rule.Condition != "" && e.conditions != nil {
		ok, err := e.conditions.EvaluateCondition(ctx, rule.Condition, event)
		if err != nil {
			metrics.IncRuleMatch(string(rule.MatchType), "error")
			e.logger.WarnwCtx(ctx, "Rule condition failed, treating as no match",
				"rule_id", rule.ID,
				"error", err,
			)
			return false
		}
		if !ok {
			metrics.IncRuleMatch(string(rule.MatchType), "condition_false")
			return false
		}
	}

	metrics.IncRuleMatch(string(rule.MatchType), "hit")
	return true
}
