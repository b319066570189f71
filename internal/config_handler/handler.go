// Package config_handler applies configuration change notifications from
// the broker to the in-process rule and policy caches.
package config_handler

import (
	"context"
	"fmt"

	"replybot/internal/logger"
	"replybot/pkg/models"
	"replybot/pkg/retry"
)

type RuleCache interface {
	InvalidateConversation(conversationID string)
	InvalidateRules(conversationID string)
	InvalidateAll()
}

type PolicyCache interface {
	Invalidate(ruleID string)
}

type Handler struct {
	rules    RuleCache
	policies PolicyCache
	logger   logger.Logger
}

func NewHandler(rules RuleCache, policies PolicyCache, log logger.Logger) *Handler {
	return &Handler{
		rules:    rules,
		policies: policies,
		logger:   log,
	}
}

// HandleConfigUpdateEvent invalidates the cache entries an event affects.
// Malformed events are reported as fatal so the consumer does not retry
// them.
func (h *Handler) HandleConfigUpdateEvent(ctx context.Context, envelope models.MessageEnvelope) error {
	if envelope.Type != "" && envelope.Type != models.EnvelopeTypeConfigUpdate {
		return nil
	}
	if err := models.ValidateMessageEnvelope(&envelope); err != nil {
		h.logger.WarnwCtx(ctx, "Dropping invalid config envelope", "error", err, "id", envelope.ID)
		return retry.NewFatalError(err)
	}

	var event models.ConfigUpdateEvent
	if err := envelope.DecodePayload(&event); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to decode config update event", "error", err, "id", envelope.ID)
		return retry.NewFatalError(fmt.Errorf("malformed config update event %s: %w", envelope.ID, err))
	}
	if event.EventType == "" {
		h.logger.WarnwCtx(ctx, "Config event missing event_type", "id", envelope.ID)
		return nil
	}

	h.logger.InfowCtx(ctx, "Received config update event",
		"event_type", event.EventType,
		"action", event.Action,
		"rule_id", event.RuleID,
		"conversation_id", event.ConversationID,
	)

	h.Apply(event)
	return nil
}

// Apply performs the invalidation for event. It is also used by the
// admin API.
func (h *Handler) Apply(event models.ConfigUpdateEvent) {
	if event.Action == models.ActionReload {
		h.rules.InvalidateAll()
		h.invalidatePolicy("")
		return
	}

	switch event.EventType {
	case models.EventTypeRuleUpdated:
		h.rules.InvalidateRules(event.ConversationID)
		if event.RuleID != "" {
			h.invalidatePolicy(event.RuleID)
		}
	case models.EventTypePolicyUpdated:
		h.invalidatePolicy(event.RuleID)
	case models.EventTypeConversationUpdated:
		if event.ConversationID == "" {
			h.rules.InvalidateAll()
			return
		}
		h.rules.InvalidateConversation(event.ConversationID)
	default:
		h.logger.Debugw("Ignoring config event", "event_type", event.EventType)
	}
}

// policies is nil when no policy store is configured.
func (h *Handler) invalidatePolicy(ruleID string) {
	if h.policies != nil {
		h.policies.Invalidate(ruleID)
	}
}
