package config_handler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replybot/internal/logger"
	"replybot/pkg/models"
	"replybot/pkg/retry"
)

type recorder struct {
	calls []string
}

func (r *recorder) InvalidateConversation(id string) { r.calls = append(r.calls, "conversation:"+id) }
func (r *recorder) InvalidateRules(id string)        { r.calls = append(r.calls, "rules:"+id) }
func (r *recorder) InvalidateAll()                   { r.calls = append(r.calls, "all") }
func (r *recorder) Invalidate(ruleID string)         { r.calls = append(r.calls, "policy:"+ruleID) }

func envelope(t *testing.T, event models.ConfigUpdateEvent) models.MessageEnvelope {
	t.Helper()
	env, err := models.NewMessageEnvelopeBuilder().
		WithType(models.EnvelopeTypeConfigUpdate).
		WithPayload(event).
		Build()
	require.NoError(t, err)
	return *env
}

func TestHandler_Invalidation(t *testing.T) {
	tests := []struct {
		name  string
		event models.ConfigUpdateEvent
		want  []string
	}{
		{
			name:  "rule updated",
			event: models.ConfigUpdateEvent{EventType: models.EventTypeRuleUpdated, RuleID: "r1", ConversationID: "g1", Action: models.ActionUpdate},
			want:  []string{"rules:g1", "policy:r1"},
		},
		{
			name:  "policy updated",
			event: models.ConfigUpdateEvent{EventType: models.EventTypePolicyUpdated, RuleID: "r1", Action: models.ActionUpdate},
			want:  []string{"policy:r1"},
		},
		{
			name:  "conversation toggled",
			event: models.ConfigUpdateEvent{EventType: models.EventTypeConversationUpdated, ConversationID: "g1", Action: models.ActionToggle},
			want:  []string{"conversation:g1"},
		},
		{
			name:  "reload",
			event: models.ConfigUpdateEvent{EventType: models.EventTypeRuleUpdated, Action: models.ActionReload},
			want:  []string{"all", "policy:"},
		},
		{
			name:  "unknown event type",
			event: models.ConfigUpdateEvent{EventType: "filtering_rule_updated", Action: models.ActionUpdate},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			h := NewHandler(rec, rec, logger.NopLogger())

			require.NoError(t, h.HandleConfigUpdateEvent(context.Background(), envelope(t, tt.event)))
			assert.Equal(t, tt.want, rec.calls)
		})
	}
}

func TestHandler_IgnoresOtherEnvelopeTypes(t *testing.T) {
	rec := &recorder{}
	h := NewHandler(rec, rec, logger.NopLogger())

	env := envelope(t, models.ConfigUpdateEvent{EventType: models.EventTypeRuleUpdated, Action: models.ActionReload})
	env.Type = models.EnvelopeTypeRoutingOutcome

	require.NoError(t, h.HandleConfigUpdateEvent(context.Background(), env))
	assert.Empty(t, rec.calls)
}

func TestHandler_MalformedPayloadIsFatal(t *testing.T) {
	rec := &recorder{}
	h := NewHandler(rec, rec, logger.NopLogger())

	tests := []struct {
		name string
		env  models.MessageEnvelope
	}{
		{
			name: "payload is not an object",
			env:  models.MessageEnvelope{ID: "bad", Type: models.EnvelopeTypeConfigUpdate, Timestamp: time.Now(), Payload: json.RawMessage(`"not an object"`)},
		},
		{
			name: "missing id",
			env:  models.MessageEnvelope{Type: models.EnvelopeTypeConfigUpdate, Timestamp: time.Now(), Payload: json.RawMessage(`{}`)},
		},
		{
			name: "empty payload",
			env:  models.MessageEnvelope{ID: "empty", Type: models.EnvelopeTypeConfigUpdate, Timestamp: time.Now()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.HandleConfigUpdateEvent(context.Background(), tt.env)

			require.Error(t, err)
			var fatal retry.FatalError
			assert.ErrorAs(t, err, &fatal)
			assert.Empty(t, rec.calls)
		})
	}
}

func TestHandler_WithoutPolicyCache(t *testing.T) {
	rec := &recorder{}
	h := NewHandler(rec, nil, logger.NopLogger())

	h.Apply(models.ConfigUpdateEvent{EventType: models.EventTypeRuleUpdated, RuleID: "r1", ConversationID: "g1"})
	h.Apply(models.ConfigUpdateEvent{Action: models.ActionReload})

	assert.Equal(t, []string{"rules:g1", "all"}, rec.calls)
}
