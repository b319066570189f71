package cel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replybot/pkg/models"
)

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator(nil)
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidateCondition(t *testing.T) {
	eval, err := NewEvaluator(time.UTC)
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{name: "text match", expr: `text.contains("help")`},
		{name: "working hours", expr: `hour >= 9 && hour < 18 && weekday <= 5`},
		{name: "sender list", expr: `sender_id in ["1001", "1002"]`},
		{name: "syntax error", expr: `text ==`, wantError: true},
		{name: "undefined variable", expr: `payload.status == "x"`, wantError: true},
		{name: "non-bool", expr: `hour + 1`, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateCondition(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEvaluateCondition(t *testing.T) {
	eval, err := NewEvaluator(time.UTC)
	require.NoError(t, err)

	// Wednesday 2024-05-15 20:00 UTC
	event := models.InboundEvent{
		ConversationID:    "g1",
		SenderID:          "1001",
		SenderDisplayName: "Alice",
		MessageText:       "I need help",
		MessageID:         "m1",
		Timestamp:         time.Date(2024, 5, 15, 20, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{name: "text contains", expr: `text.contains("help")`, want: true},
		{name: "sender name", expr: `sender_name == "Alice"`, want: true},
		{name: "outside working hours", expr: `hour >= 9 && hour < 18`, want: false},
		{name: "weekday", expr: `weekday == 3`, want: true},
		{name: "conversation", expr: `conversation_id != "g1"`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateCondition(context.Background(), tt.expr, event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateCondition_CompileErrorIsReturned(t *testing.T) {
	eval, err := NewEvaluator(time.UTC)
	require.NoError(t, err)

	_, err = eval.EvaluateCondition(context.Background(), `text ==`, models.InboundEvent{})
	assert.Error(t, err)
}

func TestCompile_FailureIsCached(t *testing.T) {
	eval, err := NewEvaluator(time.UTC)
	require.NoError(t, err)

	const broken = `hour + 1`
	first := eval.ValidateCondition(broken)
	require.Error(t, first)
	assert.Contains(t, first.Error(), "must return bool")

	cached, ok := eval.programs.Load(broken)
	require.True(t, ok)
	assert.Equal(t, first, cached.(compiled).err)

	_, second := eval.EvaluateCondition(context.Background(), broken, models.InboundEvent{})
	assert.Same(t, first, second)
}

func TestEvaluateCondition_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	eval, err := NewEvaluator(loc)
	require.NoError(t, err)

	event := models.InboundEvent{Timestamp: time.Date(2024, 5, 15, 20, 0, 0, 0, time.UTC)}
	got, err := eval.EvaluateCondition(context.Background(), `hour == 4 && weekday == 4`, event)
	require.NoError(t, err)
	assert.True(t, got)
}
