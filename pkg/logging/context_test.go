package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetLogFields(ctx))

	ctx = WithMessageID(ctx, "m1")
	ctx = WithConversationID(ctx, "g1")
	ctx = WithSenderID(ctx, "u1")

	assert.Equal(t, []interface{}{
		"message_id", "m1",
		"conversation_id", "g1",
		"sender_id", "u1",
	}, GetLogFields(ctx))
	assert.Equal(t, "g1", GetConversationID(ctx))
	assert.Equal(t, "", GetTraceID(ctx))
}
