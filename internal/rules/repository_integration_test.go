//go:build integration

package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replybot/internal/matcher"
	"replybot/internal/testinfra"
)

func TestPostgresRepository(t *testing.T) {
	db := testinfra.Postgres(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `INSERT INTO conversations (id, name, enabled) VALUES ('g1', 'group one', true)`)
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	insert := `INSERT INTO reply_rules (id, conversation_id, priority, match_type, pattern, reply_template, enabled, error_policy, created_at)
		VALUES ($1, 'g1', $2, $3, $4, 'hi {user}', $5, 'CONTINUE', $6)`
	_, err = db.ExecContext(ctx, insert, "late", 10, "CONTAINS", "hi", true, base.Add(time.Minute))
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, "early", 10, "EXACT", "hi", true, base)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, "off", 1, "STATISTICS", "", false, base)
	require.NoError(t, err)

	repo := NewRepository(db)

	rules, err := repo.ListEnabledRules(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "early", rules[0].ID)
	assert.Equal(t, matcher.MatchExact, rules[0].MatchType)
	assert.Equal(t, ErrorPolicyContinue, rules[0].ErrorPolicy)
	assert.Equal(t, "late", rules[1].ID)

	c, err := repo.GetConversation(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "group one", c.Name)

	_, err = repo.GetConversation(ctx, "missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}
