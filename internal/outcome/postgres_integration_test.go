//go:build integration

package outcome

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replybot/internal/testinfra"
	"replybot/pkg/models"
)

func TestPostgresSink_Write(t *testing.T) {
	db := testinfra.Postgres(t)
	ctx := context.Background()
	s := NewPostgresSink(db)

	sent := false
	o := sample(uuid.NewString())
	o.Status = models.OutcomeSendFailed
	o.SkipReason = ""
	o.MatchedRuleID = "r1"
	o.ReplyText = "hi"
	o.SendSucceeded = &sent
	o.PolicyFailure = &models.PolicyFailure{Interceptor: "Role", Reason: "role lookup failed"}

	require.NoError(t, s.Write(ctx, o))
	require.NoError(t, s.Write(ctx, o), "duplicate ids are ignored")

	var (
		status      string
		succeeded   sql.NullBool
		skipReason  sql.NullString
		interceptor sql.NullString
	)
	err := db.QueryRowContext(ctx,
		`SELECT status, send_succeeded, skip_reason, policy_interceptor FROM routing_logs WHERE id = $1`, o.ID,
	).Scan(&status, &succeeded, &skipReason, &interceptor)
	require.NoError(t, err)

	assert.Equal(t, "send_failed", status)
	assert.True(t, succeeded.Valid)
	assert.False(t, succeeded.Bool)
	assert.False(t, skipReason.Valid)
	assert.Equal(t, "Role", interceptor.String)
}
