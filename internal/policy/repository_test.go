package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRepository struct {
	policies map[string]*Policy
	calls    int
}

func (r *countingRepository) GetPolicy(ctx context.Context, ruleID string) (*Policy, error) {
	r.calls++
	return r.policies[ruleID], nil
}

func TestCachedRepository_CachesMissingPolicy(t *testing.T) {
	repo := &countingRepository{policies: map[string]*Policy{}}
	cached := NewCachedRepository(repo, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := cached.GetPolicy(ctx, "r1")
		require.NoError(t, err)
		assert.Nil(t, p)
	}
	assert.Equal(t, 1, repo.calls)

	repo.policies["r1"] = &Policy{RuleID: "r1", Scope: ScopeGlobal}
	cached.Invalidate("r1")

	p, err := cached.GetPolicy(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, ScopeGlobal, p.Scope)
	assert.Equal(t, 2, repo.calls)

	cached.Invalidate("")
	_, err = cached.GetPolicy(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 3, repo.calls)
}

func TestPolicy_SubjectID(t *testing.T) {
	assert.Equal(t, "1001", (&Policy{Scope: ScopeUser}).SubjectID("g1", "1001"))
	assert.Equal(t, "1001", (&Policy{}).SubjectID("g1", "1001"))
	assert.Equal(t, "g1", (&Policy{Scope: ScopeGroup}).SubjectID("g1", "1001"))
	assert.Equal(t, GlobalSubject, (&Policy{Scope: ScopeGlobal}).SubjectID("g1", "1001"))
}
