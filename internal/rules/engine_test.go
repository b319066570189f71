package rules

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replybot/internal/logger"
	"replybot/internal/matcher"
	"replybot/pkg/models"
)

type fakeRepository struct {
	mu            sync.Mutex
	conversations map[string]*Conversation
	rules         map[string][]Rule
	err           error
	ruleLoads     int32
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		conversations: make(map[string]*Conversation),
		rules:         make(map[string][]Rule),
	}
}

func (f *fakeRepository) ListEnabledRules(ctx context.Context, conversationID string) ([]Rule, error) {
	atomic.AddInt32(&f.ruleLoads, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.rules[conversationID], nil
}

func (f *fakeRepository) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.conversations[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	copied := *c
	return &copied, nil
}

type fakeConditions struct {
	results map[string]bool
	err     error
}

func (f *fakeConditions) EvaluateCondition(ctx context.Context, expression string, event models.InboundEvent) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.results[expression], nil
}

func event(text string) models.InboundEvent {
	return models.InboundEvent{
		ConversationID: "g1",
		SenderID:       "1001",
		MessageText:    text,
		MessageID:      "m1",
		Timestamp:      time.Now(),
		SelfID:         "42",
	}
}

func seeded() *fakeRepository {
	repo := newFakeRepository()
	repo.conversations["g1"] = &Conversation{ID: "g1", Name: "test group", Enabled: true}
	return repo
}

func TestEngine_LowestPriorityWins(t *testing.T) {
	repo := seeded()
	base := time.Now()
	repo.rules["g1"] = []Rule{
		{ID: "r-greet", Priority: 10, MatchType: matcher.MatchContains, Pattern: "hello", Enabled: true, CreatedAt: base},
		{ID: "r-stats", Priority: 100, MatchType: matcher.MatchStatistics, Enabled: true, CreatedAt: base},
	}
	engine := NewEngine(repo, NewIdentity(nil), nil, logger.NopLogger())

	match, err := engine.MatchRules(context.Background(), event("hello world"))
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "r-greet", match.Rule.ID)
	assert.Equal(t, "test group", match.Conversation.Name)

	match, err = engine.MatchRules(context.Background(), event("goodbye"))
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "r-stats", match.Rule.ID)
}

func TestEngine_TieBrokenByCreationTime(t *testing.T) {
	repo := seeded()
	base := time.Now()
	repo.rules["g1"] = []Rule{
		{ID: "newer", Priority: 5, MatchType: matcher.MatchStatistics, Enabled: true, CreatedAt: base.Add(time.Minute)},
		{ID: "older", Priority: 5, MatchType: matcher.MatchStatistics, Enabled: true, CreatedAt: base},
	}
	engine := NewEngine(repo, NewIdentity(nil), nil, logger.NopLogger())

	match, err := engine.MatchRules(context.Background(), event("anything"))
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "older", match.Rule.ID)
}

func TestEngine_BrokenRuleDoesNotStopEvaluation(t *testing.T) {
	repo := seeded()
	repo.rules["g1"] = []Rule{
		{ID: "bad-regex", Priority: 1, MatchType: matcher.MatchRegex, Pattern: "([", Enabled: true},
		{ID: "bad-type", Priority: 2, MatchType: "FUZZY", Pattern: "x", Enabled: true},
		{ID: "good", Priority: 3, MatchType: matcher.MatchPrefix, Pattern: "!help", Enabled: true},
	}
	engine := NewEngine(repo, NewIdentity(nil), nil, logger.NopLogger())

	match, err := engine.MatchRules(context.Background(), event("!HELP me"))
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "good", match.Rule.ID)
}

func TestEngine_NoMatch(t *testing.T) {
	repo := seeded()
	repo.rules["g1"] = []Rule{
		{ID: "r1", Priority: 1, MatchType: matcher.MatchExact, Pattern: "ping", Enabled: true},
	}
	engine := NewEngine(repo, NewIdentity(nil), nil, logger.NopLogger())

	match, err := engine.MatchRules(context.Background(), event("PING"))
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestEngine_DisabledRuleIgnored(t *testing.T) {
	repo := seeded()
	repo.rules["g1"] = []Rule{
		{ID: "off", Priority: 1, MatchType: matcher.MatchStatistics, Enabled: false},
	}
	engine := NewEngine(repo, NewIdentity(nil), nil, logger.NopLogger())

	match, err := engine.MatchRules(context.Background(), event("x"))
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestEngine_ConversationGate(t *testing.T) {
	tests := []struct {
		name         string
		conversation *Conversation
	}{
		{name: "unknown conversation"},
		{name: "disabled conversation", conversation: &Conversation{ID: "g1", Enabled: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepository()
			if tt.conversation != nil {
				repo.conversations["g1"] = tt.conversation
			}
			repo.rules["g1"] = []Rule{{ID: "r1", Priority: 1, MatchType: matcher.MatchStatistics, Enabled: true}}
			engine := NewEngine(repo, NewIdentity(nil), nil, logger.NopLogger())

			match, err := engine.MatchRules(context.Background(), event("x"))
			require.NoError(t, err)
			assert.Nil(t, match)
		})
	}
}

func TestEngine_IgnoresOwnMessages(t *testing.T) {
	repo := seeded()
	repo.rules["g1"] = []Rule{{ID: "r1", Priority: 1, MatchType: matcher.MatchStatistics, Enabled: true}}
	engine := NewEngine(repo, NewIdentity(nil), nil, logger.NopLogger())

	ev := event("echo")
	ev.SenderID = ev.SelfID

	match, err := engine.MatchRules(context.Background(), ev)
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestEngine_IdentityUnavailableStillMatches(t *testing.T) {
	repo := seeded()
	repo.rules["g1"] = []Rule{{ID: "r1", Priority: 1, MatchType: matcher.MatchStatistics, Enabled: true}}
	identity := NewIdentity(func(ctx context.Context) (string, error) {
		return "", errors.New("gateway down")
	})
	engine := NewEngine(repo, identity, nil, logger.NopLogger())

	ev := event("x")
	ev.SelfID = ""

	match, err := engine.MatchRules(context.Background(), ev)
	require.NoError(t, err)
	require.NotNil(t, match)
}

func TestEngine_RepositoryErrorReturned(t *testing.T) {
	repo := seeded()
	repo.err = errors.New("connection refused")
	engine := NewEngine(repo, NewIdentity(nil), nil, logger.NopLogger())

	_, err := engine.MatchRules(context.Background(), event("x"))
	assert.Error(t, err)
}

func TestEngine_Conditions(t *testing.T) {
	repo := seeded()
	repo.rules["g1"] = []Rule{
		{ID: "guarded", Priority: 1, MatchType: matcher.MatchStatistics, Enabled: true, Condition: "hour < 12"},
		{ID: "fallback", Priority: 2, MatchType: matcher.MatchStatistics, Enabled: true},
	}

	t.Run("condition true", func(t *testing.T) {
		engine := NewEngine(repo, NewIdentity(nil), &fakeConditions{results: map[string]bool{"hour < 12": true}}, logger.NopLogger())
		match, err := engine.MatchRules(context.Background(), event("x"))
		require.NoError(t, err)
		assert.Equal(t, "guarded", match.Rule.ID)
	})

	t.Run("condition false", func(t *testing.T) {
		engine := NewEngine(repo, NewIdentity(nil), &fakeConditions{results: map[string]bool{}}, logger.NopLogger())
		match, err := engine.MatchRules(context.Background(), event("x"))
		require.NoError(t, err)
		assert.Equal(t, "fallback", match.Rule.ID)
	})

	t.Run("condition error", func(t *testing.T) {
		engine := NewEngine(repo, NewIdentity(nil), &fakeConditions{err: errors.New("no such key")}, logger.NopLogger())
		match, err := engine.MatchRules(context.Background(), event("x"))
		require.NoError(t, err)
		assert.Equal(t, "fallback", match.Rule.ID)
	})
}
