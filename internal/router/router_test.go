package router

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replybot/internal/constants"
	"replybot/internal/logger"
	"replybot/internal/matcher"
	"replybot/internal/policy"
	"replybot/internal/ratelimit"
	"replybot/internal/rules"
	"replybot/internal/store/storetest"
	apperrors "replybot/pkg/errors"
	"replybot/pkg/models"
)

type memoryRules struct {
	conversation rules.Conversation
	rules        []rules.Rule
}

func (m *memoryRules) ListEnabledRules(ctx context.Context, conversationID string) ([]rules.Rule, error) {
	return m.rules, nil
}

func (m *memoryRules) GetConversation(ctx context.Context, conversationID string) (*rules.Conversation, error) {
	if conversationID != m.conversation.ID {
		return nil, rules.ErrConversationNotFound
	}
	c := m.conversation
	return &c, nil
}

type memoryPolicies map[string]*policy.Policy

func (m memoryPolicies) GetPolicy(ctx context.Context, ruleID string) (*policy.Policy, error) {
	return m[ruleID], nil
}

type fakeRoles map[string]string

func (f fakeRoles) GetRole(ctx context.Context, conversationID, userID string) (string, error) {
	return f[userID], nil
}

type sentReply struct {
	conversationID, text, replyTo string
}

type fakeSender struct {
	mu      sync.Mutex
	replies []sentReply
	result  bool
	block   bool
}

func (s *fakeSender) SendReply(ctx context.Context, conversationID, text, replyTo string) bool {
	if s.block {
		select {}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, sentReply{conversationID, text, replyTo})
	return s.result
}

func (s *fakeSender) sent() []sentReply {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentReply(nil), s.replies...)
}

type fakeSink struct {
	mu       sync.Mutex
	outcomes []*models.RoutingOutcome
	err      error
}

func (s *fakeSink) Write(ctx context.Context, outcome *models.RoutingOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
	return s.err
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outcomes)
}

type harness struct {
	router   *Router
	sender   *fakeSender
	sink     *fakeSink
	store    *storetest.Memory
	rules    *memoryRules
	policies memoryPolicies
}

// 20:00 on a Wednesday.
var evening = time.Date(2026, 3, 4, 20, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, now time.Time, roles policy.RoleResolver) *harness {
	t.Helper()
	mem := storetest.NewMemory(now)
	log := logger.NopLogger()

	repo := &memoryRules{conversation: rules.Conversation{ID: "g1", Name: "Support", Enabled: true}}
	engine := rules.NewEngine(repo, rules.NewIdentity(nil), nil, log)

	policies := memoryPolicies{}
	ruleLimiter := ratelimit.NewLimiter(mem, "rule", constants.KeyPrefixRuleRateLimit, time.Minute, 1, log)
	chain := policy.NewChain(ruleLimiter, mem, roles, time.UTC, log)
	chain.SetClock(func() time.Time { return now })

	sender := &fakeSender{result: true}
	sink := &fakeSink{}

	r := NewRouter(Deps{
		Throttle: ratelimit.NewLimiter(mem, "sender", constants.KeyPrefixSenderRateLimit, 5*time.Second, 2, log),
		Rules:    engine,
		Policies: policies,
		Chain:    chain,
		Sender:   sender,
		Sink:     sink,
		Renderer: NewRenderer(time.UTC),
	}, Options{Workers: 4, QueueSize: 8, SendTimeout: time.Second}, log)
	r.SetClock(func() time.Time { return now })

	return &harness{router: r, sender: sender, sink: sink, store: mem, rules: repo, policies: policies}
}

func inbound(sender, name, text string) models.InboundEvent {
	return models.InboundEvent{
		ConversationID:    "g1",
		SenderID:          sender,
		SenderDisplayName: name,
		MessageText:       text,
		MessageID:         "m-" + text,
		SelfID:            "42",
	}
}

func helpRule() rules.Rule {
	return rules.Rule{
		ID:            "help",
		Priority:      10,
		MatchType:     matcher.MatchContains,
		Pattern:       "help",
		ReplyTemplate: "Hi {user}!",
		Enabled:       true,
		ErrorPolicy:   rules.ErrorPolicyStop,
	}
}

func TestRouter_ReplyToMatchingMessage(t *testing.T) {
	h := newHarness(t, evening, nil)
	h.rules.rules = []rules.Rule{helpRule()}

	outcome := h.router.Process(context.Background(), inbound("1001", "Alice", "I need help"))

	assert.Equal(t, models.OutcomeReplied, outcome.Status)
	assert.Equal(t, "help", outcome.MatchedRuleID)
	assert.Equal(t, "Hi Alice!", outcome.ReplyText)
	require.NotNil(t, outcome.SendSucceeded)
	assert.True(t, *outcome.SendSucceeded)

	require.Len(t, h.sender.sent(), 1)
	assert.Equal(t, sentReply{"g1", "Hi Alice!", "m-I need help"}, h.sender.sent()[0])
	assert.Equal(t, 1, h.sink.count())
}

func TestRouter_SenderRateLimited(t *testing.T) {
	h := newHarness(t, evening, nil)
	h.rules.rules = []rules.Rule{helpRule()}
	ctx := context.Background()

	h.router.Process(ctx, inbound("1001", "Alice", "help 1"))
	h.store.Advance(time.Second)
	h.router.Process(ctx, inbound("1001", "Alice", "help 2"))
	h.store.Advance(time.Second)
	outcome := h.router.Process(ctx, inbound("1001", "Alice", "help 3"))

	assert.Equal(t, "skipped: rate limited", outcome.Summary())
	assert.Nil(t, outcome.SendSucceeded)
	assert.Len(t, h.sender.sent(), 2)
	assert.Equal(t, 3, h.sink.count())
}

func TestRouter_TimeWindowDenied(t *testing.T) {
	h := newHarness(t, evening, nil)
	h.rules.rules = []rules.Rule{helpRule()}
	h.policies["help"] = &policy.Policy{
		RuleID:     "help",
		Scope:      policy.ScopeUser,
		TimeWindow: policy.TimeWindowPolicy{Enabled: true, Start: "09:00", End: "18:00"},
	}

	outcome := h.router.Process(context.Background(), inbound("1001", "Alice", "help"))

	assert.Equal(t, "skipped: policy denied (TimeWindow)", outcome.Summary())
	require.NotNil(t, outcome.PolicyFailure)
	assert.Equal(t, "TimeWindow", outcome.PolicyFailure.Interceptor)
	assert.Empty(t, h.sender.sent())
}

func TestRouter_ContinueRepliesDespiteDenial(t *testing.T) {
	h := newHarness(t, evening, fakeRoles{"1001": "member"})
	h.rules.rules = []rules.Rule{{
		ID:            "digits",
		Priority:      1,
		MatchType:     matcher.MatchRegex,
		Pattern:       `\d{3}`,
		ReplyTemplate: "Order {user_id} noted",
		Enabled:       true,
		ErrorPolicy:   rules.ErrorPolicyContinue,
	}}
	h.policies["digits"] = &policy.Policy{
		RuleID: "digits",
		Role:   policy.RolePolicy{Enabled: true, AllowedRoles: []string{"admin", "owner"}},
	}

	outcome := h.router.Process(context.Background(), inbound("1001", "Bob", "order 123"))

	assert.Equal(t, models.OutcomeReplied, outcome.Status)
	require.NotNil(t, outcome.SendSucceeded)
	assert.True(t, *outcome.SendSucceeded)
	require.NotNil(t, outcome.PolicyFailure)
	assert.Equal(t, "Role", outcome.PolicyFailure.Interceptor)
	assert.Contains(t, outcome.PolicyFailure.Reason, "member")
	require.Len(t, h.sender.sent(), 1)
	assert.Equal(t, "Order 1001 noted", h.sender.sent()[0].text)
}

func TestRouter_LogOnlyAbortsWithPolicyLogged(t *testing.T) {
	h := newHarness(t, evening, nil)
	rule := helpRule()
	rule.ErrorPolicy = rules.ErrorPolicyLogOnly
	h.rules.rules = []rules.Rule{rule}
	h.policies["help"] = &policy.Policy{RuleID: "help", Blacklist: []string{"1001"}}

	outcome := h.router.Process(context.Background(), inbound("1001", "Alice", "help"))

	assert.Equal(t, models.OutcomePolicyLogged, outcome.Status)
	assert.Equal(t, "policy_logged: policy denied (Scope)", outcome.Summary())
	assert.Empty(t, h.sender.sent())
	assert.Equal(t, 1, h.sink.count())
}

func TestRouter_NoRuleMatched(t *testing.T) {
	h := newHarness(t, evening, nil)
	h.rules.rules = []rules.Rule{helpRule()}

	outcome := h.router.Process(context.Background(), inbound("1001", "Alice", "good morning"))
	assert.Equal(t, "skipped: no rule matched", outcome.Summary())
	assert.Empty(t, outcome.MatchedRuleID)
}

func TestRouter_SendFailureAndTimeout(t *testing.T) {
	t.Run("sender reports failure", func(t *testing.T) {
		h := newHarness(t, evening, nil)
		h.rules.rules = []rules.Rule{helpRule()}
		h.sender.result = false

		outcome := h.router.Process(context.Background(), inbound("1001", "Alice", "help"))
		assert.Equal(t, models.OutcomeSendFailed, outcome.Status)
		require.NotNil(t, outcome.SendSucceeded)
		assert.False(t, *outcome.SendSucceeded)
	})

	t.Run("sender hangs", func(t *testing.T) {
		h := newHarness(t, evening, nil)
		h.rules.rules = []rules.Rule{helpRule()}
		h.sender.block = true
		h.router.opts.SendTimeout = 20 * time.Millisecond

		outcome := h.router.Process(context.Background(), inbound("1001", "Alice", "help"))
		assert.Equal(t, models.OutcomeSendFailed, outcome.Status)
		assert.Equal(t, 1, h.sink.count())
	})
}

func TestRouter_SendErrors(t *testing.T) {
	t.Run("refused", func(t *testing.T) {
		h := newHarness(t, evening, nil)
		h.sender.result = false

		err := h.router.send(context.Background(), inbound("1001", "Alice", "help"), "Hi")
		assert.True(t, errors.Is(err, apperrors.ErrGatewayUnavailable))
		assert.True(t, apperrors.IsUnavailable(err))
	})

	t.Run("deadline", func(t *testing.T) {
		h := newHarness(t, evening, nil)
		h.sender.block = true
		h.router.opts.SendTimeout = 20 * time.Millisecond

		err := h.router.send(context.Background(), inbound("1001", "Alice", "help"), "Hi")
		assert.True(t, errors.Is(err, apperrors.ErrTimeout))
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})

	t.Run("caller cancelled", func(t *testing.T) {
		h := newHarness(t, evening, nil)
		h.sender.block = true
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := h.router.send(ctx, inbound("1001", "Alice", "help"), "Hi")
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, errors.Is(err, apperrors.ErrTimeout))
	})

	t.Run("delivered", func(t *testing.T) {
		h := newHarness(t, evening, nil)
		assert.NoError(t, h.router.send(context.Background(), inbound("1001", "Alice", "help"), "Hi"))
	})
}

func TestRouter_SinkFailureDoesNotAffectReply(t *testing.T) {
	h := newHarness(t, evening, nil)
	h.rules.rules = []rules.Rule{helpRule()}
	h.sink.err = errors.New("kafka down")

	outcome := h.router.Process(context.Background(), inbound("1001", "Alice", "help"))
	assert.Equal(t, models.OutcomeReplied, outcome.Status)
}

type panickingMatcher struct{}

func (panickingMatcher) MatchRules(ctx context.Context, event models.InboundEvent) (*rules.Match, error) {
	panic("corrupt rule")
}

func TestRouter_PanicBecomesSkippedOutcome(t *testing.T) {
	sink := &fakeSink{}
	r := NewRouter(Deps{Rules: panickingMatcher{}, Sender: &fakeSender{}, Sink: sink}, Options{}, logger.NopLogger())

	outcome := r.Process(context.Background(), inbound("1001", "Alice", "help"))
	assert.Equal(t, models.OutcomeSkipped, outcome.Status)
	assert.Equal(t, models.SkipReasonPanic, outcome.SkipReason)
	assert.Equal(t, 1, sink.count())
}

func TestRouter_SubmitDropsWhenFull(t *testing.T) {
	r := NewRouter(Deps{}, Options{QueueSize: 2}, logger.NopLogger())

	assert.True(t, r.Submit(inbound("1", "a", "x")))
	assert.True(t, r.Submit(inbound("1", "a", "y")))
	assert.False(t, r.Submit(inbound("1", "a", "z")))
}

func TestRouter_RunProcessesQueuedEvents(t *testing.T) {
	h := newHarness(t, evening, nil)
	h.rules.rules = []rules.Rule{{ID: "all", Priority: 1, MatchType: matcher.MatchStatistics, ReplyTemplate: "ok", Enabled: true}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.router.Run(ctx) }()

	var submitted int32
	for i := 0; i < 6; i++ {
		sender := string(rune('a' + i))
		if h.router.Submit(inbound(sender, sender, "hi")) {
			atomic.AddInt32(&submitted, 1)
		}
	}

	require.Eventually(t, func() bool { return h.sink.count() == int(atomic.LoadInt32(&submitted)) }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
	assert.Len(t, h.sender.sent(), int(submitted))
}
