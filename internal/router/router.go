// Package router runs the per-message reply pipeline: sender throttle,
// rule match, policy chain, template rendering, send and outcome log.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"replybot/internal/config"
	"replybot/internal/logger"
	"replybot/internal/policy"
	"replybot/internal/rules"
	apperrors "replybot/pkg/errors"
	"replybot/pkg/logging"
	"replybot/pkg/metrics"
	"replybot/pkg/models"
	"replybot/pkg/tracing"
)

const (
	skipReasonRuleLookup   = "rule lookup failed"
	skipReasonPolicyLookup = "policy lookup failed"
)

type Throttle interface {
	TryAcquire(ctx context.Context, subject string) bool
}

type RuleMatcher interface {
	MatchRules(ctx context.Context, event models.InboundEvent) (*rules.Match, error)
}

type PolicyProvider interface {
	GetPolicy(ctx context.Context, ruleID string) (*policy.Policy, error)
}

type PolicyChecker interface {
	Check(ctx context.Context, event models.InboundEvent, p *policy.Policy) policy.Result
}

// Sender delivers a reply and reports whether the gateway accepted it.
type Sender interface {
	SendReply(ctx context.Context, conversationID, text, replyTo string) bool
}

type OutcomeSink interface {
	Write(ctx context.Context, outcome *models.RoutingOutcome) error
}

type Deps struct {
	Throttle Throttle
	Rules    RuleMatcher
	Policies PolicyProvider
	Chain    PolicyChecker
	Sender   Sender
	Sink     OutcomeSink
	Renderer *Renderer
}

type Options struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

func OptionsFromConfig(cfg config.RouterConfig) Options {
	return Options{
		Workers:     cfg.Workers,
		QueueSize:   cfg.QueueSize,
		SendTimeout: cfg.SendTimeout,
	}
}

type Router struct {
	deps   Deps
	opts   Options
	queue  chan models.InboundEvent
	now    func() time.Time
	logger logger.Logger
}

func NewRouter(deps Deps, opts Options, log logger.Logger) *Router {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	if deps.Renderer == nil {
		deps.Renderer = NewRenderer(nil)
	}
	return &Router{
		deps:   deps,
		opts:   opts,
		queue:  make(chan models.InboundEvent, opts.QueueSize),
		now:    time.Now,
		logger: log,
	}
}

func (r *Router) SetClock(now func() time.Time) {
	r.now = now
}

// Submit enqueues event without blocking. It reports false when the queue
// is full and the event was dropped.
func (r *Router) Submit(event models.InboundEvent) bool {
	select {
	case r.queue <- event:
		metrics.EventsReceivedTotal.WithLabelValues("accepted").Inc()
		return true
	default:
		metrics.EventsReceivedTotal.WithLabelValues("dropped").Inc()
		r.logger.WarnwCtx(context.Background(), "Router queue full, dropping event",
			"conversation_id", event.ConversationID,
			"message_id", event.MessageID,
			"queue_size", r.opts.QueueSize,
		)
		return false
	}
}

// Run processes queued events until ctx is done, each in its own
// goroutine, with at most Options.Workers in flight. Events already in
// flight are allowed to finish.
func (r *Router) Run(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(r.opts.Workers)

	work := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case event := <-r.queue:
			g.Go(func() error {
				r.Process(work, event)
				return nil
			})
		}
	}
}

// Process runs the full pipeline for one event and returns its outcome.
// It never panics; the outcome is always handed to the sink.
func (r *Router) Process(ctx context.Context, event models.InboundEvent) (outcome *models.RoutingOutcome) {
	start := r.now()

	ctx = logging.WithConversationID(ctx, event.ConversationID)
	ctx = logging.WithMessageID(ctx, event.MessageID)
	ctx = logging.WithSenderID(ctx, event.SenderID)
	ctx, span := tracing.StartRoutingSpan(ctx, event)
	if traceID := tracing.TraceID(ctx); traceID != "" {
		ctx = logging.WithTraceID(ctx, traceID)
	}

	outcome = &models.RoutingOutcome{
		ID:             uuid.NewString(),
		MessageID:      event.MessageID,
		ConversationID: event.ConversationID,
		SenderID:       event.SenderID,
		StartedAt:      start,
	}

	metrics.RouterInFlight.Inc()
	defer metrics.RouterInFlight.Dec()

	defer func() {
		if rec := recover(); rec != nil {
			err := apperrors.RecoverPanic(rec)
			r.logger.ErrorwCtx(ctx, "Panic while routing event", "error", err)
			outcome.Status = models.OutcomeSkipped
			outcome.SkipReason = models.SkipReasonPanic
		}
		tracing.EndRoutingSpan(span, outcome)
		r.finish(ctx, outcome, start)
	}()

	r.route(ctx, event, outcome)
	return outcome
}

func skip(outcome *models.RoutingOutcome, reason string) {
	outcome.Status = models.OutcomeSkipped
	outcome.SkipReason = reason
}

func (r *Router) route(ctx context.Context, event models.InboundEvent, outcome *models.RoutingOutcome) {
	if r.deps.Throttle != nil && !r.deps.Throttle.TryAcquire(ctx, event.SenderID) {
		skip(outcome, models.SkipReasonRateLimited)
		return
	}

	match, err := r.deps.Rules.MatchRules(ctx, event)
	if err != nil {
		r.logger.WarnwCtx(ctx, "Rule lookup failed", "error", err)
		skip(outcome, skipReasonRuleLookup)
		return
	}
	if match == nil {
		skip(outcome, models.SkipReasonNoRule)
		return
	}
	rule := match.Rule
	outcome.MatchedRuleID = rule.ID

	if !r.checkPolicy(ctx, event, rule, outcome) {
		return
	}

	text := r.deps.Renderer.Render(rule.ReplyTemplate, event, match.Conversation, r.now())
	outcome.ReplyText = text

	err = r.send(ctx, event, text)
	sent := err == nil
	outcome.SendSucceeded = &sent
	if sent {
		outcome.Status = models.OutcomeReplied
		return
	}
	outcome.Status = models.OutcomeSendFailed
	r.logger.WarnwCtx(ctx, "Reply not sent", "rule_id", rule.ID, "error", err)
}

// checkPolicy applies the rule's policy and error policy. It reports
// whether the reply should still be sent.
func (r *Router) checkPolicy(ctx context.Context, event models.InboundEvent, rule rules.Rule, outcome *models.RoutingOutcome) bool {
	if r.deps.Policies == nil || r.deps.Chain == nil {
		return true
	}

	p, err := r.deps.Policies.GetPolicy(ctx, rule.ID)
	if err != nil {
		r.logger.WarnwCtx(ctx, "Policy lookup failed",
			"rule_id", rule.ID,
			"error", err,
		)
		skip(outcome, skipReasonPolicyLookup)
		return false
	}

	result := r.deps.Chain.Check(ctx, event, p)
	if result.Passed {
		return true
	}

	outcome.PolicyFailure = result.Failure()
	reason := fmt.Sprintf("policy denied (%s)", result.Interceptor)

	switch rule.ErrorPolicy {
	case rules.ErrorPolicyContinue:
		r.logger.InfowCtx(ctx, "Policy denied, replying anyway",
			"rule_id", rule.ID,
			"interceptor", result.Interceptor,
			"reason", result.Reason,
		)
		return true
	case rules.ErrorPolicyLogOnly:
		outcome.Status = models.OutcomePolicyLogged
		outcome.SkipReason = reason
		return false
	default:
		skip(outcome, reason)
		return false
	}
}

// send waits at most SendTimeout for the sender, even if the sender does
// not honour its context. A refused send is ErrGatewayUnavailable and an
// expired one ErrTimeout.
func (r *Router) send(ctx context.Context, event models.InboundEvent, text string) error {
	sendCtx, cancel := context.WithTimeout(ctx, r.opts.SendTimeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				result <- apperrors.RecoverPanic(rec)
			}
		}()
		if !r.deps.Sender.SendReply(sendCtx, event.ConversationID, text, event.MessageID) {
			result <- apperrors.ErrGatewayUnavailable.WithDetail("conversation_id", event.ConversationID)
			return
		}
		result <- nil
	}()

	select {
	case err := <-result:
		return err
	case <-sendCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.ErrTimeout.
			WithCause(sendCtx.Err()).
			WithDetail("timeout", r.opts.SendTimeout.String())
	}
}

func (r *Router) finish(ctx context.Context, outcome *models.RoutingOutcome, start time.Time) {
	outcome.Duration = r.now().Sub(start)

	metrics.RoutingOutcomesTotal.WithLabelValues(string(outcome.Status), outcome.SkipReason).Inc()
	metrics.ObserveRoutingDuration(outcome.Duration, string(outcome.Status))

	fields := []interface{}{
		"outcome", outcome.Summary(),
		"rule_id", outcome.MatchedRuleID,
		"duration", outcome.Duration,
	}
	if outcome.PolicyFailure != nil {
		fields = append(fields, "policy_interceptor", outcome.PolicyFailure.Interceptor, "policy_reason", outcome.PolicyFailure.Reason)
	}
	r.logger.InfowCtx(ctx, "Routed message", fields...)

	r.record(ctx, outcome)
}

// record hands outcome to the sink. Sink failures are logged only.
func (r *Router) record(ctx context.Context, outcome *models.RoutingOutcome) {
	if r.deps.Sink == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorwCtx(ctx, "Panic while recording routing outcome", "error", apperrors.RecoverPanic(rec))
		}
	}()

	if err := r.deps.Sink.Write(context.WithoutCancel(ctx), outcome); err != nil {
		r.logger.WarnwCtx(ctx, "Failed to record routing outcome", "error", err)
	}
}
