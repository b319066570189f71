// Package policy enforces the per-rule restrictions evaluated after a rule
// matched and before its reply is sent.
package policy

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"replybot/internal/constants"
	"replybot/internal/logger"
	"replybot/internal/ratelimit"
	"replybot/internal/store"
	"replybot/pkg/metrics"
	"replybot/pkg/models"
)

type InterceptorName string

const (
	InterceptorScope      InterceptorName = "Scope"
	InterceptorRateLimit  InterceptorName = "RateLimit"
	InterceptorTimeWindow InterceptorName = "TimeWindow"
	InterceptorRole       InterceptorName = "Role"
	InterceptorCooldown   InterceptorName = "Cooldown"
)

// Order is the fixed evaluation order of the chain.
var Order = []InterceptorName{
	InterceptorScope,
	InterceptorRateLimit,
	InterceptorTimeWindow,
	InterceptorRole,
	InterceptorCooldown,
}

type Result struct {
	Passed      bool
	Interceptor InterceptorName
	Reason      string
}

var passed = Result{Passed: true}

func denied(name InterceptorName, format string, args ...interface{}) Result {
	return Result{Interceptor: name, Reason: fmt.Sprintf(format, args...)}
}

// Failure converts a denial into the outcome representation.
func (r Result) Failure() *models.PolicyFailure {
	if r.Passed {
		return nil
	}
	return &models.PolicyFailure{Interceptor: string(r.Interceptor), Reason: r.Reason}
}

type Chain struct {
	limiter  *ratelimit.Limiter
	store    store.AtomicStore
	roles    RoleResolver
	location *time.Location
	now      func() time.Time
	logger   logger.Logger
}

// NewChain builds the chain. limiter enforces per-rule rate limits, s holds
// cooldown markers and roles resolves member roles. A nil location means
// time.Local.
func NewChain(limiter *ratelimit.Limiter, s store.AtomicStore, roles RoleResolver, location *time.Location, log logger.Logger) *Chain {
	if location == nil {
		location = time.Local
	}
	return &Chain{
		limiter:  limiter,
		store:    s,
		roles:    roles,
		location: location,
		now:      time.Now,
		logger:   log,
	}
}

func (c *Chain) SetClock(now func() time.Time) {
	c.now = now
}

// Check runs the interceptors in Order and stops at the first denial.
// A nil policy always passes.
func (c *Chain) Check(ctx context.Context, event models.InboundEvent, p *Policy) Result {
	if p == nil {
		return passed
	}

	subject := p.SubjectID(event.ConversationID, event.SenderID)

	for _, name := range Order {
		var result Result
		switch name {
		case InterceptorScope:
			result = c.checkScope(p, subject)
		case InterceptorRateLimit:
			result = c.checkRateLimit(ctx, p, subject)
		case InterceptorTimeWindow:
			result = c.checkTimeWindow(ctx, p)
		case InterceptorRole:
			result = c.checkRole(ctx, p, event)
		case InterceptorCooldown:
			result = c.checkCooldown(ctx, p, subject)
		}

		if !result.Passed {
			metrics.IncPolicyDenial(string(name))
			c.logger.DebugwCtx(ctx, "Policy denied message",
				"rule_id", p.RuleID,
				"interceptor", name,
				"reason", result.Reason,
			)
			return result
		}
	}

	return passed
}

func (c *Chain) checkScope(p *Policy, subject string) Result {
	if slices.Contains(p.Blacklist, subject) {
		return denied(InterceptorScope, "%s is blacklisted", subject)
	}
	if len(p.Whitelist) > 0 && !slices.Contains(p.Whitelist, subject) {
		return denied(InterceptorScope, "%s is not whitelisted", subject)
	}
	return passed
}

func subjectKey(p *Policy, subject string) string {
	return p.RuleID + ":" + string(p.scope()) + ":" + subject
}

func (c *Chain) checkRateLimit(ctx context.Context, p *Policy, subject string) Result {
	rl := p.RateLimit
	if !rl.Enabled {
		return passed
	}
	if rl.MaxRequests <= 0 || rl.WindowSeconds <= 0 || c.limiter == nil {
		c.logger.WarnwCtx(ctx, "Rate limit policy misconfigured, skipping",
			"rule_id", p.RuleID,
			"max_requests", rl.MaxRequests,
			"window_seconds", rl.WindowSeconds,
		)
		return passed
	}

	window := time.Duration(rl.WindowSeconds) * time.Second
	if !c.limiter.Admit(ctx, subjectKey(p, subject), window, rl.MaxRequests) {
		return denied(InterceptorRateLimit, "rate limit exceeded: %d requests per %ds", rl.MaxRequests, rl.WindowSeconds)
	}
	return passed
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (c *Chain) checkTimeWindow(ctx context.Context, p *Policy) Result {
	tw := p.TimeWindow
	if !tw.Enabled {
		return passed
	}

	start, errStart := parseClock(tw.Start)
	end, errEnd := parseClock(tw.End)
	if errStart != nil || errEnd != nil {
		c.logger.WarnwCtx(ctx, "Time window policy misconfigured, skipping",
			"rule_id", p.RuleID,
			"start", tw.Start,
			"end", tw.End,
		)
		return passed
	}

	now := c.now().In(c.location)

	if len(tw.Weekdays) > 0 && !slices.Contains(tw.Weekdays, models.ISOWeekday(now)) {
		return denied(InterceptorTimeWindow, "not allowed on %s", now.Weekday())
	}

	minute := now.Hour()*60 + now.Minute()
	var inside bool
	if start <= end {
		inside = minute >= start && minute <= end
	} else {
		inside = minute >= start || minute <= end
	}
	if !inside {
		return denied(InterceptorTimeWindow, "outside allowed hours %s-%s (now %s)", tw.Start, tw.End, now.Format("15:04"))
	}
	return passed
}

func (c *Chain) checkRole(ctx context.Context, p *Policy, event models.InboundEvent) Result {
	rp := p.Role
	if !rp.Enabled {
		return passed
	}
	if len(rp.AllowedRoles) == 0 {
		c.logger.WarnwCtx(ctx, "Role policy has no allowed roles, skipping",
			"rule_id", p.RuleID,
		)
		return passed
	}
	if c.roles == nil {
		return denied(InterceptorRole, "role lookup unavailable")
	}

	role, err := c.roles.GetRole(ctx, event.ConversationID, event.SenderID)
	if err != nil {
		c.logger.WarnwCtx(ctx, "Role lookup failed",
			"rule_id", p.RuleID,
			"error", err,
		)
		return denied(InterceptorRole, "role lookup failed")
	}
	if !slices.Contains(rp.AllowedRoles, role) {
		return denied(InterceptorRole, "role %q not allowed", role)
	}
	return passed
}

func (c *Chain) checkCooldown(ctx context.Context, p *Policy, subject string) Result {
	cd := p.Cooldown
	if !cd.Enabled {
		return passed
	}
	if cd.Seconds <= 0 || c.store == nil {
		c.logger.WarnwCtx(ctx, "Cooldown policy misconfigured, skipping",
			"rule_id", p.RuleID,
			"seconds", cd.Seconds,
		)
		return passed
	}

	key := constants.KeyPrefixCooldown + subjectKey(p, subject)
	wasAbsent, remaining, err := c.store.SetIfAbsentWithTTL(ctx, key, time.Duration(cd.Seconds)*time.Second)
	if err != nil {
		metrics.FallbackUsageTotal.WithLabelValues("cooldown", "allow_on_error", "store_error").Inc()
		c.logger.WarnwCtx(ctx, "Cooldown store unavailable, admitting request",
			"key", key,
			"error", err,
		)
		return passed
	}
	if !wasAbsent {
		secs := int(math.Ceil(remaining.Seconds()))
		if secs < 1 {
			secs = 1
		}
		return denied(InterceptorCooldown, "cooldown active, %ds remaining", secs)
	}
	return passed
}
