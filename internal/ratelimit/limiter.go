package ratelimit

import (
	"context"
	"strings"
	"time"

	"replybot/internal/constants"
	"replybot/internal/logger"
	"replybot/internal/store"
	apperrors "replybot/pkg/errors"
	"replybot/pkg/metrics"
)

// Limiter is a distributed sliding-window limiter over a shared store.
// Keys are namespaced by prefix; the same Limiter may be asked to enforce
// a per-call limit through Admit.
type Limiter struct {
	store    store.AtomicStore
	name     string
	prefix   string
	window   time.Duration
	max      int
	fallback string
	logger   logger.Logger
}

type Option func(*Limiter)

// WithFallback selects the decision taken when the store fails:
// constants.FallbackAllow (default) or constants.FallbackDeny.
func WithFallback(fallback string) Option {
	return func(l *Limiter) {
		if fallback != "" {
			l.fallback = strings.ToLower(fallback)
		}
	}
}

func NewLimiter(s store.AtomicStore, name, prefix string, window time.Duration, max int, log logger.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		store:    s,
		name:     name,
		prefix:   prefix,
		window:   window,
		max:      max,
		fallback: constants.FallbackAllow,
		logger:   log,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Key(subject string) string {
	return l.prefix + subject
}

func (l *Limiter) Window() time.Duration { return l.window }

func (l *Limiter) Max() int { return l.max }

// TryAcquire admits subject against the limiter's own window and maximum.
func (l *Limiter) TryAcquire(ctx context.Context, subject string) bool {
	return l.Admit(ctx, subject, l.window, l.max)
}

// Admit records one request for subject if fewer than max were admitted in
// the trailing window. Store failures resolve to the configured fallback.
func (l *Limiter) Admit(ctx context.Context, subject string, window time.Duration, max int) bool {
	key := l.Key(subject)

	admitted, err := l.store.SlidingWindowAdmit(ctx, key, window, max)
	if err != nil {
		return l.onStoreError(ctx, key, err)
	}

	metrics.IncRateLimitDecision(l.name, admitted)
	if !admitted {
		l.logger.DebugwCtx(ctx, "Rate limit exceeded",
			"limiter", l.name,
			"key", key,
			"max_requests", max,
			"window", window,
		)
	}
	return admitted
}

func (l *Limiter) onStoreError(ctx context.Context, key string, err error) bool {
	reason := "store_error"
	if apperrors.IsUnavailable(err) {
		// the circuit breaker is open; the store was not contacted
		reason = "store_unavailable"
	}

	if l.fallback == constants.FallbackDeny {
		metrics.FallbackUsageTotal.WithLabelValues(l.name, "deny_on_error", reason).Inc()
		l.logger.WarnwCtx(ctx, "Rate limit store unavailable, denying request (fallback: deny)",
			"limiter", l.name,
			"key", key,
			"reason", reason,
			"error", err,
		)
		return false
	}

	metrics.FallbackUsageTotal.WithLabelValues(l.name, "allow_on_error", reason).Inc()
	l.logger.WarnwCtx(ctx, "Rate limit store unavailable, admitting request (fallback: allow)",
		"limiter", l.name,
		"key", key,
		"reason", reason,
		"error", err,
	)
	return true
}

// Reset forgets every admission recorded for subject.
func (l *Limiter) Reset(ctx context.Context, subject string) error {
	return l.store.Delete(ctx, l.Key(subject))
}

// CurrentCount returns the admissions still inside the window for subject.
func (l *Limiter) CurrentCount(ctx context.Context, subject string) (int64, error) {
	return l.store.WindowCount(ctx, l.Key(subject), l.window)
}
