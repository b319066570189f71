package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"replybot/pkg/models"
)

const routerTracerName = "replybot-router"

// StartRoutingSpan opens the root span for one inbound event's pipeline.
func StartRoutingSpan(ctx context.Context, event models.InboundEvent) (context.Context, trace.Span) {
	return GetTracer(routerTracerName).Start(ctx, "router.route",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("chat.conversation_id", event.ConversationID),
			attribute.String("chat.sender_id", event.SenderID),
			attribute.String("chat.message_id", event.MessageID),
		),
	)
}

// EndRoutingSpan records the outcome on span and ends it.
func EndRoutingSpan(span trace.Span, outcome *models.RoutingOutcome) {
	span.SetAttributes(
		attribute.String("routing.status", string(outcome.Status)),
		attribute.String("routing.rule_id", outcome.MatchedRuleID),
	)
	if outcome.SkipReason != "" {
		span.SetAttributes(attribute.String("routing.skip_reason", outcome.SkipReason))
	}
	if outcome.Status == models.OutcomeSendFailed {
		span.SetStatus(codes.Error, "reply send failed")
	}
	span.End()
}

// TraceID returns the hex trace id of the span in ctx, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
