package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/herald"

// Tracer provides OpenTelemetry tracing for Herald.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Herald tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartWebhookSpan starts a span covering one webhook delivery.
func (t *Tracer) StartWebhookSpan(ctx context.Context, bodyBytes int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "herald.webhook",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.Int("herald.body_bytes", bodyBytes)),
	)
}

// StartProcessSpan starts a span for one inbound event.
func (t *Tracer) StartProcessSpan(ctx context.Context, kind, eventID, recipientID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "herald.process",
		trace.WithAttributes(
			attribute.String("herald.event_kind", kind),
			attribute.String("herald.event_id", eventID),
			attribute.String("herald.recipient_account_id", recipientID),
		),
	)
}

// StartMatchSpan starts a span for rule selection.
func (t *Tracer) StartMatchSpan(ctx context.Context, candidates int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "herald.match",
		trace.WithAttributes(attribute.Int("herald.candidate_rules", candidates)),
	)
}

// StartRespondSpan starts a span for executing one rule's action.
func (t *Tracer) StartRespondSpan(ctx context.Context, automationID, actorID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "herald.respond",
		trace.WithAttributes(
			attribute.String("herald.automation_id", automationID),
			attribute.String("herald.actor_id", actorID),
		),
	)
}

// StartSendSpan starts a span for one outbound messaging call.
func (t *Tracer) StartSendSpan(ctx context.Context, action string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "herald.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("herald.action", action)),
	)
}

// EndSpan ends span with an outcome attribute and records err, if any.
func (t *Tracer) EndSpan(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String("herald.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
