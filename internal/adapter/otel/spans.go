package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "ticketslack"

// StartDispatchSpan starts a span covering one notification dispatch.
func StartDispatchSpan(ctx context.Context, dispatchID, signal string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "dispatch",
		trace.WithAttributes(
			attribute.String("dispatch.id", dispatchID),
			attribute.String("event.signal", signal),
		),
	)
}

// StartDeliverySpan starts a span for the webhook POST of a dispatch.
func StartDeliverySpan(ctx context.Context, ticketID int64, kind string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "delivery",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int64("ticket.id", ticketID),
			attribute.String("notify.kind", kind),
		),
	)
}
