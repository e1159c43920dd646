package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Attribute keys set on step spans.
const (
	AttrStepName = attribute.Key("crankstep.step")
	AttrUserType = attribute.Key("crankstep.user_type")
	AttrUserID   = attribute.Key("crankstep.user_id")
)

// StartStepSpan starts an internal span covering one step of a virtual user.
// A nil tracer yields a no-op span.
func StartStepSpan(ctx context.Context, tracer trace.Tracer, userType, userID, step string) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(instrumentationName)
	}
	ctx, span := tracer.Start(ctx, "step "+step,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(AttrStepName.String(step))
	if userType != "" {
		span.SetAttributes(AttrUserType.String(userType))
	}
	if userID != "" {
		span.SetAttributes(AttrUserID.String(userID))
	}
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
