package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan starts a span on the global tracer provider. Without an
// installed provider the span is a no-op.
//
//	ctx, span := telemetry.StartSpan(ctx, "campusreg/services/claim", "claim.ClaimRole",
//	    attribute.String(telemetry.AttrClaimRole, role),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records err on the span and marks the span as failed.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds a named business event to the span.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Attribute keys
const (
	AttrApplicantID  = "applicant.id"
	AttrClaimRole    = "claim.role"
	AttrClaimOutcome = "claim.outcome"
	AttrSignInResult = "signin.result"
)
