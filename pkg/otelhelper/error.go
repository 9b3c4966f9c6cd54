package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(
		attrs...,
	))
}

// SetTransition annotates span with a state machine move.
func SetTransition(span trace.Span, operation, from, to string) {
	span.SetAttributes(
		attribute.String(OperationKey, operation),
		attribute.String(FromStatusKey, from),
		attribute.String(ToStatusKey, to),
	)
}
