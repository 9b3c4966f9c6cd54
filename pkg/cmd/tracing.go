package cmd

import (
	"context"
	"log/slog"

	"github.com/dukex/signoff/pkg/otelhelper"
	"go.opentelemetry.io/otel/trace"
)

// NewTracer exports spans over OTLP/HTTP when enabled and otherwise returns a
// no-op tracer. The shutdown func is never nil.
//
// nolint:ireturn
func NewTracer(ctx context.Context, enabled bool, serviceName string, logger *slog.Logger) (trace.Tracer, otelhelper.ShutdownFunc) {
	noShutdown := func(context.Context) error { return nil }

	if !enabled {
		return otelhelper.NoopTracer(), noShutdown
	}

	tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		logger.WarnContext(ctx, "tracing disabled", "error", err)

		return otelhelper.NoopTracer(), noShutdown
	}

	return tracer, shutdown
}
