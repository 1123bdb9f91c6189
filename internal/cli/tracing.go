package cli

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// tracing owns the tracer provider installed for the command run.
type tracing struct {
	provider *sdktrace.TracerProvider
}

// Start installs a global tracer provider exporting to endpoint. An empty
// endpoint leaves the no-op provider in place.
func (t *tracing) Start(ctx context.Context, endpoint string) error {
	if endpoint == "" {
		return nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return fmt.Errorf("create otlp exporter: %w", err)
	}

	t.provider = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(t.provider)

	slog.DebugContext(ctx, "exporting traces", slog.String("endpoint", endpoint))

	return nil
}

// Shutdown flushes and stops the provider, if one was started.
func (t *tracing) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}

	err := t.provider.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}

	return nil
}
