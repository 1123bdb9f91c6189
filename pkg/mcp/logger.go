package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/rulelimits/pkg/log"
)

// TracedToolHandler is an [mcp.ToolHandlerFor] whose context carries a span
// and a per-call logger.
type TracedToolHandler[In, Out any] func(
	context.Context,
	*mcp.ServerSession,
	*mcp.CallToolParamsFor[In],
) (*mcp.CallToolResultFor[Out], error)

// WithTracing runs handler inside a span named after the tool. The logger
// stored in the handler's context is tagged with the tool name and trace IDs.
func WithTracing[In, Out any](
	tracer trace.Tracer,
	handler TracedToolHandler[In, Out],
) mcp.ToolHandlerFor[In, Out] {
	return func(
		ctx context.Context,
		session *mcp.ServerSession,
		params *mcp.CallToolParamsFor[In],
	) (*mcp.CallToolResultFor[Out], error) {
		tool := params.Name

		ctx, span := tracer.Start(ctx, "tool "+tool,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", tool)),
		)
		defer span.End()

		logger := log.WithContext(ctx).With(slog.String("tool", tool))
		ctx = log.NewContext(ctx, logger)

		logger.DebugContext(ctx, "tool call",
			slog.Any("progress_token", params.GetProgressToken()),
			slog.Any("args", params.Arguments),
		)

		start := time.Now()
		result, err := handler(ctx, session, params)
		took := time.Since(start)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.ErrorContext(ctx, "tool call failed",
				slog.Duration("took", took),
				slog.Any("err", err),
			)

			return result, err
		}

		logger.DebugContext(ctx, "tool call done", slog.Duration("took", took))

		return result, nil
	}
}
