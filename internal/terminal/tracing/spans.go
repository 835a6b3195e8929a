package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const terminalTracerName = "minied-terminal"

func terminalTracer() trace.Tracer {
	return Tracer(terminalTracerName)
}

// TraceSession starts the span covering one terminal session.
// Caller must call span.End() when the session is closed.
func TraceSession(ctx context.Context, sessionID, transportKind string) (context.Context, trace.Span) {
	ctx, span := terminalTracer().Start(ctx, "terminal.session",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(
		attribute.String("session_id", sessionID),
		attribute.String("transport", transportKind),
	)
	return ctx, span
}

// TraceTransportCreate starts a span for transport allocation.
func TraceTransportCreate(ctx context.Context, transportKind string, cols, rows uint16) (context.Context, trace.Span) {
	ctx, span := terminalTracer().Start(ctx, "terminal.transport.create")
	span.SetAttributes(
		attribute.String("transport", transportKind),
		attribute.Int("cols", int(cols)),
		attribute.Int("rows", int(rows)),
	)
	return ctx, span
}

// TraceSpawn starts a span for spawning the shell.
func TraceSpawn(ctx context.Context, shell, dir string) (context.Context, trace.Span) {
	ctx, span := terminalTracer().Start(ctx, "terminal.spawn")
	span.SetAttributes(
		attribute.String("shell", shell),
		attribute.String("cwd", dir),
	)
	return ctx, span
}

// Finish records err on the span, if any, and ends it.
func Finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
