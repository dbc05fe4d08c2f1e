package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrPluginName   = "plugin.name"
	AttrPluginType   = "plugin.type"
	AttrManifestPath = "manifest.path"
	AttrChord        = "input.chord"
	AttrAction       = "input.action"
	AttrDispatchID   = "input.dispatch_id"
	AttrRenderers    = "dashboard.renderers"
	AttrErrorMessage = "error.message"
)

// Span names.
const (
	SpanDiscover = "manifest.discover"
	SpanParse    = "manifest.parse"
	SpanLoad     = "plugin.load"
	SpanDispatch = "input.dispatch"
	SpanFrame    = "dashboard.frame"
)

// Start opens an internal span. A nil tracer is treated as a no-op tracer.
func Start(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// Finish records err on span, if any, and ends it.
func Finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
