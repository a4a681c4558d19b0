package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by prepare spans
const (
	AttrEntityRef   = attribute.Key("entity.ref")
	AttrProtocol    = attribute.Key("preparer.protocol")
	AttrTarget      = attribute.Key("preparer.target")
	AttrOutputDir   = attribute.Key("preparer.output_dir")
	AttrEtag        = attribute.Key("preparer.etag")
	AttrNotModified = attribute.Key("preparer.not_modified")
	AttrRunID       = attribute.Key("run.id")
)

// StartSpan starts a span on tracer, or returns the span already in ctx
// when tracer is nil
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks the span as failed.
// The status description stays generic; details live in the span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
