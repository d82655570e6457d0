package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Strob0t/agentgraph/internal/domain/scope"
)

const tracerName = "agentgraph"

// StartScopeSpan starts a span named op carrying the scope identifiers.
func StartScopeSpan(ctx context.Context, op string, sc scope.Scope) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("tenant.id", sc.TenantID),
		attribute.String("project.id", sc.ProjectID),
	}
	if sc.GraphID != "" {
		attrs = append(attrs, attribute.String("graph.id", sc.GraphID))
	}
	return otel.Tracer(tracerName).Start(ctx, op, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
