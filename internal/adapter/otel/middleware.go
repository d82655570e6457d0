package otel

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Strob0t/agentgraph/internal/middleware"
)

// HTTPOperation is the otelhttp operation name of every API request span.
const HTTPOperation = "agentgraph.http"

// HTTPMiddleware traces API requests. Spans are named "METHOD path" and
// carry the caller's tenant; /health is not traced. Options are passed
// through to otelhttp, tests use them to supply a tracer provider.
func HTTPMiddleware(opts ...otelhttp.Option) func(http.Handler) http.Handler {
	opts = append([]otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	}, opts...)
	return func(next http.Handler) http.Handler {
		tagged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tenant := r.Header.Get(middleware.HeaderTenantID); tenant != "" {
				trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("tenant.id", tenant))
			}
			next.ServeHTTP(w, r)
		})
		return otelhttp.NewHandler(tagged, HTTPOperation, opts...)
	}
}
