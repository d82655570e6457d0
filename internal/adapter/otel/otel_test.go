package otel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Strob0t/agentgraph/internal/config"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/middleware"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.OTEL{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	m.Add(context.Background(), CacheHits, 1)
	m.ObserveMaterialize(context.Background(), 0.1, "graph")
}

func TestNewMetricsAgainstNoopProvider(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatal(err)
	}
	m.Add(context.Background(), TimestampRepairs, 2)
	m.ObserveMaterialize(context.Background(), 0.5, "project")
}

func TestScopeSpan(t *testing.T) {
	ctx, span := StartScopeSpan(context.Background(), "materialize", scope.Graph("t", "p", "g"))
	if ctx == nil || span == nil {
		t.Fatal("expected span")
	}
	EndSpan(span, errors.New("boom"))
}

func TestHTTPMiddleware(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	h := HTTPMiddleware(otelhttp.WithTracerProvider(tp))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		path     string
		wantSpan string
	}{
		{"/api/v1/projects/p1", "GET /api/v1/projects/p1"},
		{"/health", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			before := len(rec.Ended())
			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			req.Header.Set(middleware.HeaderTenantID, "tenant-1")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != http.StatusTeapot {
				t.Fatalf("expected 418, got %d", w.Code)
			}

			ended := rec.Ended()[before:]
			if tt.wantSpan == "" {
				if len(ended) != 0 {
					t.Fatalf("expected no span, got %d", len(ended))
				}
				return
			}
			if len(ended) != 1 {
				t.Fatalf("expected one span, got %d", len(ended))
			}
			span := ended[0]
			if span.Name() != tt.wantSpan {
				t.Errorf("span name = %q, want %q", span.Name(), tt.wantSpan)
			}
			var tenant string
			for _, kv := range span.Attributes() {
				if kv.Key == "tenant.id" {
					tenant = kv.Value.AsString()
				}
			}
			if tenant != "tenant-1" {
				t.Errorf("tenant.id = %q", tenant)
			}
		})
	}
}
