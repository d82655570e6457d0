package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "agentgraph"

// Metrics holds the agentgraph metric instruments. A nil *Metrics records
// nothing, so components may run without telemetry.
type Metrics struct {
	CacheHits           metric.Int64Counter
	CacheMisses         metric.Int64Counter
	CacheErrors         metric.Int64Counter
	TimestampRepairs    metric.Int64Counter
	DanglingRelations   metric.Int64Counter
	DanglingDefaults    metric.Int64Counter
	IntegrityRefusals   metric.Int64Counter
	MaterializeDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.CacheHits, "agentgraph.cache.hits", "Cache lookups that returned an entry"},
		{&m.CacheMisses, "agentgraph.cache.misses", "Cache lookups that returned nothing"},
		{&m.CacheErrors, "agentgraph.cache.errors", "Cache store errors swallowed as misses"},
		{&m.TimestampRepairs, "agentgraph.timestamp.repairs", "Unparseable stored timestamps replaced by now"},
		{&m.DanglingRelations, "agentgraph.relations.dangling", "Relations dropped because their target is missing"},
		{&m.DanglingDefaults, "agentgraph.graphs.dangling_default", "Graphs whose default sub-agent does not resolve"},
		{&m.IntegrityRefusals, "agentgraph.projects.delete_refused", "Project deletes refused by the integrity guard"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
	}

	m.MaterializeDuration, err = meter.Float64Histogram("agentgraph.materialize.duration_seconds",
		metric.WithDescription("Graph and project materialization duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Add increments counter by n with the given attributes. It is a no-op on a nil receiver.
func (m *Metrics) Add(ctx context.Context, pick func(*Metrics) metric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	pick(m).Add(ctx, n, metric.WithAttributes(attrs...))
}

// ObserveMaterialize records a materialization duration.
func (m *Metrics) ObserveMaterialize(ctx context.Context, seconds float64, kind string) {
	if m == nil {
		return
	}
	m.MaterializeDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("kind", kind)))
}

// Counter selectors for Add.
func CacheHits(m *Metrics) metric.Int64Counter         { return m.CacheHits }
func CacheMisses(m *Metrics) metric.Int64Counter       { return m.CacheMisses }
func CacheErrors(m *Metrics) metric.Int64Counter       { return m.CacheErrors }
func TimestampRepairs(m *Metrics) metric.Int64Counter  { return m.TimestampRepairs }
func DanglingRelations(m *Metrics) metric.Int64Counter { return m.DanglingRelations }
func DanglingDefaults(m *Metrics) metric.Int64Counter  { return m.DanglingDefaults }
func IntegrityRefusals(m *Metrics) metric.Int64Counter { return m.IntegrityRefusals }
