package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	agotel "github.com/Strob0t/agentgraph/internal/adapter/otel"
	"github.com/Strob0t/agentgraph/internal/domain/agentgraph"
)

// relationResolver turns relation rows into adjacency lists. It only reads
// the sub-agents and external agents it is given; it never touches storage
// and never deletes the rows it drops.
type relationResolver struct {
	agents    map[string]*agentgraph.SubAgentDefinition
	externals map[string]agentgraph.ExternalAgent
	metrics   *agotel.Metrics
}

// resolve appends every relation target to its source's adjacency list and
// returns how many relations were dropped. A relation is dropped when its
// source sub-agent, internal target or external agent does not exist.
func (r *relationResolver) resolve(ctx context.Context, graphID string, rels []agentgraph.Relation) int {
	seen := make(map[agentgraph.RelationKey]bool, len(rels))
	dropped := 0
	for i := range rels {
		rel := &rels[i]
		if !r.resolvable(rel) {
			dropped++
			slog.Debug("dropping dangling relation",
				"graph_id", graphID,
				"relation_id", rel.ID,
				"source", rel.SourceSubAgentID,
				"kind", rel.Kind().String(),
			)
			r.metrics.Add(ctx, agotel.DanglingRelations, 1, attribute.String("kind", rel.Kind().String()))
			continue
		}
		k := rel.Key()
		if seen[k] {
			continue
		}
		seen[k] = true

		src := r.agents[rel.SourceSubAgentID]
		target := rel.Target.TargetID()
		switch rel.Kind() {
		case agentgraph.KindInternalTransfer, agentgraph.KindExternalTransfer:
			src.CanTransferTo = append(src.CanTransferTo, target)
		case agentgraph.KindInternalDelegate, agentgraph.KindExternalDelegate:
			src.CanDelegateTo = append(src.CanDelegateTo, target)
		}
	}
	return dropped
}

func (r *relationResolver) resolvable(rel *agentgraph.Relation) bool {
	if rel.Target == nil {
		return false
	}
	if _, ok := r.agents[rel.SourceSubAgentID]; !ok {
		return false
	}
	switch t := rel.Target.(type) {
	case agentgraph.InternalTarget:
		_, ok := r.agents[t.SubAgentID]
		return ok
	case agentgraph.ExternalTarget:
		_, ok := r.externals[t.ExternalAgentID]
		return ok
	}
	return false
}
