package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	agotel "github.com/Strob0t/agentgraph/internal/adapter/otel"
	"github.com/Strob0t/agentgraph/internal/domain"
	"github.com/Strob0t/agentgraph/internal/domain/agentgraph"
	"github.com/Strob0t/agentgraph/internal/domain/component"
	"github.com/Strob0t/agentgraph/internal/domain/contextconfig"
	"github.com/Strob0t/agentgraph/internal/domain/modelcfg"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/domain/tool"
	"github.com/Strob0t/agentgraph/internal/port/database"
)

// ChangeNotifier is told about every committed definition write.
type ChangeNotifier func(ctx context.Context, sc scope.Scope, deleted bool)

// GraphService materializes graphs from their normalized rows and writes
// full graph definitions back.
type GraphService struct {
	store   database.Store
	metrics *agotel.Metrics
	now     func() time.Time
	notify  ChangeNotifier
}

// NewGraphService creates a GraphService. metrics may be nil.
func NewGraphService(store database.Store, metrics *agotel.Metrics) *GraphService {
	return &GraphService{store: store, metrics: metrics, now: time.Now}
}

// SetChangeNotifier attaches a hook run after each committed graph write.
func (s *GraphService) SetChangeNotifier(fn ChangeNotifier) {
	s.notify = fn
}

func (s *GraphService) repairer() repairer {
	return repairer{metrics: s.metrics, now: s.now}
}

// MaterializeGraph assembles the nested definition of sc.GraphID. It returns
// domain.ErrNotFound when the graph row does not exist.
func (s *GraphService) MaterializeGraph(ctx context.Context, sc scope.Scope) (def *agentgraph.FullGraphDefinition, err error) {
	if err := sc.Validate(scope.LevelGraph); err != nil {
		return nil, err
	}
	ctx, span := agotel.StartScopeSpan(ctx, "graph.materialize", sc)
	defer func() { agotel.EndSpan(span, err) }()
	start := time.Now()

	var projectModels *modelcfg.Models
	p, err := s.store.GetProject(ctx, sc.ProjectScope())
	switch {
	case err == nil:
		projectModels = p.Models
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("materialize graph %s: %w", sc, err)
	}

	def, err = s.materialize(ctx, s.store, sc, projectModels)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveMaterialize(ctx, time.Since(start).Seconds(), "graph")
	return def, nil
}

// graphRows is everything stored under one graph.
type graphRows struct {
	relations        []agentgraph.Relation
	subAgents        []agentgraph.SubAgent
	externals        []agentgraph.ExternalAgent
	toolBindings     []tool.AgentBinding
	dataBindings     []component.Binding
	artifactBindings []component.Binding
	contextConfig    *contextconfig.ContextConfig
}

// load fetches every child collection of g concurrently, one query per
// collection. st must not be a transaction.
func (s *GraphService) load(ctx context.Context, st database.Store, sc scope.Scope, g *agentgraph.Graph) (*graphRows, error) {
	var rows graphRows
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		rows.relations, err = st.ListRelations(ctx, sc)
		return err
	})
	eg.Go(func() (err error) {
		rows.subAgents, err = st.ListSubAgents(ctx, sc)
		return err
	})
	eg.Go(func() (err error) {
		rows.externals, err = st.ListExternalAgents(ctx, sc)
		return err
	})
	eg.Go(func() (err error) {
		rows.toolBindings, err = st.ListToolBindings(ctx, sc)
		return err
	})
	eg.Go(func() (err error) {
		rows.dataBindings, err = st.ListDataBindings(ctx, sc)
		return err
	})
	eg.Go(func() (err error) {
		rows.artifactBindings, err = st.ListArtifactBindings(ctx, sc)
		return err
	})
	if g.ContextConfigID != "" {
		eg.Go(func() error {
			cc, err := st.GetContextConfig(ctx, sc.ProjectScope(), g.ContextConfigID)
			if errors.Is(err, domain.ErrNotFound) {
				slog.Warn("graph context config not found", "graph_id", g.ID, "context_config_id", g.ContextConfigID)
				return nil
			}
			rows.contextConfig = cc
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("load graph %s: %w", sc, err)
	}
	return &rows, nil
}

func (s *GraphService) materialize(ctx context.Context, st database.Store, sc scope.Scope, projectModels *modelcfg.Models) (*agentgraph.FullGraphDefinition, error) {
	g, err := st.GetGraph(ctx, sc)
	if err != nil {
		return nil, err
	}
	rows, err := s.load(ctx, st, sc, g)
	if err != nil {
		return nil, err
	}
	return s.assemble(ctx, g, rows, projectModels), nil
}

// assemble builds the nested definition from loaded rows. Anything that
// points at a missing sub-agent is left out.
func (s *GraphService) assemble(ctx context.Context, g *agentgraph.Graph, rows *graphRows, projectModels *modelcfg.Models) *agentgraph.FullGraphDefinition {
	rep := s.repairer()
	rep.fix(ctx, "graph", g.ID, &g.CreatedAt, &g.UpdatedAt)

	agents := make(map[string]*agentgraph.SubAgentDefinition, len(rows.subAgents))
	for i := range rows.subAgents {
		a := &rows.subAgents[i]
		d := a.Definition()
		rep.fix(ctx, "sub_agent", a.ID, &d.CreatedAt, &d.UpdatedAt)
		agents[a.ID] = &d
	}

	externals := make(map[string]agentgraph.ExternalAgent, len(rows.externals))
	for _, e := range rows.externals {
		rep.fix(ctx, "external_agent", e.ID, &e.CreatedAt, &e.UpdatedAt)
		e.GraphID = ""
		externals[e.ID] = e
	}

	resolver := relationResolver{agents: agents, externals: externals, metrics: s.metrics}
	resolver.resolve(ctx, g.ID, rows.relations)

	for i := range rows.toolBindings {
		b := &rows.toolBindings[i]
		if a, ok := s.bindingSource(agents, g.ID, "tool", b.SubAgentID, b.ToolID); ok {
			a.CanUse = append(a.CanUse, agentgraph.ToolUseFromBinding(b))
		}
	}
	for _, b := range rows.dataBindings {
		if a, ok := s.bindingSource(agents, g.ID, "data_component", b.SubAgentID, b.ComponentID); ok {
			a.DataComponents = appendUnique(a.DataComponents, b.ComponentID)
		}
	}
	for _, b := range rows.artifactBindings {
		if a, ok := s.bindingSource(agents, g.ID, "artifact_component", b.SubAgentID, b.ComponentID); ok {
			a.ArtifactComponents = appendUnique(a.ArtifactComponents, b.ComponentID)
		}
	}

	def := &agentgraph.FullGraphDefinition{
		ID:                g.ID,
		Name:              g.Name,
		Description:       g.Description,
		DefaultSubAgentID: g.DefaultSubAgentID,
		SubAgents:         make(map[string]agentgraph.SubAgentDefinition, len(agents)),
		Models:            modelcfg.Inherit(g.Models, projectModels),
		StopWhen:          g.StopWhen,
		GraphPrompt:       g.GraphPrompt,
		CreatedAt:         g.CreatedAt,
		UpdatedAt:         g.UpdatedAt,
	}
	for id, a := range agents {
		def.SubAgents[id] = *a
	}
	if len(externals) > 0 {
		def.ExternalAgents = externals
	}
	if cc := rows.contextConfig; cc != nil {
		rep.fix(ctx, "context_config", cc.ID, &cc.CreatedAt, &cc.UpdatedAt)
		cc.GraphID = ""
		def.ContextConfig = cc
	}

	if g.DefaultSubAgentID != "" {
		if _, ok := agents[g.DefaultSubAgentID]; !ok {
			slog.Warn("graph default sub-agent does not resolve",
				"graph_id", g.ID, "default_sub_agent_id", g.DefaultSubAgentID)
			s.metrics.Add(ctx, agotel.DanglingDefaults, 1)
		}
	}
	return def
}

func (s *GraphService) bindingSource(agents map[string]*agentgraph.SubAgentDefinition, graphID, kind, subAgentID, refID string) (*agentgraph.SubAgentDefinition, bool) {
	a, ok := agents[subAgentID]
	if !ok {
		slog.Debug("dropping binding of missing sub-agent",
			"graph_id", graphID, "kind", kind, "sub_agent_id", subAgentID, "ref_id", refID)
	}
	return a, ok
}

func appendUnique(list []string, id string) []string {
	if slices.Contains(list, id) {
		return list
	}
	return append(list, id)
}
