package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"golang.org/x/sync/errgroup"

	agotel "github.com/Strob0t/agentgraph/internal/adapter/otel"
	"github.com/Strob0t/agentgraph/internal/domain"
	"github.com/Strob0t/agentgraph/internal/domain/agentgraph"
	"github.com/Strob0t/agentgraph/internal/domain/component"
	"github.com/Strob0t/agentgraph/internal/domain/contextconfig"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/domain/tool"
	"github.com/Strob0t/agentgraph/internal/port/database"
)

// UpsertFullGraph makes storage match def for one graph of the project in
// sc. Tool and component references are checked against the project's
// stored tools and components before anything is written.
func (s *GraphService) UpsertFullGraph(ctx context.Context, sc scope.Scope, def *agentgraph.FullGraphDefinition) (out *agentgraph.FullGraphDefinition, err error) {
	if err := sc.Validate(scope.LevelProject); err != nil {
		return nil, err
	}
	if def == nil {
		return nil, fmt.Errorf("%w: graph definition is required", domain.ErrValidation)
	}
	switch {
	case def.ID == "":
		def.ID = sc.GraphID
	case sc.GraphID != "" && def.ID != sc.GraphID:
		return nil, fmt.Errorf("%w: graph id %q does not match %q", domain.ErrValidation, def.ID, sc.GraphID)
	}
	sc = sc.WithGraph(def.ID)

	ctx, span := agotel.StartScopeSpan(ctx, "graph.upsert", sc)
	defer func() { agotel.EndSpan(span, err) }()

	refs, err := s.projectReferences(ctx, sc.ProjectScope())
	if err != nil {
		return nil, err
	}
	if err := def.Validate(refs); err != nil {
		return nil, err
	}

	rows := def.Rows(sc.ProjectID)
	if err := s.store.InTx(ctx, func(tx database.Store) error {
		if err := checkConfigOwner(ctx, tx, sc, rows.ContextConfig); err != nil {
			return err
		}
		stale, err := s.writeGraph(ctx, tx, sc, &rows)
		if err != nil {
			return err
		}
		return dropUnclaimedConfigs(ctx, tx, sc.ProjectScope(), stale)
	}); err != nil {
		return nil, fmt.Errorf("upsert graph %s: %w", sc, err)
	}
	s.changed(ctx, sc)
	return s.MaterializeGraph(ctx, sc)
}

// DeleteFullGraph removes the graph and every row under it, children first.
func (s *GraphService) DeleteFullGraph(ctx context.Context, sc scope.Scope) (err error) {
	if err := sc.Validate(scope.LevelGraph); err != nil {
		return err
	}
	ctx, span := agotel.StartScopeSpan(ctx, "graph.delete", sc)
	defer func() { agotel.EndSpan(span, err) }()

	if err := s.store.InTx(ctx, func(tx database.Store) error {
		return s.deleteGraph(ctx, tx, sc)
	}); err != nil {
		return fmt.Errorf("delete graph %s: %w", sc, err)
	}
	s.changed(ctx, sc)
	return nil
}

func (s *GraphService) changed(ctx context.Context, sc scope.Scope) {
	if s.notify != nil {
		s.notify(ctx, sc, false)
	}
}

// projectReferences collects the ids of the tools and components stored for
// the project in sc.
func (s *GraphService) projectReferences(ctx context.Context, sc scope.Scope) (agentgraph.References, error) {
	var (
		tools     database.Page[tool.Tool]
		data      database.Page[component.DataComponent]
		artifacts database.Page[component.ArtifactComponent]
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		tools, err = s.store.ListTools(gctx, sc, database.ListOptions{})
		return err
	})
	eg.Go(func() (err error) {
		data, err = s.store.ListDataComponents(gctx, sc, database.ListOptions{})
		return err
	})
	eg.Go(func() (err error) {
		artifacts, err = s.store.ListArtifactComponents(gctx, sc, database.ListOptions{})
		return err
	})
	if err := eg.Wait(); err != nil {
		return agentgraph.References{}, fmt.Errorf("load project references %s: %w", sc, err)
	}

	refs := agentgraph.References{
		Tools:              make(map[string]bool, len(tools.Items)),
		DataComponents:     make(map[string]bool, len(data.Items)),
		ArtifactComponents: make(map[string]bool, len(artifacts.Items)),
	}
	for _, t := range tools.Items {
		refs.Tools[t.ID] = true
	}
	for _, c := range data.Items {
		refs.DataComponents[c.ID] = true
	}
	for _, c := range artifacts.Items {
		refs.ArtifactComponents[c.ID] = true
	}
	return refs, nil
}

// checkConfigOwner rejects a context config that another stored graph of
// the project already owns.
func checkConfigOwner(ctx context.Context, tx database.Store, sc scope.Scope, cc *contextconfig.ContextConfig) error {
	if cc == nil {
		return nil
	}
	graphs, err := tx.ListGraphs(ctx, sc.ProjectScope(), database.ListOptions{})
	if err != nil {
		return fmt.Errorf("list graphs: %w", err)
	}
	for _, g := range graphs.Items {
		if g.ID != sc.GraphID && g.ContextConfigID == cc.ID {
			return fmt.Errorf("%w: context config %q is attached to graph %q", domain.ErrValidation, cc.ID, g.ID)
		}
	}
	return nil
}

// writeGraph reconciles one graph inside tx. Parents are written before
// children; stale children are removed before the parents they hang off.
// The context config the graph let go of is returned, not deleted: another
// graph of the same write may have claimed it.
func (s *GraphService) writeGraph(ctx context.Context, tx database.Store, sc scope.Scope, rows *agentgraph.Rows) (staleConfig string, err error) {
	oldConfigID, err := s.writeGraphRow(ctx, tx, sc, rows.Graph)
	if err != nil {
		return "", err
	}
	if err := s.writeContextConfig(ctx, tx, sc, rows.ContextConfig); err != nil {
		return "", err
	}
	if oldConfigID != "" && (rows.ContextConfig == nil || rows.ContextConfig.ID != oldConfigID) {
		staleConfig = oldConfigID
	}
	return staleConfig, s.writeChildren(ctx, tx, sc, rows)
}

func (s *GraphService) writeChildren(ctx context.Context, tx database.Store, sc scope.Scope, rows *agentgraph.Rows) error {

	storedAgents, err := tx.ListSubAgents(ctx, sc)
	if err != nil {
		return fmt.Errorf("list sub-agents: %w", err)
	}
	newAgents, patchAgents, staleAgents := diff(storedAgents, rows.SubAgents, func(a *agentgraph.SubAgent) string { return a.ID })
	for _, a := range newAgents {
		if err := tx.CreateSubAgent(ctx, sc.WithSubAgent(a.ID), &a); err != nil {
			return fmt.Errorf("create sub-agent %s: %w", a.ID, err)
		}
	}
	for _, c := range patchAgents {
		if unchanged(c.old, c.new, stripSubAgent) {
			continue
		}
		if err := tx.UpdateSubAgent(ctx, sc.WithSubAgent(c.new.ID), &c.new); err != nil {
			return fmt.Errorf("update sub-agent %s: %w", c.new.ID, err)
		}
	}

	storedExternals, err := tx.ListExternalAgents(ctx, sc)
	if err != nil {
		return fmt.Errorf("list external agents: %w", err)
	}
	newExternals, patchExternals, staleExternals := diff(storedExternals, rows.ExternalAgents, func(e *agentgraph.ExternalAgent) string { return e.ID })
	for _, e := range newExternals {
		if err := tx.CreateExternalAgent(ctx, sc, &e); err != nil {
			return fmt.Errorf("create external agent %s: %w", e.ID, err)
		}
	}
	for _, c := range patchExternals {
		if unchanged(c.old, c.new, stripExternal) {
			continue
		}
		if err := tx.UpdateExternalAgent(ctx, sc, &c.new); err != nil {
			return fmt.Errorf("update external agent %s: %w", c.new.ID, err)
		}
	}

	if err := s.writeRelations(ctx, tx, sc, rows.Relations); err != nil {
		return err
	}
	if err := s.writeToolBindings(ctx, tx, sc, rows.ToolBindings); err != nil {
		return err
	}
	if err := writeComponentBindings(ctx, sc, "data", rows.DataBindings,
		tx.ListDataBindings, tx.CreateDataBinding, tx.DeleteDataBinding); err != nil {
		return err
	}
	if err := writeComponentBindings(ctx, sc, "artifact", rows.ArtifactBindings,
		tx.ListArtifactBindings, tx.CreateArtifactBinding, tx.DeleteArtifactBinding); err != nil {
		return err
	}

	for _, a := range staleAgents {
		if err := tx.DeleteSubAgent(ctx, sc.WithSubAgent(a.ID)); err != nil {
			return fmt.Errorf("delete sub-agent %s: %w", a.ID, err)
		}
	}
	for _, e := range staleExternals {
		if err := tx.DeleteExternalAgent(ctx, sc, e.ID); err != nil {
			return fmt.Errorf("delete external agent %s: %w", e.ID, err)
		}
	}
	return nil
}

// writeGraphRow creates or patches the graph row and returns the context
// config id it pointed at before.
func (s *GraphService) writeGraphRow(ctx context.Context, tx database.Store, sc scope.Scope, g agentgraph.Graph) (string, error) {
	existing, err := tx.GetGraph(ctx, sc)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if err := tx.CreateGraph(ctx, sc, &g); err != nil {
			return "", fmt.Errorf("create graph %s: %w", g.ID, err)
		}
		return "", nil
	case err != nil:
		return "", fmt.Errorf("get graph %s: %w", g.ID, err)
	}
	if !unchanged(*existing, g, stripGraph) {
		if err := tx.UpdateGraph(ctx, sc, &g); err != nil {
			return "", fmt.Errorf("update graph %s: %w", g.ID, err)
		}
	}
	return existing.ContextConfigID, nil
}

func (s *GraphService) writeContextConfig(ctx context.Context, tx database.Store, sc scope.Scope, cc *contextconfig.ContextConfig) error {
	if cc == nil {
		return nil
	}
	psc := sc.ProjectScope()
	c := *cc
	_, err := tx.GetContextConfig(ctx, psc, c.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		err = tx.CreateContextConfig(ctx, psc, &c)
	case err == nil:
		err = tx.UpdateContextConfig(ctx, psc, &c)
	}
	if err != nil {
		return fmt.Errorf("write context config %s: %w", c.ID, err)
	}
	return nil
}

// dropUnclaimedConfigs deletes the listed context configs that no stored
// graph of the project points at any more. Call it after every graph of the
// write is in place.
func dropUnclaimedConfigs(ctx context.Context, tx database.Store, sc scope.Scope, ids ...string) error {
	var candidates []string
	for _, id := range ids {
		if id != "" && !slices.Contains(candidates, id) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	graphs, err := tx.ListGraphs(ctx, sc, database.ListOptions{})
	if err != nil {
		return fmt.Errorf("list graphs: %w", err)
	}
	claimed := make(map[string]bool, len(graphs.Items))
	for _, g := range graphs.Items {
		claimed[g.ContextConfigID] = true
	}
	for _, id := range candidates {
		if claimed[id] {
			continue
		}
		if err := dropContextConfig(ctx, tx, sc, id); err != nil {
			return err
		}
	}
	return nil
}

// dropContextConfig deletes a context config and the cache entries fetched
// through it. A config that is already gone is not an error.
func dropContextConfig(ctx context.Context, tx database.Store, sc scope.Scope, id string) error {
	if err := tx.DeleteContextConfig(ctx, sc, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete context config %s: %w", id, err)
	}
	if _, err := tx.DeleteContextCacheByContextConfig(ctx, sc, id); err != nil {
		return fmt.Errorf("clear context cache for %s: %w", id, err)
	}
	return nil
}

func (s *GraphService) writeRelations(ctx context.Context, tx database.Store, sc scope.Scope, incoming []agentgraph.Relation) error {
	stored, err := tx.ListRelations(ctx, sc)
	if err != nil {
		return fmt.Errorf("list relations: %w", err)
	}
	create, _, remove := diff(stored, incoming, func(r *agentgraph.Relation) agentgraph.RelationKey { return r.Key() })
	for _, r := range remove {
		if err := tx.DeleteRelation(ctx, sc, r.ID); err != nil {
			return fmt.Errorf("delete relation %s: %w", r.ID, err)
		}
	}
	for _, r := range create {
		if err := tx.CreateRelation(ctx, sc, &r); err != nil {
			return fmt.Errorf("create relation %s->%s: %w", r.SourceSubAgentID, r.Target.TargetID(), err)
		}
	}
	return nil
}

func (s *GraphService) writeToolBindings(ctx context.Context, tx database.Store, sc scope.Scope, incoming []tool.AgentBinding) error {
	stored, err := tx.ListToolBindings(ctx, sc)
	if err != nil {
		return fmt.Errorf("list tool bindings: %w", err)
	}
	create, patch, remove := diff(stored, incoming, agentgraph.ToolBindingKey)
	for _, b := range remove {
		if err := tx.DeleteToolBinding(ctx, sc, b.ID); err != nil {
			return fmt.Errorf("delete tool binding %s: %w", b.ID, err)
		}
	}
	for _, b := range create {
		if err := tx.CreateToolBinding(ctx, sc, &b); err != nil {
			return fmt.Errorf("create tool binding %s/%s: %w", b.SubAgentID, b.ToolID, err)
		}
	}
	for _, c := range patch {
		if sameSelection(c.old.SelectedTools, c.new.SelectedTools) && sameHeaders(c.old.Headers, c.new.Headers) {
			continue
		}
		b := c.new
		b.ID = c.old.ID
		if err := tx.UpdateToolBinding(ctx, sc, &b); err != nil {
			return fmt.Errorf("update tool binding %s: %w", b.ID, err)
		}
	}
	return nil
}

func writeComponentBindings(
	ctx context.Context,
	sc scope.Scope,
	kind string,
	incoming []component.Binding,
	list func(context.Context, scope.Scope) ([]component.Binding, error),
	create func(context.Context, scope.Scope, *component.Binding) error,
	remove func(context.Context, scope.Scope, string) error,
) error {
	stored, err := list(ctx, sc)
	if err != nil {
		return fmt.Errorf("list %s bindings: %w", kind, err)
	}
	toCreate, _, toRemove := diff(stored, incoming, agentgraph.ComponentBindingKey)
	for _, b := range toRemove {
		if err := remove(ctx, sc, b.ID); err != nil {
			return fmt.Errorf("delete %s binding %s: %w", kind, b.ID, err)
		}
	}
	for _, b := range toCreate {
		if err := create(ctx, sc, &b); err != nil {
			return fmt.Errorf("create %s binding %s/%s: %w", kind, b.SubAgentID, b.ComponentID, err)
		}
	}
	return nil
}

// deleteGraph removes every row of the graph in sc inside tx, children
// first, then its context config unless another graph owns it. It returns
// domain.ErrNotFound when the graph does not exist.
func (s *GraphService) deleteGraph(ctx context.Context, tx database.Store, sc scope.Scope) error {
	configID, err := s.removeGraph(ctx, tx, sc)
	if err != nil {
		return err
	}
	return dropUnclaimedConfigs(ctx, tx, sc.ProjectScope(), configID)
}

// removeGraph deletes the graph row and its children and returns the
// context config id the graph pointed at.
func (s *GraphService) removeGraph(ctx context.Context, tx database.Store, sc scope.Scope) (string, error) {
	g, err := tx.GetGraph(ctx, sc)
	if err != nil {
		return "", err
	}

	if err := s.writeToolBindings(ctx, tx, sc, nil); err != nil {
		return "", err
	}
	if err := writeComponentBindings(ctx, sc, "data", nil,
		tx.ListDataBindings, tx.CreateDataBinding, tx.DeleteDataBinding); err != nil {
		return "", err
	}
	if err := writeComponentBindings(ctx, sc, "artifact", nil,
		tx.ListArtifactBindings, tx.CreateArtifactBinding, tx.DeleteArtifactBinding); err != nil {
		return "", err
	}
	if err := s.writeRelations(ctx, tx, sc, nil); err != nil {
		return "", err
	}

	agents, err := tx.ListSubAgents(ctx, sc)
	if err != nil {
		return "", err
	}
	for _, a := range agents {
		if err := tx.DeleteSubAgent(ctx, sc.WithSubAgent(a.ID)); err != nil {
			return "", fmt.Errorf("delete sub-agent %s: %w", a.ID, err)
		}
	}
	externals, err := tx.ListExternalAgents(ctx, sc)
	if err != nil {
		return "", err
	}
	for _, e := range externals {
		if err := tx.DeleteExternalAgent(ctx, sc, e.ID); err != nil {
			return "", fmt.Errorf("delete external agent %s: %w", e.ID, err)
		}
	}

	if err := tx.DeleteGraph(ctx, sc); err != nil {
		return "", err
	}
	return g.ContextConfigID, nil
}

// unchanged compares two rows after strip has cleared the fields storage
// owns (timestamps, parent ids).
func unchanged[T any](stored, incoming T, strip func(*T)) bool {
	strip(&stored)
	strip(&incoming)
	return reflect.DeepEqual(stored, incoming)
}

func stripGraph(g *agentgraph.Graph) {
	g.CreatedAt, g.UpdatedAt = "", ""
}

func stripSubAgent(a *agentgraph.SubAgent) {
	a.GraphID, a.CreatedAt, a.UpdatedAt = "", "", ""
}

func stripExternal(e *agentgraph.ExternalAgent) {
	e.GraphID, e.CreatedAt, e.UpdatedAt = "", "", ""
}

// sameSelection treats nil ("all tools") and empty ("no tools") as different.
func sameSelection(a, b []string) bool {
	return (a == nil) == (b == nil) && slices.Equal(a, b)
}

func sameHeaders(a, b map[string]string) bool {
	return (a == nil) == (b == nil) && maps.Equal(a, b)
}
