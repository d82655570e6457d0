package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	agotel "github.com/Strob0t/agentgraph/internal/adapter/otel"
	"github.com/Strob0t/agentgraph/internal/domain"
	"github.com/Strob0t/agentgraph/internal/domain/component"
	"github.com/Strob0t/agentgraph/internal/domain/credential"
	"github.com/Strob0t/agentgraph/internal/domain/project"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/domain/tool"
	"github.com/Strob0t/agentgraph/internal/port/database"
)

// UpdateOptions tunes UpdateFullProject.
type UpdateOptions struct {
	// IfUnmodifiedSince, when set, guards the update with the stored project
	// updatedAt; a mismatch fails with domain.ErrConflict. A timestamp must
	// equal updatedAt exactly. An HTTP-date only has second precision, so
	// updatedAt truncated to the second must not be after it.
	IfUnmodifiedSince string
}

// precondition is a parsed UpdateOptions.IfUnmodifiedSince.
type precondition struct {
	at       time.Time
	httpDate bool
}

func parsePrecondition(v string) (precondition, bool) {
	if t, ok := domain.ParseTimestamp(v); ok {
		return precondition{at: t}, true
	}
	if t, err := http.ParseTime(v); err == nil {
		return precondition{at: t, httpDate: true}, true
	}
	return precondition{}, false
}

// holds reports whether a row last updated at updatedAt passes.
func (p precondition) holds(updatedAt string) bool {
	t, ok := domain.ParseTimestamp(updatedAt)
	if !ok {
		return false
	}
	if p.httpDate {
		return !t.Truncate(time.Second).After(p.at)
	}
	return t.Equal(p.at)
}

// CreateFullProject writes def as a new project in one transaction. It
// fails with domain.ErrConflict when the project already exists.
func (s *ProjectService) CreateFullProject(ctx context.Context, tenantID string, def *project.FullProjectDefinition) (out *project.FullProjectDefinition, err error) {
	sc, err := s.prepare(tenantID, def)
	if err != nil {
		return nil, err
	}
	ctx, span := agotel.StartScopeSpan(ctx, "project.create", sc)
	defer func() { agotel.EndSpan(span, err) }()

	err = s.store.InTx(ctx, func(tx database.Store) error {
		_, err := tx.GetProject(ctx, sc)
		switch {
		case err == nil:
			return fmt.Errorf("%w: project %q already exists", domain.ErrConflict, def.ID)
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		row := def.Row(tenantID)
		if err := tx.CreateProject(ctx, &row); err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		return s.writeContents(ctx, tx, sc, def)
	})
	if err != nil {
		return nil, fmt.Errorf("create project %s: %w", sc, err)
	}
	s.changed(ctx, sc, false)
	return s.GetFullProject(ctx, sc)
}

// UpdateFullProject makes storage match def exactly: rows missing from
// storage are created, rows missing from def are removed and the rest are
// patched in place. A project that does not exist yet is created.
func (s *ProjectService) UpdateFullProject(ctx context.Context, tenantID string, def *project.FullProjectDefinition, opts UpdateOptions) (out *project.FullProjectDefinition, err error) {
	sc, err := s.prepare(tenantID, def)
	if err != nil {
		return nil, err
	}
	var since *precondition
	if opts.IfUnmodifiedSince != "" {
		p, ok := parsePrecondition(opts.IfUnmodifiedSince)
		if !ok {
			return nil, fmt.Errorf("%w: invalid ifUnmodifiedSince %q", domain.ErrValidation, opts.IfUnmodifiedSince)
		}
		since = &p
	}
	ctx, span := agotel.StartScopeSpan(ctx, "project.update", sc)
	defer func() { agotel.EndSpan(span, err) }()

	err = s.store.InTx(ctx, func(tx database.Store) error {
		row := def.Row(tenantID)
		existing, err := tx.GetProject(ctx, sc)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			if err := tx.CreateProject(ctx, &row); err != nil {
				return fmt.Errorf("create project: %w", err)
			}
		case err != nil:
			return err
		default:
			if since != nil && !since.holds(existing.UpdatedAt) {
				return fmt.Errorf("%w: project %q was modified at %s", domain.ErrConflict, def.ID, existing.UpdatedAt)
			}
			if !unchanged(*existing, row, stripProject) {
				if err := tx.UpdateProject(ctx, &row); err != nil {
					return fmt.Errorf("update project: %w", err)
				}
			}
		}
		return s.writeContents(ctx, tx, sc, def)
	})
	if err != nil {
		return nil, fmt.Errorf("update project %s: %w", sc, err)
	}
	s.changed(ctx, sc, false)
	return s.GetFullProject(ctx, sc)
}

// prepare validates def before any storage call and returns its scope.
func (s *ProjectService) prepare(tenantID string, def *project.FullProjectDefinition) (scope.Scope, error) {
	if def == nil {
		return scope.Scope{}, fmt.Errorf("%w: project definition is required", domain.ErrValidation)
	}
	if err := def.Validate(); err != nil {
		return scope.Scope{}, err
	}
	sc := scope.Project(tenantID, def.ID)
	return sc, sc.Validate(scope.LevelProject)
}

func stripProject(p *project.Project) {
	p.CreatedAt, p.UpdatedAt = "", ""
}

// resource describes how to reconcile one project-level collection.
type resource[T any] struct {
	kind   string
	id     func(*T) string
	strip  func(*T)
	create func(context.Context, scope.Scope, *T) error
	update func(context.Context, scope.Scope, *T) error
	remove func(context.Context, scope.Scope, string) error
}

// upsert creates and patches incoming rows and returns the stale ones for
// the caller to remove once nothing references them.
func (r resource[T]) upsert(ctx context.Context, sc scope.Scope, stored, incoming []T) ([]T, error) {
	create, patch, stale := diff(stored, incoming, r.id)
	for _, v := range create {
		if err := r.create(ctx, sc, &v); err != nil {
			return nil, fmt.Errorf("create %s %s: %w", r.kind, r.id(&v), err)
		}
	}
	for _, c := range patch {
		if unchanged(c.old, c.new, r.strip) {
			continue
		}
		if err := r.update(ctx, sc, &c.new); err != nil {
			return nil, fmt.Errorf("update %s %s: %w", r.kind, r.id(&c.new), err)
		}
	}
	return stale, nil
}

func (r resource[T]) removeAll(ctx context.Context, sc scope.Scope, rows []T) error {
	for i := range rows {
		if err := r.remove(ctx, sc, r.id(&rows[i])); err != nil {
			return fmt.Errorf("delete %s %s: %w", r.kind, r.id(&rows[i]), err)
		}
	}
	return nil
}

type projectResources struct {
	creds     resource[credential.Reference]
	tools     resource[tool.Tool]
	data      resource[component.DataComponent]
	artifacts resource[component.ArtifactComponent]
}

func resourcesOf(tx database.Store) projectResources {
	return projectResources{
		creds: resource[credential.Reference]{
			kind:   "credential reference",
			id:     func(c *credential.Reference) string { return c.ID },
			strip:  func(c *credential.Reference) { c.CreatedAt, c.UpdatedAt = "", "" },
			create: tx.CreateCredentialReference,
			update: tx.UpdateCredentialReference,
			remove: tx.DeleteCredentialReference,
		},
		tools: resource[tool.Tool]{
			kind: "tool",
			id:   func(t *tool.Tool) string { return t.ID },
			strip: func(t *tool.Tool) {
				t.CreatedAt, t.UpdatedAt = "", ""
				if t.Status == "" {
					t.Status = tool.StatusUnknown
				}
			},
			create: tx.CreateTool,
			update: tx.UpdateTool,
			remove: tx.DeleteTool,
		},
		data: resource[component.DataComponent]{
			kind:   "data component",
			id:     func(c *component.DataComponent) string { return c.ID },
			strip:  func(c *component.DataComponent) { c.CreatedAt, c.UpdatedAt = "", "" },
			create: tx.CreateDataComponent,
			update: tx.UpdateDataComponent,
			remove: tx.DeleteDataComponent,
		},
		artifacts: resource[component.ArtifactComponent]{
			kind:   "artifact component",
			id:     func(c *component.ArtifactComponent) string { return c.ID },
			strip:  func(c *component.ArtifactComponent) { c.CreatedAt, c.UpdatedAt = "", "" },
			create: tx.CreateArtifactComponent,
			update: tx.UpdateArtifactComponent,
			remove: tx.DeleteArtifactComponent,
		},
	}
}

// writeContents reconciles everything below the project row. Credentials,
// tools and components go first because graphs point at them; they are
// removed last for the same reason.
func (s *ProjectService) writeContents(ctx context.Context, tx database.Store, sc scope.Scope, def *project.FullProjectDefinition) error {
	res := resourcesOf(tx)
	all := database.ListOptions{}

	storedCreds, err := tx.ListCredentialReferences(ctx, sc, all)
	if err != nil {
		return err
	}
	staleCreds, err := res.creds.upsert(ctx, sc, storedCreds.Items, valuesOf(def.CredentialReferences))
	if err != nil {
		return err
	}
	storedTools, err := tx.ListTools(ctx, sc, all)
	if err != nil {
		return err
	}
	staleTools, err := res.tools.upsert(ctx, sc, storedTools.Items, valuesOf(def.Tools))
	if err != nil {
		return err
	}
	storedData, err := tx.ListDataComponents(ctx, sc, all)
	if err != nil {
		return err
	}
	staleData, err := res.data.upsert(ctx, sc, storedData.Items, valuesOf(def.DataComponents))
	if err != nil {
		return err
	}
	storedArtifacts, err := tx.ListArtifactComponents(ctx, sc, all)
	if err != nil {
		return err
	}
	staleArtifacts, err := res.artifacts.upsert(ctx, sc, storedArtifacts.Items, valuesOf(def.ArtifactComponents))
	if err != nil {
		return err
	}

	storedGraphs, err := tx.ListGraphs(ctx, sc, all)
	if err != nil {
		return err
	}
	// A context config can move between graphs in one write, so released
	// configs are only dropped once every graph is in place.
	var staleConfigs []string
	for _, id := range project.SortedKeys(def.Graphs) {
		g := def.Graphs[id]
		rows := g.Rows(sc.ProjectID)
		stale, err := s.graphs.writeGraph(ctx, tx, sc.WithGraph(id), &rows)
		if err != nil {
			return fmt.Errorf("graph %s: %w", id, err)
		}
		staleConfigs = append(staleConfigs, stale)
	}
	for _, g := range storedGraphs.Items {
		if _, keep := def.Graphs[g.ID]; keep {
			continue
		}
		configID, err := s.graphs.removeGraph(ctx, tx, sc.WithGraph(g.ID))
		if err != nil {
			return fmt.Errorf("delete graph %s: %w", g.ID, err)
		}
		staleConfigs = append(staleConfigs, configID)
	}
	if err := dropUnclaimedConfigs(ctx, tx, sc, staleConfigs...); err != nil {
		return err
	}

	if err := res.tools.removeAll(ctx, sc, staleTools); err != nil {
		return err
	}
	if err := res.data.removeAll(ctx, sc, staleData); err != nil {
		return err
	}
	if err := res.artifacts.removeAll(ctx, sc, staleArtifacts); err != nil {
		return err
	}
	return res.creds.removeAll(ctx, sc, staleCreds)
}

// deleteContents removes every definition row of the project, graphs first,
// and reports how many top-level rows went away. Runtime rows (tasks,
// conversations) are left for the integrity guard to find.
func (s *ProjectService) deleteContents(ctx context.Context, tx database.Store, sc scope.Scope) (int, error) {
	res := resourcesOf(tx)
	all := database.ListOptions{}
	removed := 0

	graphs, err := tx.ListGraphs(ctx, sc, all)
	if err != nil {
		return 0, err
	}
	for _, g := range graphs.Items {
		if err := s.graphs.deleteGraph(ctx, tx, sc.WithGraph(g.ID)); err != nil {
			return 0, fmt.Errorf("delete graph %s: %w", g.ID, err)
		}
	}
	removed += len(graphs.Items)

	tools, err := tx.ListTools(ctx, sc, all)
	if err != nil {
		return 0, err
	}
	if err := res.tools.removeAll(ctx, sc, tools.Items); err != nil {
		return 0, err
	}
	data, err := tx.ListDataComponents(ctx, sc, all)
	if err != nil {
		return 0, err
	}
	if err := res.data.removeAll(ctx, sc, data.Items); err != nil {
		return 0, err
	}
	artifacts, err := tx.ListArtifactComponents(ctx, sc, all)
	if err != nil {
		return 0, err
	}
	if err := res.artifacts.removeAll(ctx, sc, artifacts.Items); err != nil {
		return 0, err
	}
	configs, err := tx.ListContextConfigs(ctx, sc)
	if err != nil {
		return 0, err
	}
	for _, c := range configs {
		if err := dropContextConfig(ctx, tx, sc, c.ID); err != nil {
			return 0, err
		}
	}
	creds, err := tx.ListCredentialReferences(ctx, sc, all)
	if err != nil {
		return 0, err
	}
	if err := res.creds.removeAll(ctx, sc, creds.Items); err != nil {
		return 0, err
	}
	removed += len(tools.Items) + len(data.Items) + len(artifacts.Items) + len(configs) + len(creds.Items)
	return removed, nil
}

// valuesOf returns the map values in key order.
func valuesOf[V any](m map[string]V) []V {
	out := make([]V, 0, len(m))
	for _, k := range project.SortedKeys(m) {
		out = append(out, m[k])
	}
	return out
}
