package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	agotel "github.com/Strob0t/agentgraph/internal/adapter/otel"
	"github.com/Strob0t/agentgraph/internal/domain"
	"github.com/Strob0t/agentgraph/internal/domain/agentgraph"
	"github.com/Strob0t/agentgraph/internal/domain/component"
	"github.com/Strob0t/agentgraph/internal/domain/credential"
	"github.com/Strob0t/agentgraph/internal/domain/project"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/domain/tool"
	"github.com/Strob0t/agentgraph/internal/port/cache"
	"github.com/Strob0t/agentgraph/internal/port/database"
	"github.com/Strob0t/agentgraph/internal/port/messagequeue"
)

// graphFanout bounds how many graphs of one project materialize at once.
const graphFanout = 4

// ProjectService materializes and writes full project definitions and
// guards project deletes.
type ProjectService struct {
	store    database.Store
	graphs   *GraphService
	metrics  *agotel.Metrics
	cache    cache.Cache
	cacheTTL time.Duration
	queue    messagequeue.Queue
	now      func() time.Time
}

// NewProjectService creates a ProjectService. Graph writes made through
// graphs evict and announce the owning project like project writes do.
func NewProjectService(store database.Store, graphs *GraphService, metrics *agotel.Metrics) *ProjectService {
	s := &ProjectService{store: store, graphs: graphs, metrics: metrics, now: time.Now}
	graphs.SetChangeNotifier(s.changed)
	return s
}

// SetCache attaches the definition cache used by GetFullProject.
func (s *ProjectService) SetCache(c cache.Cache, ttl time.Duration) {
	s.cache = c
	s.cacheTTL = ttl
}

// SetQueue attaches the queue project change events are published on.
func (s *ProjectService) SetQueue(q messagequeue.Queue) {
	s.queue = q
}

func cacheKey(sc scope.Scope) string {
	return "fullproject:" + sc.TenantID + ":" + sc.ProjectID
}

// GetFullProject returns the nested definition of sc.ProjectID. A project
// without a row but with dependent rows is returned with only its id set.
// It returns domain.ErrNotFound when the project has no rows at all.
func (s *ProjectService) GetFullProject(ctx context.Context, sc scope.Scope) (def *project.FullProjectDefinition, err error) {
	if err := sc.Validate(scope.LevelProject); err != nil {
		return nil, err
	}
	sc = sc.ProjectScope()
	if def, ok := s.cached(ctx, sc); ok {
		return def, nil
	}

	ctx, span := agotel.StartScopeSpan(ctx, "project.materialize", sc)
	defer func() { agotel.EndSpan(span, err) }()
	start := time.Now()

	def, err = s.materialize(ctx, sc)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveMaterialize(ctx, time.Since(start).Seconds(), "project")
	s.remember(ctx, sc, def)
	return def, nil
}

func (s *ProjectService) materialize(ctx context.Context, sc scope.Scope) (*project.FullProjectDefinition, error) {
	p, err := s.store.GetProject(ctx, sc)
	implied := false
	switch {
	case errors.Is(err, domain.ErrNotFound):
		has, err := probeConcurrently(ctx, s.store, sc)
		if err != nil {
			return nil, err
		}
		if !has {
			return nil, fmt.Errorf("project %s: %w", sc, domain.ErrNotFound)
		}
		p, implied = &project.Project{ID: sc.ProjectID, TenantID: sc.TenantID}, true
	case err != nil:
		return nil, fmt.Errorf("get project %s: %w", sc, err)
	}

	graphs, err := s.store.ListGraphs(ctx, sc, database.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list graphs %s: %w", sc, err)
	}

	var (
		defs      = make([]*agentgraph.FullGraphDefinition, len(graphs.Items))
		tools     database.Page[tool.Tool]
		data      database.Page[component.DataComponent]
		artifacts database.Page[component.ArtifactComponent]
		creds     database.Page[credential.Reference]
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(graphFanout)
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
	eg.Go(func() (err error) {
		creds, err = s.store.ListCredentialReferences(gctx, sc, database.ListOptions{})
		return err
	})
	for i := range graphs.Items {
		g := graphs.Items[i]
		eg.Go(func() error {
			gsc := sc.WithGraph(g.ID)
			rows, err := s.graphs.load(gctx, s.store, gsc, &g)
			if err != nil {
				return err
			}
			defs[i] = s.graphs.assemble(gctx, &g, rows, p.Models)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("materialize project %s: %w", sc, err)
	}

	rep := repairer{metrics: s.metrics, now: s.now}
	if !implied {
		rep.fix(ctx, "project", p.ID, &p.CreatedAt, &p.UpdatedAt)
	}
	out := &project.FullProjectDefinition{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Models:      p.Models,
		StopWhen:    p.StopWhen,
		Graphs:      make(map[string]agentgraph.FullGraphDefinition, len(defs)),
		Tools:       make(map[string]tool.Tool, len(tools.Items)),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	for _, d := range defs {
		out.Graphs[d.ID] = *d
	}
	for _, t := range tools.Items {
		rep.fix(ctx, "tool", t.ID, &t.CreatedAt, &t.UpdatedAt)
		out.Tools[t.ID] = t
	}
	if len(data.Items) > 0 {
		out.DataComponents = make(map[string]component.DataComponent, len(data.Items))
		for _, c := range data.Items {
			rep.fix(ctx, "data_component", c.ID, &c.CreatedAt, &c.UpdatedAt)
			out.DataComponents[c.ID] = c
		}
	}
	if len(artifacts.Items) > 0 {
		out.ArtifactComponents = make(map[string]component.ArtifactComponent, len(artifacts.Items))
		for _, c := range artifacts.Items {
			rep.fix(ctx, "artifact_component", c.ID, &c.CreatedAt, &c.UpdatedAt)
			out.ArtifactComponents[c.ID] = c
		}
	}
	if len(creds.Items) > 0 {
		out.CredentialReferences = make(map[string]credential.Reference, len(creds.Items))
		for _, c := range creds.Items {
			rep.fix(ctx, "credential_reference", c.ID, &c.CreatedAt, &c.UpdatedAt)
			out.CredentialReferences[c.ID] = c
		}
	}
	return out, nil
}

// cached returns the cached definition for sc, if any. Cache failures are
// misses.
func (s *ProjectService) cached(ctx context.Context, sc scope.Scope) (*project.FullProjectDefinition, bool) {
	if s.cache == nil {
		return nil, false
	}
	kind := attribute.String("cache", "definition")
	data, ok, err := s.cache.Get(ctx, cacheKey(sc))
	if err != nil {
		slog.Warn("definition cache get failed", "scope", sc.String(), "error", err)
		s.metrics.Add(ctx, agotel.CacheErrors, 1, kind)
		return nil, false
	}
	if !ok {
		s.metrics.Add(ctx, agotel.CacheMisses, 1, kind)
		return nil, false
	}
	var def project.FullProjectDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		slog.Warn("discarding undecodable cached definition", "scope", sc.String(), "error", err)
		s.metrics.Add(ctx, agotel.CacheErrors, 1, kind)
		return nil, false
	}
	s.metrics.Add(ctx, agotel.CacheHits, 1, kind)
	return &def, true
}

func (s *ProjectService) remember(ctx context.Context, sc scope.Scope, def *project.FullProjectDefinition) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(def)
	if err != nil {
		slog.Warn("definition cache encode failed", "scope", sc.String(), "error", err)
		return
	}
	if err := s.cache.Set(ctx, cacheKey(sc), data, s.cacheTTL); err != nil {
		slog.Warn("definition cache set failed", "scope", sc.String(), "error", err)
	}
}

// changed evicts the project's cached definition and announces the change.
// Both steps are best-effort: the write they follow has committed.
func (s *ProjectService) changed(ctx context.Context, sc scope.Scope, deleted bool) {
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cacheKey(sc)); err != nil {
			slog.Warn("definition cache evict failed", "scope", sc.String(), "error", err)
		}
	}
	if s.queue == nil {
		return
	}
	subject := messagequeue.SubjectProjectUpdated
	if deleted {
		subject = messagequeue.SubjectProjectDeleted
	}
	data, err := json.Marshal(messagequeue.ProjectChangedPayload{
		TenantID:  sc.TenantID,
		ProjectID: sc.ProjectID,
		GraphID:   sc.GraphID,
		UpdatedAt: domain.FormatTimestamp(s.now()),
	})
	if err != nil {
		slog.Error("marshal project change", "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.Warn("publish project change failed", "subject", subject, "scope", sc.String(), "error", err)
	}
}

// StartChangeSubscriber evicts cached definitions when any instance
// announces a project change. The returned function cancels both
// subscriptions.
func (s *ProjectService) StartChangeSubscriber(ctx context.Context) (cancel func(), err error) {
	if s.queue == nil || s.cache == nil {
		return func() {}, nil
	}
	handler := func(msgCtx context.Context, subject string, data []byte) error {
		if err := messagequeue.Validate(subject, data); err != nil {
			return err
		}
		var p messagequeue.ProjectChangedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("unmarshal project change: %w", err)
		}
		key := cacheKey(scope.Project(p.TenantID, p.ProjectID))
		if le, ok := s.cache.(cache.LocalEvicter); ok {
			return le.EvictLocal(msgCtx, key)
		}
		return s.cache.Delete(msgCtx, key)
	}

	cancelUpdated, err := s.queue.Subscribe(ctx, messagequeue.SubjectProjectUpdated, handler)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", messagequeue.SubjectProjectUpdated, err)
	}
	cancelDeleted, err := s.queue.Subscribe(ctx, messagequeue.SubjectProjectDeleted, handler)
	if err != nil {
		cancelUpdated()
		return nil, fmt.Errorf("subscribe %s: %w", messagequeue.SubjectProjectDeleted, err)
	}
	return func() {
		cancelUpdated()
		cancelDeleted()
	}, nil
}
