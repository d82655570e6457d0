package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	agotel "github.com/Strob0t/agentgraph/internal/adapter/otel"
	"github.com/Strob0t/agentgraph/internal/domain"
	"github.com/Strob0t/agentgraph/internal/domain/project"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/port/database"
)

// errResourceFound stops the probe fan-out at the first hit.
var errResourceFound = errors.New("dependent resource found")

// ProjectHasResources reports whether any dependent table holds a row for
// the project. The probes run concurrently.
func (s *ProjectService) ProjectHasResources(ctx context.Context, sc scope.Scope) (bool, error) {
	if err := sc.Validate(scope.LevelProject); err != nil {
		return false, err
	}
	return probeConcurrently(ctx, s.store, sc.ProjectScope())
}

func probeConcurrently(ctx context.Context, st database.Store, sc scope.Scope) (bool, error) {
	eg, gctx := errgroup.WithContext(ctx)
	for _, kind := range database.DependentResources {
		eg.Go(func() error {
			found, err := st.HasProjectResource(gctx, sc, kind)
			if err != nil {
				return fmt.Errorf("probe %s: %w", kind, err)
			}
			if found {
				return errResourceFound
			}
			return nil
		})
	}
	err := eg.Wait()
	if errors.Is(err, errResourceFound) {
		return true, nil
	}
	return false, err
}

// probeSequentially is probeConcurrently for a transaction, which must not
// be used from several goroutines.
func probeSequentially(ctx context.Context, tx database.Store, sc scope.Scope) (bool, database.ResourceKind, error) {
	for _, kind := range database.DependentResources {
		found, err := tx.HasProjectResource(ctx, sc, kind)
		if err != nil {
			return false, "", fmt.Errorf("probe %s: %w", kind, err)
		}
		if found {
			return true, kind, nil
		}
	}
	return false, "", nil
}

// DeleteProject deletes the project row. It fails with domain.ErrNotFound
// when the row does not exist and with domain.ErrResourcesExist, deleting
// nothing, while any dependent row remains.
func (s *ProjectService) DeleteProject(ctx context.Context, sc scope.Scope) (err error) {
	if err := sc.Validate(scope.LevelProject); err != nil {
		return err
	}
	sc = sc.ProjectScope()
	ctx, span := agotel.StartScopeSpan(ctx, "project.delete", sc)
	defer func() { agotel.EndSpan(span, err) }()

	if _, err := s.store.GetProject(ctx, sc); err != nil {
		return err
	}
	has, err := probeConcurrently(ctx, s.store, sc)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", sc, err)
	}
	if has {
		return s.refuse(ctx, sc, "")
	}
	if err := s.store.DeleteProject(ctx, sc); err != nil {
		return fmt.Errorf("delete project %s: %w", sc, err)
	}
	s.changed(ctx, sc, true)
	return nil
}

// DeleteFullProject deletes every graph, tool, component, context config
// and credential reference of the project and then the project row, all in
// one transaction. Runtime rows such as tasks and conversations make the
// whole delete fail with domain.ErrResourcesExist.
func (s *ProjectService) DeleteFullProject(ctx context.Context, sc scope.Scope) (err error) {
	if err := sc.Validate(scope.LevelProject); err != nil {
		return err
	}
	sc = sc.ProjectScope()
	ctx, span := agotel.StartScopeSpan(ctx, "project.delete_full", sc)
	defer func() { agotel.EndSpan(span, err) }()

	err = s.store.InTx(ctx, func(tx database.Store) error {
		removed, err := s.deleteContents(ctx, tx, sc)
		if err != nil {
			return err
		}
		_, err = tx.GetProject(ctx, sc)
		rowExists := err == nil
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if !rowExists && removed == 0 {
			return fmt.Errorf("project %s: %w", sc, domain.ErrNotFound)
		}
		has, kind, err := probeSequentially(ctx, tx, sc)
		if err != nil {
			return err
		}
		if has {
			return s.refuse(ctx, sc, kind)
		}
		if rowExists {
			return tx.DeleteProject(ctx, sc)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.changed(ctx, sc, true)
	return nil
}

func (s *ProjectService) refuse(ctx context.Context, sc scope.Scope, kind database.ResourceKind) error {
	slog.Info("refusing project delete", "scope", sc.String(), "resource", string(kind))
	s.metrics.Add(ctx, agotel.IntegrityRefusals, 1, attribute.String("resource", string(kind)))
	return fmt.Errorf("delete project %s: %w", sc, domain.ErrResourcesExist)
}

// ListProjects returns the tenant's projects sorted by id. Project ids that
// only appear on dependent rows are listed with just their id set.
func (s *ProjectService) ListProjects(ctx context.Context, tenantID string, opts database.ListOptions) (database.Page[project.Project], error) {
	projects, err := s.projects(ctx, tenantID)
	if err != nil {
		return database.Page[project.Project]{}, err
	}
	return page(projects, opts), nil
}

// CountProjects counts what ListProjects would return.
func (s *ProjectService) CountProjects(ctx context.Context, tenantID string) (int, error) {
	projects, err := s.projects(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return len(projects), nil
}

func (s *ProjectService) projects(ctx context.Context, tenantID string) ([]project.Project, error) {
	if err := (scope.Scope{TenantID: tenantID}).Validate(scope.LevelTenant); err != nil {
		return nil, err
	}

	var (
		mu   sync.Mutex
		rows []project.Project
		ids  = make(map[string]bool)
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		rows, err = s.store.ListProjectRows(gctx, tenantID)
		return err
	})
	for _, kind := range database.DependentResources {
		eg.Go(func() error {
			found, err := s.store.DistinctProjectIDs(gctx, tenantID, kind)
			if err != nil {
				return fmt.Errorf("distinct project ids from %s: %w", kind, err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range found {
				if id != "" {
					ids[id] = true
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("list projects for tenant %s: %w", tenantID, err)
	}

	out := make([]project.Project, 0, len(rows)+len(ids))
	for _, p := range rows {
		delete(ids, p.ID)
		out = append(out, p)
	}
	for id := range ids {
		out = append(out, project.Project{ID: id, TenantID: tenantID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func page[T any](items []T, opts database.ListOptions) database.Page[T] {
	total := len(items)
	start := min(max(opts.Offset, 0), total)
	end := total
	if opts.Limit > 0 {
		end = min(start+opts.Limit, total)
	}
	return database.Page[T]{Items: items[start:end], Total: total}
}
