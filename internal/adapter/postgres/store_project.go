package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/agentgraph/internal/domain/project"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/port/database"
)

const projectColumns = `id, tenant_id, name, description, models, stop_when, created_at, updated_at`

func scanProject(row scannable) (project.Project, error) {
	var p project.Project
	var models, stopWhen []byte
	if err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Description, &models, &stopWhen, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, err
	}
	if err := fromJSONB(models, &p.Models); err != nil {
		return p, fmt.Errorf("decode models: %w", err)
	}
	if err := fromJSONB(stopWhen, &p.StopWhen); err != nil {
		return p, fmt.Errorf("decode stop_when: %w", err)
	}
	return p, nil
}

func (s *Store) GetProject(ctx context.Context, sc scope.Scope) (*project.Project, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE tenant_id = $1 AND id = $2`,
		sc.TenantID, sc.ProjectID)
	p, err := scanProject(row)
	if err != nil {
		return nil, notFoundWrap(err, "get project %s", sc)
	}
	return &p, nil
}

func (s *Store) ListProjectRows(ctx context.Context, tenantID string) ([]project.Project, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE tenant_id = $1 ORDER BY id`, tenantID)
	return collect(rows, err, scanProject, "list projects")
}

func (s *Store) CreateProject(ctx context.Context, p *project.Project) error {
	models, err := toJSONB(p.Models)
	if err != nil {
		return fmt.Errorf("marshal models: %w", err)
	}
	stopWhen, err := toJSONB(p.StopWhen)
	if err != nil {
		return fmt.Errorf("marshal stop_when: %w", err)
	}
	now := s.timestamp()
	_, err = s.db.Exec(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		p.ID, p.TenantID, p.Name, p.Description, models, stopWhen, now)
	if err != nil {
		return writeErr(err, "create project %s", p.ID)
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

func (s *Store) UpdateProject(ctx context.Context, p *project.Project) error {
	models, err := toJSONB(p.Models)
	if err != nil {
		return fmt.Errorf("marshal models: %w", err)
	}
	stopWhen, err := toJSONB(p.StopWhen)
	if err != nil {
		return fmt.Errorf("marshal stop_when: %w", err)
	}
	now := s.timestamp()
	tag, err := s.db.Exec(ctx,
		`UPDATE projects SET name = $3, description = $4, models = $5, stop_when = $6, updated_at = $7
		 WHERE tenant_id = $1 AND id = $2`,
		p.TenantID, p.ID, p.Name, p.Description, models, stopWhen, now)
	if err := execExpectOne(tag, err, "update project %s", p.ID); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, sc scope.Scope) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM projects WHERE tenant_id = $1 AND id = $2`, sc.TenantID, sc.ProjectID)
	return execExpectOne(tag, err, "delete project %s", sc)
}

// resourceTables whitelists the tables the probes may interpolate.
var resourceTables = map[database.ResourceKind]string{
	database.ResourceSubAgents:            "sub_agents",
	database.ResourceGraphs:               "agent_graphs",
	database.ResourceTools:                "tools",
	database.ResourceContextConfigs:       "context_configs",
	database.ResourceExternalAgents:       "external_agents",
	database.ResourceTasks:                "tasks",
	database.ResourceConversations:        "conversations",
	database.ResourceDataComponents:       "data_components",
	database.ResourceArtifactComponents:   "artifact_components",
	database.ResourceCredentialReferences: "credential_references",
}

func resourceTable(kind database.ResourceKind) (string, error) {
	table, ok := resourceTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown resource kind %q", kind)
	}
	return table, nil
}

func (s *Store) HasProjectResource(ctx context.Context, sc scope.Scope, kind database.ResourceKind) (bool, error) {
	table, err := resourceTable(kind)
	if err != nil {
		return false, err
	}
	var exists bool
	err = s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE tenant_id = $1 AND project_id = $2)`,
		sc.TenantID, sc.ProjectID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("probe %s for %s: %w", table, sc, err)
	}
	return exists, nil
}

func (s *Store) DistinctProjectIDs(ctx context.Context, tenantID string, kind database.ResourceKind) ([]string, error) {
	table, err := resourceTable(kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT project_id FROM `+table+` WHERE tenant_id = $1 AND project_id <> '' ORDER BY project_id`,
		tenantID)
	return collect(rows, err, func(row scannable) (string, error) {
		var id string
		return id, row.Scan(&id)
	}, "distinct project ids in "+table)
}
