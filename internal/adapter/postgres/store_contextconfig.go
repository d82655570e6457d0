package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/agentgraph/internal/domain/contextconfig"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
)

const contextConfigColumns = `id, graph_id, name, description, request_context_schema, context_variables,
	created_at, updated_at`

func scanContextConfig(row scannable) (contextconfig.ContextConfig, error) {
	var c contextconfig.ContextConfig
	var graphID *string
	var schema, variables []byte
	err := row.Scan(&c.ID, &graphID, &c.Name, &c.Description, &schema, &variables, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	c.GraphID = deref(graphID)
	c.RequestContextSchema = rawJSON(schema)
	if err := fromJSONB(variables, &c.ContextVariables); err != nil {
		return c, fmt.Errorf("decode context_variables: %w", err)
	}
	return c, nil
}

func (s *Store) GetContextConfig(ctx context.Context, sc scope.Scope, id string) (*contextconfig.ContextConfig, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+contextConfigColumns+` FROM context_configs WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, id)
	c, err := scanContextConfig(row)
	if err != nil {
		return nil, notFoundWrap(err, "get context config %s", id)
	}
	return &c, nil
}

func (s *Store) ListContextConfigs(ctx context.Context, sc scope.Scope) ([]contextconfig.ContextConfig, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+contextConfigColumns+` FROM context_configs WHERE tenant_id = $1 AND project_id = $2 ORDER BY id`,
		sc.TenantID, sc.ProjectID)
	return collect(rows, err, scanContextConfig, "list context configs")
}

func (s *Store) CreateContextConfig(ctx context.Context, sc scope.Scope, c *contextconfig.ContextConfig) error {
	c.Normalize()
	variables, err := toJSONB(c.ContextVariables)
	if err != nil {
		return fmt.Errorf("marshal context_variables: %w", err)
	}
	now := s.timestamp()
	_, err = s.db.Exec(ctx,
		`INSERT INTO context_configs (tenant_id, project_id, `+contextConfigColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		sc.TenantID, sc.ProjectID, c.ID, nullIfEmpty(c.GraphID), c.Name, c.Description,
		nullJSON(c.RequestContextSchema), variables, now)
	if err != nil {
		return writeErr(err, "create context config %s", c.ID)
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

func (s *Store) UpdateContextConfig(ctx context.Context, sc scope.Scope, c *contextconfig.ContextConfig) error {
	c.Normalize()
	variables, err := toJSONB(c.ContextVariables)
	if err != nil {
		return fmt.Errorf("marshal context_variables: %w", err)
	}
	now := s.timestamp()
	tag, err := s.db.Exec(ctx,
		`UPDATE context_configs SET graph_id = $4, name = $5, description = $6, request_context_schema = $7,
		 context_variables = $8, updated_at = $9
		 WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, c.ID, nullIfEmpty(c.GraphID), c.Name, c.Description,
		nullJSON(c.RequestContextSchema), variables, now)
	if err := execExpectOne(tag, err, "update context config %s", c.ID); err != nil {
		return err
	}
	c.UpdatedAt = now
	return nil
}

func (s *Store) DeleteContextConfig(ctx context.Context, sc scope.Scope, id string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM context_configs WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, id)
	return execExpectOne(tag, err, "delete context config %s", id)
}
