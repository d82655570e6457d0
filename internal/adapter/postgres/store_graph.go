package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/agentgraph/internal/domain/agentgraph"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/port/database"
)

// --- Graphs ---

const graphColumns = `id, project_id, name, description, default_sub_agent_id, context_config_id,
	models, stop_when, graph_prompt, created_at, updated_at`

func scanGraph(row scannable) (agentgraph.Graph, error) {
	var g agentgraph.Graph
	var defaultAgent, contextConfig *string
	var models, stopWhen []byte
	err := row.Scan(&g.ID, &g.ProjectID, &g.Name, &g.Description, &defaultAgent, &contextConfig,
		&models, &stopWhen, &g.GraphPrompt, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return g, err
	}
	g.DefaultSubAgentID = deref(defaultAgent)
	g.ContextConfigID = deref(contextConfig)
	if err := fromJSONB(models, &g.Models); err != nil {
		return g, fmt.Errorf("decode models: %w", err)
	}
	if err := fromJSONB(stopWhen, &g.StopWhen); err != nil {
		return g, fmt.Errorf("decode stop_when: %w", err)
	}
	return g, nil
}

func (s *Store) GetGraph(ctx context.Context, sc scope.Scope) (*agentgraph.Graph, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+graphColumns+` FROM agent_graphs WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, sc.GraphID)
	g, err := scanGraph(row)
	if err != nil {
		return nil, notFoundWrap(err, "get graph %s", sc)
	}
	return &g, nil
}

func (s *Store) ListGraphs(ctx context.Context, sc scope.Scope, opts database.ListOptions) (database.Page[agentgraph.Graph], error) {
	var page database.Page[agentgraph.Graph]
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM agent_graphs WHERE tenant_id = $1 AND project_id = $2`,
		sc.TenantID, sc.ProjectID).Scan(&page.Total)
	if err != nil {
		return page, fmt.Errorf("count graphs %s: %w", sc, err)
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+graphColumns+` FROM agent_graphs WHERE tenant_id = $1 AND project_id = $2
		 ORDER BY id LIMIT $3 OFFSET $4`,
		sc.TenantID, sc.ProjectID, limitArg(opts), opts.Offset)
	page.Items, err = collect(rows, err, scanGraph, "list graphs")
	return page, err
}

func graphArgs(g *agentgraph.Graph) (models, stopWhen []byte, err error) {
	if models, err = toJSONB(g.Models); err != nil {
		return nil, nil, fmt.Errorf("marshal models: %w", err)
	}
	if stopWhen, err = toJSONB(g.StopWhen); err != nil {
		return nil, nil, fmt.Errorf("marshal stop_when: %w", err)
	}
	return models, stopWhen, nil
}

func (s *Store) CreateGraph(ctx context.Context, sc scope.Scope, g *agentgraph.Graph) error {
	models, stopWhen, err := graphArgs(g)
	if err != nil {
		return err
	}
	now := s.timestamp()
	_, err = s.db.Exec(ctx,
		`INSERT INTO agent_graphs (tenant_id, `+graphColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`,
		sc.TenantID, g.ID, sc.ProjectID, g.Name, g.Description, nullIfEmpty(g.DefaultSubAgentID),
		nullIfEmpty(g.ContextConfigID), models, stopWhen, g.GraphPrompt, now)
	if err != nil {
		return writeErr(err, "create graph %s", g.ID)
	}
	g.ProjectID = sc.ProjectID
	g.CreatedAt, g.UpdatedAt = now, now
	return nil
}

func (s *Store) UpdateGraph(ctx context.Context, sc scope.Scope, g *agentgraph.Graph) error {
	models, stopWhen, err := graphArgs(g)
	if err != nil {
		return err
	}
	now := s.timestamp()
	tag, err := s.db.Exec(ctx,
		`UPDATE agent_graphs SET name = $4, description = $5, default_sub_agent_id = $6, context_config_id = $7,
		 models = $8, stop_when = $9, graph_prompt = $10, updated_at = $11
		 WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, g.ID, g.Name, g.Description, nullIfEmpty(g.DefaultSubAgentID),
		nullIfEmpty(g.ContextConfigID), models, stopWhen, g.GraphPrompt, now)
	if err := execExpectOne(tag, err, "update graph %s", g.ID); err != nil {
		return err
	}
	g.UpdatedAt = now
	return nil
}

func (s *Store) DeleteGraph(ctx context.Context, sc scope.Scope) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM agent_graphs WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, sc.GraphID)
	return execExpectOne(tag, err, "delete graph %s", sc)
}

// --- Sub-agents ---

const subAgentColumns = `id, graph_id, name, description, prompt, models, stop_when, created_at, updated_at`

func scanSubAgent(row scannable) (agentgraph.SubAgent, error) {
	var a agentgraph.SubAgent
	var models, stopWhen []byte
	err := row.Scan(&a.ID, &a.GraphID, &a.Name, &a.Description, &a.Prompt, &models, &stopWhen, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return a, err
	}
	if err := fromJSONB(models, &a.Models); err != nil {
		return a, fmt.Errorf("decode models: %w", err)
	}
	if err := fromJSONB(stopWhen, &a.StopWhen); err != nil {
		return a, fmt.Errorf("decode stop_when: %w", err)
	}
	return a, nil
}

func (s *Store) ListSubAgents(ctx context.Context, sc scope.Scope) ([]agentgraph.SubAgent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+subAgentColumns+` FROM sub_agents
		 WHERE tenant_id = $1 AND project_id = $2 AND graph_id = $3 ORDER BY id`,
		sc.TenantID, sc.ProjectID, sc.GraphID)
	return collect(rows, err, scanSubAgent, "list sub-agents")
}

func (s *Store) GetSubAgent(ctx context.Context, sc scope.Scope) (*agentgraph.SubAgent, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+subAgentColumns+` FROM sub_agents
		 WHERE tenant_id = $1 AND project_id = $2 AND graph_id = $3 AND id = $4`,
		sc.TenantID, sc.ProjectID, sc.GraphID, sc.SubAgentID)
	a, err := scanSubAgent(row)
	if err != nil {
		return nil, notFoundWrap(err, "get sub-agent %s", sc)
	}
	return &a, nil
}

func (s *Store) CreateSubAgent(ctx context.Context, sc scope.Scope, a *agentgraph.SubAgent) error {
	models, err := toJSONB(a.Models)
	if err != nil {
		return fmt.Errorf("marshal models: %w", err)
	}
	stopWhen, err := toJSONB(a.StopWhen)
	if err != nil {
		return fmt.Errorf("marshal stop_when: %w", err)
	}
	now := s.timestamp()
	_, err = s.db.Exec(ctx,
		`INSERT INTO sub_agents (tenant_id, project_id, `+subAgentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		sc.TenantID, sc.ProjectID, a.ID, sc.GraphID, a.Name, a.Description, a.Prompt, models, stopWhen, now)
	if err != nil {
		return writeErr(err, "create sub-agent %s", a.ID)
	}
	a.GraphID = sc.GraphID
	a.CreatedAt, a.UpdatedAt = now, now
	return nil
}

func (s *Store) UpdateSubAgent(ctx context.Context, sc scope.Scope, a *agentgraph.SubAgent) error {
	models, err := toJSONB(a.Models)
	if err != nil {
		return fmt.Errorf("marshal models: %w", err)
	}
	stopWhen, err := toJSONB(a.StopWhen)
	if err != nil {
		return fmt.Errorf("marshal stop_when: %w", err)
	}
	now := s.timestamp()
	tag, err := s.db.Exec(ctx,
		`UPDATE sub_agents SET name = $5, description = $6, prompt = $7, models = $8, stop_when = $9, updated_at = $10
		 WHERE tenant_id = $1 AND project_id = $2 AND graph_id = $3 AND id = $4`,
		sc.TenantID, sc.ProjectID, sc.GraphID, a.ID, a.Name, a.Description, a.Prompt, models, stopWhen, now)
	if err := execExpectOne(tag, err, "update sub-agent %s", a.ID); err != nil {
		return err
	}
	a.UpdatedAt = now
	return nil
}

func (s *Store) DeleteSubAgent(ctx context.Context, sc scope.Scope) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM sub_agents WHERE tenant_id = $1 AND project_id = $2 AND graph_id = $3 AND id = $4`,
		sc.TenantID, sc.ProjectID, sc.GraphID, sc.SubAgentID)
	return execExpectOne(tag, err, "delete sub-agent %s", sc)
}

// --- Relations ---

const relationColumns = `id, graph_id, source_sub_agent_id, target_sub_agent_id, external_sub_agent_id,
	relation_type, created_at, updated_at`

func scanRelation(row scannable) (agentgraph.Relation, error) {
	var r agentgraph.Relation
	var target, external *string
	err := row.Scan(&r.ID, &r.GraphID, &r.SourceSubAgentID, &target, &external, &r.Type, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	r.Target, err = agentgraph.TargetFromColumns(deref(target), deref(external))
	if err != nil {
		return r, fmt.Errorf("relation %s: %w", r.ID, err)
	}
	return r, nil
}

func (s *Store) ListRelations(ctx context.Context, sc scope.Scope) ([]agentgraph.Relation, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+relationColumns+` FROM sub_agent_relations
		 WHERE tenant_id = $1 AND project_id = $2 AND graph_id = $3 ORDER BY id`,
		sc.TenantID, sc.ProjectID, sc.GraphID)
	return collect(rows, err, scanRelation, "list relations")
}

func (s *Store) CreateRelation(ctx context.Context, sc scope.Scope, r *agentgraph.Relation) error {
	if err := r.Validate(); err != nil {
		return err
	}
	ensureID(&r.ID)
	target, external := r.Columns()
	now := s.timestamp()
	_, err := s.db.Exec(ctx,
		`INSERT INTO sub_agent_relations (tenant_id, project_id, `+relationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		sc.TenantID, sc.ProjectID, r.ID, sc.GraphID, r.SourceSubAgentID,
		nullIfEmpty(target), nullIfEmpty(external), string(r.Type), now)
	if err != nil {
		return writeErr(err, "create relation %s", r.ID)
	}
	r.GraphID = sc.GraphID
	r.CreatedAt, r.UpdatedAt = now, now
	return nil
}

func (s *Store) DeleteRelation(ctx context.Context, sc scope.Scope, id string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM sub_agent_relations WHERE tenant_id = $1 AND project_id = $2 AND graph_id = $3 AND id = $4`,
		sc.TenantID, sc.ProjectID, sc.GraphID, id)
	return execExpectOne(tag, err, "delete relation %s", id)
}

// --- External agents ---

const externalAgentColumns = `id, graph_id, name, description, base_url, credential_reference_id, headers,
	created_at, updated_at`

func scanExternalAgent(row scannable) (agentgraph.ExternalAgent, error) {
	var e agentgraph.ExternalAgent
	var credential *string
	var headers []byte
	err := row.Scan(&e.ID, &e.GraphID, &e.Name, &e.Description, &e.BaseURL, &credential, &headers, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return e, err
	}
	e.CredentialReferenceID = deref(credential)
	if err := fromJSONB(headers, &e.Headers); err != nil {
		return e, fmt.Errorf("decode headers: %w", err)
	}
	return e, nil
}

func (s *Store) ListExternalAgents(ctx context.Context, sc scope.Scope) ([]agentgraph.ExternalAgent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+externalAgentColumns+` FROM external_agents
		 WHERE tenant_id = $1 AND project_id = $2 AND graph_id = $3 ORDER BY id`,
		sc.TenantID, sc.ProjectID, sc.GraphID)
	return collect(rows, err, scanExternalAgent, "list external agents")
}

func (s *Store) GetExternalAgent(ctx context.Context, sc scope.Scope, id string) (*agentgraph.ExternalAgent, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+externalAgentColumns+` FROM external_agents
		 WHERE tenant_id = $1 AND project_id = $2 AND graph_id = $3 AND id = $4`,
		sc.TenantID, sc.ProjectID, sc.GraphID, id)
	e, err := scanExternalAgent(row)
	if err != nil {
		return nil, notFoundWrap(err, "get external agent %s", id)
	}
	return &e, nil
}

func (s *Store) CreateExternalAgent(ctx context.Context, sc scope.Scope, e *agentgraph.ExternalAgent) error {
	headers, err := toJSONB(e.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	now := s.timestamp()
	_, err = s.db.Exec(ctx,
		`INSERT INTO external_agents (tenant_id, project_id, `+externalAgentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		sc.TenantID, sc.ProjectID, e.ID, sc.GraphID, e.Name, e.Description, e.BaseURL,
		nullIfEmpty(e.CredentialReferenceID), headers, now)
	if err != nil {
		return writeErr(err, "create external agent %s", e.ID)
	}
	e.GraphID = sc.GraphID
	e.CreatedAt, e.UpdatedAt = now, now
	return nil
}

func (s *Store) UpdateExternalAgent(ctx context.Context, sc scope.Scope, e *agentgraph.ExternalAgent) error {
	headers, err := toJSONB(e.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	now := s.timestamp()
	tag, err := s.db.Exec(ctx,
		`UPDATE external_agents SET name = $5, description = $6, base_url = $7, credential_reference_id = $8,
		 headers = $9, updated_at = $10
		 WHERE tenant_id = $1 AND project_id = $2 AND graph_id = $3 AND id = $4`,
		sc.TenantID, sc.ProjectID, sc.GraphID, e.ID, e.Name, e.Description, e.BaseURL,
		nullIfEmpty(e.CredentialReferenceID), headers, now)
	if err := execExpectOne(tag, err, "update external agent %s", e.ID); err != nil {
		return err
	}
	e.UpdatedAt = now
	return nil
}

func (s *Store) DeleteExternalAgent(ctx context.Context, sc scope.Scope, id string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM external_agents WHERE tenant_id = $1 AND project_id = $2 AND graph_id = $3 AND id = $4`,
		sc.TenantID, sc.ProjectID, sc.GraphID, id)
	return execExpectOne(tag, err, "delete external agent %s", id)
}
