package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/domain/tool"
	"github.com/Strob0t/agentgraph/internal/port/database"
)

// --- Tools ---

const toolColumns = `id, name, description, config, credential_reference_id, headers, image_url, status,
	capabilities, available_tools, last_error, created_at, updated_at`

func scanTool(row scannable) (tool.Tool, error) {
	var t tool.Tool
	var cfg, headers, capabilities, available []byte
	var credential *string
	err := row.Scan(&t.ID, &t.Name, &t.Description, &cfg, &credential, &headers, &t.ImageURL, &t.Status,
		&capabilities, &available, &t.LastError, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	t.CredentialReferenceID = deref(credential)
	t.Capabilities = rawJSON(capabilities)
	if err := fromJSONB(cfg, &t.Config); err != nil {
		return t, fmt.Errorf("decode config: %w", err)
	}
	if err := fromJSONB(headers, &t.Headers); err != nil {
		return t, fmt.Errorf("decode headers: %w", err)
	}
	if err := fromJSONB(available, &t.AvailableTools); err != nil {
		return t, fmt.Errorf("decode available_tools: %w", err)
	}
	return t, nil
}

type toolJSON struct {
	config, headers, capabilities, available []byte
}

func encodeTool(t *tool.Tool) (toolJSON, error) {
	var out toolJSON
	var err error
	if out.config, err = toJSONB(t.Config); err != nil {
		return out, fmt.Errorf("marshal config: %w", err)
	}
	if out.headers, err = toJSONB(t.Headers); err != nil {
		return out, fmt.Errorf("marshal headers: %w", err)
	}
	if len(t.Capabilities) > 0 {
		out.capabilities = t.Capabilities
	}
	if out.available, err = toJSONB(t.AvailableTools); err != nil {
		return out, fmt.Errorf("marshal available_tools: %w", err)
	}
	return out, nil
}

func toolStatus(t *tool.Tool) string {
	if t.Status == "" {
		return string(tool.StatusUnknown)
	}
	return string(t.Status)
}

func (s *Store) GetTool(ctx context.Context, sc scope.Scope, id string) (*tool.Tool, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+toolColumns+` FROM tools WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, id)
	t, err := scanTool(row)
	if err != nil {
		return nil, notFoundWrap(err, "get tool %s", id)
	}
	return &t, nil
}

func (s *Store) ListTools(ctx context.Context, sc scope.Scope, opts database.ListOptions) (database.Page[tool.Tool], error) {
	var page database.Page[tool.Tool]
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM tools WHERE tenant_id = $1 AND project_id = $2`,
		sc.TenantID, sc.ProjectID).Scan(&page.Total)
	if err != nil {
		return page, fmt.Errorf("count tools %s: %w", sc, err)
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+toolColumns+` FROM tools WHERE tenant_id = $1 AND project_id = $2
		 ORDER BY id LIMIT $3 OFFSET $4`,
		sc.TenantID, sc.ProjectID, limitArg(opts), opts.Offset)
	page.Items, err = collect(rows, err, scanTool, "list tools")
	return page, err
}

func (s *Store) CreateTool(ctx context.Context, sc scope.Scope, t *tool.Tool) error {
	j, err := encodeTool(t)
	if err != nil {
		return err
	}
	now := s.timestamp()
	_, err = s.db.Exec(ctx,
		`INSERT INTO tools (tenant_id, project_id, `+toolColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`,
		sc.TenantID, sc.ProjectID, t.ID, t.Name, t.Description, j.config, nullIfEmpty(t.CredentialReferenceID),
		j.headers, t.ImageURL, toolStatus(t), j.capabilities, j.available, t.LastError, now)
	if err != nil {
		return writeErr(err, "create tool %s", t.ID)
	}
	t.CreatedAt, t.UpdatedAt = now, now
	return nil
}

func (s *Store) UpdateTool(ctx context.Context, sc scope.Scope, t *tool.Tool) error {
	j, err := encodeTool(t)
	if err != nil {
		return err
	}
	now := s.timestamp()
	tag, err := s.db.Exec(ctx,
		`UPDATE tools SET name = $4, description = $5, config = $6, credential_reference_id = $7, headers = $8,
		 image_url = $9, status = $10, capabilities = $11, available_tools = $12, last_error = $13, updated_at = $14
		 WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, t.ID, t.Name, t.Description, j.config, nullIfEmpty(t.CredentialReferenceID),
		j.headers, t.ImageURL, toolStatus(t), j.capabilities, j.available, t.LastError, now)
	if err := execExpectOne(tag, err, "update tool %s", t.ID); err != nil {
		return err
	}
	t.UpdatedAt = now
	return nil
}

func (s *Store) DeleteTool(ctx context.Context, sc scope.Scope, id string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM tools WHERE tenant_id = $1 AND project_id = $2 AND id = $3`,
		sc.TenantID, sc.ProjectID, id)
	return execExpectOne(tag, err, "delete tool %s", id)
}

// --- Tool bindings ---

const toolBindingColumns = `id, graph_id, sub_agent_id, tool_id, selected_tools, headers, created_at, updated_at`

func scanToolBinding(row scannable) (tool.AgentBinding, error) {
	var b tool.AgentBinding
	var selected, headers []byte
	err := row.Scan(&b.ID, &b.GraphID, &b.SubAgentID, &b.ToolID, &selected, &headers, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return b, err
	}
	if err := fromJSONB(selected, &b.SelectedTools); err != nil {
		return b, fmt.Errorf("decode selected_tools: %w", err)
	}
	if err := fromJSONB(headers, &b.Headers); err != nil {
		return b, fmt.Errorf("decode headers: %w", err)
	}
	return b, nil
}

func (s *Store) ListToolBindings(ctx context.Context, sc scope.Scope) ([]tool.AgentBinding, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+toolBindingColumns+` FROM sub_agent_tool_relations
		 WHERE tenant_id = $1 AND project_id = $2 AND graph_id = $3 ORDER BY id`,
		sc.TenantID, sc.ProjectID, sc.GraphID)
	return collect(rows, err, scanToolBinding, "list tool bindings")
}

func (s *Store) CreateToolBinding(ctx context.Context, sc scope.Scope, b *tool.AgentBinding) error {
	ensureID(&b.ID)
	selected, err := toJSONB(b.SelectedTools)
	if err != nil {
		return fmt.Errorf("marshal selected_tools: %w", err)
	}
	headers, err := toJSONB(b.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	now := s.timestamp()
	_, err = s.db.Exec(ctx,
		`INSERT INTO sub_agent_tool_relations (tenant_id, project_id, `+toolBindingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		sc.TenantID, sc.ProjectID, b.ID, sc.GraphID, b.SubAgentID, b.ToolID, selected, headers, now)
	if err != nil {
		return writeErr(err, "create tool binding %s", b.ID)
	}
	b.GraphID = sc.GraphID
	b.CreatedAt, b.UpdatedAt = now, now
	return nil
}

func (s *Store) UpdateToolBinding(ctx context.Context, sc scope.Scope, b *tool.AgentBinding) error {
	selected, err := toJSONB(b.SelectedTools)
	if err != nil {
		return fmt.Errorf("marshal selected_tools: %w", err)
	}
	headers, err := toJSONB(b.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	now := s.timestamp()
	tag, err := s.db.Exec(ctx,
		`UPDATE sub_agent_tool_relations SET selected_tools = $5, headers = $6, updated_at = $7
		 WHERE tenant_id = $1 AND project_id = $2 AND graph_id = $3 AND id = $4`,
		sc.TenantID, sc.ProjectID, sc.GraphID, b.ID, selected, headers, now)
	if err := execExpectOne(tag, err, "update tool binding %s", b.ID); err != nil {
		return err
	}
	b.UpdatedAt = now
	return nil
}

func (s *Store) DeleteToolBinding(ctx context.Context, sc scope.Scope, id string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM sub_agent_tool_relations WHERE tenant_id = $1 AND project_id = $2 AND graph_id = $3 AND id = $4`,
		sc.TenantID, sc.ProjectID, sc.GraphID, id)
	return execExpectOne(tag, err, "delete tool binding %s", id)
}
