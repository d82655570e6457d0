package memory

import (
	"context"

	"github.com/Strob0t/agentgraph/internal/domain/component"
	"github.com/Strob0t/agentgraph/internal/domain/contextconfig"
	"github.com/Strob0t/agentgraph/internal/domain/credential"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/domain/tool"
	"github.com/Strob0t/agentgraph/internal/port/database"
)

// --- Tools ---

func (s *Store) GetTool(_ context.Context, sc scope.Scope, id string) (*tool.Tool, error) {
	defer s.read()()
	t, ok := s.data.tools.get(sc.TenantID, sc.ProjectID, "", id)
	if !ok {
		return nil, notFound("tool", id)
	}
	return &t, nil
}

func (s *Store) ListTools(_ context.Context, sc scope.Scope, opts database.ListOptions) (database.Page[tool.Tool], error) {
	defer s.read()()
	return paginate(s.data.tools.where(projectRows[tool.Tool](sc)), opts), nil
}

func (s *Store) CreateTool(_ context.Context, sc scope.Scope, t *tool.Tool) error {
	defer s.write()()
	if _, ok := s.data.tools.get(sc.TenantID, sc.ProjectID, "", t.ID); ok {
		return conflict("tool", t.ID)
	}
	if t.Status == "" {
		t.Status = tool.StatusUnknown
	}
	t.CreatedAt, t.UpdatedAt = s.timestamp(), s.timestamp()
	s.data.tools.put(record[tool.Tool]{tenant: sc.TenantID, project: sc.ProjectID, id: t.ID, v: *t})
	return nil
}

func (s *Store) UpdateTool(_ context.Context, sc scope.Scope, t *tool.Tool) error {
	defer s.write()()
	old, ok := s.data.tools.get(sc.TenantID, sc.ProjectID, "", t.ID)
	if !ok {
		return notFound("tool", t.ID)
	}
	if t.Status == "" {
		t.Status = tool.StatusUnknown
	}
	t.CreatedAt, t.UpdatedAt = old.CreatedAt, s.timestamp()
	s.data.tools.put(record[tool.Tool]{tenant: sc.TenantID, project: sc.ProjectID, id: t.ID, v: *t})
	return nil
}

func (s *Store) DeleteTool(_ context.Context, sc scope.Scope, id string) error {
	defer s.write()()
	if !s.data.tools.del(sc.TenantID, sc.ProjectID, "", id) {
		return notFound("tool", id)
	}
	return nil
}

// --- Tool bindings ---

func (s *Store) ListToolBindings(_ context.Context, sc scope.Scope) ([]tool.AgentBinding, error) {
	defer s.read()()
	return s.data.toolBindings.where(graphRows[tool.AgentBinding](sc)), nil
}

func (s *Store) CreateToolBinding(_ context.Context, sc scope.Scope, b *tool.AgentBinding) error {
	defer s.write()()
	dup := s.data.toolBindings.where(func(r record[tool.AgentBinding]) bool {
		return graphRows[tool.AgentBinding](sc)(r) && r.v.SubAgentID == b.SubAgentID && r.v.ToolID == b.ToolID
	})
	if len(dup) > 0 {
		return conflict("tool binding", b.SubAgentID+"/"+b.ToolID)
	}
	ensureID(&b.ID)
	b.GraphID = sc.GraphID
	b.CreatedAt, b.UpdatedAt = s.timestamp(), s.timestamp()
	s.data.toolBindings.put(record[tool.AgentBinding]{tenant: sc.TenantID, project: sc.ProjectID, graph: sc.GraphID, id: b.ID, v: *b})
	return nil
}

func (s *Store) UpdateToolBinding(_ context.Context, sc scope.Scope, b *tool.AgentBinding) error {
	defer s.write()()
	old, ok := s.data.toolBindings.get(sc.TenantID, sc.ProjectID, sc.GraphID, b.ID)
	if !ok {
		return notFound("tool binding", b.ID)
	}
	old.SelectedTools, old.Headers, old.UpdatedAt = b.SelectedTools, b.Headers, s.timestamp()
	*b = old
	s.data.toolBindings.put(record[tool.AgentBinding]{tenant: sc.TenantID, project: sc.ProjectID, graph: sc.GraphID, id: b.ID, v: old})
	return nil
}

func (s *Store) DeleteToolBinding(_ context.Context, sc scope.Scope, id string) error {
	defer s.write()()
	if !s.data.toolBindings.del(sc.TenantID, sc.ProjectID, sc.GraphID, id) {
		return notFound("tool binding", id)
	}
	return nil
}

// --- Components ---

func (s *Store) GetDataComponent(_ context.Context, sc scope.Scope, id string) (*component.DataComponent, error) {
	defer s.read()()
	c, ok := s.data.dataComponents.get(sc.TenantID, sc.ProjectID, "", id)
	if !ok {
		return nil, notFound("data component", id)
	}
	return &c, nil
}

func (s *Store) ListDataComponents(_ context.Context, sc scope.Scope, opts database.ListOptions) (database.Page[component.DataComponent], error) {
	defer s.read()()
	return paginate(s.data.dataComponents.where(projectRows[component.DataComponent](sc)), opts), nil
}

func (s *Store) CreateDataComponent(_ context.Context, sc scope.Scope, c *component.DataComponent) error {
	defer s.write()()
	if _, ok := s.data.dataComponents.get(sc.TenantID, sc.ProjectID, "", c.ID); ok {
		return conflict("data component", c.ID)
	}
	c.CreatedAt, c.UpdatedAt = s.timestamp(), s.timestamp()
	s.data.dataComponents.put(record[component.DataComponent]{tenant: sc.TenantID, project: sc.ProjectID, id: c.ID, v: *c})
	return nil
}

func (s *Store) UpdateDataComponent(_ context.Context, sc scope.Scope, c *component.DataComponent) error {
	defer s.write()()
	old, ok := s.data.dataComponents.get(sc.TenantID, sc.ProjectID, "", c.ID)
	if !ok {
		return notFound("data component", c.ID)
	}
	c.CreatedAt, c.UpdatedAt = old.CreatedAt, s.timestamp()
	s.data.dataComponents.put(record[component.DataComponent]{tenant: sc.TenantID, project: sc.ProjectID, id: c.ID, v: *c})
	return nil
}

func (s *Store) DeleteDataComponent(_ context.Context, sc scope.Scope, id string) error {
	defer s.write()()
	if !s.data.dataComponents.del(sc.TenantID, sc.ProjectID, "", id) {
		return notFound("data component", id)
	}
	return nil
}

func (s *Store) GetArtifactComponent(_ context.Context, sc scope.Scope, id string) (*component.ArtifactComponent, error) {
	defer s.read()()
	c, ok := s.data.artifactComponents.get(sc.TenantID, sc.ProjectID, "", id)
	if !ok {
		return nil, notFound("artifact component", id)
	}
	return &c, nil
}

func (s *Store) ListArtifactComponents(_ context.Context, sc scope.Scope, opts database.ListOptions) (database.Page[component.ArtifactComponent], error) {
	defer s.read()()
	return paginate(s.data.artifactComponents.where(projectRows[component.ArtifactComponent](sc)), opts), nil
}

func (s *Store) CreateArtifactComponent(_ context.Context, sc scope.Scope, c *component.ArtifactComponent) error {
	defer s.write()()
	if _, ok := s.data.artifactComponents.get(sc.TenantID, sc.ProjectID, "", c.ID); ok {
		return conflict("artifact component", c.ID)
	}
	c.CreatedAt, c.UpdatedAt = s.timestamp(), s.timestamp()
	s.data.artifactComponents.put(record[component.ArtifactComponent]{tenant: sc.TenantID, project: sc.ProjectID, id: c.ID, v: *c})
	return nil
}

func (s *Store) UpdateArtifactComponent(_ context.Context, sc scope.Scope, c *component.ArtifactComponent) error {
	defer s.write()()
	old, ok := s.data.artifactComponents.get(sc.TenantID, sc.ProjectID, "", c.ID)
	if !ok {
		return notFound("artifact component", c.ID)
	}
	c.CreatedAt, c.UpdatedAt = old.CreatedAt, s.timestamp()
	s.data.artifactComponents.put(record[component.ArtifactComponent]{tenant: sc.TenantID, project: sc.ProjectID, id: c.ID, v: *c})
	return nil
}

func (s *Store) DeleteArtifactComponent(_ context.Context, sc scope.Scope, id string) error {
	defer s.write()()
	if !s.data.artifactComponents.del(sc.TenantID, sc.ProjectID, "", id) {
		return notFound("artifact component", id)
	}
	return nil
}

// --- Component bindings ---

func (s *Store) createBinding(t table[component.Binding], kind string, sc scope.Scope, b *component.Binding) error {
	dup := t.where(func(r record[component.Binding]) bool {
		return graphRows[component.Binding](sc)(r) && r.v.SubAgentID == b.SubAgentID && r.v.ComponentID == b.ComponentID
	})
	if len(dup) > 0 {
		return conflict(kind, b.SubAgentID+"/"+b.ComponentID)
	}
	ensureID(&b.ID)
	b.GraphID = sc.GraphID
	b.CreatedAt = s.timestamp()
	t.put(record[component.Binding]{tenant: sc.TenantID, project: sc.ProjectID, graph: sc.GraphID, id: b.ID, v: *b})
	return nil
}

func (s *Store) ListDataBindings(_ context.Context, sc scope.Scope) ([]component.Binding, error) {
	defer s.read()()
	return s.data.dataBindings.where(graphRows[component.Binding](sc)), nil
}

func (s *Store) CreateDataBinding(_ context.Context, sc scope.Scope, b *component.Binding) error {
	defer s.write()()
	return s.createBinding(s.data.dataBindings, "data binding", sc, b)
}

func (s *Store) DeleteDataBinding(_ context.Context, sc scope.Scope, id string) error {
	defer s.write()()
	if !s.data.dataBindings.del(sc.TenantID, sc.ProjectID, sc.GraphID, id) {
		return notFound("data binding", id)
	}
	return nil
}

func (s *Store) ListArtifactBindings(_ context.Context, sc scope.Scope) ([]component.Binding, error) {
	defer s.read()()
	return s.data.artifactBindings.where(graphRows[component.Binding](sc)), nil
}

func (s *Store) CreateArtifactBinding(_ context.Context, sc scope.Scope, b *component.Binding) error {
	defer s.write()()
	return s.createBinding(s.data.artifactBindings, "artifact binding", sc, b)
}

func (s *Store) DeleteArtifactBinding(_ context.Context, sc scope.Scope, id string) error {
	defer s.write()()
	if !s.data.artifactBindings.del(sc.TenantID, sc.ProjectID, sc.GraphID, id) {
		return notFound("artifact binding", id)
	}
	return nil
}

// --- Context configs ---

func (s *Store) GetContextConfig(_ context.Context, sc scope.Scope, id string) (*contextconfig.ContextConfig, error) {
	defer s.read()()
	c, ok := s.data.contextConfigs.get(sc.TenantID, sc.ProjectID, "", id)
	if !ok {
		return nil, notFound("context config", id)
	}
	return &c, nil
}

func (s *Store) ListContextConfigs(_ context.Context, sc scope.Scope) ([]contextconfig.ContextConfig, error) {
	defer s.read()()
	return s.data.contextConfigs.where(projectRows[contextconfig.ContextConfig](sc)), nil
}

func (s *Store) CreateContextConfig(_ context.Context, sc scope.Scope, c *contextconfig.ContextConfig) error {
	defer s.write()()
	if _, ok := s.data.contextConfigs.get(sc.TenantID, sc.ProjectID, "", c.ID); ok {
		return conflict("context config", c.ID)
	}
	c.Normalize()
	c.CreatedAt, c.UpdatedAt = s.timestamp(), s.timestamp()
	s.data.contextConfigs.put(record[contextconfig.ContextConfig]{tenant: sc.TenantID, project: sc.ProjectID, id: c.ID, v: *c})
	return nil
}

func (s *Store) UpdateContextConfig(_ context.Context, sc scope.Scope, c *contextconfig.ContextConfig) error {
	defer s.write()()
	old, ok := s.data.contextConfigs.get(sc.TenantID, sc.ProjectID, "", c.ID)
	if !ok {
		return notFound("context config", c.ID)
	}
	c.Normalize()
	c.CreatedAt, c.UpdatedAt = old.CreatedAt, s.timestamp()
	s.data.contextConfigs.put(record[contextconfig.ContextConfig]{tenant: sc.TenantID, project: sc.ProjectID, id: c.ID, v: *c})
	return nil
}

func (s *Store) DeleteContextConfig(_ context.Context, sc scope.Scope, id string) error {
	defer s.write()()
	if !s.data.contextConfigs.del(sc.TenantID, sc.ProjectID, "", id) {
		return notFound("context config", id)
	}
	return nil
}

// --- Credential references ---

func (s *Store) GetCredentialReference(_ context.Context, sc scope.Scope, id string) (*credential.Reference, error) {
	defer s.read()()
	c, ok := s.data.credentials.get(sc.TenantID, sc.ProjectID, "", id)
	if !ok {
		return nil, notFound("credential reference", id)
	}
	return &c, nil
}

func (s *Store) ListCredentialReferences(_ context.Context, sc scope.Scope, opts database.ListOptions) (database.Page[credential.Reference], error) {
	defer s.read()()
	return paginate(s.data.credentials.where(projectRows[credential.Reference](sc)), opts), nil
}

func (s *Store) CreateCredentialReference(_ context.Context, sc scope.Scope, c *credential.Reference) error {
	defer s.write()()
	if _, ok := s.data.credentials.get(sc.TenantID, sc.ProjectID, "", c.ID); ok {
		return conflict("credential reference", c.ID)
	}
	c.CreatedAt, c.UpdatedAt = s.timestamp(), s.timestamp()
	s.data.credentials.put(record[credential.Reference]{tenant: sc.TenantID, project: sc.ProjectID, id: c.ID, v: *c})
	return nil
}

func (s *Store) UpdateCredentialReference(_ context.Context, sc scope.Scope, c *credential.Reference) error {
	defer s.write()()
	old, ok := s.data.credentials.get(sc.TenantID, sc.ProjectID, "", c.ID)
	if !ok {
		return notFound("credential reference", c.ID)
	}
	c.CreatedAt, c.UpdatedAt = old.CreatedAt, s.timestamp()
	s.data.credentials.put(record[credential.Reference]{tenant: sc.TenantID, project: sc.ProjectID, id: c.ID, v: *c})
	return nil
}

func (s *Store) DeleteCredentialReference(_ context.Context, sc scope.Scope, id string) error {
	defer s.write()()
	if !s.data.credentials.del(sc.TenantID, sc.ProjectID, "", id) {
		return notFound("credential reference", id)
	}
	return nil
}
