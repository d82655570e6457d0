package memory

import (
	"context"
	"fmt"

	"github.com/Strob0t/agentgraph/internal/domain/agentgraph"
	"github.com/Strob0t/agentgraph/internal/domain/project"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/port/database"
)

// --- Projects ---

func (s *Store) GetProject(_ context.Context, sc scope.Scope) (*project.Project, error) {
	defer s.read()()
	p, ok := s.data.projects.get(sc.TenantID, "", "", sc.ProjectID)
	if !ok {
		return nil, notFound("project", sc.String())
	}
	return &p, nil
}

func (s *Store) ListProjectRows(_ context.Context, tenantID string) ([]project.Project, error) {
	defer s.read()()
	return s.data.projects.where(func(r record[project.Project]) bool { return r.tenant == tenantID }), nil
}

func (s *Store) CreateProject(_ context.Context, p *project.Project) error {
	defer s.write()()
	if _, ok := s.data.projects.get(p.TenantID, "", "", p.ID); ok {
		return conflict("project", p.ID)
	}
	p.CreatedAt, p.UpdatedAt = s.timestamp(), s.timestamp()
	s.data.projects.put(record[project.Project]{tenant: p.TenantID, id: p.ID, v: *p})
	return nil
}

func (s *Store) UpdateProject(_ context.Context, p *project.Project) error {
	defer s.write()()
	old, ok := s.data.projects.get(p.TenantID, "", "", p.ID)
	if !ok {
		return notFound("project", p.ID)
	}
	p.CreatedAt, p.UpdatedAt = old.CreatedAt, s.timestamp()
	s.data.projects.put(record[project.Project]{tenant: p.TenantID, id: p.ID, v: *p})
	return nil
}

func (s *Store) DeleteProject(_ context.Context, sc scope.Scope) error {
	defer s.write()()
	if !s.data.projects.del(sc.TenantID, "", "", sc.ProjectID) {
		return notFound("project", sc.String())
	}
	return nil
}

// projectIDs returns, per resource kind, the tenant/project columns of every row.
func (st *state) projectIDs(kind database.ResourceKind) ([][2]string, error) {
	var out [][2]string
	collect := func(tenant, project string) { out = append(out, [2]string{tenant, project}) }
	switch kind {
	case database.ResourceSubAgents:
		eachRow(st.subAgents, collect)
	case database.ResourceGraphs:
		eachRow(st.graphs, collect)
	case database.ResourceTools:
		eachRow(st.tools, collect)
	case database.ResourceContextConfigs:
		eachRow(st.contextConfigs, collect)
	case database.ResourceExternalAgents:
		eachRow(st.externalAgents, collect)
	case database.ResourceTasks:
		eachRow(st.tasks, collect)
	case database.ResourceConversations:
		eachRow(st.conversations, collect)
	case database.ResourceDataComponents:
		eachRow(st.dataComponents, collect)
	case database.ResourceArtifactComponents:
		eachRow(st.artifactComponents, collect)
	case database.ResourceCredentialReferences:
		eachRow(st.credentials, collect)
	default:
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
	return out, nil
}

func eachRow[T any](t table[T], fn func(tenant, project string)) {
	for _, r := range t {
		fn(r.tenant, r.project)
	}
}

func (s *Store) HasProjectResource(_ context.Context, sc scope.Scope, kind database.ResourceKind) (bool, error) {
	defer s.read()()
	rows, err := s.data.projectIDs(kind)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if r[0] == sc.TenantID && r[1] == sc.ProjectID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DistinctProjectIDs(_ context.Context, tenantID string, kind database.ResourceKind) ([]string, error) {
	defer s.read()()
	rows, err := s.data.projectIDs(kind)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		if r[0] == tenantID && r[1] != "" && !seen[r[1]] {
			seen[r[1]] = true
			out = append(out, r[1])
		}
	}
	return out, nil
}

// --- Graphs ---

func (s *Store) GetGraph(_ context.Context, sc scope.Scope) (*agentgraph.Graph, error) {
	defer s.read()()
	g, ok := s.data.graphs.get(sc.TenantID, sc.ProjectID, "", sc.GraphID)
	if !ok {
		return nil, notFound("graph", sc.String())
	}
	return &g, nil
}

func (s *Store) ListGraphs(_ context.Context, sc scope.Scope, opts database.ListOptions) (database.Page[agentgraph.Graph], error) {
	defer s.read()()
	return paginate(s.data.graphs.where(projectRows[agentgraph.Graph](sc)), opts), nil
}

func (s *Store) CreateGraph(_ context.Context, sc scope.Scope, g *agentgraph.Graph) error {
	defer s.write()()
	if _, ok := s.data.graphs.get(sc.TenantID, sc.ProjectID, "", g.ID); ok {
		return conflict("graph", g.ID)
	}
	g.ProjectID = sc.ProjectID
	g.CreatedAt, g.UpdatedAt = s.timestamp(), s.timestamp()
	s.data.graphs.put(record[agentgraph.Graph]{tenant: sc.TenantID, project: sc.ProjectID, id: g.ID, v: *g})
	return nil
}

func (s *Store) UpdateGraph(_ context.Context, sc scope.Scope, g *agentgraph.Graph) error {
	defer s.write()()
	old, ok := s.data.graphs.get(sc.TenantID, sc.ProjectID, "", g.ID)
	if !ok {
		return notFound("graph", g.ID)
	}
	g.ProjectID = sc.ProjectID
	g.CreatedAt, g.UpdatedAt = old.CreatedAt, s.timestamp()
	s.data.graphs.put(record[agentgraph.Graph]{tenant: sc.TenantID, project: sc.ProjectID, id: g.ID, v: *g})
	return nil
}

func (s *Store) DeleteGraph(_ context.Context, sc scope.Scope) error {
	defer s.write()()
	if !s.data.graphs.del(sc.TenantID, sc.ProjectID, "", sc.GraphID) {
		return notFound("graph", sc.String())
	}
	return nil
}

// --- Sub-agents ---

func (s *Store) ListSubAgents(_ context.Context, sc scope.Scope) ([]agentgraph.SubAgent, error) {
	defer s.read()()
	return s.data.subAgents.where(graphRows[agentgraph.SubAgent](sc)), nil
}

func (s *Store) GetSubAgent(_ context.Context, sc scope.Scope) (*agentgraph.SubAgent, error) {
	defer s.read()()
	a, ok := s.data.subAgents.get(sc.TenantID, sc.ProjectID, sc.GraphID, sc.SubAgentID)
	if !ok {
		return nil, notFound("sub-agent", sc.String())
	}
	return &a, nil
}

func (s *Store) CreateSubAgent(_ context.Context, sc scope.Scope, a *agentgraph.SubAgent) error {
	defer s.write()()
	if _, ok := s.data.subAgents.get(sc.TenantID, sc.ProjectID, sc.GraphID, a.ID); ok {
		return conflict("sub-agent", a.ID)
	}
	a.GraphID = sc.GraphID
	a.CreatedAt, a.UpdatedAt = s.timestamp(), s.timestamp()
	s.data.subAgents.put(record[agentgraph.SubAgent]{tenant: sc.TenantID, project: sc.ProjectID, graph: sc.GraphID, id: a.ID, v: *a})
	return nil
}

func (s *Store) UpdateSubAgent(_ context.Context, sc scope.Scope, a *agentgraph.SubAgent) error {
	defer s.write()()
	old, ok := s.data.subAgents.get(sc.TenantID, sc.ProjectID, sc.GraphID, a.ID)
	if !ok {
		return notFound("sub-agent", a.ID)
	}
	a.GraphID = sc.GraphID
	a.CreatedAt, a.UpdatedAt = old.CreatedAt, s.timestamp()
	s.data.subAgents.put(record[agentgraph.SubAgent]{tenant: sc.TenantID, project: sc.ProjectID, graph: sc.GraphID, id: a.ID, v: *a})
	return nil
}

func (s *Store) DeleteSubAgent(_ context.Context, sc scope.Scope) error {
	defer s.write()()
	if !s.data.subAgents.del(sc.TenantID, sc.ProjectID, sc.GraphID, sc.SubAgentID) {
		return notFound("sub-agent", sc.String())
	}
	return nil
}

// --- Relations ---

func (s *Store) ListRelations(_ context.Context, sc scope.Scope) ([]agentgraph.Relation, error) {
	defer s.read()()
	return s.data.relations.where(graphRows[agentgraph.Relation](sc)), nil
}

func (s *Store) CreateRelation(_ context.Context, sc scope.Scope, r *agentgraph.Relation) error {
	if err := r.Validate(); err != nil {
		return err
	}
	defer s.write()()
	ensureID(&r.ID)
	r.GraphID = sc.GraphID
	r.CreatedAt, r.UpdatedAt = s.timestamp(), s.timestamp()
	s.data.relations.put(record[agentgraph.Relation]{tenant: sc.TenantID, project: sc.ProjectID, graph: sc.GraphID, id: r.ID, v: *r})
	return nil
}

func (s *Store) DeleteRelation(_ context.Context, sc scope.Scope, id string) error {
	defer s.write()()
	if !s.data.relations.del(sc.TenantID, sc.ProjectID, sc.GraphID, id) {
		return notFound("relation", id)
	}
	return nil
}

// --- External agents ---

func (s *Store) ListExternalAgents(_ context.Context, sc scope.Scope) ([]agentgraph.ExternalAgent, error) {
	defer s.read()()
	return s.data.externalAgents.where(graphRows[agentgraph.ExternalAgent](sc)), nil
}

func (s *Store) GetExternalAgent(_ context.Context, sc scope.Scope, id string) (*agentgraph.ExternalAgent, error) {
	defer s.read()()
	e, ok := s.data.externalAgents.get(sc.TenantID, sc.ProjectID, sc.GraphID, id)
	if !ok {
		return nil, notFound("external agent", id)
	}
	return &e, nil
}

func (s *Store) CreateExternalAgent(_ context.Context, sc scope.Scope, e *agentgraph.ExternalAgent) error {
	defer s.write()()
	if _, ok := s.data.externalAgents.get(sc.TenantID, sc.ProjectID, sc.GraphID, e.ID); ok {
		return conflict("external agent", e.ID)
	}
	e.GraphID = sc.GraphID
	e.CreatedAt, e.UpdatedAt = s.timestamp(), s.timestamp()
	s.data.externalAgents.put(record[agentgraph.ExternalAgent]{tenant: sc.TenantID, project: sc.ProjectID, graph: sc.GraphID, id: e.ID, v: *e})
	return nil
}

func (s *Store) UpdateExternalAgent(_ context.Context, sc scope.Scope, e *agentgraph.ExternalAgent) error {
	defer s.write()()
	old, ok := s.data.externalAgents.get(sc.TenantID, sc.ProjectID, sc.GraphID, e.ID)
	if !ok {
		return notFound("external agent", e.ID)
	}
	e.GraphID = sc.GraphID
	e.CreatedAt, e.UpdatedAt = old.CreatedAt, s.timestamp()
	s.data.externalAgents.put(record[agentgraph.ExternalAgent]{tenant: sc.TenantID, project: sc.ProjectID, graph: sc.GraphID, id: e.ID, v: *e})
	return nil
}

func (s *Store) DeleteExternalAgent(_ context.Context, sc scope.Scope, id string) error {
	defer s.write()()
	if !s.data.externalAgents.del(sc.TenantID, sc.ProjectID, sc.GraphID, id) {
		return notFound("external agent", id)
	}
	return nil
}
