package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/agentgraph/internal/adapter/postgres"
	"github.com/Strob0t/agentgraph/internal/domain"
	"github.com/Strob0t/agentgraph/internal/domain/agentgraph"
	"github.com/Strob0t/agentgraph/internal/domain/contextcache"
	"github.com/Strob0t/agentgraph/internal/domain/project"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/domain/tool"
	"github.com/Strob0t/agentgraph/internal/port/database"
)

// setupStore creates a pgxpool connection, runs all migrations, and returns a
// ready-to-use Store. The pool is closed via t.Cleanup.
func setupStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	return postgres.NewStore(pool)
}

// freshScope returns a graph scope under a tenant no other test uses.
func freshScope(t *testing.T) scope.Scope {
	t.Helper()
	return scope.Graph("t-"+uuid.NewString(), "p1", "g1")
}

func seedGraph(t *testing.T, s *postgres.Store, sc scope.Scope) {
	t.Helper()
	ctx := context.Background()
	if err := s.CreateProject(ctx, &project.Project{ID: sc.ProjectID, TenantID: sc.TenantID, Name: "P"}); err != nil {
		t.Fatalf("create project: %v", err)
	}
	if err := s.CreateGraph(ctx, sc, &agentgraph.Graph{ID: sc.GraphID, Name: "G", DefaultSubAgentID: "a1"}); err != nil {
		t.Fatalf("create graph: %v", err)
	}
	for _, id := range []string{"a1", "a2"} {
		if err := s.CreateSubAgent(ctx, sc, &agentgraph.SubAgent{ID: id, Name: id}); err != nil {
			t.Fatalf("create sub-agent %s: %v", id, err)
		}
	}
}

func TestProjectCRUD(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	sc := freshScope(t).ProjectScope()

	p := &project.Project{ID: sc.ProjectID, TenantID: sc.TenantID, Name: "first"}
	if err := s.CreateProject(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.CreatedAt == "" || p.CreatedAt != p.UpdatedAt {
		t.Fatalf("timestamps not set: %+v", p)
	}
	if err := s.CreateProject(ctx, p); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate create: want ErrConflict, got %v", err)
	}

	p.Name = "second"
	if err := s.UpdateProject(ctx, p); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.GetProject(ctx, sc)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "second" {
		t.Fatalf("name = %q", got.Name)
	}

	if err := s.DeleteProject(ctx, sc); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetProject(ctx, sc); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get after delete: want ErrNotFound, got %v", err)
	}
}

func TestRelationsRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	sc := freshScope(t)
	seedGraph(t, s, sc)

	if err := s.CreateExternalAgent(ctx, sc, &agentgraph.ExternalAgent{ID: "ext", Name: "Ext", BaseURL: "https://ext.example"}); err != nil {
		t.Fatalf("create external agent: %v", err)
	}
	rels := []agentgraph.Relation{
		{SourceSubAgentID: "a1", Type: agentgraph.RelationTransfer, Target: agentgraph.InternalTarget{SubAgentID: "a2"}},
		{SourceSubAgentID: "a1", Type: agentgraph.RelationDelegate, Target: agentgraph.ExternalTarget{ExternalAgentID: "ext"}},
	}
	for i := range rels {
		if err := s.CreateRelation(ctx, sc, &rels[i]); err != nil {
			t.Fatalf("create relation: %v", err)
		}
	}

	got, err := s.ListRelations(ctx, sc)
	if err != nil {
		t.Fatalf("list relations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d relations, want 2", len(got))
	}
	for i := range got {
		if got[i].Key() != rels[i].Key() {
			t.Errorf("relation %d: key %+v, want %+v", i, got[i].Key(), rels[i].Key())
		}
	}
	if got[1].Kind() != agentgraph.KindExternalDelegate {
		t.Errorf("kind = %v", got[1].Kind())
	}
}

func TestToolBindingNullVersusEmpty(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	sc := freshScope(t)
	seedGraph(t, s, sc)

	tl := &tool.Tool{ID: "t1", Name: "T", Config: tool.Config{Type: tool.ConfigMCP, MCP: &tool.MCPConfig{Server: tool.MCPServer{URL: "http://mcp"}}}}
	if err := s.CreateTool(ctx, sc.ProjectScope(), tl); err != nil {
		t.Fatalf("create tool: %v", err)
	}
	bindings := []tool.AgentBinding{
		{SubAgentID: "a1", ToolID: "t1"},
		{SubAgentID: "a2", ToolID: "t1", SelectedTools: []string{}, Headers: map[string]string{}},
	}
	for i := range bindings {
		if err := s.CreateToolBinding(ctx, sc, &bindings[i]); err != nil {
			t.Fatalf("create binding: %v", err)
		}
	}

	got, err := s.ListToolBindings(ctx, sc)
	if err != nil {
		t.Fatalf("list bindings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d bindings", len(got))
	}
	if got[0].SelectedTools != nil || got[0].Headers != nil {
		t.Errorf("a1 binding: want nil selection and headers, got %v %v", got[0].SelectedTools, got[0].Headers)
	}
	if got[1].SelectedTools == nil || len(got[1].SelectedTools) != 0 {
		t.Errorf("a2 binding: want empty non-nil selection, got %#v", got[1].SelectedTools)
	}
	if err := s.CreateToolBinding(ctx, sc, &tool.AgentBinding{SubAgentID: "a1", ToolID: "t1"}); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate binding: want ErrConflict, got %v", err)
	}
}

func TestProjectProbes(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	sc := freshScope(t)

	has, err := s.HasProjectResource(ctx, sc, database.ResourceGraphs)
	if err != nil || has {
		t.Fatalf("empty project: has=%v err=%v", has, err)
	}
	seedGraph(t, s, sc)
	has, err = s.HasProjectResource(ctx, sc, database.ResourceSubAgents)
	if err != nil || !has {
		t.Fatalf("seeded project: has=%v err=%v", has, err)
	}
	ids, err := s.DistinctProjectIDs(ctx, sc.TenantID, database.ResourceGraphs)
	if err != nil {
		t.Fatalf("distinct: %v", err)
	}
	if len(ids) != 1 || ids[0] != sc.ProjectID {
		t.Fatalf("ids = %v", ids)
	}
	if _, err := s.HasProjectResource(ctx, sc, "users; DROP TABLE projects"); err == nil {
		t.Fatal("unknown resource kind accepted")
	}
}

func TestContextCacheUpsertKeepsIdentity(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	sc := freshScope(t).ProjectScope()
	key := contextcache.Key{ConversationID: "c1", ContextConfigID: "cc", ContextVariableKey: "user"}
	h1 := "h1"

	first := &contextcache.Entry{ConversationID: key.ConversationID, ContextConfigID: key.ContextConfigID,
		ContextVariableKey: key.ContextVariableKey, Value: []byte(`{"v":1}`), RequestHash: &h1,
		FetchedAt: "2025-01-01T00:00:00.000Z", FetchSource: key.FetchSource()}
	if err := s.UpsertContextCacheEntry(ctx, sc, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second := *first
	second.ID = ""
	second.Value = []byte(`{"v":2}`)
	if err := s.UpsertContextCacheEntry(ctx, sc, &second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert changed id: %s -> %s", first.ID, second.ID)
	}

	got, err := s.GetContextCacheEntry(ctx, sc, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Value) != `{"v": 2}` && string(got.Value) != `{"v":2}` {
		t.Fatalf("value = %s", got.Value)
	}

	n, err := s.DeleteContextCacheByTenant(ctx, sc.TenantID)
	if err != nil || n != 1 {
		t.Fatalf("cleanup tenant: n=%d err=%v", n, err)
	}
}
