package mcp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	agmcp "github.com/Strob0t/agentgraph/internal/adapter/mcp"
	"github.com/Strob0t/agentgraph/internal/adapter/memory"
	"github.com/Strob0t/agentgraph/internal/domain/agentgraph"
	"github.com/Strob0t/agentgraph/internal/domain/project"
	"github.com/Strob0t/agentgraph/internal/domain/tool"
	"github.com/Strob0t/agentgraph/internal/port/database"
	"github.com/Strob0t/agentgraph/internal/service"
)

func newDeps(t *testing.T) agmcp.ServerDeps {
	t.Helper()
	store := memory.NewStore()
	graphs := service.NewGraphService(store, nil)
	projects := service.NewProjectService(store, graphs, nil)
	_, err := projects.CreateFullProject(context.Background(), "tenant-1", &project.FullProjectDefinition{
		ID:   "p1",
		Name: "Scenario",
		Graphs: map[string]agentgraph.FullGraphDefinition{
			"g1": {
				ID:                "g1",
				Name:              "Main",
				DefaultSubAgentID: "a1",
				SubAgents: map[string]agentgraph.SubAgentDefinition{
					"a1": {ID: "a1", Name: "Router", CanTransferTo: []string{"a2"}},
					"a2": {ID: "a2", Name: "Worker", CanUse: []agentgraph.ToolUse{{ToolID: "t1"}}},
				},
			},
		},
		Tools: map[string]tool.Tool{
			"t1": {ID: "t1", Name: "Search", Config: tool.Config{
				Type: tool.ConfigMCP,
				MCP:  &tool.MCPConfig{Server: tool.MCPServer{URL: "https://mcp.example.com/search"}},
			}},
		},
	})
	if err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return agmcp.ServerDeps{Projects: projects, Graphs: graphs}
}

func call(t *testing.T, s *agmcp.Server, name string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	tools := s.MCPServer().ListTools()
	tl, ok := tools[name]
	if !ok {
		t.Fatalf("%s tool not found", name)
	}
	result, err := tl.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return result
}

func text(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty result content")
	}
	tc, ok := result.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	return tc.Text
}

func TestNewServer(t *testing.T) {
	s := agmcp.NewServer(agmcp.ServerConfig{Addr: ":3001", Name: "test-server", Version: "0.1.0"}, agmcp.ServerDeps{})
	if s.MCPServer() == nil {
		t.Fatal("MCPServer() returned nil")
	}
}

func TestServerStartStop(t *testing.T) {
	s := agmcp.NewServer(agmcp.ServerConfig{Addr: "127.0.0.1:0", Name: "test-server", Version: "0.1.0"}, agmcp.ServerDeps{})
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestToolRegistration(t *testing.T) {
	s := agmcp.NewServer(agmcp.ServerConfig{Name: "test", Version: "0.1.0"}, agmcp.ServerDeps{})
	tools := s.MCPServer().ListTools()
	want := []string{"list_projects", "get_full_project", "get_full_graph"}
	if len(tools) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(tools))
	}
	for _, name := range want {
		if _, ok := tools[name]; !ok {
			t.Errorf("expected tool %q not registered", name)
		}
	}
}

func TestHandleListProjects(t *testing.T) {
	s := agmcp.NewServer(agmcp.ServerConfig{Name: "test", Version: "0.1.0"}, newDeps(t))
	result := call(t, s, "list_projects", map[string]any{"tenant_id": "tenant-1"})
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}
	var page database.Page[project.Project]
	if err := json.Unmarshal([]byte(text(t, result)), &page); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != "p1" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestHandleGetFullProject(t *testing.T) {
	s := agmcp.NewServer(agmcp.ServerConfig{Name: "test", Version: "0.1.0"}, newDeps(t))
	result := call(t, s, "get_full_project", map[string]any{"tenant_id": "tenant-1", "project_id": "p1"})
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}
	var def project.FullProjectDefinition
	if err := json.Unmarshal([]byte(text(t, result)), &def); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if def.ID != "p1" || len(def.Graphs["g1"].SubAgents) != 2 {
		t.Fatalf("unexpected project: %+v", def)
	}
	if _, ok := def.Tools["t1"]; !ok {
		t.Error("tool t1 missing from definition")
	}
}

func TestHandleGetFullGraph(t *testing.T) {
	s := agmcp.NewServer(agmcp.ServerConfig{Name: "test", Version: "0.1.0"}, newDeps(t))
	result := call(t, s, "get_full_graph", map[string]any{"tenant_id": "tenant-1", "project_id": "p1", "graph_id": "g1"})
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}
	var def agentgraph.FullGraphDefinition
	if err := json.Unmarshal([]byte(text(t, result)), &def); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if def.DefaultSubAgentID != "a1" {
		t.Errorf("defaultSubAgentId = %q, want a1", def.DefaultSubAgentID)
	}
	if got := def.SubAgents["a1"].CanTransferTo; len(got) != 1 || got[0] != "a2" {
		t.Errorf("a1.canTransferTo = %v, want [a2]", got)
	}
}

func TestToolErrors(t *testing.T) {
	deps := newDeps(t)
	tests := []struct {
		name    string
		deps    agmcp.ServerDeps
		tool    string
		args    map[string]any
		wantMsg string
	}{
		{"missing tenant", deps, "list_projects", map[string]any{}, "tenant_id is required"},
		{"missing project", deps, "get_full_project", map[string]any{"tenant_id": "tenant-1"}, "project_id is required"},
		{"missing graph", deps, "get_full_graph", map[string]any{"tenant_id": "tenant-1", "project_id": "p1"}, "graph_id is required"},
		{"unknown project", deps, "get_full_project", map[string]any{"tenant_id": "tenant-1", "project_id": "nope"}, "not found"},
		{"other tenant", deps, "get_full_graph", map[string]any{"tenant_id": "tenant-2", "project_id": "p1", "graph_id": "g1"}, "not found"},
		{"nil project reader", agmcp.ServerDeps{}, "list_projects", map[string]any{"tenant_id": "tenant-1"}, "not configured"},
		{"nil graph reader", agmcp.ServerDeps{}, "get_full_graph", map[string]any{"tenant_id": "t", "project_id": "p", "graph_id": "g"}, "not configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := agmcp.NewServer(agmcp.ServerConfig{Name: "test", Version: "0.1.0"}, tt.deps)
			result := call(t, s, tt.tool, tt.args)
			if !result.IsError {
				t.Fatal("expected error result")
			}
			if msg := text(t, result); !strings.Contains(msg, tt.wantMsg) {
				t.Errorf("message %q does not contain %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	tests := []struct {
		name    string
		apiKey  string
		headers map[string]string
		want    int
	}{
		{"disabled", "", nil, http.StatusOK},
		{"missing header", "secret", nil, http.StatusUnauthorized},
		{"bearer", "secret", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"lowercase scheme", "secret", map[string]string{"Authorization": "bearer secret"}, http.StatusOK},
		{"api key header", "secret", map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"bare authorization", "secret", map[string]string{"Authorization": "secret"}, http.StatusUnauthorized},
		{"basic scheme", "secret", map[string]string{"Authorization": "Basic secret"}, http.StatusUnauthorized},
		{"wrong key", "secret", map[string]string{"Authorization": "Bearer nope"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", http.NoBody)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			agmcp.AuthMiddleware(tt.apiKey, ok).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
