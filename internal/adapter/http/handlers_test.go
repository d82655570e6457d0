package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	aghttp "github.com/Strob0t/agentgraph/internal/adapter/http"
	"github.com/Strob0t/agentgraph/internal/adapter/memory"
	"github.com/Strob0t/agentgraph/internal/domain"
	"github.com/Strob0t/agentgraph/internal/domain/agentgraph"
	"github.com/Strob0t/agentgraph/internal/domain/conversation"
	"github.com/Strob0t/agentgraph/internal/domain/project"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/port/database"
	"github.com/Strob0t/agentgraph/internal/service"
)

const tenant = "tenant-1"

const scenarioJSON = `{
  "id": "p1",
  "name": "Scenario",
  "graphs": {
    "g1": {
      "name": "Main",
      "defaultSubAgentId": "a1",
      "agents": {
        "a1": {"name": "Router", "canTransferTo": ["a2"]},
        "a2": {"name": "Worker", "canUse": [{"toolId": "t1", "toolSelection": [], "headers": null}]}
      }
    }
  },
  "tools": {
    "t1": {"name": "Search", "config": {"type": "mcp", "mcp": {"server": {"url": "https://mcp.example.com/search"}}}}
  }
}`

type env struct {
	store  *memory.Store
	router chi.Router
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memory.NewStore()
	graphs := service.NewGraphService(st, nil)
	h := &aghttp.Handlers{
		Projects:     service.NewProjectService(st, graphs, nil),
		Graphs:       graphs,
		ContextCache: service.NewContextCacheService(st, nil, nil),
	}
	r := chi.NewRouter()
	aghttp.MountRoutes(r, h)
	return &env{store: st, router: r}
}

func (e *env) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenant)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestCreateAndGetProject(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/v1/projects", scenarioJSON)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", w.Code, w.Body)
	}

	w = e.do(t, http.MethodGet, "/api/v1/projects/p1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: status %d body %s", w.Code, w.Body)
	}
	body := w.Body.String()
	def := decode[project.FullProjectDefinition](t, w)
	a1 := def.Graphs["g1"].SubAgents["a1"]
	if len(a1.CanTransferTo) != 1 || a1.CanTransferTo[0] != "a2" {
		t.Errorf("a1.canTransferTo = %v", a1.CanTransferTo)
	}
	if !strings.Contains(body, `"toolSelection":[]`) {
		t.Errorf("empty selection should survive the wire: %s", body)
	}
}

func TestStatusMapping(t *testing.T) {
	e := newEnv(t)
	if w := e.do(t, http.MethodPost, "/api/v1/projects", scenarioJSON); w.Code != http.StatusCreated {
		t.Fatalf("seed: %d %s", w.Code, w.Body)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing project", http.MethodGet, "/api/v1/projects/nope", "", http.StatusNotFound},
		{"duplicate create", http.MethodPost, "/api/v1/projects", scenarioJSON, http.StatusConflict},
		{"malformed body", http.MethodPost, "/api/v1/projects", "{", http.StatusBadRequest},
		{"invalid definition", http.MethodPost, "/api/v1/projects", `{"id":"p2","graphs":{}}`, http.StatusBadRequest},
		{"id mismatch", http.MethodPut, "/api/v1/projects/p1", `{"id":"other","name":"x","graphs":{}}`, http.StatusBadRequest},
		{"guarded delete", http.MethodDelete, "/api/v1/projects/p1", "", http.StatusConflict},
		{"missing graph", http.MethodGet, "/api/v1/projects/p1/graphs/nope", "", http.StatusNotFound},
		{"bad limit", http.MethodGet, "/api/v1/projects?limit=x", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body)
			}
		})
	}
}

func TestTenantHeaderRequired(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestUpdateProjectPreconditions(t *testing.T) {
	e := newEnv(t)
	created := decode[project.FullProjectDefinition](t, e.do(t, http.MethodPost, "/api/v1/projects", scenarioJSON))

	body := strings.Replace(scenarioJSON, `"name": "Scenario"`, `"name": "Renamed"`, 1)
	w := e.do(t, http.MethodPut, "/api/v1/projects/p1", body, "If-Unmodified-Since", "2000-01-01T00:00:00.000Z")
	if w.Code != http.StatusConflict {
		t.Fatalf("stale precondition: status %d body %s", w.Code, w.Body)
	}
	w = e.do(t, http.MethodPut, "/api/v1/projects/p1", body, "If-Unmodified-Since", created.UpdatedAt)
	if w.Code != http.StatusOK {
		t.Fatalf("update: status %d body %s", w.Code, w.Body)
	}
	renamed := decode[project.FullProjectDefinition](t, w)
	if renamed.Name != "Renamed" {
		t.Errorf("name = %q", renamed.Name)
	}

	// HTTP-date form, second precision.
	w = e.do(t, http.MethodPut, "/api/v1/projects/p1", scenarioJSON, "If-Unmodified-Since", "Sat, 01 Jan 2000 00:00:00 GMT")
	if w.Code != http.StatusConflict {
		t.Fatalf("stale http-date: status %d body %s", w.Code, w.Body)
	}
	updated, ok := domain.ParseTimestamp(renamed.UpdatedAt)
	if !ok {
		t.Fatalf("unparseable updatedAt %q", renamed.UpdatedAt)
	}
	w = e.do(t, http.MethodPut, "/api/v1/projects/p1", scenarioJSON, "If-Unmodified-Since", updated.UTC().Format(http.TimeFormat))
	if w.Code != http.StatusOK {
		t.Fatalf("http-date update: status %d body %s", w.Code, w.Body)
	}
}

func TestGraphEndpoints(t *testing.T) {
	e := newEnv(t)
	e.do(t, http.MethodPost, "/api/v1/projects", scenarioJSON)

	w := e.do(t, http.MethodPut, "/api/v1/projects/p1/graphs/g2",
		`{"name":"Side","defaultSubAgentId":"solo","agents":{"solo":{"name":"Solo","canUse":[{"toolId":"t1"}]}}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put graph: status %d body %s", w.Code, w.Body)
	}
	g := decode[agentgraph.FullGraphDefinition](t, w)
	if g.ID != "g2" || len(g.SubAgents["solo"].CanUse) != 1 {
		t.Errorf("graph = %+v", g)
	}

	if w := e.do(t, http.MethodGet, "/api/v1/projects/p1/graphs/g2", ""); w.Code != http.StatusOK {
		t.Fatalf("get graph: %d", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/api/v1/projects/p1/graphs/g2", ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete graph: %d %s", w.Code, w.Body)
	}
	if w := e.do(t, http.MethodGet, "/api/v1/projects/p1/graphs/g2", ""); w.Code != http.StatusNotFound {
		t.Fatalf("get deleted graph: %d", w.Code)
	}
}

func TestDeleteFullProjectAndList(t *testing.T) {
	e := newEnv(t)
	e.do(t, http.MethodPost, "/api/v1/projects", scenarioJSON)

	page := decode[database.Page[project.Project]](t, e.do(t, http.MethodGet, "/api/v1/projects", ""))
	if page.Total != 1 || page.Items[0].ID != "p1" {
		t.Fatalf("list = %+v", page)
	}

	// A live conversation blocks the cascading delete.
	ctx := context.Background()
	conv := &conversation.Conversation{}
	if err := e.store.CreateConversation(ctx, scope.Project(tenant, "p1"), conv); err != nil {
		t.Fatal(err)
	}
	if w := e.do(t, http.MethodDelete, "/api/v1/projects/p1/full", ""); w.Code != http.StatusConflict {
		t.Fatalf("blocked delete: %d %s", w.Code, w.Body)
	}
	if err := e.store.DeleteConversation(ctx, scope.Project(tenant, "p1"), conv.ID); err != nil {
		t.Fatal(err)
	}
	if w := e.do(t, http.MethodDelete, "/api/v1/projects/p1/full", ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d %s", w.Code, w.Body)
	}
	res := decode[map[string]bool](t, e.do(t, http.MethodGet, "/api/v1/projects/p1/resources", ""))
	if res["hasResources"] {
		t.Error("expected no resources after delete")
	}
	page = decode[database.Page[project.Project]](t, e.do(t, http.MethodGet, "/api/v1/projects", ""))
	if page.Total != 0 || page.Items == nil {
		t.Errorf("list after delete = %+v", page)
	}
}

func TestInvalidateDefinitions(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/v1/projects/p1/context-cache/invalidate", `{"definitionIds":[]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), `"deleted":0`) {
		t.Errorf("body = %s", w.Body)
	}
}

func TestHealth(t *testing.T) {
	st := memory.NewStore()
	graphs := service.NewGraphService(st, nil)
	h := &aghttp.Handlers{Projects: service.NewProjectService(st, graphs, nil), Graphs: graphs}

	tests := []struct {
		name string
		ping func(context.Context) error
		want int
	}{
		{"no probe", nil, http.StatusOK},
		{"healthy", func(context.Context) error { return nil }, http.StatusOK},
		{"down", func(context.Context) error { return errors.New("refused") }, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.Ping = tt.ping
			r := chi.NewRouter()
			aghttp.MountRoutes(r, h)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
