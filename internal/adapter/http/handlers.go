package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/agentgraph/internal/domain/agentgraph"
	"github.com/Strob0t/agentgraph/internal/domain/project"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/middleware"
	"github.com/Strob0t/agentgraph/internal/service"
)

// Handlers holds the services the API delegates to.
type Handlers struct {
	Projects     *service.ProjectService
	Graphs       *service.GraphService
	ContextCache *service.ContextCacheService
	// Ping checks the backing store for /health. Optional.
	Ping func(ctx context.Context) error
}

func projectScope(r *http.Request) scope.Scope {
	return scope.Project(middleware.TenantIDFromContext(r.Context()), chi.URLParam(r, "projectID"))
}

func graphScope(r *http.Request) scope.Scope {
	return projectScope(r).WithGraph(chi.URLParam(r, "graphID"))
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		if err := h.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListProjects handles GET /api/v1/projects
func (h *Handlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	page, err := h.Projects.ListProjects(r.Context(), middleware.TenantIDFromContext(r.Context()), opts)
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	if page.Items == nil {
		page.Items = []project.Project{}
	}
	writeJSON(w, http.StatusOK, page)
}

// CreateProject handles POST /api/v1/projects
func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	def, ok := readJSON[project.FullProjectDefinition](w, r)
	if !ok {
		return
	}
	out, err := h.Projects.CreateFullProject(r.Context(), middleware.TenantIDFromContext(r.Context()), &def)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// GetProject handles GET /api/v1/projects/{projectID}
func (h *Handlers) GetProject(w http.ResponseWriter, r *http.Request) {
	def, err := h.Projects.GetFullProject(r.Context(), projectScope(r))
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// UpdateProject handles PUT /api/v1/projects/{projectID}. The body id may
// be omitted; when present it must match the path.
func (h *Handlers) UpdateProject(w http.ResponseWriter, r *http.Request) {
	sc := projectScope(r)
	def, ok := readJSON[project.FullProjectDefinition](w, r)
	if !ok {
		return
	}
	switch def.ID {
	case "":
		def.ID = sc.ProjectID
	case sc.ProjectID:
	default:
		writeError(w, http.StatusBadRequest, "project id in body does not match path")
		return
	}
	opts := service.UpdateOptions{IfUnmodifiedSince: r.Header.Get("If-Unmodified-Since")}
	out, err := h.Projects.UpdateFullProject(r.Context(), sc.TenantID, &def, opts)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteProject handles DELETE /api/v1/projects/{projectID}. It only
// removes an empty project; see DeleteFullProject for the cascading form.
func (h *Handlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.Projects.DeleteProject(r.Context(), projectScope(r)); err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteFullProject handles DELETE /api/v1/projects/{projectID}/full
func (h *Handlers) DeleteFullProject(w http.ResponseWriter, r *http.Request) {
	if err := h.Projects.DeleteFullProject(r.Context(), projectScope(r)); err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProjectResources handles GET /api/v1/projects/{projectID}/resources
func (h *Handlers) ProjectResources(w http.ResponseWriter, r *http.Request) {
	has, err := h.Projects.ProjectHasResources(r.Context(), projectScope(r))
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"hasResources": has})
}

// GetGraph handles GET /api/v1/projects/{projectID}/graphs/{graphID}
func (h *Handlers) GetGraph(w http.ResponseWriter, r *http.Request) {
	def, err := h.Graphs.MaterializeGraph(r.Context(), graphScope(r))
	if err != nil {
		writeDomainError(w, err, "graph not found")
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// PutGraph handles PUT /api/v1/projects/{projectID}/graphs/{graphID}
func (h *Handlers) PutGraph(w http.ResponseWriter, r *http.Request) {
	def, ok := readJSON[agentgraph.FullGraphDefinition](w, r)
	if !ok {
		return
	}
	out, err := h.Graphs.UpsertFullGraph(r.Context(), graphScope(r), &def)
	if err != nil {
		writeDomainError(w, err, "graph not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteGraph handles DELETE /api/v1/projects/{projectID}/graphs/{graphID}
func (h *Handlers) DeleteGraph(w http.ResponseWriter, r *http.Request) {
	if err := h.Graphs.DeleteFullGraph(r.Context(), graphScope(r)); err != nil {
		writeDomainError(w, err, "graph not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type invalidateRequest struct {
	DefinitionIDs []string `json:"definitionIds"`
}

type deletedResponse struct {
	Deleted int64 `json:"deleted"`
}

// ClearConversationCache handles
// DELETE /api/v1/projects/{projectID}/context-cache/conversations/{conversationID}
func (h *Handlers) ClearConversationCache(w http.ResponseWriter, r *http.Request) {
	n, err := h.ContextCache.ClearConversation(r.Context(), projectScope(r), chi.URLParam(r, "conversationID"))
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{Deleted: n})
}

// ClearContextConfigCache handles
// DELETE /api/v1/projects/{projectID}/context-cache/configs/{contextConfigID}
func (h *Handlers) ClearContextConfigCache(w http.ResponseWriter, r *http.Request) {
	n, err := h.ContextCache.ClearContextConfig(r.Context(), projectScope(r), chi.URLParam(r, "contextConfigID"))
	if err != nil {
		writeDomainError(w, err, "context config not found")
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{Deleted: n})
}

// InvalidateDefinitions handles
// POST /api/v1/projects/{projectID}/context-cache/invalidate
func (h *Handlers) InvalidateDefinitions(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[invalidateRequest](w, r)
	if !ok {
		return
	}
	n, err := h.ContextCache.InvalidateInvocationDefinitions(r.Context(), projectScope(r), req.DefinitionIDs)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{Deleted: n})
}
