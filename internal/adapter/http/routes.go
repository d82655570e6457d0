package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/agentgraph/internal/middleware"
)

// MountRoutes registers the health probe and the tenant-scoped API.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.TenantID)

		r.Get("/projects", h.ListProjects)
		r.Post("/projects", h.CreateProject)

		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Get("/", h.GetProject)
			r.Put("/", h.UpdateProject)
			r.Delete("/", h.DeleteProject)
			r.Delete("/full", h.DeleteFullProject)
			r.Get("/resources", h.ProjectResources)

			r.Get("/graphs/{graphID}", h.GetGraph)
			r.Put("/graphs/{graphID}", h.PutGraph)
			r.Delete("/graphs/{graphID}", h.DeleteGraph)

			if h.ContextCache != nil {
				r.Delete("/context-cache/conversations/{conversationID}", h.ClearConversationCache)
				r.Delete("/context-cache/configs/{contextConfigID}", h.ClearContextConfigCache)
				r.Post("/context-cache/invalidate", h.InvalidateDefinitions)
			}
		})
	})
}
