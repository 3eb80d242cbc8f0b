// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pdiddy/aiwrite/internal/generate"
	"github.com/pdiddy/aiwrite/internal/workflow"
)

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(pool *workflow.Pool, models *generate.Registry, logger *slog.Logger) chi.Router {
	if logger == nil {
		logger = slog.Default()
	}
	h := NewHandler(pool, models, logger)

	r := chi.NewRouter()
	r.Use(LogMiddleware(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, "ok")
	})
	r.Get("/models", h.ListModels)

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware())

		// Session state.
		r.Get("/session", h.GetSession)
		r.Put("/session/model", h.SetModel)
		r.Put("/session/collection", h.SetCollection)
		r.Put("/session/prompt", h.SetPrompt)
		r.Delete("/session", h.EndSession)

		// Manuscripts.
		r.Get("/manuscripts", h.ListManuscripts)
		r.Post("/manuscripts", h.SetupManuscript)
		r.Get("/manuscripts/{id}", h.GetManuscript)
		r.Put("/manuscripts/{id}", h.UpdateManuscript)
		r.Delete("/manuscripts/{id}", h.DeleteManuscript)
		r.Get("/manuscripts/{id}/sections", h.GetSections)
		r.Post("/manuscripts/{id}/sections", h.AddSection)
		r.Post("/manuscripts/{id}/sections/{name}/enhance", h.EnhanceSection)
		r.Post("/manuscripts/{id}/sections/{name}/critique", h.CriticizeSection)
		r.Get("/manuscripts/{id}/export", h.ExportManuscript)

		// Projects.
		r.Get("/projects", h.ListProjects)
		r.Post("/projects", h.SaveProject)
		r.Get("/projects/recent", h.RecentProject)
		r.Put("/projects/current/model", h.UpdateProjectModel)
		r.Get("/projects/{id}", h.LoadProject)
		r.Delete("/projects/{id}", h.DeleteProject)
		r.Get("/projects/{id}/manuscript", h.ProjectManuscript)

		// Knowledge base.
		r.Get("/knowledge/documents", h.ListDocuments)
		r.Post("/knowledge/documents", h.EmbedDocument)
		r.Post("/knowledge/folder", h.EmbedFolder)
		r.Get("/knowledge/search", h.SearchKnowledge)
	})

	return r
}
