// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pdiddy/aiwrite/internal/export"
	"github.com/pdiddy/aiwrite/internal/generate"
	"github.com/pdiddy/aiwrite/internal/sections"
	"github.com/pdiddy/aiwrite/internal/workflow"
	"github.com/pdiddy/aiwrite/pkg/types"
)

// Handler holds API route handlers.
type Handler struct {
	pool   *workflow.Pool
	models *generate.Registry
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(pool *workflow.Pool, models *generate.Registry, logger *slog.Logger) *Handler {
	return &Handler{pool: pool, models: models, logger: logger}
}

// do runs fn on the caller's engine and writes any error it returns.
// It reports whether fn succeeded.
func (h *Handler) do(w http.ResponseWriter, r *http.Request, fn func(*workflow.Engine) error) bool {
	if err := h.pool.Do(r.Context(), sessionID(r), fn); err != nil {
		writeError(w, h.logger, err)
		return false
	}
	return true
}

// idParam parses a numeric URL parameter.
func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, errBadRequest)
	}
	return id, nil
}

// sectionParam returns the section name from the URL, lower-cased.
func sectionParam(r *http.Request) string {
	return strings.ToLower(strings.TrimSpace(chi.URLParam(r, "name")))
}

// ListModels handles GET /models.
func (h *Handler) ListModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"models":  h.models.AvailableModels(),
		"default": h.models.Default(),
	})
}

// --- session ---

// GetSession handles GET /session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	var state types.SessionState
	if h.do(w, r, func(e *workflow.Engine) error {
		state = e.State()
		return nil
	}) {
		writeJSON(w, http.StatusOK, state)
	}
}

// SetModel handles PUT /session/model.
func (h *Handler) SetModel(w http.ResponseWriter, r *http.Request) {
	var req modelRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	var model string
	if h.do(w, r, func(e *workflow.Engine) error {
		if err := e.SetModel(r.Context(), req.Model); err != nil {
			return err
		}
		model = e.Model()
		return nil
	}) {
		writeStatus(w, "Model set to "+model)
	}
}

// SetCollection handles PUT /session/collection.
func (h *Handler) SetCollection(w http.ResponseWriter, r *http.Request) {
	var req collectionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if h.do(w, r, func(e *workflow.Engine) error {
		return e.SetKnowledgeBase(req.Collection)
	}) {
		writeStatus(w, "Knowledge base set to "+req.Collection)
	}
}

// SetPrompt handles PUT /session/prompt.
func (h *Handler) SetPrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if h.do(w, r, func(e *workflow.Engine) error {
		return e.SetBasePrompt(req.Prompt)
	}) {
		writeStatus(w, "Base prompt updated")
	}
}

// EndSession handles DELETE /session.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.Forget(r.Context(), sessionID(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeStatus(w, "Session ended")
}

// --- manuscripts ---

// ListManuscripts handles GET /manuscripts?limit=N.
func (h *Handler) ListManuscripts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	var items []types.Manuscript
	if h.do(w, r, func(e *workflow.Engine) error {
		var err error
		items, err = e.ListManuscripts(r.Context(), limit)
		return err
	}) {
		writeJSON(w, http.StatusOK, map[string]any{"manuscripts": items})
	}
}

// SetupManuscript handles POST /manuscripts.
func (h *Handler) SetupManuscript(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	var m *types.Manuscript
	if h.do(w, r, func(e *workflow.Engine) error {
		var err error
		m, err = e.SetupManuscript(r.Context(), req.Concept)
		return err
	}) {
		writeJSON(w, http.StatusCreated, manuscriptResponse{Status: "Manuscript created", Manuscript: m})
	}
}

// GetManuscript handles GET /manuscripts/{id}.
func (h *Handler) GetManuscript(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var m *types.Manuscript
	if h.do(w, r, func(e *workflow.Engine) error {
		m, err = e.Manuscript(r.Context(), id)
		return err
	}) {
		writeJSON(w, http.StatusOK, m)
	}
}

// UpdateManuscript handles PUT /manuscripts/{id}. Empty text is accepted
// and leaves the manuscript unchanged.
func (h *Handler) UpdateManuscript(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req updateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if h.do(w, r, func(e *workflow.Engine) error {
		return e.UpdateFromText(r.Context(), id, req.Text)
	}) {
		writeStatus(w, "Manuscript updated")
	}
}

// DeleteManuscript handles DELETE /manuscripts/{id}.
func (h *Handler) DeleteManuscript(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if h.do(w, r, func(e *workflow.Engine) error {
		return e.DeleteManuscript(r.Context(), id)
	}) {
		writeStatus(w, "Manuscript deleted")
	}
}

// GetSections handles GET /manuscripts/{id}/sections. The body is an
// ordered object of section name to text, title first.
func (h *Handler) GetSections(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var m *sections.Map
	if h.do(w, r, func(e *workflow.Engine) error {
		m, err = e.ManuscriptSections(r.Context(), id)
		return err
	}) {
		writeJSON(w, http.StatusOK, m)
	}
}

// AddSection handles POST /manuscripts/{id}/sections.
func (h *Handler) AddSection(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req sectionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	var m *types.Manuscript
	if h.do(w, r, func(e *workflow.Engine) error {
		m, err = e.AddSection(r.Context(), id, req.Name)
		return err
	}) {
		writeJSON(w, http.StatusOK, manuscriptResponse{Status: "Section " + req.Name + " added", Manuscript: m})
	}
}

// EnhanceSection handles POST /manuscripts/{id}/sections/{name}/enhance.
func (h *Handler) EnhanceSection(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	name := sectionParam(r)
	var m *types.Manuscript
	if h.do(w, r, func(e *workflow.Engine) error {
		m, err = e.EnhanceSection(r.Context(), id, name)
		return err
	}) {
		writeJSON(w, http.StatusOK, manuscriptResponse{Status: "Section " + name + " enhanced", Manuscript: m})
	}
}

// CriticizeSection handles POST /manuscripts/{id}/sections/{name}/critique.
// Critique is read-only, so a failure is reported inline as the critique
// text with status 200 rather than as an error response.
func (h *Handler) CriticizeSection(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	name := sectionParam(r)
	var text string
	err = h.pool.Do(r.Context(), sessionID(r), func(e *workflow.Engine) error {
		var err error
		text, err = e.CriticizeSection(r.Context(), id, name)
		return err
	})
	if err != nil {
		h.logger.Warn("critique failed", "manuscript", id, "section", name, "error", err)
		writeJSON(w, http.StatusOK, critiqueResponse{Status: "Critique failed", Critique: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, critiqueResponse{Status: "Critique ready", Critique: text})
}

// ExportManuscript handles GET /manuscripts/{id}/export. The manuscript
// source is sent as a Markdown attachment.
func (h *Handler) ExportManuscript(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var m *types.Manuscript
	if !h.do(w, r, func(e *workflow.Engine) error {
		m, err = e.Manuscript(r.Context(), id)
		return err
	}) {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(m)))
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, m.Source); err != nil {
		h.logger.Error("writing export failed", "manuscript", id, "error", err)
	}
}

// --- projects ---

// ListProjects handles GET /projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	var items []types.Project
	if h.do(w, r, func(e *workflow.Engine) error {
		var err error
		items, err = e.ListProjects(r.Context())
		return err
	}) {
		writeJSON(w, http.StatusOK, map[string]any{"projects": items})
	}
}

// SaveProject handles POST /projects. An id of 0 creates a project.
func (h *Handler) SaveProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	var p *types.Project
	if h.do(w, r, func(e *workflow.Engine) error {
		var err error
		p, err = e.SaveProject(r.Context(), req.project())
		return err
	}) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "Project saved", "project": p})
	}
}

// RecentProject handles GET /projects/recent. The id is -1 when no
// project exists.
func (h *Handler) RecentProject(w http.ResponseWriter, r *http.Request) {
	var id int64
	if h.do(w, r, func(e *workflow.Engine) error {
		var err error
		id, err = e.MostRecentProject(r.Context())
		return err
	}) {
		writeJSON(w, http.StatusOK, map[string]any{"id": id})
	}
}

// LoadProject handles GET /projects/{id}. The project becomes active for
// the session; a missing id provisions a new project, whose id is returned.
func (h *Handler) LoadProject(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var p *types.Project
	if h.do(w, r, func(e *workflow.Engine) error {
		p, err = e.LoadProject(r.Context(), id)
		return err
	}) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "Project loaded", "project": p})
	}
}

// DeleteProject handles DELETE /projects/{id}.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if h.do(w, r, func(e *workflow.Engine) error {
		return e.DeleteProject(r.Context(), id)
	}) {
		writeStatus(w, "Project deleted")
	}
}

// ProjectManuscript handles GET /projects/{id}/manuscript.
func (h *Handler) ProjectManuscript(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var mid int64
	if h.do(w, r, func(e *workflow.Engine) error {
		mid, err = e.ProjectManuscript(r.Context(), id)
		return err
	}) {
		writeJSON(w, http.StatusOK, map[string]any{"manuscript_id": mid})
	}
}

// UpdateProjectModel handles PUT /projects/current/model.
func (h *Handler) UpdateProjectModel(w http.ResponseWriter, r *http.Request) {
	var req modelRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	var model string
	if h.do(w, r, func(e *workflow.Engine) error {
		if err := e.UpdateProjectModel(r.Context(), req.Model); err != nil {
			return err
		}
		model = e.Model()
		return nil
	}) {
		writeStatus(w, "Project model set to "+model)
	}
}

// --- knowledge ---

// ListDocuments handles GET /knowledge/documents.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	var docs []types.EmbeddedDocument
	var collection string
	if h.do(w, r, func(e *workflow.Engine) error {
		var err error
		collection = e.KnowledgeBase()
		docs, err = e.EmbeddedDocuments(r.Context())
		return err
	}) {
		writeJSON(w, http.StatusOK, map[string]any{"collection": collection, "documents": docs})
	}
}

// EmbedDocument handles POST /knowledge/documents. The path is read on the
// server host.
func (h *Handler) EmbedDocument(w http.ResponseWriter, r *http.Request) {
	var req embedRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	var sum types.EmbedSummary
	if h.do(w, r, func(e *workflow.Engine) error {
		var err error
		sum, err = e.EmbedDocument(r.Context(), req.Path)
		return err
	}) {
		writeJSON(w, http.StatusOK, embedResponse{Status: "Document embedded", Summary: sum})
	}
}

// EmbedFolder handles POST /knowledge/folder.
func (h *Handler) EmbedFolder(w http.ResponseWriter, r *http.Request) {
	var req folderRequest
	if err := decode(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, h.logger, err)
		return
	}
	var sum types.EmbedSummary
	if h.do(w, r, func(e *workflow.Engine) error {
		var err error
		sum, err = e.EmbedFolder(r.Context(), req.Dir, io.Discard)
		return err
	}) {
		writeJSON(w, http.StatusOK, embedResponse{Status: "Folder embedded", Summary: sum})
	}
}

// SearchKnowledge handles GET /knowledge/search?q=...&n=N.
func (h *Handler) SearchKnowledge(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, h.logger, fmt.Errorf("query is required: %w", errBadRequest))
		return
	}
	n, _ := strconv.Atoi(r.URL.Query().Get("n"))
	var text string
	if h.do(w, r, func(e *workflow.Engine) error {
		var err error
		text, err = e.RetrieveKnowledge(r.Context(), q, n)
		return err
	}) {
		writeJSON(w, http.StatusOK, map[string]any{"query": q, "passages": text})
	}
}
