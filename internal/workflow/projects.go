// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"errors"

	"github.com/pdiddy/aiwrite/internal/store"
	"github.com/pdiddy/aiwrite/pkg/types"
)

// CurrentProject returns the active project, or nil when none is loaded.
func (e *Engine) CurrentProject() *types.Project {
	if e.project == nil {
		return nil
	}
	p := *e.project
	return &p
}

// LoadProject makes project id active, applying its model and collection.
// A missing id provisions a fresh project bound to an empty manuscript,
// which becomes active instead.
func (e *Engine) LoadProject(ctx context.Context, id int64) (*types.Project, error) {
	p, err := e.deps.Store.GetOrCreateProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.activate(ctx, p); err != nil {
		return nil, err
	}
	return e.CurrentProject(), nil
}

// FindProject returns project id without provisioning. It reports
// store.ErrNotFound on a miss and leaves the active project unchanged.
func (e *Engine) FindProject(ctx context.Context, id int64) (*types.Project, error) {
	return e.deps.Store.GetProject(ctx, id)
}

// SaveProject persists p and makes it the active project.
func (e *Engine) SaveProject(ctx context.Context, p *types.Project) (*types.Project, error) {
	saved, err := e.deps.Store.SaveProject(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := e.activate(ctx, saved); err != nil {
		return nil, err
	}
	return e.CurrentProject(), nil
}

// UpdateProjectModel switches the active backend and records the choice on
// the active project.
func (e *Engine) UpdateProjectModel(ctx context.Context, model string) error {
	if err := e.SetModel(ctx, model); err != nil {
		return err
	}
	if e.project == nil {
		return nil
	}
	p := *e.project
	p.Model = e.Model()
	saved, err := e.deps.Store.SaveProject(ctx, &p)
	if err != nil {
		return err
	}
	e.project = saved
	return nil
}

// ListProjects returns every stored project.
func (e *Engine) ListProjects(ctx context.Context) ([]types.Project, error) {
	return e.deps.Store.ListProjects(ctx)
}

// DeleteProject removes a project. Its manuscript is kept. Deleting the
// active project leaves no project active.
func (e *Engine) DeleteProject(ctx context.Context, id int64) error {
	if err := e.deps.Store.DeleteProject(ctx, id); err != nil {
		return err
	}
	if e.project != nil && e.project.ID == id {
		e.project = nil
	}
	return nil
}

// MostRecentProject returns the id of the most recently updated project or
// types.NoProject.
func (e *Engine) MostRecentProject(ctx context.Context) (int64, error) {
	return e.deps.Store.MostRecentProject(ctx)
}

// ProjectManuscript returns the manuscript bound to a project, or
// types.NoManuscript when the project is missing, unbound or points at a
// deleted manuscript.
func (e *Engine) ProjectManuscript(ctx context.Context, projectID int64) (int64, error) {
	return e.deps.Store.ProjectManuscript(ctx, projectID)
}

// activate makes p current and selects its backend and collection.
func (e *Engine) activate(ctx context.Context, p *types.Project) error {
	e.project = p
	if p.Model != "" && p.Model != e.Model() {
		if err := e.SetModel(ctx, p.Model); err != nil {
			return err
		}
	}
	if p.Collection != "" && p.Collection != e.KnowledgeBase() {
		if err := e.SetKnowledgeBase(p.Collection); err != nil {
			return err
		}
	}
	return nil
}

// IsNotFound reports whether err means a manuscript or project is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
