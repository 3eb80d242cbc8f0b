// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pdiddy/aiwrite/pkg/types"
)

const projectColumns = `id, name, language, model, documents_folder, collection, manuscript_id, created, last_updated`

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*types.Project, error) {
	var (
		p     types.Project
		manID sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Language, &p.Model, &p.DocumentsFolder,
		&p.Collection, &manID, &p.Created, &p.LastUpdated); err != nil {
		return nil, err
	}
	if manID.Valid {
		p.BindManuscript(manID.Int64)
	}
	return &p, nil
}

// nullableID converts an optional manuscript reference to a SQL value.
func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// SaveProject inserts p when its id is zero and updates it otherwise. Empty
// name, language and model fields take their defaults. LastUpdated is always
// stamped; Created is stamped on insert. The persisted record is returned.
func (s *Store) SaveProject(ctx context.Context, p *types.Project) (*types.Project, error) {
	saved := *p
	saved.ApplyDefaults()
	now := s.now()
	saved.LastUpdated = now

	if saved.ID != 0 {
		res, err := s.exec(ctx,
			`UPDATE projects SET name = ?, language = ?, model = ?, documents_folder = ?,
			 collection = ?, manuscript_id = ?, last_updated = ? WHERE id = ?`,
			saved.Name, saved.Language, saved.Model, saved.DocumentsFolder,
			saved.Collection, nullableID(saved.ManuscriptID), saved.LastUpdated, saved.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("updating project %d: %w", saved.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			if saved.Created.IsZero() {
				current, err := s.GetProject(ctx, saved.ID)
				if err != nil {
					return nil, err
				}
				saved.Created = current.Created
			}
			return &saved, nil
		}
	}

	if saved.Created.IsZero() {
		saved.Created = now
	}

	var err error
	if saved.ID != 0 {
		_, err = s.exec(ctx,
			`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			saved.ID, saved.Name, saved.Language, saved.Model, saved.DocumentsFolder,
			saved.Collection, nullableID(saved.ManuscriptID), saved.Created, saved.LastUpdated,
		)
	} else {
		err = s.queryRow(ctx,
			`INSERT INTO projects (name, language, model, documents_folder, collection, manuscript_id, created, last_updated)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			saved.Name, saved.Language, saved.Model, saved.DocumentsFolder,
			saved.Collection, nullableID(saved.ManuscriptID), saved.Created, saved.LastUpdated,
		).Scan(&saved.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("inserting project: %w", err)
	}
	return &saved, nil
}

// GetProject returns the project with the given id or ErrNotFound.
func (s *Store) GetProject(ctx context.Context, id int64) (*types.Project, error) {
	p, err := scanProject(s.queryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up project %d: %w", id, err)
	}
	return p, nil
}

// GetOrCreateProject returns the project with the given id. On a miss it
// provisions a fresh default project bound to a fresh empty manuscript and
// returns that instead. The new project gets its own id, so a second call
// with the same missing id provisions another record.
func (s *Store) GetOrCreateProject(ctx context.Context, id int64) (*types.Project, error) {
	p, err := s.GetProject(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	m, err := s.CreateManuscript(ctx, types.EmptyManuscriptSource)
	if err != nil {
		return nil, fmt.Errorf("provisioning project: %w", err)
	}
	fresh := &types.Project{}
	fresh.BindManuscript(m.ID)
	p, err = s.SaveProject(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("provisioning project: %w", err)
	}
	return p, nil
}

// ListProjects returns every project in id order.
func (s *Store) ListProjects(ctx context.Context) ([]types.Project, error) {
	rows, err := s.query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var out []types.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// DeleteProject removes the project row. Its manuscript is kept.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting project %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	return nil
}

// MostRecentProject returns the id of the project with the latest
// LastUpdated, or types.NoProject when there are none.
func (s *Store) MostRecentProject(ctx context.Context) (int64, error) {
	var id int64
	err := s.queryRow(ctx,
		`SELECT id FROM projects ORDER BY last_updated DESC, id DESC LIMIT 1`,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return types.NoProject, nil
	}
	if err != nil {
		return types.NoProject, fmt.Errorf("finding most recent project: %w", err)
	}
	return id, nil
}

// ProjectManuscript returns the manuscript bound to a project, or
// types.NoManuscript when the project is missing, has no manuscript, or
// references one that was deleted.
func (s *Store) ProjectManuscript(ctx context.Context, projectID int64) (int64, error) {
	var id sql.NullInt64
	err := s.queryRow(ctx,
		`SELECT m.id FROM projects p LEFT JOIN manuscripts m ON m.id = p.manuscript_id WHERE p.id = ?`,
		projectID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return types.NoManuscript, nil
	}
	if err != nil {
		return types.NoManuscript, fmt.Errorf("looking up manuscript of project %d: %w", projectID, err)
	}
	if !id.Valid {
		return types.NoManuscript, nil
	}
	return id.Int64, nil
}
