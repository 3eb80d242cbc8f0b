// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pdiddy/aiwrite/pkg/types"
)

// DefaultListLimit bounds ListManuscripts when the caller passes zero.
const DefaultListLimit = 100

// CreateManuscript persists a new manuscript with the given source and
// returns it with its assigned id and timestamps.
func (s *Store) CreateManuscript(ctx context.Context, source string) (*types.Manuscript, error) {
	now := s.now()
	m := &types.Manuscript{Source: source, Created: now, LastUpdated: now}

	err := s.queryRow(ctx,
		`INSERT INTO manuscripts (source, created, last_updated) VALUES (?, ?, ?) RETURNING id`,
		m.Source, m.Created, m.LastUpdated,
	).Scan(&m.ID)
	if err != nil {
		return nil, fmt.Errorf("inserting manuscript: %w", err)
	}
	return m, nil
}

// SaveManuscript writes m.Source and stamps m.LastUpdated. It returns
// ErrNotFound when the manuscript no longer exists.
func (s *Store) SaveManuscript(ctx context.Context, m *types.Manuscript) error {
	now := s.now()
	res, err := s.exec(ctx,
		`UPDATE manuscripts SET source = ?, last_updated = ? WHERE id = ?`,
		m.Source, now, m.ID,
	)
	if err != nil {
		return fmt.Errorf("updating manuscript %d: %w", m.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating manuscript %d: %w", m.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("manuscript %d: %w", m.ID, ErrNotFound)
	}
	m.LastUpdated = now
	return nil
}

// GetManuscript returns the manuscript with the given id or ErrNotFound.
func (s *Store) GetManuscript(ctx context.Context, id int64) (*types.Manuscript, error) {
	var m types.Manuscript
	err := s.queryRow(ctx,
		`SELECT id, source, created, last_updated FROM manuscripts WHERE id = ?`, id,
	).Scan(&m.ID, &m.Source, &m.Created, &m.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("manuscript %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up manuscript %d: %w", id, err)
	}
	return &m, nil
}

// ManuscriptText returns the source of a manuscript, or "" when the id has
// no record.
func (s *Store) ManuscriptText(ctx context.Context, id int64) (string, error) {
	m, err := s.GetManuscript(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return m.Source, nil
}

// ListManuscripts returns up to limit manuscripts, most recently updated
// first. A limit of zero or less uses DefaultListLimit.
func (s *Store) ListManuscripts(ctx context.Context, limit int) ([]types.Manuscript, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.query(ctx,
		`SELECT id, source, created, last_updated FROM manuscripts
		 ORDER BY last_updated DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing manuscripts: %w", err)
	}
	defer rows.Close()

	var out []types.Manuscript
	for rows.Next() {
		var m types.Manuscript
		if err := rows.Scan(&m.ID, &m.Source, &m.Created, &m.LastUpdated); err != nil {
			return nil, fmt.Errorf("scanning manuscript: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteManuscript removes a manuscript. Projects referencing it are left
// untouched; see ClearManuscriptReferences.
func (s *Store) DeleteManuscript(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM manuscripts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting manuscript %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("manuscript %d: %w", id, ErrNotFound)
	}
	return nil
}

// ClearManuscriptReferences unbinds every project pointing at manuscript id
// and returns the number of projects changed.
func (s *Store) ClearManuscriptReferences(ctx context.Context, id int64) (int64, error) {
	res, err := s.exec(ctx,
		`UPDATE projects SET manuscript_id = NULL, last_updated = ? WHERE manuscript_id = ?`,
		s.now(), id,
	)
	if err != nil {
		return 0, fmt.Errorf("clearing references to manuscript %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clearing references to manuscript %d: %w", id, err)
	}
	return n, nil
}
