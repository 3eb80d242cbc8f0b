// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/aiwrite/pkg/types"
)

// testStore opens a sqlite store in a temp directory with a clock that
// advances one second per call.
func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), types.StoreConfig{
		Driver: types.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "data", "aiwrite.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), types.StoreConfig{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func TestOpen_Postgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("AIWRITE_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("AIWRITE_TEST_DATABASE_URL is not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, types.StoreConfig{Driver: types.DriverPostgres, DSN: dsn})
	require.NoError(t, err)
	defer s.Close()

	m, err := s.CreateManuscript(ctx, "# PG\n\n## Abstract\nA")
	require.NoError(t, err)
	got, err := s.GetManuscript(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Source, got.Source)
	require.NoError(t, s.DeleteManuscript(ctx, m.ID))
}

func TestRebind(t *testing.T) {
	q := `UPDATE t SET a = ?, b = ? WHERE id = ?`
	assert.Equal(t, q, sqliteDialect.rebind(q))
	assert.Equal(t, `UPDATE t SET a = $1, b = $2 WHERE id = $3`, postgresDialect.rebind(q))
}

func TestManuscriptLifecycle(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	m, err := s.CreateManuscript(ctx, "# T\n\n## Abstract\nA")
	require.NoError(t, err)
	assert.NotZero(t, m.ID)
	assert.Equal(t, m.Created, m.LastUpdated)

	got, err := s.GetManuscript(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Source, got.Source)
	assert.True(t, m.Created.Equal(got.Created))

	m.Source = "# T\n\n## Abstract\nB"
	before := m.LastUpdated
	require.NoError(t, s.SaveManuscript(ctx, m))
	assert.True(t, m.LastUpdated.After(before))

	got, err = s.GetManuscript(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "# T\n\n## Abstract\nB", got.Source)
	assert.True(t, got.LastUpdated.After(got.Created))

	require.NoError(t, s.DeleteManuscript(ctx, m.ID))
	_, err = s.GetManuscript(ctx, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteManuscript(ctx, m.ID), ErrNotFound)
	assert.ErrorIs(t, s.SaveManuscript(ctx, m), ErrNotFound)
}

func TestManuscriptText_MissingIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	text, err := s.ManuscriptText(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "", text)

	m, err := s.CreateManuscript(ctx, "# X")
	require.NoError(t, err)
	text, err = s.ManuscriptText(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "# X", text)
}

func TestListManuscripts(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	for _, src := range []string{"# A", "# B", "# C"} {
		_, err := s.CreateManuscript(ctx, src)
		require.NoError(t, err)
	}

	all, err := s.ListManuscripts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "# C", all[0].Source)

	two, err := s.ListManuscripts(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestSaveProject_InsertAndUpdate(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	p, err := s.SaveProject(ctx, &types.Project{Name: "Thesis"})
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, "Thesis", p.Name)
	assert.Equal(t, types.DefaultProjectLanguage, p.Language)
	assert.Equal(t, types.DefaultProjectModel, p.Model)
	assert.Equal(t, types.NoManuscript, p.ManuscriptRef())

	p.Model = "gpt"
	p.DocumentsFolder = "/tmp/docs"
	updated, err := s.SaveProject(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, p.ID, updated.ID)
	assert.True(t, updated.LastUpdated.After(p.LastUpdated))

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "gpt", got.Model)
	assert.Equal(t, "/tmp/docs", got.DocumentsFolder)
	assert.True(t, got.Created.Equal(p.Created))
}

func TestGetProject_NotFound(t *testing.T) {
	_, err := testStore(t).GetProject(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetOrCreateProject_AutoProvisions(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	first, err := s.GetOrCreateProject(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultProjectName, first.Name)
	assert.Equal(t, types.DefaultProjectLanguage, first.Language)
	assert.Equal(t, types.DefaultProjectModel, first.Model)
	require.NotNil(t, first.ManuscriptID)

	text, err := s.ManuscriptText(ctx, *first.ManuscriptID)
	require.NoError(t, err)
	assert.Equal(t, types.EmptyManuscriptSource, text)

	second, err := s.GetOrCreateProject(ctx, 77)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, *first.ManuscriptID, *second.ManuscriptID)

	again, err := s.GetOrCreateProject(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
}

func TestMostRecentProject(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	id, err := s.MostRecentProject(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.NoProject, id)

	a, err := s.SaveProject(ctx, &types.Project{Name: "a"})
	require.NoError(t, err)
	b, err := s.SaveProject(ctx, &types.Project{Name: "b"})
	require.NoError(t, err)

	id, err = s.MostRecentProject(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, id)

	_, err = s.SaveProject(ctx, a)
	require.NoError(t, err)
	id, err = s.MostRecentProject(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.ID, id)
}

func TestDeleteProject_KeepsManuscript(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	p, err := s.GetOrCreateProject(ctx, 1)
	require.NoError(t, err)
	manID := *p.ManuscriptID

	require.NoError(t, s.DeleteProject(ctx, p.ID))
	_, err = s.GetProject(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetManuscript(ctx, manID)
	assert.NoError(t, err)

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestProjectManuscript(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	id, err := s.ProjectManuscript(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, types.NoManuscript, id)

	bare, err := s.SaveProject(ctx, &types.Project{Name: "bare"})
	require.NoError(t, err)
	id, err = s.ProjectManuscript(ctx, bare.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NoManuscript, id)

	p, err := s.GetOrCreateProject(ctx, 0)
	require.NoError(t, err)
	id, err = s.ProjectManuscript(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, *p.ManuscriptID, id)

	// A dangling reference reads as no manuscript.
	require.NoError(t, s.DeleteManuscript(ctx, id))
	id, err = s.ProjectManuscript(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NoManuscript, id)
}

func TestClearManuscriptReferences(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	m, err := s.CreateManuscript(ctx, "# Shared")
	require.NoError(t, err)
	for _, name := range []string{"one", "two"} {
		p := &types.Project{Name: name}
		p.BindManuscript(m.ID)
		_, err := s.SaveProject(ctx, p)
		require.NoError(t, err)
	}

	n, err := s.ClearManuscriptReferences(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	for _, p := range projects {
		assert.Nil(t, p.ManuscriptID)
	}
}
