// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/aiwrite/internal/generate"
	"github.com/pdiddy/aiwrite/internal/ingest"
	"github.com/pdiddy/aiwrite/internal/knowledge"
	"github.com/pdiddy/aiwrite/internal/session"
	"github.com/pdiddy/aiwrite/internal/store"
	"github.com/pdiddy/aiwrite/internal/workflow"
	"github.com/pdiddy/aiwrite/pkg/types"
)

func reply(_ context.Context, _, instruction string) (string, error) {
	switch {
	case strings.HasPrefix(instruction, "Please provide a title"):
		return "Light and Leaves", nil
	case strings.HasPrefix(instruction, "Please write an abstract"):
		return "We study photosynthesis.", nil
	case strings.HasPrefix(instruction, "Please write the"):
		return "Generated body.", nil
	case strings.HasPrefix(instruction, "Please enhance"):
		return "Enhanced body.", nil
	case strings.HasPrefix(instruction, "Please criticize"):
		return "Too vague.", nil
	}
	return "", errors.New("unexpected instruction")
}

type memRetriever struct {
	name  string
	pages map[string]int
}

func (m *memRetriever) Collection() string { return m.name }

func (m *memRetriever) RetrieveDocs(context.Context, string, int) (string, error) {
	return "[paper.pdf, p. 0]\nChlorophyll absorbs light.", nil
}

func (m *memRetriever) EmbedText(_ context.Context, _, source string, _ int) error {
	m.pages[source]++
	return nil
}

func (m *memRetriever) EmbeddedDocuments(context.Context) ([]types.EmbeddedDocument, error) {
	var docs []types.EmbeddedDocument
	for s, n := range m.pages {
		docs = append(docs, types.EmbeddedDocument{Source: s, Collection: m.name, Pages: n})
	}
	return docs, nil
}

type testServer struct {
	handler http.Handler
	store   *store.Store
}

func newTestServer(t *testing.T, backend generate.BackendFunc) *testServer {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, types.StoreConfig{
		Driver: types.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "aiwrite.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := types.DefaultConfig().Generation
	cfg.DefaultModel = "mock"
	cfg.MaxRetries = 0
	models := generate.NewRegistry(cfg, logger)
	models.Register("mock", func(context.Context) (generate.Backend, error) { return backend, nil })

	collections := make(map[string]*memRetriever)
	opener := func(name string) (knowledge.Retriever, error) {
		if r, ok := collections[name]; ok {
			return r, nil
		}
		r := &memRetriever{name: name, pages: make(map[string]int)}
		collections[name] = r
		return r, nil
	}

	deps := workflow.Deps{
		Store:     st,
		Models:    models,
		Knowledge: opener,
		Ingester:  ingest.NewWithReader(ingest.NewFileReader(""), logger),
		Logger:    logger,
	}
	pool := workflow.NewPool(deps, session.NewMemoryStore(time.Hour), types.SessionState{})
	return &testServer{handler: NewRouter(pool, models, logger), store: st}
}

// request sends a JSON request under session sid and returns the recorder.
func (s *testServer) request(t *testing.T, method, path, sid string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if sid != "" {
		req.Header.Set(SessionHeader, sid)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) manuscript(t *testing.T, source string) int64 {
	t.Helper()
	m, err := s.store.CreateManuscript(context.Background(), source)
	require.NoError(t, err)
	return m.ID
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, reply)
	w := s.request(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
}

func TestListModels(t *testing.T) {
	s := newTestServer(t, reply)
	w := s.request(t, http.MethodGet, "/models", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "mock", body["default"])
	assert.Contains(t, body["models"], "mock")
}

func TestSessionHeader(t *testing.T) {
	s := newTestServer(t, reply)

	w := s.request(t, http.MethodGet, "/session", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, w.Header().Get(SessionHeader), 36)

	w = s.request(t, http.MethodGet, "/session", "abc", nil)
	assert.Equal(t, "abc", w.Header().Get(SessionHeader))
	body := decodeBody(t, w)
	assert.Equal(t, "mock", body["model"])
	assert.Equal(t, "literature", body["collection"])
}

func TestSessionStateIsPerSession(t *testing.T) {
	s := newTestServer(t, reply)

	w := s.request(t, http.MethodPut, "/session/collection", "a", map[string]string{"collection": "botany"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Knowledge base set to botany", decodeBody(t, w)["status"])

	assert.Equal(t, "botany", decodeBody(t, s.request(t, http.MethodGet, "/session", "a", nil))["collection"])
	assert.Equal(t, "literature", decodeBody(t, s.request(t, http.MethodGet, "/session", "b", nil))["collection"])
}

func TestSetPrompt_Validation(t *testing.T) {
	s := newTestServer(t, reply)

	w := s.request(t, http.MethodPut, "/session/prompt", "a", map[string]string{"prompt": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "prompt")

	w = s.request(t, http.MethodPut, "/session/prompt", "a", map[string]string{"prompt": "Write tersely."})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Write tersely.", decodeBody(t, s.request(t, http.MethodGet, "/session", "a", nil))["base_prompt"])
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(t, reply)
	req := httptest.NewRequest(http.MethodPost, "/manuscripts", strings.NewReader("{"))
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetupManuscript(t *testing.T) {
	s := newTestServer(t, reply)

	w := s.request(t, http.MethodPost, "/manuscripts", "a", map[string]string{"concept": "photosynthesis"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp manuscriptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Manuscript created", resp.Status)
	assert.Equal(t, "# Light and Leaves\n\n## Abstract\nWe study photosynthesis.", resp.Manuscript.Source)

	w = s.request(t, http.MethodGet, "/manuscripts", "a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["manuscripts"], 1)
}

func TestSetupManuscript_Errors(t *testing.T) {
	s := newTestServer(t, reply)
	w := s.request(t, http.MethodPost, "/manuscripts", "a", map[string]string{"concept": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	failing := newTestServer(t, func(context.Context, string, string) (string, error) {
		return "", errors.New("backend down")
	})
	w = failing.request(t, http.MethodPost, "/manuscripts", "a", map[string]string{"concept": "x"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "backend down")
}

func TestSectionsLifecycle(t *testing.T) {
	s := newTestServer(t, reply)
	id := s.manuscript(t, "# Paper\n\n## Abstract\nA.")
	base := "/manuscripts/" + itoa(id)

	w := s.request(t, http.MethodPost, base+"/sections", "a", map[string]string{"name": "introduction"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Section introduction added", decodeBody(t, w)["status"])

	w = s.request(t, http.MethodPost, base+"/sections/Introduction/enhance", "a", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.request(t, http.MethodGet, base+"/sections", "a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"title":"Paper","abstract":"A.","introduction":"Enhanced body."}`, w.Body.String())
}

func TestSections_NotFound(t *testing.T) {
	s := newTestServer(t, reply)
	w := s.request(t, http.MethodGet, "/manuscripts/99/sections", "a", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.request(t, http.MethodGet, "/manuscripts/abc", "a", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCriticizeSection(t *testing.T) {
	s := newTestServer(t, reply)
	id := s.manuscript(t, "# Paper\n\n## Abstract\nA.")

	w := s.request(t, http.MethodPost, "/manuscripts/"+itoa(id)+"/sections/abstract/critique", "a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Too vague.", decodeBody(t, w)["critique"])

	// Failures surface inline.
	w = s.request(t, http.MethodPost, "/manuscripts/99/sections/abstract/critique", "a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Critique failed", body["status"])
	assert.Contains(t, body["critique"], "not found")
}

func TestUpdateManuscript(t *testing.T) {
	s := newTestServer(t, reply)
	id := s.manuscript(t, "# Paper\n\n## Abstract\nA.")
	path := "/manuscripts/" + itoa(id)

	w := s.request(t, http.MethodPut, path, "a", map[string]string{"text": ""})
	require.Equal(t, http.StatusOK, w.Code)
	text, err := s.store.ManuscriptText(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "# Paper\n\n## Abstract\nA.", text)

	w = s.request(t, http.MethodPut, path, "a", map[string]string{"text": "# New\n\n## Results\nR."})
	require.Equal(t, http.StatusOK, w.Code)
	text, err = s.store.ManuscriptText(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "# New\n\n## Results\nR.", text)

	w = s.request(t, http.MethodPut, "/manuscripts/99", "a", map[string]string{"text": "# X"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportAndDelete(t *testing.T) {
	s := newTestServer(t, reply)
	id := s.manuscript(t, "# Light and Leaves\n\n## Abstract\nA.")
	path := "/manuscripts/" + itoa(id)

	w := s.request(t, http.MethodGet, path+"/export", "a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "manuscrito-"+itoa(id)+"-Light-and-Leaves.md")
	assert.Equal(t, "# Light and Leaves\n\n## Abstract\nA.", w.Body.String())

	w = s.request(t, http.MethodDelete, path, "a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.request(t, http.MethodGet, path, "a", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProjects(t *testing.T) {
	s := newTestServer(t, reply)

	w := s.request(t, http.MethodGet, "/projects/recent", "a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(types.NoProject), decodeBody(t, w)["id"])

	w = s.request(t, http.MethodPost, "/projects", "a", map[string]any{"name": "Thesis", "language": "pt", "collection": "botany"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	project := decodeBody(t, w)["project"].(map[string]any)
	pid := int64(project["id"].(float64))
	assert.Equal(t, "Thesis", project["name"])

	assert.Equal(t, "botany", decodeBody(t, s.request(t, http.MethodGet, "/session", "a", nil))["collection"])
	assert.Equal(t, float64(pid), decodeBody(t, s.request(t, http.MethodGet, "/projects/recent", "a", nil))["id"])

	w = s.request(t, http.MethodGet, "/projects", "a", nil)
	assert.Len(t, decodeBody(t, w)["projects"], 1)

	w = s.request(t, http.MethodGet, "/projects/"+itoa(pid)+"/manuscript", "a", nil)
	assert.Equal(t, float64(types.NoManuscript), decodeBody(t, w)["manuscript_id"])

	w = s.request(t, http.MethodDelete, "/projects/"+itoa(pid), "a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(types.NoProject), decodeBody(t, s.request(t, http.MethodGet, "/session", "a", nil))["project_id"])
}

func TestProjects_Validation(t *testing.T) {
	s := newTestServer(t, reply)
	w := s.request(t, http.MethodPost, "/projects", "a", map[string]any{"language": "fr"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "language")
}

func TestLoadProject_Provisions(t *testing.T) {
	s := newTestServer(t, reply)
	w := s.request(t, http.MethodGet, "/projects/42", "a", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	project := decodeBody(t, w)["project"].(map[string]any)
	assert.Equal(t, types.DefaultProjectName, project["name"])
	assert.NotNil(t, project["manuscript_id"])
}

func TestKnowledge(t *testing.T) {
	s := newTestServer(t, reply)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("Leaves are green."), 0o644))

	w := s.request(t, http.MethodPost, "/knowledge/documents", "a", map[string]string{"path": filepath.Join(dir, "notes.md")})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := decodeBody(t, w)["summary"].(map[string]any)
	assert.Equal(t, float64(1), summary["embedded"])

	w = s.request(t, http.MethodPost, "/knowledge/folder", "a", map[string]string{"dir": dir})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// No folder given and no project folder configured.
	w = s.request(t, http.MethodPost, "/knowledge/folder", "b", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.request(t, http.MethodGet, "/knowledge/documents", "a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "literature", body["collection"])
	assert.Len(t, body["documents"], 1)

	w = s.request(t, http.MethodGet, "/knowledge/search?q=light&n=3", "a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeBody(t, w)["passages"], "Chlorophyll")

	w = s.request(t, http.MethodGet, "/knowledge/search", "a", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEndSession(t *testing.T) {
	s := newTestServer(t, reply)
	s.request(t, http.MethodPut, "/session/collection", "a", map[string]string{"collection": "botany"})

	w := s.request(t, http.MethodDelete, "/session", "a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "literature", decodeBody(t, s.request(t, http.MethodGet, "/session", "a", nil))["collection"])
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
