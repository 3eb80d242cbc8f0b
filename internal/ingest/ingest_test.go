// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/aiwrite/pkg/types"
)

type embedded struct {
	text, source string
	page         int
}

// recordingEmbedder stores every page and fails pages listed in failPages.
type recordingEmbedder struct {
	mu        sync.Mutex
	pages     []embedded
	failPages map[int]bool
}

func (r *recordingEmbedder) EmbedText(_ context.Context, text, source string, page int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failPages[page] {
		return errors.New("index unavailable")
	}
	r.pages = append(r.pages, embedded{text, source, page})
	return nil
}

func (r *recordingEmbedder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pages)
}

// mapReader serves fixed pages per path.
type mapReader map[string][]string

func (m mapReader) Pages(_ context.Context, path string) ([]string, error) {
	p, ok := m[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return p, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEmbedDocument_SkipsEmptyAndFailedPages(t *testing.T) {
	in := NewWithReader(mapReader{
		"/docs/smith2020.pdf": {"first page", "   \n", "third page", "fourth page"},
	}, quietLogger())
	e := &recordingEmbedder{failPages: map[int]bool{3: true}}

	sum, err := in.EmbedDocument(context.Background(), e, "/docs/smith2020.pdf")
	require.NoError(t, err)

	assert.Equal(t, types.EmbedSummary{Documents: 1, Embedded: 2, Skipped: 1, Failed: 1}, sum)
	require.Len(t, e.pages, 2)
	assert.Equal(t, embedded{"first page", "smith2020.pdf", 0}, e.pages[0])
	assert.Equal(t, embedded{"third page", "smith2020.pdf", 2}, e.pages[1])
}

func TestEmbedDocument_Unreadable(t *testing.T) {
	in := NewWithReader(mapReader{}, quietLogger())
	_, err := in.EmbedDocument(context.Background(), &recordingEmbedder{}, "/missing.pdf")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEmbedDocument_EmptyFileSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pdf")
	writeFile(t, path, "")

	in := NewWithReader(mapReader{}, quietLogger())
	e := &recordingEmbedder{}
	sum, err := in.EmbedDocument(context.Background(), e, path)
	require.NoError(t, err)
	assert.Equal(t, types.EmbedSummary{Documents: 1}, sum)
	assert.Empty(t, e.pages)
}

func TestEmbedFolder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "# Notes\nPhotosynthesis.")
	writeFile(t, filepath.Join(dir, "b.txt"), "Plain text.")
	writeFile(t, filepath.Join(dir, "ignored.docx"), "binary")
	writeFile(t, filepath.Join(dir, "sub", "c.md"), "Nested.")
	writeFile(t, filepath.Join(dir, ".hidden", "d.md"), "Hidden.")

	in := NewWithReader(NewFileReader(""), quietLogger())
	e := &recordingEmbedder{}
	var out bytes.Buffer

	sum, err := in.EmbedFolder(context.Background(), e, dir, &out)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Documents)
	assert.Equal(t, 3, sum.Embedded)
	assert.Contains(t, out.String(), "embedded: a.md (1 pages)")
	assert.Contains(t, out.String(), "Embed summary: 3 documents")

	var sources []string
	for _, p := range e.pages {
		sources = append(sources, p.source)
	}
	assert.Equal(t, []string{"a.md", "b.txt", "c.md"}, sources)
}

func TestEmbedFolder_MissingDir(t *testing.T) {
	in := NewWithReader(NewFileReader(""), quietLogger())
	_, err := in.EmbedFolder(context.Background(), &recordingEmbedder{}, filepath.Join(t.TempDir(), "nope"), io.Discard)
	assert.Error(t, err)
}

// --- pdftotext ---

type fakeExecutor struct {
	lookErr error
	out     string
	gotArgs []string
}

func (f *fakeExecutor) LookPath(file string) (string, error) {
	if f.lookErr != nil {
		return "", f.lookErr
	}
	return "/usr/bin/" + file, nil
}

func (f *fakeExecutor) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	f.gotArgs = append([]string{name}, args...)
	return []byte(f.out), nil
}

func TestFileReader_PDF(t *testing.T) {
	pdf := filepath.Join(t.TempDir(), "paper.pdf")
	writeFile(t, pdf, "%PDF-1.4")

	fe := &fakeExecutor{out: "page one\fpage two\f\fpage four\f"}
	r := &FileReader{pdftotext: "pdftotext", exec: fe}

	pages, err := r.Pages(context.Background(), pdf)
	require.NoError(t, err)
	assert.Equal(t, []string{"page one", "page two", "", "page four"}, pages)
	assert.Equal(t, []string{"pdftotext", "-enc", "UTF-8", "-layout", pdf, "-"}, fe.gotArgs)
}

func TestFileReader_MissingBinary(t *testing.T) {
	pdf := filepath.Join(t.TempDir(), "paper.pdf")
	writeFile(t, pdf, "%PDF-1.4")

	r := &FileReader{pdftotext: "pdftotext", exec: &fakeExecutor{lookErr: errors.New("not found")}}
	_, err := r.Pages(context.Background(), pdf)
	assert.ErrorContains(t, err, "pdftotext not found")
}

func TestFileReader_Unsupported(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "paper.docx")
	writeFile(t, doc, "x")
	_, err := NewFileReader("").Pages(context.Background(), doc)
	assert.ErrorContains(t, err, "unsupported")
}

func TestSplitPages(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"only", []string{"only"}},
		{"a\fb\f", []string{"a", "b"}},
		{"a\f\fc", []string{"a", "", "c"}},
	}
	for _, tt := range tests {
		got := splitPages(tt.in)
		if len(tt.want) == 0 {
			assert.Empty(t, got)
			continue
		}
		assert.Equal(t, tt.want, got)
	}
}

// --- watcher ---

func TestWatch_EmbedsNewFiles(t *testing.T) {
	old := settleDelay
	settleDelay = 50 * time.Millisecond
	defer func() { settleDelay = old }()

	dir := t.TempDir()
	in := NewWithReader(NewFileReader(""), quietLogger())
	e := &recordingEmbedder{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	var mu sync.Mutex
	var seen []string
	go func() {
		done <- in.Watch(ctx, e, dir, func(path string, _ types.EmbedSummary, err error) {
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				seen = append(seen, filepath.Base(path))
			}
		})
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "new.md"), "Fresh notes.")
	writeFile(t, filepath.Join(dir, "skip.docx"), "ignored")

	assert.Eventually(t, func() bool { return e.count() == 1 }, 3*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"new.md"}, seen)
	assert.Equal(t, "new.md", e.pages[0].source)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
