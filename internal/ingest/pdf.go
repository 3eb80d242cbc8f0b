// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, err
}

// FileReader dispatches on file extension: PDFs go through pdftotext,
// Markdown and text files are read whole.
type FileReader struct {
	pdftotext string
	exec      executor
}

// NewFileReader returns a FileReader using the given pdftotext binary
// (default "pdftotext").
func NewFileReader(pdftotext string) *FileReader {
	if pdftotext == "" {
		pdftotext = "pdftotext"
	}
	return &FileReader{pdftotext: pdftotext, exec: osExecutor{}}
}

// Pages implements PageReader.
func (r *FileReader) Pages(ctx context.Context, path string) ([]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return r.pdfPages(ctx, path)
	case ".md", ".txt":
		return readTextFile(path)
	default:
		return nil, fmt.Errorf("unsupported document type %q", filepath.Ext(path))
	}
}

// pdfPages runs pdftotext with layout preserved and splits its output on
// form feeds, which pdftotext emits between pages.
func (r *FileReader) pdfPages(ctx context.Context, path string) ([]string, error) {
	if _, err := r.exec.LookPath(r.pdftotext); err != nil {
		return nil, fmt.Errorf("%s not found on PATH: %w", r.pdftotext, err)
	}
	out, err := r.exec.Output(ctx, r.pdftotext, "-enc", "UTF-8", "-layout", path, "-")
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", r.pdftotext, err)
	}
	return splitPages(string(out)), nil
}

// splitPages splits pdftotext output into pages. The trailing form feed
// after the last page does not produce an extra page.
func splitPages(out string) []string {
	pages := strings.Split(out, "\f")
	if n := len(pages); n > 0 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return pages
}
