// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest splits documents into pages and feeds them to a knowledge
// collection. PDFs are read with pdftotext; Markdown and plain text files
// are ingested as a single page.
package ingest

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/aiwrite/pkg/types"
)

// Embedder receives one page of text at a time. knowledge.Retriever
// satisfies it.
type Embedder interface {
	EmbedText(ctx context.Context, text, source string, page int) error
}

// PageReader extracts the text of a document, one string per page.
type PageReader interface {
	Pages(ctx context.Context, path string) ([]string, error)
}

// supportedExts lists the extensions EmbedFolder and Watch pick up.
var supportedExts = map[string]bool{
	".pdf": true,
	".md":  true,
	".txt": true,
}

// Supported reports whether path has an extension the ingester reads.
func Supported(path string) bool {
	return supportedExts[strings.ToLower(filepath.Ext(path))]
}

// Ingester embeds documents page by page.
type Ingester struct {
	reader PageReader
	logger *slog.Logger
}

// New returns an Ingester reading PDFs with the configured pdftotext binary.
func New(cfg types.IngestConfig, logger *slog.Logger) *Ingester {
	return NewWithReader(NewFileReader(cfg.Pdftotext), logger)
}

// NewWithReader returns an Ingester using r for page extraction.
func NewWithReader(r PageReader, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{reader: r, logger: logger}
}

// EmbedDocument extracts the pages of path and forwards each non-empty page
// to e tagged with the file's base name and zero-based page number. Empty
// pages are skipped and pages e rejects are counted as failed; neither
// aborts the document. A zero-byte file is skipped as a document with no
// pages. Any other document that cannot be read returns an error.
func (in *Ingester) EmbedDocument(ctx context.Context, e Embedder, path string) (types.EmbedSummary, error) {
	var sum types.EmbedSummary

	if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() && fi.Size() == 0 {
		in.logger.Info("skipping empty document", "path", path)
		sum.Documents = 1
		return sum, nil
	}

	pages, err := in.reader.Pages(ctx, path)
	if err != nil {
		return sum, fmt.Errorf("reading %s: %w", path, err)
	}
	sum.Documents = 1

	source := filepath.Base(path)
	for i, text := range pages {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if strings.TrimSpace(text) == "" {
			sum.Skipped++
			continue
		}
		if err := e.EmbedText(ctx, text, source, i); err != nil {
			in.logger.Warn("embedding page failed",
				"source", source, "page", i, "error", err)
			sum.Failed++
			continue
		}
		sum.Embedded++
	}

	in.logger.Debug("embedded document", "source", source,
		"embedded", sum.Embedded, "skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}

// EmbedFolder embeds every supported document under dir, printing one
// status line per document to w and a summary at the end. Documents that
// cannot be read are reported and counted as failed.
func (in *Ingester) EmbedFolder(ctx context.Context, e Embedder, dir string, w io.Writer) (types.EmbedSummary, error) {
	var total types.EmbedSummary

	paths, err := listDocuments(dir)
	if err != nil {
		return total, err
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		sum, err := in.EmbedDocument(ctx, e, p)
		if err != nil {
			fmt.Fprintf(w, "failed:   %s (%v)\n", filepath.Base(p), err)
			total.Failed++
			continue
		}
		fmt.Fprintf(w, "embedded: %s (%d pages)\n", filepath.Base(p), sum.Embedded)
		total.Add(sum)
	}

	fmt.Fprintf(w, "\nEmbed summary: %d documents, %d pages embedded, %d skipped, %d failed\n",
		total.Documents, total.Embedded, total.Skipped, total.Failed)
	return total, nil
}

// listDocuments walks dir and returns supported files in lexical order.
func listDocuments(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing documents in %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// readTextFile returns the whole file as a single page.
func readTextFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []string{string(data)}, nil
}
