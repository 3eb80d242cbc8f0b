// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package knowledge ingests document passages into named collections and
// retrieves the passages most relevant to a query as one aggregated string
// suitable for a generation context.
//
// Two backends implement Retriever: a SQLite passage index (FTS5 when built
// with the sqlite_fts5 tag, term matching otherwise) and Meilisearch.
package knowledge

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/pdiddy/aiwrite/pkg/types"
)

// Retriever is a handle on one knowledge collection.
type Retriever interface {
	// Collection returns the collection name this handle is bound to.
	Collection() string

	// RetrieveDocs returns up to n passages relevant to query, aggregated
	// into a single string. An empty collection yields "".
	RetrieveDocs(ctx context.Context, query string, n int) (string, error)

	// EmbedText ingests one unit of text tagged with its source and page.
	// Re-embedding the same source and page replaces the earlier text.
	EmbedText(ctx context.Context, text, source string, page int) error

	// EmbeddedDocuments lists the source documents in the collection.
	EmbeddedDocuments(ctx context.Context) ([]types.EmbeddedDocument, error)
}

// Opener returns a Retriever for the named collection.
type Opener func(collection string) (Retriever, error)

// NewOpener builds the Opener for the configured backend. The returned
// closer releases the backend's shared resources.
func NewOpener(cfg types.KnowledgeConfig) (Opener, func() error, error) {
	switch cfg.Backend {
	case types.KnowledgeSQLite, "":
		idx, err := OpenIndex(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return idx.Open, idx.Close, nil
	case types.KnowledgeMeilisearch:
		m, err := NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey)
		if err != nil {
			return nil, nil, err
		}
		return m.Open, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown knowledge backend %q", cfg.Backend)
	}
}

// aggregate joins passages into the text handed to the generation context.
// Each passage is prefixed with its source and page so the model can cite it.
func aggregate(passages []types.Passage) string {
	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s, p. %d]\n%s", p.Source, p.Page+1, strings.TrimSpace(p.Content))
	}
	return b.String()
}

// queryTerms splits a free-text query into distinct lower-cased words of at
// least three letters or digits.
func queryTerms(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, f := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(f)) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}
