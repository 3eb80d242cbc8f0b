// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Passage is one unit of ingested text in a knowledge collection. Documents
// are ingested page by page, so a passage is usually one page.
type Passage struct {
	// Collection is the knowledge-base partition the passage belongs to.
	Collection string `json:"collection" yaml:"collection"`

	// Source is the document name the passage came from (e.g. "smith2020.pdf").
	Source string `json:"source" yaml:"source"`

	// Page is the zero-based page number within the source document.
	Page int `json:"page" yaml:"page"`

	// Content is the extracted text.
	Content string `json:"content" yaml:"content"`
}

// EmbeddedDocument is an inventory entry: a source document present in a
// collection. Listed for display in the knowledge page.
type EmbeddedDocument struct {
	Source     string `json:"source" yaml:"source"`
	Collection string `json:"collection" yaml:"collection"`

	// Pages is the number of passages ingested from the source.
	Pages int `json:"pages" yaml:"pages"`
}

// EmbedSummary holds counts from ingesting one or more documents.
type EmbedSummary struct {
	Documents int `json:"documents" yaml:"documents"`
	Embedded  int `json:"embedded" yaml:"embedded"`
	Skipped   int `json:"skipped" yaml:"skipped"`
	Failed    int `json:"failed" yaml:"failed"`
}

// Total returns the number of pages processed.
func (s EmbedSummary) Total() int {
	return s.Embedded + s.Skipped + s.Failed
}

// Add accumulates another summary into s.
func (s *EmbedSummary) Add(o EmbedSummary) {
	s.Documents += o.Documents
	s.Embedded += o.Embedded
	s.Skipped += o.Skipped
	s.Failed += o.Failed
}
