// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// OutlineSection describes one section file in an exported manuscript
// directory.
type OutlineSection struct {
	// Number is the two-digit sequence number (e.g. "01", "02").
	Number string `json:"number" yaml:"number"`

	// Name is the lower-cased section key (e.g. "introduction").
	Name string `json:"name" yaml:"name"`

	// File is the section's filename (e.g. "01-introduction.md").
	File string `json:"file" yaml:"file"`
}

// Outline is the outline.yaml written next to the section files of an
// exported manuscript. Importing reads the files back in outline order.
type Outline struct {
	// ManuscriptID is the id the manuscript had when it was exported.
	ManuscriptID int64 `json:"manuscript_id" yaml:"manuscript_id"`

	// Title is the first-level heading text.
	Title string `json:"title" yaml:"title"`

	// Sections lists the section files in document order.
	Sections []OutlineSection `json:"sections" yaml:"sections"`
}

// Citation is a passage reference left in manuscript text by the model,
// in the "[source, p. N]" form knowledge retrieval hands it.
type Citation struct {
	Source string `json:"source" yaml:"source"`
	Page   int    `json:"page" yaml:"page"`
}
