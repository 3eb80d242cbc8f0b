// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Sentinel identifiers returned when a lookup has nothing to report.
const (
	// NoProject is returned by MostRecentProject when no project exists.
	NoProject int64 = -1

	// NoManuscript is returned when a project has no manuscript bound.
	NoManuscript int64 = -1
)

// Manuscript is a persisted document. Source is the single source of truth:
// a Markdown string whose first-level heading is the title and whose
// second-level headings delimit named sections, in document order.
type Manuscript struct {
	// ID is assigned by the store on first save.
	ID int64 `json:"id" yaml:"id"`

	// Created is stamped once when the manuscript is first persisted.
	Created time.Time `json:"created" yaml:"created"`

	// LastUpdated is refreshed on every mutation.
	LastUpdated time.Time `json:"last_updated" yaml:"last_updated"`

	// Source is the complete Markdown text of the manuscript.
	Source string `json:"source" yaml:"source"`
}

// FirstLine returns the first line of the source, which is normally the
// "# Title" heading. Used for list labels and export filenames.
func (m *Manuscript) FirstLine() string {
	for i := 0; i < len(m.Source); i++ {
		if m.Source[i] == '\n' {
			return m.Source[:i]
		}
	}
	return m.Source
}

// Project binds a generation backend, language, documents folder, knowledge
// collection and an active manuscript under a name.
type Project struct {
	ID int64 `json:"id" yaml:"id"`

	Name string `json:"name" yaml:"name"`

	// Language is an ISO-ish code: en, pt, es.
	Language string `json:"language" yaml:"language"`

	// Model is the generation-backend identifier (see generate.Registry).
	Model string `json:"model" yaml:"model"`

	// DocumentsFolder is the path scanned for bulk knowledge ingestion.
	DocumentsFolder string `json:"documents_folder,omitempty" yaml:"documents_folder,omitempty"`

	// Collection names the knowledge-base partition used by this project.
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`

	// ManuscriptID is a weak reference. It may be nil, or point to a
	// manuscript that was deleted independently; callers treat a lookup
	// miss as "no manuscript".
	ManuscriptID *int64 `json:"manuscript_id,omitempty" yaml:"manuscript_id,omitempty"`

	Created     time.Time `json:"created" yaml:"created"`
	LastUpdated time.Time `json:"last_updated" yaml:"last_updated"`
}

// Project defaults applied when fields are left empty.
const (
	DefaultProjectName     = "New Project"
	DefaultProjectLanguage = "en"
	DefaultProjectModel    = "llama3"
)

// EmptyManuscriptSource is the scaffold given to auto-provisioned projects.
const EmptyManuscriptSource = "# New Manuscript\n\n## Abstract\n"

// ApplyDefaults fills empty Name, Language and Model fields.
func (p *Project) ApplyDefaults() {
	if p.Name == "" {
		p.Name = DefaultProjectName
	}
	if p.Language == "" {
		p.Language = DefaultProjectLanguage
	}
	if p.Model == "" {
		p.Model = DefaultProjectModel
	}
}

// ManuscriptRef returns the bound manuscript id or NoManuscript.
func (p *Project) ManuscriptRef() int64 {
	if p.ManuscriptID == nil {
		return NoManuscript
	}
	return *p.ManuscriptID
}

// BindManuscript points the project at manuscript id.
func (p *Project) BindManuscript(id int64) {
	p.ManuscriptID = &id
}

// Languages a project may be written in.
var Languages = []any{"en", "pt", "es"}

// Validate checks the fields a user sets on a project.
func (p *Project) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.ID, validation.Min(int64(0))),
		validation.Field(&p.Name, validation.Length(0, 200)),
		validation.Field(&p.Language, validation.In(Languages...)),
	)
}
