// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow orchestrates manuscript writing: it ties the generation
// client, the knowledge retriever and the manuscript store together behind
// operations that draft, extend, enhance and critique a manuscript.
//
// An Engine carries mutable state (model, collection, base prompt, active
// project) and is not safe for concurrent use. Pool hands out one engine per
// session and serializes calls on it.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/template"

	"github.com/pdiddy/aiwrite/internal/generate"
	"github.com/pdiddy/aiwrite/internal/ingest"
	"github.com/pdiddy/aiwrite/internal/knowledge"
	"github.com/pdiddy/aiwrite/internal/sections"
	"github.com/pdiddy/aiwrite/internal/store"
	"github.com/pdiddy/aiwrite/pkg/types"
)

var (
	// ErrGeneration wraps any failure of the generation backend.
	ErrGeneration = errors.New("generation failed")

	// ErrRetrieval wraps any failure of the knowledge retriever.
	ErrRetrieval = errors.New("knowledge retrieval failed")

	// ErrInvalidInput is returned for blank names, prompts or concepts.
	ErrInvalidInput = errors.New("invalid input")
)

// defaultNumDocs is the number of passages retrieved for a new abstract.
const defaultNumDocs = 15

// Deps are the shared collaborators every engine is built from.
type Deps struct {
	Store     *store.Store
	Models    *generate.Registry
	Knowledge knowledge.Opener
	Ingester  *ingest.Ingester
	Logger    *slog.Logger

	// NumDocs overrides the number of passages retrieved in SetupManuscript.
	NumDocs int
}

// Engine is the stateful manuscript workflow for one user session.
type Engine struct {
	deps    Deps
	logger  *slog.Logger
	numDocs int

	llm        *generate.Client
	kb         knowledge.Retriever
	basePrompt string
	project    *types.Project
}

// New builds an engine from state. Empty fields fall back to defaults: the
// registry's default model, the "literature" collection and the standard
// base prompt. A ProjectID that no longer exists is dropped.
func New(ctx context.Context, deps Deps, state types.SessionState) (*Engine, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	numDocs := deps.NumDocs
	if numDocs <= 0 {
		numDocs = defaultNumDocs
	}
	e := &Engine{
		deps:       deps,
		logger:     logger,
		numDocs:    numDocs,
		basePrompt: state.BasePrompt,
	}
	if strings.TrimSpace(e.basePrompt) == "" {
		e.basePrompt = types.DefaultBasePrompt
	}

	if err := e.SetModel(ctx, state.Model); err != nil {
		return nil, err
	}
	collection := state.Collection
	if collection == "" {
		collection = defaultCollection
	}
	if err := e.SetKnowledgeBase(collection); err != nil {
		return nil, err
	}

	if state.ProjectID > 0 {
		p, err := deps.Store.GetProject(ctx, state.ProjectID)
		switch {
		case err == nil:
			e.project = p
		case errors.Is(err, store.ErrNotFound):
			logger.Warn("session project no longer exists", "project", state.ProjectID)
		default:
			return nil, err
		}
	}
	return e, nil
}

// defaultCollection is the knowledge collection new sessions start on.
const defaultCollection = "literature"

// State returns the engine's persistable state.
func (e *Engine) State() types.SessionState {
	s := types.SessionState{
		Model:      e.llm.Model(),
		Collection: e.kb.Collection(),
		BasePrompt: e.basePrompt,
		ProjectID:  types.NoProject,
	}
	if e.project != nil {
		s.ProjectID = e.project.ID
	}
	return s
}

// SetModel selects the generation backend. An unknown name is logged and
// replaced by the default backend; an empty name selects the default
// silently.
func (e *Engine) SetModel(ctx context.Context, name string) error {
	if name == "" {
		name = e.deps.Models.Default()
	}
	c, err := e.deps.Models.New(ctx, name)
	if err != nil {
		return fmt.Errorf("selecting model %q: %w", name, err)
	}
	c.SetContext(e.basePrompt)
	e.llm = c
	return nil
}

// Model returns the active backend identifier.
func (e *Engine) Model() string {
	return e.llm.Model()
}

// SetKnowledgeBase switches the active knowledge collection.
func (e *Engine) SetKnowledgeBase(collection string) error {
	if strings.TrimSpace(collection) == "" {
		return fmt.Errorf("collection name is blank: %w", ErrInvalidInput)
	}
	kb, err := e.deps.Knowledge(collection)
	if err != nil {
		return fmt.Errorf("opening collection %q: %w: %w", collection, ErrRetrieval, err)
	}
	e.kb = kb
	return nil
}

// KnowledgeBase returns the active collection name.
func (e *Engine) KnowledgeBase() string {
	return e.kb.Collection()
}

// SetBasePrompt replaces the standing instruction prepended to every
// context. A blank prompt is rejected.
func (e *Engine) SetBasePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("base prompt is blank: %w", ErrInvalidInput)
	}
	e.basePrompt = prompt
	return nil
}

// BasePrompt returns the standing instruction.
func (e *Engine) BasePrompt() string {
	return e.basePrompt
}

// ask renders an instruction and sends it under the current context.
func (e *Engine) ask(ctx context.Context, tmpl *template.Template, data promptData) (string, error) {
	instruction, err := render(tmpl, data)
	if err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", tmpl.Name(), err)
	}
	text, err := e.llm.Ask(ctx, instruction)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return strings.TrimSpace(text), nil
}

// SetupManuscript drafts a new manuscript from a concept: a title from the
// concept alone, then an abstract grounded on retrieved knowledge. The
// manuscript is persisted only when both succeed, and bound to the active
// project if there is one.
func (e *Engine) SetupManuscript(ctx context.Context, concept string) (*types.Manuscript, error) {
	if strings.TrimSpace(concept) == "" {
		return nil, fmt.Errorf("concept is blank: %w", ErrInvalidInput)
	}

	// The title sees the concept only, never a manuscript from an earlier call.
	e.llm.SetContext(e.basePrompt)
	title, err := e.ask(ctx, titleTmpl, promptData{Concept: concept})
	if err != nil {
		return nil, err
	}

	knowledgeText, err := e.kb.RetrieveDocs(ctx, concept, e.numDocs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	knowledgeText = strings.Trim(knowledgeText, `"`)

	e.llm.SetContext(conceptContext(e.basePrompt, concept, knowledgeText))
	abstract, err := e.ask(ctx, abstractTmpl, promptData{})
	if err != nil {
		return nil, err
	}

	source := "# " + title + "\n\n" + sections.Heading("abstract") + "\n" + abstract
	m, err := e.deps.Store.CreateManuscript(ctx, source)
	if err != nil {
		return nil, err
	}
	e.logger.Info("manuscript created", "id", m.ID, "title", title)

	if e.project != nil {
		e.project.BindManuscript(m.ID)
		p, err := e.deps.Store.SaveProject(ctx, e.project)
		if err != nil {
			return m, fmt.Errorf("binding manuscript to project %d: %w", e.project.ID, err)
		}
		e.project = p
	}
	return m, nil
}

// loadForSection fetches the manuscript and points the generation context at
// its full source.
func (e *Engine) loadForSection(ctx context.Context, id int64, name string) (*types.Manuscript, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("section name is blank: %w", ErrInvalidInput)
	}
	m, err := e.deps.Store.GetManuscript(ctx, id)
	if err != nil {
		return nil, err
	}
	e.llm.SetContext(manuscriptContext(e.basePrompt, m.Source))
	return m, nil
}

// AddSection generates the named section and appends it to the manuscript.
// A heading the model echoed at the top of its reply is dropped.
func (e *Engine) AddSection(ctx context.Context, id int64, name string) (*types.Manuscript, error) {
	m, err := e.loadForSection(ctx, id, name)
	if err != nil {
		return nil, err
	}
	body, err := e.ask(ctx, sectionTmpl, promptData{Section: name})
	if err != nil {
		return nil, err
	}
	m.Source = sections.Append(m.Source, name, sections.StripEchoedHeading(body, name))
	if err := e.deps.Store.SaveManuscript(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// EnhanceSection rewrites the named section in place, leaving every other
// section untouched. A section that is not present is added instead.
func (e *Engine) EnhanceSection(ctx context.Context, id int64, name string) (*types.Manuscript, error) {
	m, err := e.loadForSection(ctx, id, name)
	if err != nil {
		return nil, err
	}
	if !sections.HasSection(m.Source, name) {
		return e.AddSection(ctx, id, name)
	}
	body, err := e.ask(ctx, enhanceTmpl, promptData{Section: name})
	if err != nil {
		return nil, err
	}
	m.Source = sections.Replace(m.Source, name, sections.StripEchoedHeading(body, name))
	if err := e.deps.Store.SaveManuscript(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// CriticizeSection returns the model's critique of the named section. The
// manuscript is not modified and the section need not exist.
func (e *Engine) CriticizeSection(ctx context.Context, id int64, name string) (string, error) {
	if _, err := e.loadForSection(ctx, id, name); err != nil {
		return "", err
	}
	return e.ask(ctx, criticizeTmpl, promptData{Section: name})
}

// UpdateFromText replaces the manuscript source with text. Text that parses
// to no title and no sections, such as an empty editor buffer, is ignored.
func (e *Engine) UpdateFromText(ctx context.Context, id int64, text string) error {
	if sections.Parse(text).Len() == 0 {
		e.logger.Debug("ignoring empty manuscript update", "id", id)
		return nil
	}
	m, err := e.deps.Store.GetManuscript(ctx, id)
	if err != nil {
		return err
	}
	m.Source = text
	return e.deps.Store.SaveManuscript(ctx, m)
}

// ManuscriptSections returns the parsed sections of a manuscript.
func (e *Engine) ManuscriptSections(ctx context.Context, id int64) (*sections.Map, error) {
	m, err := e.deps.Store.GetManuscript(ctx, id)
	if err != nil {
		return nil, err
	}
	return sections.Parse(m.Source), nil
}

// Manuscript returns a stored manuscript.
func (e *Engine) Manuscript(ctx context.Context, id int64) (*types.Manuscript, error) {
	return e.deps.Store.GetManuscript(ctx, id)
}

// ManuscriptText returns the manuscript source, or "" when it does not exist.
func (e *Engine) ManuscriptText(ctx context.Context, id int64) (string, error) {
	return e.deps.Store.ManuscriptText(ctx, id)
}

// ListManuscripts returns up to limit manuscripts, most recently updated first.
func (e *Engine) ListManuscripts(ctx context.Context, limit int) ([]types.Manuscript, error) {
	return e.deps.Store.ListManuscripts(ctx, limit)
}

// DeleteManuscript removes a manuscript and clears project references to it.
func (e *Engine) DeleteManuscript(ctx context.Context, id int64) error {
	if err := e.deps.Store.DeleteManuscript(ctx, id); err != nil {
		return err
	}
	n, err := e.deps.Store.ClearManuscriptReferences(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		e.logger.Info("cleared manuscript references", "manuscript", id, "projects", n)
	}
	if e.project != nil && e.project.ManuscriptRef() == id {
		e.project.ManuscriptID = nil
	}
	return nil
}

// RetrieveKnowledge queries the active collection directly.
func (e *Engine) RetrieveKnowledge(ctx context.Context, query string, n int) (string, error) {
	if n <= 0 {
		n = e.numDocs
	}
	text, err := e.kb.RetrieveDocs(ctx, query, n)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	return text, nil
}

// EmbeddedDocuments lists the documents in the active collection.
func (e *Engine) EmbeddedDocuments(ctx context.Context) ([]types.EmbeddedDocument, error) {
	docs, err := e.kb.EmbeddedDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	return docs, nil
}

// EmbedDocument ingests one document into the active collection page by
// page. Empty pages and pages the retriever rejects are skipped.
func (e *Engine) EmbedDocument(ctx context.Context, path string) (types.EmbedSummary, error) {
	return e.deps.Ingester.EmbedDocument(ctx, e.kb, path)
}

// EmbedFolder ingests every supported document under dir, or under the
// active project's documents folder when dir is empty.
func (e *Engine) EmbedFolder(ctx context.Context, dir string, w io.Writer) (types.EmbedSummary, error) {
	if dir == "" && e.project != nil {
		dir = e.project.DocumentsFolder
	}
	if dir == "" {
		return types.EmbedSummary{}, fmt.Errorf("no documents folder: %w", ErrInvalidInput)
	}
	return e.deps.Ingester.EmbedFolder(ctx, e.kb, dir, w)
}
