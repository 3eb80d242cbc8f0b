// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export writes manuscripts out of the store and reads them back.
// A manuscript exports either as one Markdown file or as a directory of
// numbered section files (NN-slug.md) with an outline.yaml.
package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/aiwrite/internal/sections"
	"github.com/pdiddy/aiwrite/pkg/types"
)

const outlineFile = "outline.yaml"

// titleFile holds the first-level heading in a split export.
const titleFile = "00-title.md"

// sectionFilePattern matches numbered section files: NN-slug.md.
var sectionFilePattern = regexp.MustCompile(`^\d{2}-.+\.md$`)

var (
	slugStrip    = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	slugCollapse = regexp.MustCompile(`[-\s]+`)
)

// Slug reduces text to letters, digits and underscores joined by single
// hyphens. Accented letters are kept.
func Slug(text string) string {
	s := slugStrip.ReplaceAllString(text, "")
	s = slugCollapse.ReplaceAllString(strings.TrimSpace(s), "-")
	return strings.Trim(s, "-")
}

// Filename returns the download name for a manuscript:
// manuscrito-{id}-{slug of the first line}.md.
func Filename(m *types.Manuscript) string {
	first := strings.TrimLeft(m.FirstLine(), "# ")
	return fmt.Sprintf("manuscrito-%d-%s.md", m.ID, Slug(first))
}

// WriteFile writes the manuscript source into dir under Filename and returns
// the path written.
func WriteFile(m *types.Manuscript, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, Filename(m))
	if err := os.WriteFile(path, []byte(m.Source), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// Split writes one file per section into dir plus outline.yaml. The title
// goes to 00-title.md; sections are numbered from 01 in document order.
func Split(m *types.Manuscript, dir string) (*types.Outline, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	parsed := sections.Parse(m.Source)
	outline := &types.Outline{ManuscriptID: m.ID, Title: parsed.Title()}

	if outline.Title != "" {
		if err := writeText(dir, titleFile, "# "+outline.Title+"\n"); err != nil {
			return nil, err
		}
	}

	for i, s := range parsed.Sections() {
		num := fmt.Sprintf("%02d", i+1)
		name := sectionFile(num, s.Name)
		body := sections.Heading(s.Name) + "\n" + s.Body + "\n"
		if err := writeText(dir, name, body); err != nil {
			return nil, err
		}
		outline.Sections = append(outline.Sections, types.OutlineSection{
			Number: num,
			Name:   s.Name,
			File:   name,
		})
	}

	data, err := yaml.Marshal(outline)
	if err != nil {
		return nil, fmt.Errorf("encoding outline: %w", err)
	}
	if err := writeText(dir, outlineFile, string(data)); err != nil {
		return nil, err
	}
	return outline, nil
}

// sectionFile names the split file for a section. Names with nothing left
// to slug fall back to "section" so the file still matches NN-*.md.
func sectionFile(num, name string) string {
	slug := strings.ToLower(Slug(name))
	if slug == "" {
		slug = "section"
	}
	return num + "-" + slug + ".md"
}

// LoadOutline reads outline.yaml from an exported manuscript directory.
func LoadOutline(dir string) (*types.Outline, error) {
	data, err := os.ReadFile(filepath.Join(dir, outlineFile))
	if err != nil {
		return nil, fmt.Errorf("reading outline: %w", err)
	}
	var outline types.Outline
	if err := yaml.Unmarshal(data, &outline); err != nil {
		return nil, fmt.Errorf("parsing outline: %w", err)
	}
	return &outline, nil
}

// SectionFiles returns the ordered list of numbered section file paths
// (NN-*.md) in dir, excluding the title file.
func SectionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading export directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == titleFile {
			continue
		}
		if sectionFilePattern.MatchString(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Assemble rebuilds manuscript source from a split export. Files are read in
// outline order when outline.yaml exists, otherwise in filename order.
// Edited section files are taken as they are, headings included.
func Assemble(dir string) (string, error) {
	var files []string
	title := ""
	outline, err := LoadOutline(dir)
	switch {
	case err == nil:
		title = outline.Title
		for _, s := range outline.Sections {
			files = append(files, filepath.Join(dir, s.File))
		}
	case errors.Is(err, fs.ErrNotExist):
		if files, err = SectionFiles(dir); err != nil {
			return "", err
		}
		if data, err := os.ReadFile(filepath.Join(dir, titleFile)); err == nil {
			title = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(data)), "# "))
		}
	default:
		return "", err
	}

	parts := make([]string, 0, len(files)+1)
	if title != "" {
		parts = append(parts, "# "+title)
	}
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", filepath.Base(f), err)
		}
		parts = append(parts, strings.TrimSpace(string(data)))
	}
	return strings.Join(parts, "\n\n"), nil
}

func writeText(dir, name, text string) error {
	if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// citationPattern matches passage references: [smith2020.pdf, p. 3].
var citationPattern = regexp.MustCompile(`\[([^\[\],]+),\s*p\.\s*(\d+)\]`)

// Citations returns the distinct passage references in text in order of
// first appearance.
func Citations(text string) []types.Citation {
	seen := make(map[types.Citation]bool)
	var out []types.Citation
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		page, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		c := types.Citation{Source: strings.TrimSpace(m[1]), Page: page}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// MissingSources returns the cited sources that are not among docs, sorted.
func MissingSources(text string, docs []types.EmbeddedDocument) []string {
	known := make(map[string]bool, len(docs))
	for _, d := range docs {
		known[d.Source] = true
	}
	missing := make(map[string]bool)
	for _, c := range Citations(text) {
		if !known[c.Source] {
			missing[c.Source] = true
		}
	}
	out := make([]string, 0, len(missing))
	for s := range missing {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
