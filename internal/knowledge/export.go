// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/aiwrite/pkg/types"
)

// ExportEntry is one source document with its passages, as written by
// Export.
type ExportEntry struct {
	Source   string         `json:"source" yaml:"source"`
	Pages    int            `json:"pages" yaml:"pages"`
	Passages []ExportedPage `json:"passages" yaml:"passages"`
}

// ExportedPage holds the text of one ingested page.
type ExportedPage struct {
	Page    int    `json:"page" yaml:"page"`
	Content string `json:"content" yaml:"content"`
}

// Export writes every passage of collection to w grouped by source, as
// "yaml" or "json".
func (idx *Index) Export(ctx context.Context, collection, format string, w io.Writer) error {
	passages, err := idx.Passages(ctx, collection)
	if err != nil {
		return err
	}
	entries := groupBySource(passages)

	switch format {
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// groupBySource folds passages ordered by source into one entry per source.
func groupBySource(passages []types.Passage) []ExportEntry {
	entries := []ExportEntry{}
	for _, p := range passages {
		if len(entries) == 0 || entries[len(entries)-1].Source != p.Source {
			entries = append(entries, ExportEntry{Source: p.Source})
		}
		e := &entries[len(entries)-1]
		e.Passages = append(e.Passages, ExportedPage{Page: p.Page, Content: p.Content})
		e.Pages++
	}
	return entries
}
