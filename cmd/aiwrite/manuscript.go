// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/aiwrite/internal/export"
	"github.com/pdiddy/aiwrite/internal/workflow"
)

var manuscriptCmd = &cobra.Command{
	Use:     "manuscript",
	Aliases: []string{"ms"},
	Short:   "Draft, revise and export manuscripts",
	Long: `Manuscript drafts a new manuscript from a concept and then writes,
enhances and critiques its sections one at a time. Manuscripts can be printed,
exported as one Markdown file, split into numbered section files for editing,
and imported back.`,
}

// parseID parses a manuscript or project id argument.
func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

// --- setup ---

var manuscriptSetupCmd = &cobra.Command{
	Use:   "setup [concept]",
	Short: "Draft a title and abstract from a research concept",
	Long: `Setup asks the model for a title from the concept, retrieves related
passages from the knowledge collection, and asks for an abstract grounded on
them. The manuscript is saved only when both steps succeed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		concept := strings.Join(args, " ")
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			m, err := e.SetupManuscript(ctx, concept)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Manuscript %d created\n\n%s\n", m.ID, m.Source)
			return nil
		})
	},
}

// --- add / enhance / criticize ---

var manuscriptAddCmd = &cobra.Command{
	Use:   "add [id] [section]",
	Short: "Write a section and append it",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		name := strings.Join(args[1:], " ")
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			if _, err := e.AddSection(ctx, id, name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Section %s added to manuscript %d\n", name, id)
			return nil
		})
	},
}

var manuscriptEnhanceCmd = &cobra.Command{
	Use:   "enhance [id] [section]",
	Short: "Rewrite a section in place",
	Long: `Enhance asks the model to improve the named section and replaces its body,
leaving every other section untouched. A section that does not exist yet is
written and appended instead.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		name := strings.Join(args[1:], " ")
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			if _, err := e.EnhanceSection(ctx, id, name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Section %s enhanced in manuscript %d\n", name, id)
			return nil
		})
	},
}

var manuscriptCriticizeCmd = &cobra.Command{
	Use:   "criticize [id] [section]",
	Short: "Print critical feedback on a section",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		name := strings.Join(args[1:], " ")
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			text, err := e.CriticizeSection(ctx, id, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		})
	},
}

// --- show / list / delete ---

var manuscriptShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print a manuscript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		sectionsOnly, _ := cmd.Flags().GetBool("sections")
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			out := cmd.OutOrStdout()
			if sectionsOnly {
				m, err := e.ManuscriptSections(ctx, id)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(m)
			}
			m, err := e.Manuscript(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, m.Source)
			return nil
		})
	},
}

var manuscriptListCmd = &cobra.Command{
	Use:   "list",
	Short: "List manuscripts, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			items, err := e.ListManuscripts(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No manuscripts.")
				return nil
			}
			fmt.Fprintf(out, "%-6s  %-16s  %s\n", "ID", "Updated", "Title")
			fmt.Fprintln(out, strings.Repeat("-", 60))
			for _, m := range items {
				fmt.Fprintf(out, "%-6d  %-16s  %s\n", m.ID, m.LastUpdated.Format("2006-01-02 15:04"), m.FirstLine())
			}
			return nil
		})
	},
}

var manuscriptDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a manuscript and clear project references to it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			if err := e.DeleteManuscript(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Manuscript %d deleted\n", id)
			return nil
		})
	},
}

// --- export / split / import ---

var manuscriptExportCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Write a manuscript to a Markdown file",
	Long: `Export writes the manuscript source to manuscrito-<id>-<title>.md in the
output directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		dir, _ := cmd.Flags().GetString("out")
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			m, err := e.Manuscript(ctx, id)
			if err != nil {
				return err
			}
			path, err := export.WriteFile(m, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
			return nil
		})
	},
}

var manuscriptSplitCmd = &cobra.Command{
	Use:   "split [id] [dir]",
	Short: "Write one file per section plus outline.yaml",
	Long: `Split writes the title to 00-title.md and each section to a numbered
NN-<name>.md file, with an outline.yaml recording their order. Edit the files
and run import to bring the changes back.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			m, err := e.Manuscript(ctx, id)
			if err != nil {
				return err
			}
			outline, err := export.Split(m, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d section files to %s\n", len(outline.Sections), args[1])
			return nil
		})
	},
}

var manuscriptImportCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "Rebuild a manuscript from split section files",
	Long: `Import assembles the section files in dir, in outline order, and replaces
the source of the manuscript recorded in outline.yaml (or --id).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := export.Assemble(args[0])
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetInt64("id")
		if id == 0 {
			outline, err := export.LoadOutline(args[0])
			if err != nil {
				return fmt.Errorf("no --id given and %w", err)
			}
			id = outline.ManuscriptID
		}
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			if err := e.UpdateFromText(ctx, id, text); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Manuscript %d updated from %s\n", id, args[0])
			return nil
		})
	},
}

var manuscriptUpdateCmd = &cobra.Command{
	Use:   "update [id] [file]",
	Short: "Replace a manuscript's source with a Markdown file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			if err := e.UpdateFromText(ctx, id, string(data)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Manuscript %d updated\n", id)
			return nil
		})
	},
}

var manuscriptCiteCheckCmd = &cobra.Command{
	Use:   "cite-check [id]",
	Short: "Report cited sources missing from the knowledge collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			m, err := e.Manuscript(ctx, id)
			if err != nil {
				return err
			}
			docs, err := e.EmbeddedDocuments(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			cites := export.Citations(m.Source)
			missing := export.MissingSources(m.Source, docs)
			fmt.Fprintf(out, "%d citations, %d sources missing from %s\n", len(cites), len(missing), e.KnowledgeBase())
			for _, s := range missing {
				fmt.Fprintf(out, "  missing: %s\n", s)
			}
			if len(missing) > 0 {
				return fmt.Errorf("%d cited source(s) not in the knowledge base", len(missing))
			}
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{
		manuscriptSetupCmd, manuscriptAddCmd, manuscriptEnhanceCmd, manuscriptCriticizeCmd,
		manuscriptShowCmd, manuscriptListCmd, manuscriptDeleteCmd, manuscriptExportCmd,
		manuscriptSplitCmd, manuscriptImportCmd, manuscriptUpdateCmd, manuscriptCiteCheckCmd,
	} {
		addEngineFlags(c)
		manuscriptCmd.AddCommand(c)
	}

	manuscriptShowCmd.Flags().Bool("sections", false, "print the section map as JSON")
	manuscriptListCmd.Flags().Int("limit", 100, "maximum number of manuscripts")
	manuscriptExportCmd.Flags().String("out", ".", "output directory")
	manuscriptImportCmd.Flags().Int64("id", 0, "manuscript id (default from outline.yaml)")

	rootCmd.AddCommand(manuscriptCmd)
}
