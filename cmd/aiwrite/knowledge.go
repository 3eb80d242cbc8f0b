// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/aiwrite/internal/knowledge"
	"github.com/pdiddy/aiwrite/internal/workflow"
	"github.com/pdiddy/aiwrite/pkg/types"
)

var knowledgeCmd = &cobra.Command{
	Use:     "knowledge",
	Aliases: []string{"kb"},
	Short:   "Manage the knowledge base (embed, list, search, export)",
	Long: `Knowledge ingests PDF, Markdown and text documents page by page into a
named collection, and retrieves the passages most relevant to a query. Drafting
an abstract grounds the model on passages from the active collection.`,
}

// --- embed subcommand ---

var knowledgeEmbedCmd = &cobra.Command{
	Use:   "embed [file...]",
	Short: "Embed documents into the collection",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			out := cmd.OutOrStdout()
			var total types.EmbedSummary
			var failed int
			for _, path := range args {
				sum, err := e.EmbedDocument(ctx, path)
				if err != nil {
					fmt.Fprintf(out, "failed:   %s (%v)\n", path, err)
					failed++
					continue
				}
				fmt.Fprintf(out, "embedded: %s (%d pages)\n", path, sum.Embedded)
				total.Add(sum)
			}
			fmt.Fprintf(out, "\nEmbedded %d pages into %s (%d skipped, %d failed)\n",
				total.Embedded, e.KnowledgeBase(), total.Skipped, total.Failed)
			if failed > 0 {
				return fmt.Errorf("%d document(s) could not be read", failed)
			}
			return nil
		})
	},
}

// --- embed-folder subcommand ---

var knowledgeEmbedFolderCmd = &cobra.Command{
	Use:   "embed-folder [dir]",
	Short: "Embed every supported document under a folder",
	Long: `Embed-folder walks dir, or the --project documents folder when dir is
omitted, and embeds every .pdf, .md and .txt file. Hidden directories are
skipped. With --watch it keeps running and embeds files as they appear.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) == 1 {
			dir = args[0]
		}
		watch, _ := cmd.Flags().GetBool("watch")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		e, err := a.engine(ctx, cmd)
		if err != nil {
			return err
		}
		if dir == "" {
			if p := e.CurrentProject(); p != nil {
				dir = p.DocumentsFolder
			}
		}
		if _, err := e.EmbedFolder(ctx, dir, cmd.OutOrStdout()); err != nil {
			return err
		}
		if !watch {
			return nil
		}

		kb, err := a.deps.Knowledge(e.KnowledgeBase())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nWatching %s (Ctrl-C to stop)\n", dir)
		return a.deps.Ingester.Watch(ctx, kb, dir, func(path string, sum types.EmbedSummary, err error) {
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "failed:   %s (%v)\n", path, err)
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "embedded: %s (%d pages)\n", path, sum.Embedded)
		})
	},
}

// --- list subcommand ---

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the documents in the collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			docs, err := e.EmbeddedDocuments(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(docs) == 0 {
				fmt.Fprintf(out, "No documents in %s.\n", e.KnowledgeBase())
				return nil
			}
			fmt.Fprintf(out, "%-50s  %s\n", "Source", "Pages")
			fmt.Fprintln(out, strings.Repeat("-", 60))
			for _, d := range docs {
				fmt.Fprintf(out, "%-50s  %d\n", d.Source, d.Pages)
			}
			fmt.Fprintf(out, "\n%d documents in %s\n", len(docs), e.KnowledgeBase())
			return nil
		})
	},
}

// --- search subcommand ---

var knowledgeSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Print the passages most relevant to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("num")
		query := strings.Join(args, " ")
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			text, err := e.RetrieveKnowledge(ctx, query, n)
			if err != nil {
				return err
			}
			if text == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		})
	},
}

// --- export subcommand ---

var knowledgeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the collection's passages to YAML or JSON",
	Long: `Export writes every passage of the collection, grouped by source document,
to stdout or --out. Only the sqlite backend supports export.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Knowledge.Backend != types.KnowledgeSQLite {
			return fmt.Errorf("export is not supported by the %s backend", cfg.Knowledge.Backend)
		}
		format, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")
		collection, _ := cmd.Flags().GetString("collection")
		if collection == "" {
			collection = cfg.Knowledge.Collection
		}

		idx, err := knowledge.OpenIndex(cfg.Knowledge.DBPath)
		if err != nil {
			return err
		}
		defer idx.Close()

		w := cmd.OutOrStdout()
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		if err := idx.Export(cmd.Context(), collection, format, w); err != nil {
			return err
		}
		if outPath != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", collection, outPath)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{
		knowledgeEmbedCmd, knowledgeEmbedFolderCmd, knowledgeListCmd, knowledgeSearchCmd,
	} {
		addEngineFlags(c)
		knowledgeCmd.AddCommand(c)
	}

	knowledgeEmbedFolderCmd.Flags().Bool("watch", false, "keep watching the folder for new documents")
	knowledgeSearchCmd.Flags().IntP("num", "n", 15, "number of passages")

	knowledgeExportCmd.Flags().String("collection", "", "knowledge collection (default from knowledge.collection)")
	knowledgeExportCmd.Flags().String("format", "yaml", "output format: yaml or json")
	knowledgeExportCmd.Flags().String("out", "", "output file (default stdout)")
	knowledgeCmd.AddCommand(knowledgeExportCmd)

	rootCmd.AddCommand(knowledgeCmd)
}
