// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/aiwrite/internal/workflow"
	"github.com/pdiddy/aiwrite/pkg/types"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	Long: `A project binds a name, a language, a generation model, a documents folder
and a knowledge collection to one manuscript. Loading a project id that does
not exist provisions a new project with an empty manuscript.`,
}

func printProject(w io.Writer, p *types.Project) {
	fmt.Fprintf(w, "Project %d: %s\n", p.ID, p.Name)
	fmt.Fprintf(w, "  language:   %s\n", p.Language)
	fmt.Fprintf(w, "  model:      %s\n", p.Model)
	fmt.Fprintf(w, "  collection: %s\n", p.Collection)
	fmt.Fprintf(w, "  documents:  %s\n", p.DocumentsFolder)
	if ref := p.ManuscriptRef(); ref != types.NoManuscript {
		fmt.Fprintf(w, "  manuscript: %d\n", ref)
	}
}

var projectLoadCmd = &cobra.Command{
	Use:   "load [id]",
	Short: "Show a project, provisioning it when missing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			p, err := e.LoadProject(ctx, id)
			if err != nil {
				return err
			}
			printProject(cmd.OutOrStdout(), p)
			return nil
		})
	},
}

var projectSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Create or update a project",
	Long: `Save creates a project, or updates the one given by --id. Fields left
empty on update keep their stored values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			p := &types.Project{}
			id, _ := cmd.Flags().GetInt64("id")
			if id > 0 {
				existing, err := e.FindProject(ctx, id)
				switch {
				case err == nil:
					p = existing
				case workflow.IsNotFound(err):
					p.ID = id
				default:
					return err
				}
			}
			applyProjectFlags(cmd, p)
			if err := p.Validate(); err != nil {
				return err
			}
			saved, err := e.SaveProject(ctx, p)
			if err != nil {
				return err
			}
			printProject(cmd.OutOrStdout(), saved)
			return nil
		})
	},
}

// applyProjectFlags copies the flags the user set onto p.
func applyProjectFlags(cmd *cobra.Command, p *types.Project) {
	set := func(flag string, dst *string) {
		if cmd.Flags().Changed(flag) {
			*dst, _ = cmd.Flags().GetString(flag)
		}
	}
	set("name", &p.Name)
	set("language", &p.Language)
	set("project-model", &p.Model)
	set("documents", &p.DocumentsFolder)
	set("project-collection", &p.Collection)
	if cmd.Flags().Changed("manuscript") {
		mid, _ := cmd.Flags().GetInt64("manuscript")
		if mid > 0 {
			p.BindManuscript(mid)
		} else {
			p.ManuscriptID = nil
		}
	}
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			items, err := e.ListProjects(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No projects.")
				return nil
			}
			fmt.Fprintf(out, "%-6s  %-30s  %-4s  %-14s  %s\n", "ID", "Name", "Lang", "Model", "Manuscript")
			fmt.Fprintln(out, strings.Repeat("-", 72))
			for _, p := range items {
				ms := "-"
				if ref := p.ManuscriptRef(); ref != types.NoManuscript {
					ms = fmt.Sprint(ref)
				}
				fmt.Fprintf(out, "%-6d  %-30s  %-4s  %-14s  %s\n", p.ID, p.Name, p.Language, p.Model, ms)
			}
			return nil
		})
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a project; its manuscript is kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			if err := e.DeleteProject(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project %d deleted\n", id)
			return nil
		})
	},
}

var projectRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Print the most recently updated project and its manuscript",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			out := cmd.OutOrStdout()
			id, err := e.MostRecentProject(ctx)
			if err != nil {
				return err
			}
			if id == types.NoProject {
				fmt.Fprintln(out, "No projects.")
				return nil
			}
			p, err := e.FindProject(ctx, id)
			if err != nil {
				return err
			}
			printProject(out, p)
			mid, err := e.ProjectManuscript(ctx, id)
			if err != nil {
				return err
			}
			if mid == types.NoManuscript {
				fmt.Fprintln(out, "  (no manuscript)")
			}
			return nil
		})
	},
}

var projectModelCmd = &cobra.Command{
	Use:   "model [id] [model]",
	Short: "Set a project's generation model",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withEngine(cmd, func(ctx context.Context, e *workflow.Engine) error {
			if _, err := e.FindProject(ctx, id); err != nil {
				return err
			}
			if _, err := e.LoadProject(ctx, id); err != nil {
				return err
			}
			if err := e.UpdateProjectModel(ctx, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project %d model set to %s\n", id, e.Model())
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{
		projectLoadCmd, projectSaveCmd, projectListCmd, projectDeleteCmd, projectRecentCmd, projectModelCmd,
	} {
		addEngineFlags(c)
		projectCmd.AddCommand(c)
	}

	f := projectSaveCmd.Flags()
	f.Int64("id", 0, "project id to update (0 creates a project)")
	f.String("name", "", "project name")
	f.String("language", "", "language: en, pt, es")
	f.String("project-model", "", "generation model stored on the project")
	f.String("documents", "", "documents folder for bulk ingestion")
	f.String("project-collection", "", "knowledge collection stored on the project")
	f.Int64("manuscript", 0, "manuscript id to bind (0 unbinds)")

	rootCmd.AddCommand(projectCmd)
}
