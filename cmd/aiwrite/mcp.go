// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"

	"github.com/pdiddy/aiwrite/internal/mcpserver"
	"github.com/pdiddy/aiwrite/internal/session"
	"github.com/pdiddy/aiwrite/internal/workflow"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio",
	Long: `MCP serves manuscript tools over the Model Context Protocol on stdin and
stdout: setup_manuscript, add_section, enhance_section, criticize_section,
get_sections, update_manuscript, list_manuscripts and retrieve_knowledge.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		sessions, err := session.Open(cfg.Session)
		if err != nil {
			return err
		}
		defer sessions.Close()

		pool := workflow.NewPool(a.deps, sessions, initialState(), workflow.WithIdleTTL(cfg.Session.TTL))
		return mcpserver.New(pool, version).ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
