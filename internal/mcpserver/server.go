// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mcpserver exposes the manuscript workflow as MCP tools over stdio,
// so an assistant can draft and revise manuscripts directly.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pdiddy/aiwrite/internal/sections"
	"github.com/pdiddy/aiwrite/internal/workflow"
	"github.com/pdiddy/aiwrite/pkg/types"
)

// SessionID is the pool session every tool call runs under. A stdio server
// has exactly one client.
const SessionID = "mcp"

// Server wraps the MCP server with manuscript tools.
type Server struct {
	mcp  *server.MCPServer
	pool *workflow.Pool
}

// New creates a new MCP server with all tools registered.
func New(pool *workflow.Pool, version string) *Server {
	s := &Server{pool: pool}

	s.mcp = server.NewMCPServer(
		"aiwrite",
		version,
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("setup_manuscript",
		mcp.WithDescription("Draft a new manuscript from a research concept: a title and an abstract "+
			"grounded on the active knowledge collection. Returns the new manuscript id and text."),
		mcp.WithString("concept", mcp.Required(), mcp.Description("Research concept or idea to write about")),
	), s.setupManuscript)

	s.mcp.AddTool(mcp.NewTool("add_section",
		mcp.WithDescription("Write a new section and append it to the manuscript."),
		mcp.WithNumber("manuscript_id", mcp.Required(), mcp.Description("Manuscript id")),
		mcp.WithString("section", mcp.Required(), mcp.Description("Section name (e.g. introduction)")),
	), s.addSection)

	s.mcp.AddTool(mcp.NewTool("enhance_section",
		mcp.WithDescription("Rewrite an existing section in place. A missing section is written and appended."),
		mcp.WithNumber("manuscript_id", mcp.Required(), mcp.Description("Manuscript id")),
		mcp.WithString("section", mcp.Required(), mcp.Description("Section name")),
	), s.enhanceSection)

	s.mcp.AddTool(mcp.NewTool("criticize_section",
		mcp.WithDescription("Return critical feedback on a section without changing the manuscript."),
		mcp.WithNumber("manuscript_id", mcp.Required(), mcp.Description("Manuscript id")),
		mcp.WithString("section", mcp.Required(), mcp.Description("Section name")),
	), s.criticizeSection)

	s.mcp.AddTool(mcp.NewTool("get_sections",
		mcp.WithDescription("Return the manuscript as a JSON object of section name to text, title first."),
		mcp.WithNumber("manuscript_id", mcp.Required(), mcp.Description("Manuscript id")),
	), s.getSections)

	s.mcp.AddTool(mcp.NewTool("update_manuscript",
		mcp.WithDescription("Replace the full Markdown text of a manuscript. Empty text is ignored."),
		mcp.WithNumber("manuscript_id", mcp.Required(), mcp.Description("Manuscript id")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Complete Markdown source")),
	), s.updateManuscript)

	s.mcp.AddTool(mcp.NewTool("list_manuscripts",
		mcp.WithDescription("List stored manuscripts, most recently updated first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of manuscripts (default 100)")),
	), s.listManuscripts)

	s.mcp.AddTool(mcp.NewTool("retrieve_knowledge",
		mcp.WithDescription("Search the active knowledge collection and return the matching passages."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithNumber("n", mcp.Description("Number of passages (default 15)")),
	), s.retrieveKnowledge)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) do(ctx context.Context, fn func(*workflow.Engine) error) error {
	return s.pool.Do(ctx, SessionID, fn)
}

// manuscriptArgs reads the manuscript id and section name every section
// tool takes.
func manuscriptArgs(req mcp.CallToolRequest) (int64, string, error) {
	id, err := req.RequireFloat("manuscript_id")
	if err != nil {
		return 0, "", err
	}
	name, err := req.RequireString("section")
	if err != nil {
		return 0, "", err
	}
	return int64(id), strings.ToLower(strings.TrimSpace(name)), nil
}

func (s *Server) setupManuscript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	concept, err := req.RequireString("concept")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var m *types.Manuscript
	if err := s.do(ctx, func(e *workflow.Engine) error {
		m, err = e.SetupManuscript(ctx, concept)
		return err
	}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("manuscript %d created\n\n%s", m.ID, m.Source)), nil
}

func (s *Server) addSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, name, err := manuscriptArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var m *types.Manuscript
	if err := s.do(ctx, func(e *workflow.Engine) error {
		m, err = e.AddSection(ctx, id, name)
		return err
	}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(m.Source), nil
}

func (s *Server) enhanceSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, name, err := manuscriptArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var m *types.Manuscript
	if err := s.do(ctx, func(e *workflow.Engine) error {
		m, err = e.EnhanceSection(ctx, id, name)
		return err
	}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(m.Source), nil
}

func (s *Server) criticizeSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, name, err := manuscriptArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var critique string
	if err := s.do(ctx, func(e *workflow.Engine) error {
		critique, err = e.CriticizeSection(ctx, id, name)
		return err
	}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(critique), nil
}

func (s *Server) getSections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireFloat("manuscript_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var m *sections.Map
	if err := s.do(ctx, func(e *workflow.Engine) error {
		m, err = e.ManuscriptSections(ctx, int64(id))
		return err
	}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) updateManuscript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireFloat("manuscript_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.do(ctx, func(e *workflow.Engine) error {
		return e.UpdateFromText(ctx, int64(id), text)
	}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("manuscript %d updated", int64(id))), nil
}

func (s *Server) listManuscripts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := int(req.GetFloat("limit", 0))
	var items []types.Manuscript
	if err := s.do(ctx, func(e *workflow.Engine) error {
		var err error
		items, err = e.ListManuscripts(ctx, limit)
		return err
	}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no manuscripts"), nil
	}
	lines := make([]string, 0, len(items))
	for _, m := range items {
		lines = append(lines, fmt.Sprintf("%d\t%s\t%s", m.ID, m.LastUpdated.Format("2006-01-02 15:04"), m.FirstLine()))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) retrieveKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n := int(req.GetFloat("n", 0))
	var text string
	if err := s.do(ctx, func(e *workflow.Engine) error {
		text, err = e.RetrieveKnowledge(ctx, query, n)
		return err
	}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if text == "" {
		return mcp.NewToolResultText("no passages found"), nil
	}
	return mcp.NewToolResultText(text), nil
}
