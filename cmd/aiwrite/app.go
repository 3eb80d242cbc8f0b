// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/pdiddy/aiwrite/internal/generate"
	"github.com/pdiddy/aiwrite/internal/ingest"
	"github.com/pdiddy/aiwrite/internal/knowledge"
	"github.com/pdiddy/aiwrite/internal/store"
	"github.com/pdiddy/aiwrite/internal/workflow"
	"github.com/pdiddy/aiwrite/pkg/types"
)

// app holds the shared collaborators a command needs.
type app struct {
	deps    workflow.Deps
	closers []func() error
}

// openApp opens the manuscript store and knowledge backend and builds the
// model registry from cfg.
func openApp(ctx context.Context) (*app, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	opener, closeKB, err := knowledge.NewOpener(cfg.Knowledge)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &app{
		deps: workflow.Deps{
			Store:     st,
			Models:    generate.NewRegistry(cfg.Generation, logger),
			Knowledge: opener,
			Ingester:  ingest.New(cfg.Ingest, logger),
			Logger:    logger,
			NumDocs:   cfg.Knowledge.NumDocs,
		},
		closers: []func() error{closeKB, st.Close},
	}, nil
}

// Close releases the store and knowledge backend.
func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// initialState is the engine state new sessions start from.
func initialState() types.SessionState {
	return types.SessionState{
		Model:      cfg.Generation.DefaultModel,
		Collection: cfg.Knowledge.Collection,
		BasePrompt: cfg.Generation.BasePrompt,
	}
}

// addEngineFlags registers the flags that select engine state for one
// command invocation.
func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().String("model", "", "generation backend (claude, gpt, gemini, llama3, ollama:<name>)")
	cmd.Flags().String("collection", "", "knowledge collection")
	cmd.Flags().Int64("project", 0, "project id to load; its model and collection apply")
}

// engine builds a workflow engine for a CLI command. Flags override the
// configured model and collection; --project loads that project first.
func (a *app) engine(ctx context.Context, cmd *cobra.Command) (*workflow.Engine, error) {
	state := initialState()
	if m, _ := cmd.Flags().GetString("model"); m != "" {
		state.Model = m
	}
	if c, _ := cmd.Flags().GetString("collection"); c != "" {
		state.Collection = c
	}
	e, err := workflow.New(ctx, a.deps, state)
	if err != nil {
		return nil, err
	}
	if pid, _ := cmd.Flags().GetInt64("project"); pid > 0 {
		if _, err := e.FindProject(ctx, pid); err != nil {
			return nil, err
		}
		if _, err := e.LoadProject(ctx, pid); err != nil {
			return nil, err
		}
		// Explicit flags win over the project's settings.
		if m, _ := cmd.Flags().GetString("model"); m != "" {
			if err := e.SetModel(ctx, m); err != nil {
				return nil, err
			}
		}
		if c, _ := cmd.Flags().GetString("collection"); c != "" {
			if err := e.SetKnowledgeBase(c); err != nil {
				return nil, err
			}
		}
	}
	return e, nil
}

// withEngine opens the app, builds an engine and runs fn.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, e *workflow.Engine) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	e, err := a.engine(ctx, cmd)
	if err != nil {
		return err
	}
	return fn(ctx, e)
}
