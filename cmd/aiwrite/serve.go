// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/aiwrite/internal/server"
	"github.com/pdiddy/aiwrite/internal/session"
	"github.com/pdiddy/aiwrite/internal/workflow"
	"github.com/pdiddy/aiwrite/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve exposes manuscripts, projects and the knowledge base as a JSON API.
Each client keeps its own model, collection, base prompt and active project,
keyed by the X-Session-ID header. Session state lives in memory or in redis
(session.backend).

With ingest.watch enabled, the most recent project's documents folder is
watched and new or changed documents are embedded into its collection.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
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
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.NewRouter(pool, a.deps.Models, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Ingest.Watch {
		g.Go(func() error { return watchProjectFolder(ctx, a) })
	}
	return g.Wait()
}

// watchProjectFolder embeds documents dropped into the most recent
// project's folder until ctx is done. It returns nil when there is nothing
// to watch.
func watchProjectFolder(ctx context.Context, a *app) error {
	e, err := workflow.New(ctx, a.deps, initialState())
	if err != nil {
		return err
	}
	pid, err := e.MostRecentProject(ctx)
	if err != nil {
		return err
	}
	if pid == types.NoProject {
		logger.Info("watch enabled but no project exists")
		return nil
	}
	p, err := e.LoadProject(ctx, pid)
	if err != nil {
		return err
	}
	if p.DocumentsFolder == "" {
		logger.Info("watch enabled but project has no documents folder", "project", p.ID)
		return nil
	}

	kb, err := a.deps.Knowledge(e.KnowledgeBase())
	if err != nil {
		return fmt.Errorf("opening collection: %w", err)
	}
	logger.Info("watching documents folder", "dir", p.DocumentsFolder, "collection", kb.Collection())
	return a.deps.Ingester.Watch(ctx, kb, p.DocumentsFolder, func(path string, sum types.EmbedSummary, err error) {
		if err != nil {
			logger.Warn("embedding failed", "path", path, "error", err)
			return
		}
		logger.Info("embedded", "path", path, "pages", sum.Embedded, "skipped", sum.Skipped, "failed", sum.Failed)
	})
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	rootCmd.AddCommand(serveCmd)
}
