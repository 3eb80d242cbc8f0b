// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pdiddy/aiwrite/pkg/types"
)

// EventCallback is called after a watcher-driven embed attempt.
type EventCallback func(path string, sum types.EmbedSummary, err error)

// settleDelay is how long a file must stay quiet before it is embedded.
// Copying a large PDF produces a burst of write events.
var settleDelay = 500 * time.Millisecond

// Watch embeds supported documents as they are created or rewritten under
// dir until ctx is cancelled. Files already present are not embedded; run
// EmbedFolder first for that. New subdirectories are watched as they appear.
func (in *Ingester) Watch(ctx context.Context, e Embedder, dir string, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, dir); err != nil {
		return err
	}
	in.logger.Info("watcher: started", "root", dir)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(settleDelay / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			in.logger.Info("watcher: stopped")
			return nil

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < settleDelay {
					continue
				}
				delete(pending, path)
				sum, err := in.EmbedDocument(ctx, e, path)
				if err != nil {
					in.logger.Warn("watcher: embed failed", "path", path, "error", err)
				} else {
					in.logger.Info("watcher: embedded", "path", path, "pages", sum.Embedded)
				}
				if cb != nil {
					cb(path, sum, err)
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						in.logger.Warn("watcher: add new dir failed", "path", ev.Name, "error", addErr)
					}
					continue
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !Supported(ev.Name) {
				continue
			}
			pending[ev.Name] = time.Now()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.logger.Error("watcher: error", "error", watchErr)
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
