package indexer

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval batches bursts of filesystem events into one reconcile.
const debounceInterval = 500 * time.Millisecond

// Watch starts an fsnotify watcher on the project root and runs a reconcile
// pass after file changes settle, until ctx is cancelled. Events from
// excluded directories and non-indexable files are ignored. New directories
// created at runtime are added to the watch list.
//
// Watch is best-effort freshness: searches still reconcile on demand, so a
// missed event only delays visibility until the next search.
func (ix *Indexer) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	if err := addDirsRecursive(w, ix.root); err != nil {
		return err
	}

	ix.logger.Info("watcher started", slog.String("root", ix.root))

	var debounce *time.Timer
	var reconcileCh <-chan time.Time

	schedule := func() {
		if debounce == nil {
			debounce = time.NewTimer(debounceInterval)
			reconcileCh = debounce.C
		} else {
			debounce.Reset(debounceInterval)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			ix.logger.Info("watcher stopped")
			return nil

		case <-reconcileCh:
			if _, err := ix.Reconcile(ctx); err != nil {
				ix.logger.Warn("watcher reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if _, skip := SkipDirs[filepath.Base(ev.Name)]; !skip {
						if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
							ix.logger.Warn("watch new dir failed",
								slog.String("path", ev.Name), slog.String("error", addErr.Error()))
						}
						schedule()
					}
					continue
				}
			}

			if _, ok := IndexableExtensions[strings.ToLower(filepath.Ext(ev.Name))]; !ok {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			ix.logger.Error("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its non-excluded subdirectories to the
// watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if _, skip := SkipDirs[d.Name()]; skip {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
