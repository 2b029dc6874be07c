package indexer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/mimir/internal/storage"
)

// newWatcher creates an fsnotify watcher covering root and every
// non-ignored subdirectory.
func newWatcher(root string) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addDirsRecursive(w, root); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// watch processes file change events until ctx is cancelled. Each event is
// handled on its own goroutine tracked by the session WaitGroup, so Stop can
// join them; per-document ordering is enforced by the keyed locks, not by
// the loop.
func (ix *Indexer) watch(ctx context.Context, w *fsnotify.Watcher, store *storage.FS, jobs chan<- job, wg *sync.WaitGroup) {
	defer w.Close()

	root := store.Root()

	for {
		select {
		case <-ctx.Done():
			ix.logger.Info("watcher: stopped", "root", root)
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			ix.handleEvent(ctx, w, store, jobs, wg, ev)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			ix.logger.Error("watcher: error", "error", err)
		}
	}
}

func (ix *Indexer) handleEvent(ctx context.Context, w *fsnotify.Watcher, store *storage.FS, jobs chan<- job, wg *sync.WaitGroup, ev fsnotify.Event) {
	absPath := ev.Name
	root := store.Root()

	// New directories join the watch list; any documents already inside
	// them (e.g. from an atomic directory move) are indexed right away.
	if ev.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
			if storage.SkipDir(filepath.Base(absPath)) {
				return
			}
			if addErr := addDirsRecursive(w, absPath); addErr != nil {
				ix.logger.Warn("watcher: add new dir failed", "path", absPath, "error", addErr)
			} else {
				ix.logger.Debug("watcher: watching new dir", "path", absPath)
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				ix.scanDir(ctx, store, jobs, absPath)
			}()
			return
		}
	}

	rel, relErr := filepath.Rel(root, absPath)
	if relErr != nil || !storage.Indexable(rel) {
		return
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		kind := kindChange
		if ev.Op&fsnotify.Create != 0 {
			kind = kindAdd
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ix.processFile(ctx, store, jobs, rel, kind); err == nil {
				ix.notifier.Notify()
			}
		}()

	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// Rename fires on the OLD path only; the new path arrives as a
		// separate Create event if it stays inside the vault.
		wg.Add(1)
		go func() {
			defer wg.Done()
			ix.removeFile(rel)
		}()
	}
}

// scanDir indexes the documents under a newly created directory.
func (ix *Indexer) scanDir(ctx context.Context, store *storage.FS, jobs chan<- job, dir string) {
	root := store.Root()
	indexed := 0
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if storage.SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || !storage.Indexable(rel) {
			return nil
		}
		if procErr := ix.processFile(ctx, store, jobs, rel, kindAdd); procErr == nil {
			indexed++
		}
		return nil
	})
	if indexed > 0 {
		ix.notifier.Notify()
	}
}

// addDirsRecursive adds root and all its non-ignored subdirectories to the
// watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && storage.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
