// Package watch connects filesystem notifications to the metadata engine.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/nordlys/metawatch/internal/engine"
	"github.com/nordlys/metawatch/internal/models"
)

// EventCallback is invoked after an event was handled without error. It is
// a test and integration hook; a nil callback is fine.
type EventCallback func(kind engine.EventKind, path string)

// Watcher feeds fsnotify events into the engine. New directories are added
// to the watch set recursively, and their pre-existing contents are replayed
// as create events so a directory moved into the tree is fully processed.
type Watcher struct {
	eng    *engine.Engine
	logger *slog.Logger
	cb     EventCallback
}

// New creates a watcher over the engine's monitored root.
func New(eng *engine.Engine, logger *slog.Logger, cb EventCallback) *Watcher {
	return &Watcher{eng: eng, logger: logger, cb: cb}
}

// Run watches the monitored root until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addDirsRecursive(fw, w.eng.Root()); err != nil {
		return err
	}
	w.logger.Info("watching", slog.String("root", w.eng.Root()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.dispatch(ctx, fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, fw *fsnotify.Watcher, ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := w.addDirsRecursive(fw, ev.Name); err != nil {
				w.logger.Warn("could not watch new directory",
					slog.String("path", ev.Name),
					slog.String("error", err.Error()))
			}
			w.handle(ctx, engine.EventCreated, ev.Name)
			w.replayContents(ctx, ev.Name)
			return
		}
		w.handle(ctx, engine.EventCreated, ev.Name)
	case ev.Has(fsnotify.Write):
		w.handle(ctx, engine.EventModified, ev.Name)
	}
	// Remove and rename of the old path are deliberately not handled:
	// metadata documents are never pruned, and a move shows up as a
	// create on the new path.
}

// replayContents walks a newly created directory and forwards everything
// already inside it as create events. The events for those paths may never
// fire on their own when the directory was moved in atomically.
func (w *Watcher) replayContents(ctx context.Context, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == dir {
			return nil
		}
		if d.IsDir() {
			if skipDir(d.Name()) {
				return fs.SkipDir
			}
			w.handle(ctx, engine.EventCreated, path)
			return nil
		}
		w.handle(ctx, engine.EventCreated, path)
		return nil
	})
}

func (w *Watcher) handle(ctx context.Context, kind engine.EventKind, path string) {
	if err := w.eng.OnPathEvent(ctx, path, kind); err != nil {
		w.logger.Error("event handling failed",
			slog.String("path", path),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()))
		return
	}
	if w.cb != nil {
		w.cb(kind, path)
	}
}

// addDirsRecursive watches dir and every eligible directory below it. The
// metadata subdirectory is watched so contextual document edits reach the
// completion gate; other dot directories and noise trees are skipped.
func (w *Watcher) addDirsRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("walk error while adding watches",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skipDir(d.Name()) {
			return fs.SkipDir
		}
		if err := fw.Add(path); err != nil {
			w.logger.Warn("could not add watch",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return nil
	})
}

func skipDir(name string) bool {
	if name == models.MetadataDir {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch name {
	case "__pycache__", "node_modules", "venv", "dist", "build":
		return true
	}
	return false
}
