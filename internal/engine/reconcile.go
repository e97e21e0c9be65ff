package engine

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Reconcile sweeps the monitored tree and brings metadata documents up to
// date with what is already on disk: projects and datasets are ensured
// first, then files are ingested with a bounded worker pool. The sweep is
// idempotent and safe to run while the watcher is live.
func (e *Engine) Reconcile(ctx context.Context) error {
	var projectDirs, datasetDirs []string
	var dataFiles []struct{ path, datasetRoot string }
	datasetSet := map[string]struct{}{}

	// WalkDir is top-down, so every dataset root is collected before the
	// files below it. Attribution goes through the collected set because
	// structural documents do not exist yet on a fresh tree.
	owningDataset := func(path string) string {
		cur := filepath.Dir(path)
		for cur != e.root && len(cur) > len(e.root) {
			if _, ok := datasetSet[cur]; ok {
				return cur
			}
			cur = filepath.Dir(cur)
		}
		return ""
	}

	err := filepath.WalkDir(e.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			e.logger.Warn("reconcile: walk error, skipping subtree",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == e.root {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			// Prune noise subtrees; plain directories inside datasets
			// are still descended even though they classify as
			// ignorable.
			if e.classifier.shouldIgnore(path, true) || strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			switch c := e.classifier.Classify(path, true); c.Kind {
			case ClassProjectRoot:
				projectDirs = append(projectDirs, path)
			case ClassDatasetRoot:
				datasetDirs = append(datasetDirs, path)
				datasetSet[path] = struct{}{}
			}
			return nil
		}

		if e.classifier.shouldIgnore(path, false) {
			return nil
		}
		if dsRoot := owningDataset(path); dsRoot != "" {
			dataFiles = append(dataFiles, struct{ path, datasetRoot string }{path, dsRoot})
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Structure before content: file ingestion relies on structural
	// documents existing.
	for _, dir := range projectDirs {
		if _, err := e.EnsureProject(ctx, dir); err != nil {
			e.logger.Error("reconcile: project generation failed",
				slog.String("path", dir),
				slog.String("error", err.Error()))
		}
	}
	for _, dir := range datasetDirs {
		if _, err := e.EnsureDataset(ctx, dir); err != nil {
			e.logger.Error("reconcile: dataset generation failed",
				slog.String("path", dir),
				slog.String("error", err.Error()))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.WorkerCount)
	for _, f := range dataFiles {
		g.Go(func() error {
			if err := e.IngestFile(gctx, f.path, f.datasetRoot); err != nil {
				e.logger.Error("reconcile: file ingestion failed",
					slog.String("path", f.path),
					slog.String("error", err.Error()))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Datasets whose contextual document was completed while the engine
	// was down still need their aggregation pass.
	for _, dir := range datasetDirs {
		if err := e.maybeFinalize(ctx, dir); err != nil {
			e.logger.Error("reconcile: finalization failed",
				slog.String("path", dir),
				slog.String("error", err.Error()))
		}
	}

	e.logger.Info("reconciliation sweep finished",
		slog.Int("projects", len(projectDirs)),
		slog.Int("datasets", len(datasetDirs)),
		slog.Int("files", len(dataFiles)))
	return nil
}
