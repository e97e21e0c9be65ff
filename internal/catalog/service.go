// Package catalog provides read and update access to the metadata tree for
// API surfaces: listing projects and datasets, fetching and updating
// documents, and inspecting schema resolution.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nordlys/metawatch/internal/apperr"
	"github.com/nordlys/metawatch/internal/engine"
	"github.com/nordlys/metawatch/internal/models"
	"github.com/nordlys/metawatch/internal/schema"
	"github.com/nordlys/metawatch/internal/storage"
)

// Service is the query surface over one monitored root. Paths in and out of
// the service are root-relative; conversion to absolute paths happens at
// the engine boundary.
type Service struct {
	eng      *engine.Engine
	store    storage.Provider
	resolver *schema.Resolver
	logger   *slog.Logger
	workers  int
}

// NewService wires a catalog over the engine and its storage.
func NewService(eng *engine.Engine, store storage.Provider, resolver *schema.Resolver, logger *slog.Logger) *Service {
	return &Service{eng: eng, store: store, resolver: resolver, logger: logger, workers: 8}
}

// ListProjects returns every project directory under the root with its
// identifier and title. Projects whose descriptive document is missing or
// unreadable are listed by directory name only.
func (s *Service) ListProjects(ctx context.Context) ([]models.ProjectInfo, error) {
	entries, err := os.ReadDir(s.store.Root())
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	var mu sync.Mutex
	var projects []models.ProjectInfo
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), models.ProjectPrefix) {
			continue
		}
		name := entry.Name()
		g.Go(func() error {
			info := models.ProjectInfo{
				Identifier: name,
				Title:      strings.TrimPrefix(name, models.ProjectPrefix),
				Path:       name,
			}
			doc, err := s.store.ReadJSON(filepath.Join(name, models.MetadataDir, models.KindProjectDescriptive.FileName()))
			if err == nil {
				if id, _ := doc["project_identifier"].(string); id != "" {
					info.Identifier = id
				}
				if title, _ := doc["project_title"].(string); title != "" {
					info.Title = title
				}
			}
			mu.Lock()
			projects = append(projects, info)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Path < projects[j].Path })
	return projects, nil
}

// ListDatasets returns the datasets under one project directory, given as a
// root-relative path, with their lifecycle status.
func (s *Service) ListDatasets(ctx context.Context, projectPath string) ([]models.DatasetInfo, error) {
	abs := filepath.Join(s.store.Root(), projectPath)
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("list datasets %s: %w", projectPath, apperr.ErrNotFound)
	}

	var datasets []models.DatasetInfo
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dsAbs := filepath.Join(abs, entry.Name())
		status := s.eng.DatasetStatus(dsAbs)
		info := models.DatasetInfo{
			Identifier:  entry.Name(),
			Title:       strings.TrimPrefix(entry.Name(), models.DatasetPrefix),
			Path:        filepath.Join(projectPath, entry.Name()),
			Status:      status,
			StatusLabel: status.String(),
		}
		doc, err := s.store.ReadJSON(filepath.Join(projectPath, entry.Name(), models.MetadataDir, models.KindDatasetStructural.FileName()))
		if err == nil {
			if id, _ := doc["dataset_identifier"].(string); id != "" {
				info.Identifier = id
			}
			if title, _ := doc["dataset_title"].(string); title != "" {
				info.Title = title
			}
			info.ProjectIdentifier, _ = doc["associated_project_identifier"].(string)
		} else if status == models.StatusInitial {
			// An uninitialized plain directory inside a project is not a
			// dataset yet; skip it rather than invent one.
			if !strings.HasPrefix(entry.Name(), models.DatasetPrefix) {
				continue
			}
		}
		datasets = append(datasets, info)
	}
	sort.Slice(datasets, func(i, j int) bool { return datasets[i].Path < datasets[j].Path })
	return datasets, nil
}

// Document returns one metadata document for the directory at the
// root-relative path.
func (s *Service) Document(ctx context.Context, dirPath string, kind models.Kind) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := s.store.ReadJSON(filepath.Join(dirPath, models.MetadataDir, kind.FileName()))
	if err != nil {
		return nil, fmt.Errorf("document %s/%s: %w", dirPath, kind, apperr.ErrNotFound)
	}
	return doc, nil
}

// UpdateDocument replaces a document's editable content, preserving
// protected identifier fields, and returns the persisted document.
func (s *Service) UpdateDocument(ctx context.Context, dirPath string, kind models.Kind, content map[string]any, actor string) (map[string]any, error) {
	return s.eng.ApplyUpdate(ctx, filepath.Join(s.store.Root(), dirPath), kind, content, actor)
}

// DatasetStatus reports the lifecycle stage of the dataset at the
// root-relative path.
func (s *Service) DatasetStatus(dirPath string) models.DatasetStatus {
	return s.eng.DatasetStatus(filepath.Join(s.store.Root(), dirPath))
}

// CreateContextualTemplate materializes an experiment contextual document
// for the dataset at the root-relative path.
func (s *Service) CreateContextualTemplate(ctx context.Context, dirPath, templateType string) (string, error) {
	return s.eng.CreateContextualTemplate(ctx, filepath.Join(s.store.Root(), dirPath), templateType)
}

// CheckCompletion runs the completion gate for the dataset at the
// root-relative path without finalizing it.
func (s *Service) CheckCompletion(ctx context.Context, dirPath string) (bool, string, error) {
	return s.eng.CheckCompletion(ctx, filepath.Join(s.store.Root(), dirPath))
}

// Schema returns the parsed body and resolution descriptor for a logical
// schema name.
func (s *Service) Schema(name string) (map[string]any, models.SchemaDescriptor, error) {
	return s.resolver.Load(name)
}

// SchemaResolution reports the tier breakdown for one schema name.
func (s *Service) SchemaResolution(name string) schema.ResolutionInfo {
	return s.resolver.Inspect(name)
}

// ListSchemas reports the resolution state of every known schema name.
func (s *Service) ListSchemas() []schema.ResolutionInfo {
	names := schema.KnownSchemaNames()
	infos := make([]schema.ResolutionInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, s.resolver.Inspect(name))
	}
	return infos
}
