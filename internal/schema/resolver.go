// Package schema implements schema resolution, template materialization,
// and JSON-Schema validation for metadata documents.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nordlys/metawatch/internal/apperr"
	"github.com/nordlys/metawatch/internal/models"
)

// ResolverConfig carries the four resolution tiers. Any empty directory is
// skipped. Overrides maps a logical schema name to an absolute file path and
// wins unconditionally.
type ResolverConfig struct {
	Overrides   map[string]string
	MonitorRoot string // local overrides live under <MonitorRoot>/.template_schemas
	CustomDir   string
	PackagedDir string
}

// Resolver resolves logical schema names to files. Resolution is recomputed
// on every lookup; loaded schema bodies are cached by resolved path since
// schemas are read-only at runtime.
type Resolver struct {
	cfg ResolverConfig

	mu    sync.Mutex
	cache map[string]map[string]any
}

// NewResolver creates a resolver over the configured tiers.
func NewResolver(cfg ResolverConfig) *Resolver {
	return &Resolver{cfg: cfg, cache: make(map[string]map[string]any)}
}

// Resolve returns the descriptor for a logical schema name, applying the
// tier order: explicit override, local override, custom directory, packaged
// default. The first existing file wins.
func (r *Resolver) Resolve(name string) (models.SchemaDescriptor, error) {
	if p, ok := r.cfg.Overrides[name]; ok {
		return models.SchemaDescriptor{Name: name, Path: p, Source: models.SourceExplicitOverride}, nil
	}

	type tier struct {
		dir    string
		source string
	}
	tiers := []tier{}
	if r.cfg.MonitorRoot != "" {
		tiers = append(tiers, tier{filepath.Join(r.cfg.MonitorRoot, models.TemplateSchemasDir), models.SourceLocalOverride})
	}
	if r.cfg.CustomDir != "" {
		tiers = append(tiers, tier{r.cfg.CustomDir, models.SourceCustomOverride})
	}
	for _, t := range tiers {
		candidate := filepath.Join(t.dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return models.SchemaDescriptor{Name: name, Path: candidate, Source: t.source}, nil
		}
	}

	packaged := filepath.Join(r.cfg.PackagedDir, name)
	if _, err := os.Stat(packaged); err == nil {
		return models.SchemaDescriptor{Name: name, Path: packaged, Source: models.SourcePackagedDefault}, nil
	}
	return models.SchemaDescriptor{}, fmt.Errorf("resolve %s: %w", name, apperr.ErrSchemaNotFound)
}

// ResolveContextual resolves an experiment template schema by template type
// name under the contextual/ namespace.
func (r *Resolver) ResolveContextual(templateType string) (models.SchemaDescriptor, error) {
	return r.Resolve(filepath.Join("contextual", templateType+".json"))
}

// Load resolves name and returns the parsed schema body together with its
// descriptor.
func (r *Resolver) Load(name string) (map[string]any, models.SchemaDescriptor, error) {
	desc, err := r.Resolve(name)
	if err != nil {
		return nil, desc, err
	}
	body, err := r.loadPath(desc.Path)
	if err != nil {
		return nil, desc, err
	}
	return body, desc, nil
}

// LoadKind loads the schema governing a document kind.
func (r *Resolver) LoadKind(kind models.Kind) (map[string]any, models.SchemaDescriptor, error) {
	return r.Load(kind.SchemaName())
}

// LoadContextual loads a template-type schema, falling back to the base
// experiment contextual schema when the template is unknown.
func (r *Resolver) LoadContextual(templateType string) (map[string]any, models.SchemaDescriptor, error) {
	if templateType != "" {
		if desc, err := r.ResolveContextual(templateType); err == nil {
			body, loadErr := r.loadPath(desc.Path)
			if loadErr == nil {
				return body, desc, nil
			}
		}
	}
	return r.LoadKind(models.KindExperimentContextual)
}

func (r *Resolver) loadPath(path string) (map[string]any, error) {
	r.mu.Lock()
	if cached, ok := r.cache[path]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("schema: decode %s: %w", path, err)
	}

	r.mu.Lock()
	r.cache[path] = body
	r.mu.Unlock()
	return body, nil
}

// ResolutionInfo describes every tier considered for a schema name, so API
// clients can tell whether they are looking at a customized or default schema.
type ResolutionInfo struct {
	Name                 string `json:"schema_name"`
	LocalOverridePath    string `json:"local_override_path,omitempty"`
	LocalOverrideExists  bool   `json:"local_override_exists"`
	CustomOverridePath   string `json:"custom_override_path,omitempty"`
	CustomOverrideExists bool   `json:"custom_override_exists"`
	PackagedPath         string `json:"packaged_default_path"`
	PackagedExists       bool   `json:"packaged_default_exists"`
	ResolvedPath         string `json:"resolved_path,omitempty"`
	Source               string `json:"resolution_source,omitempty"`
}

// Inspect reports the full tier breakdown for a schema name.
func (r *Resolver) Inspect(name string) ResolutionInfo {
	info := ResolutionInfo{Name: name}
	if r.cfg.MonitorRoot != "" {
		info.LocalOverridePath = filepath.Join(r.cfg.MonitorRoot, models.TemplateSchemasDir, name)
		_, err := os.Stat(info.LocalOverridePath)
		info.LocalOverrideExists = err == nil
	}
	if r.cfg.CustomDir != "" {
		info.CustomOverridePath = filepath.Join(r.cfg.CustomDir, name)
		_, err := os.Stat(info.CustomOverridePath)
		info.CustomOverrideExists = err == nil
	}
	info.PackagedPath = filepath.Join(r.cfg.PackagedDir, name)
	_, err := os.Stat(info.PackagedPath)
	info.PackagedExists = err == nil

	if desc, resolveErr := r.Resolve(name); resolveErr == nil {
		info.ResolvedPath = desc.Path
		info.Source = desc.Source
	}
	return info
}

// KnownSchemaNames lists the packaged document schema names.
func KnownSchemaNames() []string {
	return []string{
		"project_descriptive.json",
		"project_administrative_schema.json",
		"dataset_administrative_schema.json",
		"dataset_structural_schema.json",
		"experiment_contextual_schema.json",
		"instrument_technical_schema.json",
		"complete_metadata_schema.json",
	}
}
