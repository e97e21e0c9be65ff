// Package engine implements the metadata lifecycle: path classification,
// document generation, file ingestion, the completion gate, and complete
// metadata aggregation.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nordlys/metawatch/internal/apperr"
	"github.com/nordlys/metawatch/internal/models"
	"github.com/nordlys/metawatch/internal/scan"
	"github.com/nordlys/metawatch/internal/schema"
	"github.com/nordlys/metawatch/internal/storage"
	"github.com/nordlys/metawatch/internal/vcs"
)

// EventKind is the change type reported for a path.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
	EventMovedTo  EventKind = "moved_to"
)

// actorSystem is recorded in audit fields for engine-initiated writes.
const actorSystem = "system"

// auditFields are bookkeeping fields excluded from the completion gate.
var auditFields = map[string]struct{}{
	"created_by":         {},
	"created_date":       {},
	"last_modified_by":   {},
	"last_modified_date": {},
}

// adminInheritance maps project administrative fields to the dataset
// administrative fields they pre-populate.
var adminInheritance = map[string]string{
	"data_steward_contact_person":             "data_steward_contact_person",
	"default_license":                         "license",
	"default_access_level":                    "access_level",
	"default_access_conditions_contact":       "access_conditions_contact",
	"default_embargo_end_date":                "embargo_end_date",
	"project_ethics_approval_references":      "ethics_approval_references",
	"project_consent_framework_summary":       "consent_framework_summary",
	"default_data_sensitivity_classification": "data_sensitivity_classification",
	"default_anonymization_method":            "anonymization_method",
	"project_data_retention_schedule":         "data_retention_schedule",
	"project_citation_template":               "recommended_citation",
	"project_documentation_link":              "link_to_documentation",
	"project_preservation_location":           "preservation_location",
}

// Config carries the engine's tuning knobs.
type Config struct {
	// MinFileSizeBytes defers ingestion of files smaller than this.
	MinFileSizeBytes int64
	// WorkerCount bounds concurrent file ingestion during reconciliation.
	WorkerCount int
	// IgnoreDirs adds directory names to the built-in ignore list.
	IgnoreDirs []string
}

// Engine drives the metadata lifecycle for one monitored root. All document
// writes go through the storage provider; per-directory locks keep
// concurrent load-merge-write cycles from interleaving.
type Engine struct {
	cfg        Config
	root       string
	store      storage.Provider
	resolver   *schema.Resolver
	mat        *schema.Materializer
	validator  *schema.Validator
	scanner    scan.Scanner
	sink       vcs.Sink
	classifier *Classifier
	logger     *slog.Logger
	locks      *pathLocks
	now        func() time.Time
}

// New wires an engine over its collaborators. The monitored root is taken
// from the storage provider.
func New(
	cfg Config,
	store storage.Provider,
	resolver *schema.Resolver,
	mat *schema.Materializer,
	validator *schema.Validator,
	scanner scan.Scanner,
	sink vcs.Sink,
	logger *slog.Logger,
) *Engine {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 4
	}
	return &Engine{
		cfg:        cfg,
		root:       store.Root(),
		store:      store,
		resolver:   resolver,
		mat:        mat,
		validator:  validator,
		scanner:    scanner,
		sink:       sink,
		classifier: NewClassifier(store.Root(), cfg.IgnoreDirs),
		logger:     logger,
		locks:      newPathLocks(),
		now:        time.Now,
	}
}

// Classifier exposes the engine's path classifier for callers that need to
// pre-filter paths, such as the reconciliation walk.
func (e *Engine) Classifier() *Classifier { return e.classifier }

// Root returns the absolute monitored root.
func (e *Engine) Root() string { return e.root }

// OnPathEvent routes one filesystem event to the lifecycle operation it
// entails. Paths must be absolute and inside the monitored root. Events for
// paths that vanished before processing are dropped silently.
func (e *Engine) OnPathEvent(ctx context.Context, path string, kind EventKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path = filepath.Clean(path)

	// Edits to a contextual document are the completion trigger. They are
	// the single .metadata write the engine reacts to.
	if isContextualDoc(path) {
		return e.maybeFinalize(ctx, filepath.Dir(filepath.Dir(path)))
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil
	}

	c := e.classifier.Classify(path, info.IsDir())
	switch c.Kind {
	case ClassProjectRoot:
		_, err := e.EnsureProject(ctx, path)
		return err
	case ClassDatasetRoot:
		if c.Legacy {
			e.logger.Warn("dataset directory without prefix, accepting as legacy",
				slog.String("path", path))
		}
		_, err := e.EnsureDataset(ctx, path)
		return err
	case ClassNestedFile:
		return e.IngestFile(ctx, path, c.DatasetRoot)
	default:
		return nil
	}
}

// EnsureProject generates the project descriptive and administrative
// documents for dir if they do not exist yet, and returns the project
// identifier. The operation is idempotent.
func (e *Engine) EnsureProject(ctx context.Context, dir string) (string, error) {
	unlock := e.locks.lock(dir)
	defer unlock()

	descPath := e.docPath(dir, models.KindProjectDescriptive)
	if e.store.Exists(descPath) {
		doc, err := e.store.ReadJSON(descPath)
		if err != nil {
			return "", fmt.Errorf("ensure project %s: %w", dir, err)
		}
		id := stringField(doc, "project_identifier")
		if err := e.ensureProjectAdmin(ctx, dir, id); err != nil {
			return "", err
		}
		return id, nil
	}

	id := uuid.NewString()
	title := strings.TrimPrefix(filepath.Base(dir), models.ProjectPrefix)
	now := e.timestamp()

	body, _, err := e.resolver.LoadKind(models.KindProjectDescriptive)
	if err != nil {
		return "", fmt.Errorf("ensure project %s: %w", dir, err)
	}
	doc := e.mat.Materialize(body, map[string]any{
		"project_identifier": id,
		"project_title":      title,
		"created_by":         actorSystem,
		"created_date":       now,
		"last_modified_by":   actorSystem,
		"last_modified_date": now,
	})
	if err := e.validator.Validate(models.KindProjectDescriptive.FileName(), doc, body); err != nil {
		return "", err
	}
	if err := e.store.WriteJSON(descPath, doc); err != nil {
		return "", err
	}
	e.logger.Info("project initialized",
		slog.String("path", dir),
		slog.String("project_id", id))

	if err := e.ensureProjectAdmin(ctx, dir, id); err != nil {
		return "", err
	}
	e.commit(ctx, "Initialize project metadata: "+filepath.Base(dir), descPath,
		e.docPath(dir, models.KindProjectAdministrative))
	return id, nil
}

// ensureProjectAdmin backfills the administrative document. Callers hold the
// project lock.
func (e *Engine) ensureProjectAdmin(ctx context.Context, dir, projectID string) error {
	adminPath := e.docPath(dir, models.KindProjectAdministrative)
	if e.store.Exists(adminPath) {
		return nil
	}
	body, _, err := e.resolver.LoadKind(models.KindProjectAdministrative)
	if err != nil {
		return fmt.Errorf("ensure project admin %s: %w", dir, err)
	}
	now := e.timestamp()
	doc := e.mat.Materialize(body, map[string]any{
		"project_identifier_link": projectID,
		"created_by":              actorSystem,
		"created_date":            now,
		"last_modified_by":        actorSystem,
		"last_modified_date":      now,
	})
	if err := e.validator.Validate(models.KindProjectAdministrative.FileName(), doc, body); err != nil {
		return err
	}
	return e.store.WriteJSON(adminPath, doc)
}

// EnsureDataset generates the dataset administrative and structural
// documents for dir if missing, inheriting administrative defaults from the
// owning project, and returns the dataset identifier. Idempotent.
func (e *Engine) EnsureDataset(ctx context.Context, dir string) (string, error) {
	unlock := e.locks.lock(dir)
	defer unlock()

	structPath := e.docPath(dir, models.KindDatasetStructural)
	if e.store.Exists(structPath) {
		doc, err := e.store.ReadJSON(structPath)
		if err != nil {
			return "", fmt.Errorf("ensure dataset %s: %w", dir, err)
		}
		return stringField(doc, "dataset_identifier"), nil
	}

	projectDir := filepath.Dir(dir)
	projectID := e.projectIdentifier(projectDir)
	id := uuid.NewString()
	title := strings.TrimPrefix(filepath.Base(dir), models.DatasetPrefix)
	now := e.timestamp()

	adminBody, _, err := e.resolver.LoadKind(models.KindDatasetAdministrative)
	if err != nil {
		return "", fmt.Errorf("ensure dataset %s: %w", dir, err)
	}
	adminOverrides := map[string]any{
		"dataset_identifier_link":       id,
		"associated_project_identifier": projectID,
		"created_by":                    actorSystem,
		"created_date":                  now,
		"last_modified_by":              actorSystem,
		"last_modified_date":            now,
	}
	e.inheritAdminDefaults(projectDir, adminOverrides)
	adminDoc := e.mat.Materialize(adminBody, adminOverrides)
	if err := e.validator.Validate(models.KindDatasetAdministrative.FileName(), adminDoc, adminBody); err != nil {
		return "", err
	}

	structBody, _, err := e.resolver.LoadKind(models.KindDatasetStructural)
	if err != nil {
		return "", fmt.Errorf("ensure dataset %s: %w", dir, err)
	}
	structDoc := e.mat.Materialize(structBody, map[string]any{
		"dataset_identifier":            id,
		"dataset_title":                 title,
		"associated_project_identifier": projectID,
		"created_by":                    actorSystem,
		"created_date":                  now,
		"last_modified_by":              actorSystem,
		"last_modified_date":            now,
	})
	if err := e.validator.Validate(models.KindDatasetStructural.FileName(), structDoc, structBody); err != nil {
		return "", err
	}

	adminPath := e.docPath(dir, models.KindDatasetAdministrative)
	if err := e.store.WriteJSON(adminPath, adminDoc); err != nil {
		return "", err
	}
	if err := e.store.WriteJSON(structPath, structDoc); err != nil {
		return "", err
	}
	e.logger.Info("dataset initialized",
		slog.String("path", dir),
		slog.String("dataset_id", id),
		slog.String("project_id", projectID))
	e.commit(ctx, "Initialize dataset metadata: "+filepath.Base(dir), adminPath, structPath)
	return id, nil
}

// inheritAdminDefaults copies project administrative defaults into the
// dataset administrative overrides. Missing project documents leave the
// overrides untouched; the dataset still gets generated.
func (e *Engine) inheritAdminDefaults(projectDir string, overrides map[string]any) {
	adminPath := e.docPath(projectDir, models.KindProjectAdministrative)
	doc, err := e.store.ReadJSON(adminPath)
	if err != nil {
		return
	}
	for src, dst := range adminInheritance {
		v, ok := doc[src]
		if !ok {
			continue
		}
		if s, isStr := v.(string); isStr && (s == "" || s == schema.Placeholder) {
			continue
		}
		overrides[dst] = v
	}
}

// IngestFile records one data file in its dataset's structural document.
// Files below the configured minimum size are deferred until a later write
// grows them past the threshold.
func (e *Engine) IngestFile(ctx context.Context, path, datasetRoot string) error {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if info.Size() < e.cfg.MinFileSizeBytes {
		e.logger.Debug("file below size threshold, deferring ingestion",
			slog.String("path", path),
			slog.Int64("size", info.Size()))
		return nil
	}

	// Lazy generation: a file can arrive before its dataset directory was
	// ever seen as an event.
	if !e.store.Exists(e.docPath(datasetRoot, models.KindDatasetStructural)) {
		if _, err := e.EnsureDataset(ctx, datasetRoot); err != nil {
			return err
		}
	}

	res, err := e.scanner.Scan(path)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", path, err)
	}
	relPath, err := filepath.Rel(datasetRoot, path)
	if err != nil {
		relPath = filepath.Base(path)
	}
	record := map[string]any{
		"file_name":            filepath.Base(path),
		"role":                 "raw_data",
		"file_path":            filepath.ToSlash(relPath),
		"file_extension":       res.Extension,
		"file_size_bytes":      res.SizeBytes,
		"checksum":             res.Checksum,
		"checksum_algorithm":   res.Algorithm,
		"file_type_os":         "file",
		"file_permissions":     res.Permissions,
		"file_accessed_utc":    res.AccessedAt.UTC().Format(time.RFC3339),
		"file_created_utc":     res.CreatedAt.UTC().Format(time.RFC3339),
		"file_modified_utc":    res.ModifiedAt.UTC().Format(time.RFC3339),
		"file_owner":           res.Owner,
		"file_group":           res.Group,
		"file_mime_type":       res.MIMEType,
		"file_processing_date": e.timestamp(),
	}

	unlock := e.locks.lock(datasetRoot)
	defer unlock()

	structPath := e.docPath(datasetRoot, models.KindDatasetStructural)
	doc, err := e.store.ReadJSON(structPath)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", path, err)
	}

	upsertFileRecord(doc, record)
	doc["file_organization"] = summarizeFiles(doc)
	doc["last_modified_by"] = actorSystem
	doc["last_modified_date"] = e.timestamp()

	body, _, err := e.resolver.LoadKind(models.KindDatasetStructural)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", path, err)
	}
	if err := e.validator.Validate(models.KindDatasetStructural.FileName(), doc, body); err != nil {
		return err
	}
	if err := e.store.WriteJSON(structPath, doc); err != nil {
		return err
	}
	e.logger.Info("file ingested",
		slog.String("path", path),
		slog.String("dataset", datasetRoot),
		slog.Int64("size", res.SizeBytes))
	e.commit(ctx, "Record file metadata: "+filepath.Base(path), structPath)
	return nil
}

// upsertFileRecord merges record into the file_descriptions array, keyed by
// file_name. Re-ingestion overwrites the existing entry's fields in place.
func upsertFileRecord(doc, record map[string]any) {
	name, _ := record["file_name"].(string)
	list, _ := doc["file_descriptions"].([]any)
	for _, raw := range list {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if entryName, _ := entry["file_name"].(string); entryName == name {
			for k, v := range record {
				entry[k] = v
			}
			return
		}
	}
	doc["file_descriptions"] = append(list, record)
}

// summarizeFiles recomputes the file_organization rollup from the
// file_descriptions array.
func summarizeFiles(doc map[string]any) map[string]any {
	list, _ := doc["file_descriptions"].([]any)
	var total int64
	types := map[string]struct{}{}
	for _, raw := range list {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		switch size := entry["file_size_bytes"].(type) {
		case int64:
			total += size
		case float64:
			total += int64(size)
		}
		if ext, _ := entry["file_extension"].(string); ext != "" {
			types[ext] = struct{}{}
		}
	}
	sorted := make([]any, 0, len(types))
	for ext := range types {
		sorted = append(sorted, ext)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].(string) < sorted[j].(string) })
	return map[string]any{
		"file_count":       int64(len(list)),
		"total_size_bytes": total,
		"file_types":       sorted,
	}
}

// CreateContextualTemplate materializes an experiment contextual document
// for the dataset, resolved by template type with fallback to the base
// contextual schema. Returns the generated run identifier.
func (e *Engine) CreateContextualTemplate(ctx context.Context, datasetRoot, templateType string) (string, error) {
	body, desc, err := e.resolver.LoadContextual(templateType)
	if err != nil {
		return "", fmt.Errorf("contextual template for %s: %w", datasetRoot, err)
	}

	runID := uuid.NewString()
	now := e.timestamp()
	props, _ := body["properties"].(map[string]any)

	idField := "experiment_identifier_run_id"
	if _, ok := props[idField]; !ok {
		if _, ok := props["experiment_identifier_object_id"]; ok {
			idField = "experiment_identifier_object_id"
		}
	}

	typeValue := templateType
	if typeValue == "" {
		typeValue = "unknown_template"
	}
	if prop, ok := props["experiment_template_type"].(map[string]any); ok {
		if c, ok := prop["const"].(string); ok {
			typeValue = c
		}
	}

	overrides := map[string]any{
		idField:                    runID,
		"experiment_template_type": typeValue,
		"created_by":               actorSystem,
		"created_date":             now,
		"last_modified_by":         actorSystem,
		"last_modified_date":       now,
	}
	if structDoc, err := e.store.ReadJSON(e.docPath(datasetRoot, models.KindDatasetStructural)); err == nil {
		if dsID := stringField(structDoc, "dataset_identifier"); dsID != "" {
			overrides["dataset_identifier_link"] = dsID
		}
	}

	doc := e.mat.Materialize(body, overrides)
	if _, ok := doc["experiment_name"]; !ok {
		doc["experiment_name"] = ""
	}

	unlock := e.locks.lock(datasetRoot)
	defer unlock()

	docPath := e.docPath(datasetRoot, models.KindExperimentContextual)
	if err := e.validator.Validate(models.KindExperimentContextual.FileName(), doc, body); err != nil {
		return "", err
	}
	if err := e.store.WriteJSON(docPath, doc); err != nil {
		return "", err
	}
	e.logger.Info("contextual template created",
		slog.String("dataset", datasetRoot),
		slog.String("template", typeValue),
		slog.String("schema_source", desc.Source),
		slog.String("run_id", runID))
	e.commit(ctx, "Create experiment contextual template: "+typeValue, docPath)
	return runID, nil
}

// CheckCompletion evaluates the completion gate for a dataset's contextual
// document. It returns whether the document is complete and the run
// identifier. Audit fields and the template type marker are exempt from the
// required-field check; nil values, empty strings, and the placeholder
// sentinel count as unfilled. An empty dataset link is self-healed from the
// structural document before the gate can fail on it.
func (e *Engine) CheckCompletion(ctx context.Context, datasetRoot string) (bool, string, error) {
	docPath := e.docPath(datasetRoot, models.KindExperimentContextual)
	doc, err := e.store.ReadJSON(docPath)
	if err != nil {
		return false, "", nil
	}

	runID := stringField(doc, "experiment_identifier_run_id")
	if runID == "" {
		runID = stringField(doc, "experiment_identifier_object_id")
	}

	if e.healDatasetLink(doc, datasetRoot) {
		unlock := e.locks.lock(datasetRoot)
		err := e.store.WriteJSON(docPath, doc)
		unlock()
		if err != nil {
			return false, runID, err
		}
	}

	body, _, err := e.resolver.LoadContextual(stringField(doc, "experiment_template_type"))
	if err != nil {
		return false, runID, fmt.Errorf("completion check %s: %w", datasetRoot, err)
	}
	required, _ := body["required"].([]any)
	for _, raw := range required {
		field, ok := raw.(string)
		if !ok {
			continue
		}
		if _, exempt := auditFields[field]; exempt || field == "experiment_template_type" {
			continue
		}
		if !filled(doc[field]) {
			e.logger.Debug("completion gate: field unfilled",
				slog.String("dataset", datasetRoot),
				slog.String("field", field))
			return false, runID, nil
		}
	}
	return true, runID, nil
}

// healDatasetLink fills an empty dataset_identifier_link from the structural
// document. Reports whether the document changed.
func (e *Engine) healDatasetLink(doc map[string]any, datasetRoot string) bool {
	if filled(doc["dataset_identifier_link"]) {
		return false
	}
	structDoc, err := e.store.ReadJSON(e.docPath(datasetRoot, models.KindDatasetStructural))
	if err != nil {
		return false
	}
	dsID := stringField(structDoc, "dataset_identifier")
	if dsID == "" {
		return false
	}
	doc["dataset_identifier_link"] = dsID
	return true
}

// maybeFinalize runs the completion gate and, on success, generates the
// complete metadata document. Finalized datasets are terminal: once the
// complete document exists no further aggregation happens.
func (e *Engine) maybeFinalize(ctx context.Context, datasetRoot string) error {
	if e.store.Exists(e.docPath(datasetRoot, models.KindCompleteMetadata)) {
		return nil
	}
	ok, runID, err := e.CheckCompletion(ctx, datasetRoot)
	if err != nil || !ok {
		return err
	}
	if runID == "" {
		e.logger.Warn("completion gate passed but run identifier is missing",
			slog.String("dataset", datasetRoot))
		return nil
	}
	_, err = e.GenerateComplete(ctx, datasetRoot, runID)
	return err
}

// GenerateComplete aggregates the five component documents into the
// complete metadata document for the dataset.
func (e *Engine) GenerateComplete(ctx context.Context, datasetRoot, runID string) (map[string]any, error) {
	projectDir := filepath.Dir(datasetRoot)

	components := map[string]any{}
	sources := []struct {
		key  string
		dir  string
		kind models.Kind
	}{
		{"project_descriptive", projectDir, models.KindProjectDescriptive},
		{"project_administrative", projectDir, models.KindProjectAdministrative},
		{"dataset_administrative", datasetRoot, models.KindDatasetAdministrative},
		{"dataset_structural", datasetRoot, models.KindDatasetStructural},
		{"experiment_contextual", datasetRoot, models.KindExperimentContextual},
	}
	for _, src := range sources {
		doc, err := e.store.ReadJSON(e.docPath(src.dir, src.kind))
		if err != nil {
			return nil, fmt.Errorf("generate complete %s: component %s: %w", datasetRoot, src.key, err)
		}
		components[src.key] = doc
	}

	completeness := completenessScore(components)
	schemaCompliant := true
	now := e.timestamp()

	complete := map[string]any{
		"version":               "2.0",
		"experiment_identifier": runID,
		"metadata_components":   components,
		"metadata_relationships": map[string]any{
			"project_to_dataset":       "one_to_many",
			"dataset_to_experiment":    "one_to_many",
			"experiment_to_data_files": "one_to_many",
		},
		"metadata_provenance": map[string]any{
			"generated_by":         actorSystem,
			"generation_date":      now,
			"last_validation_date": now,
		},
	}

	body, _, err := e.resolver.LoadKind(models.KindCompleteMetadata)
	if err != nil {
		return nil, fmt.Errorf("generate complete %s: %w", datasetRoot, err)
	}
	// Validate with a provisional score so the document carries every
	// required field; the final scores are written below once compliance
	// is known.
	complete["metadata_validation"] = map[string]any{
		"schema_compliance":  schemaCompliant,
		"completeness_score": completeness,
		"quality_score":      0.0,
	}
	if verr := e.validator.Validate(models.KindCompleteMetadata.FileName(), complete, body); verr != nil {
		if !apperr.IsValidation(verr) {
			return nil, verr
		}
		schemaCompliant = false
	}
	quality := completeness * 0.6
	if schemaCompliant {
		quality = completeness*0.8 + 0.2
	}
	complete["metadata_validation"] = map[string]any{
		"schema_compliance":  schemaCompliant,
		"completeness_score": completeness,
		"quality_score":      quality,
	}

	unlock := e.locks.lock(datasetRoot)
	defer unlock()

	outPath := e.docPath(datasetRoot, models.KindCompleteMetadata)
	if err := e.store.WriteJSON(outPath, complete); err != nil {
		return nil, err
	}
	e.logger.Info("complete metadata generated",
		slog.String("dataset", datasetRoot),
		slog.String("run_id", runID),
		slog.Float64("completeness", completeness),
		slog.Float64("quality", quality))
	e.commit(ctx, "Generate complete metadata: "+filepath.Base(datasetRoot), outPath)
	return complete, nil
}

// completenessScore is the fraction of filled leaf values across the
// component documents. Strings are filled when non-empty and not the
// placeholder sentinel; numbers and booleans always count as filled;
// arrays and objects contribute their elements, not themselves.
func completenessScore(v any) float64 {
	total, filledCount := countLeaves(v)
	if total == 0 {
		return 0
	}
	return float64(filledCount) / float64(total)
}

func countLeaves(v any) (total, filledCount int) {
	switch val := v.(type) {
	case map[string]any:
		for _, child := range val {
			t, f := countLeaves(child)
			total += t
			filledCount += f
		}
	case []any:
		for _, child := range val {
			t, f := countLeaves(child)
			total += t
			filledCount += f
		}
	default:
		total = 1
		if filled(v) {
			filledCount = 1
		}
	}
	return total, filledCount
}

// filled reports whether a leaf value counts as human-or-system provided.
func filled(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != "" && val != schema.Placeholder
	default:
		return true
	}
}

// DatasetStatus derives the lifecycle stage of a dataset from which
// documents exist on disk.
func (e *Engine) DatasetStatus(datasetRoot string) models.DatasetStatus {
	if e.store.Exists(e.docPath(datasetRoot, models.KindCompleteMetadata)) {
		return models.StatusFinalized
	}
	if e.store.Exists(e.docPath(datasetRoot, models.KindDatasetStructural)) {
		return models.StatusIngested
	}
	return models.StatusInitial
}

// ApplyUpdate replaces a document's content with client-supplied content
// while restoring protected identifier fields from the existing document
// and refreshing the modification audit fields. Returns the persisted
// document.
func (e *Engine) ApplyUpdate(ctx context.Context, dir string, kind models.Kind, content map[string]any, actor string) (map[string]any, error) {
	if actor == "" {
		actor = actorSystem
	}

	unlock := e.locks.lock(dir)
	defer unlock()

	docPath := e.docPath(dir, kind)
	existing, err := e.store.ReadJSON(docPath)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", docPath, apperr.ErrNotFound)
	}

	merged := make(map[string]any, len(content))
	for k, v := range content {
		merged[k] = v
	}
	for _, field := range models.ProtectedFields(kind) {
		if prev, ok := existing[field]; ok && filled(prev) {
			merged[field] = prev
		}
	}
	for _, field := range []string{"created_by", "created_date"} {
		if prev, ok := existing[field]; ok {
			merged[field] = prev
		}
	}
	merged["last_modified_by"] = actor
	merged["last_modified_date"] = e.timestamp()

	body, _, err := e.resolver.LoadKind(kind)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", docPath, err)
	}
	if err := e.validator.Validate(kind.FileName(), merged, body); err != nil {
		return nil, err
	}
	if err := e.store.WriteJSON(docPath, merged); err != nil {
		return nil, err
	}
	e.commit(ctx, "Update "+string(kind)+" metadata", docPath)
	return merged, nil
}

// docPath returns the root-relative path of a document of the given kind
// under dir's metadata subdirectory. dir may be absolute or root-relative.
func (e *Engine) docPath(dir string, kind models.Kind) string {
	rel := dir
	if filepath.IsAbs(dir) {
		if r, err := filepath.Rel(e.root, dir); err == nil {
			rel = r
		}
	}
	return filepath.Join(rel, models.MetadataDir, kind.FileName())
}

// projectIdentifier reads the project identifier from the descriptive
// document, falling back to the directory name when the project was never
// initialized.
func (e *Engine) projectIdentifier(projectDir string) string {
	doc, err := e.store.ReadJSON(e.docPath(projectDir, models.KindProjectDescriptive))
	if err == nil {
		if id := stringField(doc, "project_identifier"); id != "" {
			return id
		}
	}
	e.logger.Warn("project descriptive document missing, using directory name as identifier",
		slog.String("project", projectDir))
	return filepath.Base(projectDir)
}

// commit records changed files in version control. Commit failures are
// logged, never propagated: version control is best-effort.
func (e *Engine) commit(ctx context.Context, message string, relPaths ...string) {
	abs := make([]string, 0, len(relPaths))
	for _, p := range relPaths {
		if filepath.IsAbs(p) {
			abs = append(abs, p)
			continue
		}
		abs = append(abs, filepath.Join(e.root, p))
	}
	if err := e.sink.CommitChanges(ctx, message, abs...); err != nil {
		e.logger.Warn("version control commit failed",
			slog.String("message", message),
			slog.String("error", err.Error()))
	}
}

func (e *Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func isContextualDoc(path string) bool {
	return filepath.Base(path) == models.KindExperimentContextual.FileName() &&
		filepath.Base(filepath.Dir(path)) == models.MetadataDir
}

func stringField(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}
