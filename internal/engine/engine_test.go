package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nordlys/metawatch/internal/checksum"
	"github.com/nordlys/metawatch/internal/models"
	"github.com/nordlys/metawatch/internal/scan"
	"github.com/nordlys/metawatch/internal/schema"
	"github.com/nordlys/metawatch/internal/storage"
	"github.com/nordlys/metawatch/internal/testutil"
	"github.com/nordlys/metawatch/internal/vcs"
)

type testEnv struct {
	eng   *Engine
	store *storage.FS
	root  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	resolver := schema.NewResolver(schema.ResolverConfig{
		MonitorRoot: root,
		PackagedDir: testutil.SchemaDir(t),
	})
	eng := New(
		Config{MinFileSizeBytes: 10},
		store,
		resolver,
		schema.NewMaterializer(1),
		schema.NewValidator(true, testutil.DiscardLogger()),
		scan.NewStatScanner(),
		vcs.Noop{},
		testutil.DiscardLogger(),
	)
	return &testEnv{eng: eng, store: store, root: root}
}

func (env *testEnv) mkdir(t *testing.T, parts ...string) string {
	t.Helper()
	dir := filepath.Join(append([]string{env.root}, parts...)...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return dir
}

func (env *testEnv) readDoc(t *testing.T, dir string, kind models.Kind) map[string]any {
	t.Helper()
	rel, err := filepath.Rel(env.root, dir)
	if err != nil {
		t.Fatalf("rel: %v", err)
	}
	doc, err := env.store.ReadJSON(filepath.Join(rel, models.MetadataDir, kind.FileName()))
	if err != nil {
		t.Fatalf("read %s for %s: %v", kind, dir, err)
	}
	return doc
}

func (env *testEnv) writeDoc(t *testing.T, dir string, kind models.Kind, doc map[string]any) {
	t.Helper()
	rel, err := filepath.Rel(env.root, dir)
	if err != nil {
		t.Fatalf("rel: %v", err)
	}
	if err := env.store.WriteJSON(filepath.Join(rel, models.MetadataDir, kind.FileName()), doc); err != nil {
		t.Fatalf("write %s for %s: %v", kind, dir, err)
	}
}

func TestEnsureProjectGeneratesDocuments(t *testing.T) {
	env := newTestEnv(t)
	dir := env.mkdir(t, "p_climate")

	id, err := env.eng.EnsureProject(context.Background(), dir)
	if err != nil {
		t.Fatalf("ensure project: %v", err)
	}
	if id == "" {
		t.Fatal("empty project identifier")
	}

	desc := env.readDoc(t, dir, models.KindProjectDescriptive)
	if desc["project_identifier"] != id {
		t.Errorf("identifier mismatch: %v", desc["project_identifier"])
	}
	if desc["project_title"] != "climate" {
		t.Errorf("title should strip the prefix, got %v", desc["project_title"])
	}
	if desc["created_by"] != "system" || desc["last_modified_by"] != "system" {
		t.Error("audit fields must record the system actor")
	}

	admin := env.readDoc(t, dir, models.KindProjectAdministrative)
	if admin["project_identifier_link"] != id {
		t.Errorf("admin link mismatch: %v", admin["project_identifier_link"])
	}
	if admin["default_license"] != "CC-BY-4.0" {
		t.Errorf("enum default expected, got %v", admin["default_license"])
	}
}

func TestEnsureProjectIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	dir := env.mkdir(t, "p_climate")

	first, err := env.eng.EnsureProject(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	second, err := env.eng.EnsureProject(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("identifier changed across calls: %s vs %s", first, second)
	}
}

func TestEnsureDatasetInheritsProjectDefaults(t *testing.T) {
	env := newTestEnv(t)
	projectDir := env.mkdir(t, "p_climate")
	datasetDir := env.mkdir(t, "p_climate", "d_sensors")

	projectID, err := env.eng.EnsureProject(context.Background(), projectDir)
	if err != nil {
		t.Fatal(err)
	}
	datasetID, err := env.eng.EnsureDataset(context.Background(), datasetDir)
	if err != nil {
		t.Fatal(err)
	}

	admin := env.readDoc(t, datasetDir, models.KindDatasetAdministrative)
	if admin["dataset_identifier_link"] != datasetID {
		t.Errorf("dataset link mismatch: %v", admin["dataset_identifier_link"])
	}
	if admin["associated_project_identifier"] != projectID {
		t.Errorf("project link mismatch: %v", admin["associated_project_identifier"])
	}
	if admin["license"] != "CC-BY-4.0" {
		t.Errorf("license not inherited from project default: %v", admin["license"])
	}

	structural := env.readDoc(t, datasetDir, models.KindDatasetStructural)
	if structural["dataset_identifier"] != datasetID {
		t.Errorf("structural identifier mismatch: %v", structural["dataset_identifier"])
	}
	if structural["dataset_title"] != "sensors" {
		t.Errorf("title should strip the prefix, got %v", structural["dataset_title"])
	}
	if structural["associated_project_identifier"] != projectID {
		t.Errorf("structural project link mismatch: %v", structural["associated_project_identifier"])
	}
}

func TestEnsureDatasetWithoutProjectDocument(t *testing.T) {
	env := newTestEnv(t)
	datasetDir := env.mkdir(t, "p_orphan", "d_data")

	if _, err := env.eng.EnsureDataset(context.Background(), datasetDir); err != nil {
		t.Fatalf("ensure dataset: %v", err)
	}

	structural := env.readDoc(t, datasetDir, models.KindDatasetStructural)
	if structural["associated_project_identifier"] != "p_orphan" {
		t.Errorf("expected directory-name fallback, got %v", structural["associated_project_identifier"])
	}
}

func TestIngestFileRecordsMetadata(t *testing.T) {
	env := newTestEnv(t)
	env.mkdir(t, "p_climate")
	datasetDir := env.mkdir(t, "p_climate", "d_sensors")
	if _, err := env.eng.EnsureProject(context.Background(), filepath.Join(env.root, "p_climate")); err != nil {
		t.Fatal(err)
	}

	content := strings.Repeat("x", 50)
	file := filepath.Join(datasetDir, "reading.csv")
	testutil.WriteFile(t, file, content)

	if err := env.eng.IngestFile(context.Background(), file, datasetDir); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	structural := env.readDoc(t, datasetDir, models.KindDatasetStructural)
	files, _ := structural["file_descriptions"].([]any)
	if len(files) != 1 {
		t.Fatalf("expected 1 file record, got %d", len(files))
	}
	record := files[0].(map[string]any)
	if record["file_name"] != "reading.csv" {
		t.Errorf("wrong file name: %v", record["file_name"])
	}
	if record["checksum"] != checksum.Sum([]byte(content)) {
		t.Errorf("checksum mismatch: %v", record["checksum"])
	}
	if record["checksum_algorithm"] != checksum.Algorithm {
		t.Errorf("wrong algorithm: %v", record["checksum_algorithm"])
	}
	if record["file_size_bytes"] != float64(50) {
		t.Errorf("wrong size: %v", record["file_size_bytes"])
	}

	org, _ := structural["file_organization"].(map[string]any)
	if org["file_count"] != float64(1) {
		t.Errorf("wrong file count: %v", org["file_count"])
	}
	if org["total_size_bytes"] != float64(50) {
		t.Errorf("wrong total size: %v", org["total_size_bytes"])
	}
}

func TestIngestFileBelowThresholdIsDeferred(t *testing.T) {
	env := newTestEnv(t)
	env.mkdir(t, "p_climate")
	datasetDir := env.mkdir(t, "p_climate", "d_sensors")

	file := filepath.Join(datasetDir, "tiny.txt")
	testutil.WriteFile(t, file, "abc")

	if err := env.eng.IngestFile(context.Background(), file, datasetDir); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	// Deferred ingestion must not even generate the dataset documents.
	rel, _ := filepath.Rel(env.root, datasetDir)
	if env.store.Exists(filepath.Join(rel, models.MetadataDir, models.KindDatasetStructural.FileName())) {
		t.Error("structural document generated for a deferred file")
	}
}

func TestIngestFileTriggersLazyDatasetGeneration(t *testing.T) {
	env := newTestEnv(t)
	env.mkdir(t, "p_climate")
	datasetDir := env.mkdir(t, "p_climate", "d_sensors")

	file := filepath.Join(datasetDir, "reading.csv")
	testutil.WriteFile(t, file, strings.Repeat("y", 20))

	if err := env.eng.IngestFile(context.Background(), file, datasetDir); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	structural := env.readDoc(t, datasetDir, models.KindDatasetStructural)
	if structural["dataset_identifier"] == "" {
		t.Error("lazy generation did not assign an identifier")
	}
}

func TestIngestFileUpsertsByName(t *testing.T) {
	env := newTestEnv(t)
	env.mkdir(t, "p_climate")
	datasetDir := env.mkdir(t, "p_climate", "d_sensors")
	file := filepath.Join(datasetDir, "reading.csv")

	testutil.WriteFile(t, file, strings.Repeat("a", 20))
	if err := env.eng.IngestFile(context.Background(), file, datasetDir); err != nil {
		t.Fatal(err)
	}
	testutil.WriteFile(t, file, strings.Repeat("b", 40))
	if err := env.eng.IngestFile(context.Background(), file, datasetDir); err != nil {
		t.Fatal(err)
	}

	structural := env.readDoc(t, datasetDir, models.KindDatasetStructural)
	files, _ := structural["file_descriptions"].([]any)
	if len(files) != 1 {
		t.Fatalf("re-ingestion must not duplicate records, got %d", len(files))
	}
	record := files[0].(map[string]any)
	if record["file_size_bytes"] != float64(40) {
		t.Errorf("record not updated: %v", record["file_size_bytes"])
	}
	org, _ := structural["file_organization"].(map[string]any)
	if org["total_size_bytes"] != float64(40) {
		t.Errorf("summary not recomputed: %v", org["total_size_bytes"])
	}
}

func TestCreateContextualTemplate(t *testing.T) {
	env := newTestEnv(t)
	env.mkdir(t, "p_climate")
	datasetDir := env.mkdir(t, "p_climate", "d_sensors")
	datasetID, err := env.eng.EnsureDataset(context.Background(), datasetDir)
	if err != nil {
		t.Fatal(err)
	}

	runID, err := env.eng.CreateContextualTemplate(context.Background(), datasetDir, "")
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	if runID == "" {
		t.Fatal("empty run identifier")
	}

	doc := env.readDoc(t, datasetDir, models.KindExperimentContextual)
	if doc["experiment_identifier_run_id"] != runID {
		t.Errorf("run id mismatch: %v", doc["experiment_identifier_run_id"])
	}
	if doc["experiment_template_type"] != "unknown_template" {
		t.Errorf("wrong template type: %v", doc["experiment_template_type"])
	}
	if doc["dataset_identifier_link"] != datasetID {
		t.Errorf("dataset link not backfilled: %v", doc["dataset_identifier_link"])
	}
	if doc["experiment_name"] != schema.Placeholder {
		t.Errorf("experiment name must carry the sentinel, got %v", doc["experiment_name"])
	}
	if doc["experiment_description"] != schema.Placeholder {
		t.Errorf("description must carry the sentinel, got %v", doc["experiment_description"])
	}
}

func TestCreateContextualTemplateTyped(t *testing.T) {
	env := newTestEnv(t)
	env.mkdir(t, "p_climate")
	datasetDir := env.mkdir(t, "p_climate", "d_sensors")
	if _, err := env.eng.EnsureDataset(context.Background(), datasetDir); err != nil {
		t.Fatal(err)
	}

	if _, err := env.eng.CreateContextualTemplate(context.Background(), datasetDir, "microscopy_imaging"); err != nil {
		t.Fatalf("create template: %v", err)
	}
	doc := env.readDoc(t, datasetDir, models.KindExperimentContextual)
	if doc["experiment_template_type"] != "microscopy_imaging" {
		t.Errorf("const template type expected, got %v", doc["experiment_template_type"])
	}
	if doc["microscope_model"] != "LSM-900" {
		t.Errorf("typed field missing: %v", doc["microscope_model"])
	}
}

func TestCompletionGate(t *testing.T) {
	env := newTestEnv(t)
	env.mkdir(t, "p_climate")
	datasetDir := env.mkdir(t, "p_climate", "d_sensors")
	if _, err := env.eng.EnsureDataset(context.Background(), datasetDir); err != nil {
		t.Fatal(err)
	}
	runID, err := env.eng.CreateContextualTemplate(context.Background(), datasetDir, "")
	if err != nil {
		t.Fatal(err)
	}

	ok, gotRun, err := env.eng.CheckCompletion(context.Background(), datasetDir)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("gate must stay closed while fields are unfilled")
	}
	if gotRun != runID {
		t.Errorf("run id mismatch: %s vs %s", gotRun, runID)
	}

	doc := env.readDoc(t, datasetDir, models.KindExperimentContextual)
	doc["experiment_name"] = "calibration run"
	doc["experiment_description"] = "baseline sensor calibration"
	env.writeDoc(t, datasetDir, models.KindExperimentContextual, doc)

	ok, _, err = env.eng.CheckCompletion(context.Background(), datasetDir)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("gate must open once every required field is filled")
	}
}

func TestCompletionGateHealsDatasetLink(t *testing.T) {
	env := newTestEnv(t)
	env.mkdir(t, "p_climate")
	datasetDir := env.mkdir(t, "p_climate", "d_sensors")
	datasetID, err := env.eng.EnsureDataset(context.Background(), datasetDir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.eng.CreateContextualTemplate(context.Background(), datasetDir, ""); err != nil {
		t.Fatal(err)
	}

	doc := env.readDoc(t, datasetDir, models.KindExperimentContextual)
	doc["dataset_identifier_link"] = ""
	doc["experiment_name"] = "run"
	doc["experiment_description"] = "desc"
	env.writeDoc(t, datasetDir, models.KindExperimentContextual, doc)

	ok, _, err := env.eng.CheckCompletion(context.Background(), datasetDir)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("gate must open after healing the dataset link")
	}
	healed := env.readDoc(t, datasetDir, models.KindExperimentContextual)
	if healed["dataset_identifier_link"] != datasetID {
		t.Errorf("healed link not persisted: %v", healed["dataset_identifier_link"])
	}
}

func TestFinalizationProducesCompleteMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	projectDir := env.mkdir(t, "p_climate")
	datasetDir := env.mkdir(t, "p_climate", "d_sensors")

	if _, err := env.eng.EnsureProject(ctx, projectDir); err != nil {
		t.Fatal(err)
	}
	if _, err := env.eng.EnsureDataset(ctx, datasetDir); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(datasetDir, "reading.csv")
	testutil.WriteFile(t, file, strings.Repeat("z", 50))
	if err := env.eng.IngestFile(ctx, file, datasetDir); err != nil {
		t.Fatal(err)
	}
	runID, err := env.eng.CreateContextualTemplate(ctx, datasetDir, "")
	if err != nil {
		t.Fatal(err)
	}

	doc := env.readDoc(t, datasetDir, models.KindExperimentContextual)
	doc["experiment_name"] = "calibration run"
	doc["experiment_description"] = "baseline sensor calibration"
	env.writeDoc(t, datasetDir, models.KindExperimentContextual, doc)

	contextualPath := filepath.Join(datasetDir, models.MetadataDir, models.KindExperimentContextual.FileName())
	if err := env.eng.OnPathEvent(ctx, contextualPath, EventModified); err != nil {
		t.Fatalf("event: %v", err)
	}

	complete := env.readDoc(t, datasetDir, models.KindCompleteMetadata)
	if complete["version"] != "2.0" {
		t.Errorf("wrong version: %v", complete["version"])
	}
	if complete["experiment_identifier"] != runID {
		t.Errorf("wrong experiment identifier: %v", complete["experiment_identifier"])
	}
	components, _ := complete["metadata_components"].(map[string]any)
	for _, key := range []string{
		"project_descriptive", "project_administrative",
		"dataset_administrative", "dataset_structural", "experiment_contextual",
	} {
		if _, ok := components[key]; !ok {
			t.Errorf("missing component %s", key)
		}
	}
	validation, _ := complete["metadata_validation"].(map[string]any)
	if validation["schema_compliance"] != true {
		t.Error("expected schema compliance")
	}
	if validation["completeness_score"] != float64(1) {
		t.Errorf("fully filled tree must score 1.0, got %v", validation["completeness_score"])
	}
	if validation["quality_score"] != float64(1) {
		t.Errorf("compliant full tree must score 1.0 quality, got %v", validation["quality_score"])
	}
	if env.eng.DatasetStatus(datasetDir) != models.StatusFinalized {
		t.Error("dataset must be finalized")
	}
}

func TestGenerateCompleteNonCompliantQualityPenalty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	projectDir := env.mkdir(t, "p_climate")
	datasetDir := env.mkdir(t, "p_climate", "d_sensors")
	if _, err := env.eng.EnsureProject(ctx, projectDir); err != nil {
		t.Fatal(err)
	}
	if _, err := env.eng.EnsureDataset(ctx, datasetDir); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(datasetDir, "reading.csv")
	testutil.WriteFile(t, file, strings.Repeat("z", 50))
	if err := env.eng.IngestFile(ctx, file, datasetDir); err != nil {
		t.Fatal(err)
	}
	runID, err := env.eng.CreateContextualTemplate(ctx, datasetDir, "")
	if err != nil {
		t.Fatal(err)
	}
	doc := env.readDoc(t, datasetDir, models.KindExperimentContextual)
	doc["experiment_name"] = "calibration run"
	doc["experiment_description"] = "baseline sensor calibration"
	env.writeDoc(t, datasetDir, models.KindExperimentContextual, doc)

	// A local override demanding a field the aggregate never carries
	// drives the scoring down the non-compliant branch.
	override := `{
    "type": "object",
    "properties": {"archive_reference": {"type": "string"}},
    "required": ["archive_reference"]
}`
	testutil.WriteFile(t,
		filepath.Join(env.root, models.TemplateSchemasDir, models.KindCompleteMetadata.SchemaName()),
		override)

	complete, err := env.eng.GenerateComplete(ctx, datasetDir, runID)
	if err != nil {
		t.Fatalf("generate complete: %v", err)
	}
	validation, _ := complete["metadata_validation"].(map[string]any)
	if validation["schema_compliance"] != false {
		t.Error("override schema must fail compliance")
	}
	if validation["completeness_score"] != 1.0 {
		t.Errorf("completeness must stay 1.0, got %v", validation["completeness_score"])
	}
	if validation["quality_score"] != 0.6 {
		t.Errorf("non-compliant aggregate must score 0.6 quality, got %v", validation["quality_score"])
	}
}

func TestFinalizationIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	projectDir := env.mkdir(t, "p_climate")
	datasetDir := env.mkdir(t, "p_climate", "d_sensors")
	if _, err := env.eng.EnsureProject(ctx, projectDir); err != nil {
		t.Fatal(err)
	}
	if _, err := env.eng.EnsureDataset(ctx, datasetDir); err != nil {
		t.Fatal(err)
	}
	runID, err := env.eng.CreateContextualTemplate(ctx, datasetDir, "")
	if err != nil {
		t.Fatal(err)
	}
	doc := env.readDoc(t, datasetDir, models.KindExperimentContextual)
	doc["experiment_name"] = "run"
	doc["experiment_description"] = "desc"
	env.writeDoc(t, datasetDir, models.KindExperimentContextual, doc)

	contextualPath := filepath.Join(datasetDir, models.MetadataDir, models.KindExperimentContextual.FileName())
	if err := env.eng.OnPathEvent(ctx, contextualPath, EventModified); err != nil {
		t.Fatal(err)
	}
	first := env.readDoc(t, datasetDir, models.KindCompleteMetadata)
	if first["experiment_identifier"] != runID {
		t.Fatal("finalization did not run")
	}

	// A second contextual edit must not regenerate the complete document.
	doc["experiment_name"] = "renamed run"
	env.writeDoc(t, datasetDir, models.KindExperimentContextual, doc)
	if err := env.eng.OnPathEvent(ctx, contextualPath, EventModified); err != nil {
		t.Fatal(err)
	}
	second := env.readDoc(t, datasetDir, models.KindCompleteMetadata)
	renamed, _ := second["metadata_components"].(map[string]any)["experiment_contextual"].(map[string]any)
	if renamed["experiment_name"] == "renamed run" {
		t.Error("finalized dataset was re-aggregated")
	}
}

func TestApplyUpdateProtectsIdentifiers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	projectDir := env.mkdir(t, "p_climate")
	projectID, err := env.eng.EnsureProject(ctx, projectDir)
	if err != nil {
		t.Fatal(err)
	}

	existing := env.readDoc(t, projectDir, models.KindProjectDescriptive)
	update := map[string]any{}
	for k, v := range existing {
		update[k] = v
	}
	update["project_identifier"] = "attacker-chosen"
	update["project_title"] = "Updated Title"
	update["created_by"] = "someone-else"

	merged, err := env.eng.ApplyUpdate(ctx, projectDir, models.KindProjectDescriptive, update, "alice")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if merged["project_identifier"] != projectID {
		t.Errorf("protected field overwritten: %v", merged["project_identifier"])
	}
	if merged["project_title"] != "Updated Title" {
		t.Errorf("editable field not updated: %v", merged["project_title"])
	}
	if merged["created_by"] != "system" {
		t.Errorf("creation audit must survive updates: %v", merged["created_by"])
	}
	if merged["last_modified_by"] != "alice" {
		t.Errorf("actor not recorded: %v", merged["last_modified_by"])
	}

	persisted := env.readDoc(t, projectDir, models.KindProjectDescriptive)
	if persisted["project_identifier"] != projectID {
		t.Error("persisted document lost its identifier")
	}
}

func TestApplyUpdateMissingDocument(t *testing.T) {
	env := newTestEnv(t)
	dir := env.mkdir(t, "p_none")
	if _, err := env.eng.ApplyUpdate(context.Background(), dir, models.KindProjectDescriptive, map[string]any{}, "alice"); err == nil {
		t.Fatal("expected error for missing document")
	}
}

func TestDatasetStatusProgression(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mkdir(t, "p_climate")
	datasetDir := env.mkdir(t, "p_climate", "d_sensors")

	if got := env.eng.DatasetStatus(datasetDir); got != models.StatusInitial {
		t.Errorf("expected initial, got %v", got)
	}
	if _, err := env.eng.EnsureDataset(ctx, datasetDir); err != nil {
		t.Fatal(err)
	}
	if got := env.eng.DatasetStatus(datasetDir); got != models.StatusIngested {
		t.Errorf("expected ingested, got %v", got)
	}
}

func TestOnPathEventRoutesDirectories(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	projectDir := env.mkdir(t, "p_climate")

	if err := env.eng.OnPathEvent(ctx, projectDir, EventCreated); err != nil {
		t.Fatalf("event: %v", err)
	}
	desc := env.readDoc(t, projectDir, models.KindProjectDescriptive)
	if desc["project_identifier"] == "" {
		t.Error("project not generated from event")
	}

	datasetDir := env.mkdir(t, "p_climate", "d_sensors")
	if err := env.eng.OnPathEvent(ctx, datasetDir, EventMovedTo); err != nil {
		t.Fatalf("event: %v", err)
	}
	if env.eng.DatasetStatus(datasetDir) != models.StatusIngested {
		t.Error("dataset not generated from moved-to event")
	}
}

func TestOnPathEventVanishedPath(t *testing.T) {
	env := newTestEnv(t)
	gone := filepath.Join(env.root, "p_x", "d_y", "gone.csv")
	if err := env.eng.OnPathEvent(context.Background(), gone, EventCreated); err != nil {
		t.Fatalf("vanished path must be dropped silently: %v", err)
	}
}

func TestReconcileSweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	datasetDir := env.mkdir(t, "p_climate", "d_sensors")
	env.mkdir(t, "p_climate", "d_sensors", "raw")
	testutil.WriteFile(t, filepath.Join(datasetDir, "raw", "day1.csv"), strings.Repeat("q", 30))
	testutil.WriteFile(t, filepath.Join(datasetDir, "notes.txt"), strings.Repeat("n", 15))
	// Noise that must not surface in any document.
	testutil.WriteFile(t, filepath.Join(env.root, "p_climate", ".git", "HEAD"), "ref: refs/heads/main")
	testutil.WriteFile(t, filepath.Join(env.root, "stray.txt"), "ignored")

	if err := env.eng.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	desc := env.readDoc(t, filepath.Join(env.root, "p_climate"), models.KindProjectDescriptive)
	if desc["project_identifier"] == "" {
		t.Error("project not generated")
	}
	structural := env.readDoc(t, datasetDir, models.KindDatasetStructural)
	files, _ := structural["file_descriptions"].([]any)
	if len(files) != 2 {
		t.Fatalf("expected 2 ingested files, got %d", len(files))
	}
	names := map[string]bool{}
	for _, raw := range files {
		record := raw.(map[string]any)
		names[record["file_name"].(string)] = true
	}
	if !names["day1.csv"] || !names["notes.txt"] {
		t.Errorf("unexpected file set: %v", names)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	datasetDir := env.mkdir(t, "p_climate", "d_sensors")
	testutil.WriteFile(t, filepath.Join(datasetDir, "a.txt"), strings.Repeat("a", 20))

	if err := env.eng.Reconcile(ctx); err != nil {
		t.Fatal(err)
	}
	first := env.readDoc(t, datasetDir, models.KindDatasetStructural)
	if err := env.eng.Reconcile(ctx); err != nil {
		t.Fatal(err)
	}
	second := env.readDoc(t, datasetDir, models.KindDatasetStructural)

	if first["dataset_identifier"] != second["dataset_identifier"] {
		t.Error("identifier regenerated on second sweep")
	}
	files, _ := second["file_descriptions"].([]any)
	if len(files) != 1 {
		t.Errorf("records duplicated: %d", len(files))
	}
}
