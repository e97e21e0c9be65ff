// Package testutil provides shared fixtures for metawatch tests: a packaged
// schema set small enough to reason about, a discard logger, and polling
// helpers for asynchronous assertions.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Eventually polls cond until it returns true or the timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

// SchemaDir writes the test schema set into a temp directory and returns
// its path. The schemas are intentionally fully materializable: every
// string field is either system-filled, enum-defaulted, or exercised by a
// test, so aggregate completeness can reach 1.0.
func SchemaDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range testSchemas {
		WriteFile(t, filepath.Join(dir, name), body)
	}
	return dir
}

var testSchemas = map[string]string{
	"project_descriptive.json": `{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "title": "Project Descriptive Metadata",
    "type": "object",
    "properties": {
        "project_identifier": {"type": "string"},
        "project_title": {"type": "string"},
        "project_status": {"type": "string", "enum": ["active", "closed"]},
        "created_by": {"type": "string"},
        "created_date": {"type": "string"},
        "last_modified_by": {"type": "string"},
        "last_modified_date": {"type": "string"}
    },
    "required": ["project_identifier", "project_title"]
}`,
	"project_administrative_schema.json": `{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "title": "Project Administrative Metadata",
    "type": "object",
    "properties": {
        "project_identifier_link": {"type": "string"},
        "default_license": {"type": "string", "enum": ["CC-BY-4.0", "CC0-1.0"]},
        "default_access_level": {"type": "string", "enum": ["open", "restricted"]},
        "created_by": {"type": "string"},
        "created_date": {"type": "string"},
        "last_modified_by": {"type": "string"},
        "last_modified_date": {"type": "string"}
    },
    "required": ["project_identifier_link"]
}`,
	"dataset_administrative_schema.json": `{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "title": "Dataset Administrative Metadata",
    "type": "object",
    "properties": {
        "dataset_identifier_link": {"type": "string"},
        "associated_project_identifier": {"type": "string"},
        "license": {"type": "string"},
        "access_level": {"type": "string", "enum": ["open", "restricted"]},
        "created_by": {"type": "string"},
        "created_date": {"type": "string"},
        "last_modified_by": {"type": "string"},
        "last_modified_date": {"type": "string"}
    },
    "required": ["dataset_identifier_link"]
}`,
	"dataset_structural_schema.json": `{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "title": "Dataset Structural Metadata",
    "type": "object",
    "properties": {
        "dataset_identifier": {"type": "string"},
        "dataset_title": {"type": "string"},
        "associated_project_identifier": {"type": "string"},
        "file_descriptions": {"type": "array", "items": {"type": "object"}},
        "file_organization": {
            "type": "object",
            "properties": {
                "file_count": {"type": "integer"},
                "total_size_bytes": {"type": "integer"},
                "file_types": {"type": "array", "items": {"type": "string"}}
            }
        },
        "created_by": {"type": "string"},
        "created_date": {"type": "string"},
        "last_modified_by": {"type": "string"},
        "last_modified_date": {"type": "string"}
    },
    "required": ["dataset_identifier", "dataset_title", "associated_project_identifier"]
}`,
	"experiment_contextual_schema.json": `{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "title": "Experiment Contextual Metadata",
    "type": "object",
    "properties": {
        "experiment_identifier_run_id": {"type": "string"},
        "experiment_template_type": {"type": "string"},
        "dataset_identifier_link": {"type": "string"},
        "experiment_name": {"type": "string"},
        "experiment_description": {"type": "string"},
        "created_by": {"type": "string"},
        "created_date": {"type": "string"},
        "last_modified_by": {"type": "string"},
        "last_modified_date": {"type": "string"}
    },
    "required": [
        "experiment_identifier_run_id",
        "experiment_template_type",
        "dataset_identifier_link",
        "experiment_name",
        "experiment_description"
    ]
}`,
	"instrument_technical_schema.json": `{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "title": "Instrument Technical Metadata",
    "type": "object",
    "properties": {
        "instrument_identifier": {"type": "string"},
        "instrument_name": {"type": "string"},
        "manufacturer": {"type": "string"}
    },
    "required": ["instrument_identifier"]
}`,
	"complete_metadata_schema.json": `{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "title": "Complete Metadata",
    "type": "object",
    "properties": {
        "version": {"type": "string"},
        "experiment_identifier": {"type": "string"},
        "metadata_components": {"type": "object"},
        "metadata_relationships": {"type": "object"},
        "metadata_validation": {"type": "object"},
        "metadata_provenance": {"type": "object"}
    },
    "required": ["version", "experiment_identifier", "metadata_components"]
}`,
	filepath.Join("contextual", "microscopy_imaging.json"): `{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "title": "Microscopy Imaging Experiment",
    "type": "object",
    "properties": {
        "experiment_identifier_run_id": {"type": "string"},
        "experiment_template_type": {"type": "string", "const": "microscopy_imaging"},
        "dataset_identifier_link": {"type": "string"},
        "experiment_name": {"type": "string"},
        "experiment_description": {"type": "string"},
        "microscope_model": {"type": "string", "enum": ["LSM-900", "LSM-980"]},
        "created_by": {"type": "string"},
        "created_date": {"type": "string"},
        "last_modified_by": {"type": "string"},
        "last_modified_date": {"type": "string"}
    },
    "required": [
        "experiment_identifier_run_id",
        "experiment_template_type",
        "dataset_identifier_link",
        "experiment_name",
        "experiment_description"
    ]
}`,
}
