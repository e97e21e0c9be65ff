package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nordlys/metawatch/internal/apperr"
	"github.com/nordlys/metawatch/internal/models"
)

func writeSchema(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalSchema = `{"type": "object", "properties": {"x": {"type": "string"}}}`

func TestResolvePrecedence(t *testing.T) {
	monitorRoot := t.TempDir()
	customDir := t.TempDir()
	packagedDir := t.TempDir()

	explicit := writeSchema(t, t.TempDir(), "s.json", minimalSchema)
	local := writeSchema(t, filepath.Join(monitorRoot, models.TemplateSchemasDir), "s.json", minimalSchema)
	custom := writeSchema(t, customDir, "s.json", minimalSchema)
	writeSchema(t, packagedDir, "s.json", minimalSchema)

	r := NewResolver(ResolverConfig{
		Overrides:   map[string]string{"s.json": explicit},
		MonitorRoot: monitorRoot,
		CustomDir:   customDir,
		PackagedDir: packagedDir,
	})

	desc, err := r.Resolve("s.json")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if desc.Source != models.SourceExplicitOverride {
		t.Errorf("source = %q, want explicit_override", desc.Source)
	}
	if desc.Path != explicit {
		t.Errorf("path = %q, want %q", desc.Path, explicit)
	}

	// Without the explicit override the local override wins.
	r = NewResolver(ResolverConfig{MonitorRoot: monitorRoot, CustomDir: customDir, PackagedDir: packagedDir})
	desc, err = r.Resolve("s.json")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if desc.Source != models.SourceLocalOverride || desc.Path != local {
		t.Errorf("got %+v, want local override %q", desc, local)
	}

	// Without the local override the custom directory wins.
	if err := os.Remove(local); err != nil {
		t.Fatal(err)
	}
	desc, err = r.Resolve("s.json")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if desc.Source != models.SourceCustomOverride || desc.Path != custom {
		t.Errorf("got %+v, want custom override %q", desc, custom)
	}
}

func TestResolvePackagedFallback(t *testing.T) {
	packagedDir := t.TempDir()
	writeSchema(t, packagedDir, "s.json", minimalSchema)

	r := NewResolver(ResolverConfig{PackagedDir: packagedDir})
	desc, err := r.Resolve("s.json")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if desc.Source != models.SourcePackagedDefault {
		t.Errorf("source = %q, want packaged_default", desc.Source)
	}
}

func TestResolveNotFound(t *testing.T) {
	r := NewResolver(ResolverConfig{PackagedDir: t.TempDir()})
	_, err := r.Resolve("missing.json")
	if !errors.Is(err, apperr.ErrSchemaNotFound) {
		t.Errorf("err = %v, want ErrSchemaNotFound", err)
	}
}

func TestResolveContextualNamespace(t *testing.T) {
	packagedDir := t.TempDir()
	writeSchema(t, packagedDir, filepath.Join("contextual", "microscopy_imaging.json"), minimalSchema)

	r := NewResolver(ResolverConfig{PackagedDir: packagedDir})
	desc, err := r.ResolveContextual("microscopy_imaging")
	if err != nil {
		t.Fatalf("ResolveContextual: %v", err)
	}
	if filepath.Base(filepath.Dir(desc.Path)) != "contextual" {
		t.Errorf("resolved path not under contextual/: %s", desc.Path)
	}
}

func TestLoadContextualFallsBackToBase(t *testing.T) {
	packagedDir := t.TempDir()
	writeSchema(t, packagedDir, "experiment_contextual_schema.json", minimalSchema)

	r := NewResolver(ResolverConfig{PackagedDir: packagedDir})
	body, desc, err := r.LoadContextual("no_such_template")
	if err != nil {
		t.Fatalf("LoadContextual: %v", err)
	}
	if body == nil {
		t.Fatal("nil schema body")
	}
	if desc.Name != "experiment_contextual_schema.json" {
		t.Errorf("fell back to %q", desc.Name)
	}
}

func TestInspectReportsTiers(t *testing.T) {
	monitorRoot := t.TempDir()
	packagedDir := t.TempDir()
	writeSchema(t, packagedDir, "s.json", minimalSchema)
	writeSchema(t, filepath.Join(monitorRoot, models.TemplateSchemasDir), "s.json", minimalSchema)

	r := NewResolver(ResolverConfig{MonitorRoot: monitorRoot, PackagedDir: packagedDir})
	info := r.Inspect("s.json")
	if !info.LocalOverrideExists {
		t.Error("local override should exist")
	}
	if !info.PackagedExists {
		t.Error("packaged default should exist")
	}
	if info.Source != models.SourceLocalOverride {
		t.Errorf("source = %q", info.Source)
	}
}

func TestLoadCachesByResolvedPath(t *testing.T) {
	packagedDir := t.TempDir()
	p := writeSchema(t, packagedDir, "s.json", minimalSchema)

	r := NewResolver(ResolverConfig{PackagedDir: packagedDir})
	if _, _, err := r.Load("s.json"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Corrupt the file; the cached body must still be served.
	if err := os.WriteFile(p, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	body, _, err := r.Load("s.json")
	if err != nil {
		t.Fatalf("Load after overwrite: %v", err)
	}
	if body["type"] != "object" {
		t.Errorf("cached body not served: %v", body)
	}
}
