package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nordlys/metawatch/internal/checksum"
)

func TestScanRegularFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	content := []byte("a,b\n1,2\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := NewStatScanner().Scan(path)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.SizeBytes != int64(len(content)) {
		t.Errorf("SizeBytes = %d, want %d", res.SizeBytes, len(content))
	}
	if res.Extension != "csv" {
		t.Errorf("Extension = %q", res.Extension)
	}
	if res.MIMEType != "text/csv" {
		t.Errorf("MIMEType = %q", res.MIMEType)
	}
	if res.Checksum != checksum.Sum(content) {
		t.Errorf("Checksum = %q", res.Checksum)
	}
	if res.Algorithm != checksum.Algorithm {
		t.Errorf("Algorithm = %q", res.Algorithm)
	}
	if res.Permissions == "" {
		t.Error("empty permissions string")
	}
	if res.Owner == "" || res.Group == "" {
		t.Error("owner/group must never be empty")
	}
	if res.ModifiedAt.IsZero() {
		t.Error("zero ModifiedAt")
	}
}

func TestScanUnknownExtensionFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.zzz9")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := NewStatScanner().Scan(path)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.MIMEType != "application/octet-stream" {
		t.Errorf("MIMEType = %q", res.MIMEType)
	}
}

func TestScanDirectoryFails(t *testing.T) {
	if _, err := NewStatScanner().Scan(t.TempDir()); err == nil {
		t.Error("expected error scanning a directory")
	}
}

func TestScanMissingFileFails(t *testing.T) {
	if _, err := NewStatScanner().Scan(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error scanning missing file")
	}
}
