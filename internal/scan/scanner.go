// Package scan extracts technical metadata from data files. The Scanner
// interface keeps the implementation pluggable; StatScanner is the default
// and relies on the standard library only.
package scan

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nordlys/metawatch/internal/checksum"
)

// Result is the standardized output of a file scan.
type Result struct {
	SizeBytes   int64
	Extension   string
	MIMEType    string
	Permissions string
	AccessedAt  time.Time
	CreatedAt   time.Time
	ModifiedAt  time.Time
	Checksum    string
	Algorithm   string
	Owner       string
	Group       string
}

// Scanner produces technical metadata for a single file.
type Scanner interface {
	Scan(path string) (Result, error)
}

// StatScanner implements Scanner using os.Stat, mime type lookup by
// extension, and an incremental SHA-256 checksum.
type StatScanner struct{}

// NewStatScanner returns the default scanner.
func NewStatScanner() *StatScanner { return &StatScanner{} }

// Scan stats and hashes the file at path.
func (s *StatScanner) Scan(path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("scan: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Result{}, fmt.Errorf("scan: %s is a directory", path)
	}

	sum, err := checksum.File(path)
	if err != nil {
		return Result{}, fmt.Errorf("scan: %w", err)
	}

	ext := filepath.Ext(path)
	mimeType := mime.TypeByExtension(strings.ToLower(ext))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	} else if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}

	owner, group := ownership(info)
	accessed, created := fileTimes(info)

	return Result{
		SizeBytes:   info.Size(),
		Extension:   strings.TrimPrefix(ext, "."),
		MIMEType:    mimeType,
		Permissions: info.Mode().String(),
		AccessedAt:  accessed,
		CreatedAt:   created,
		ModifiedAt:  info.ModTime(),
		Checksum:    sum,
		Algorithm:   checksum.Algorithm,
		Owner:       owner,
		Group:       group,
	}, nil
}
