package engine

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/nordlys/metawatch/internal/models"
)

// ClassKind is the structural meaning of a filesystem path.
type ClassKind int

const (
	// ClassIgnore: noise, metadata internals, or anything outside the
	// catalog conventions.
	ClassIgnore ClassKind = iota
	// ClassProjectRoot: a directory carrying the project prefix.
	ClassProjectRoot
	// ClassDatasetRoot: a directory directly inside a project directory.
	ClassDatasetRoot
	// ClassNestedFile: a data file attributable to exactly one dataset root.
	ClassNestedFile
)

// Classification is the result of classifying a path.
type Classification struct {
	Kind ClassKind
	// DatasetRoot is the absolute dataset directory for ClassDatasetRoot
	// and ClassNestedFile.
	DatasetRoot string
	// ProjectDir is the owning project directory for ClassDatasetRoot.
	ProjectDir string
	// Legacy marks a dataset directory that lacks the dataset prefix and
	// was accepted through the compatibility branch.
	Legacy bool
}

// ignoredSegments are directory or file names that never belong to the
// catalog: version-control internals, build caches, virtualenvs.
var ignoredSegments = map[string]struct{}{
	".git":                    {},
	".dvc":                    {},
	"__pycache__":             {},
	".DS_Store":               {},
	"node_modules":            {},
	".venv":                   {},
	"venv":                    {},
	"dist":                    {},
	"build":                   {},
	".next":                   {},
	models.TemplateSchemasDir: {},
}

// ignoredSuffixes are editor temp/swap artifacts.
var ignoredSuffixes = []string{".tmp", ".swp", ".swo", "~", ".bak", ".part"}

// Classifier decides what a created/modified path means structurally.
// It is read-only with respect to the tree: the only filesystem access is
// probing for existing structural documents during the upward walk.
type Classifier struct {
	root  string
	extra []string // additional ignore segments from configuration
}

// NewClassifier creates a classifier bounded by the absolute monitored root.
func NewClassifier(root string, extraIgnores []string) *Classifier {
	return &Classifier{root: filepath.Clean(root), extra: extraIgnores}
}

// Classify applies the classification rules in priority order.
func (c *Classifier) Classify(path string, isDir bool) Classification {
	path = filepath.Clean(path)
	if c.shouldIgnore(path, isDir) {
		return Classification{Kind: ClassIgnore}
	}

	base := filepath.Base(path)
	if isDir {
		if strings.HasPrefix(base, ".") {
			return Classification{Kind: ClassIgnore}
		}
		if strings.HasPrefix(base, models.ProjectPrefix) {
			return Classification{Kind: ClassProjectRoot}
		}
		parent := filepath.Dir(path)
		if parent != c.root && strings.HasPrefix(filepath.Base(parent), models.ProjectPrefix) {
			// Directly inside a project: a dataset root. Directories
			// without the dataset prefix go through the legacy branch.
			return Classification{
				Kind:        ClassDatasetRoot,
				DatasetRoot: path,
				ProjectDir:  parent,
				Legacy:      !strings.HasPrefix(base, models.DatasetPrefix),
			}
		}
		return Classification{Kind: ClassIgnore}
	}

	// Files: attribute to the nearest ancestor that already carries a
	// structural document, so nesting inside a dataset can be arbitrary.
	if dsRoot := c.findDatasetRoot(filepath.Dir(path)); dsRoot != "" {
		return Classification{Kind: ClassNestedFile, DatasetRoot: dsRoot}
	}

	// No initialized ancestor: accept only files whose immediate parent
	// itself classifies as a dataset root, which triggers lazy generation.
	parent := filepath.Dir(path)
	pc := c.Classify(parent, true)
	if pc.Kind == ClassDatasetRoot {
		return Classification{Kind: ClassNestedFile, DatasetRoot: parent, Legacy: pc.Legacy}
	}
	return Classification{Kind: ClassIgnore}
}

// findDatasetRoot walks upward from dir until a directory holding a
// structural document is found. The walk stops at the monitored root;
// it never ascends past it.
func (c *Classifier) findDatasetRoot(dir string) string {
	cur := filepath.Clean(dir)
	for {
		if cur == c.root || len(cur) < len(c.root) {
			return ""
		}
		probe := filepath.Join(cur, models.MetadataDir, models.KindDatasetStructural.FileName())
		if _, err := os.Stat(probe); err == nil {
			return cur
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return ""
		}
		cur = parent
	}
}

func (c *Classifier) shouldIgnore(path string, isDir bool) bool {
	rel, err := filepath.Rel(c.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return true
	}

	segments := strings.Split(rel, string(os.PathSeparator))
	for _, seg := range segments {
		if _, ok := ignoredSegments[seg]; ok {
			return true
		}
		for _, extra := range c.extra {
			if seg == extra {
				return true
			}
		}
	}

	base := segments[len(segments)-1]
	for _, suffix := range ignoredSuffixes {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}

	// Anything inside a metadata subdirectory is engine output, not input;
	// a directory named like the metadata subdirectory is also skipped.
	if isDir && base == models.MetadataDir {
		return true
	}
	if !isDir {
		for _, seg := range segments[:len(segments)-1] {
			if seg == models.MetadataDir {
				return true
			}
		}
	}
	return false
}
