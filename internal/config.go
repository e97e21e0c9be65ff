package internal

import (
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents the application configuration.
type Config struct {
	App            ApplicationConfig    `yaml:"app"`
	Monitor        MonitorConfig        `yaml:"monitor"`
	Schemas        SchemasConfig        `yaml:"schemas"`
	Validation     ValidationConfig     `yaml:"validation"`
	VersionControl VersionControlConfig `yaml:"version_control"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Monitor.Validate(); err != nil {
		return err
	}
	return c.Schemas.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// MonitorConfig holds the monitored tree configuration.
type MonitorConfig struct {
	// Path is the root of the monitored directory tree.
	Path string `yaml:"path"`
	// MinFileSizeBytes defers ingestion of files below this size.
	MinFileSizeBytes int64 `yaml:"min_file_size_bytes"`
	// ReconcileWorkers bounds concurrent file ingestion during the
	// startup sweep.
	ReconcileWorkers int `yaml:"reconcile_workers"`
	// IgnoreDirs adds directory names to the built-in ignore list.
	IgnoreDirs []string `yaml:"ignore_dirs"`
}

// Validate validates the monitor configuration.
func (c *MonitorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.MinFileSizeBytes, validation.Min(0)),
		validation.Field(&c.ReconcileWorkers, validation.Min(0)),
	)
}

// SchemasConfig holds schema resolution configuration.
type SchemasConfig struct {
	// PackagedDir is the directory of packaged default schemas.
	PackagedDir string `yaml:"packaged_dir"`
	// CustomDir is an optional directory of override schemas.
	CustomDir string `yaml:"custom_dir"`
	// Overrides maps logical schema names to explicit file paths.
	Overrides map[string]string `yaml:"overrides"`
	// MaterializeDepth bounds nested-object expansion when generating
	// documents from schemas.
	MaterializeDepth int `yaml:"materialize_depth"`
}

// Validate validates the schemas configuration.
func (c *SchemasConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PackagedDir, validation.Required),
		validation.Field(&c.MaterializeDepth, validation.Required, validation.Min(1)),
	)
}

// ValidationConfig controls document validation behavior.
type ValidationConfig struct {
	// Strict aborts writes on schema violations; lenient mode logs them.
	Strict bool `yaml:"strict"`
}

// VersionControlConfig enables best-effort git commits of metadata writes.
type VersionControlConfig struct {
	Enabled bool `yaml:"enabled"`
	// RepoDir is the git repository; empty means the monitored root.
	RepoDir string `yaml:"repo_dir"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Monitor: MonitorConfig{
			Path:             "./data",
			MinFileSizeBytes: 10,
			ReconcileWorkers: 4,
		},
		Schemas: SchemasConfig{
			PackagedDir:      "./schemas",
			MaterializeDepth: 1,
		},
		Validation: ValidationConfig{
			Strict: true,
		},
		VersionControl: VersionControlConfig{
			Enabled: false,
		},
	}
}
