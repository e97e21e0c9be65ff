// Package storage defines the monitored-tree file-system abstraction.
package storage

// Provider is the interface for reading and writing files under the
// monitored root. All paths are relative to the root.
type Provider interface {
	// Root returns the absolute path of the monitored root.
	Root() string
	// Exists reports whether path exists.
	Exists(path string) bool
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// ReadJSON unmarshals the JSON document at path.
	ReadJSON(path string) (map[string]any, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// WriteJSON atomically writes doc as indented JSON to path.
	WriteJSON(path string, doc map[string]any) error
}
