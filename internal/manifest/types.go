package manifest

import (
	"encoding/json"
	"strings"
)

// Field names of a manifest entry.
const (
	KeyApp     = "app"
	KeyPath    = "path"
	KeyVersion = "version"
	KeyYAML    = "yaml"
)

// DefaultVersion is the recorded version of a unit whose entry has none.
const DefaultVersion = "0.0.0"

// DefaultDelimiter separates k8s file names in the yaml field.
const DefaultDelimiter = "|"

// Unit is one deployable service entry.
type Unit struct {
	// App is the unit identifier and image tag name.
	App string
	// Path is the unit source location as written in the manifest.
	Path string
	// Version is the last recorded build version.
	Version string
	// YAML is the raw delimiter-separated list of k8s manifest files.
	YAML string

	fields []field
	dirty  bool
}

// field is one key of a manifest entry, kept in file order.
type field struct {
	key   string
	value json.RawMessage
}

// Manifest is the ordered list of deployable units.
type Manifest struct {
	Units []Unit

	trailingNewline bool
}

// YAMLFiles splits the yaml field on delim, trimming blanks and dropping
// empty entries. An empty delim uses DefaultDelimiter.
func (u Unit) YAMLFiles(delim string) []string {
	if delim == "" {
		delim = DefaultDelimiter
	}

	var files []string
	for _, f := range strings.Split(u.YAML, delim) {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	return files
}

// Len returns the number of units.
func (m *Manifest) Len() int {
	return len(m.Units)
}
