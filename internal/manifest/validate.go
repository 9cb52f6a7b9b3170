package manifest

import (
	"errors"
	"fmt"
	"strings"
)

// Manifest errors.
var (
	// ErrManifestNotFound indicates the manifest file does not exist.
	ErrManifestNotFound = errors.New("manifest not found")

	// ErrInvalidManifest indicates the manifest could not be parsed or has invalid entries.
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrManifestChanged indicates the file on disk no longer matches the loaded manifest.
	ErrManifestChanged = errors.New("manifest changed on disk")
)

// Validate checks every unit has an app identifier.
func Validate(m *Manifest) error {
	var problems []string
	for i, u := range m.Units {
		if strings.TrimSpace(u.App) == "" {
			problems = append(problems, fmt.Sprintf("entry %d: missing %q", i, KeyApp))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidManifest, strings.Join(problems, "; "))
	}
	return nil
}
