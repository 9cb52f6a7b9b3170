// Package appsettings locates a service's runtime settings file and reads
// the version it declares under Deployment.Version.
package appsettings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// BaseName is the settings file used when no environment override applies.
	BaseName = "appsettings.json"
)

// ErrVersionMissing indicates the settings file has no usable Deployment.Version.
var ErrVersionMissing = errors.New("Deployment.Version not found")

// DefaultPreProduction lists the environments that read an
// environment-specific settings file.
var DefaultPreProduction = []string{"dev", "staging"}

// IsPreProduction reports whether env is one of preprod, ignoring case.
func IsPreProduction(env string, preprod []string) bool {
	for _, p := range preprod {
		if strings.EqualFold(env, p) {
			return true
		}
	}
	return false
}

// ResolvePath returns the settings file for a unit directory. Pre-production
// environments use appsettings.<env>.json when present, trying env as given
// and then capitalized. Everything else falls back to appsettings.json.
func ResolvePath(unitDir, env string, preprod []string) string {
	if IsPreProduction(env, preprod) {
		for _, name := range candidateNames(env) {
			p := filepath.Join(unitDir, name)
			if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
				return p
			}
		}
	}
	return filepath.Join(unitDir, BaseName)
}

func candidateNames(env string) []string {
	names := []string{fmt.Sprintf("appsettings.%s.json", env)}
	if c := capitalize(env); c != env {
		names = append(names, fmt.Sprintf("appsettings.%s.json", c))
	}
	return names
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// settings mirrors the part of the runtime settings file we read.
type settings struct {
	Deployment *struct {
		Version json.RawMessage `json:"Version"`
	} `json:"Deployment"`
}

// ReadVersion returns Deployment.Version from the settings file at path.
// Numeric versions keep their literal text.
func ReadVersion(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read settings %s: %w", path, err)
	}
	return ParseVersion(data)
}

// ParseVersion extracts Deployment.Version from a settings document.
func ParseVersion(data []byte) (string, error) {
	// Settings files written by Visual Studio often carry a BOM.
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var s settings
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("parse settings: %w", err)
	}
	if s.Deployment == nil {
		return "", ErrVersionMissing
	}

	raw := bytes.TrimSpace(s.Deployment.Version)
	if len(raw) == 0 || string(raw) == "null" {
		return "", ErrVersionMissing
	}

	var version string
	switch raw[0] {
	case '"':
		if err := json.Unmarshal(raw, &version); err != nil {
			return "", fmt.Errorf("parse settings: %w", err)
		}
	case '{', '[':
		return "", fmt.Errorf("%w: value is not a scalar", ErrVersionMissing)
	default:
		version = string(raw)
	}

	version = strings.TrimSpace(version)
	if version == "" {
		return "", ErrVersionMissing
	}
	return version, nil
}
