package config

import (
	"fmt"
	"regexp"
	"strings"
)

// namePattern matches environment and repository names. They become path
// segments, so separators and traversal are rejected.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// ValidateName checks an environment or repository argument.
func ValidateName(kind, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrInvalidConfig, kind)
	}
	if strings.Contains(value, "..") {
		return fmt.Errorf("%w: %s %q must not contain '..'", ErrInvalidConfig, kind, value)
	}
	if !namePattern.MatchString(value) {
		return fmt.Errorf("%w: %s %q must start with a letter or digit and contain only letters, digits, '.', '_' or '-'", ErrInvalidConfig, kind, value)
	}
	return nil
}
