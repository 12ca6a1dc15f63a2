package buildlogs

import (
	"fmt"
	"strings"
	"unicode"
)

// maxDeploymentIDLen bounds identifiers before they are placed in a URL path.
const maxDeploymentIDLen = 128

// ValidateDeploymentID checks that id is usable as an opaque path segment.
// Identifiers are usually UUIDs but any non-empty token without separators or
// control characters is accepted.
func ValidateDeploymentID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("deployment id must not be empty: %w", ErrValidation)
	}
	if len(id) > maxDeploymentIDLen {
		return fmt.Errorf("deployment id longer than %d bytes: %w", maxDeploymentIDLen, ErrValidation)
	}
	for _, r := range id {
		switch {
		case r == '/' || r == '\\' || r == '?' || r == '#':
			return fmt.Errorf("deployment id contains %q: %w", r, ErrValidation)
		case unicode.IsControl(r) || unicode.IsSpace(r):
			return fmt.Errorf("deployment id contains whitespace or control characters: %w", ErrValidation)
		}
	}
	if id == "." || id == ".." {
		return fmt.Errorf("deployment id %q is not a valid path segment: %w", id, ErrValidation)
	}
	return nil
}
