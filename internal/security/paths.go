// Package security guards filesystem paths taken from the command line.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory reports an error when path, after cleaning and
// symlink resolution, lies outside dir. The path need not exist; its deepest
// existing ancestor is resolved instead. dir must exist.
func ValidatePathWithinDirectory(path, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory path: %w", err)
	}
	canonicalDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(canonicalDir, canonicalize(absPath))
	if err != nil {
		return fmt.Errorf("path is outside %s: %w", dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", path, dir)
	}
	return nil
}

// canonicalize resolves symlinks in the longest existing prefix of an
// absolute path and re-appends the remainder.
func canonicalize(absPath string) string {
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved
	}
	for check := absPath; ; {
		parent := filepath.Dir(check)
		if parent == check {
			return absPath
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rest, _ := filepath.Rel(parent, absPath)
			return filepath.Join(resolved, rest)
		}
		check = parent
	}
}
