// Package security vets the directories handed to the scanner and watcher
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RootValidator checks candidate scan roots
type RootValidator struct {
	pseudoPaths []string
}

// NewRootValidator creates a validator that refuses the kernel's pseudo
// filesystems, whose contents are neither real files nor backup material
func NewRootValidator() *RootValidator {
	return &RootValidator{
		pseudoPaths: []string{
			"/proc",
			"/sys",
			"/dev",
			"/run",
		},
	}
}

// ValidateRoot checks that path is an absolute, existing directory outside the
// pseudo filesystems and returns its cleaned, symlink-resolved form
func (rv *RootValidator) ValidateRoot(path string) (string, error) {
	// Step 1: Path must be absolute
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("root must be absolute: %s", path)
	}

	// Step 2: Control characters cannot come from a sane config and would
	// corrupt log lines and journal rows
	if strings.ContainsAny(path, "\x00\n\r") {
		return "", fmt.Errorf("root contains control characters: %q", path)
	}

	// Step 3: Resolve symlinks so two spellings of one directory compare equal
	resolved, err := filepath.EvalSymlinks(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve root %s: %w", path, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("failed to stat root %s: %w", resolved, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("root is not a directory: %s", resolved)
	}

	// Step 4: Check against pseudo filesystems
	if rv.IsPseudoPath(resolved) {
		return "", fmt.Errorf("refusing to scan pseudo filesystem: %s", resolved)
	}

	return resolved, nil
}

// ValidateRoots validates every root, drops duplicates and rejects roots
// nested inside another root, which would count the same files twice
func (rv *RootValidator) ValidateRoots(paths []string) ([]string, error) {
	roots := make([]string, 0, len(paths))
	for _, p := range paths {
		resolved, err := rv.ValidateRoot(p)
		if err != nil {
			return nil, err
		}

		duplicate := false
		for _, other := range roots {
			switch {
			case strings.EqualFold(other, resolved):
				duplicate = true
			case within(other, resolved), within(resolved, other):
				return nil, fmt.Errorf("roots overlap: %s and %s", other, resolved)
			}
		}
		if !duplicate {
			roots = append(roots, resolved)
		}
	}
	return roots, nil
}

// IsPseudoPath reports whether path is, or lies under, a pseudo filesystem
func (rv *RootValidator) IsPseudoPath(path string) bool {
	cleanPath := filepath.Clean(path)
	for _, pseudo := range rv.pseudoPaths {
		if cleanPath == pseudo || within(pseudo, cleanPath) {
			return true
		}
	}
	return false
}

// AddPseudoPath adds a custom refused path
func (rv *RootValidator) AddPseudoPath(path string) {
	rv.pseudoPaths = append(rv.pseudoPaths, filepath.Clean(path))
}

// within reports whether path lies strictly below dir
func within(dir, path string) bool {
	prefix := strings.ToLower(dir)
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(strings.ToLower(path), prefix)
}
