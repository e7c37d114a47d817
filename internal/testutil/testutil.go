// Package testutil provides test helpers and fixtures for dataguard tests.
// All file operations use t.TempDir() for safe, isolated testing.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// TestFixture holds the root of a throwaway directory tree
type TestFixture struct {
	T       *testing.T
	RootDir string // Root temp directory (auto-cleaned)
}

// NewFixture creates an empty fixture rooted at a fresh temp directory
func NewFixture(t *testing.T) *TestFixture {
	t.Helper()

	root := t.TempDir()
	// Resolve symlinked temp dirs (macOS /var -> /private/var) so paths
	// reported by the watcher match the ones tests build
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	return &TestFixture{
		T:       t,
		RootDir: root,
	}
}

// =============================================================================
// File Creation Helpers
// =============================================================================

// CreateFile creates a file with specified content and returns its path
func (f *TestFixture) CreateFile(relPath string, content []byte) string {
	f.T.Helper()

	fullPath := filepath.Join(f.RootDir, relPath)
	dir := filepath.Dir(fullPath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		f.T.Fatalf("failed to create file %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateSizedFile creates a sparse file of the given logical size. Sizes are
// what the scanner sees, so multi-hundred-MiB fixtures cost no disk.
func (f *TestFixture) CreateSizedFile(relPath string, size int64) string {
	f.T.Helper()

	fullPath := f.CreateFile(relPath, nil)
	if err := os.Truncate(fullPath, size); err != nil {
		f.T.Fatalf("failed to size file %s: %v", fullPath, err)
	}
	return fullPath
}

// CreateFileWithAge creates a file and sets its modification time to the past
func (f *TestFixture) CreateFileWithAge(relPath string, content []byte, age time.Duration) string {
	f.T.Helper()

	fullPath := f.CreateFile(relPath, content)
	f.SetAge(fullPath, age)
	return fullPath
}

// CreateSizedFileWithAge creates a sparse file of the given size and age
func (f *TestFixture) CreateSizedFileWithAge(relPath string, size int64, age time.Duration) string {
	f.T.Helper()

	fullPath := f.CreateSizedFile(relPath, size)
	f.SetAge(fullPath, age)
	return fullPath
}

// SetAge moves a path's modification time age into the past
func (f *TestFixture) SetAge(fullPath string, age time.Duration) {
	f.T.Helper()

	oldTime := time.Now().Add(-age)
	if err := os.Chtimes(fullPath, oldTime, oldTime); err != nil {
		f.T.Fatalf("failed to set file time for %s: %v", fullPath, err)
	}
}

// CreateDir creates a directory (and parents) and returns its path
func (f *TestFixture) CreateDir(relPath string) string {
	f.T.Helper()

	fullPath := filepath.Join(f.RootDir, relPath)
	if err := os.MkdirAll(fullPath, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", fullPath, err)
	}
	return fullPath
}

// CreateSymlink creates a symbolic link, skipping the test where the OS refuses
func (f *TestFixture) CreateSymlink(target, linkPath string) string {
	f.T.Helper()

	fullLinkPath := filepath.Join(f.RootDir, linkPath)
	if err := os.MkdirAll(filepath.Dir(fullLinkPath), 0755); err != nil {
		f.T.Fatalf("failed to create directory for %s: %v", fullLinkPath, err)
	}

	if err := os.Symlink(target, fullLinkPath); err != nil {
		if runtime.GOOS == "windows" {
			f.T.Skipf("symlinks unavailable: %v", err)
		}
		f.T.Fatalf("failed to create symlink %s -> %s: %v", fullLinkPath, target, err)
	}

	return fullLinkPath
}

// CreateUnreadableDir creates a directory the current user cannot list
func (f *TestFixture) CreateUnreadableDir(relPath string) string {
	f.T.Helper()

	if runtime.GOOS == "windows" {
		f.T.Skip("permission bits are not enforced on Windows")
	}
	if os.Geteuid() == 0 {
		f.T.Skip("root can read any directory")
	}

	dirPath := f.CreateDir(relPath)
	f.CreateFile(filepath.Join(relPath, "hidden-from-scan.txt"), []byte("x"))
	if err := os.Chmod(dirPath, 0000); err != nil {
		f.T.Fatalf("failed to chmod directory %s: %v", dirPath, err)
	}

	// Restore permissions so TempDir cleanup works
	f.T.Cleanup(func() {
		os.Chmod(dirPath, 0755)
	})

	return dirPath
}

// =============================================================================
// Path Helpers
// =============================================================================

// Path returns the full path for a relative path within the fixture
func (f *TestFixture) Path(relPath string) string {
	return filepath.Join(f.RootDir, relPath)
}

// RelPath returns the relative path from the fixture root
func (f *TestFixture) RelPath(fullPath string) string {
	rel, _ := filepath.Rel(f.RootDir, fullPath)
	return rel
}

// Eventually polls cond until it returns true or the timeout expires
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out after %v: %s", timeout, msg)
}
