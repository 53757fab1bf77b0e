// Package fsops provides the filesystem operations dotrun relies on.
//
// Every read of project files and every mutation of dotrun-owned files goes
// through the FS interface so the install logic can be exercised against a
// temporary directory in tests.
//
// Key features:
//   - Atomic writes using temp file + rename
//   - Tagged reads: ReadIfExists reports absence instead of failing
//   - Deterministic globbing (results are sorted)
package fsops

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// FS provides an abstraction for filesystem operations.
type FS interface {
	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// ReadIfExists reads a file, reporting found=false instead of an error
	// when the file does not exist.
	ReadIfExists(path string) (data []byte, found bool, err error)

	// IsDir reports whether path exists and is a directory.
	IsDir(path string) (bool, error)

	// IsFile reports whether path exists and is a regular file.
	IsFile(path string) (bool, error)

	// Glob returns the sorted paths matching pattern.
	Glob(pattern string) ([]string, error)

	// AtomicWrite writes data to path atomically using temp file + rename.
	AtomicWrite(path string, data []byte, perm os.FileMode) error

	// RemoveAll removes a path and all its contents.
	RemoveAll(path string) error
}

// RealFS implements FS using actual OS operations.
type RealFS struct{}

// NewRealFS creates a new RealFS.
func NewRealFS() *RealFS {
	return &RealFS{}
}

// ReadFile reads the entire contents of a file.
func (r *RealFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// ReadIfExists reads a file if it exists.
func (r *RealFS) ReadIfExists(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// IsDir reports whether path is an existing directory.
func (r *RealFS) IsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// IsFile reports whether path is an existing regular file.
// Symlinks are followed, so a venv's python3 link counts as a file.
func (r *RealFS) IsFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Glob returns the paths matching pattern in lexical order.
func (r *RealFS) Glob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// AtomicWrite writes data to path atomically using temp file + rename.
func (r *RealFS) AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	// Create temp file in the same directory as target
	tmpFile, err := os.CreateTemp(dir, ".dotrun-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on error
	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	// Success - don't clean up temp file
	tmpFile = nil
	return nil
}

// RemoveAll removes a path and all its contents.
func (r *RealFS) RemoveAll(path string) error {
	return os.RemoveAll(path)
}
