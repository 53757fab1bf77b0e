// Package project models the JS side of a project: its package.json and the
// package manager it uses.
package project

import (
	"encoding/json"
	"fmt"

	"github.com/canonical/dotrun-image/internal/config"
	"github.com/canonical/dotrun-image/internal/fsops"
)

// Manifest is the subset of package.json dotrun reads.
type Manifest struct {
	Name            string            `json:"name,omitempty"`
	Scripts         map[string]string `json:"scripts,omitempty"`
	Dependencies    map[string]string `json:"dependencies,omitempty"`
	DevDependencies map[string]string `json:"devDependencies,omitempty"`
}

// HasScript reports whether the manifest declares the named script.
func (m *Manifest) HasScript(name string) bool {
	_, ok := m.Scripts[name]
	return ok
}

// DeclaredDependencies merges dependencies and devDependencies.
// A package listed in both keeps its devDependencies spec.
func (m *Manifest) DeclaredDependencies() map[string]string {
	merged := make(map[string]string, len(m.Dependencies)+len(m.DevDependencies))
	for name, spec := range m.Dependencies {
		merged[name] = spec
	}
	for name, spec := range m.DevDependencies {
		merged[name] = spec
	}
	return merged
}

// LoadManifest reads package.json at path.
// Returns an error wrapping ErrConfigMissing when the file does not exist.
func LoadManifest(fs fsops.FS, path string) (*Manifest, error) {
	data, found, err := fs.ReadIfExists(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: package.json not found at %s", ErrConfigMissing, path)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &m, nil
}

// PackageManager is the JS package manager a project uses.
type PackageManager string

const (
	Yarn PackageManager = "yarn"
	NPM  PackageManager = "npm"
)

// DetectPackageManager returns Yarn when the project has a yarn.lock, NPM otherwise.
func DetectPackageManager(fs fsops.FS, paths config.Paths) (PackageManager, error) {
	isYarn, err := fs.IsFile(paths.YarnLock)
	if err != nil {
		return "", fmt.Errorf("failed to check for yarn.lock: %w", err)
	}
	if isYarn {
		return Yarn, nil
	}
	return NPM, nil
}
