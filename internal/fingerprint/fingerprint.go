// Package fingerprint computes comparable snapshots of a project's declared
// and installed dependencies.
//
// A fingerprint is recomputed before every install decision and compared
// structurally with the one persisted after the last successful install.
// Computation only reads the filesystem and is deterministic for identical
// filesystem state.
package fingerprint

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/canonical/dotrun-image/internal/config"
	"github.com/canonical/dotrun-image/internal/fsops"
	"github.com/canonical/dotrun-image/internal/hash"
	"github.com/canonical/dotrun-image/internal/project"
)

// Node is the JS ecosystem fingerprint.
// Field names match state files written by earlier dotrun releases.
type Node struct {
	// Dependencies is dependencies merged with devDependencies
	Dependencies map[string]string `json:"dependencies"`

	// InstalledPackages maps installed package names to versions
	InstalledPackages map[string]string `json:"installed_packages"`

	// LockfileHash is the hash of yarn.lock or package-lock.json, nil if neither exists
	LockfileHash *string `json:"lockfile_hash"`
}

// Python is the Python ecosystem fingerprint.
type Python struct {
	// Requirements is requirements.txt, byte for byte
	Requirements string `json:"requirements"`

	// InstalledPackages lists the sorted *-info metadata directory names
	InstalledPackages []string `json:"installed_packages"`
}

// Empty and absent collections compare equal: a state file written with
// "{}" must match a freshly computed empty map.
var equalOpts = []cmp.Option{cmpopts.EquateEmpty()}

// Equal reports whether two JS fingerprints are structurally equal.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	return cmp.Equal(*n, *other, equalOpts...)
}

// Equal reports whether two Python fingerprints are structurally equal.
func (p *Python) Equal(other *Python) bool {
	if p == nil || other == nil {
		return p == other
	}
	return cmp.Equal(*p, *other, equalOpts...)
}

// Computer computes fingerprints for one project.
type Computer struct {
	fs     fsops.FS
	hasher hash.Hasher
	paths  config.Paths
}

// NewComputer creates a new Computer.
func NewComputer(fs fsops.FS, hasher hash.Hasher, paths config.Paths) *Computer {
	return &Computer{
		fs:     fs,
		hasher: hasher,
		paths:  paths,
	}
}

// Node computes the JS fingerprint.
// Returns an error wrapping project.ErrConfigMissing if package.json is absent.
func (c *Computer) Node() (*Node, error) {
	manifest, err := project.LoadManifest(c.fs, c.paths.Manifest)
	if err != nil {
		return nil, err
	}

	installed, err := c.installedNodePackages()
	if err != nil {
		return nil, err
	}

	lockHash, err := c.lockfileHash()
	if err != nil {
		return nil, err
	}

	return &Node{
		Dependencies:      manifest.DeclaredDependencies(),
		InstalledPackages: installed,
		LockfileHash:      lockHash,
	}, nil
}

// installedNodePackages reads name and version from node_modules/*/package.json.
func (c *Computer) installedNodePackages() (map[string]string, error) {
	matches, err := c.fs.Glob(filepath.Join(c.paths.NodeModules, "*", "package.json"))
	if err != nil {
		return nil, err
	}

	packages := make(map[string]string, len(matches))
	for _, path := range matches {
		// Hidden entries (.cache, .bin) are not packages
		if strings.HasPrefix(filepath.Base(filepath.Dir(path)), ".") {
			continue
		}

		data, err := c.fs.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		var pkg struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		}
		if err := json.Unmarshal(data, &pkg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if pkg.Name == "" {
			continue
		}
		packages[pkg.Name] = pkg.Version
	}
	return packages, nil
}

// lockfileHash hashes yarn.lock, falling back to package-lock.json.
func (c *Computer) lockfileHash() (*string, error) {
	for _, lockfile := range []string{c.paths.YarnLock, c.paths.NPMLock} {
		isFile, err := c.fs.IsFile(lockfile)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s: %w", lockfile, err)
		}
		if !isFile {
			continue
		}
		sum, err := c.hasher.HashFile(lockfile)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", lockfile, err)
		}
		return &sum, nil
	}
	return nil, nil
}

// Python computes the Python fingerprint.
// Returns an error wrapping project.ErrConfigMissing if requirements.txt is absent.
func (c *Computer) Python() (*Python, error) {
	data, found, err := c.fs.ReadIfExists(c.paths.Requirements)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c.paths.Requirements, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: requirements.txt not found at %s", project.ErrConfigMissing, c.paths.Requirements)
	}

	installed, err := c.installedPythonPackages()
	if err != nil {
		return nil, err
	}

	return &Python{
		Requirements:      string(data),
		InstalledPackages: installed,
	}, nil
}

// installedPythonPackages lists the *.dist-info and *.egg-info directories in
// the virtual environment's site-packages.
func (c *Computer) installedPythonPackages() ([]string, error) {
	pattern := filepath.Join(c.paths.Venv, "lib", "python*", "site-packages", "*.*-info")
	matches, err := c.fs.Glob(pattern)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(matches))
	for _, path := range matches {
		names = append(names, filepath.Base(path))
	}
	sort.Strings(names)
	return names, nil
}
