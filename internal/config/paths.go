// Package config describes where dotrun finds project files and which tool
// versions it pins.
//
// Everything is relative to the project root, which defaults to the current
// working directory. A few values can be overridden through environment
// variables, mainly so the container image can relocate the virtual
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// StateFileName is the name of the persisted state file in the project root.
	StateFileName = ".dotrun.json"

	// DefaultVenvDir is the default virtual environment directory name.
	DefaultVenvDir = ".venv"

	// DefaultSetuptoolsVersion is installed into every new virtual environment.
	DefaultSetuptoolsVersion = "69.5.1"

	// DefaultVersionManager selects pinned interpreter versions.
	DefaultVersionManager = "mise"
)

// Paths contains all the filesystem paths dotrun reads or owns for a project.
type Paths struct {
	// Root is the project directory
	Root string

	// StateFile is the persisted fingerprint store (.dotrun.json)
	StateFile string

	// Manifest is package.json
	Manifest string

	// YarnLock and NPMLock are the two lockfiles, yarn.lock taking precedence
	YarnLock string
	NPMLock  string

	// NodeModules is the installed JS packages directory
	NodeModules string

	// Requirements is requirements.txt
	Requirements string

	// VenvDir is the virtual environment directory name, as shown to users
	VenvDir string

	// Venv is the absolute virtual environment path
	Venv string

	// EnvFile and EnvLocalFile are the base and local environment overlays
	EnvFile      string
	EnvLocalFile string
}

// Tools holds pinned tool settings.
type Tools struct {
	SetuptoolsVersion string
	VersionManager    string
}

// Config is the resolved configuration for one project.
type Config struct {
	Paths Paths
	Tools Tools
}

// NewPaths builds the project layout rooted at root with the given venv dir.
func NewPaths(root, venvDir string) Paths {
	venv := venvDir
	if !filepath.IsAbs(venv) {
		venv = filepath.Join(root, venvDir)
	}
	return Paths{
		Root:         root,
		StateFile:    filepath.Join(root, StateFileName),
		Manifest:     filepath.Join(root, "package.json"),
		YarnLock:     filepath.Join(root, "yarn.lock"),
		NPMLock:      filepath.Join(root, "package-lock.json"),
		NodeModules:  filepath.Join(root, "node_modules"),
		Requirements: filepath.Join(root, "requirements.txt"),
		VenvDir:      venvDir,
		Venv:         venv,
		EnvFile:      filepath.Join(root, ".env"),
		EnvLocalFile: filepath.Join(root, ".env.local"),
	}
}

// Load resolves the configuration for the project at cwd.
// Values can be overridden with environment variables:
// - DOTRUN_PROJECT_ROOT: use another project directory
// - DOTRUN_VENV_DIR: virtual environment directory (relative to the root or absolute)
// - DOTRUN_SETUPTOOLS_VERSION: setuptools pin for new environments
func Load(cwd string) (*Config, error) {
	root := cwd
	if override := strings.TrimSpace(os.Getenv("DOTRUN_PROJECT_ROOT")); override != "" {
		root = override
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	return &Config{
		Paths: NewPaths(absRoot, envOr("DOTRUN_VENV_DIR", DefaultVenvDir)),
		Tools: Tools{
			SetuptoolsVersion: envOr("DOTRUN_SETUPTOOLS_VERSION", DefaultSetuptoolsVersion),
			VersionManager:    DefaultVersionManager,
		},
	}, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
