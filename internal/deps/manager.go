// Package deps decides when project dependencies need installing.
//
// Each ecosystem's fingerprint is compared with the one recorded after the
// last successful install. The installer only runs when they differ or when
// the caller forces it, and a fresh fingerprint is recorded after every
// successful install. JS dependencies are always handled before Python ones.
package deps

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/canonical/dotrun-image/internal/config"
	"github.com/canonical/dotrun-image/internal/console"
	"github.com/canonical/dotrun-image/internal/envmap"
	"github.com/canonical/dotrun-image/internal/fingerprint"
	"github.com/canonical/dotrun-image/internal/fsops"
	"github.com/canonical/dotrun-image/internal/project"
	"github.com/canonical/dotrun-image/internal/runner"
	"github.com/canonical/dotrun-image/internal/state"
)

// Manager installs JS and Python dependencies when they change.
type Manager struct {
	fs           fsops.FS
	cfg          config.Config
	state        state.Store
	fingerprints *fingerprint.Computer
	runner       runner.CommandRunner
	env          envmap.Env
	reporter     console.Reporter
	logger       *zap.Logger
}

// New creates a new Manager. Commands run with env in the project root.
func New(
	fs fsops.FS,
	cfg config.Config,
	store state.Store,
	fingerprints *fingerprint.Computer,
	cmdRunner runner.CommandRunner,
	env envmap.Env,
	reporter console.Reporter,
	logger *zap.Logger,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		fs:           fs,
		cfg:          cfg,
		state:        store,
		fingerprints: fingerprints,
		runner:       cmdRunner,
		env:          env,
		reporter:     reporter,
		logger:       logger,
	}
}

// Install installs JS then Python dependencies. Unless force is set, an
// ecosystem whose fingerprint matches the recorded one is left alone.
// Any failure aborts the whole install.
func (m *Manager) Install(ctx context.Context, force bool) error {
	if err := m.installNode(ctx, force); err != nil {
		return err
	}
	return m.installPython(ctx, force)
}

// stateKey returns where a package manager's fingerprint is recorded.
func stateKey(pm project.PackageManager) state.Key {
	if pm == project.Yarn {
		return state.KeyYarn
	}
	return state.KeyNPM
}

func displayName(pm project.PackageManager) string {
	if pm == project.Yarn {
		return "Yarn"
	}
	return "NPM"
}

func (m *Manager) installNode(ctx context.Context, force bool) error {
	paths := m.cfg.Paths

	hasManifest, err := m.fs.IsFile(paths.Manifest)
	if err != nil {
		return fmt.Errorf("failed to check for package.json: %w", err)
	}
	if !hasManifest {
		return fmt.Errorf("%w: package.json not found in %s", project.ErrConfigMissing, paths.Root)
	}

	pm, err := project.DetectPackageManager(m.fs, paths)
	if err != nil {
		return err
	}
	key := stateKey(pm)
	name := displayName(pm)

	changed := false
	if !force {
		current, err := m.fingerprints.Node()
		if err != nil {
			return fmt.Errorf("failed to fingerprint %s dependencies: %w", name, err)
		}
		var previous fingerprint.Node
		found, err := m.state.Get(key, &previous)
		if err != nil {
			return err
		}
		changed = !found || !current.Equal(&previous)
		m.logger.Debug("compared fingerprints",
			zap.String("key", string(key)),
			zap.Bool("recorded", found),
			zap.Bool("changed", changed))
	}

	if !changed && !force {
		m.reporter.Note(name + " dependencies up to date")
		return nil
	}
	if changed {
		m.reporter.Note(name + " dependencies have changed, reinstalling")
	}
	if force {
		m.reporter.Note("Installing " + strings.ToLower(name) + " dependencies (forced)")
	}

	if err := m.run(ctx, string(pm), "install"); err != nil {
		return err
	}

	installed, err := m.fingerprints.Node()
	if err != nil {
		return fmt.Errorf("failed to fingerprint %s dependencies: %w", name, err)
	}
	if err := m.state.Set(key, installed); err != nil {
		return fmt.Errorf("failed to record %s fingerprint: %w", name, err)
	}
	m.logger.Debug("recorded fingerprint", zap.String("key", string(key)))
	return nil
}

func (m *Manager) installPython(ctx context.Context, force bool) error {
	paths := m.cfg.Paths

	hasRequirements, err := m.fs.IsFile(paths.Requirements)
	if err != nil {
		return fmt.Errorf("failed to check for requirements.txt: %w", err)
	}
	if !hasRequirements {
		m.reporter.Note("No requirements.txt found")
		return nil
	}

	hasVenv, err := m.fs.IsDir(paths.Venv)
	if err != nil {
		return fmt.Errorf("failed to check for %s: %w", paths.VenvDir, err)
	}
	if !hasVenv {
		if err := m.createPythonEnv(ctx); err != nil {
			return err
		}
	}

	changed := false
	if !force {
		current, err := m.fingerprints.Python()
		if err != nil {
			return fmt.Errorf("failed to fingerprint python dependencies: %w", err)
		}
		var previous fingerprint.Python
		found, err := m.state.Get(state.KeyPython, &previous)
		if err != nil {
			return err
		}
		changed = !found || !current.Equal(&previous)
		m.logger.Debug("compared fingerprints",
			zap.String("key", string(state.KeyPython)),
			zap.Bool("recorded", found),
			zap.Bool("changed", changed))
	}

	if !changed && !force {
		m.reporter.Note("Python dependencies up to date")
		return nil
	}
	if changed {
		m.reporter.Note("Python dependencies have changed, reinstalling")
	}
	if force {
		m.reporter.Note("Installing python dependencies (forced)")
	}

	if err := m.run(ctx, "pip3", "install", "--requirement", filepath.Base(paths.Requirements)); err != nil {
		return err
	}

	installed, err := m.fingerprints.Python()
	if err != nil {
		return fmt.Errorf("failed to fingerprint python dependencies: %w", err)
	}
	if err := m.state.Set(state.KeyPython, installed); err != nil {
		return fmt.Errorf("failed to record python fingerprint: %w", err)
	}
	return nil
}

// createPythonEnv creates the virtual environment. Callers only invoke it
// when the venv directory is absent.
func (m *Manager) createPythonEnv(ctx context.Context) error {
	paths := m.cfg.Paths
	m.reporter.Note("Creating python environment: " + paths.VenvDir)

	var pin string
	found, err := m.state.Get(state.KeyPythonVersion, &pin)
	if err != nil {
		return err
	}
	if found && strings.TrimSpace(pin) != "" {
		// The pin goes to the version manager as is; it also accepts
		// aliases such as "latest".
		pin = strings.TrimSpace(pin)
		if err := m.run(ctx, m.cfg.Tools.VersionManager, "use", "-g", "python@"+pin); err != nil {
			return err
		}
	}

	if err := m.run(ctx, "python3", "-m", "venv", paths.Venv); err != nil {
		return err
	}

	return m.run(ctx,
		filepath.Join(paths.Venv, "bin", "python"),
		"-m", "pip", "install", "--upgrade",
		"setuptools=="+m.cfg.Tools.SetuptoolsVersion,
	)
}

// run runs one foreground install step. An interrupted step aborts the
// install with runner.ErrInterrupted.
func (m *Manager) run(ctx context.Context, argv ...string) error {
	outcome, err := m.runner.Run(ctx, runner.Request{
		Argv: argv,
		Env:  m.env,
		Dir:  m.cfg.Paths.Root,
		Mode: runner.Foreground,
	})
	if err != nil {
		return err
	}
	if outcome == runner.OutcomeInterrupted {
		return fmt.Errorf("`%s`: %w", strings.Join(argv, " "), runner.ErrInterrupted)
	}
	return nil
}
