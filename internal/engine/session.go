// Package engine composes dotrun's operations on one project.
//
// A Session owns the merged environment, the state store and the registry
// of background processes for a project directory. The CLI builds one
// Session per invocation and calls into it; every operation that runs
// commands goes through the same CommandRunner, so the virtual environment
// and the .env overlays apply uniformly.
//
// Key operations:
//   - Install: changed-or-forced install of JS then Python dependencies
//   - RunScript / Exec: run a package.json script or an arbitrary command
//   - Clean / CleanCache: remove everything dotrun created
package engine

import (
	"os"

	"go.uber.org/zap"

	"github.com/canonical/dotrun-image/internal/config"
	"github.com/canonical/dotrun-image/internal/console"
	"github.com/canonical/dotrun-image/internal/deps"
	"github.com/canonical/dotrun-image/internal/envmap"
	"github.com/canonical/dotrun-image/internal/fingerprint"
	"github.com/canonical/dotrun-image/internal/fsops"
	"github.com/canonical/dotrun-image/internal/hash"
	"github.com/canonical/dotrun-image/internal/runner"
	"github.com/canonical/dotrun-image/internal/state"
)

// Options configures the ambient parts of a Session.
type Options struct {
	// Reporter receives user-visible output. Defaults to the standard console.
	Reporter console.Reporter

	// Logger receives debug logs. Defaults to a no-op logger.
	Logger *zap.Logger

	// IO is handed to child processes. Nil streams inherit the parent's.
	IO runner.IO

	// BaseEnv is the environment the overlays are applied to.
	// Defaults to os.Environ().
	BaseEnv []string
}

// Session is one dotrun invocation against a project directory.
type Session struct {
	fs       fsops.FS
	cfg      config.Config
	env      envmap.Env
	store    state.Store
	registry *runner.Registry
	runner   runner.CommandRunner
	deps     *deps.Manager
	reporter console.Reporter
	logger   *zap.Logger
}

// New creates a Session for the project described by cfg.
//
// The environment is built from the process environment, then .env (which
// never overrides a variable that is already set), then .env.local, then
// overrides, which win over everything.
func New(cfg config.Config, overrides map[string]string, opts Options) (*Session, error) {
	if opts.Reporter == nil {
		opts.Reporter = console.NewStd()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.BaseEnv == nil {
		opts.BaseEnv = os.Environ()
	}

	fs := fsops.NewRealFS()
	env, err := envmap.Load(fs, envmap.Overlay{
		Base:      opts.BaseEnv,
		EnvFile:   cfg.Paths.EnvFile,
		LocalFile: cfg.Paths.EnvLocalFile,
		Overrides: overrides,
	})
	if err != nil {
		return nil, err
	}
	opts.Logger.Debug("loaded environment",
		zap.String("root", cfg.Paths.Root),
		zap.Int("variables", env.Len()),
		zap.Int("overrides", len(overrides)))

	registry := runner.NewRegistry()
	cmdRunner := runner.New(fs, cfg.Paths, registry, opts.Reporter, opts.Logger, opts.IO)
	store := state.NewFileStore(fs, cfg.Paths.StateFile)
	return assemble(fs, cfg, env, store, registry, cmdRunner, opts.Reporter, opts.Logger), nil
}

// assemble wires a Session from already constructed parts.
func assemble(
	fs fsops.FS,
	cfg config.Config,
	env envmap.Env,
	store state.Store,
	registry *runner.Registry,
	cmdRunner runner.CommandRunner,
	reporter console.Reporter,
	logger *zap.Logger,
) *Session {
	fingerprints := fingerprint.NewComputer(fs, hash.NewSHA256Hasher(), cfg.Paths)
	return &Session{
		fs:       fs,
		cfg:      cfg,
		env:      env,
		store:    store,
		registry: registry,
		runner:   cmdRunner,
		deps:     deps.New(fs, cfg, store, fingerprints, cmdRunner, env, reporter, logger),
		reporter: reporter,
		logger:   logger,
	}
}

// Env returns the session environment, before virtualenv activation.
func (s *Session) Env() envmap.Env {
	return s.env
}

// Close terminates any background processes still running.
func (s *Session) Close() error {
	return s.registry.DrainAndTerminate()
}
