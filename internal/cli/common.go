package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/canonical/dotrun-image/internal/config"
	"github.com/canonical/dotrun-image/internal/console"
	"github.com/canonical/dotrun-image/internal/engine"
	"github.com/canonical/dotrun-image/internal/envmap"
	"github.com/canonical/dotrun-image/internal/fsops"
	"github.com/canonical/dotrun-image/internal/project"
	"github.com/canonical/dotrun-image/internal/runner"
)

// session is the part of engine.Session the commands use.
type session interface {
	HasScript(name string) (bool, error)
	RunScript(ctx context.Context, name string, args []string, exitOnError bool) (bool, error)
	Exec(ctx context.Context, argv []string, background bool) (runner.Outcome, error)
	Install(ctx context.Context, force bool) error
	Clean(ctx context.Context) error
	CleanCache(ctx context.Context) error
	Close() error
}

// newSession creates the session for the project in the working directory.
// Replaced in tests.
var newSession = func(cfg config.Config, overrides map[string]string, opts engine.Options) (session, error) {
	return engine.New(cfg, overrides, opts)
}

// openSession resolves the project and builds a session with the
// command's streams and the --env overrides.
func (a *app) openSession(cmd *cobra.Command) (session, error) {
	overrides, err := envmap.ParseAssignments(a.envs)
	if err != nil {
		return nil, fmt.Errorf("invalid --env value: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("resolved project",
		zap.String("root", cfg.Paths.Root),
		zap.String("venv", cfg.Paths.Venv))

	return newSession(*cfg, overrides, engine.Options{
		Reporter: console.New(cmd.OutOrStdout(), cmd.ErrOrStderr()),
		Logger:   a.logger,
		IO: runner.IO{
			Stdin:  cmd.InOrStdin(),
			Stdout: cmd.OutOrStdout(),
			Stderr: cmd.ErrOrStderr(),
		},
	})
}

// projectDeclaresScript reports whether the project's package.json declares
// the script. A missing or unreadable manifest declares nothing.
func projectDeclaresScript(name string) bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return false
	}
	manifest, err := project.LoadManifest(fsops.NewRealFS(), cfg.Paths.Manifest)
	if err != nil {
		return false
	}
	return manifest.HasScript(name)
}

// closeSession terminates any background processes left behind.
func (a *app) closeSession(sess session) {
	if err := sess.Close(); err != nil {
		a.logger.Warn("failed to close session", zap.Error(err))
	}
}
