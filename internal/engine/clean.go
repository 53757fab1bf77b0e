package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/canonical/dotrun-image/internal/config"
	"github.com/canonical/dotrun-image/internal/runner"
)

// Install installs dependencies whose fingerprint changed, or all of them
// when force is set.
func (s *Session) Install(ctx context.Context, force bool) error {
	return s.deps.Install(ctx, force)
}

// Clean runs the project's clean script, if any, then removes the install
// records, node_modules and the virtual environment, in that order.
// Pinned versions in the state file survive.
func (s *Session) Clean(ctx context.Context) error {
	if _, err := s.RunScript(ctx, "clean", nil, false); err != nil {
		return err
	}

	paths := s.cfg.Paths

	exists, err := s.store.Exists()
	if err != nil {
		return err
	}
	if exists {
		s.reporter.Step(fmt.Sprintf("Removing `%s` state file", config.StateFileName), "")
		if err := s.store.Prune(); err != nil {
			return fmt.Errorf("failed to prune state: %w", err)
		}
	}

	if err := s.removeDir(paths.NodeModules, fmt.Sprintf("Removing `%s`", filepath.Base(paths.NodeModules))); err != nil {
		return err
	}
	return s.removeDir(paths.Venv, fmt.Sprintf("Removing `%s` python environment", paths.VenvDir))
}

func (s *Session) removeDir(path, step string) error {
	isDir, err := s.fs.IsDir(path)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", path, err)
	}
	if !isDir {
		return nil
	}
	s.reporter.Step(step, "")
	if err := s.fs.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// CleanCache deletes $HOME/.cache, which holds the yarn and pip caches.
func (s *Session) CleanCache(ctx context.Context) error {
	home := s.env.Value("HOME")
	if home == "" {
		return errors.New("cannot clean cache: HOME is not set")
	}
	outcome, err := s.runner.Run(ctx, runner.Request{
		Argv: []string{"rm", "-rf", filepath.Join(home, ".cache")},
		Env:  s.env,
		Dir:  s.cfg.Paths.Root,
		Mode: runner.Foreground,
	})
	if err != nil {
		return err
	}
	if outcome == runner.OutcomeInterrupted {
		return runner.ErrInterrupted
	}
	return nil
}
