package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/canonical/dotrun-image/internal/project"
	"github.com/canonical/dotrun-image/internal/runner"
)

// DefaultShell is what Exec runs when given no command.
const DefaultShell = "bash"

// HasScript reports whether package.json declares the script.
// A missing package.json declares nothing.
func (s *Session) HasScript(name string) (bool, error) {
	manifest, err := project.LoadManifest(s.fs, s.cfg.Paths.Manifest)
	if err != nil {
		if errors.Is(err, project.ErrConfigMissing) {
			return false, nil
		}
		return false, err
	}
	return manifest.HasScript(name), nil
}

// RunScript runs `<pm> run <name> args...` and reports whether the script
// completed successfully.
//
// With exitOnError, a missing manifest or script and a failing command are
// returned as errors. Without it they are reported on the console and
// RunScript returns false with a nil error. An interrupted script is not an
// error either way.
//
// Background processes started during the session are terminated when the
// script finishes, on every path.
func (s *Session) RunScript(ctx context.Context, name string, args []string, exitOnError bool) (ok bool, err error) {
	defer func() {
		if termErr := s.registry.DrainAndTerminate(); termErr != nil {
			s.logger.Warn("failed to terminate background processes", zap.Error(termErr))
			if err == nil && exitOnError {
				err = termErr
			}
		}
	}()

	argv, err := s.scriptCommand(name, args)
	if err != nil {
		if exitOnError {
			return false, err
		}
		s.reporter.Note(err.Error())
		return false, nil
	}

	outcome, err := s.runner.Run(ctx, runner.Request{
		Argv: argv,
		Env:  s.env,
		Dir:  s.cfg.Paths.Root,
		Mode: runner.Foreground,
	})
	if err != nil {
		if exitOnError {
			return false, err
		}
		s.reporter.Error(err.Error())
		return false, nil
	}
	return outcome == runner.OutcomeOK, nil
}

func (s *Session) scriptCommand(name string, args []string) ([]string, error) {
	manifest, err := project.LoadManifest(s.fs, s.cfg.Paths.Manifest)
	if err != nil {
		if errors.Is(err, project.ErrConfigMissing) {
			return nil, fmt.Errorf("%w: package.json not found in %s", project.ErrConfigMissing, s.cfg.Paths.Root)
		}
		return nil, err
	}
	if !manifest.HasScript(name) {
		return nil, fmt.Errorf("%w: '%s' script not found in package.json", project.ErrScriptNotFound, name)
	}

	pm, err := project.DetectPackageManager(s.fs, s.cfg.Paths)
	if err != nil {
		return nil, err
	}

	argv := make([]string, 0, len(args)+3)
	argv = append(argv, string(pm), "run", name)
	return append(argv, args...), nil
}

// Exec runs an arbitrary command in the project environment, or an
// interactive shell when argv is empty. A background command is left
// running until the session is closed.
func (s *Session) Exec(ctx context.Context, argv []string, background bool) (runner.Outcome, error) {
	if len(argv) == 0 {
		argv = []string{DefaultShell}
	}
	mode := runner.Foreground
	if background {
		mode = runner.Background
	}
	return s.runner.Run(ctx, runner.Request{
		Argv: argv,
		Env:  s.env,
		Dir:  s.cfg.Paths.Root,
		Mode: mode,
	})
}
