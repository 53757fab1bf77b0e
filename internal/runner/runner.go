// Package runner executes external commands inside the project environment.
//
// Every command gets the session environment, with the project's virtual
// environment activated whenever it exists. Foreground commands block and
// report their exit status; background commands are registered and left
// running until the registry is drained.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/canonical/dotrun-image/internal/config"
	"github.com/canonical/dotrun-image/internal/console"
	"github.com/canonical/dotrun-image/internal/envmap"
	"github.com/canonical/dotrun-image/internal/fsops"
)

// Mode selects how a command is run.
type Mode int

const (
	// Foreground blocks until the command exits.
	Foreground Mode = iota

	// Background starts the command and returns immediately.
	Background
)

func (m Mode) String() string {
	if m == Background {
		return "background"
	}
	return "foreground"
}

// Outcome describes how a command finished when it did not fail.
type Outcome int

const (
	// OutcomeOK means a foreground command exited zero.
	OutcomeOK Outcome = iota

	// OutcomeStarted means a background command was started.
	OutcomeStarted

	// OutcomeInterrupted means the user cancelled a foreground command.
	OutcomeInterrupted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeStarted:
		return "started"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Request describes one command invocation.
type Request struct {
	Argv []string
	Env  envmap.Env
	Dir  string
	Mode Mode
}

// CommandRunner runs commands in the project environment.
type CommandRunner interface {
	Run(ctx context.Context, req Request) (Outcome, error)
}

// IO holds the standard streams handed to child processes.
// Nil fields default to the parent's streams.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Runner implements CommandRunner with os/exec.
type Runner struct {
	fs       fsops.FS
	paths    config.Paths
	registry *Registry
	reporter console.Reporter
	logger   *zap.Logger
	stdio    IO

	// interrupts subscribes to user interrupts for the duration of one
	// foreground command.
	interrupts func() (<-chan os.Signal, func())

	// interruptGrace is how long an interrupted child gets to exit before
	// it is sent SIGTERM, and again before it is killed.
	interruptGrace time.Duration
}

// DefaultInterruptGrace is the default Runner.interruptGrace.
const DefaultInterruptGrace = 3 * time.Second

// New creates a new Runner. Background processes are added to registry.
func New(fs fsops.FS, paths config.Paths, registry *Registry, reporter console.Reporter, logger *zap.Logger, stdio IO) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stdio.Stdin == nil {
		stdio.Stdin = os.Stdin
	}
	if stdio.Stdout == nil {
		stdio.Stdout = os.Stdout
	}
	if stdio.Stderr == nil {
		stdio.Stderr = os.Stderr
	}
	return &Runner{
		fs:             fs,
		paths:          paths,
		registry:       registry,
		reporter:       reporter,
		logger:         logger,
		stdio:          stdio,
		interrupts:     notifyInterrupts,
		interruptGrace: DefaultInterruptGrace,
	}
}

func notifyInterrupts() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	return ch, func() { signal.Stop(ch) }
}

// Environment returns env as commands will see it: with the virtual
// environment activated when <venv>/bin/python3 exists.
func (r *Runner) Environment(env envmap.Env) (envmap.Env, bool, error) {
	active, err := r.fs.IsFile(filepath.Join(r.paths.Venv, "bin", "python3"))
	if err != nil {
		return envmap.Env{}, false, fmt.Errorf("failed to check virtual environment: %w", err)
	}
	if !active {
		return env, false, nil
	}
	return activateVenv(env, r.paths.Venv), true, nil
}

// Run executes the request.
//
// Foreground: returns OutcomeOK, OutcomeInterrupted, or a
// *CommandFailedError for a non-zero exit. Background: returns
// OutcomeStarted once the process is running.
func (r *Runner) Run(ctx context.Context, req Request) (Outcome, error) {
	if len(req.Argv) == 0 {
		return OutcomeOK, errors.New("command cannot be empty")
	}

	env, inVenv, err := r.Environment(req.Env)
	if err != nil {
		return OutcomeOK, err
	}

	display := strings.Join(req.Argv, " ")
	aside := ""
	if inVenv {
		aside = fmt.Sprintf("virtualenv `%s`", r.paths.VenvDir)
	}
	r.reporter.Step("$ "+display, aside)

	path, err := lookPath(req.Argv[0], env)
	if err != nil {
		return OutcomeOK, fmt.Errorf("failed to start `%s`: %w", display, err)
	}

	cmd := exec.Command(path, req.Argv[1:]...)
	cmd.Args[0] = req.Argv[0]
	cmd.Env = env.Pairs()
	cmd.Dir = req.Dir
	cmd.Stdin = r.stdio.Stdin
	cmd.Stdout = r.stdio.Stdout
	cmd.Stderr = r.stdio.Stderr

	r.logger.Debug("running command",
		zap.Strings("argv", req.Argv),
		zap.String("path", path),
		zap.String("dir", req.Dir),
		zap.Stringer("mode", req.Mode),
		zap.Bool("virtualenv", inVenv))

	if req.Mode == Background {
		return r.runBackground(cmd, req.Argv)
	}
	return r.runForeground(ctx, cmd, req.Argv)
}

func (r *Runner) runBackground(cmd *exec.Cmd, argv []string) (Outcome, error) {
	if err := cmd.Start(); err != nil {
		return OutcomeOK, startError(argv, err)
	}
	r.registry.Add(argv, cmd.Process)
	r.logger.Debug("started background process",
		zap.Strings("argv", argv),
		zap.Int("pid", cmd.Process.Pid))
	return OutcomeStarted, nil
}

func (r *Runner) runForeground(ctx context.Context, cmd *exec.Cmd, argv []string) (Outcome, error) {
	sigCh, stop := r.interrupts()
	defer stop()

	if err := cmd.Start(); err != nil {
		return OutcomeOK, startError(argv, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var (
		interrupted bool
		waitErr     error
		stage       int
		escalate    <-chan time.Time
	)
	ctxDone := ctx.Done()

	timer := time.NewTimer(r.interruptGrace)
	timer.Stop()
	defer timer.Stop()

	// stopChild escalates one step: SIGTERM first, then SIGKILL.
	stopChild := func() {
		switch stage {
		case 0:
			r.logger.Debug("terminating interrupted command", zap.Strings("argv", argv))
			_ = cmd.Process.Signal(syscall.SIGTERM)
			timer.Reset(r.interruptGrace)
		case 1:
			r.logger.Debug("killing interrupted command", zap.Strings("argv", argv))
			_ = cmd.Process.Kill()
			escalate = nil
		}
		stage++
	}
	startGrace := func() {
		interrupted = true
		timer.Reset(r.interruptGrace)
		escalate = timer.C
	}

wait:
	for {
		select {
		case waitErr = <-done:
			break wait
		case <-sigCh:
			if !interrupted {
				// The terminal delivers the interrupt to the child as
				// well; give it the grace period to exit on its own.
				startGrace()
				continue
			}
			// A repeated interrupt skips the rest of the grace period.
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			stopChild()
		case <-ctxDone:
			ctxDone = nil
			_ = cmd.Process.Signal(os.Interrupt)
			if !interrupted {
				startGrace()
			}
		case <-escalate:
			stopChild()
		}
	}

	if interrupted {
		r.reporter.Step(fmt.Sprintf("`%s` cancelled - exiting", strings.Join(argv, " ")), "")
		r.logger.Debug("command interrupted", zap.Strings("argv", argv))
		return OutcomeInterrupted, nil
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			r.logger.Debug("command failed",
				zap.Strings("argv", argv),
				zap.Int("exit_code", exitErr.ExitCode()))
			return OutcomeOK, &CommandFailedError{Argv: argv, ExitCode: exitErr.ExitCode()}
		}
		return OutcomeOK, fmt.Errorf("failed to wait for `%s`: %w", strings.Join(argv, " "), waitErr)
	}

	return OutcomeOK, nil
}

func startError(argv []string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("failed to start `%s`: %w", strings.Join(argv, " "), exec.ErrNotFound)
	}
	return fmt.Errorf("failed to start `%s`: %w", strings.Join(argv, " "), err)
}
