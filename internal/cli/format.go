package cli

import (
	"errors"

	"github.com/fatih/color"

	"github.com/canonical/dotrun-image/internal/runner"
)

var (
	// Colors for help output sections
	groupTitleColor   = color.New(color.FgCyan, color.Bold)
	sectionTitleColor = color.New(color.FgBlue, color.Bold)
)

// ExitCodeInterrupted is the exit status after the user cancelled an install.
const ExitCodeInterrupted = 130

// ExitCode maps an error returned by Execute to a process exit status.
// A failed command's own exit status is passed through.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var failed *runner.CommandFailedError
	if errors.As(err, &failed) {
		if failed.ExitCode > 0 {
			return failed.ExitCode
		}
		// Killed by a signal
		return 1
	}

	if errors.Is(err, runner.ErrInterrupted) {
		return ExitCodeInterrupted
	}
	return 1
}
