package runner

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInterrupted indicates the user cancelled a command. Callers that cannot
// continue after a cancelled command return it; it is not a crash.
var ErrInterrupted = errors.New("interrupted")

// CommandFailedError is returned when a foreground command exits non-zero.
type CommandFailedError struct {
	Argv     []string
	ExitCode int
}

func (e *CommandFailedError) Error() string {
	return fmt.Sprintf("`%s` errored (exit code %d)", strings.Join(e.Argv, " "), e.ExitCode)
}
