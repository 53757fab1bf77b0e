package runner

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
)

// Signaler is the part of *os.Process the registry needs.
type Signaler interface {
	Signal(sig os.Signal) error
}

type tracked struct {
	argv []string
	proc Signaler
}

// Registry tracks background processes until they are terminated.
// The zero value is ready to use.
type Registry struct {
	mu    sync.Mutex
	procs []tracked
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers a started background process.
func (r *Registry) Add(argv []string, proc Signaler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs = append(r.procs, tracked{argv: append([]string(nil), argv...), proc: proc})
}

// Len returns the number of registered processes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// DrainAndTerminate sends SIGTERM to every registered process and empties
// the registry, so each process is signalled at most once. Processes that
// already exited are ignored.
func (r *Registry) DrainAndTerminate() error {
	r.mu.Lock()
	procs := r.procs
	r.procs = nil
	r.mu.Unlock()

	var failures []string
	for _, p := range procs {
		if err := p.proc.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			failures = append(failures, fmt.Sprintf("`%s`: %v", strings.Join(p.argv, " "), err))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("failed to terminate background processes: %s", strings.Join(failures, "; "))
	}
	return nil
}
