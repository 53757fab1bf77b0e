package runner

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/canonical/dotrun-image/internal/envmap"
)

// activateVenv returns env as it would be inside the virtual environment at venv.
func activateVenv(env envmap.Env, venv string) envmap.Env {
	bin := filepath.Join(venv, "bin")
	path := bin
	if current := env.Value("PATH"); current != "" {
		path = bin + string(os.PathListSeparator) + current
	}
	return env.
		With("VIRTUAL_ENV", venv).
		With("PATH", path).
		Without("PYTHONHOME")
}

// lookPath resolves name against the PATH of the command's own environment.
// exec.LookPath would consult the parent process PATH, which never contains
// the virtual environment.
func lookPath(name string, env envmap.Env) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) || strings.Contains(name, "/") {
		return name, nil
	}

	for _, dir := range filepath.SplitList(env.Value("PATH")) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode().Perm()&0111 != 0 {
			return candidate, nil
		}
	}

	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// isNotFound reports whether err means the executable could not be found.
func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist)
}
