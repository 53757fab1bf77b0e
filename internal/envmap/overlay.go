package envmap

import (
	"fmt"

	"github.com/joho/godotenv"

	"github.com/canonical/dotrun-image/internal/fsops"
)

// Overlay describes the layered sources of a session environment.
type Overlay struct {
	// Base is the starting environment, usually os.Environ()
	Base []string

	// EnvFile is merged without overriding variables already set in Base
	EnvFile string

	// LocalFile overrides Base and EnvFile
	LocalFile string

	// Overrides are explicit --env values and win over everything
	Overrides map[string]string
}

// Load builds the session environment from the overlay layers.
// Missing overlay files are skipped.
func Load(fs fsops.FS, o Overlay) (Env, error) {
	env := FromPairs(o.Base)

	base, err := readDotenv(fs, o.EnvFile)
	if err != nil {
		return Env{}, err
	}
	env = env.MergeMissing(base)

	local, err := readDotenv(fs, o.LocalFile)
	if err != nil {
		return Env{}, err
	}
	env = env.Merge(local)

	return env.Merge(o.Overrides), nil
}

func readDotenv(fs fsops.FS, path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, found, err := fs.ReadIfExists(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !found {
		return nil, nil
	}
	vars, err := godotenv.Unmarshal(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return vars, nil
}
