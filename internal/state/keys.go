package state

import "strings"

// Key identifies a value in the state file.
type Key string

const (
	// KeyYarn holds the JS fingerprint for projects installed with yarn.
	KeyYarn Key = "yarn"

	// KeyNPM holds the JS fingerprint for projects installed with npm.
	KeyNPM Key = "npm"

	// KeyPython holds the Python fingerprint.
	KeyPython Key = "python"

	// KeyPythonVersion is a user-set interpreter pin, e.g. "3.11".
	KeyPythonVersion Key = "python_version"
)

// versionSuffix marks keys that survive pruning.
const versionSuffix = "_version"

// IsVersionPin reports whether the key is a user version pin.
func (k Key) IsVersionPin() bool {
	return isVersionKey(string(k))
}

func isVersionKey(name string) bool {
	return strings.HasSuffix(name, versionSuffix)
}
