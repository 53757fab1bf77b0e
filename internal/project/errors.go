package project

import "errors"

var (
	// ErrConfigMissing indicates a file required for the requested action
	// (package.json, requirements.txt) does not exist.
	ErrConfigMissing = errors.New("config missing")

	// ErrScriptNotFound indicates the manifest does not declare the requested script.
	ErrScriptNotFound = errors.New("script not found")
)
