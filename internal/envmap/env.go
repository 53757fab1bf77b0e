// Package envmap provides an immutable environment mapping.
//
// A session builds one Env from the process environment and the project's
// overlay files, then threads it through every command. Nothing in dotrun
// mutates the process environment.
package envmap

import (
	"fmt"
	"sort"
	"strings"
)

// Env is an immutable set of environment variables.
// Every modifying method returns a new Env.
type Env struct {
	vars map[string]string
}

// FromPairs builds an Env from KEY=VALUE pairs such as os.Environ().
// Later pairs win; entries without '=' are ignored.
func FromPairs(pairs []string) Env {
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		vars[key] = value
	}
	return Env{vars: vars}
}

// FromMap builds an Env from a copy of m.
func FromMap(m map[string]string) Env {
	vars := make(map[string]string, len(m))
	for k, v := range m {
		vars[k] = v
	}
	return Env{vars: vars}
}

// Get returns the value of key and whether it is set.
func (e Env) Get(key string) (string, bool) {
	v, ok := e.vars[key]
	return v, ok
}

// Value returns the value of key, or "" when unset.
func (e Env) Value(key string) string {
	return e.vars[key]
}

// Len returns the number of variables.
func (e Env) Len() int {
	return len(e.vars)
}

// With returns a copy of e with key set to value.
func (e Env) With(key, value string) Env {
	out := e.clone(len(e.vars) + 1)
	out.vars[key] = value
	return out
}

// Without returns a copy of e with key removed.
func (e Env) Without(key string) Env {
	out := e.clone(len(e.vars))
	delete(out.vars, key)
	return out
}

// Merge returns a copy of e overlaid with vars; vars win on conflicts.
func (e Env) Merge(vars map[string]string) Env {
	out := e.clone(len(e.vars) + len(vars))
	for k, v := range vars {
		out.vars[k] = v
	}
	return out
}

// MergeMissing returns a copy of e with the entries of vars whose keys are
// not already set.
func (e Env) MergeMissing(vars map[string]string) Env {
	out := e.clone(len(e.vars) + len(vars))
	for k, v := range vars {
		if _, ok := out.vars[k]; !ok {
			out.vars[k] = v
		}
	}
	return out
}

// Pairs returns the variables as sorted KEY=VALUE pairs, the form expected
// by exec.Cmd.Env.
func (e Env) Pairs() []string {
	pairs := make([]string, 0, len(e.vars))
	for k, v := range e.vars {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return pairs
}

// Map returns a copy of the variables.
func (e Env) Map() map[string]string {
	return e.clone(len(e.vars)).vars
}

func (e Env) clone(capacity int) Env {
	vars := make(map[string]string, capacity)
	for k, v := range e.vars {
		vars[k] = v
	}
	return Env{vars: vars}
}

// ParseAssignments parses KEY=VALUE strings as given to --env.
// The value may itself contain '='.
func ParseAssignments(assignments []string) (map[string]string, error) {
	out := make(map[string]string, len(assignments))
	for _, a := range assignments {
		key, value, ok := strings.Cut(a, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid environment assignment %q: expected KEY=VALUE", a)
		}
		out[key] = value
	}
	return out, nil
}
