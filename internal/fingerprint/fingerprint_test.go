package fingerprint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/canonical/dotrun-image/internal/config"
	"github.com/canonical/dotrun-image/internal/fsops"
	"github.com/canonical/dotrun-image/internal/hash"
	"github.com/canonical/dotrun-image/internal/project"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func newProject(t *testing.T) (*Computer, config.Paths) {
	t.Helper()
	paths := config.NewPaths(t.TempDir(), ".venv")
	return NewComputer(fsops.NewRealFS(), hash.NewSHA256Hasher(), paths), paths
}

func strPtr(s string) *string { return &s }

func TestComputer_Node(t *testing.T) {
	c, paths := newProject(t)
	write(t, paths.Manifest, `{"dependencies": {"a": "1.0", "b": "^2"}, "devDependencies": {"a": "2.0"}}`)
	write(t, filepath.Join(paths.NodeModules, "a", "package.json"), `{"name": "a", "version": "2.0.0"}`)
	write(t, filepath.Join(paths.NodeModules, "b", "package.json"), `{"name": "b", "version": "2.3.1", "main": "index.js"}`)
	write(t, filepath.Join(paths.NodeModules, ".cache", "package.json"), `{"name": "cache", "version": "0"}`)
	write(t, filepath.Join(paths.NodeModules, "unnamed", "package.json"), `{"private": true}`)

	got, err := c.Node()
	if err != nil {
		t.Fatalf("Node() failed: %v", err)
	}

	want := &Node{
		Dependencies:      map[string]string{"a": "2.0", "b": "^2"},
		InstalledPackages: map[string]string{"a": "2.0.0", "b": "2.3.1"},
		LockfileHash:      nil,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Node() mismatch (-want +got):\n%s", diff)
	}
}

func TestComputer_NodeLockfilePreference(t *testing.T) {
	fake := hash.NewFakeHasher()
	paths := config.NewPaths(t.TempDir(), ".venv")
	c := NewComputer(fsops.NewRealFS(), fake, paths)
	write(t, paths.Manifest, `{}`)

	fake.SetHash(paths.YarnLock, "sha256:yarn")
	fake.SetHash(paths.NPMLock, "sha256:npm")

	t.Run("no lockfile", func(t *testing.T) {
		got, err := c.Node()
		if err != nil {
			t.Fatalf("Node() failed: %v", err)
		}
		if got.LockfileHash != nil {
			t.Errorf("LockfileHash = %q, want nil", *got.LockfileHash)
		}
	})

	t.Run("npm lockfile only", func(t *testing.T) {
		write(t, paths.NPMLock, `{"lockfileVersion": 3}`)
		got, err := c.Node()
		if err != nil {
			t.Fatalf("Node() failed: %v", err)
		}
		if got.LockfileHash == nil || *got.LockfileHash != "sha256:npm" {
			t.Errorf("LockfileHash = %v, want sha256:npm", got.LockfileHash)
		}
	})

	t.Run("yarn lockfile wins", func(t *testing.T) {
		write(t, paths.YarnLock, "# yarn lockfile v1\n")
		got, err := c.Node()
		if err != nil {
			t.Fatalf("Node() failed: %v", err)
		}
		if got.LockfileHash == nil || *got.LockfileHash != "sha256:yarn" {
			t.Errorf("LockfileHash = %v, want sha256:yarn", got.LockfileHash)
		}
	})
}

func TestComputer_NodeMissingManifest(t *testing.T) {
	c, _ := newProject(t)
	if _, err := c.Node(); !errors.Is(err, project.ErrConfigMissing) {
		t.Errorf("expected ErrConfigMissing, got %v", err)
	}
}

func TestComputer_NodeMalformedPackage(t *testing.T) {
	c, paths := newProject(t)
	write(t, paths.Manifest, `{}`)
	write(t, filepath.Join(paths.NodeModules, "broken", "package.json"), `{"name":`)

	if _, err := c.Node(); err == nil {
		t.Error("expected error for malformed installed package manifest")
	}
}

func TestComputer_NodeChangeSensitivity(t *testing.T) {
	c, paths := newProject(t)
	write(t, paths.Manifest, `{"dependencies": {"react": "18.2.0"}}`)
	write(t, paths.YarnLock, "react@18.2.0:\n")

	before, err := c.Node()
	if err != nil {
		t.Fatalf("Node() failed: %v", err)
	}
	again, err := c.Node()
	if err != nil {
		t.Fatalf("Node() failed: %v", err)
	}
	if !before.Equal(again) {
		t.Fatal("fingerprint must be deterministic")
	}

	t.Run("dependency version change", func(t *testing.T) {
		write(t, paths.Manifest, `{"dependencies": {"react": "18.3.0"}}`)
		after, err := c.Node()
		if err != nil {
			t.Fatalf("Node() failed: %v", err)
		}
		if before.Equal(after) {
			t.Error("changing a declared version must change the fingerprint")
		}
		write(t, paths.Manifest, `{"dependencies": {"react": "18.2.0"}}`)
	})

	t.Run("lockfile content change", func(t *testing.T) {
		write(t, paths.YarnLock, "react@18.2.0:\n  integrity sha512-x\n")
		after, err := c.Node()
		if err != nil {
			t.Fatalf("Node() failed: %v", err)
		}
		if before.Equal(after) {
			t.Error("changing the lockfile must change the fingerprint")
		}
	})
}

func TestComputer_Python(t *testing.T) {
	c, paths := newProject(t)
	write(t, paths.Requirements, "flask==3.0.0\ncanonicalwebteam.flask-base==2.0.0\n")
	sitePackages := filepath.Join(paths.Venv, "lib", "python3.11", "site-packages")
	for _, dir := range []string{"pip-24.0.dist-info", "flask-3.0.0.dist-info", "legacy-1.0.egg-info", "flask"} {
		if err := os.MkdirAll(filepath.Join(sitePackages, dir), 0755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}

	got, err := c.Python()
	if err != nil {
		t.Fatalf("Python() failed: %v", err)
	}

	want := &Python{
		Requirements:      "flask==3.0.0\ncanonicalwebteam.flask-base==2.0.0\n",
		InstalledPackages: []string{"flask-3.0.0.dist-info", "legacy-1.0.egg-info", "pip-24.0.dist-info"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Python() mismatch (-want +got):\n%s", diff)
	}
}

func TestComputer_PythonWhitespaceSensitive(t *testing.T) {
	c, paths := newProject(t)
	write(t, paths.Requirements, "flask==3.0.0\n")
	before, err := c.Python()
	if err != nil {
		t.Fatalf("Python() failed: %v", err)
	}

	write(t, paths.Requirements, "flask==3.0.0\n\n")
	after, err := c.Python()
	if err != nil {
		t.Fatalf("Python() failed: %v", err)
	}
	if before.Equal(after) {
		t.Error("a trailing newline must change the fingerprint")
	}
}

func TestComputer_PythonWithoutVenv(t *testing.T) {
	c, paths := newProject(t)
	write(t, paths.Requirements, "")

	got, err := c.Python()
	if err != nil {
		t.Fatalf("Python() failed: %v", err)
	}
	if len(got.InstalledPackages) != 0 {
		t.Errorf("expected no installed packages, got %v", got.InstalledPackages)
	}
}

func TestComputer_PythonMissingRequirements(t *testing.T) {
	c, _ := newProject(t)
	if _, err := c.Python(); !errors.Is(err, project.ErrConfigMissing) {
		t.Errorf("expected ErrConfigMissing, got %v", err)
	}
}

func TestNode_Equal(t *testing.T) {
	base := &Node{
		Dependencies:      map[string]string{"a": "1"},
		InstalledPackages: map[string]string{},
		LockfileHash:      strPtr("sha256:1"),
	}

	tests := []struct {
		name  string
		other *Node
		want  bool
	}{
		{
			name: "identical",
			other: &Node{
				Dependencies:      map[string]string{"a": "1"},
				InstalledPackages: map[string]string{},
				LockfileHash:      strPtr("sha256:1"),
			},
			want: true,
		},
		{
			name: "nil map equals empty map",
			other: &Node{
				Dependencies: map[string]string{"a": "1"},
				LockfileHash: strPtr("sha256:1"),
			},
			want: true,
		},
		{
			name: "different lockfile hash",
			other: &Node{
				Dependencies: map[string]string{"a": "1"},
				LockfileHash: strPtr("sha256:2"),
			},
			want: false,
		},
		{
			name: "lockfile removed",
			other: &Node{
				Dependencies: map[string]string{"a": "1"},
			},
			want: false,
		},
		{
			name:  "no previous fingerprint",
			other: nil,
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Equal(tt.other); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPython_Equal(t *testing.T) {
	a := &Python{Requirements: "flask\n", InstalledPackages: nil}
	b := &Python{Requirements: "flask\n", InstalledPackages: []string{}}
	if !a.Equal(b) {
		t.Error("nil and empty package lists should compare equal")
	}

	c := &Python{Requirements: "flask\n", InstalledPackages: []string{"flask-3.0.0.dist-info"}}
	if a.Equal(c) {
		t.Error("different installed packages should not compare equal")
	}

	var none *Python
	if none.Equal(a) || a.Equal(none) {
		t.Error("nil fingerprint should never equal a computed one")
	}
}
