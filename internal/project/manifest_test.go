package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/canonical/dotrun-image/internal/config"
	"github.com/canonical/dotrun-image/internal/fsops"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.json")
	content := `{
  "name": "ubuntu.com",
  "scripts": {"start": "yarn run serve", "clean": "rm -rf static/js/dist"},
  "dependencies": {"react": "18.2.0", "sass": "1.69.0"},
  "devDependencies": {"sass": "1.70.0", "jest": "29.7.0"}
}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	m, err := LoadManifest(fsops.NewRealFS(), path)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}

	if !m.HasScript("start") || !m.HasScript("clean") {
		t.Error("expected start and clean scripts")
	}
	if m.HasScript("build") {
		t.Error("build script should not exist")
	}

	want := map[string]string{"react": "18.2.0", "sass": "1.70.0", "jest": "29.7.0"}
	if diff := cmp.Diff(want, m.DeclaredDependencies()); diff != "" {
		t.Errorf("DeclaredDependencies mismatch (-want +got):\n%s", diff)
	}
}

func TestManifest_DevDependencyWins(t *testing.T) {
	m := &Manifest{
		Dependencies:    map[string]string{"a": "1.0"},
		DevDependencies: map[string]string{"a": "2.0"},
	}
	want := map[string]string{"a": "2.0"}
	if diff := cmp.Diff(want, m.DeclaredDependencies()); diff != "" {
		t.Errorf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestManifest_NoDependencies(t *testing.T) {
	m := &Manifest{}
	if got := m.DeclaredDependencies(); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil map, got %v", got)
	}
	if m.HasScript("start") {
		t.Error("nil scripts should not declare anything")
	}
}

func TestLoadManifest_Missing(t *testing.T) {
	_, err := LoadManifest(fsops.NewRealFS(), filepath.Join(t.TempDir(), "package.json"))
	if !errors.Is(err, ErrConfigMissing) {
		t.Errorf("expected ErrConfigMissing, got %v", err)
	}
}

func TestLoadManifest_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "package.json")
	if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	_, err := LoadManifest(fsops.NewRealFS(), path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if errors.Is(err, ErrConfigMissing) {
		t.Error("a malformed manifest is not a missing one")
	}
}

func TestDetectPackageManager(t *testing.T) {
	dir := t.TempDir()
	paths := config.NewPaths(dir, ".venv")
	fs := fsops.NewRealFS()

	pm, err := DetectPackageManager(fs, paths)
	if err != nil {
		t.Fatalf("DetectPackageManager failed: %v", err)
	}
	if pm != NPM {
		t.Errorf("without yarn.lock got %q, want npm", pm)
	}

	if err := os.WriteFile(paths.YarnLock, []byte("# yarn lockfile v1\n"), 0644); err != nil {
		t.Fatalf("failed to write yarn.lock: %v", err)
	}
	pm, err = DetectPackageManager(fs, paths)
	if err != nil {
		t.Fatalf("DetectPackageManager failed: %v", err)
	}
	if pm != Yarn {
		t.Errorf("with yarn.lock got %q, want yarn", pm)
	}
}
