package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/canonical/dotrun-image/internal/fsops"
)

type pythonState struct {
	Requirements      string   `json:"requirements"`
	InstalledPackages []string `json:"installed_packages"`
}

func newFileStore(t *testing.T) (*JSONStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".dotrun.json")
	return NewFileStore(fsops.NewRealFS(), path), path
}

func TestJSONStore_AbsentFile(t *testing.T) {
	store, path := newFileStore(t)

	var got pythonState
	found, err := store.Get(KeyPython, &got)
	if err != nil {
		t.Fatalf("Get on absent file should not fail: %v", err)
	}
	if found {
		t.Error("expected found=false on absent file")
	}

	exists, err := store.Exists()
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Exists should be false before the first write")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("reading must not create the state file")
	}
}

func TestJSONStore_SetThenGet(t *testing.T) {
	store, path := newFileStore(t)

	want := pythonState{
		Requirements:      "flask==3.0.0\n",
		InstalledPackages: []string{"flask-3.0.0.dist-info", "pip-24.0.dist-info"},
	}
	if err := store.Set(KeyPython, want); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got pythonState
	found, err := store.Get(KeyPython, &got)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("expected key to be found after Set")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("state file should exist after Set: %v", err)
	}
}

func TestJSONStore_SetPreservesOtherKeys(t *testing.T) {
	store, path := newFileStore(t)
	if err := os.WriteFile(path, []byte(`{"node_version": "20", "custom": {"a": 1}}`), 0644); err != nil {
		t.Fatalf("failed to seed state: %v", err)
	}

	if err := store.Set(KeyNPM, map[string]string{"lockfile_hash": "sha256:1"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	doc, err := store.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	want := map[string]any{
		"node_version": "20",
		"custom":       map[string]any{"a": float64(1)},
		"npm":          map[string]any{"lockfile_hash": "sha256:1"},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONStore_GetNumericPinAsString(t *testing.T) {
	store, path := newFileStore(t)
	if err := os.WriteFile(path, []byte(`{"python_version": 3.11}`), 0644); err != nil {
		t.Fatalf("failed to seed state: %v", err)
	}

	var pin string
	found, err := store.Get(KeyPythonVersion, &pin)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found || pin != "3.11" {
		t.Errorf("Get = (%v, %q), want (true, \"3.11\")", found, pin)
	}
}

func TestJSONStore_NullValueIsAbsent(t *testing.T) {
	store, path := newFileStore(t)
	if err := os.WriteFile(path, []byte(`{"yarn": null}`), 0644); err != nil {
		t.Fatalf("failed to seed state: %v", err)
	}

	var got map[string]any
	found, err := store.Get(KeyYarn, &got)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("null value should read as absent")
	}
}

func TestJSONStore_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{yarn:"},
		{"empty file", ""},
		{"array", `["python"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, path := newFileStore(t)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to seed state: %v", err)
			}

			var got pythonState
			if _, err := store.Get(KeyPython, &got); !errors.Is(err, ErrStateCorrupt) {
				t.Errorf("Get: expected ErrStateCorrupt, got %v", err)
			}
			if err := store.Set(KeyPython, pythonState{}); !errors.Is(err, ErrStateCorrupt) {
				t.Errorf("Set: expected ErrStateCorrupt, got %v", err)
			}

			data, _ := os.ReadFile(path)
			if string(data) != tt.content {
				t.Error("a corrupt state file must never be overwritten")
			}
		})
	}
}

func TestJSONStore_WrongShapeIsCorrupt(t *testing.T) {
	store, path := newFileStore(t)
	if err := os.WriteFile(path, []byte(`{"python": "not an object"}`), 0644); err != nil {
		t.Fatalf("failed to seed state: %v", err)
	}

	var got pythonState
	if _, err := store.Get(KeyPython, &got); !errors.Is(err, ErrStateCorrupt) {
		t.Errorf("expected ErrStateCorrupt, got %v", err)
	}
}

func TestJSONStore_Prune(t *testing.T) {
	store, path := newFileStore(t)
	seed := `{"python": {"requirements": "x"}, "python_version": "3.11", "npm": {"lockfile_hash": null}}`
	if err := os.WriteFile(path, []byte(seed), 0644); err != nil {
		t.Fatalf("failed to seed state: %v", err)
	}

	if err := store.Prune(); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	doc, err := store.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	want := map[string]any{"python_version": "3.11"}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("pruned document mismatch (-want +got):\n%s", diff)
	}

	if _, err := os.Stat(path); err != nil {
		t.Error("Prune must keep the file")
	}
}

func TestJSONStore_PruneMissingFile(t *testing.T) {
	store, path := newFileStore(t)

	if err := store.Prune(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Prune must not create the state file")
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	if exists, _ := store.Exists(); exists {
		t.Error("new memory store should not exist")
	}
	if err := store.Prune(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := store.Set(KeyPythonVersion, "3.12"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(KeyYarn, map[string]string{"lockfile_hash": "h"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Prune(); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	var pin string
	if found, err := store.Get(KeyPythonVersion, &pin); err != nil || !found || pin != "3.12" {
		t.Errorf("Get(python_version) = (%v, %v, %q)", found, err, pin)
	}
	var yarn map[string]string
	if found, _ := store.Get(KeyYarn, &yarn); found {
		t.Error("yarn fingerprint should have been pruned")
	}
}

func TestKey_IsVersionPin(t *testing.T) {
	tests := []struct {
		key  Key
		want bool
	}{
		{KeyYarn, false},
		{KeyNPM, false},
		{KeyPython, false},
		{KeyPythonVersion, true},
		{Key("node_version"), true},
		{Key("version_python"), false},
	}
	for _, tt := range tests {
		if got := tt.key.IsVersionPin(); got != tt.want {
			t.Errorf("%q.IsVersionPin() = %v, want %v", tt.key, got, tt.want)
		}
	}
}
