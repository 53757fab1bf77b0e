package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/canonical/dotrun-image/internal/fsops"
)

var (
	// ErrStateCorrupt indicates the state file exists but is not a JSON object.
	ErrStateCorrupt = errors.New("state file corrupt")

	// ErrNotFound indicates the state file does not exist.
	ErrNotFound = errors.New("state file not found")
)

// Store provides typed access to persisted project state.
type Store interface {
	// Get decodes the value stored under key into out.
	// Returns found=false, with out untouched, when the key or the file is absent.
	Get(key Key, out any) (found bool, err error)

	// Set stores value under key, rewriting the whole file.
	Set(key Key, value any) error

	// Prune removes every key that is not a version pin.
	// Returns ErrNotFound if there is no state file.
	Prune() error

	// Exists reports whether the state file exists.
	Exists() (bool, error)
}

// backend holds the raw JSON document.
type backend interface {
	read() (data []byte, found bool, err error)
	write(data []byte) error
	location() string
}

// JSONStore implements Store over a JSON object.
type JSONStore struct {
	backend backend
}

// NewFileStore creates a Store backed by the file at path.
func NewFileStore(fs fsops.FS, path string) *JSONStore {
	return &JSONStore{backend: &fileBackend{fs: fs, path: path}}
}

// NewMemoryStore creates a Store that keeps the JSON document in memory.
func NewMemoryStore() *JSONStore {
	return &JSONStore{backend: &memoryBackend{}}
}

// Get decodes the value stored under key into out.
func (s *JSONStore) Get(key Key, out any) (bool, error) {
	doc, _, err := s.load()
	if err != nil {
		return false, err
	}

	raw, ok := doc[string(key)]
	if !ok || raw == nil {
		return false, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return false, fmt.Errorf("failed to create decoder for %q: %w", key, err)
	}
	if err := decoder.Decode(raw); err != nil {
		return false, fmt.Errorf("%w: key %q in %s: %v", ErrStateCorrupt, key, s.backend.location(), err)
	}

	return true, nil
}

// Set stores value under key.
func (s *JSONStore) Set(key Key, value any) error {
	doc, _, err := s.load()
	if err != nil {
		return err
	}

	// Round-trip through JSON so the document only holds plain values.
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %q: %w", key, err)
	}
	var plain any
	if err := json.Unmarshal(encoded, &plain); err != nil {
		return fmt.Errorf("failed to normalize %q: %w", key, err)
	}
	doc[string(key)] = plain

	return s.save(doc)
}

// Prune removes every key that is not a version pin.
func (s *JSONStore) Prune() error {
	doc, found, err := s.load()
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, s.backend.location())
	}

	for name := range doc {
		if !isVersionKey(name) {
			delete(doc, name)
		}
	}

	return s.save(doc)
}

// Exists reports whether the state document exists.
func (s *JSONStore) Exists() (bool, error) {
	_, found, err := s.backend.read()
	return found, err
}

// Snapshot returns a copy of the whole document.
func (s *JSONStore) Snapshot() (map[string]any, error) {
	doc, _, err := s.load()
	return doc, err
}

func (s *JSONStore) load() (map[string]any, bool, error) {
	data, found, err := s.backend.read()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read state: %w", err)
	}
	if !found {
		return map[string]any{}, false, nil
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", ErrStateCorrupt, s.backend.location(), err)
	}
	if doc == nil {
		// "null" on disk
		doc = map[string]any{}
	}
	return doc, true, nil
}

func (s *JSONStore) save(doc map[string]any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := s.backend.write(data); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

type fileBackend struct {
	fs   fsops.FS
	path string
}

func (b *fileBackend) read() ([]byte, bool, error) {
	return b.fs.ReadIfExists(b.path)
}

func (b *fileBackend) write(data []byte) error {
	return b.fs.AtomicWrite(b.path, data, 0644)
}

func (b *fileBackend) location() string {
	return b.path
}

type memoryBackend struct {
	mu   sync.Mutex
	data []byte
}

func (b *memoryBackend) read() ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return nil, false, nil
	}
	return append([]byte(nil), b.data...), true, nil
}

func (b *memoryBackend) write(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append([]byte(nil), data...)
	return nil
}

func (b *memoryBackend) location() string {
	return "memory"
}
