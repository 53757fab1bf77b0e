// Package hash computes content hashes of lockfiles.
//
// Hashes are prefixed with the algorithm name ("sha256:<hex>") so a
// fingerprint recorded by a build using a different algorithm never compares
// equal to a freshly computed one and simply triggers a reinstall.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Hasher provides an abstraction for file hashing operations.
type Hasher interface {
	// HashFile computes the hash of the file at the given path.
	HashFile(path string) (string, error)
}

// SHA256Prefix is prepended to every hash produced by SHA256Hasher.
const SHA256Prefix = "sha256:"

// SHA256Hasher implements Hasher using SHA-256.
type SHA256Hasher struct{}

// NewSHA256Hasher creates a new SHA256Hasher.
func NewSHA256Hasher() *SHA256Hasher {
	return &SHA256Hasher{}
}

// HashFile computes the SHA-256 hash of the file at the given path.
func (h *SHA256Hasher) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	return SHA256Prefix + hex.EncodeToString(hasher.Sum(nil)), nil
}

// FakeHasher implements Hasher with predetermined hashes for testing.
type FakeHasher struct {
	hashes map[string]string
	calls  []string
}

// NewFakeHasher creates a new FakeHasher.
func NewFakeHasher() *FakeHasher {
	return &FakeHasher{
		hashes: make(map[string]string),
	}
}

// SetHash sets the hash for a specific path.
func (h *FakeHasher) SetHash(path, hash string) {
	h.hashes[path] = hash
}

// Calls returns the paths hashed so far, in order.
func (h *FakeHasher) Calls() []string {
	return append([]string(nil), h.calls...)
}

// HashFile returns the predetermined hash for the given path, or an error
// wrapping os.ErrNotExist when none was set.
func (h *FakeHasher) HashFile(path string) (string, error) {
	h.calls = append(h.calls, path)
	if hash, ok := h.hashes[path]; ok {
		return hash, nil
	}
	return "", fmt.Errorf("failed to open file: %w", os.ErrNotExist)
}
