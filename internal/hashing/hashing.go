// Package hashing computes content digests for candidate files.
package hashing

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// Provider tags a hash computation with the mod source platform it is
// being checked against. Opaque to the engine.
type Provider string

const (
	ProviderFlame    Provider = "flame"
	ProviderModrinth Provider = "modrinth"
)

// Algorithm describes a supported digest function.
type Algorithm struct {
	Name    string
	Size    int
	NewFunc func() hash.Hash
}

// ParseAlgorithm returns the algorithm configuration for a name.
func ParseAlgorithm(name string) (*Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sha1":
		return &Algorithm{Name: "sha1", Size: sha1.Size, NewFunc: sha1.New}, nil
	case "sha256":
		return &Algorithm{Name: "sha256", Size: sha256.Size, NewFunc: sha256.New}, nil
	case "sha512":
		return &Algorithm{Name: "sha512", Size: sha512.Size, NewFunc: sha512.New}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", name)
	}
}

// ComputeFile hashes the file contents at path and returns the
// lower-case hex digest.
func ComputeFile(path string, algorithm *Algorithm) (string, error) {
	if algorithm == nil || algorithm.NewFunc == nil {
		return "", fmt.Errorf("hash algorithm is required")
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	hasher := algorithm.NewFunc()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
