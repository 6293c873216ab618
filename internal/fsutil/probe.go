// Package fsutil probes the filesystem on behalf of the matching
// engine. Revalidation and apply-time checks go through these helpers
// so tests can exercise them against temp directories.
package fsutil

import (
	"os"
	"path/filepath"
)

// Exists reports whether path denotes anything at all.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsRegularFile reports whether path denotes an existing regular file.
func IsRegularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// IsDir reports whether path denotes an existing directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Normalize returns an absolute, cleaned form of path. When the path
// cannot be made absolute the cleaned input is returned instead.
func Normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}
