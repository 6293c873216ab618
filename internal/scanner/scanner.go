// Package scanner enumerates candidate files inside watched
// directories.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
)

// ScanDirectory lists the regular files directly inside dir (hidden
// files included, no recursion) and returns the paths whose base name
// the accept function approves. A nil accept function approves every
// file.
func ScanDirectory(dir string, accept func(fileName string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var candidates []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if accept != nil && !accept(entry.Name()) {
			continue
		}
		candidates = append(candidates, filepath.Join(dir, entry.Name()))
	}
	return candidates, nil
}
