package watcher

import "path/filepath"

func parentDir(name string) string {
	return filepath.Clean(filepath.Dir(name))
}
